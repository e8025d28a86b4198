package filter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mikey/phish-scanner/internal/adapters/store"
	"github.com/mikey/phish-scanner/internal/core"
	"github.com/mikey/phish-scanner/internal/utils"
	"github.com/mikey/phish-scanner/internal/whitelist"
)

// CliFilter implements a command-line interface for phishing detection
type CliFilter struct {
	service    *core.ScanService
	whitelist  *whitelist.Checker
	logger     *zap.Logger
	verbose    bool
	jsonOutput bool
	out        io.Writer
}

// NewCliFilter creates a new CLI filter
func NewCliFilter(service *core.ScanService, checker *whitelist.Checker, logger *zap.Logger, verbose, jsonOutput bool) (*CliFilter, error) {
	return &CliFilter{
		service:    service,
		whitelist:  checker,
		logger:     logger,
		verbose:    verbose,
		jsonOutput: jsonOutput,
		out:        os.Stdout,
	}, nil
}

// ScanMessage parses a raw message and scans it
func (f *CliFilter) ScanMessage(ctx context.Context, r io.Reader) (*core.ScanReport, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	email, err := parseMessage(raw)
	if err != nil {
		return nil, err
	}
	return f.ProcessEmail(ctx, email)
}

// ProcessEmail scans an email and displays the report. Whitelisted senders
// are not scanned and yield a nil report.
func (f *CliFilter) ProcessEmail(ctx context.Context, email *core.ParsedEmail) (*core.ScanReport, error) {
	f.logger.Debug("Processing email", zap.String("sender", email.From))

	if f.whitelist.IsWhitelisted(email.From) {
		f.logger.Info("Sender domain is whitelisted, skipping scan", zap.String("sender", email.From))
		if f.jsonOutput {
			return nil, f.PrintJSON(map[string]any{"from": email.From, "whitelisted": true})
		}
		fmt.Fprintf(f.out, "Sender %s is whitelisted, scan skipped\n", email.From)
		return nil, nil
	}

	startTime := time.Now()
	report, err := f.service.Scan(ctx, email)
	if err != nil {
		f.logger.Error("Failed to scan email", zap.Error(err))
		return nil, err
	}
	duration := time.Since(startTime)

	if f.jsonOutput {
		return report, f.PrintJSON(report)
	}

	w := f.out
	fmt.Fprintf(w, "\n=== Email Summary ===\n")
	fmt.Fprintf(w, "From: %s\n", email.From)
	fmt.Fprintf(w, "To: %s\n", strings.Join(email.To, ", "))
	fmt.Fprintf(w, "Subject: %s\n", email.Subject)
	fmt.Fprintf(w, "Body length: %d bytes text, %d bytes html\n", len(email.TextBody), len(email.HTMLBody))
	fmt.Fprintf(w, "Attachments: %d\n", email.AttachmentCount)

	if f.verbose {
		fmt.Fprintf(w, "\nBody preview:\n%s\n", utils.TruncateText(email.TextBody, 500))
	}

	fmt.Fprintf(w, "\n=== Indicators ===\n")
	fmt.Fprintf(w, "URLs (%d):\n", len(report.URLs))
	for _, u := range report.URLs {
		fmt.Fprintf(w, "  %s\n", u)
	}
	fmt.Fprintf(w, "SPF: found=%t all=%s", report.SPF.Found, report.SPF.AllQualifier())
	if report.SPF.Error != "" {
		fmt.Fprintf(w, " error=%s", report.SPF.Error)
	}
	fmt.Fprintf(w, "\nDMARC: found=%t policy=%s", report.DMARC.Found, report.DMARC.Policy())
	if report.DMARC.Error != "" {
		fmt.Fprintf(w, " error=%s", report.DMARC.Error)
	}
	fmt.Fprintf(w, "\n")

	result := report.Heuristics
	fmt.Fprintf(w, "\n=== Results ===\n")
	fmt.Fprintf(w, "Scan ID: %s\n", report.ID)
	fmt.Fprintf(w, "Score: %d\n", result.Score)
	fmt.Fprintf(w, "Risk: %s\n", result.Risk)
	fmt.Fprintf(w, "Verdict: %s\n", result.Verdict)
	fmt.Fprintf(w, "Justification: %s\n", result.Justification)
	for _, finding := range result.Findings {
		fmt.Fprintf(w, "  [%s] %s (+%d): %s\n", finding.Severity, finding.ID, finding.Score, finding.Message)
	}
	fmt.Fprintf(w, "Processing time: %v\n", duration)

	return report, nil
}

// ShowScan prints a stored report as JSON
func (f *CliFilter) ShowScan(ctx context.Context, id string) error {
	report, err := f.service.Get(ctx, id)
	switch {
	case errors.Is(err, core.ErrStoreDisabled):
		return errors.New("scan store is disabled, enable store.enabled to look up scans")
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("no stored scan with ID %s (it may have expired)", id)
	case err != nil:
		return err
	}
	return f.PrintJSON(report)
}

// PrintStats prints statistics of the scans stored since the given time,
// with a per-day trend over trendDays
func (f *CliFilter) PrintStats(ctx context.Context, since time.Time, trendDays int) error {
	stats, err := f.service.Stats(ctx, since)
	if errors.Is(err, core.ErrStoreDisabled) {
		return errors.New("scan store is disabled, enable store.enabled to collect statistics")
	}
	if err != nil {
		return err
	}
	if stats.Trend, err = f.service.Trend(ctx, trendDays); err != nil {
		return err
	}

	if f.jsonOutput {
		return f.PrintJSON(stats)
	}

	w := f.out
	fmt.Fprintf(w, "=== Statistics since %s ===\n", stats.Since.Format(time.RFC3339))
	fmt.Fprintf(w, "Total: %d\n", stats.Total)
	fmt.Fprintf(w, "Phishing: %d\n", stats.Phishing)
	fmt.Fprintf(w, "Suspicious: %d\n", stats.Suspicious)
	fmt.Fprintf(w, "Legitimate: %d\n", stats.Legitimate)
	fmt.Fprintf(w, "Phish rate: %.1f%%\n", stats.PhishRate)
	fmt.Fprintf(w, "\n=== Daily scans ===\n")
	for _, day := range stats.Trend {
		fmt.Fprintf(w, "%s %d\n", day.Date, day.Count)
	}
	return nil
}

// PrintJSON writes v as indented JSON
func (f *CliFilter) PrintJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(f.out, string(data))
	return err
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
