package core

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/phish-scanner/internal/heuristics"
	"github.com/mikey/phish-scanner/internal/indicators"
	"github.com/mikey/phish-scanner/internal/mailauth"
)

// ErrStoreDisabled is returned by store-backed queries when persistence is off.
var ErrStoreDisabled = errors.New("scan store is disabled")

// ScanService is the core service for phishing detection
type ScanService struct {
	engine        *heuristics.Engine
	resolver      TXTResolver
	store         ScanRepository
	logger        *zap.Logger
	storeEnabled  bool
	lookupTimeout time.Duration
	now           func() time.Time
}

// NewScanService creates a new scan service
func NewScanService(
	engine *heuristics.Engine,
	resolver TXTResolver,
	store ScanRepository,
	logger *zap.Logger,
	storeEnabled bool,
	lookupTimeout time.Duration,
) *ScanService {
	return &ScanService{
		engine:        engine,
		resolver:      resolver,
		store:         store,
		logger:        logger,
		storeEnabled:  storeEnabled && store != nil,
		lookupTimeout: lookupTimeout,
		now:           time.Now,
	}
}

// Scan extracts indicators from an email, checks the sender's SPF and DMARC
// records, runs the heuristics and stores the report. Failing lookups and
// storage errors do not fail the scan.
func (s *ScanService) Scan(ctx context.Context, email *ParsedEmail) (*ScanReport, error) {
	if email == nil {
		return nil, errors.New("no email to scan")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}

	fromDomain := indicators.DomainFromAddress(email.From)
	spf, dmarc := s.checkAuthentication(ctx, fromDomain)

	emailCtx := heuristics.NewEmailContext(
		email.From,
		email.ReplyTo,
		email.Subject,
		email.TextBody,
		email.HTMLBody,
		spf,
		dmarc,
	)
	result := s.engine.Evaluate(emailCtx)

	report := &ScanReport{
		ID:              uuid.NewString(),
		CreatedAt:       s.now().UTC(),
		From:            email.From,
		FromDomain:      fromDomain,
		To:              email.To,
		ReplyTo:         email.ReplyTo,
		Subject:         email.Subject,
		MessageID:       email.MessageID,
		DateRaw:         email.Date,
		DateISO:         isoDate(email.Date),
		TextLength:      len(email.TextBody),
		HTMLLength:      len(email.HTMLBody),
		RawSize:         email.RawSize,
		AttachmentCount: email.AttachmentCount,
		URLCount:        len(emailCtx.URLs),
		URLs:            emailCtx.URLs,
		SPF:             spf,
		DMARC:           dmarc,
		Heuristics:      result,
	}

	s.logger.Info("Email scanned",
		zap.String("id", report.ID),
		zap.String("sender", email.From),
		zap.String("from_domain", fromDomain),
		zap.Int("score", result.Score),
		zap.String("risk", result.Risk),
		zap.String("verdict", result.Verdict))

	if s.storeEnabled {
		if err := s.store.Save(ctx, report); err != nil {
			s.logger.Error("Failed to store scan report", zap.String("id", report.ID), zap.Error(err))
		}
	}

	return report, nil
}

// checkAuthentication fetches the sender's SPF and DMARC records in parallel.
// Without a sender domain both results are empty.
func (s *ScanService) checkAuthentication(ctx context.Context, domain string) (mailauth.SPFResult, mailauth.DMARCResult) {
	if domain == "" || s.resolver == nil {
		return mailauth.AnalyzeSPF(domain, nil, nil), mailauth.AnalyzeDMARC(domain, nil, nil)
	}

	if s.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.lookupTimeout)
		defer cancel()
	}

	var (
		spfTXT, dmarcTXT []string
		spfErr, dmarcErr error
		wg               sync.WaitGroup
	)
	// Lookup errors are carried into the SPF and DMARC results.
	wg.Add(2)
	go func() {
		defer wg.Done()
		spfTXT, spfErr = s.resolver.LookupTXT(ctx, domain)
	}()
	go func() {
		defer wg.Done()
		dmarcTXT, dmarcErr = s.resolver.LookupTXT(ctx, mailauth.DMARCName(domain))
	}()
	wg.Wait()

	s.logLookupError("SPF", domain, spfErr)
	s.logLookupError("DMARC", domain, dmarcErr)

	return mailauth.AnalyzeSPF(domain, spfTXT, spfErr), mailauth.AnalyzeDMARC(domain, dmarcTXT, dmarcErr)
}

func (s *ScanService) logLookupError(record, domain string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrLookupsDisabled):
		s.logger.Debug(record+" lookup skipped", zap.String("domain", domain))
	default:
		s.logger.Warn(record+" lookup failed", zap.String("domain", domain), zap.Error(err))
	}
}

// Get returns a stored report
func (s *ScanService) Get(ctx context.Context, id string) (*ScanReport, error) {
	if !s.storeEnabled {
		return nil, ErrStoreDisabled
	}
	report, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load scan %s: %w", id, err)
	}
	return report, nil
}

// Stats summarizes stored reports created since the given time
func (s *ScanService) Stats(ctx context.Context, since time.Time) (*ScanStats, error) {
	if !s.storeEnabled {
		return nil, ErrStoreDisabled
	}
	stats, err := s.store.Stats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to compute scan statistics: %w", err)
	}
	return stats, nil
}

// Trend counts stored scans per day over a 7, 14 or 30 day window
func (s *ScanService) Trend(ctx context.Context, days int) ([]DailyCount, error) {
	if !s.storeEnabled {
		return nil, ErrStoreDisabled
	}
	now := s.now()
	times, err := s.store.ScanTimes(ctx, TrendStart(days, now))
	if err != nil {
		return nil, fmt.Errorf("failed to compute scan trend: %w", err)
	}
	return BuildTrend(times, days, now), nil
}

// IsPhishing reports whether a report's verdict is likely_phishing
func (s *ScanService) IsPhishing(report *ScanReport) bool {
	return report != nil && report.Heuristics != nil && report.Heuristics.Verdict == heuristics.VerdictPhishing
}

func isoDate(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := mail.ParseDate(raw)
	if err != nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
