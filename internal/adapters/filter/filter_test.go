package filter

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/phish-scanner/internal/adapters/resolver"
	"github.com/mikey/phish-scanner/internal/adapters/store"
	"github.com/mikey/phish-scanner/internal/core"
	"github.com/mikey/phish-scanner/internal/heuristics"
	"github.com/mikey/phish-scanner/internal/whitelist"
)

const phishMessage = "From: PayPal Security <alert@paypal-verify.xyz>\r\n" +
	"To: Victim <victim@example.com>\r\n" +
	"Reply-To: desk@other-helpdesk.example\r\n" +
	"Subject: =?utf-8?q?URGENT=3A_account_locked?=\r\n" +
	"Message-ID: <1@paypal-verify.xyz>\r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 -0700\r\n" +
	"X-Phish-Verdict: likely_legitimate\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Verify immediately at http://login-check.top/x.\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Verify <a href=\"http://login-check.top/x\">here</a></p>\r\n" +
	"--XYZ--\r\n"

const plainMessage = "From: Alice <alice@example.org>\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Lunch\r\n" +
	"\r\n" +
	"See you at noon.\r\n"

func newTestService() *core.ScanService {
	logger := zap.NewNop()
	engine := heuristics.NewEngine(heuristics.DefaultVocabulary(), heuristics.Options{}, logger)
	return core.NewScanService(engine, resolver.NoopResolver{}, nil, logger, false, 0)
}

type captured struct {
	sender     string
	recipients []string
	data       []byte
	calls      int
}

func newTestFilter(opts PostfixOptions, checker *whitelist.Checker) (*PostfixFilter, *captured) {
	opts.PostfixEnabled = true
	opts.VerdictHeader = "X-Phish-Verdict"
	opts.ScoreHeader = "X-Phish-Score"
	opts.RiskHeader = "X-Phish-Risk"
	opts.ReasonHeader = "X-Phish-Reason"

	f := NewPostfixFilter(newTestService(), checker, zap.NewNop(), opts)
	c := &captured{}
	f.forward = func(sender string, recipients []string, data []byte) error {
		c.sender, c.recipients, c.data = sender, recipients, data
		c.calls++
		return nil
	}
	return f, c
}

func TestParseMessage(t *testing.T) {
	email, err := parseMessage([]byte(phishMessage))
	if err != nil {
		t.Fatal(err)
	}
	if email.Subject != "URGENT: account locked" {
		t.Errorf("Subject = %q", email.Subject)
	}
	if email.From != "PayPal Security <alert@paypal-verify.xyz>" {
		t.Errorf("From = %q", email.From)
	}
	if len(email.To) != 1 || email.To[0] != "victim@example.com" {
		t.Errorf("To = %v", email.To)
	}
	if !strings.Contains(email.TextBody, "http://login-check.top/x") || !strings.Contains(email.HTMLBody, "<a href") {
		t.Errorf("bodies = %q / %q", email.TextBody, email.HTMLBody)
	}
	if email.RawSize != len(phishMessage) {
		t.Errorf("RawSize = %d", email.RawSize)
	}
}

func TestRewriteMessage(t *testing.T) {
	out := string(rewriteMessage([]byte(plainMessage), []headerField{
		{Name: "X-Phish-Verdict", Value: "suspicious"},
		{Name: "X-Phish-Reason", Value: "Suspicious:\r\n injected"},
	}, "[PHISHING?] "))

	if !strings.HasPrefix(out, "X-Phish-Verdict: suspicious\r\nX-Phish-Reason: Suspicious: injected\r\n") {
		t.Errorf("headers not prepended:\n%s", out)
	}
	if !strings.Contains(out, "Subject: [PHISHING?] Lunch\r\n") {
		t.Errorf("subject not prefixed:\n%s", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\nSee you at noon.\r\n") {
		t.Errorf("body changed:\n%s", out)
	}

	again := string(rewriteMessage([]byte(out), nil, "[PHISHING?] "))
	if strings.Count(again, "[PHISHING?]") != 1 {
		t.Errorf("prefix applied twice:\n%s", again)
	}
}

func TestHandleMessageTagsAndForwards(t *testing.T) {
	f, c := newTestFilter(PostfixOptions{ModifySubject: true}, nil)

	if err := f.handleMessage("alert@paypal-verify.xyz", []string{"victim@example.com"}, []byte(phishMessage)); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	if c.calls != 1 {
		t.Fatalf("forward calls = %d", c.calls)
	}

	out := string(c.data)
	if !strings.HasPrefix(out, "X-Phish-Verdict: likely_phishing\r\n") {
		t.Errorf("missing verdict header:\n%s", out)
	}
	if strings.Count(out, "X-Phish-Verdict:") != 1 {
		t.Error("forged verdict header was not removed")
	}
	if !strings.Contains(out, "X-Phish-Risk: high\r\n") || !strings.Contains(out, "X-Phish-Reason: Probable phishing: ") {
		t.Errorf("missing risk/reason headers:\n%s", out)
	}
	if !strings.Contains(out, "Subject: [PHISHING?] URGENT: account locked\r\n") {
		t.Errorf("subject not prefixed:\n%s", out)
	}
}

func TestHandleMessageBlocksPhishing(t *testing.T) {
	f, c := newTestFilter(PostfixOptions{BlockPhishing: true}, nil)

	err := f.handleMessage("alert@paypal-verify.xyz", []string{"victim@example.com"}, []byte(phishMessage))
	var smtpErr *smtp.SMTPError
	if !errors.As(err, &smtpErr) {
		t.Fatalf("err = %v, want *smtp.SMTPError", err)
	}
	if smtpErr.Code != 550 || smtpErr.EnhancedCode != (smtp.EnhancedCode{5, 7, 1}) {
		t.Errorf("SMTP error = %d %v", smtpErr.Code, smtpErr.EnhancedCode)
	}
	if c.calls != 0 {
		t.Error("blocked message was forwarded")
	}

	if err := f.handleMessage("alice@example.org", []string{"bob@example.com"}, []byte(plainMessage)); err != nil {
		t.Errorf("legitimate message rejected: %v", err)
	}
	if c.calls != 1 || !bytes.Contains(c.data, []byte("X-Phish-Verdict: likely_legitimate")) {
		t.Errorf("legitimate message not forwarded with headers")
	}
}

func TestHandleMessageWhitelist(t *testing.T) {
	checker := whitelist.NewChecker([]string{"paypal-verify.xyz"}, nil)
	f, c := newTestFilter(PostfixOptions{BlockPhishing: true}, checker)

	if err := f.handleMessage("alert@paypal-verify.xyz", []string{"victim@example.com"}, []byte(phishMessage)); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	if c.calls != 1 || string(c.data) != phishMessage {
		t.Error("whitelisted message should be forwarded unchanged")
	}
}

func TestCliFilterJSON(t *testing.T) {
	cli, err := NewCliFilter(newTestService(), nil, zap.NewNop(), false, true)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	cli.out = &buf

	report, err := cli.ScanMessage(context.Background(), strings.NewReader(phishMessage))
	if err != nil {
		t.Fatal(err)
	}
	if report.Heuristics.Verdict != heuristics.VerdictPhishing {
		t.Errorf("verdict = %s", report.Heuristics.Verdict)
	}
	if !strings.Contains(buf.String(), `"verdict": "likely_phishing"`) {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestCliFilterWhitelist(t *testing.T) {
	checker := whitelist.NewChecker([]string{"paypal-verify.xyz"}, nil)
	cli, err := NewCliFilter(newTestService(), checker, zap.NewNop(), false, false)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	cli.out = &buf

	report, err := cli.ScanMessage(context.Background(), strings.NewReader(phishMessage))
	if err != nil {
		t.Fatal(err)
	}
	if report != nil {
		t.Errorf("whitelisted sender was scanned: %+v", report)
	}
	if !strings.Contains(buf.String(), "whitelisted") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestCliFilterSummary(t *testing.T) {
	cli, err := NewCliFilter(newTestService(), nil, zap.NewNop(), true, false)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	cli.out = &buf

	if _, err := cli.ScanMessage(context.Background(), strings.NewReader(plainMessage)); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"From: Alice <alice@example.org>", "Verdict: likely_legitimate", "See you at noon."} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}

func newStoredCli(t *testing.T, jsonOutput bool) (*CliFilter, *bytes.Buffer) {
	t.Helper()
	logger := zap.NewNop()
	repo := store.NewMemoryStore(logger, time.Hour, 0)
	t.Cleanup(repo.Stop)

	engine := heuristics.NewEngine(heuristics.DefaultVocabulary(), heuristics.Options{}, logger)
	service := core.NewScanService(engine, resolver.NoopResolver{}, repo, logger, true, 0)
	cli, err := NewCliFilter(service, nil, logger, false, jsonOutput)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	cli.out = &buf
	return cli, &buf
}

func TestCliFilterShowScan(t *testing.T) {
	cli, buf := newStoredCli(t, true)
	ctx := context.Background()

	report, err := cli.ScanMessage(ctx, strings.NewReader(phishMessage))
	if err != nil {
		t.Fatal(err)
	}
	buf.Reset()

	if err := cli.ShowScan(ctx, report.ID); err != nil {
		t.Fatalf("ShowScan: %v", err)
	}
	if !strings.Contains(buf.String(), `"id": "`+report.ID+`"`) {
		t.Errorf("unexpected output:\n%s", buf.String())
	}

	err = cli.ShowScan(ctx, "missing")
	if err == nil || !strings.Contains(err.Error(), "no stored scan with ID missing") {
		t.Errorf("missing scan err = %v", err)
	}
}

func TestCliFilterPrintStats(t *testing.T) {
	cli, buf := newStoredCli(t, false)
	ctx := context.Background()

	for _, msg := range []string{phishMessage, plainMessage} {
		if _, err := cli.ScanMessage(ctx, strings.NewReader(msg)); err != nil {
			t.Fatal(err)
		}
	}
	buf.Reset()

	if err := cli.PrintStats(ctx, time.Now().Add(-time.Hour), 14); err != nil {
		t.Fatalf("PrintStats: %v", err)
	}
	out := buf.String()
	today := time.Now().UTC().Format(time.DateOnly)
	for _, want := range []string{"Total: 2", "Phishing: 1", "Phish rate: 50.0%", today + " 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "\n20"); n != 14 {
		t.Errorf("printed %d trend days, want 14", n)
	}
}

func TestCliFilterStoreDisabled(t *testing.T) {
	cli, err := NewCliFilter(newTestService(), nil, zap.NewNop(), false, true)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := cli.ShowScan(ctx, "x"); err == nil || !strings.Contains(err.Error(), "store is disabled") {
		t.Errorf("ShowScan err = %v", err)
	}
	if err := cli.PrintStats(ctx, time.Time{}, 7); err == nil || !strings.Contains(err.Error(), "store is disabled") {
		t.Errorf("PrintStats err = %v", err)
	}
}
