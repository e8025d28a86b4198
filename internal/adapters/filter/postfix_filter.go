package filter

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/phish-scanner/internal/core"
	"github.com/mikey/phish-scanner/internal/heuristics"
	"github.com/mikey/phish-scanner/internal/whitelist"
)

// PostfixOptions configures the content filter
type PostfixOptions struct {
	ListenAddr     string
	BlockPhishing  bool
	VerdictHeader  string
	ScoreHeader    string
	RiskHeader     string
	ReasonHeader   string
	PostfixAddr    string
	PostfixPort    int
	PostfixEnabled bool
	SubjectPrefix  string
	ModifySubject  bool
	ScanTimeout    time.Duration
}

// PostfixFilter implements a Postfix content filter
type PostfixFilter struct {
	service   *core.ScanService
	whitelist *whitelist.Checker
	logger    *zap.Logger
	opts      PostfixOptions
	server    *smtp.Server
	forward   func(sender string, recipients []string, data []byte) error
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(
	service *core.ScanService,
	checker *whitelist.Checker,
	logger *zap.Logger,
	opts PostfixOptions,
) *PostfixFilter {
	// If subject prefix is not set but modify subject is enabled, use default prefix
	if opts.SubjectPrefix == "" && opts.ModifySubject {
		opts.SubjectPrefix = "[PHISHING?] "
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = 10 * time.Second
	}

	f := &PostfixFilter{
		service:   service,
		whitelist: checker,
		logger:    logger,
		opts:      opts,
	}
	f.forward = f.sendToPostfix
	return f
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.opts.ListenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	f.server.MaxRecipients = 50

	f.logger.Info("Postfix filter starting", zap.String("address", f.opts.ListenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				f.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail scans an email without forwarding it
func (f *PostfixFilter) ProcessEmail(ctx context.Context, email *core.ParsedEmail) (*core.ScanReport, error) {
	return f.service.Scan(ctx, email)
}

// handleMessage scans one message received over SMTP, then rejects it or
// forwards it to Postfix with the verdict headers added.
func (f *PostfixFilter) handleMessage(sender string, recipients []string, raw []byte) error {
	email, err := parseMessage(raw)
	if err != nil {
		f.logger.Error("Failed to parse email message", zap.Error(err), zap.String("sender", sender))
		return err
	}
	if email.From == "" {
		email.From = sender
	}
	if len(email.To) == 0 {
		email.To = recipients
	}

	if f.whitelist.IsWhitelisted(email.From) || f.whitelist.IsWhitelisted(sender) {
		f.logger.Info("Skipping phishing scan for whitelisted domain",
			zap.String("sender", sender),
			zap.String("from", email.From),
			zap.String("action", "whitelist_bypass"))
		return f.deliver(sender, recipients, raw)
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.opts.ScanTimeout)
	defer cancel()

	report, scanErr := f.service.Scan(ctx, email)
	if scanErr != nil {
		f.logger.Error("Failed to scan email",
			zap.Error(scanErr),
			zap.String("sender", sender))

		// Deliver unmodified apart from an error marker
		return f.deliver(sender, recipients, rewriteMessage(raw, []headerField{
			{Name: "X-Phish-Scan-Error", Value: scanErr.Error()},
		}, ""))
	}

	result := report.Heuristics
	if f.opts.BlockPhishing && f.service.IsPhishing(report) {
		f.logger.Info("Rejecting phishing email",
			zap.String("id", report.ID),
			zap.String("from", email.From),
			zap.String("from_domain", report.FromDomain),
			zap.Int("score", result.Score),
			zap.String("reason", result.Justification))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Message rejected as likely phishing (score: %d)", result.Score),
		}
	}

	reason := result.Justification
	if reason == "" {
		reason = result.Verdict
	}
	fields := []headerField{
		{Name: f.opts.VerdictHeader, Value: result.Verdict},
		{Name: f.opts.ScoreHeader, Value: strconv.Itoa(result.Score)},
		{Name: f.opts.RiskHeader, Value: result.Risk},
		{Name: f.opts.ReasonHeader, Value: reason},
	}

	prefix := ""
	if f.opts.ModifySubject && result.Verdict != heuristics.VerdictLegitimate {
		prefix = f.opts.SubjectPrefix
	}

	if err := f.deliver(sender, recipients, rewriteMessage(raw, fields, prefix)); err != nil {
		return err
	}

	f.logger.Info("Processed email",
		zap.String("id", report.ID),
		zap.String("from", email.From),
		zap.String("from_domain", report.FromDomain),
		zap.String("verdict", result.Verdict),
		zap.Int("score", result.Score))
	return nil
}

func (f *PostfixFilter) deliver(sender string, recipients []string, data []byte) error {
	if !f.opts.PostfixEnabled {
		f.logger.Warn("Postfix forwarding disabled, this is likely a misconfiguration")
		return nil
	}
	if err := f.forward(sender, recipients, data); err != nil {
		f.logger.Error("Failed to send email back to Postfix",
			zap.Error(err),
			zap.String("sender", sender))
		return err
	}
	return nil
}

// sendToPostfix sends the processed email back to Postfix on the configured port using go-smtp
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := net.JoinHostPort(f.opts.PostfixAddr, strconv.Itoa(f.opts.PostfixPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}

	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// the message is already accepted
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		filter:     b.filter,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data handles the email data
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}
	return s.filter.handleMessage(s.sender, s.recipients, raw)
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
