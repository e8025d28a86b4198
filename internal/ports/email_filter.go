package ports

import (
	"context"

	"github.com/mikey/phish-scanner/internal/core"
)

// EmailFilter defines the interface for email filtering
type EmailFilter interface {
	// ProcessEmail scans an email and returns the report
	ProcessEmail(ctx context.Context, email *core.ParsedEmail) (*core.ScanReport, error)

	// Start starts the email filter service
	Start() error

	// Stop stops the email filter service
	Stop() error
}
