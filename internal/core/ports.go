package core

import (
	"context"
	"errors"
	"time"
)

// ErrLookupsDisabled is returned by a TXTResolver that does not query DNS
var ErrLookupsDisabled = errors.New("dns lookups are disabled")

// TXTResolver looks up DNS TXT records
type TXTResolver interface {
	// LookupTXT returns the TXT strings published at name. A name without
	// records yields an empty slice and no error.
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// ScanRepository defines the interface for storing scan reports
type ScanRepository interface {
	// Save stores a report
	Save(ctx context.Context, report *ScanReport) error

	// Get retrieves a report by ID
	Get(ctx context.Context, id string) (*ScanReport, error)

	// Delete removes a report
	Delete(ctx context.Context, id string) error

	// Stats summarizes reports created at or after since
	Stats(ctx context.Context, since time.Time) (*ScanStats, error)

	// ScanTimes returns the creation times of reports created at or after
	// since, in no particular order
	ScanTimes(ctx context.Context, since time.Time) ([]time.Time, error)

	// Cleanup removes expired reports
	Cleanup(ctx context.Context) error
}
