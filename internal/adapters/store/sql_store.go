package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mikey/phish-scanner/internal/core"
)

const scanColumns = `id, created_at, expires_at, from_addr, from_domain, to_addrs, reply_to,
	subject, message_id, date_raw, date_iso, text_length, html_length, raw_size,
	attachments_count, urls_count, score, risk, verdict,
	urls_json, spf_json, dmarc_json, heuristics_json`

// sqlStore holds the queries shared by the SQLite and MySQL stores. Both
// dialects accept the same statements; only the schema differs.
type sqlStore struct {
	db          *sql.DB
	logger      *zap.Logger
	retention   time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	name        string
}

func newSQLStore(db *sql.DB, name string, logger *zap.Logger, retention, cleanupFreq time.Duration) *sqlStore {
	s := &sqlStore{
		db:          db,
		logger:      logger,
		retention:   retention,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		name:        name,
	}

	// Start background cleanup
	if cleanupFreq > 0 {
		go startCleanupTask(s, logger, cleanupFreq, s.stopCh)
	}

	return s
}

func createSchema(db *sql.DB, statements ...string) error {
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save stores a report
func (s *sqlStore) Save(ctx context.Context, report *core.ScanReport) error {
	if report == nil || report.ID == "" {
		return errors.New("report has no id")
	}

	to, err := json.Marshal(report.To)
	if err != nil {
		return fmt.Errorf("failed to encode recipients: %w", err)
	}
	urls, err := json.Marshal(report.URLs)
	if err != nil {
		return fmt.Errorf("failed to encode urls: %w", err)
	}
	spf, err := json.Marshal(report.SPF)
	if err != nil {
		return fmt.Errorf("failed to encode spf result: %w", err)
	}
	dmarc, err := json.Marshal(report.DMARC)
	if err != nil {
		return fmt.Errorf("failed to encode dmarc result: %w", err)
	}
	heur, err := json.Marshal(report.Heuristics)
	if err != nil {
		return fmt.Errorf("failed to encode heuristics: %w", err)
	}

	var expiresAt int64
	if exp := expiry(report.CreatedAt, s.retention); !exp.IsZero() {
		expiresAt = exp.UnixMilli()
	}

	risk, verdict := "", ""
	if report.Heuristics != nil {
		risk, verdict = report.Heuristics.Risk, report.Heuristics.Verdict
	}

	_, err = s.db.ExecContext(ctx, `
		REPLACE INTO phish_scans (`+scanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID, report.CreatedAt.UnixMilli(), expiresAt,
		report.From, report.FromDomain, string(to), report.ReplyTo,
		report.Subject, report.MessageID, report.DateRaw, report.DateISO,
		report.TextLength, report.HTMLLength, report.RawSize,
		report.AttachmentCount, report.URLCount, report.Score(), risk, verdict,
		string(urls), string(spf), string(dmarc), string(heur),
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan report: %w", err)
	}
	return nil
}

// Get retrieves a report by ID
func (s *sqlStore) Get(ctx context.Context, id string) (*core.ScanReport, error) {
	var (
		r                              core.ScanReport
		createdAt, expiresAt           int64
		score                          int
		risk, verdict                  string
		to, urls, spf, dmarc, heurJSON string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT `+scanColumns+`
		FROM phish_scans
		WHERE id = ? AND (expires_at = 0 OR expires_at > ?)
	`, id, time.Now().UnixMilli()).Scan(
		&r.ID, &createdAt, &expiresAt,
		&r.From, &r.FromDomain, &to, &r.ReplyTo,
		&r.Subject, &r.MessageID, &r.DateRaw, &r.DateISO,
		&r.TextLength, &r.HTMLLength, &r.RawSize,
		&r.AttachmentCount, &r.URLCount, &score, &risk, &verdict,
		&urls, &spf, &dmarc, &heurJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query scan report: %w", err)
	}

	r.CreatedAt = time.UnixMilli(createdAt).UTC()
	for column, pair := range map[string]struct {
		raw  string
		into any
	}{
		"to_addrs":        {to, &r.To},
		"urls_json":       {urls, &r.URLs},
		"spf_json":        {spf, &r.SPF},
		"dmarc_json":      {dmarc, &r.DMARC},
		"heuristics_json": {heurJSON, &r.Heuristics},
	} {
		if pair.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(pair.raw), pair.into); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", column, err)
		}
	}

	return &r, nil
}

// Delete removes a report
func (s *sqlStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM phish_scans
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scan report: %w", err)
	}
	return nil
}

// Stats summarizes reports created at or after since
func (s *sqlStore) Stats(ctx context.Context, since time.Time) (*core.ScanStats, error) {
	var total, phishing, suspicious, legitimate int64

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN score >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN score >= ? AND score < ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN score < ? THEN 1 ELSE 0 END), 0)
		FROM phish_scans
		WHERE created_at >= ? AND (expires_at = 0 OR expires_at > ?)
	`,
		core.PhishingScore,
		core.SuspiciousScore, core.PhishingScore,
		core.SuspiciousScore,
		since.UnixMilli(), time.Now().UnixMilli(),
	).Scan(&total, &phishing, &suspicious, &legitimate)
	if err != nil {
		return nil, fmt.Errorf("failed to compute scan statistics: %w", err)
	}

	return &core.ScanStats{
		Since:      since,
		Total:      int(total),
		Phishing:   int(phishing),
		Suspicious: int(suspicious),
		Legitimate: int(legitimate),
		PhishRate:  core.PhishRate(int(phishing), int(total)),
	}, nil
}

// ScanTimes returns the creation times of reports created at or after since
func (s *sqlStore) ScanTimes(ctx context.Context, since time.Time) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT created_at FROM phish_scans
		WHERE created_at >= ? AND (expires_at = 0 OR expires_at > ?)
	`, since.UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query scan times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var createdAt int64
		if err := rows.Scan(&createdAt); err != nil {
			return nil, fmt.Errorf("failed to read scan time: %w", err)
		}
		times = append(times, time.UnixMilli(createdAt).UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scan times: %w", err)
	}
	return times, nil
}

// Cleanup removes expired reports
func (s *sqlStore) Cleanup(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM phish_scans
		WHERE expires_at > 0 AND expires_at <= ?
	`, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to clean up expired scan reports: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		s.logger.Debug("Cleaned up expired scan reports", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (s *sqlStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", zap.String("store", s.name), zap.Error(err))
		}
	})
}
