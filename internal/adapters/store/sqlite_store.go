package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the ScanRepository interface
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(dbPath string, logger *zap.Logger, retention, cleanupFreq time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	err = createSchema(db, `
		CREATE TABLE IF NOT EXISTS phish_scans (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0,
			from_addr TEXT,
			from_domain TEXT,
			to_addrs TEXT,
			reply_to TEXT,
			subject TEXT,
			message_id TEXT,
			date_raw TEXT,
			date_iso TEXT,
			text_length INTEGER,
			html_length INTEGER,
			raw_size INTEGER,
			attachments_count INTEGER,
			urls_count INTEGER,
			score INTEGER,
			risk TEXT,
			verdict TEXT,
			urls_json TEXT,
			spf_json TEXT,
			dmarc_json TEXT,
			heuristics_json TEXT
		)
	`,
		`CREATE INDEX IF NOT EXISTS idx_phish_scans_created_at ON phish_scans(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_phish_scans_expires_at ON phish_scans(expires_at)`,
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	logger.Info("Opened SQLite scan store", zap.String("path", dbPath))
	return &SQLiteStore{sqlStore: newSQLStore(db, "sqlite", logger, retention, cleanupFreq)}, nil
}
