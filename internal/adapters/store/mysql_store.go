package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the ScanRepository interface
type MySQLStore struct {
	*sqlStore
}

// NewMySQLStore creates a new MySQL store
func NewMySQLStore(dsn string, logger *zap.Logger, retention, cleanupFreq time.Duration) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	err = createSchema(db, `
		CREATE TABLE IF NOT EXISTS phish_scans (
			id VARCHAR(36) PRIMARY KEY,
			created_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL DEFAULT 0,
			from_addr VARCHAR(512),
			from_domain VARCHAR(255),
			to_addrs TEXT,
			reply_to VARCHAR(512),
			subject TEXT,
			message_id VARCHAR(512),
			date_raw VARCHAR(255),
			date_iso VARCHAR(64),
			text_length INT,
			html_length INT,
			raw_size INT,
			attachments_count INT,
			urls_count INT,
			score INT,
			risk VARCHAR(16),
			verdict VARCHAR(32),
			urls_json MEDIUMTEXT,
			spf_json MEDIUMTEXT,
			dmarc_json MEDIUMTEXT,
			heuristics_json MEDIUMTEXT,
			INDEX idx_created_at (created_at),
			INDEX idx_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	logger.Info("Connected to MySQL scan store")
	return &MySQLStore{sqlStore: newSQLStore(db, "mysql", logger, retention, cleanupFreq)}, nil
}
