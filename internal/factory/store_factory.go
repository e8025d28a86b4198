package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/phish-scanner/internal/adapters/store"
	"github.com/mikey/phish-scanner/internal/config"
	"github.com/mikey/phish-scanner/internal/core"
	"go.uber.org/zap"
)

// StoreFactory creates scan repositories based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateScanRepository creates a scan repository based on the configuration.
// It returns nil when the store is disabled.
func (f *StoreFactory) CreateScanRepository() (core.ScanRepository, error) {
	storeConfig, err := f.cfg.GetStore()
	if err != nil {
		return nil, fmt.Errorf("invalid store configuration: %w", err)
	}
	if !storeConfig.Enabled {
		f.logger.Info("Scan store disabled")
		return nil, nil
	}

	switch storeConfig.Type {
	case "memory":
		return store.NewMemoryStore(f.logger, storeConfig.Retention, storeConfig.CleanupFrequency), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(storeConfig.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteStore(storeConfig.SQLitePath, f.logger, storeConfig.Retention, storeConfig.CleanupFrequency)
	case "mysql":
		return store.NewMySQLStore(storeConfig.MySQLDSN, f.logger, storeConfig.Retention, storeConfig.CleanupFrequency)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeConfig.Type)
	}
}

// IsStoreEnabled returns whether scan reports are persisted
func (f *StoreFactory) IsStoreEnabled() bool {
	return f.cfg.GetBool("store.enabled")
}
