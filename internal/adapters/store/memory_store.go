package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-scanner/internal/core"
)

// ErrNotFound is returned when a scan report is not found
var ErrNotFound = errors.New("scan report not found")

type memoryEntry struct {
	report    *core.ScanReport
	expiresAt time.Time
}

// MemoryStore is an in-memory implementation of the ScanRepository interface
type MemoryStore struct {
	entries     map[string]memoryEntry
	mu          sync.RWMutex
	logger      *zap.Logger
	retention   time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryStore creates a new in-memory store. Reports are kept for
// retention; zero keeps them until the process exits.
func NewMemoryStore(logger *zap.Logger, retention, cleanupFreq time.Duration) *MemoryStore {
	store := &MemoryStore{
		entries:     make(map[string]memoryEntry),
		logger:      logger,
		retention:   retention,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	// Start background cleanup
	if cleanupFreq > 0 {
		go startCleanupTask(store, logger, cleanupFreq, store.stopCh)
	}

	return store
}

// Save stores a report
func (s *MemoryStore) Save(ctx context.Context, report *core.ScanReport) error {
	if report == nil || report.ID == "" {
		return errors.New("report has no id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[report.ID] = memoryEntry{
		report:    report,
		expiresAt: expiry(report.CreatedAt, s.retention),
	}
	return nil
}

// Get retrieves a report by ID
func (s *MemoryStore) Get(ctx context.Context, id string) (*core.ScanReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok || expired(entry.expiresAt, time.Now()) {
		return nil, ErrNotFound
	}
	return entry.report, nil
}

// Delete removes a report
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
	return nil
}

// Stats summarizes reports created at or after since
func (s *MemoryStore) Stats(ctx context.Context, since time.Time) (*core.ScanStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	stats := &core.ScanStats{Since: since}
	for _, entry := range s.entries {
		if expired(entry.expiresAt, now) || entry.report.CreatedAt.Before(since) {
			continue
		}
		stats.Add(entry.report.Score())
	}
	return stats, nil
}

// ScanTimes returns the creation times of reports created at or after since
func (s *MemoryStore) ScanTimes(ctx context.Context, since time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var times []time.Time
	for _, entry := range s.entries {
		if expired(entry.expiresAt, now) || entry.report.CreatedAt.Before(since) {
			continue
		}
		times = append(times, entry.report.CreatedAt)
	}
	return times, nil
}

// Cleanup removes expired reports
func (s *MemoryStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	expiredCount := 0
	for id, entry := range s.entries {
		if expired(entry.expiresAt, now) {
			delete(s.entries, id)
			expiredCount++
		}
	}

	s.logger.Debug("Cleaned up expired scan reports", zap.Int("expired_count", expiredCount))
	return nil
}

// Stop stops the background cleanup task
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func expiry(created time.Time, retention time.Duration) time.Time {
	if retention <= 0 {
		return time.Time{}
	}
	return created.Add(retention)
}

func expired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}

// startCleanupTask periodically removes expired reports until stopCh closes
func startCleanupTask(repo core.ScanRepository, logger *zap.Logger, freq time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := repo.Cleanup(context.Background()); err != nil {
				logger.Error("Failed to clean up scan store", zap.Error(err))
			}
		case <-stopCh:
			return
		}
	}
}
