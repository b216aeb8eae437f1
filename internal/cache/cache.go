// Package cache memoises computed reports in process memory.
package cache

import (
	"context"
	"time"

	"clinic/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically drops expired entries from registered caches.
type Manager struct {
	caches []Cleaner
	logger *log.Logger
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{logger: logger.WithComponent(log.ComponentCache)}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// Sweep runs one cleanup pass and returns the number of removed entries.
func (m *Manager) Sweep() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Run sweeps every interval until ctx is cancelled. It is meant to run in
// its own goroutine or errgroup slot.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("Expired cache entries removed", "count", n)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
