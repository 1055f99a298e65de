// Package cooldown blocks re-signaling a symbol while its per-strategy
// window is open. The tracker takes an injected clock so tests can travel
// in time, and a pluggable store so windows survive restarts when Redis is
// configured.
package cooldown

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
)

// Store persists cooldown expiries keyed by "strategy:symbol".
type Store interface {
	// Get returns the recorded expiry, or the zero time when absent.
	Get(ctx context.Context, key string) (time.Time, error)
	// Set records the expiry. ttl bounds the entry's lifetime in stores
	// that support expiration.
	Set(ctx context.Context, key string, until time.Time, ttl time.Duration) error
}

// Tracker answers cooldown eligibility. Store failures degrade open: a
// symbol is treated as eligible and the error is logged, because a stalled
// scan is worse than a duplicate signal.
type Tracker struct {
	store Store
	clk   clock.Clock
}

// NewTracker wires a tracker. A nil store falls back to the in-memory
// implementation and a nil clock to the wall clock.
func NewTracker(store Store, clk clock.Clock) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Tracker{store: store, clk: clk}
}

func cooldownKey(strategy, symbol string) string {
	return strategy + ":" + symbol
}

// Eligible reports whether symbol may be evaluated under strategy now.
func (t *Tracker) Eligible(ctx context.Context, strategy, symbol string) bool {
	until, err := t.store.Get(ctx, cooldownKey(strategy, symbol))
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Str("strategy", strategy).
			Msg("cooldown store read failed, treating symbol as eligible")
		return true
	}
	return !t.clk.Now().Before(until)
}

// Record opens a cooldown window of the given length starting now and
// returns its expiry. A later acceptance overwrites an earlier one.
func (t *Tracker) Record(ctx context.Context, strategy, symbol string, window time.Duration) time.Time {
	until := t.clk.Now().Add(window)
	if err := t.store.Set(ctx, cooldownKey(strategy, symbol), until, window); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Str("strategy", strategy).
			Msg("cooldown store write failed")
	}
	return until
}

// MemoryStore is the default process-local store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]time.Time)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[key], nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key string, until time.Time, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = until
	return nil
}

// Len returns the number of tracked windows, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Purge drops entries that expired before the given time.
func (m *MemoryStore) Purge(before time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, until := range m.entries {
		if until.Before(before) {
			delete(m.entries, k)
		}
	}
}
