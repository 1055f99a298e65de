// Package journal persists emitted signals to Postgres. The journal is an
// optional, insert-only sink: scans run identically with or without it, and
// a failed insert is logged per signal, never propagated into the scan.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/signalrun/internal/domain"
)

const defaultTimeout = 5 * time.Second

// Schema creates the signals table. Applied with CREATE IF NOT EXISTS so
// repeated startups are harmless.
const Schema = `
CREATE TABLE IF NOT EXISTS signals (
	id             TEXT PRIMARY KEY,
	symbol         TEXT NOT NULL,
	strategy       TEXT NOT NULL,
	profile        TEXT NOT NULL,
	direction      TEXT NOT NULL,
	setup          TEXT NOT NULL,
	entry_min      DOUBLE PRECISION NOT NULL,
	entry_max      DOUBLE PRECISION NOT NULL,
	stop           DOUBLE PRECISION NOT NULL,
	target1        DOUBLE PRECISION NOT NULL,
	target2        DOUBLE PRECISION NOT NULL,
	target3        DOUBLE PRECISION NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	score          DOUBLE PRECISION NOT NULL,
	risk_reward    DOUBLE PRECISION NOT NULL,
	rationale      TEXT NOT NULL,
	trend_interval TEXT NOT NULL,
	exec_interval  TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
)`

// Journal writes signals to one table. A nil *Journal is a no-op sink so
// callers never branch on whether journaling is configured.
type Journal struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Open connects, verifies the connection and ensures the schema. An empty
// DSN returns a nil journal, which is valid and does nothing.
func Open(ctx context.Context, dsn string) (*Journal, error) {
	if dsn == "" {
		return nil, nil
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect journal db: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure signals schema: %w", err)
	}
	return &Journal{db: db, timeout: defaultTimeout}, nil
}

// New wraps an existing connection; tests inject sqlmock through here.
func New(db *sqlx.DB) *Journal {
	return &Journal{db: db, timeout: defaultTimeout}
}

// Close releases the connection pool.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

const insertSignal = `
INSERT INTO signals (
	id, symbol, strategy, profile, direction, setup,
	entry_min, entry_max, stop, target1, target2, target3,
	confidence, score, risk_reward, rationale,
	trend_interval, exec_interval, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (id) DO NOTHING`

// Record inserts one signal. Duplicate ids are ignored, so replaying a scan
// result is safe.
func (j *Journal) Record(ctx context.Context, s domain.TradingSignal) error {
	if j == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	_, err := j.db.ExecContext(ctx, insertSignal,
		s.ID, s.Symbol, s.Strategy, s.Profile, string(s.Direction), string(s.Setup),
		s.EntryMin, s.EntryMax, s.Stop, s.Target1, s.Target2, s.Target3,
		s.Confidence, s.Score, s.RiskReward, s.Rationale,
		s.TrendInterval, s.ExecInterval, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert signal %s: %w", s.ID, err)
	}
	return nil
}

// RecordAll inserts a batch, continuing past per-signal failures. The
// number of successful inserts is returned.
func (j *Journal) RecordAll(ctx context.Context, signals []domain.TradingSignal) int {
	if j == nil {
		return 0
	}
	ok := 0
	for _, s := range signals {
		if err := j.Record(ctx, s); err != nil {
			log.Warn().Err(err).Str("signal", s.ID).Msg("journal insert failed")
			continue
		}
		ok++
	}
	return ok
}
