// Package provider supplies market data to the scan engine: the tradable
// universe, klines and order-book snapshots. The live implementation talks
// to Bybit v5 public endpoints behind a rate limiter, a circuit breaker and
// a TTL cache; a deterministic fake backs tests and offline runs.
package provider

import (
	"context"
	"fmt"

	"github.com/sawpanic/signalrun/internal/domain"
	"github.com/sawpanic/signalrun/internal/universe"
)

// ErrCode classifies provider failures for logs and metrics. The engine
// treats every provider error the same way: skip the symbol, keep scanning.
type ErrCode string

const (
	CodeUnavailable ErrCode = "unavailable"
	CodeTimeout     ErrCode = "timeout"
	CodeRateLimited ErrCode = "rate_limited"
	CodeBadResponse ErrCode = "bad_response"
)

// Error is a typed provider failure.
type Error struct {
	Venue string
	Op    string
	Code  ErrCode
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Venue, e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with venue/op/code context.
func NewError(venue, op string, code ErrCode, err error) *Error {
	return &Error{Venue: venue, Op: op, Code: code, Err: err}
}

// Recorder receives provider instrumentation. metrics.Set implements it;
// providers hold it as an optional field and never call a nil recorder.
type Recorder interface {
	RecordProviderRequest(venue, op, code string, seconds float64)
	RecordCacheHit(venue string)
	RecordCacheMiss(venue string)
}

// UniverseProvider lists tradable instruments with 24h turnover.
type UniverseProvider interface {
	Universe(ctx context.Context) ([]universe.Instrument, error)
}

// KlineProvider fetches candles for one symbol and interval. Rows come
// back in venue order, newest first; callers normalize with
// domain.NewSeries before any indicator work.
type KlineProvider interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error)
}

// OrderBookProvider fetches a depth snapshot. Optional: strategies without
// the micro score never call it, and callers must treat failures as a
// neutral book, not a rejection.
type OrderBookProvider interface {
	OrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error)
}

// MarketData bundles the three feeds a full scan needs.
type MarketData interface {
	UniverseProvider
	KlineProvider
	OrderBookProvider
}
