package provider

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/signalrun/internal/domain"
	"github.com/sawpanic/signalrun/internal/universe"
)

// Fake generates deterministic market data for tests and offline runs.
// The same seed, symbol, interval and limit always produce the same
// candles because generation is anchored to a fixed time, not the wall
// clock. Prices follow a seeded random walk around a per-symbol base with
// a configurable trend bias, so an upward bias eventually stacks the EMAs
// and lets full scans produce candidates without a network.
type Fake struct {
	seed       int64
	volatility float64
	trendBias  float64
	anchor     time.Time
	basePrices map[string]float64
}

func NewFake(seed int64) *Fake {
	return &Fake{
		seed:       seed,
		volatility: 0.02,
		trendBias:  0.0,
		anchor:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		basePrices: defaultBasePrices(),
	}
}

func defaultBasePrices() map[string]float64 {
	return map[string]float64{
		"BTCUSDT":  50000,
		"ETHUSDT":  3000,
		"SOLUSDT":  150,
		"BNBUSDT":  580,
		"XRPUSDT":  0.55,
		"ADAUSDT":  0.45,
		"DOGEUSDT": 0.12,
		"LINKUSDT": 14,
		"AVAXUSDT": 35,
		"DOTUSDT":  6.5,
		"TONUSDT":  7.2,
		"NEARUSDT": 5.8,
	}
}

// SetVolatility sets the per-candle noise scale (0.02 = 2%).
func (f *Fake) SetVolatility(v float64) { f.volatility = v }

// SetTrendBias sets a directional drift, roughly percent per hour / 10.
// Positive values trend up.
func (f *Fake) SetTrendBias(bias float64) { f.trendBias = bias }

// SetBasePrice adds or overrides a symbol's base price, which also adds
// the symbol to the universe.
func (f *Fake) SetBasePrice(symbol string, price float64) {
	f.basePrices[strings.ToUpper(symbol)] = price
}

// SetAnchor pins the timestamp the newest candle is generated at.
func (f *Fake) SetAnchor(t time.Time) { f.anchor = t.UTC() }

func (f *Fake) Universe(ctx context.Context) ([]universe.Instrument, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError("fake", "universe", CodeTimeout, err)
	}
	symbols := make([]string, 0, len(f.basePrices))
	for s := range f.basePrices {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	instruments := make([]universe.Instrument, 0, len(symbols))
	for _, s := range symbols {
		rng := rand.New(rand.NewSource(f.seed + symbolSeed(s)))
		turnover := 1e6 + rng.Float64()*5e8
		instruments = append(instruments, universe.Instrument{
			Symbol:    s,
			LastPrice: f.priceAt(s, f.anchor),
			Turnover:  turnover,
		})
	}
	return instruments, nil
}

// Klines returns candles in venue order, newest first, matching the live
// provider contract.
func (f *Fake) Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError("fake", "klines", CodeTimeout, err)
	}
	symbol = strings.ToUpper(symbol)
	dur := intervalDuration(interval)
	start := f.anchor.Add(-time.Duration(limit) * dur)

	candles := make([]domain.Candle, 0, limit)
	for i := 0; i < limit; i++ {
		ts := start.Add(time.Duration(i+1) * dur)
		open := f.priceAt(symbol, ts)
		close := f.priceAt(symbol, ts.Add(dur))

		rng := rand.New(rand.NewSource(f.seed + symbolSeed(symbol) + ts.Unix()))
		rangePct := 0.5 * f.volatility * rng.Float64()
		high := math.Max(open, close) * (1 + rangePct)
		low := math.Min(open, close) * (1 - rangePct)

		move := math.Abs(close-open) / open
		volume := 100 + move*10000 + rng.Float64()*200
		typical := (high + low + close) / 3

		candles = append(candles, domain.Candle{
			OpenTime: ts,
			Open:     open,
			High:     high,
			Low:      low,
			Close:    close,
			Volume:   volume,
			Turnover: volume * typical,
		})
	}

	// flip to newest-first venue order
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

func (f *Fake) OrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError("fake", "orderbook", CodeTimeout, err)
	}
	symbol = strings.ToUpper(symbol)
	if depth <= 0 {
		depth = 10
	}
	mid := f.priceAt(symbol, f.anchor)
	rng := rand.New(rand.NewSource(f.seed + symbolSeed(symbol)))
	halfSpread := mid * 0.0001

	bids := make([]domain.BookLevel, 0, depth)
	asks := make([]domain.BookLevel, 0, depth)
	// positive trend bias skews resting size toward the bid
	bidScale := 1.0 + f.trendBias
	if bidScale < 0.1 {
		bidScale = 0.1
	}
	for i := 0; i < depth; i++ {
		step := mid * 0.0002 * float64(i)
		bids = append(bids, domain.BookLevel{
			Price: mid - halfSpread - step,
			Size:  (0.5 + rng.Float64()) * bidScale,
		})
		asks = append(asks, domain.BookLevel{
			Price: mid + halfSpread + step,
			Size:  0.5 + rng.Float64(),
		})
	}
	return &domain.OrderBook{
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: f.anchor,
	}, nil
}

// priceAt combines base price, trend drift and seeded noise into a price
// that is stable for a given (seed, symbol, timestamp).
func (f *Fake) priceAt(symbol string, ts time.Time) float64 {
	base, ok := f.basePrices[symbol]
	if !ok {
		base = 100
	}
	hours := ts.Sub(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)).Hours()
	trend := f.trendBias * hours * 0.001

	rng := rand.New(rand.NewSource(f.seed + symbolSeed(symbol) + ts.Unix()))
	noise := rng.NormFloat64() * f.volatility * base * 0.1
	cluster := math.Sin(hours*0.1) * f.volatility * base * 0.05

	price := base*(1+trend) + noise + cluster
	if price <= 0 {
		price = base * 0.01
	}
	return price
}

func symbolSeed(symbol string) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return int64(h.Sum64() & math.MaxInt64)
}

func intervalDuration(interval string) time.Duration {
	if m, err := strconv.Atoi(interval); err == nil && m > 0 {
		return time.Duration(m) * time.Minute
	}
	return 5 * time.Minute
}
