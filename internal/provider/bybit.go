package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/signalrun/internal/domain"
	"github.com/sawpanic/signalrun/internal/universe"
)

const (
	bybitVenue       = "bybit"
	maxResponseBytes = 4 << 20
)

// BybitOptions configures the public v5 REST client.
type BybitOptions struct {
	BaseURL           string
	Category          string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	TickerTTL         time.Duration
	KlineTTL          time.Duration
	BookTTL           time.Duration
	Breaker           BreakerConfig
}

func DefaultBybitOptions() BybitOptions {
	return BybitOptions{
		BaseURL:           "https://api.bybit.com",
		Category:          "spot",
		RequestsPerSecond: 5,
		Burst:             10,
		Timeout:           10 * time.Second,
		TickerTTL:         30 * time.Second,
		KlineTTL:          30 * time.Second,
		BookTTL:           5 * time.Second,
		Breaker:           DefaultBreakerConfig(),
	}
}

// Bybit serves universe, kline and order-book data from Bybit's public v5
// API. Every request flows through a token bucket and a circuit breaker,
// and successful payloads land in a short TTL cache keyed by URL so that
// profile rungs re-scanning the same symbols within one pass hit memory.
type Bybit struct {
	opts    BybitOptions
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	cache   Cache
	health  *Health
	rec     Recorder
}

func NewBybit(opts BybitOptions, cache Cache) *Bybit {
	def := DefaultBybitOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = def.BaseURL
	}
	if opts.Category == "" {
		opts.Category = def.Category
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = def.RequestsPerSecond
	}
	if opts.Burst <= 0 {
		opts.Burst = def.Burst
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.TickerTTL <= 0 {
		opts.TickerTTL = def.TickerTTL
	}
	if opts.KlineTTL <= 0 {
		opts.KlineTTL = def.KlineTTL
	}
	if opts.BookTTL <= 0 {
		opts.BookTTL = def.BookTTL
	}
	if opts.Breaker == (BreakerConfig{}) {
		opts.Breaker = def.Breaker
	}
	if cache == nil {
		cache = NewMemoryCache(time.Minute)
	}
	return &Bybit{
		opts:    opts,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		breaker: NewBreaker(bybitVenue, opts.Breaker),
		cache:   cache,
		health:  NewHealth(bybitVenue),
	}
}

type bybitEnvelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

type bybitTicker struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
	Turnover  string `json:"turnover24h"`
}

type bybitTickerResult struct {
	Category string        `json:"category"`
	List     []bybitTicker `json:"list"`
}

type bybitKlineResult struct {
	Symbol string     `json:"symbol"`
	List   [][]string `json:"list"`
}

type bybitBookResult struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
	TS     int64      `json:"ts"`
}

// Universe lists all tradable instruments in the configured category.
// Rows with unparsable numbers (fresh listings sometimes report empty
// strings) are dropped rather than failing the whole scan.
func (b *Bybit) Universe(ctx context.Context) ([]universe.Instrument, error) {
	params := url.Values{}
	params.Set("category", b.opts.Category)

	raw, err := b.doGet(ctx, "universe", "/v5/market/tickers", params, b.opts.TickerTTL)
	if err != nil {
		return nil, err
	}

	var result bybitTickerResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, NewError(bybitVenue, "universe", CodeBadResponse, err)
	}

	instruments := make([]universe.Instrument, 0, len(result.List))
	for _, t := range result.List {
		price, perr := strconv.ParseFloat(t.LastPrice, 64)
		turnover, terr := strconv.ParseFloat(t.Turnover, 64)
		if perr != nil || terr != nil {
			log.Debug().Str("symbol", t.Symbol).Msg("skipping ticker with unparsable fields")
			continue
		}
		instruments = append(instruments, universe.Instrument{
			Symbol:    t.Symbol,
			LastPrice: price,
			Turnover:  turnover,
		})
	}
	return instruments, nil
}

// Klines returns up to limit candles for symbol at the given interval, in
// venue order (newest first). Callers normalize with domain.NewSeries.
func (b *Bybit) Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	params := url.Values{}
	params.Set("category", b.opts.Category)
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	raw, err := b.doGet(ctx, "klines", "/v5/market/kline", params, b.opts.KlineTTL)
	if err != nil {
		return nil, err
	}

	var result bybitKlineResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, NewError(bybitVenue, "klines", CodeBadResponse, err)
	}
	candles, err := domain.ParseRows(result.List)
	if err != nil {
		return nil, NewError(bybitVenue, "klines", CodeBadResponse, err)
	}
	return candles, nil
}

// OrderBook returns a depth snapshot for symbol.
func (b *Bybit) OrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error) {
	params := url.Values{}
	params.Set("category", b.opts.Category)
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(depth))

	raw, err := b.doGet(ctx, "orderbook", "/v5/market/orderbook", params, b.opts.BookTTL)
	if err != nil {
		return nil, err
	}

	var result bybitBookResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, NewError(bybitVenue, "orderbook", CodeBadResponse, err)
	}
	bids, err := parseLevels(result.Bids)
	if err != nil {
		return nil, NewError(bybitVenue, "orderbook", CodeBadResponse, err)
	}
	asks, err := parseLevels(result.Asks)
	if err != nil {
		return nil, NewError(bybitVenue, "orderbook", CodeBadResponse, err)
	}
	return &domain.OrderBook{
		Symbol:    result.Symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.UnixMilli(result.TS).UTC(),
	}, nil
}

// SetMetrics attaches an instrumentation sink. Call before first use.
func (b *Bybit) SetMetrics(rec Recorder) {
	b.rec = rec
}

// Health reports request statistics plus the current breaker state.
func (b *Bybit) Health() HealthSnapshot {
	snap := b.health.Snapshot()
	snap.BreakerState = b.breaker.State().String()
	return snap
}

// observe reports one request outcome to the recorder. An empty code means
// success.
func (b *Bybit) observe(op string, code ErrCode, latency time.Duration) {
	if b.rec == nil {
		return
	}
	c := "ok"
	if code != "" {
		c = string(code)
	}
	b.rec.RecordProviderRequest(bybitVenue, op, c, latency.Seconds())
}

func parseLevels(rows [][]string) ([]domain.BookLevel, error) {
	levels := make([]domain.BookLevel, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("book level %d: want 2 fields, got %d", i, len(row))
		}
		price, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, fmt.Errorf("book level %d: bad price: %w", i, err)
		}
		size, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("book level %d: bad size: %w", i, err)
		}
		levels = append(levels, domain.BookLevel{Price: price, Size: size})
	}
	return levels, nil
}

// statusError carries a non-200 HTTP status through the breaker.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http status %d", e.status)
}

// doGet runs one GET against the venue: cache lookup, rate limit wait,
// breaker-guarded request, envelope check, cache fill. It returns the raw
// result payload. Transport and HTTP-status failures count against the
// breaker; envelope errors on a 200 do not, since the venue is up and
// answering.
func (b *Bybit) doGet(ctx context.Context, op, path string, params url.Values, ttl time.Duration) (json.RawMessage, error) {
	key := path + "?" + params.Encode()
	if cached, ok := b.cache.Get(ctx, key); ok {
		if b.rec != nil {
			b.rec.RecordCacheHit(bybitVenue)
		}
		return json.RawMessage(cached), nil
	}
	if b.rec != nil {
		b.rec.RecordCacheMiss(bybitVenue)
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return nil, NewError(bybitVenue, op, classifyCtx(err), err)
	}

	start := time.Now()
	res, err := b.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.opts.BaseURL+key, nil)
		if err != nil {
			return nil, err
		}
		resp, err := b.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &statusError{status: resp.StatusCode}
		}
		return body, nil
	})
	latency := time.Since(start)

	if err != nil {
		code := classifyTransport(ctx, err)
		b.health.RecordFailure(latency)
		b.observe(op, code, latency)
		return nil, NewError(bybitVenue, op, code, err)
	}

	body := res.([]byte)
	var env bybitEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		b.health.RecordFailure(latency)
		b.observe(op, CodeBadResponse, latency)
		return nil, NewError(bybitVenue, op, CodeBadResponse, err)
	}
	if env.RetCode != 0 {
		b.health.RecordFailure(latency)
		b.observe(op, CodeBadResponse, latency)
		return nil, NewError(bybitVenue, op, CodeBadResponse,
			fmt.Errorf("retCode %d: %s", env.RetCode, env.RetMsg))
	}

	b.health.RecordSuccess(latency)
	b.observe(op, "", latency)
	b.cache.Set(ctx, key, []byte(env.Result), ttl)
	return env.Result, nil
}

func classifyCtx(err error) ErrCode {
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	return CodeUnavailable
}

func classifyTransport(ctx context.Context, err error) ErrCode {
	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.status == http.StatusTooManyRequests:
			return CodeRateLimited
		case se.status >= 500:
			return CodeUnavailable
		default:
			return CodeBadResponse
		}
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return CodeUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return CodeTimeout
	}
	return CodeUnavailable
}
