package provider

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/signalrun/internal/domain"
)

// KlineEvent is one candle update from the live stream. Confirmed marks a
// closed candle; unconfirmed events repaint until the interval rolls over.
type KlineEvent struct {
	Symbol    string
	Interval  string
	Candle    domain.Candle
	Confirmed bool
}

// StreamOptions configures the public kline websocket.
type StreamOptions struct {
	URL              string
	PingInterval     time.Duration
	BufferSize       int
	InitialRetry     time.Duration
	MaxRetry         time.Duration
	MaxRetryAttempts uint64
}

func DefaultStreamOptions() StreamOptions {
	return StreamOptions{
		URL:              "wss://stream.bybit.com/v5/public/spot",
		PingInterval:     20 * time.Second,
		BufferSize:       256,
		InitialRetry:     time.Second,
		MaxRetry:         30 * time.Second,
		MaxRetryAttempts: 10,
	}
}

// Stream consumes Bybit v5 public kline topics and fans them out as typed
// events. It reconnects with exponential backoff and resubscribes after a
// dropped connection. Events that nobody drains in time are discarded so a
// slow consumer never stalls the read loop.
type Stream struct {
	opts      StreamOptions
	topics    []string
	conn      *websocket.Conn
	connected bool
	mu        sync.RWMutex
	writeMu   sync.Mutex
	events    chan KlineEvent
	done      chan struct{}
	closeOnce sync.Once

	// test override for the dial step
	dialFunc func() (*websocket.Conn, error)
}

func NewStream(opts StreamOptions) *Stream {
	def := DefaultStreamOptions()
	if opts.URL == "" {
		opts.URL = def.URL
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = def.PingInterval
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = def.BufferSize
	}
	if opts.InitialRetry <= 0 {
		opts.InitialRetry = def.InitialRetry
	}
	if opts.MaxRetry <= 0 {
		opts.MaxRetry = def.MaxRetry
	}
	if opts.MaxRetryAttempts == 0 {
		opts.MaxRetryAttempts = def.MaxRetryAttempts
	}
	return &Stream{
		opts:   opts,
		events: make(chan KlineEvent, opts.BufferSize),
		done:   make(chan struct{}),
	}
}

// Subscribe connects and subscribes to kline.{interval}.{symbol} for every
// symbol, then starts the read and ping loops.
func (s *Stream) Subscribe(symbols []string, interval string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols to subscribe to")
	}

	topics := make([]string, len(symbols))
	for i, sym := range symbols {
		topics[i] = fmt.Sprintf("kline.%s.%s", interval, strings.ToUpper(sym))
	}
	s.topics = topics

	if err := s.connectWithRetry(); err != nil {
		return fmt.Errorf("connect after retries: %w", err)
	}
	s.connected = true

	go s.readLoop()
	go s.pingLoop()

	log.Info().Int("topics", len(topics)).Str("interval", interval).Msg("kline stream subscribed")
	return nil
}

// Events returns the channel delivering kline updates.
func (s *Stream) Events() <-chan KlineEvent {
	return s.events
}

// Close stops the loops and closes the connection. Safe to call twice.
// The events channel is closed by the read loop once it drains out, so
// in-flight sends can never hit a closed channel.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.conn != nil {
			err = s.conn.Close()
			s.conn = nil
		}
		s.connected = false
		s.mu.Unlock()
	})
	return err
}

func (s *Stream) connectWithRetry() error {
	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = s.opts.InitialRetry
	strategy.MaxInterval = s.opts.MaxRetry
	strategy.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		if err := s.connect(); err != nil {
			log.Warn().Err(err).Msg("kline stream connect failed")
			return err
		}
		return nil
	}, backoff.WithMaxRetries(strategy, s.opts.MaxRetryAttempts))
}

// connect dials and subscribes; callers hold s.mu or run before loops start.
func (s *Stream) connect() error {
	var conn *websocket.Conn
	var err error
	if s.dialFunc != nil {
		conn, err = s.dialFunc()
	} else {
		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err = dialer.Dial(s.opts.URL, nil)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.opts.URL, err)
	}
	s.conn = conn
	return s.writeJSON(subscribeMessage(s.topics))
}

func subscribeMessage(topics []string) map[string]interface{} {
	return map[string]interface{}{
		"op":   "subscribe",
		"args": topics,
	}
}

func (s *Stream) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	return s.conn.WriteJSON(v)
}

func (s *Stream) pingLoop() {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.writeJSON(map[string]string{"op": "ping"}); err != nil {
				log.Warn().Err(err).Msg("kline stream ping failed")
			}
		}
	}
}

// readLoop is the only sender on s.events and closes it on exit.
func (s *Stream) readLoop() {
	defer close(s.events)
	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			log.Warn().Err(err).Msg("kline stream read error, reconnecting")
			if !s.reconnect() {
				return
			}
			continue
		}

		if err := s.processMessage(message); err != nil {
			log.Warn().Err(err).Msg("kline stream message dropped")
		}
	}
}

// reconnect re-dials under the connection lock. Returns false when retries
// are exhausted or the stream was closed meanwhile.
func (s *Stream) reconnect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return false
	default:
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if err := s.connectWithRetry(); err != nil {
		log.Error().Err(err).Msg("kline stream reconnect gave up")
		return false
	}
	return true
}

type klinePush struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
	TS    int64  `json:"ts"`
	Data  []struct {
		Start    int64  `json:"start"`
		End      int64  `json:"end"`
		Interval string `json:"interval"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
		Turnover string `json:"turnover"`
		Confirm  bool   `json:"confirm"`
	} `json:"data"`
}

// processMessage parses one frame and forwards kline events. Subscription
// acks, pong replies and unrelated topics are ignored.
func (s *Stream) processMessage(message []byte) error {
	var push klinePush
	if err := json.Unmarshal(message, &push); err != nil {
		return fmt.Errorf("unmarshal kline push: %w", err)
	}
	if !strings.HasPrefix(push.Topic, "kline.") {
		return nil
	}
	parts := strings.SplitN(push.Topic, ".", 3)
	if len(parts) != 3 {
		return fmt.Errorf("malformed kline topic %q", push.Topic)
	}
	interval, symbol := parts[1], parts[2]

	for _, d := range push.Data {
		candle, err := parseKlineData(d.Start, d.Open, d.High, d.Low, d.Close, d.Volume, d.Turnover)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("bad kline payload")
			continue
		}
		evt := KlineEvent{
			Symbol:    symbol,
			Interval:  interval,
			Candle:    candle,
			Confirmed: d.Confirm,
		}
		select {
		case s.events <- evt:
		default:
			log.Warn().Str("symbol", symbol).Msg("kline event buffer full, dropping")
		}
	}
	return nil
}

func parseKlineData(startMS int64, open, high, low, close, volume, turnover string) (domain.Candle, error) {
	fields := [6]string{open, high, low, close, volume, turnover}
	vals := [6]float64{}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("field %d: %w", i, err)
		}
		vals[i] = v
	}
	return domain.Candle{
		OpenTime: time.UnixMilli(startMS).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
		Turnover: vals[5],
	}, nil
}
