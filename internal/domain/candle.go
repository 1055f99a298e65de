package domain

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Candle is one OHLCV bar. OpenTime is the bar's open timestamp in UTC,
// Volume is base-currency volume and Turnover is quote-currency volume
// as reported by the venue.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	Turnover float64   `json:"turnover"`
}

// TypicalPrice returns (high + low + close) / 3.
func (c Candle) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3.0
}

// TrueRange returns the true range of the candle given the previous close.
func (c Candle) TrueRange(prevClose float64) float64 {
	tr := c.High - c.Low
	if d := abs(c.High - prevClose); d > tr {
		tr = d
	}
	if d := abs(c.Low - prevClose); d > tr {
		tr = d
	}
	return tr
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// KlineSeries is a chronological (oldest-first) run of candles for one
// symbol and interval. Interval uses venue minute notation ("5", "15", "60").
type KlineSeries struct {
	Symbol   string   `json:"symbol"`
	Interval string   `json:"interval"`
	Candles  []Candle `json:"candles"`
}

// NewSeries builds a validated chronological series. Venue kline endpoints
// return rows newest-first; this is the single place that order is fixed.
// Input already in ascending order passes through unchanged, so the
// operation is idempotent.
func NewSeries(symbol, interval string, candles []Candle) (KlineSeries, error) {
	s := KlineSeries{Symbol: symbol, Interval: interval, Candles: candles}
	if len(candles) == 0 {
		return s, nil
	}

	if candles[0].OpenTime.After(candles[len(candles)-1].OpenTime) {
		reversed := make([]Candle, len(candles))
		for i, c := range candles {
			reversed[len(candles)-1-i] = c
		}
		s.Candles = reversed
	}

	if err := s.validate(); err != nil {
		return KlineSeries{}, err
	}
	return s, nil
}

func (s KlineSeries) validate() error {
	for i, c := range s.Candles {
		if i > 0 && !s.Candles[i-1].OpenTime.Before(c.OpenTime) {
			return fmt.Errorf("series %s/%s: timestamps not strictly ascending at index %d", s.Symbol, s.Interval, i)
		}
		if c.Volume < 0 {
			return fmt.Errorf("series %s/%s: negative volume at index %d", s.Symbol, s.Interval, i)
		}
		if c.High < c.Low {
			return fmt.Errorf("series %s/%s: high below low at index %d", s.Symbol, s.Interval, i)
		}
	}
	return nil
}

// Len returns the number of candles in the series.
func (s KlineSeries) Len() int { return len(s.Candles) }

// Last returns the most recent candle, or false when the series is empty.
func (s KlineSeries) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Closes returns the close price of every candle, oldest first.
func (s KlineSeries) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// Volumes returns the base volume of every candle, oldest first.
func (s KlineSeries) Volumes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Volume
	}
	return out
}

// LowestLow returns the lowest low over the most recent n candles.
func (s KlineSeries) LowestLow(n int) float64 {
	if len(s.Candles) == 0 {
		return 0
	}
	start := len(s.Candles) - n
	if start < 0 {
		start = 0
	}
	low := s.Candles[start].Low
	for _, c := range s.Candles[start:] {
		if c.Low < low {
			low = c.Low
		}
	}
	return low
}

// HighestHigh returns the highest high over the most recent n candles.
func (s KlineSeries) HighestHigh(n int) float64 {
	if len(s.Candles) == 0 {
		return 0
	}
	start := len(s.Candles) - n
	if start < 0 {
		start = 0
	}
	high := s.Candles[start].High
	for _, c := range s.Candles[start:] {
		if c.High > high {
			high = c.High
		}
	}
	return high
}

// ParseRows converts raw venue kline rows into typed candles, preserving
// the venue's row order (newest first). Rows follow the common v5 layout:
// [startMs, open, high, low, close, volume, turnover], strings throughout.
// Positional access stops at this boundary; order is fixed by NewSeries.
func ParseRows(rows [][]string) ([]Candle, error) {
	candles := make([]Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 7 {
			return nil, fmt.Errorf("kline row %d: want 7 fields, got %d", i, len(row))
		}
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("kline row %d: bad start time: %w", i, err)
		}
		vals := make([]float64, 6)
		for j := 1; j < 7; j++ {
			v, err := strconv.ParseFloat(row[j], 64)
			if err != nil {
				return nil, fmt.Errorf("kline row %d: bad field %d: %w", i, j, err)
			}
			vals[j-1] = v
		}
		candles = append(candles, Candle{
			OpenTime: time.UnixMilli(ms).UTC(),
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			Volume:   vals[4],
			Turnover: vals[5],
		})
	}
	return candles, nil
}

// SortCandles orders candles oldest-first in place. Helper for callers that
// accumulate candles out of order (websocket replays, cache merges).
func SortCandles(candles []Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})
}
