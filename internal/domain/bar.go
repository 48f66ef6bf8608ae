package domain

import (
	"fmt"
	"sort"
	"time"
)

// Granularity is the bar timeframe. It drives volatility annualization.
type Granularity string

const (
	Daily    Granularity = "1d"
	Minute   Granularity = "1m"
	Minute5  Granularity = "5m"
	Minute15 Granularity = "15m"
)

// PeriodsPerYear returns how many bars of this granularity fit in a trading year.
// Unknown granularities are treated as daily.
func (g Granularity) PeriodsPerYear() float64 {
	switch g {
	case Minute:
		return 252 * 390
	case Minute5:
		return 252 * 78
	case Minute15:
		return 252 * 26
	default:
		return 252
	}
}

// Bar is one OHLCV observation. Immutable once produced.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Tick is a single real-time price observation from the stream.
type Tick struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
}

// BarSeries holds bars per symbol, ascending by timestamp, one bar per (symbol, timestamp).
type BarSeries struct {
	bars map[string][]Bar
}

// NewBarSeries builds a series from an unordered list of bars.
// Duplicated (symbol, timestamp) pairs keep the last bar seen.
func NewBarSeries(bars []Bar) *BarSeries {
	s := &BarSeries{bars: make(map[string][]Bar)}
	for _, b := range bars {
		s.upsert(b)
	}
	return s
}

// Append adds a bar at the end of its symbol's history.
// It rejects bars that are not strictly newer than the last one.
func (s *BarSeries) Append(b Bar) error {
	if s.bars == nil {
		s.bars = make(map[string][]Bar)
	}
	hist := s.bars[b.Symbol]
	if n := len(hist); n > 0 && !b.Timestamp.After(hist[n-1].Timestamp) {
		return fmt.Errorf("domain.BarSeries.Append: %s bar at %s not after %s",
			b.Symbol, b.Timestamp.Format(time.RFC3339), hist[n-1].Timestamp.Format(time.RFC3339))
	}
	s.bars[b.Symbol] = append(hist, b)
	return nil
}

func (s *BarSeries) upsert(b Bar) {
	hist := s.bars[b.Symbol]
	i := sort.Search(len(hist), func(i int) bool { return !hist[i].Timestamp.Before(b.Timestamp) })
	if i < len(hist) && hist[i].Timestamp.Equal(b.Timestamp) {
		hist[i] = b
		return
	}
	hist = append(hist, Bar{})
	copy(hist[i+1:], hist[i:])
	hist[i] = b
	s.bars[b.Symbol] = hist
}

// Symbols returns the symbols present, sorted.
func (s *BarSeries) Symbols() []string {
	out := make([]string, 0, len(s.bars))
	for sym := range s.bars {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Bars returns the full history for a symbol. The slice must not be modified.
func (s *BarSeries) Bars(symbol string) []Bar {
	return s.bars[symbol]
}

// Len returns the number of bars stored for a symbol.
func (s *BarSeries) Len(symbol string) int {
	return len(s.bars[symbol])
}

// Closes returns the close prices for a symbol in timestamp order.
func (s *BarSeries) Closes(symbol string) []float64 {
	hist := s.bars[symbol]
	out := make([]float64, len(hist))
	for i, b := range hist {
		out[i] = b.Close
	}
	return out
}

// Latest returns the most recent bar for a symbol.
func (s *BarSeries) Latest(symbol string) (Bar, bool) {
	hist := s.bars[symbol]
	if len(hist) == 0 {
		return Bar{}, false
	}
	return hist[len(hist)-1], true
}

// At returns the bar for a symbol at exactly t.
func (s *BarSeries) At(symbol string, t time.Time) (Bar, bool) {
	hist := s.bars[symbol]
	i := sort.Search(len(hist), func(i int) bool { return !hist[i].Timestamp.Before(t) })
	if i < len(hist) && hist[i].Timestamp.Equal(t) {
		return hist[i], true
	}
	return Bar{}, false
}

// LatestPrices returns the last close per symbol.
func (s *BarSeries) LatestPrices() map[string]float64 {
	out := make(map[string]float64, len(s.bars))
	for sym, hist := range s.bars {
		if len(hist) > 0 {
			out[sym] = hist[len(hist)-1].Close
		}
	}
	return out
}

// Until returns a view with every bar at or before t.
// The underlying arrays are shared; callers must treat the view as read-only.
func (s *BarSeries) Until(t time.Time) *BarSeries {
	out := &BarSeries{bars: make(map[string][]Bar, len(s.bars))}
	for sym, hist := range s.bars {
		i := sort.Search(len(hist), func(i int) bool { return hist[i].Timestamp.After(t) })
		if i > 0 {
			out.bars[sym] = hist[:i:i]
		}
	}
	return out
}

// Between returns a view with every bar in [from, to].
func (s *BarSeries) Between(from, to time.Time) *BarSeries {
	out := &BarSeries{bars: make(map[string][]Bar, len(s.bars))}
	for sym, hist := range s.bars {
		lo := sort.Search(len(hist), func(i int) bool { return !hist[i].Timestamp.Before(from) })
		hi := sort.Search(len(hist), func(i int) bool { return hist[i].Timestamp.After(to) })
		if hi > lo {
			out.bars[sym] = hist[lo:hi:hi]
		}
	}
	return out
}

// Timeline returns the sorted union of timestamps across symbols.
func (s *BarSeries) Timeline() []time.Time {
	seen := make(map[int64]time.Time)
	for _, hist := range s.bars {
		for _, b := range hist {
			seen[b.Timestamp.UnixNano()] = b.Timestamp
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Without returns a copy of the series minus the given symbol.
func (s *BarSeries) Without(symbol string) *BarSeries {
	out := &BarSeries{bars: make(map[string][]Bar, len(s.bars))}
	for sym, hist := range s.bars {
		if sym != symbol {
			out.bars[sym] = hist
		}
	}
	return out
}
