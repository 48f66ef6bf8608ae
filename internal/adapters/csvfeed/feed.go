// Package csvfeed serves bars from CSV files, one file per symbol, for offline
// simulation replays.
package csvfeed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// Feed reads <dir>/<SYMBOL>.csv. Files are parsed once and cached.
type Feed struct {
	dir string

	mu    sync.Mutex
	cache map[string][]domain.Bar
}

// New returns a Feed rooted at dir.
func New(dir string) *Feed {
	return &Feed{dir: dir, cache: make(map[string][]domain.Bar)}
}

// GetBars returns the last lookback bars of each symbol; lookback <= 0 means all.
// The granularity is whatever the files hold.
func (f *Feed) GetBars(_ context.Context, symbols []string, lookback int, _ domain.Granularity) (*domain.BarSeries, error) {
	var all []domain.Bar
	for _, sym := range symbols {
		bars, err := f.load(sym)
		if err != nil {
			return nil, fmt.Errorf("csvfeed.GetBars: %w", err)
		}
		if lookback > 0 && len(bars) > lookback {
			bars = bars[len(bars)-lookback:]
		}
		all = append(all, bars...)
	}
	return domain.NewBarSeries(all), nil
}

// GetLatestPrice returns the last close in the symbol's file.
func (f *Feed) GetLatestPrice(_ context.Context, symbol string) (float64, error) {
	bars, err := f.load(symbol)
	if err != nil {
		return 0, fmt.Errorf("csvfeed.GetLatestPrice: %w", err)
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("csvfeed.GetLatestPrice: %s: %w", symbol, domain.ErrDataGap)
	}
	return bars[len(bars)-1].Close, nil
}

func (f *Feed) load(symbol string) ([]domain.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if bars, ok := f.cache[symbol]; ok {
		return bars, nil
	}
	bars, err := LoadFile(filepath.Join(f.dir, symbol+".csv"), symbol)
	if err != nil {
		return nil, err
	}
	f.cache[symbol] = bars
	return bars, nil
}

// LoadFile parses one CSV file. The header must name timestamp (or date), open,
// high, low and close; volume is optional. Rows come back in file order.
func LoadFile(path, symbol string) ([]domain.Bar, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()
	return Parse(fh, symbol)
}

// Parse reads bars for symbol from r.
func Parse(r io.Reader, symbol string) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: header: %w", symbol, err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["timestamp"]; !ok {
		if i, ok := col["date"]; ok {
			col["timestamp"] = i
		}
	}
	for _, need := range []string{"timestamp", "open", "high", "low", "close"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", symbol, need)
		}
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", symbol, line, err)
		}
		b := domain.Bar{Symbol: symbol}
		if b.Timestamp, err = parseTime(rec[col["timestamp"]]); err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", symbol, line, err)
		}
		fields := []struct {
			name string
			dst  *float64
		}{{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close}, {"volume", &b.Volume}}
		for _, fd := range fields {
			i, ok := col[fd.name]
			if !ok {
				continue
			}
			if *fd.dst, err = strconv.ParseFloat(strings.TrimSpace(rec[i]), 64); err != nil {
				return nil, fmt.Errorf("%s: line %d: %s: %w", symbol, line, fd.name, err)
			}
		}
		bars = append(bars, b)
	}
	// los ficheros suelen venir ordenados; NewBarSeries ordena igualmente
	return domain.NewBarSeries(bars).Bars(symbol), nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
