package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func bar(sym string, day int, close float64) Bar {
	return Bar{Symbol: sym, Timestamp: day0.AddDate(0, 0, day), Open: close, High: close, Low: close, Close: close}
}

func TestNewBarSeries_SortsAndDedups(t *testing.T) {
	s := NewBarSeries([]Bar{bar("A", 2, 3), bar("A", 0, 1), bar("A", 1, 2), bar("A", 1, 20)})
	assert.Equal(t, []float64{1, 20, 3}, s.Closes("A"))
}

func TestBarSeries_AppendRejectsOlder(t *testing.T) {
	s := NewBarSeries([]Bar{bar("A", 1, 1)})
	require.NoError(t, s.Append(bar("A", 2, 2)))
	assert.Error(t, s.Append(bar("A", 2, 5)))
	assert.Error(t, s.Append(bar("A", 0, 5)))
	assert.Equal(t, 2, s.Len("A"))
}

func TestBarSeries_Views(t *testing.T) {
	s := NewBarSeries([]Bar{bar("A", 0, 1), bar("A", 1, 2), bar("A", 2, 3), bar("B", 1, 10), bar("B", 3, 11)})

	assert.Equal(t, []string{"A", "B"}, s.Symbols())
	assert.Len(t, s.Timeline(), 4)

	until := s.Until(day0.AddDate(0, 0, 1))
	assert.Equal(t, []float64{1, 2}, until.Closes("A"))
	assert.Equal(t, []float64{10}, until.Closes("B"))

	between := s.Between(day0.AddDate(0, 0, 2), day0.AddDate(0, 0, 3))
	assert.Equal(t, []float64{3}, between.Closes("A"))
	assert.Equal(t, []float64{11}, between.Closes("B"))

	assert.Equal(t, map[string]float64{"A": 3, "B": 11}, s.LatestPrices())

	b, ok := s.At("B", day0.AddDate(0, 0, 3))
	require.True(t, ok)
	assert.Equal(t, 11.0, b.Close)
	_, ok = s.At("B", day0.AddDate(0, 0, 2))
	assert.False(t, ok)

	assert.Equal(t, []string{"B"}, s.Without("A").Symbols())
}

func TestGranularity_PeriodsPerYear(t *testing.T) {
	assert.Equal(t, 252.0, Daily.PeriodsPerYear())
	assert.Equal(t, 252.0*390, Minute.PeriodsPerYear())
	assert.Equal(t, 252.0*78, Minute5.PeriodsPerYear())
	assert.Equal(t, 252.0*26, Minute15.PeriodsPerYear())
}

func TestRegimeResult_EffectiveFallsBackToSafe(t *testing.T) {
	assert.Equal(t, RegimeCrisis, RegimeResult{Regime: RegimeCrisis}.Effective())
	assert.Equal(t, RegimeSafe, RegimeResult{Regime: RegimeCrisis, Err: ErrRegimeUnavailable}.Effective())
	assert.Equal(t, RegimeSafe, RegimeResult{}.Effective())
}

func TestMaxDrawdown(t *testing.T) {
	curve := []EquityPoint{{Equity: 100}, {Equity: 120}, {Equity: 90}, {Equity: 130}, {Equity: 117}}
	assert.InDelta(t, 0.25, MaxDrawdown(curve), 1e-12)
	assert.Equal(t, 0.0, MaxDrawdown(nil))
}
