package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

func TestSizePositions_VolTargetingAndClamp(t *testing.T) {
	signals := map[string]domain.Signal{"A": 1, "B": 1}
	vols := map[string]float64{"A": 0.5, "B": 0.1}
	got := SizePositions(signals, vols, SizingParams{Budget: 1000, VolTarget: 0.1, Regime: domain.RegimeSafe})

	// A: 0.1/0.5 = 0.2; B: 0.1/0.1 = 1.0 clamped to 0.5. Gross 0.7 < 0.95.
	assert.InDelta(t, 200, got["A"], 1e-9)
	assert.InDelta(t, 500, got["B"], 1e-9)
}

func TestSizePositions_RegimeMultiplier(t *testing.T) {
	signals := map[string]domain.Signal{"A": 1}
	vols := map[string]float64{"A": 0.4}
	for regime, want := range map[domain.RiskRegime]float64{
		domain.RegimeSafe:         250,
		domain.RegimeShieldActive: 125,
		domain.RegimeCrisis:       25,
	} {
		got := SizePositions(signals, vols, SizingParams{Budget: 1000, VolTarget: 0.1, Regime: regime})
		assert.InDelta(t, want, got["A"], 1e-9, string(regime))
	}
}

func TestSizePositions_UnsizableAndFlatGetZero(t *testing.T) {
	signals := map[string]domain.Signal{"NOVOL": 1, "FLAT": 0}
	got := SizePositions(signals, map[string]float64{"FLAT": 0.2}, SizingParams{Budget: 1000, VolTarget: 0.1})
	assert.Equal(t, map[string]float64{"NOVOL": 0, "FLAT": 0}, got)
}

func TestSizePositions_ShortIsNegative(t *testing.T) {
	got := SizePositions(map[string]domain.Signal{"A": -1}, map[string]float64{"A": 0.2}, SizingParams{Budget: 1000, VolTarget: 0.1})
	assert.InDelta(t, -500, got["A"], 1e-9)
}

func TestSizePositions_GlobalNormalization(t *testing.T) {
	signals := map[string]domain.Signal{"A": 1, "B": 1, "C": -1}
	vols := map[string]float64{"A": 0.05, "B": 0.05, "C": 0.05}
	got := SizePositions(signals, vols, SizingParams{Budget: 1000, VolTarget: 0.2})

	// each clamps to 0.5, gross 1.5, scaled to 0.95
	gross := 0.0
	for _, v := range got {
		if v < 0 {
			v = -v
		}
		gross += v
	}
	assert.InDelta(t, 950, gross, 1e-6)
	assert.InDelta(t, -950.0/3, got["C"], 1e-6)
}

func TestNormalizeWeights(t *testing.T) {
	under := map[string]float64{"A": 0.3, "B": -0.4}
	assert.Equal(t, under, NormalizeWeights(under, 0.95))

	over := map[string]float64{"A": 0.5, "B": -0.5, "C": 0.5, "D": 0.2}
	out := NormalizeWeights(over, 0.95)
	assert.InDelta(t, 0.95, GrossExposure(out), 1e-12)
	assert.InDelta(t, out["A"]/out["D"], 2.5, 1e-12)
}
