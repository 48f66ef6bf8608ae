package strategy

import (
	"math"
	"sort"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

const (
	DefaultMaxPositionWeight = 0.50
	DefaultLeverageCap       = 0.95
)

// SizingParams agrupa las entradas del sizer que no dependen del símbolo.
type SizingParams struct {
	Budget            float64
	VolTarget         float64
	MaxPositionWeight float64
	LeverageCap       float64
	Regime            domain.RiskRegime
}

func (p SizingParams) withDefaults() SizingParams {
	if p.MaxPositionWeight <= 0 {
		p.MaxPositionWeight = DefaultMaxPositionWeight
	}
	if p.LeverageCap <= 0 {
		p.LeverageCap = DefaultLeverageCap
	}
	return p
}

// SizePositions convierte señales y volatilidades en exposición objetivo en dólares.
// Cada símbolo con señal aparece en el resultado; los no dimensionables con 0.
func SizePositions(signals map[string]domain.Signal, vols map[string]float64, p SizingParams) map[string]float64 {
	p = p.withDefaults()
	target := p.VolTarget * p.Regime.Multiplier()

	weights := make(map[string]float64, len(signals))
	for sym, sig := range signals {
		vol, ok := vols[sym]
		if !ok || sig == domain.SignalFlat || vol <= 0 || math.IsNaN(vol) {
			weights[sym] = 0
			continue
		}
		raw := target / vol * float64(sig)
		weights[sym] = clamp(raw, -p.MaxPositionWeight, p.MaxPositionWeight)
	}
	weights = NormalizeWeights(weights, p.LeverageCap)

	out := make(map[string]float64, len(weights))
	for sym, w := range weights {
		out[sym] = p.Budget * w
	}
	return out
}

// NormalizeWeights escala todos los pesos por cap/Σ|w| si la exposición bruta supera cap.
// Si no la supera, devuelve los pesos sin cambios.
func NormalizeWeights(weights map[string]float64, leverageCap float64) map[string]float64 {
	gross := GrossExposure(weights)
	out := make(map[string]float64, len(weights))
	scale := 1.0
	if gross > leverageCap && gross > 0 {
		scale = leverageCap / gross
	}
	for sym, w := range weights {
		out[sym] = w * scale
	}
	return out
}

// GrossExposure es Σ|w|, sumada en orden de símbolo para que sea reproducible.
func GrossExposure(weights map[string]float64) float64 {
	syms := make([]string, 0, len(weights))
	for sym := range weights {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	total := 0.0
	for _, sym := range syms {
		total += math.Abs(weights[sym])
	}
	return total
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
