package optimizer

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

var (
	gridFast      = []int{3, 5, 8, 10, 15}
	gridSlow      = []int{15, 30, 45, 60}
	gridVol       = []float64{0.10, 0.20, 0.30}
	gridStopLoss  = []float64{0.005, 0.01, 0.015}
	gridTakeProf  = []float64{0.01, 0.02, 0.03}
	gridThreshold = []float64{0.0002, 0.0005, 0.001}
)

// GenerateGrid devuelve el producto cartesiano de parámetros, descartando fast >= slow.
func GenerateGrid() []domain.ParameterSet {
	var out []domain.ParameterSet
	for _, f := range gridFast {
		for _, s := range gridSlow {
			if f >= s {
				continue
			}
			for _, v := range gridVol {
				for _, sl := range gridStopLoss {
					for _, tp := range gridTakeProf {
						for _, th := range gridThreshold {
							out = append(out, domain.ParameterSet{
								FastWindow: f, SlowWindow: s, VolTarget: v,
								StopLossPct: sl, TakeProfitPct: tp, SignalThreshold: th,
							})
						}
					}
				}
			}
		}
	}
	return out
}

// Valores usados por Mutate cuando el arm ganador no trae sl/tp/threshold.
const (
	mutateDefaultSL = 0.01
	mutateDefaultTP = 0.02
	mutateDefaultTh = 0.0005

	// un threshold 0 se leería como "sin configurar" y WithDefaults lo pisaría
	minMutateTh = 0.0001
)

// Mutate genera las variantes vecinas de best, acotadas a rangos válidos.
// El resultado puede contener duplicados cuando el clamp colapsa vecinos.
func Mutate(best domain.ParameterSet) []domain.ParameterSet {
	sl, tp, th := best.StopLossPct, best.TakeProfitPct, best.SignalThreshold
	if sl == 0 {
		sl = mutateDefaultSL
	}
	if tp == 0 {
		tp = mutateDefaultTP
	}
	if th == 0 {
		th = mutateDefaultTh
	}

	var out []domain.ParameterSet
	for _, df := range []int{-2, 1} {
		for _, ds := range []int{-5, 5} {
			for _, dv := range []float64{-0.05, 0.05} {
				for _, dsl := range []float64{-0.002, 0.002} {
					for _, dtp := range []float64{-0.005, 0.005} {
						for _, dth := range []float64{-0.0002, 0.0002} {
							f := max(2, best.FastWindow+df)
							out = append(out, domain.ParameterSet{
								FastWindow:      f,
								SlowWindow:      max(f+5, best.SlowWindow+ds),
								VolTarget:       round(clampF(best.VolTarget+dv, 0.05, 0.5), 2),
								StopLossPct:     round(clampF(sl+dsl, 0.002, 0.05), 4),
								TakeProfitPct:   round(clampF(tp+dtp, 0.005, 0.1), 4),
								SignalThreshold: round(clampF(th+dth, minMutateTh, 0.01), 5),
							})
						}
					}
				}
			}
		}
	}
	return out
}

func clampF(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
