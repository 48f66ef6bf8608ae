package strategy

import (
	"github.com/markcheno/go-talib"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// GenerateSignal calcula la señal de momentum sobre el último punto de closes.
// Devuelve ok=false cuando no hay al menos SlowWindow observaciones.
func GenerateSignal(closes []float64, p domain.ParameterSet) (domain.Signal, bool) {
	if p.FastWindow <= 0 || p.SlowWindow <= p.FastWindow || len(closes) < p.SlowWindow {
		return domain.SignalFlat, false
	}
	window := closes[len(closes)-p.SlowWindow:]
	fast := talib.Sma(window, p.FastWindow)
	slow := talib.Sma(window, p.SlowWindow)
	last := len(window) - 1
	return classifyGap(fast[last], slow[last], p.SignalThreshold)
}

// SignalSeries evalúa la señal en cada índice de closes.
// Los índices anteriores a from no tienen historia suficiente y quedan en Flat.
func SignalSeries(closes []float64, p domain.ParameterSet) (sigs []domain.Signal, from int) {
	sigs = make([]domain.Signal, len(closes))
	if p.FastWindow <= 0 || p.SlowWindow <= p.FastWindow || len(closes) < p.SlowWindow {
		return sigs, len(closes)
	}
	fast := talib.Sma(closes, p.FastWindow)
	slow := talib.Sma(closes, p.SlowWindow)
	from = p.SlowWindow - 1
	for i := from; i < len(closes); i++ {
		sigs[i], _ = classifyGap(fast[i], slow[i], p.SignalThreshold)
	}
	return sigs, from
}

// GenerateSignals devuelve la señal más reciente de cada símbolo de la serie.
// Los símbolos sin historia suficiente no aparecen en el resultado.
func GenerateSignals(series *domain.BarSeries, p domain.ParameterSet) map[string]domain.Signal {
	out := make(map[string]domain.Signal)
	for _, sym := range series.Symbols() {
		if sig, ok := GenerateSignal(series.Closes(sym), p); ok {
			out[sym] = sig
		}
	}
	return out
}

func classifyGap(fast, slow, threshold float64) (domain.Signal, bool) {
	if slow == 0 {
		return domain.SignalFlat, false
	}
	gap := (fast - slow) / slow
	switch {
	case gap > threshold:
		return domain.SignalLong, true
	case gap < -threshold:
		return domain.SignalShort, true
	default:
		return domain.SignalFlat, true
	}
}
