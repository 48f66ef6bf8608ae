package strategy

import (
	"math"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// DefaultVolWindow es la ventana de retornos por defecto del estimador.
const DefaultVolWindow = 20

// AnnualizedVolatility devuelve la desviación estándar muestral de los últimos
// window retornos logarítmicos, anualizada con √PeriodsPerYear(g).
// Necesita window+1 cierres. ok=false si no hay datos suficientes o la
// volatilidad es cero/NaN (precio constante): el símbolo no es dimensionable.
func AnnualizedVolatility(closes []float64, window int, g domain.Granularity) (float64, bool) {
	if window < 2 || len(closes) < window+1 {
		return 0, false
	}
	tail := closes[len(closes)-window-1:]
	rets := make([]float64, 0, window)
	for i := 1; i < len(tail); i++ {
		if tail[i-1] <= 0 || tail[i] <= 0 {
			return 0, false
		}
		rets = append(rets, math.Log(tail[i]/tail[i-1]))
	}

	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	ss := 0.0
	for _, r := range rets {
		ss += (r - mean) * (r - mean)
	}
	vol := math.Sqrt(ss/float64(len(rets)-1)) * math.Sqrt(g.PeriodsPerYear())
	if vol == 0 || math.IsNaN(vol) || math.IsInf(vol, 0) {
		return 0, false
	}
	return vol, true
}

// EstimateVolatility devuelve la volatilidad de cada símbolo dimensionable.
func EstimateVolatility(series *domain.BarSeries, window int, g domain.Granularity) map[string]float64 {
	out := make(map[string]float64)
	for _, sym := range series.Symbols() {
		if v, ok := AnnualizedVolatility(series.Closes(sym), window, g); ok {
			out[sym] = v
		}
	}
	return out
}
