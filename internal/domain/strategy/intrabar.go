package strategy

import "github.com/alejandrodnm/paperpilot/internal/domain"

// Outcome es el resultado simulado de mantener una posición durante la barra siguiente.
type Outcome struct {
	ExitPrice     float64
	StopTriggered bool
	TPTriggered   bool
	// Return es (exit-entry)/entry con el signo de la posición.
	Return float64
}

// ResolveIntrabar decide la salida de una posición abierta a entry contra next.
// El stop-loss se evalúa antes que el take-profit. Para cortos los niveles se invierten.
func ResolveIntrabar(entry float64, next domain.Bar, stopLossPct, takeProfitPct float64, side domain.Signal) Outcome {
	if entry <= 0 || side == domain.SignalFlat {
		return Outcome{ExitPrice: next.Close}
	}
	dir := float64(side)
	var out Outcome
	if side > 0 {
		switch {
		case (next.Low-entry)/entry < -stopLossPct:
			out = Outcome{ExitPrice: entry * (1 - stopLossPct), StopTriggered: true}
		case (next.High-entry)/entry > takeProfitPct:
			out = Outcome{ExitPrice: entry * (1 + takeProfitPct), TPTriggered: true}
		default:
			out = Outcome{ExitPrice: next.Close}
		}
	} else {
		switch {
		case (next.High-entry)/entry > stopLossPct:
			out = Outcome{ExitPrice: entry * (1 + stopLossPct), StopTriggered: true}
		case (next.Low-entry)/entry < -takeProfitPct:
			out = Outcome{ExitPrice: entry * (1 - takeProfitPct), TPTriggered: true}
		default:
			out = Outcome{ExitPrice: next.Close}
		}
	}
	out.Return = (out.ExitPrice - entry) / entry * dir
	return out
}
