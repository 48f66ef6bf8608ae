package ports

import (
	"context"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// RegimeOracle clasifica el régimen de riesgo. Es una función pura de sus entradas.
type RegimeOracle interface {
	Classify(in domain.RegimeInputs) domain.RiskRegime
}

// RegimeInputSource reúne el proxy de VIX y el sentimiento para un ciclo.
type RegimeInputSource interface {
	RegimeInputs(ctx context.Context) (domain.RegimeInputs, error)
}

// SentimentSource devuelve un score de sentimiento en [-1, 1].
type SentimentSource interface {
	Sentiment(ctx context.Context) (float64, error)
}
