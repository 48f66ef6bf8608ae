// Package regime classifies the market risk regime from a VIX proxy and a
// news sentiment score.
package regime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/paperpilot/internal/domain"
	"github.com/alejandrodnm/paperpilot/internal/ports"
)

const (
	DefaultShieldVIX        = 20.0
	DefaultCrisisVIX        = 30.0
	DefaultBearishSentiment = -0.5
	DefaultVIX              = 20.0
)

// Thresholds is a RegimeOracle. CRISIS when vix >= CrisisVIX; SHIELD_ACTIVE when
// vix >= ShieldVIX or sentiment <= BearishSentiment; SAFE otherwise.
type Thresholds struct {
	ShieldVIX        float64
	CrisisVIX        float64
	BearishSentiment float64
}

// DefaultThresholds returns the stock cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{ShieldVIX: DefaultShieldVIX, CrisisVIX: DefaultCrisisVIX, BearishSentiment: DefaultBearishSentiment}
}

func (t Thresholds) Classify(in domain.RegimeInputs) domain.RiskRegime {
	switch {
	case in.VIXProxy >= t.CrisisVIX:
		return domain.RegimeCrisis
	case in.VIXProxy >= t.ShieldVIX, in.Sentiment <= t.BearishSentiment:
		return domain.RegimeShieldActive
	default:
		return domain.RegimeSafe
	}
}

// MarketInputs gathers regime inputs for a live cycle: the last close of the VIX
// proxy symbol and a sentiment score.
type MarketInputs struct {
	market     ports.MarketDataSource
	sentiment  ports.SentimentSource
	vixSymbol  string
	defaultVIX float64
}

// NewMarketInputs builds a RegimeInputSource. sentiment may be nil.
func NewMarketInputs(market ports.MarketDataSource, sentiment ports.SentimentSource, vixSymbol string, defaultVIX float64) *MarketInputs {
	if defaultVIX <= 0 {
		defaultVIX = DefaultVIX
	}
	return &MarketInputs{market: market, sentiment: sentiment, vixSymbol: vixSymbol, defaultVIX: defaultVIX}
}

// RegimeInputs fails only when the VIX proxy cannot be read at all. A missing
// sentiment score counts as neutral.
func (m *MarketInputs) RegimeInputs(ctx context.Context) (domain.RegimeInputs, error) {
	in := domain.RegimeInputs{VIXProxy: m.defaultVIX}
	if m.vixSymbol != "" {
		px, err := m.market.GetLatestPrice(ctx, m.vixSymbol)
		if err != nil {
			return domain.RegimeInputs{}, fmt.Errorf("regime.RegimeInputs: vix %s: %w", m.vixSymbol, err)
		}
		in.VIXProxy = px
	}
	if m.sentiment != nil {
		s, err := m.sentiment.Sentiment(ctx)
		if err != nil {
			slog.Warn("regime: sentiment unavailable, using neutral", "err", err)
		} else {
			in.Sentiment = s
		}
	}
	return in, nil
}

// StaticSentiment is a fixed score, used by simulations and when no news feed
// is configured.
type StaticSentiment float64

func (s StaticSentiment) Sentiment(context.Context) (float64, error) { return float64(s), nil }
