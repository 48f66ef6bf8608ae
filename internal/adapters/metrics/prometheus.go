package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/paperpilot/internal/ports"
)

var (
	_ ports.Metrics = (*Recorder)(nil)
	_ ports.Metrics = Nop{}
)

// Recorder implements ports.Metrics using Prometheus.
type Recorder struct {
	cycles          *prometheus.CounterVec
	cycleDuration   *prometheus.HistogramVec
	orders          *prometheus.CounterVec
	rewards         *prometheus.CounterVec
	lastReward      *prometheus.GaugeVec
	triggers        *prometheus.CounterVec
	dispatchDropped prometheus.Counter
	equity          prometheus.Gauge
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperpilot_cycles_total",
				Help: "Decision cycles completed, by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		cycleDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paperpilot_cycle_duration_seconds",
				Help:    "Duration of decision cycles in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		orders: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperpilot_orders_total",
				Help: "Orders sent to the broker, by symbol and result",
			},
			[]string{"symbol", "result"},
		),
		rewards: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperpilot_rewards_total",
				Help: "Rewards attributed to arms",
			},
			[]string{"arm"},
		),
		lastReward: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "paperpilot_last_reward",
				Help: "Last reward observed per arm",
			},
			[]string{"arm"},
		),
		triggers: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperpilot_trigger_fires_total",
				Help: "Stream trigger fires, by symbol",
			},
			[]string{"symbol"},
		),
		dispatchDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "paperpilot_dispatch_dropped_total",
			Help: "Trigger fires dropped because a cycle was already running",
		}),
		equity: f.NewGauge(prometheus.GaugeOpts{
			Name: "paperpilot_equity",
			Help: "Last observed account or simulated equity",
		}),
	}
}

func (r *Recorder) CycleCompleted(mode, outcome string, took time.Duration) {
	r.cycles.WithLabelValues(mode, outcome).Inc()
	r.cycleDuration.WithLabelValues(mode).Observe(took.Seconds())
}

func (r *Recorder) OrderSubmitted(symbol string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	r.orders.WithLabelValues(symbol, result).Inc()
}

func (r *Recorder) RewardRecorded(armKey string, reward float64) {
	r.rewards.WithLabelValues(armKey).Inc()
	r.lastReward.WithLabelValues(armKey).Set(reward)
}

func (r *Recorder) TriggerFired(symbol string) { r.triggers.WithLabelValues(symbol).Inc() }

func (r *Recorder) DispatchDropped() { r.dispatchDropped.Inc() }

func (r *Recorder) SetEquity(v float64) { r.equity.Set(v) }

// Handler exposes the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) CycleCompleted(string, string, time.Duration) {}
func (Nop) OrderSubmitted(string, bool)                  {}
func (Nop) RewardRecorded(string, float64)               {}
func (Nop) TriggerFired(string)                          {}
func (Nop) DispatchDropped()                             {}
func (Nop) SetEquity(float64)                            {}
