// Package trigger turns a continuous tick stream into discrete cycle requests.
package trigger

import (
	"math"
	"sync"
	"time"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

const (
	DefaultMoveThreshold = 0.001
	DefaultHeartbeat     = 30 * time.Second
	DefaultCooldown      = 10 * time.Second
)

// Config controls when a tick becomes a cycle request.
type Config struct {
	MoveThreshold float64
	Heartbeat     time.Duration
	Cooldown      time.Duration
}

// Debouncer holds per-symbol price and fire bookkeeping.
// The price reference only moves when a symbol fires, so slow drifts still
// accumulate toward the threshold.
type Debouncer struct {
	cfg Config
	now func() time.Time

	mu         sync.Mutex
	lastPrice  map[string]float64
	lastFire   map[string]time.Time
	globalFire time.Time
}

// NewDebouncer fills zero config values with the package defaults.
func NewDebouncer(cfg Config) *Debouncer {
	if cfg.MoveThreshold <= 0 {
		cfg.MoveThreshold = DefaultMoveThreshold
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &Debouncer{
		cfg:       cfg,
		now:       time.Now,
		lastPrice: make(map[string]float64),
		lastFire:  make(map[string]time.Time),
	}
}

// Observe registra un tick y devuelve true si hay que lanzar un ciclo.
func (d *Debouncer) Observe(tick domain.Tick) bool {
	if tick.Price <= 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	last, seen := d.lastPrice[tick.Symbol]
	if !seen {
		d.lastPrice[tick.Symbol] = tick.Price
		return false
	}

	now := d.now()
	move := math.Abs(tick.Price-last) / last
	due := move >= d.cfg.MoveThreshold || now.Sub(d.lastFire[tick.Symbol]) >= d.cfg.Heartbeat
	if !due || now.Sub(d.globalFire) < d.cfg.Cooldown {
		return false
	}

	d.lastPrice[tick.Symbol] = tick.Price
	d.lastFire[tick.Symbol] = now
	d.globalFire = now
	return true
}
