// Package optimizer implements the epsilon-greedy arm selection over strategy
// parameter sets, backed by a durable StatisticsStore.
package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/paperpilot/internal/domain"
	"github.com/alejandrodnm/paperpilot/internal/ports"
)

// DefaultEpsilon is the exploration probability used when none is configured.
const DefaultEpsilon = 0.2

// DefaultArms son los arms semilla cuando no hay otros configurados.
func DefaultArms() []domain.ParameterSet {
	return []domain.ParameterSet{
		{FastWindow: 5, SlowWindow: 15, VolTarget: 0.4},
		{FastWindow: 10, SlowWindow: 30, VolTarget: 0.3},
		{FastWindow: 20, SlowWindow: 60, VolTarget: 0.15},
		{FastWindow: 50, SlowWindow: 100, VolTarget: 0.1},
	}
}

// Optimizer owns the candidate arm list and is the single mutation path for
// arm statistics.
type Optimizer struct {
	store   ports.StatisticsStore
	epsilon float64
	now     func() time.Time

	mu   sync.RWMutex
	arms []domain.ParameterSet

	rngMu sync.Mutex
	rng   *rand.Rand

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithRand sets the random source used for exploration.
func WithRand(r *rand.Rand) Option {
	return func(o *Optimizer) { o.rng = r }
}

// WithClock overrides time.Now for statistics timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Optimizer) { o.now = now }
}

// New builds an optimizer seeded with defaults (DefaultArms if empty) and
// extended with every arm key already present in the store.
func New(ctx context.Context, store ports.StatisticsStore, epsilon float64, defaults []domain.ParameterSet, opts ...Option) (*Optimizer, error) {
	if epsilon < 0 || epsilon > 1 {
		return nil, fmt.Errorf("optimizer.New: epsilon %v outside [0,1]", epsilon)
	}
	if len(defaults) == 0 {
		defaults = DefaultArms()
	}
	o := &Optimizer{
		store:   store,
		epsilon: epsilon,
		now:     time.Now,
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(o)
	}

	arms := dedupe(defaults)
	if len(arms) == 0 {
		return nil, fmt.Errorf("optimizer.New: %w", domain.ErrNoArms)
	}
	imported, err := o.importStored(ctx, arms)
	if err != nil {
		return nil, fmt.Errorf("optimizer.New: %w", err)
	}
	o.arms = append(arms, imported...)
	return o, nil
}

func (o *Optimizer) importStored(ctx context.Context, arms []domain.ParameterSet) ([]domain.ParameterSet, error) {
	stats, err := o.store.AllArmStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	known := make(map[string]bool, len(arms))
	for _, a := range arms {
		known[a.Key()] = true
	}
	keys := make([]string, 0, len(stats))
	for k := range stats {
		if !known[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out []domain.ParameterSet
	for _, k := range keys {
		arm, err := domain.ParseArmKey(k)
		if err != nil {
			slog.Warn("optimizer: skipping stored arm", "key", k, "err", err)
			continue
		}
		out = append(out, arm)
	}
	return out, nil
}

// Epsilon returns the exploration probability.
func (o *Optimizer) Epsilon() float64 { return o.epsilon }

// Arms returns a copy of the candidate list.
func (o *Optimizer) Arms() []domain.ParameterSet {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]domain.ParameterSet(nil), o.arms...)
}

// SetArms replaces the candidate list. Duplicated arms keep their first position.
func (o *Optimizer) SetArms(arms []domain.ParameterSet) error {
	arms = dedupe(arms)
	if len(arms) == 0 {
		return fmt.Errorf("optimizer.SetArms: %w", domain.ErrNoArms)
	}
	o.mu.Lock()
	o.arms = arms
	o.mu.Unlock()
	return nil
}

// AddArms appends arms that are not already candidates and returns how many were added.
func (o *Optimizer) AddArms(arms []domain.ParameterSet) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	before := len(o.arms)
	o.arms = dedupe(append(o.arms, arms...))
	return len(o.arms) - before
}

// Choose picks a uniformly random arm with probability epsilon and the best
// known arm otherwise.
func (o *Optimizer) Choose(ctx context.Context) (domain.ParameterSet, error) {
	arms := o.Arms()
	if len(arms) == 0 {
		return domain.ParameterSet{}, fmt.Errorf("optimizer.Choose: %w", domain.ErrNoArms)
	}
	o.rngMu.Lock()
	explore := o.rng.Float64() < o.epsilon
	idx := 0
	if explore {
		idx = o.rng.IntN(len(arms))
	}
	o.rngMu.Unlock()

	if explore {
		slog.Debug("optimizer: exploring", "arm", arms[idx].Key())
		return arms[idx], nil
	}
	return o.best(ctx, arms)
}

// Best returns the candidate with the highest average reward without exploring.
// Untried arms score 0; ties keep the earliest candidate.
func (o *Optimizer) Best(ctx context.Context) (domain.ParameterSet, error) {
	arms := o.Arms()
	if len(arms) == 0 {
		return domain.ParameterSet{}, fmt.Errorf("optimizer.Best: %w", domain.ErrNoArms)
	}
	return o.best(ctx, arms)
}

func (o *Optimizer) best(ctx context.Context, arms []domain.ParameterSet) (domain.ParameterSet, error) {
	stats, err := o.store.AllArmStats(ctx)
	if err != nil {
		return domain.ParameterSet{}, fmt.Errorf("optimizer.Best: load stats: %w", err)
	}
	best := arms[0]
	bestScore := stats[best.Key()].AvgReward()
	for _, arm := range arms[1:] {
		if score := stats[arm.Key()].AvgReward(); score > bestScore {
			best, bestScore = arm, score
		}
	}
	return best, nil
}

// Update records one reward for arm. Updates to the same key are serialized;
// different keys proceed independently. An arm that fails validation is
// rejected with domain.ErrOptimizerInconsistency and no statistics change.
func (o *Optimizer) Update(ctx context.Context, arm domain.ParameterSet, reward float64) (domain.ArmStatistics, error) {
	if err := arm.Validate(); err != nil {
		return domain.ArmStatistics{}, fmt.Errorf("optimizer.Update: %w: %v", domain.ErrOptimizerInconsistency, err)
	}
	key := arm.Key()
	lock := o.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	cur, ok, err := o.store.GetArmStats(ctx, key)
	if err != nil {
		return domain.ArmStatistics{}, fmt.Errorf("optimizer.Update: get %s: %w", key, err)
	}
	if !ok {
		cur = domain.ArmStatistics{ArmKey: key}
	}
	next := cur.Record(reward, o.now())
	if err := o.store.UpsertArmStats(ctx, next); err != nil {
		return domain.ArmStatistics{}, fmt.Errorf("optimizer.Update: upsert %s: %w", key, err)
	}
	slog.Debug("optimizer: arm updated", "arm", key, "reward", reward, "trials", next.Trials, "avg", next.AvgReward())
	return next, nil
}

func (o *Optimizer) keyLock(key string) *sync.Mutex {
	o.locksMu.Lock()
	defer o.locksMu.Unlock()
	l, ok := o.locks[key]
	if !ok {
		l = &sync.Mutex{}
		o.locks[key] = l
	}
	return l
}

// ArmReport pairs a stored statistics row with its parsed arm.
type ArmReport struct {
	Arm   domain.ParameterSet
	Stats domain.ArmStatistics
}

// Leaderboard returns every stored arm ordered by average reward, best first.
func (o *Optimizer) Leaderboard(ctx context.Context) ([]ArmReport, error) {
	stats, err := o.store.AllArmStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("optimizer.Leaderboard: %w", err)
	}
	out := make([]ArmReport, 0, len(stats))
	for key, s := range stats {
		arm, err := domain.ParseArmKey(key)
		if err != nil {
			slog.Warn("optimizer: unreadable arm key", "key", key, "err", err)
			continue
		}
		out = append(out, ArmReport{Arm: arm, Stats: s})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].Stats.AvgReward(), out[j].Stats.AvgReward()
		if ai != aj {
			return ai > aj
		}
		return out[i].Stats.ArmKey < out[j].Stats.ArmKey
	})
	return out, nil
}

func dedupe(arms []domain.ParameterSet) []domain.ParameterSet {
	seen := make(map[domain.ParameterSet]bool, len(arms))
	out := make([]domain.ParameterSet, 0, len(arms))
	for _, a := range arms {
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
