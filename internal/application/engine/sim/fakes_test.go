package sim

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

type memStore struct {
	mu        sync.Mutex
	stats     map[string]domain.ArmStatistics
	decisions map[string]domain.Decision
	equity    map[string][]domain.EquityPoint
}

func newMemStore() *memStore {
	return &memStore{
		stats:     make(map[string]domain.ArmStatistics),
		decisions: make(map[string]domain.Decision),
		equity:    make(map[string][]domain.EquityPoint),
	}
}

func (m *memStore) AllArmStats(context.Context) (map[string]domain.ArmStatistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.ArmStatistics, len(m.stats))
	for k, v := range m.stats {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) GetArmStats(_ context.Context, key string) (domain.ArmStatistics, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[key]
	return s, ok, nil
}

func (m *memStore) UpsertArmStats(_ context.Context, s domain.ArmStatistics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[s.ArmKey] = s
	return nil
}

func (m *memStore) ResetArmStats(context.Context) error { return nil }

func (m *memStore) totalTrials() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.stats {
		n += s.Trials
	}
	return n
}

func (m *memStore) AppendDecision(_ context.Context, d domain.Decision) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[d.RunID] = d
	return int64(len(m.decisions)), nil
}

func (m *memStore) GetDecision(_ context.Context, runID string) (domain.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decisions[runID]
	if !ok {
		return domain.Decision{}, domain.ErrDecisionNotFound
	}
	return d, nil
}

func (m *memStore) RecentDecisions(_ context.Context, limit int) ([]domain.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Decision, 0, len(m.decisions))
	for _, d := range m.decisions {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) AddDecisionReward(_ context.Context, runID string, reward float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decisions[runID]
	if !ok {
		return domain.ErrDecisionNotFound
	}
	r := reward
	if d.Reward != nil {
		r += *d.Reward
	}
	d.Reward = &r
	m.decisions[runID] = d
	return nil
}

func (m *memStore) AppendEquity(_ context.Context, session string, p domain.EquityPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equity[session] = append(m.equity[session], p)
	return nil
}

func (m *memStore) EquityCurve(_ context.Context, session string) ([]domain.EquityPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.EquityPoint(nil), m.equity[session]...), nil
}

type nopMetrics struct{}

func (nopMetrics) CycleCompleted(string, string, time.Duration) {}
func (nopMetrics) OrderSubmitted(string, bool)                  {}
func (nopMetrics) RewardRecorded(string, float64)               {}
func (nopMetrics) TriggerFired(string)                          {}
func (nopMetrics) DispatchDropped()                             {}
func (nopMetrics) SetEquity(float64)                            {}

type fixedOracle domain.RiskRegime

func (o fixedOracle) Classify(domain.RegimeInputs) domain.RiskRegime { return domain.RiskRegime(o) }
