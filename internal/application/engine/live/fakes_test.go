package live

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

type memStore struct {
	mu        sync.Mutex
	stats     map[string]domain.ArmStatistics
	decisions map[string]domain.Decision
	orders    []domain.OrderRecord
	equity    []domain.EquityPoint
}

func newMemStore() *memStore {
	return &memStore{
		stats:     make(map[string]domain.ArmStatistics),
		decisions: make(map[string]domain.Decision),
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

func (m *memStore) RecentDecisions(context.Context, int) ([]domain.Decision, error) { return nil, nil }

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

func (m *memStore) SaveOrder(_ context.Context, o domain.OrderRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = int64(len(m.orders) + 1)
	m.orders = append(m.orders, o)
	return o.ID, nil
}

func (m *memStore) UpdateOrder(_ context.Context, o domain.OrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID == o.ID {
			m.orders[i] = o
			return nil
		}
	}
	return domain.ErrOrderNotFound
}

func (m *memStore) FindOrderByBrokerID(_ context.Context, id string) (domain.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.BrokerID == id && id != "" {
			return o, nil
		}
	}
	return domain.OrderRecord{}, domain.ErrOrderNotFound
}

func (m *memStore) OpenOrders(_ context.Context, symbol string) ([]domain.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OrderRecord
	for _, o := range m.orders {
		if o.Symbol == symbol && o.Status.Open() {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) AppendEquity(_ context.Context, _ string, p domain.EquityPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equity = append(m.equity, p)
	return nil
}

func (m *memStore) EquityCurve(context.Context, string) ([]domain.EquityPoint, error) {
	return m.equity, nil
}

func (m *memStore) ordersFor(symbol string) []domain.OrderRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OrderRecord
	for _, o := range m.orders {
		if o.Symbol == symbol {
			out = append(out, o)
		}
	}
	return out
}

// fakeBroker implements market data, account and execution.
type fakeBroker struct {
	mu        sync.Mutex
	bars      *domain.BarSeries
	barsErr   error
	budget    float64
	positions []domain.Position
	rejects   map[string]bool
	calls     []string
	nextID    int

	inFlight, maxInFlight atomic.Int32
	delay                 time.Duration
}

func (b *fakeBroker) GetBars(ctx context.Context, symbols []string, lookback int, g domain.Granularity) (*domain.BarSeries, error) {
	n := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		cur := b.maxInFlight.Load()
		if n <= cur || b.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.barsErr != nil {
		return nil, b.barsErr
	}
	return b.bars, nil
}

func (b *fakeBroker) GetLatestPrice(_ context.Context, symbol string) (float64, error) {
	return 0, fmt.Errorf("no trades for %s", symbol)
}

func (b *fakeBroker) GetBudget(context.Context) (float64, error) { return b.budget, nil }

func (b *fakeBroker) GetPositions(context.Context) ([]domain.Position, error) {
	return b.positions, nil
}

func (b *fakeBroker) Submit(_ context.Context, o domain.OrderDelta, bracket *domain.Bracket) (domain.SubmittedOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "submit:"+o.Symbol)
	if b.rejects[o.Symbol] {
		return domain.SubmittedOrder{}, errors.New("insufficient buying power")
	}
	b.nextID++
	id := fmt.Sprintf("ord-%d", b.nextID)
	sub := domain.SubmittedOrder{ID: id}
	if bracket != nil {
		sub.LegIDs = []string{id + "-tp", id + "-sl"}
	}
	return sub, nil
}

func (b *fakeBroker) CancelOpenOrders(_ context.Context, symbol string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "cancel:"+symbol)
	return nil
}

type staticRegime struct {
	in  domain.RegimeInputs
	err error
}

func (s staticRegime) RegimeInputs(context.Context) (domain.RegimeInputs, error) { return s.in, s.err }

type vixOracle struct{}

func (vixOracle) Classify(in domain.RegimeInputs) domain.RiskRegime {
	switch {
	case in.VIXProxy >= 30:
		return domain.RegimeCrisis
	case in.VIXProxy >= 20:
		return domain.RegimeShieldActive
	}
	return domain.RegimeSafe
}

type nopNotifier struct{}

func (nopNotifier) NotifyDecision(context.Context, domain.Decision) error { return nil }

type nopMetrics struct{}

func (nopMetrics) CycleCompleted(string, string, time.Duration) {}
func (nopMetrics) OrderSubmitted(string, bool)                  {}
func (nopMetrics) RewardRecorded(string, float64)               {}
func (nopMetrics) TriggerFired(string)                          {}
func (nopMetrics) DispatchDropped()                             {}
func (nopMetrics) SetEquity(float64)                            {}
