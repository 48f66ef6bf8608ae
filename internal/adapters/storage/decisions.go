package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

const decisionColumns = `id, run_id, mode, ts, arm, regime, signals, targets, orders, outcome, reasoning, reward`

// AppendDecision guarda una decisión. Un run_id repetido sobreescribe la fila
// anterior; el reward existente se conserva si d.Reward es nil.
func (s *SQLiteStorage) AppendDecision(ctx context.Context, d domain.Decision) (int64, error) {
	arm, err := json.Marshal(d.Arm)
	if err != nil {
		return 0, fmt.Errorf("storage.AppendDecision: arm: %w", err)
	}
	signals, err := json.Marshal(orEmpty(d.Signals))
	if err != nil {
		return 0, fmt.Errorf("storage.AppendDecision: signals: %w", err)
	}
	targets, err := json.Marshal(orEmpty(d.Targets))
	if err != nil {
		return 0, fmt.Errorf("storage.AppendDecision: targets: %w", err)
	}
	orders := d.Orders
	if orders == nil {
		orders = []domain.OrderDelta{}
	}
	ordersJSON, err := json.Marshal(orders)
	if err != nil {
		return 0, fmt.Errorf("storage.AppendDecision: orders: %w", err)
	}

	var reward sql.NullFloat64
	if d.Reward != nil {
		reward = sql.NullFloat64{Float64: *d.Reward, Valid: true}
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO decisions
			(run_id, mode, ts, arm_key, arm, regime, signals, targets, orders, outcome, reasoning, reward)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			mode      = excluded.mode,
			ts        = excluded.ts,
			arm_key   = excluded.arm_key,
			arm       = excluded.arm,
			regime    = excluded.regime,
			signals   = excluded.signals,
			targets   = excluded.targets,
			orders    = excluded.orders,
			outcome   = excluded.outcome,
			reasoning = excluded.reasoning,
			reward    = COALESCE(excluded.reward, decisions.reward)
		RETURNING id`,
		d.RunID, string(d.Mode), formatTime(d.Timestamp), d.Arm.Key(), string(arm), string(d.Regime),
		string(signals), string(targets), string(ordersJSON), d.Outcome, d.Reasoning, reward,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("storage.AppendDecision: %s: %w", d.RunID, err)
	}
	return id, nil
}

// GetDecision devuelve la decisión de un run, o domain.ErrDecisionNotFound.
func (s *SQLiteStorage) GetDecision(ctx context.Context, runID string) (domain.Decision, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+decisionColumns+` FROM decisions WHERE run_id = ?`, runID)
	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Decision{}, fmt.Errorf("storage.GetDecision: %s: %w", runID, domain.ErrDecisionNotFound)
	}
	if err != nil {
		return domain.Decision{}, fmt.Errorf("storage.GetDecision: %s: %w", runID, err)
	}
	return d, nil
}

// RecentDecisions devuelve las últimas limit decisiones, la más reciente primero.
func (s *SQLiteStorage) RecentDecisions(ctx context.Context, limit int) ([]domain.Decision, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+decisionColumns+` FROM decisions ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentDecisions: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.RecentDecisions: scan row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// AddDecisionReward suma reward al acumulado de la decisión (NULL cuenta como 0).
func (s *SQLiteStorage) AddDecisionReward(ctx context.Context, runID string, reward float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE decisions SET reward = COALESCE(reward, 0) + ? WHERE run_id = ?`, reward, runID)
	if err != nil {
		return fmt.Errorf("storage.AddDecisionReward: %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.AddDecisionReward: %s: %w", runID, domain.ErrDecisionNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(r rowScanner) (domain.Decision, error) {
	var (
		d                             domain.Decision
		mode, ts, regime              string
		arm, signals, targets, orders string
		reward                        sql.NullFloat64
	)
	if err := r.Scan(&d.ID, &d.RunID, &mode, &ts, &arm, &regime,
		&signals, &targets, &orders, &d.Outcome, &d.Reasoning, &reward); err != nil {
		return domain.Decision{}, err
	}
	d.Mode = domain.Mode(mode)
	d.Timestamp = parseTime(ts)
	d.Regime = domain.RiskRegime(regime)
	if err := json.Unmarshal([]byte(arm), &d.Arm); err != nil {
		return domain.Decision{}, fmt.Errorf("arm: %w", err)
	}
	if err := json.Unmarshal([]byte(signals), &d.Signals); err != nil {
		return domain.Decision{}, fmt.Errorf("signals: %w", err)
	}
	if err := json.Unmarshal([]byte(targets), &d.Targets); err != nil {
		return domain.Decision{}, fmt.Errorf("targets: %w", err)
	}
	if err := json.Unmarshal([]byte(orders), &d.Orders); err != nil {
		return domain.Decision{}, fmt.Errorf("orders: %w", err)
	}
	if reward.Valid {
		r := reward.Float64
		d.Reward = &r
	}
	return d, nil
}

func orEmpty[V any](m map[string]V) map[string]V {
	if m == nil {
		return map[string]V{}
	}
	return m
}
