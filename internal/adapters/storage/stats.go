package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// AllArmStats devuelve todas las estadísticas guardadas, indexadas por key.
func (s *SQLiteStorage) AllArmStats(ctx context.Context) (map[string]domain.ArmStatistics, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT arm_key, trials, total_reward, updated_at FROM arm_stats`)
	if err != nil {
		return nil, fmt.Errorf("storage.AllArmStats: query: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.ArmStatistics)
	for rows.Next() {
		var st domain.ArmStatistics
		var updated string
		if err := rows.Scan(&st.ArmKey, &st.Trials, &st.TotalReward, &updated); err != nil {
			return nil, fmt.Errorf("storage.AllArmStats: scan row: %w", err)
		}
		st.UpdatedAt = parseTime(updated)
		out[st.ArmKey] = st
	}
	return out, rows.Err()
}

// GetArmStats devuelve las estadísticas de una key; ok=false si nunca se actualizó.
func (s *SQLiteStorage) GetArmStats(ctx context.Context, key string) (domain.ArmStatistics, bool, error) {
	st := domain.ArmStatistics{ArmKey: key}
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT trials, total_reward, updated_at FROM arm_stats WHERE arm_key = ?`, key,
	).Scan(&st.Trials, &st.TotalReward, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return st, false, nil
	}
	if err != nil {
		return domain.ArmStatistics{}, false, fmt.Errorf("storage.GetArmStats: %s: %w", key, err)
	}
	st.UpdatedAt = parseTime(updated)
	return st, true, nil
}

// UpsertArmStats guarda el estado completo de un arm.
func (s *SQLiteStorage) UpsertArmStats(ctx context.Context, st domain.ArmStatistics) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO arm_stats (arm_key, trials, total_reward, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(arm_key) DO UPDATE SET
			trials       = excluded.trials,
			total_reward = excluded.total_reward,
			updated_at   = excluded.updated_at`,
		st.ArmKey, st.Trials, st.TotalReward, formatTime(st.UpdatedAt),
	); err != nil {
		return fmt.Errorf("storage.UpsertArmStats: %s: %w", st.ArmKey, err)
	}
	return nil
}

// ResetArmStats borra todo el estado de aprendizaje.
func (s *SQLiteStorage) ResetArmStats(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM arm_stats`); err != nil {
		return fmt.Errorf("storage.ResetArmStats: %w", err)
	}
	return nil
}
