package storage

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// AppendEquity añade un punto a la curva de la sesión.
func (s *SQLiteStorage) AppendEquity(ctx context.Context, session string, p domain.EquityPoint) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO equity (session, ts, equity, drawdown_pct) VALUES (?, ?, ?, ?)`,
		session, formatTime(p.Timestamp), p.Equity, p.DrawdownPct,
	); err != nil {
		return fmt.Errorf("storage.AppendEquity: %s: %w", session, err)
	}
	return nil
}

// EquityCurve devuelve la curva de una sesión en orden temporal.
func (s *SQLiteStorage) EquityCurve(ctx context.Context, session string) ([]domain.EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, equity, drawdown_pct FROM equity WHERE session = ? ORDER BY ts ASC, id ASC`, session)
	if err != nil {
		return nil, fmt.Errorf("storage.EquityCurve: query: %w", err)
	}
	defer rows.Close()

	var out []domain.EquityPoint
	for rows.Next() {
		var p domain.EquityPoint
		var ts string
		if err := rows.Scan(&ts, &p.Equity, &p.DrawdownPct); err != nil {
			return nil, fmt.Errorf("storage.EquityCurve: scan row: %w", err)
		}
		p.Timestamp = parseTime(ts)
		out = append(out, p)
	}
	return out, rows.Err()
}
