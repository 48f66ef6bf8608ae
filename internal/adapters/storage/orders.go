package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

const orderColumns = `id, run_id, symbol, side, qty, status, broker_id, parent_id, entry_price, created_at`

// SaveOrder inserta una orden y devuelve su id local.
func (s *SQLiteStorage) SaveOrder(ctx context.Context, o domain.OrderRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (run_id, symbol, side, qty, status, broker_id, parent_id, entry_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.Symbol, string(o.Side), o.Quantity, string(o.Status),
		o.BrokerID, o.ParentID, o.EntryPrice, formatTime(o.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("storage.SaveOrder: %s: %w", o.Symbol, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage.SaveOrder: last id: %w", err)
	}
	return id, nil
}

// UpdateOrder actualiza estado, broker id y precio de entrada de una orden existente.
func (s *SQLiteStorage) UpdateOrder(ctx context.Context, o domain.OrderRecord) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, broker_id = ?, parent_id = ?, entry_price = ? WHERE id = ?`,
		string(o.Status), o.BrokerID, o.ParentID, o.EntryPrice, o.ID)
	if err != nil {
		return fmt.Errorf("storage.UpdateOrder: %d: %w", o.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.UpdateOrder: %d: %w", o.ID, domain.ErrOrderNotFound)
	}
	return nil
}

// FindOrderByBrokerID busca la orden con ese id de broker.
func (s *SQLiteStorage) FindOrderByBrokerID(ctx context.Context, brokerID string) (domain.OrderRecord, error) {
	if brokerID == "" {
		return domain.OrderRecord{}, domain.ErrOrderNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE broker_id = ? ORDER BY id DESC LIMIT 1`, brokerID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.OrderRecord{}, fmt.Errorf("storage.FindOrderByBrokerID: %s: %w", brokerID, domain.ErrOrderNotFound)
	}
	if err != nil {
		return domain.OrderRecord{}, fmt.Errorf("storage.FindOrderByBrokerID: %s: %w", brokerID, err)
	}
	return o, nil
}

// OpenOrders devuelve las órdenes planned/submitted de symbol, la más reciente primero.
func (s *SQLiteStorage) OpenOrders(ctx context.Context, symbol string) ([]domain.OrderRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE symbol = ? AND status IN (?, ?) ORDER BY id DESC`,
		symbol, string(domain.OrderPlanned), string(domain.OrderSubmitted))
	if err != nil {
		return nil, fmt.Errorf("storage.OpenOrders: query: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderRecord
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.OpenOrders: scan row: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(r rowScanner) (domain.OrderRecord, error) {
	var o domain.OrderRecord
	var side, status, created string
	if err := r.Scan(&o.ID, &o.RunID, &o.Symbol, &side, &o.Quantity, &status,
		&o.BrokerID, &o.ParentID, &o.EntryPrice, &created); err != nil {
		return domain.OrderRecord{}, err
	}
	o.Side = domain.Side(side)
	o.Status = domain.OrderStatus(status)
	o.CreatedAt = parseTime(created)
	return o, nil
}
