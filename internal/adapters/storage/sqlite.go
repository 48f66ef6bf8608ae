package storage

// sqlite.go — persistencia del motor de decisión.
//
// Tablas:
//   - `arm_stats`: una fila por arm key (trials, total_reward). Es todo el estado
//     de aprendizaje; borrarla reinicia el optimizador.
//   - `decisions`: una fila por run_id. Re-grabar el mismo run la sobreescribe,
//     conservando el reward acumulado si el nuevo registro no trae uno.
//   - `orders`: órdenes live y sus patas de bracket (parent_id = broker id de la entrada).
//   - `equity`: curva de equity por sesión.

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/paperpilot/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS arm_stats (
    arm_key      TEXT PRIMARY KEY,
    trials       INTEGER NOT NULL DEFAULT 0,
    total_reward REAL    NOT NULL DEFAULT 0,
    updated_at   TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id    TEXT NOT NULL UNIQUE,
    mode      TEXT NOT NULL,
    ts        TEXT NOT NULL,
    arm_key   TEXT NOT NULL DEFAULT '',
    arm       TEXT NOT NULL DEFAULT '{}',  -- JSON ParameterSet
    regime    TEXT NOT NULL DEFAULT '',
    signals   TEXT NOT NULL DEFAULT '{}',  -- JSON symbol → -1/0/1
    targets   TEXT NOT NULL DEFAULT '{}',  -- JSON symbol → USD
    orders    TEXT NOT NULL DEFAULT '[]',  -- JSON []OrderDelta
    outcome   TEXT NOT NULL DEFAULT '',
    reasoning TEXT NOT NULL DEFAULT '',
    reward    REAL                          -- NULL hasta conocer el resultado
);

CREATE TABLE IF NOT EXISTS orders (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT    NOT NULL,
    symbol      TEXT    NOT NULL,
    side        TEXT    NOT NULL,
    qty         INTEGER NOT NULL,
    status      TEXT    NOT NULL,
    broker_id   TEXT    NOT NULL DEFAULT '',
    parent_id   TEXT    NOT NULL DEFAULT '',
    entry_price REAL    NOT NULL DEFAULT 0,
    created_at  TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    session      TEXT NOT NULL,
    ts           TEXT NOT NULL,
    equity       REAL NOT NULL,
    drawdown_pct REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_decisions_ts   ON decisions(ts DESC);
CREATE INDEX IF NOT EXISTS idx_orders_broker  ON orders(broker_id);
CREATE INDEX IF NOT EXISTS idx_orders_symbol  ON orders(symbol, status);
CREATE INDEX IF NOT EXISTS idx_equity_session ON equity(session, ts);
`

var _ ports.Storage = (*SQLiteStorage)(nil)

// SQLiteStorage implementa ports.Storage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse("2006-01-02 15:04:05", s)
	}
	return t
}
