package ports

import (
	"context"

	"github.com/alejandrodnm/paperpilot/internal/domain"
)

// StatisticsStore persiste las estadísticas de cada arm, indexadas por su key canónica.
type StatisticsStore interface {
	// AllArmStats devuelve todas las estadísticas guardadas.
	AllArmStats(ctx context.Context) (map[string]domain.ArmStatistics, error)

	// GetArmStats devuelve las estadísticas de una key. ok=false si nunca se actualizó.
	GetArmStats(ctx context.Context, key string) (domain.ArmStatistics, bool, error)

	UpsertArmStats(ctx context.Context, s domain.ArmStatistics) error

	// ResetArmStats borra todo el estado de aprendizaje.
	ResetArmStats(ctx context.Context) error
}

// DecisionLog es el registro append-only de decisiones.
type DecisionLog interface {
	// AppendDecision guarda una decisión y devuelve su id.
	AppendDecision(ctx context.Context, d domain.Decision) (int64, error)

	// GetDecision devuelve la decisión de un run. domain.ErrDecisionNotFound si no existe.
	GetDecision(ctx context.Context, runID string) (domain.Decision, error)

	// RecentDecisions devuelve las últimas limit decisiones, la más reciente primero.
	RecentDecisions(ctx context.Context, limit int) ([]domain.Decision, error)

	// AddDecisionReward suma reward al reward de la decisión (NULL cuenta como 0).
	AddDecisionReward(ctx context.Context, runID string, reward float64) error
}

// OrderBook guarda el estado de las órdenes live y sus patas de bracket.
type OrderBook interface {
	SaveOrder(ctx context.Context, o domain.OrderRecord) (int64, error)
	UpdateOrder(ctx context.Context, o domain.OrderRecord) error

	// FindOrderByBrokerID devuelve domain.ErrOrderNotFound si no hay coincidencia.
	FindOrderByBrokerID(ctx context.Context, brokerID string) (domain.OrderRecord, error)

	// OpenOrders devuelve las órdenes abiertas de symbol, la más reciente primero.
	OpenOrders(ctx context.Context, symbol string) ([]domain.OrderRecord, error)
}

// EquityLog guarda la curva de equity de cada sesión de simulación o live.
type EquityLog interface {
	AppendEquity(ctx context.Context, session string, p domain.EquityPoint) error
	EquityCurve(ctx context.Context, session string) ([]domain.EquityPoint, error)
}

// Storage agrupa todos los repositorios respaldados por la misma base de datos.
type Storage interface {
	StatisticsStore
	DecisionLog
	OrderBook
	EquityLog

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
