package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del motor.
type Config struct {
	Strategy   StrategyConfig   `yaml:"strategy"`
	Regime     RegimeConfig     `yaml:"regime"`
	Stream     StreamConfig     `yaml:"stream"`
	Simulation SimulationConfig `yaml:"simulation"`
	Broker     BrokerConfig     `yaml:"broker"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// StrategyConfig controla el pipeline señal → tamaño → órdenes y el optimizador.
type StrategyConfig struct {
	Symbols           []string    `yaml:"symbols"`
	Granularity       string      `yaml:"granularity"` // 1d | 1m | 5m | 15m
	Lookback          int         `yaml:"lookback"`    // días (1d) o barras (intradía)
	VolWindow         int         `yaml:"vol_window"`
	MaxPositionWeight float64     `yaml:"max_position_weight"`
	LeverageCap       float64     `yaml:"leverage_cap"`
	LongOnly          *bool       `yaml:"long_only"` // nil → true
	Epsilon           *float64    `yaml:"epsilon"`   // nil → 0.2; 0 es válido (sólo explotar)
	Grid              bool        `yaml:"grid"`      // usar la rejilla completa en vez de los arms por defecto
	Arms              []ArmConfig `yaml:"arms"`
}

// ArmConfig es un arm declarado a mano.
type ArmConfig struct {
	Fast       int     `yaml:"fast"`
	Slow       int     `yaml:"slow"`
	VolTarget  float64 `yaml:"vol_target"`
	StopLoss   float64 `yaml:"sl_pct"`
	TakeProfit float64 `yaml:"tp_pct"`
	Threshold  float64 `yaml:"threshold"`
}

// RegimeConfig controla el clasificador de régimen y el gate.
type RegimeConfig struct {
	VIXSymbol        string        `yaml:"vix_symbol"` // vacío → usar default_vix
	DefaultVIX       float64       `yaml:"default_vix"`
	ShieldVIX        float64       `yaml:"shield_vix"`
	CrisisVIX        float64       `yaml:"crisis_vix"`
	BearishSentiment float64       `yaml:"bearish_sentiment"`
	HoldSentiment    float64       `yaml:"hold_sentiment"`
	Timeout          time.Duration `yaml:"timeout"`
	News             bool          `yaml:"news"` // sentimiento desde Alpaca News
	NewsLimit        int           `yaml:"news_limit"`
}

// StreamConfig controla el trigger por ticks.
type StreamConfig struct {
	MoveThreshold float64       `yaml:"move_threshold"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
	Cooldown      time.Duration `yaml:"cooldown"`
	Reconnect     time.Duration `yaml:"reconnect"`
}

// SimulationConfig controla las repeticiones offline.
type SimulationConfig struct {
	InitialEquity   float64 `yaml:"initial_equity"`
	Steps           int     `yaml:"steps"` // 0 → toda la historia
	CSVDir          string  `yaml:"csv_dir"`
	VIXCSV          string  `yaml:"vix_csv"`
	StressTest      bool    `yaml:"stress_test"`
	ValidationSteps int     `yaml:"validation_steps"`
	Refine          bool    `yaml:"refine"`
	Sentiment       float64 `yaml:"sentiment"`
}

// BrokerConfig contiene credenciales y endpoints de Alpaca.
type BrokerConfig struct {
	KeyID     string `yaml:"key_id"`
	Secret    string `yaml:"secret"`
	Paper     *bool  `yaml:"paper"` // nil → true
	TradeBase string `yaml:"trade_base"`
	DataBase  string `yaml:"data_base"`
	Feed      string `yaml:"feed"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// MetricsConfig controla el endpoint de Prometheus. Vacío → desactivado.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// IsLongOnly indica si las señales cortas se anulan antes del sizing.
func (c *Config) IsLongOnly() bool { return c.Strategy.LongOnly == nil || *c.Strategy.LongOnly }

// IsPaper indica si el broker apunta a la cuenta paper.
func (c *Config) IsPaper() bool { return c.Broker.Paper == nil || *c.Broker.Paper }

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Broker.KeyID = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Broker.Secret = v
	}
	if v := os.Getenv("ALPACA_PAPER"); v != "" {
		paper, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("ALPACA_PAPER: %w", err)
		}
		cfg.Broker.Paper = &paper
	}
	if v := os.Getenv("PILOT_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("PILOT_SYMBOLS"); v != "" {
		cfg.Strategy.Symbols = strings.Split(v, ",")
	}
	return nil
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	s := &cfg.Strategy
	if s.Granularity == "" {
		s.Granularity = "1d"
	}
	if s.Lookback <= 0 {
		s.Lookback = 365
	}
	if s.VolWindow <= 0 {
		s.VolWindow = 20
	}
	if s.MaxPositionWeight <= 0 {
		s.MaxPositionWeight = 0.50
	}
	if s.LeverageCap <= 0 {
		s.LeverageCap = 0.95
	}
	if s.Epsilon == nil {
		eps := 0.2
		s.Epsilon = &eps
	}

	r := &cfg.Regime
	if r.DefaultVIX <= 0 {
		r.DefaultVIX = 20
	}
	if r.ShieldVIX <= 0 {
		r.ShieldVIX = 20
	}
	if r.CrisisVIX <= 0 {
		r.CrisisVIX = 30
	}
	if r.BearishSentiment == 0 {
		r.BearishSentiment = -0.5
	}
	if r.HoldSentiment == 0 {
		r.HoldSentiment = -0.3
	}
	if r.Timeout <= 0 {
		r.Timeout = 5 * time.Second
	}
	if r.NewsLimit <= 0 {
		r.NewsLimit = 10
	}

	st := &cfg.Stream
	if st.MoveThreshold <= 0 {
		st.MoveThreshold = 0.001
	}
	if st.Heartbeat <= 0 {
		st.Heartbeat = 30 * time.Second
	}
	if st.Cooldown <= 0 {
		st.Cooldown = 10 * time.Second
	}
	if st.Reconnect <= 0 {
		st.Reconnect = 5 * time.Second
	}

	if cfg.Simulation.InitialEquity <= 0 {
		cfg.Simulation.InitialEquity = 100_000
	}
	if cfg.Simulation.CSVDir == "" {
		cfg.Simulation.CSVDir = "data"
	}

	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "paperpilot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if len(c.Strategy.Symbols) == 0 {
		return fmt.Errorf("strategy.symbols: at least one symbol required")
	}
	for i, sym := range c.Strategy.Symbols {
		c.Strategy.Symbols[i] = strings.ToUpper(strings.TrimSpace(sym))
	}
	if eps := *c.Strategy.Epsilon; eps < 0 || eps > 1 {
		return fmt.Errorf("strategy.epsilon: %v outside [0, 1]", eps)
	}
	switch c.Strategy.Granularity {
	case "1d", "1m", "5m", "15m":
	default:
		return fmt.Errorf("strategy.granularity: unknown %q", c.Strategy.Granularity)
	}
	if c.Regime.CrisisVIX < c.Regime.ShieldVIX {
		return fmt.Errorf("regime: crisis_vix %v below shield_vix %v", c.Regime.CrisisVIX, c.Regime.ShieldVIX)
	}
	return nil
}
