package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Strategy StrategyConfig `yaml:"strategy"`
	Trader   TraderConfig   `yaml:"trader"`
	Backtest BacktestConfig `yaml:"backtest"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// StrategyConfig son los parámetros de la estrategia de umbral.
type StrategyConfig struct {
	Threshold      float64 `yaml:"threshold"`       // best bid que dispara la entrada
	Margin         float64 `yaml:"margin"`          // sobreprecio del límite de compra
	UpperThreshold float64 `yaml:"upper_threshold"` // por encima, el precio ya corrió demasiado; 0 desactiva
	StopLoss       float64 `yaml:"stop_loss"`       // bid por debajo dispara la salida anticipada; 0 desactiva
	MarginSell     float64 `yaml:"margin_sell"`     // descuento del límite de venta anticipada

	KellyFraction float64 `yaml:"kelly_fraction"`
	ScaleFactor   float64 `yaml:"scale_factor"`
	MaxStake      float64 `yaml:"max_stake"`
	MinNotional   float64 `yaml:"min_notional"`
	WinProb       float64 `yaml:"win_prob"` // probabilidad estimada para Kelly; 0 usa el precio del trigger

	ConfirmationSeconds     int     `yaml:"confirmation_seconds"`      // el cruce debe sostenerse este tiempo; 0 desactiva
	SellConfirmationSeconds int     `yaml:"sell_confirmation_seconds"` // ídem para el stop-loss; 0 desactiva
	InitialSellPrice        float64 `yaml:"initial_sell_price"`
}

// TraderConfig controla el comportamiento del motor en vivo.
type TraderConfig struct {
	DeploymentID           string  `yaml:"deployment_id"`
	InitialPrincipal       float64 `yaml:"initial_principal"`
	PollSeconds            int     `yaml:"poll_seconds"`
	SettlementDelaySeconds int     `yaml:"settlement_delay_seconds"` // espera tras el fill de compra antes de colocar la venta
	ResolutionPollSeconds  int     `yaml:"resolution_poll_seconds"`
	OrderRetries           int     `yaml:"order_retries"`
	RetryBackoffSeconds    int     `yaml:"retry_backoff_seconds"`
	ExitMinutesBeforeEnd   int     `yaml:"exit_minutes_before_end"` // mercados deportivos: salir antes de la resolución; 0 desactiva

	Markets []MarketRef `yaml:"markets"`
}

// MarketRef identifica un mercado a vigilar con sus dos tokens.
type MarketRef struct {
	ID         string `yaml:"id"`
	Slug       string `yaml:"slug"`
	YesTokenID string `yaml:"yes_token_id"`
	NoTokenID  string `yaml:"no_token_id"`
}

// BacktestConfig define la rejilla de búsqueda de parámetros.
type BacktestConfig struct {
	Thresholds []float64 `yaml:"thresholds"`
	Margins    []float64 `yaml:"margins"`
	Stakes     []float64 `yaml:"stakes"`
	Workers    int       `yaml:"workers"`
	SortBy     string    `yaml:"sort_by"` // avg_roi | win_rate | sharpe | pnl
	TopN       int       `yaml:"top_n"`
}

// APIConfig contiene los base URLs de las APIs.
type APIConfig struct {
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
	APIKey    string `yaml:"-"` // solo desde POLY_API_KEY
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

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PollInterval devuelve la cadencia de sondeo del orderbook.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Trader.PollSeconds) * time.Second
}

// SettlementDelay devuelve la espera entre el fill de compra y la venta inicial.
func (c *Config) SettlementDelay() time.Duration {
	return time.Duration(c.Trader.SettlementDelaySeconds) * time.Second
}

// ResolutionPoll devuelve la cadencia de consulta de resolución.
func (c *Config) ResolutionPoll() time.Duration {
	return time.Duration(c.Trader.ResolutionPollSeconds) * time.Second
}

// RetryBackoff devuelve la espera entre reintentos de órdenes.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Trader.RetryBackoffSeconds) * time.Second
}

// ConfirmationWindow devuelve cuánto debe sostenerse el cruce antes de comprar.
func (c *Config) ConfirmationWindow() time.Duration {
	return time.Duration(c.Strategy.ConfirmationSeconds) * time.Second
}

// SellConfirmationWindow devuelve cuánto debe sostenerse el stop-loss antes
// de cancelar la venta inicial.
func (c *Config) SellConfirmationWindow() time.Duration {
	return time.Duration(c.Strategy.SellConfirmationSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("POLY_API_KEY"); v != "" {
		cfg.API.APIKey = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("INITIAL_PRINCIPAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trader.InitialPrincipal = f
		}
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Strategy.Threshold <= 0 {
		cfg.Strategy.Threshold = 0.85
	}
	if cfg.Strategy.Margin <= 0 {
		cfg.Strategy.Margin = 0.02
	}
	if cfg.Strategy.MarginSell <= 0 {
		cfg.Strategy.MarginSell = 0.02
	}
	if cfg.Strategy.KellyFraction <= 0 {
		cfg.Strategy.KellyFraction = 0.05
	}
	if cfg.Strategy.ScaleFactor <= 0 {
		cfg.Strategy.ScaleFactor = 0.5
	}
	if cfg.Strategy.MaxStake <= 0 {
		cfg.Strategy.MaxStake = 50
	}
	if cfg.Strategy.MinNotional <= 0 {
		cfg.Strategy.MinNotional = 1
	}
	if cfg.Strategy.InitialSellPrice <= 0 {
		cfg.Strategy.InitialSellPrice = 0.99
	}
	if cfg.Trader.DeploymentID == "" {
		cfg.Trader.DeploymentID = "default"
	}
	if cfg.Trader.InitialPrincipal <= 0 {
		cfg.Trader.InitialPrincipal = 1000
	}
	if cfg.Trader.PollSeconds <= 0 {
		cfg.Trader.PollSeconds = 5
	}
	if cfg.Trader.ResolutionPollSeconds <= 0 {
		cfg.Trader.ResolutionPollSeconds = 60
	}
	if cfg.Trader.OrderRetries <= 0 {
		cfg.Trader.OrderRetries = 3
	}
	if cfg.Trader.RetryBackoffSeconds <= 0 {
		cfg.Trader.RetryBackoffSeconds = 2
	}
	if cfg.Backtest.Workers <= 0 {
		cfg.Backtest.Workers = 4
	}
	if cfg.Backtest.SortBy == "" {
		cfg.Backtest.SortBy = "avg_roi"
	}
	if cfg.Backtest.TopN <= 0 {
		cfg.Backtest.TopN = 20
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "thresholdbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// validate rechaza combinaciones de parámetros sin sentido.
func validate(cfg *Config) error {
	s := cfg.Strategy
	if s.Threshold >= 1 {
		return fmt.Errorf("config.Load: threshold %.2f fuera de (0, 1)", s.Threshold)
	}
	if s.UpperThreshold > 0 && s.UpperThreshold <= s.Threshold {
		return fmt.Errorf("config.Load: upper_threshold %.2f debe superar threshold %.2f", s.UpperThreshold, s.Threshold)
	}
	if s.StopLoss > 0 && s.StopLoss >= s.Threshold {
		return fmt.Errorf("config.Load: stop_loss %.2f debe ser menor que threshold %.2f", s.StopLoss, s.Threshold)
	}
	if s.WinProb < 0 || s.WinProb > 1 {
		return fmt.Errorf("config.Load: win_prob %.2f fuera de [0, 1]", s.WinProb)
	}
	return nil
}
