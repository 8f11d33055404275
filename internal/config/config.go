package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/indicator"
	"github.com/newthinker/reversion/internal/journal"
	"github.com/newthinker/reversion/internal/notifier"
	"github.com/newthinker/reversion/internal/quality"
	"github.com/newthinker/reversion/internal/risk"
	"github.com/newthinker/reversion/internal/scheduler"
	"github.com/newthinker/reversion/internal/storage/archive"
	"github.com/newthinker/reversion/internal/strategy"
	"github.com/newthinker/reversion/internal/trader"
)

type Config struct {
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Strategy    StrategyConfig    `mapstructure:"strategy" yaml:"strategy"`
	Risk        risk.Config       `mapstructure:"risk" yaml:"risk"`
	Instruments []risk.Instrument `mapstructure:"instruments" yaml:"instruments"`
	Quality     QualityConfig     `mapstructure:"quality" yaml:"quality"`
	Backtest    BacktestConfig    `mapstructure:"backtest" yaml:"backtest"`
	Storage     StorageConfig     `mapstructure:"storage" yaml:"storage"`
	Broker      BrokerConfig      `mapstructure:"broker" yaml:"broker"`
	Trader      trader.Config     `mapstructure:"trader" yaml:"trader"`
	Notifiers   []notifier.Config `mapstructure:"notifiers" yaml:"notifiers"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
}

// LogConfig selects the logger preset.
type LogConfig struct {
	Development bool `mapstructure:"development" yaml:"development"`
}

// StrategyConfig holds indicator periods and the regime filter threshold.
type StrategyConfig struct {
	indicator.Params `mapstructure:",squash" yaml:",inline"`
	LateralThreshold float64 `mapstructure:"lateral_threshold" yaml:"lateral_threshold"`
}

// QualityConfig holds classifier training settings.
type QualityConfig struct {
	Enabled               bool `mapstructure:"enabled" yaml:"enabled"`
	quality.TrainerConfig `mapstructure:",squash" yaml:",inline"`
	ModelName             string        `mapstructure:"model_name" yaml:"model_name"`
	RetrainInterval       time.Duration `mapstructure:"retrain_interval" yaml:"retrain_interval"`
	RetrainSchedule       string        `mapstructure:"retrain_schedule" yaml:"retrain_schedule"` // six-field cron
	VersionsKept          int           `mapstructure:"versions_kept" yaml:"versions_kept"`
}

// BacktestConfig holds replay settings.
type BacktestConfig struct {
	InitialBalance float64 `mapstructure:"initial_balance" yaml:"initial_balance"`
	Source         string  `mapstructure:"source" yaml:"source"` // "csv" or "yahoo"
	DataDir        string  `mapstructure:"data_dir" yaml:"data_dir"`
	Interval       string  `mapstructure:"interval" yaml:"interval"`
	RecordJournal  bool    `mapstructure:"record_journal" yaml:"record_journal"` // trades feed quality training
	SaveReport     bool    `mapstructure:"save_report" yaml:"save_report"`
}

// StorageConfig holds the artifact archive and the trade journal.
type StorageConfig struct {
	Archive archive.Config `mapstructure:"archive" yaml:"archive"`
	Journal journal.Config `mapstructure:"journal" yaml:"journal"`
}

// BrokerConfig holds broker integration settings.
type BrokerConfig struct {
	Provider string        `mapstructure:"provider" yaml:"provider"` // "mock"
	DataDir  string        `mapstructure:"data_dir" yaml:"data_dir"` // csv prices served by the mock gateway
	Lookback time.Duration `mapstructure:"lookback" yaml:"lookback"`
	Balance  float64       `mapstructure:"balance" yaml:"balance"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Load reads configuration from file over Defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(Defaults())
	if err != nil {
		return nil, fmt.Errorf("encoding defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("reading defaults: %w", err)
	}

	// Support environment variable overrides
	v.SetEnvPrefix("REVERSION")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("reading config: %w", err))
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Strategy: StrategyConfig{
			Params:           indicator.DefaultParams(),
			LateralThreshold: strategy.DefaultLateralThreshold,
		},
		Risk:        risk.DefaultConfig(),
		Instruments: []risk.Instrument{risk.DefaultInstrument("EURUSD")},
		Quality: QualityConfig{
			Enabled:         true,
			TrainerConfig:   quality.DefaultTrainerConfig(),
			ModelName:       "signal_quality",
			RetrainInterval: 7 * 24 * time.Hour,
			RetrainSchedule: "0 0 3 * * *",
			VersionsKept:    5,
		},
		Backtest: BacktestConfig{
			InitialBalance: 10000,
			Source:         "csv",
			DataDir:        "data/prices",
			Interval:       "H1",
			SaveReport:     true,
		},
		Storage: StorageConfig{
			Archive: archive.Config{
				Backend: archive.BackendLocalFS,
				Path:    "artifacts",
			},
			Journal: journal.Config{
				Backend: journal.BackendCSV,
				Path:    "data",
			},
		},
		Broker: BrokerConfig{
			Provider: "mock",
			DataDir:  "data/prices",
			Lookback: 30 * 24 * time.Hour,
			Balance:  10000,
		},
		Trader: trader.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
			Listen:  ":9090",
			Path:    "/metrics",
		},
	}
}

// Instrument returns the configured instrument for symbol, or the standard
// currency-pair instrument when none is configured.
func (c *Config) Instrument(symbol string) risk.Instrument {
	for _, inst := range c.Instruments {
		if strings.EqualFold(inst.Symbol, symbol) {
			return inst
		}
	}
	return risk.DefaultInstrument(symbol)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Strategy.Params.Validate(); err != nil {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("strategy: %w", err))
	}
	if c.Strategy.LateralThreshold <= 0 || c.Strategy.LateralThreshold > 100 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("lateral_threshold must be in (0, 100], got %f", c.Strategy.LateralThreshold))
	}

	if err := c.Risk.Validate(); err != nil {
		return err
	}
	for _, inst := range c.Instruments {
		if err := inst.Validate(); err != nil {
			return core.WrapError(core.ErrConfigInvalid, err)
		}
	}

	if c.Quality.MinSamples < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("min_trades must be positive, got %d", c.Quality.MinSamples))
	}
	if c.Quality.TestFraction < 0 || c.Quality.TestFraction >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("test_fraction must be in [0, 1), got %f", c.Quality.TestFraction))
	}
	if c.Quality.Enabled {
		if c.Quality.ModelName == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("quality model_name required"))
		}
		if err := scheduler.Validate(c.Quality.RetrainSchedule); err != nil {
			return core.WrapError(core.ErrConfigInvalid, err)
		}
	}

	if c.Backtest.InitialBalance <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_balance must be positive, got %f", c.Backtest.InitialBalance))
	}
	switch c.Backtest.Source {
	case "csv", "yahoo":
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown backtest source %q", c.Backtest.Source))
	}

	if c.Storage.Archive.Backend == archive.BackendS3 && c.Storage.Archive.S3.Bucket == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("s3 bucket required when archive backend is s3"))
	}
	switch c.Storage.Journal.Backend {
	case "", journal.BackendCSV, journal.BackendSQLite, journal.BackendNone:
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown journal backend %q", c.Storage.Journal.Backend))
	}

	if c.Broker.Provider != "mock" {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown broker provider %q", c.Broker.Provider))
	}
	if err := c.Trader.Validate(); err != nil {
		return err
	}

	for _, n := range c.Notifiers {
		switch n.Type {
		case "webhook", "telegram":
		default:
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown notifier type %q", n.Type))
		}
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("metrics listen address required"))
	}

	return nil
}

// Write encodes cfg as YAML, as read by Load
func Write(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
