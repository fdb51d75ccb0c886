package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/stockshastri/shastri/internal/collector"
	"github.com/stockshastri/shastri/internal/collector/worldbank"
	"github.com/stockshastri/shastri/internal/core"
	"github.com/stockshastri/shastri/internal/loader"
	"github.com/stockshastri/shastri/internal/model"
	"github.com/stockshastri/shastri/internal/notifier/webhook"
	"github.com/stockshastri/shastri/internal/sentiment"
	"github.com/stockshastri/shastri/internal/storage/archive"
)

// Data sources
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

type Config struct {
	LogLevel      string              `mapstructure:"log_level"`
	Server        ServerConfig        `mapstructure:"server"`
	Data          DataConfig          `mapstructure:"data"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Storage       archive.Config      `mapstructure:"storage"`
	Model         ModelConfig         `mapstructure:"model"`
	Sentiment     SentimentConfig     `mapstructure:"sentiment"`
	Collectors    CollectorsConfig    `mapstructure:"collectors"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Instruments   []InstrumentConfig  `mapstructure:"instruments"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	APIKey         string   `mapstructure:"api_key"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DataConfig locates the input tables. Files are keys inside the archive
// storage.
type DataConfig struct {
	Source string       `mapstructure:"source"`
	Start  string       `mapstructure:"start"`
	End    string       `mapstructure:"end"`
	Files  loader.Files `mapstructure:"files"`
}

// Window parses the study window.
func (d DataConfig) Window() (time.Time, time.Time, error) {
	start, err := core.ParseDay(d.Start)
	if err != nil {
		return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("data.start: %w", err))
	}
	end, err := core.ParseDay(d.End)
	if err != nil {
		return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("data.end: %w", err))
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("data.end %s is before data.start %s", d.End, d.Start))
	}
	return start, end, nil
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type ModelConfig struct {
	ArtifactKey   string       `mapstructure:"artifact_key"`
	TrainFraction float64      `mapstructure:"train_fraction"`
	Params        model.Params `mapstructure:",squash"`
}

type SentimentConfig struct {
	WindowDays     int     `mapstructure:"window_days"`
	FallbackWeight float64 `mapstructure:"fallback_weight"`
	FallbackLimit  int     `mapstructure:"fallback_limit"`
}

// Aggregator converts to the aggregator's settings.
func (s SentimentConfig) Aggregator() sentiment.Config {
	return sentiment.Config{
		WindowDays:     s.WindowDays,
		FallbackWeight: s.FallbackWeight,
		FallbackLimit:  s.FallbackLimit,
	}
}

type CollectorsConfig struct {
	Yahoo     collector.Config `mapstructure:"yahoo"`
	WorldBank worldbank.Config `mapstructure:"worldbank"`
}

// NotificationsConfig configures pipeline event delivery.
type NotificationsConfig struct {
	Webhook webhook.Config `mapstructure:"webhook"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type InstrumentConfig struct {
	Ticker string   `mapstructure:"ticker"`
	Name   string   `mapstructure:"name"`
	Terms  []string `mapstructure:"terms"`
}

// Universe returns the configured instruments, or the six defaults.
func (c *Config) Universe() core.Universe {
	if len(c.Instruments) == 0 {
		return core.NewUniverse(core.DefaultInstruments())
	}
	instruments := make([]core.Instrument, 0, len(c.Instruments))
	for _, ic := range c.Instruments {
		instruments = append(instruments, core.Instrument{Ticker: ic.Ticker, Name: ic.Name, Terms: ic.Terms})
	}
	return core.NewUniverse(instruments)
}

// Load reads configuration from file on top of Defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("reading config %s: %w", path, err))
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unmarshaling config: %w", err))
	}

	return cfg, nil
}

// Defaults returns a runnable config over ./data for the original study window
func Defaults() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           5000,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Data: DataConfig{
			Source: SourceCSV,
			Start:  "2019-01-01",
			End:    "2023-01-13",
			Files:  loader.DefaultFiles(),
		},
		Storage: archive.Config{
			Type: archive.TypeLocalFS,
			Path: "data",
		},
		Model: ModelConfig{
			ArtifactKey:   model.DefaultArtifactKey,
			TrainFraction: 0.7,
			Params:        model.DefaultParams(),
		},
		Sentiment: SentimentConfig(sentiment.DefaultConfig()),
		Collectors: CollectorsConfig{
			Yahoo: collector.Config{Enabled: true, Timeout: 10 * time.Second},
			WorldBank: worldbank.Config{
				Config:    collector.Config{Enabled: true, Timeout: 15 * time.Second},
				Country:   worldbank.DefaultCountry,
				Indicator: worldbank.DefaultIndicator,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Data.Source {
	case SourceCSV:
	case SourcePostgres:
		if c.Database.DSN == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("database.dsn required when data.source is postgres"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data.source must be csv or postgres, got %q", c.Data.Source))
	}

	if _, _, err := c.Data.Window(); err != nil {
		return err
	}

	if c.Model.TrainFraction <= 0 || c.Model.TrainFraction >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("train_fraction must be in (0, 1), got %f", c.Model.TrainFraction))
	}
	if c.Model.Params.NTrees < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("n_trees must be positive, got %d", c.Model.Params.NTrees))
	}
	if c.Model.Params.MaxDepth < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_depth must be positive, got %d", c.Model.Params.MaxDepth))
	}
	if c.Model.ArtifactKey == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("model.artifact_key"))
	}

	if c.Sentiment.WindowDays < 0 || c.Sentiment.FallbackLimit < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("sentiment window_days and fallback_limit cannot be negative"))
	}
	if c.Sentiment.FallbackWeight < 0 || c.Sentiment.FallbackWeight > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("fallback_weight must be between 0 and 1, got %f", c.Sentiment.FallbackWeight))
	}

	for i, inst := range c.Instruments {
		if core.NormalizeTicker(inst.Ticker) == "" {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("instruments[%d]: ticker required", i))
		}
	}

	if c.Notifications.Webhook.Enabled && c.Notifications.Webhook.URL == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("notifications.webhook.url is required when the webhook is enabled"))
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("metrics path must start with /, got %q", c.Metrics.Path))
	}

	return nil
}
