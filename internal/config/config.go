package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	API      APIConfig      `yaml:"api" mapstructure:"api"`
	Socrata  SocrataConfig  `yaml:"socrata" mapstructure:"socrata"`
	Geocoder GeocoderConfig `yaml:"geocoder" mapstructure:"geocoder"`
	Victims  VictimsConfig  `yaml:"victims" mapstructure:"victims"`
	Ledger   LedgerConfig   `yaml:"ledger" mapstructure:"ledger"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the artifact directories.
type DataConfig struct {
	RawDir       string `yaml:"raw_dir" mapstructure:"raw_dir"`
	ProcessedDir string `yaml:"processed_dir" mapstructure:"processed_dir"`
}

// APIConfig configures the generic REST ingestor.
type APIConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Key         string `yaml:"key" mapstructure:"key"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// SocrataConfig configures the datos.gov.co portal client.
type SocrataConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	AppToken    string `yaml:"app_token" mapstructure:"app_token"`
	PageSize    int    `yaml:"page_size" mapstructure:"page_size"`
	PageDelayMS int    `yaml:"page_delay_ms" mapstructure:"page_delay_ms"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GeocoderConfig configures Nominatim lookups.
type GeocoderConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	City        string `yaml:"city" mapstructure:"city"`
	IntervalMS  int    `yaml:"interval_ms" mapstructure:"interval_ms"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	Workers     int    `yaml:"workers" mapstructure:"workers"`
}

// VictimsConfig configures the victims canonicalization pipeline.
type VictimsConfig struct {
	OutputPath string `yaml:"output_path" mapstructure:"output_path"`
}

// LedgerConfig locates the ingestion run ledger.
type LedgerConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CENTRALLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.raw_dir", "data/raw")
	v.SetDefault("data.processed_dir", "data/processed")
	v.SetDefault("api.timeout_secs", 30)
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("socrata.base_url", "https://www.datos.gov.co")
	v.SetDefault("socrata.page_size", 10000)
	v.SetDefault("socrata.page_delay_ms", 500)
	v.SetDefault("socrata.timeout_secs", 60)
	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "Centrally/1.0 (centrally@medellin.gov.co)")
	v.SetDefault("geocoder.city", "Medellín")
	v.SetDefault("geocoder.interval_ms", 1100)
	v.SetDefault("geocoder.timeout_secs", 10)
	v.SetDefault("geocoder.max_retries", 3)
	v.SetDefault("geocoder.workers", 1)
	v.SetDefault("victims.output_path", "data/raw/victimas_procesado.csv")
	v.SetDefault("ledger.path", "data/ingest_runs.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the numeric settings a run depends on.
func (c *Config) Validate() error {
	var problems []string

	if c.Socrata.PageSize < 1 {
		problems = append(problems, "socrata.page_size must be >= 1")
	}
	if c.API.TimeoutSecs < 1 {
		problems = append(problems, "api.timeout_secs must be >= 1")
	}
	if c.API.MaxRetries < 1 {
		problems = append(problems, "api.max_retries must be >= 1")
	}
	if c.Geocoder.Workers < 1 || c.Geocoder.Workers > 16 {
		problems = append(problems, "geocoder.workers must be between 1 and 16")
	}
	if c.Geocoder.IntervalMS < 0 {
		problems = append(problems, "geocoder.interval_ms must be >= 0")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
