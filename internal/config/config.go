package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mgijax/srcload/internal/source"
	"github.com/mgijax/srcload/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Source  SourceConfig  `yaml:"source" mapstructure:"source"`
	QC      QCConfig      `yaml:"qc" mapstructure:"qc"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Load    LoadConfig    `yaml:"load" mapstructure:"load"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the MGD connection.
type StoreConfig struct {
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// SourceConfig configures resolution, discovery, and caching.
type SourceConfig struct {
	Policy          string `yaml:"policy" mapstructure:"policy"`
	CacheMode       string `yaml:"cache_mode" mapstructure:"cache_mode"`
	CloneSearch     bool   `yaml:"clone_search" mapstructure:"clone_search"`
	CloneCacheMode  string `yaml:"clone_cache_mode" mapstructure:"clone_cache_mode"`
	CloneCacheSize  int    `yaml:"clone_cache_size" mapstructure:"clone_cache_size"`
	MaxClones       int    `yaml:"max_clones" mapstructure:"max_clones"`
	TranslationFile string `yaml:"translation_file" mapstructure:"translation_file"`
	ModifiedBy      string `yaml:"modified_by" mapstructure:"modified_by"`
}

// QCConfig configures the QC report database.
type QCConfig struct {
	DatabasePath string `yaml:"database_path" mapstructure:"database_path"`
}

// MetricsConfig configures the metrics endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// LoadConfig configures the load command.
type LoadConfig struct {
	BatchSize     int           `yaml:"batch_size" mapstructure:"batch_size"`
	FlushAttempts int           `yaml:"flush_attempts" mapstructure:"flush_attempts"`
	FlushBackoff  time.Duration `yaml:"flush_backoff" mapstructure:"flush_backoff"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from srcload.yaml and SRCLOAD_* environment
// variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("srcload")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SRCLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.database_url", "")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("source.policy", source.PolicyAggregator)
	v.SetDefault("source.cache_mode", string(source.CacheEager))
	v.SetDefault("source.clone_search", true)
	v.SetDefault("source.clone_cache_mode", string(source.CacheLazy))
	v.SetDefault("source.clone_cache_size", store.DefaultCloneCacheSize)
	v.SetDefault("source.max_clones", 250)
	v.SetDefault("source.translation_file", "")
	v.SetDefault("source.modified_by", "srcload")
	v.SetDefault("qc.database_path", "qc_reports.db")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("load.batch_size", 500)
	v.SetDefault("load.flush_attempts", 3)
	v.SetDefault("load.flush_backoff", "500ms")

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

// Validate checks the settings a command needs. mode is the command name:
// "load", "resolve", or "migrate".
func (c *Config) Validate(mode string) error {
	var errs []string

	needsDB := false
	switch mode {
	case "load":
		needsDB = true
		if c.Load.BatchSize < 1 {
			errs = append(errs, "load.batch_size must be >= 1")
		}
		if c.Source.MaxClones < 0 {
			errs = append(errs, "source.max_clones must be >= 0")
		}
		if _, err := source.ParseCacheMode(c.Source.CloneCacheMode); err != nil {
			errs = append(errs, "source.clone_cache_mode must be eager or lazy")
		}
		if c.Source.ModifiedBy == "" {
			errs = append(errs, "source.modified_by is required")
		}
	case "resolve", "migrate":
		needsDB = true
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needsDB && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if mode != "migrate" {
		if _, err := source.ParseCacheMode(c.Source.CacheMode); err != nil {
			errs = append(errs, "source.cache_mode must be eager or lazy")
		}
		switch strings.ToLower(c.Source.Policy) {
		case source.PolicyAggregator, source.PolicyGenBank, source.PolicyStrict, source.PolicyMinimal:
		default:
			errs = append(errs, "source.policy must be one of aggregator, genbank, strict, minimal")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
