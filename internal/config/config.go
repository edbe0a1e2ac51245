package config

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Outscraper OutscraperConfig `yaml:"outscraper" mapstructure:"outscraper"`
	Airtable   AirtableConfig   `yaml:"airtable" mapstructure:"airtable"`
	GitHub     GitHubConfig     `yaml:"github" mapstructure:"github"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Photos     PhotosConfig     `yaml:"photos" mapstructure:"photos"`
	Location   LocationConfig   `yaml:"location" mapstructure:"location"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-history database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// GoogleConfig holds Google Places API credentials.
type GoogleConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// OutscraperConfig holds Outscraper API settings. BalanceThreshold is the
// minimum account balance (USD) required before any paid scrape runs.
type OutscraperConfig struct {
	APIKey           string  `yaml:"api_key" mapstructure:"api_key"`
	BalanceThreshold float64 `yaml:"balance_threshold" mapstructure:"balance_threshold"`
}

// AirtableConfig holds Airtable credentials and the base/table to enrich.
type AirtableConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	BaseID string `yaml:"base_id" mapstructure:"base_id"`
	Table  string `yaml:"table" mapstructure:"table"`
	View   string `yaml:"view" mapstructure:"view"`
}

// GitHubConfig holds the repository used as the place-data cache.
type GitHubConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	Repo   string `yaml:"repo" mapstructure:"repo"`
	Branch string `yaml:"branch" mapstructure:"branch"`
}

// CacheConfig configures cached snapshot freshness.
type CacheConfig struct {
	MaxAgeDays int `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// PhotosConfig configures photo selection.
type PhotosConfig struct {
	MaxPhotos int `yaml:"max_photos" mapstructure:"max_photos"`
}

// LocationConfig biases provider searches toward one metro area.
type LocationConfig struct {
	City    string  `yaml:"city" mapstructure:"city"`
	Lat     float64 `yaml:"lat" mapstructure:"lat"`
	Lng     float64 `yaml:"lng" mapstructure:"lng"`
	RadiusM float64 `yaml:"radius_m" mapstructure:"radius_m"`
}

// Coordinates renders the location bias in the "@lat,lng,9z" form the
// Outscraper API takes.
func (l LocationConfig) Coordinates() string {
	if l.Lat == 0 && l.Lng == 0 {
		return ""
	}
	return "@" + strconv.FormatFloat(l.Lat, 'f', -1, 64) +
		"," + strconv.FormatFloat(l.Lng, 'f', -1, 64) + ",9z"
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("PLACES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "places.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.concurrency", 10)
	v.SetDefault("cache.max_age_days", 90)
	v.SetDefault("photos.max_photos", 30)
	v.SetDefault("outscraper.balance_threshold", 5)
	v.SetDefault("airtable.table", "Charlotte Third Places")
	v.SetDefault("github.repo", "segunak/third-places-data")
	v.SetDefault("github.branch", "master")
	v.SetDefault("location.city", "charlotte")
	v.SetDefault("location.lat", 35.23075539296459)
	v.SetDefault("location.lng", -80.83165532446358)
	v.SetDefault("location.radius_m", 50000)

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

// Validate checks that the fields required for the given mode are set.
// Modes: "enrich", "sync", "serve", "place".
func (c *Config) Validate(mode string) error {
	var missing []string

	requireAirtable := func() {
		if c.Airtable.Token == "" {
			missing = append(missing, "airtable.token is required")
		}
		if c.Airtable.BaseID == "" {
			missing = append(missing, "airtable.base_id is required")
		}
	}
	requireCache := func() {
		if c.GitHub.Token == "" {
			missing = append(missing, "github.token is required")
		}
		if c.GitHub.Repo == "" {
			missing = append(missing, "github.repo is required")
		}
	}

	switch mode {
	case "enrich", "sync":
		requireAirtable()
		requireCache()
	case "place":
		requireCache()
	case "serve":
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
		requireAirtable()
		requireCache()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 50 {
		missing = append(missing, "batch.concurrency must be between 1 and 50")
	}
	if c.Cache.MaxAgeDays < 1 {
		missing = append(missing, "cache.max_age_days must be >= 1")
	}
	if c.Photos.MaxPhotos < 1 {
		missing = append(missing, "photos.max_photos must be >= 1")
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}
