// Package config loads application configuration and initializes logging.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Search  SearchConfig  `yaml:"search" mapstructure:"search"`
	Roads   RoadsConfig   `yaml:"roads" mapstructure:"roads"`
	Resolve ResolveConfig `yaml:"resolve" mapstructure:"resolve"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Tiger   TigerConfig   `yaml:"tiger" mapstructure:"tiger"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// SearchConfig configures the external geocoding search service.
type SearchConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	ResultLimit int     `yaml:"result_limit" mapstructure:"result_limit"`
	RateRPS     float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
}

// Timeout returns the HTTP request timeout.
func (c SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// RoadsConfig configures the road reference store (Nominatim Postgres DB).
type RoadsConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	Name               string `yaml:"name" mapstructure:"name"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	ConnectTimeoutSecs int    `yaml:"connect_timeout_secs" mapstructure:"connect_timeout_secs"`
	StatementTimeoutMS int    `yaml:"statement_timeout_ms" mapstructure:"statement_timeout_ms"`
	CountryCode        string `yaml:"country_code" mapstructure:"country_code"`
	ProximityRadiusM   int    `yaml:"proximity_radius_m" mapstructure:"proximity_radius_m"`
}

// ResolveConfig configures acceptance validation and fuzzy matching.
type ResolveConfig struct {
	FuzzyThreshold int     `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	MinPlaceRank   int     `yaml:"min_place_rank" mapstructure:"min_place_rank"`
	MaxLinearM     float64 `yaml:"max_linear_m" mapstructure:"max_linear_m"`
}

// CacheConfig configures the resolution cache and bad-address rewrite table.
// A Path ending in .db/.sqlite selects the SQLite backend; otherwise CSV.
type CacheConfig struct {
	Path           string `yaml:"path" mapstructure:"path"`
	BadAddressPath string `yaml:"bad_address_path" mapstructure:"bad_address_path"`
	Save           bool   `yaml:"save" mapstructure:"save"`
}

// BatchConfig configures concurrent batch resolution.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP resolve API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// TigerConfig configures the TIGER ADDRFEAT loader.
type TigerConfig struct {
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`
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
	v.SetEnvPrefix("GEOCODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("search.base_url", "http://localhost:8080/search")
	v.SetDefault("search.timeout_secs", 5)
	v.SetDefault("search.user_agent", "geocode-cli/1.0 (local)")
	v.SetDefault("search.result_limit", 10)
	v.SetDefault("search.rate_rps", 10)
	v.SetDefault("roads.host", "localhost")
	v.SetDefault("roads.port", 5433)
	v.SetDefault("roads.name", "nominatim")
	v.SetDefault("roads.user", "nominatim")
	v.SetDefault("roads.connect_timeout_secs", 5)
	v.SetDefault("roads.statement_timeout_ms", 8000)
	v.SetDefault("roads.country_code", "us")
	v.SetDefault("roads.proximity_radius_m", 5000)
	v.SetDefault("resolve.fuzzy_threshold", 80)
	v.SetDefault("resolve.min_place_rank", 26)
	v.SetDefault("resolve.max_linear_m", 1609.34)
	v.SetDefault("cache.path", "geocode_address_cache.csv")
	v.SetDefault("cache.save", true)
	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("server.port", 8090)
	v.SetDefault("tiger.temp_dir", "/tmp/tigerload")
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
