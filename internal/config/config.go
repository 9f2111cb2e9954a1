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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Rules     RulesConfig     `yaml:"rules" mapstructure:"rules"`
	Browse    BrowseConfig    `yaml:"browse" mapstructure:"browse"`
	Finding   FindingConfig   `yaml:"finding" mapstructure:"finding"`
	Retrieval RetrievalConfig `yaml:"retrieval" mapstructure:"retrieval"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RulesConfig points at the rule-table directory produced by the offline
// mining tools.
type RulesConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// BrowseConfig holds credentials and endpoint for the structured-data
// search backend.
type BrowseConfig struct {
	Token         string  `yaml:"token" mapstructure:"token"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	MarketplaceID string  `yaml:"marketplace_id" mapstructure:"marketplace_id"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// FindingConfig holds credentials and endpoint for the keyword search
// backend.
type FindingConfig struct {
	AppID       string  `yaml:"app_id" mapstructure:"app_id"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// RetrievalConfig tunes comp retrieval and the coarse item filters applied
// before merging.
type RetrievalConfig struct {
	ActiveLimit int     `yaml:"active_limit" mapstructure:"active_limit"`
	SoldLimit   int     `yaml:"sold_limit" mapstructure:"sold_limit"`
	PriceFloor  float64 `yaml:"price_floor" mapstructure:"price_floor"`
	PriceCap    float64 `yaml:"price_cap" mapstructure:"price_cap"`
	MaxQueries  int     `yaml:"max_queries" mapstructure:"max_queries"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// PricingConfig tunes the pricing engine and the enhancement layer.
type PricingConfig struct {
	LowestK           int     `yaml:"lowest_k" mapstructure:"lowest_k"`
	PriceFloor        float64 `yaml:"price_floor" mapstructure:"price_floor"`
	MaxDropPct        float64 `yaml:"max_drop_pct" mapstructure:"max_drop_pct"`
	HighPriceAt       float64 `yaml:"high_price_at" mapstructure:"high_price_at"`
	HighPriceFloor    float64 `yaml:"high_price_floor" mapstructure:"high_price_floor"`
	PercentThreshold  float64 `yaml:"percent_threshold" mapstructure:"percent_threshold"`
	HybridMinPrice    float64 `yaml:"hybrid_min_price" mapstructure:"hybrid_min_price"`
	BaseCeiling       float64 `yaml:"base_ceiling" mapstructure:"base_ceiling"`
	ChromeBaseCeiling float64 `yaml:"chrome_base_ceiling" mapstructure:"chrome_base_ceiling"`
	GlobalCeiling     float64 `yaml:"global_ceiling" mapstructure:"global_ceiling"`

	Enhancements EnhancementConfig `yaml:"enhancements" mapstructure:"enhancements"`
}

// EnhancementConfig gates the velocity/supply adjustments applied after the
// base suggestion.
type EnhancementConfig struct {
	Enabled             bool    `yaml:"enabled" mapstructure:"enabled"`
	VelocityHigh        int     `yaml:"velocity_high" mapstructure:"velocity_high"`
	VelocityMedium      int     `yaml:"velocity_medium" mapstructure:"velocity_medium"`
	VelocityBoostHigh   float64 `yaml:"velocity_boost_high" mapstructure:"velocity_boost_high"`
	VelocityBoostMedium float64 `yaml:"velocity_boost_medium" mapstructure:"velocity_boost_medium"`
	OversupplyAt        int     `yaml:"oversupply_at" mapstructure:"oversupply_at"`
	OversupplyDiscount  float64 `yaml:"oversupply_discount" mapstructure:"oversupply_discount"`
	RareSupplyAt        int     `yaml:"rare_supply_at" mapstructure:"rare_supply_at"`
	RareBoost           float64 `yaml:"rare_boost" mapstructure:"rare_boost"`
	MaxSwingPct         float64 `yaml:"max_swing_pct" mapstructure:"max_swing_pct"`
}

// CacheConfig tunes the active-comp cache.
type CacheConfig struct {
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
}

// BatchConfig configures batch repricing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP pricing endpoint.
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
	v.SetEnvPrefix("REPRICER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "repricer.db")
	v.SetDefault("rules.dir", "rules")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("browse.base_url", "https://api.ebay.com/buy/browse/v1")
	v.SetDefault("browse.marketplace_id", "EBAY_US")
	v.SetDefault("browse.timeout_secs", 20)
	v.SetDefault("browse.rate_per_sec", 2.5)
	v.SetDefault("finding.base_url", "https://svcs.ebay.com/services/search/FindingService/v1")
	v.SetDefault("finding.timeout_secs", 20)
	v.SetDefault("finding.rate_per_sec", 2.5)
	v.SetDefault("retrieval.active_limit", 15)
	v.SetDefault("retrieval.sold_limit", 5)
	v.SetDefault("retrieval.price_floor", 1.50)
	v.SetDefault("retrieval.price_cap", 100.0)
	v.SetDefault("retrieval.max_queries", 4)
	v.SetDefault("retrieval.concurrency", 4)
	v.SetDefault("pricing.lowest_k", 5)
	v.SetDefault("pricing.price_floor", 1.50)
	v.SetDefault("pricing.max_drop_pct", 40.0)
	v.SetDefault("pricing.high_price_at", 4.99)
	v.SetDefault("pricing.high_price_floor", 3.49)
	v.SetDefault("pricing.percent_threshold", 10.0)
	v.SetDefault("pricing.hybrid_min_price", 10.0)
	v.SetDefault("pricing.base_ceiling", 2.99)
	v.SetDefault("pricing.chrome_base_ceiling", 3.99)
	v.SetDefault("pricing.global_ceiling", 100.0)
	v.SetDefault("pricing.enhancements.enabled", true)
	v.SetDefault("pricing.enhancements.velocity_high", 4)
	v.SetDefault("pricing.enhancements.velocity_medium", 2)
	v.SetDefault("pricing.enhancements.velocity_boost_high", 1.15)
	v.SetDefault("pricing.enhancements.velocity_boost_medium", 1.08)
	v.SetDefault("pricing.enhancements.oversupply_at", 15)
	v.SetDefault("pricing.enhancements.oversupply_discount", 0.92)
	v.SetDefault("pricing.enhancements.rare_supply_at", 3)
	v.SetDefault("pricing.enhancements.rare_boost", 1.10)
	v.SetDefault("pricing.enhancements.max_swing_pct", 30.0)
	v.SetDefault("cache.ttl_minutes", 720)
	v.SetDefault("cache.max_entries", 4096)
	v.SetDefault("batch.concurrency", 4)

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
