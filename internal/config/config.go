package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Market     MarketConfig     `mapstructure:"market"`
	Sentiment  SentimentConfig  `mapstructure:"sentiment"`
	Broker     BrokerConfig     `mapstructure:"broker"`
	Company    CompanyConfig    `mapstructure:"company"`
	Loop       LoopConfig       `mapstructure:"loop"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
	AgentsDir   string `mapstructure:"agents_dir"`
	LogsDir     string `mapstructure:"logs_dir"`
}

// DatabaseConfig contains PostgreSQL settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	CacheTTL int    `mapstructure:"cache_ttl"` // seconds
}

// MarketConfig contains market data settings
type MarketConfig struct {
	DefaultTimeframe string `mapstructure:"default_timeframe"` // "15m", "1h", "1d"
	LookbackPeriods  int    `mapstructure:"lookback_periods"`
	Timezone         string `mapstructure:"timezone"` // exchange-local timezone
}

// SentimentConfig contains sentiment analysis settings
type SentimentConfig struct {
	News          SentimentSourceConfig `mapstructure:"news"`
	Reddit        SentimentSourceConfig `mapstructure:"reddit"`
	SEC           SentimentSourceConfig `mapstructure:"sec"`
	SourceTimeout int                   `mapstructure:"source_timeout"` // ms per source
}

// SentimentSourceConfig contains settings for a single sentiment source
type SentimentSourceConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	APIKey        string  `mapstructure:"api_key"`
	Weight        float64 `mapstructure:"weight"`
	LookbackHours int     `mapstructure:"lookback_hours"`
	UserAgent     string  `mapstructure:"user_agent"`
}

// BrokerConfig contains broker connection settings
type BrokerConfig struct {
	Provider  string `mapstructure:"provider"` // "paper" or "binance"
	APIKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
	Testnet   bool   `mapstructure:"testnet"`
}

// CompanyConfig contains company-wide capital limits
type CompanyConfig struct {
	MaxCapital       float64 `mapstructure:"max_capital"`
	MaxDeploymentPct float64 `mapstructure:"max_deployment_pct"`
}

// LoopConfig contains trading loop defaults
type LoopConfig struct {
	IntervalSeconds int  `mapstructure:"interval_seconds"`
	MarketHoursOnly bool `mapstructure:"market_hours_only"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("TRADEPILOT")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "TradePilot")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")
	v.SetDefault("app.agents_dir", "./agents")
	v.SetDefault("app.logs_dir", "./logs")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "tradepilot")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", 60)

	// Market defaults
	v.SetDefault("market.default_timeframe", "15m")
	v.SetDefault("market.lookback_periods", 100)
	v.SetDefault("market.timezone", "America/New_York")

	// Sentiment defaults
	v.SetDefault("sentiment.news.enabled", true)
	v.SetDefault("sentiment.news.weight", 0.40)
	v.SetDefault("sentiment.news.lookback_hours", 24)
	v.SetDefault("sentiment.reddit.enabled", true)
	v.SetDefault("sentiment.reddit.weight", 0.25)
	v.SetDefault("sentiment.reddit.lookback_hours", 24)
	v.SetDefault("sentiment.sec.enabled", true)
	v.SetDefault("sentiment.sec.weight", 0.25)
	v.SetDefault("sentiment.sec.lookback_hours", 168)
	v.SetDefault("sentiment.sec.user_agent", "TradePilot research contact@tradepilot.dev")
	v.SetDefault("sentiment.source_timeout", 10000)

	// Broker defaults
	v.SetDefault("broker.provider", "paper")
	v.SetDefault("broker.testnet", true)

	// Company defaults
	v.SetDefault("company.max_capital", 100000.0)
	v.SetDefault("company.max_deployment_pct", 0.8)

	// Loop defaults
	v.SetDefault("loop.interval_seconds", 300)
	v.SetDefault("loop.market_hours_only", true)

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)
}

// Validate checks configuration for invalid combinations
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment: %s", c.App.Environment)
	}

	if c.Database.PoolSize <= 0 {
		return fmt.Errorf("database pool_size must be positive, got %d", c.Database.PoolSize)
	}

	if c.Company.MaxCapital <= 0 {
		return fmt.Errorf("company max_capital must be positive, got %f", c.Company.MaxCapital)
	}
	if c.Company.MaxDeploymentPct <= 0 || c.Company.MaxDeploymentPct > 1 {
		return fmt.Errorf("company max_deployment_pct must be in (0, 1], got %f", c.Company.MaxDeploymentPct)
	}

	if c.Loop.IntervalSeconds <= 0 {
		return fmt.Errorf("loop interval_seconds must be positive, got %d", c.Loop.IntervalSeconds)
	}

	for name, src := range map[string]SentimentSourceConfig{
		"news":   c.Sentiment.News,
		"reddit": c.Sentiment.Reddit,
		"sec":    c.Sentiment.SEC,
	} {
		if src.Weight < 0 || src.Weight > 1 {
			return fmt.Errorf("sentiment %s weight must be in [0, 1], got %f", name, src.Weight)
		}
	}

	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("invalid market timezone %q: %w", c.Market.Timezone, err)
	}

	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetCacheTTL returns the Redis cache TTL as a duration
func (c *RedisConfig) GetCacheTTL() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// GetSourceTimeout returns the per-source sentiment timeout as a duration
func (c *SentimentConfig) GetSourceTimeout() time.Duration {
	return time.Duration(c.SourceTimeout) * time.Millisecond
}

// GetInterval returns the loop interval as a duration
func (c *LoopConfig) GetInterval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}
