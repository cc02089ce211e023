package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/posbridge/pricing-service/internal/backend"
	"github.com/posbridge/pricing-service/internal/engine"
	"github.com/posbridge/pricing-service/internal/http/ratelimit"
	"github.com/posbridge/pricing-service/internal/pricing"
	"github.com/posbridge/pricing-service/internal/rulestore"
	"github.com/posbridge/pricing-service/internal/telemetry"
)

// Config holds the application configuration
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Auth           AuthConfig           `mapstructure:"auth"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	Backend        BackendConfig        `mapstructure:"backend"`
	Cache          CacheConfig          `mapstructure:"cache"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Pricing        PricingConfig        `mapstructure:"pricing"`
	Telemetry      TelemetryConfig      `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

// AuthConfig holds the shared key for /internal routes
type AuthConfig struct {
	InternalAPIKey string `mapstructure:"internal_api_key"`
}

// RateLimitConfig limits inbound /internal requests
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// EnvironmentConfig is one backend deployment
type EnvironmentConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	ConsumerKey    string `mapstructure:"consumer_key"`
	ConsumerSecret string `mapstructure:"consumer_secret"`
}

// BackendConfig holds the WooCommerce/WordPress backend settings
type BackendConfig struct {
	DefaultEnvironment string                       `mapstructure:"default_environment"`
	Environments       map[string]EnvironmentConfig `mapstructure:"environments"`
	Timeout            time.Duration                `mapstructure:"timeout"`
	CategoryFieldsPath string                       `mapstructure:"category_fields_path"`
	PricingRulesPath   string                       `mapstructure:"pricing_rules_path"`
	ProductPath        string                       `mapstructure:"product_path"`
	RateLimit          ratelimit.Config             `mapstructure:"rate_limit"`
}

// CacheConfig holds rule store settings
type CacheConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
}

// CircuitBreakerConfig guards backend refreshes
type CircuitBreakerConfig struct {
	MaxFailures      int           `mapstructure:"max_failures"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
	HalfOpenMaxCalls int           `mapstructure:"half_open_max_calls"`
}

// PricingConfig holds pricing resolution settings
type PricingConfig struct {
	ProductSpecificBlueprints []int    `mapstructure:"product_specific_blueprints"`
	UtilityGroupLabels        []string `mapstructure:"utility_group_labels"`
	Concurrency               int      `mapstructure:"concurrency"`
}

// TelemetryConfig holds OpenTelemetry settings
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// ErrInvalidConfig is returned when configuration validation fails
type ErrInvalidConfig struct {
	Field  string
	Reason string
}

func (e ErrInvalidConfig) Error() string {
	return "invalid config: " + e.Field + " " + e.Reason
}

// Load loads the configuration from file, .env, and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// .env is optional
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg(".env file not loaded")
	}

	v.SetEnvPrefix("PRICING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.dropEmptyEnvironments()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadEnvFile loads the first .env found; variables already set win
func loadEnvFile() error {
	for _, dir := range []string{".", "./config"} {
		envFile := filepath.Join(dir, ".env")
		if _, err := os.Stat(envFile); err == nil {
			return godotenv.Load(envFile)
		}
	}
	return fmt.Errorf("no .env file found")
}

// bindEnvVars binds conventional environment variable names to config keys
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("server.port", "PRICING_SERVER_PORT", "PORT")
	_ = v.BindEnv("logging.level", "PRICING_LOGGING_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("auth.internal_api_key", "PRICING_AUTH_INTERNAL_API_KEY", "INTERNAL_API_KEY")
	_ = v.BindEnv("telemetry.endpoint", "PRICING_TELEMETRY_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")

	for _, env := range []string{"production", "staging"} {
		prefix := "WOOCOMMERCE_"
		if env != "production" {
			prefix += strings.ToUpper(env) + "_"
		}
		key := "backend.environments." + env + "."
		_ = v.BindEnv(key+"base_url", prefix+"URL")
		_ = v.BindEnv(key+"consumer_key", prefix+"CONSUMER_KEY")
		_ = v.BindEnv(key+"consumer_secret", prefix+"CONSUMER_SECRET")
	}
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.no_color", false)

	v.SetDefault("rate_limit.requests_per_second", 50)
	v.SetDefault("rate_limit.burst", 100)

	v.SetDefault("backend.default_environment", "production")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("backend.category_fields_path", backend.DefaultCategoryFieldsPath)
	v.SetDefault("backend.pricing_rules_path", backend.DefaultPricingRulesPath)
	v.SetDefault("backend.product_path", backend.DefaultProductPath)
	v.SetDefault("backend.rate_limit.requests_per_second", 5)
	v.SetDefault("backend.rate_limit.burst", 5)
	v.SetDefault("backend.rate_limit.max_retries", 3)
	v.SetDefault("backend.rate_limit.initial_backoff_ms", 200)
	v.SetDefault("backend.rate_limit.max_backoff_ms", 10000)

	v.SetDefault("cache.ttl", rulestore.DefaultTTL)
	v.SetDefault("cache.load_timeout", rulestore.DefaultLoadTimeout)

	v.SetDefault("circuit_breaker.max_failures", 5)
	v.SetDefault("circuit_breaker.reset_timeout", 30*time.Second)
	v.SetDefault("circuit_breaker.half_open_max_calls", 1)

	v.SetDefault("pricing.product_specific_blueprints", []int{44})
	v.SetDefault("pricing.utility_group_labels", pricing.DefaultUtilityGroupLabels)
	v.SetDefault("pricing.concurrency", engine.DefaultConcurrency)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "opentelemetry-collector:4317")
	v.SetDefault("telemetry.service_name", "pricing-service")
}

// dropEmptyEnvironments removes environments that only exist because an
// optional env var binding was declared.
func (c *Config) dropEmptyEnvironments() {
	for name, env := range c.Backend.Environments {
		if env == (EnvironmentConfig{}) {
			delete(c.Backend.Environments, name)
		}
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ErrInvalidConfig{Field: "server.port", Reason: "must be between 1 and 65535"}
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" && c.Server.Mode != "test" {
		return ErrInvalidConfig{Field: "server.mode", Reason: "must be debug, release or test"}
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return ErrInvalidConfig{Field: "logging.format", Reason: "must be json or console"}
	}
	if len(c.Backend.Environments) == 0 {
		return ErrInvalidConfig{Field: "backend.environments", Reason: "must define at least one environment"}
	}
	for name, env := range c.Backend.Environments {
		if strings.TrimSpace(env.BaseURL) == "" {
			return ErrInvalidConfig{Field: "backend.environments." + name + ".base_url", Reason: "is required"}
		}
	}
	if _, ok := c.Backend.Environments[c.Backend.DefaultEnvironment]; !ok {
		return ErrInvalidConfig{Field: "backend.default_environment", Reason: "must name a configured environment"}
	}
	if c.Cache.TTL <= 0 {
		return ErrInvalidConfig{Field: "cache.ttl", Reason: "must be positive"}
	}
	if c.Cache.LoadTimeout <= 0 {
		return ErrInvalidConfig{Field: "cache.load_timeout", Reason: "must be positive"}
	}
	if c.CircuitBreaker.MaxFailures < 1 {
		return ErrInvalidConfig{Field: "circuit_breaker.max_failures", Reason: "must be at least 1"}
	}
	if c.Pricing.Concurrency < 1 {
		return ErrInvalidConfig{Field: "pricing.concurrency", Reason: "must be at least 1"}
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return ErrInvalidConfig{Field: "telemetry.endpoint", Reason: "is required when telemetry is enabled"}
	}
	return nil
}

// EnvironmentNames returns the configured environment names, sorted
func (c *Config) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Backend.Environments))
	for name := range c.Backend.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasEnvironment reports whether env is configured
func (c *Config) HasEnvironment(env string) bool {
	return slices.Contains(c.EnvironmentNames(), env)
}

// BackendEnvironments converts the environments for the backend gateway
func (c *Config) BackendEnvironments() []backend.Environment {
	envs := make([]backend.Environment, 0, len(c.Backend.Environments))
	for _, name := range c.EnvironmentNames() {
		e := c.Backend.Environments[name]
		envs = append(envs, backend.Environment{
			Name:           name,
			BaseURL:        e.BaseURL,
			ConsumerKey:    e.ConsumerKey,
			ConsumerSecret: e.ConsumerSecret,
		})
	}
	return envs
}

// BackendOptions converts the backend section for the gateway
func (c *Config) BackendOptions() backend.Options {
	return backend.Options{
		CategoryFieldsPath: c.Backend.CategoryFieldsPath,
		PricingRulesPath:   c.Backend.PricingRulesPath,
		ProductPath:        c.Backend.ProductPath,
		Timeout:            c.Backend.Timeout,
		RateLimit:          c.Backend.RateLimit,
	}
}

// StoreOptions converts the cache sections for the rule store
func (c *Config) StoreOptions() rulestore.Options {
	return rulestore.Options{
		TTL:                c.Cache.TTL,
		LoadTimeout:        c.Cache.LoadTimeout,
		UtilityGroupLabels: c.Pricing.UtilityGroupLabels,
		CircuitBreaker: rulestore.CircuitBreakerConfig{
			MaxFailures:      c.CircuitBreaker.MaxFailures,
			ResetTimeout:     c.CircuitBreaker.ResetTimeout,
			HalfOpenMaxCalls: c.CircuitBreaker.HalfOpenMaxCalls,
		},
	}
}

// EngineConfig converts the pricing section for the engine
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		ProductSpecificBlueprints: c.Pricing.ProductSpecificBlueprints,
		Concurrency:               c.Pricing.Concurrency,
	}
}

// TelemetryOptions converts the telemetry section
func (c *Config) TelemetryOptions() telemetry.Config {
	return telemetry.Config{
		Enabled:     c.Telemetry.Enabled,
		Endpoint:    c.Telemetry.Endpoint,
		ServiceName: c.Telemetry.ServiceName,
		Environment: c.Backend.DefaultEnvironment,
	}
}
