// Package config loads service configuration from defaults, an optional
// YAML file and the environment, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"coursecraft-backend/internal/repository"
	"coursecraft-backend/internal/service/llm"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"

	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// Config holds all configuration for the application
type Config struct {
	Server        Server        `yaml:"server"`
	AWS           AWS           `yaml:"aws"`
	LLM           LLM           `yaml:"llm"`
	Cache         Cache         `yaml:"cache"`
	Storage       Storage       `yaml:"storage"`
	Transactions  Transactions  `yaml:"transactions"`
	Breaker       Breaker       `yaml:"breaker"`
	Observability Observability `yaml:"observability"`
}

type Server struct {
	Address         string        `yaml:"address"`
	Environment     string        `yaml:"environment"`
	LogLevel        string        `yaml:"log_level"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type AWS struct {
	Region       string `yaml:"region"`
	TableName    string `yaml:"table_name"`
	EventBusName string `yaml:"event_bus_name"`
}

type LLM struct {
	Provider string        `yaml:"provider"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Cache struct {
	Backend    string        `yaml:"backend"`
	RedisAddr  string        `yaml:"redis_addr"`
	KeyPrefix  string        `yaml:"key_prefix"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

type Storage struct {
	Backend string `yaml:"backend"`
}

// Transactions configures retries of link and ledger transactions.
type Transactions struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

type Breaker struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold float64       `yaml:"failure_threshold"`
	MinRequests      uint32        `yaml:"min_requests"`
}

type Observability struct {
	MetricsEnabled  bool   `yaml:"metrics_enabled"`
	ServiceName     string `yaml:"service_name"`
	TracingEndpoint string `yaml:"tracing_endpoint"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	retry := repository.DefaultRetryConfig()
	breaker := llm.DefaultBreakerConfig("llm")
	return &Config{
		Server: Server{
			Address:         ":8080",
			Environment:     "development",
			LogLevel:        "info",
			AllowedOrigins:  []string{"http://localhost:3000"},
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		AWS: AWS{
			Region: "us-east-1",
		},
		LLM: LLM{
			Provider: ProviderMock,
			Model:    llm.DefaultGeminiModel,
			Timeout:  45 * time.Second,
		},
		Cache: Cache{
			Backend:    BackendMemory,
			KeyPrefix:  "coursecraft:cache",
			TTL:        24 * time.Hour,
			MaxEntries: 1000,
		},
		Storage: Storage{
			Backend: BackendMemory,
		},
		Transactions: Transactions{
			MaxAttempts: retry.MaxAttempts,
			BaseDelay:   retry.BaseDelay,
			MaxDelay:    retry.MaxDelay,
		},
		Breaker: Breaker{
			MaxRequests:      breaker.MaxRequests,
			Interval:         breaker.Interval,
			Timeout:          breaker.Timeout,
			FailureThreshold: breaker.FailureThreshold,
			MinRequests:      breaker.MinRequests,
		},
		Observability: Observability{
			MetricsEnabled: true,
			ServiceName:    "coursecraft-backend",
		},
	}
}

// LoadConfig builds the configuration: defaults, then the YAML file named
// by CONFIG_FILE, then environment variables. The result is validated.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Address = getEnv("SERVER_ADDRESS", c.Server.Address)
	c.Server.Environment = getEnv("ENVIRONMENT", c.Server.Environment)
	c.Server.LogLevel = getEnv("LOG_LEVEL", c.Server.LogLevel)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	c.AWS.Region = getEnv("AWS_REGION", c.AWS.Region)
	c.AWS.TableName = getEnv("TABLE_NAME", c.AWS.TableName)
	c.AWS.EventBusName = getEnv("EVENT_BUS_NAME", c.AWS.EventBusName)

	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.APIKey = getEnv("GEMINI_API_KEY", c.LLM.APIKey)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.Timeout = getEnvDuration("LLM_TIMEOUT", c.LLM.Timeout)

	c.Cache.Backend = getEnv("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.RedisAddr = getEnv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.TTL = getEnvDuration("CACHE_TTL", c.Cache.TTL)
	c.Cache.MaxEntries = getEnvInt("CACHE_MAX_ENTRIES", c.Cache.MaxEntries)

	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)

	c.Transactions.MaxAttempts = getEnvInt("TX_MAX_ATTEMPTS", c.Transactions.MaxAttempts)
	c.Transactions.BaseDelay = getEnvDuration("TX_BASE_DELAY", c.Transactions.BaseDelay)
	c.Transactions.MaxDelay = getEnvDuration("TX_MAX_DELAY", c.Transactions.MaxDelay)

	c.Breaker.FailureThreshold = getEnvFloat("BREAKER_FAILURE_THRESHOLD", c.Breaker.FailureThreshold)

	c.Observability.MetricsEnabled = getEnvBool("ENABLE_METRICS", c.Observability.MetricsEnabled)
	c.Observability.TracingEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Observability.TracingEndpoint)
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", c.Cache.TTL)
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be positive, got %d", c.Cache.MaxEntries)
	}
	switch c.Cache.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when the cache backend is redis")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	switch c.LLM.Provider {
	case ProviderMock:
	case ProviderGemini:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when the provider is gemini")
		}
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendDynamoDB:
		if c.AWS.TableName == "" {
			return fmt.Errorf("TABLE_NAME is required when the storage backend is dynamodb")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Transactions.MaxAttempts < 1 {
		return fmt.Errorf("transaction max attempts must be at least 1, got %d", c.Transactions.MaxAttempts)
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// RetryConfig returns the transaction retry policy.
func (c *Config) RetryConfig() repository.RetryConfig {
	retry := repository.DefaultRetryConfig()
	retry.MaxAttempts = c.Transactions.MaxAttempts
	retry.BaseDelay = c.Transactions.BaseDelay
	retry.MaxDelay = c.Transactions.MaxDelay
	return retry
}

// BreakerConfig returns the circuit breaker settings for the model provider.
func (c *Config) BreakerConfig() llm.BreakerConfig {
	return llm.BreakerConfig{
		Name:             "llm-" + c.LLM.Provider,
		MaxRequests:      c.Breaker.MaxRequests,
		Interval:         c.Breaker.Interval,
		Timeout:          c.Breaker.Timeout,
		FailureThreshold: c.Breaker.FailureThreshold,
		MinRequests:      c.Breaker.MinRequests,
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings such as "90s" or "24h".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
