package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP dashboard
	Port string

	// Dataset and reports
	DatasetPath string
	OutputDir   string

	// Cost-control database
	SQLiteDBPath  string
	RetentionDays int

	// Hot cache tier
	CacheBackend     string
	CacheDir         string
	CacheMaxSizeMB   int
	CacheTTL         time.Duration
	CachePolicy      string
	CacheCompression bool
	RedisAddr        string
	RedisPassword    string
	RedisDB          int

	// LLM categorization
	AnthropicAPIKey      string
	LLMEnabled           bool
	LLMModel             string
	LLMMaxTokens         int
	LLMTemperature       float64
	LLMTimeout           time.Duration
	LLMMaxRetries        int
	LLMRequestsPerMinute int
	LLMBatchSize         int
	LLMCostPer1KTokens   float64

	// Benchmark overrides (TOML)
	BenchmarkFile string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Alerts
	SNSTopicARN string

	// Headcount used by the employee growth analysis
	BaselineEmployees int
	CurrentEmployees  int

	// Maintenance
	CleanupInterval time.Duration

	// Worker health and metrics listener
	WorkerMetricsAddr string
}

func Load() *Config {
	apiKey := getEnv("ANTHROPIC_API_KEY", "")
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DatasetPath: getEnv("DATASET_PATH", "./data/invoice_cache.json"),
		OutputDir:   getEnv("OUTPUT_DIR", "./reports"),

		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/cost_control.db"),
		RetentionDays: getEnvInt("RETENTION_DAYS", 365),

		CacheBackend:     getEnv("CACHE_BACKEND", "memory"),
		CacheDir:         getEnv("CACHE_DIR", "./cache"),
		CacheMaxSizeMB:   getEnvInt("CACHE_MAX_SIZE_MB", 100),
		CacheTTL:         getEnvDuration("CACHE_TTL", 24*time.Hour),
		CachePolicy:      getEnv("CACHE_POLICY", "lru"),
		CacheCompression: getEnvBool("CACHE_COMPRESSION", true),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),

		AnthropicAPIKey:      apiKey,
		LLMEnabled:           getEnvBool("LLM_ENABLED", apiKey != ""),
		LLMModel:             getEnv("LLM_MODEL", "claude-3-5-sonnet-20241022"),
		LLMMaxTokens:         getEnvInt("LLM_MAX_TOKENS", 4000),
		LLMTemperature:       getEnvFloat("LLM_TEMPERATURE", 0.1),
		LLMTimeout:           getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		LLMMaxRetries:        getEnvInt("LLM_MAX_RETRIES", 1),
		LLMRequestsPerMinute: getEnvInt("LLM_REQUESTS_PER_MINUTE", 30),
		LLMBatchSize:         getEnvInt("LLM_BATCH_SIZE", 5),
		LLMCostPer1KTokens:   getEnvFloat("LLM_COST_PER_1K_TOKENS", 0.15),

		BenchmarkFile: getEnv("BENCHMARK_FILE", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "spendlens"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "analysis_requests"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Spend Summary"),

		SNSTopicARN: getEnv("SNS_TOPIC_ARN", ""),

		BaselineEmployees: getEnvInt("BASELINE_EMPLOYEES", 120),
		CurrentEmployees:  getEnvInt("CURRENT_EMPLOYEES", 160),

		CleanupInterval: getEnvDuration("CLEANUP_INTERVAL", time.Hour),

		WorkerMetricsAddr: getEnv("WORKER_METRICS_ADDR", ":9091"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}
	if c.RetentionDays < 1 {
		errors = append(errors, fmt.Sprintf("invalid retention days %d: must be at least 1", c.RetentionDays))
	}

	validBackends := []string{"memory", "disk", "redis"}
	if !contains(validBackends, c.CacheBackend) {
		errors = append(errors, fmt.Sprintf("invalid cache backend '%s': must be one of %v", c.CacheBackend, validBackends))
	}
	validPolicies := []string{"lru", "fifo"}
	if !contains(validPolicies, c.CachePolicy) {
		errors = append(errors, fmt.Sprintf("invalid cache policy '%s': must be one of %v", c.CachePolicy, validPolicies))
	}
	if c.CacheBackend == "disk" && c.CacheDir == "" {
		errors = append(errors, "cache directory cannot be empty when using disk cache backend")
	}
	if c.CacheBackend == "redis" && c.RedisAddr == "" {
		errors = append(errors, "REDIS_ADDR is required when using redis cache backend")
	}
	if c.CacheMaxSizeMB < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache max size %dMB: must be at least 1", c.CacheMaxSizeMB))
	}
	if c.CacheTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 minute", c.CacheTTL))
	}

	if c.LLMEnabled {
		if c.AnthropicAPIKey == "" {
			errors = append(errors, "ANTHROPIC_API_KEY is required when LLM categorization is enabled")
		}
		if c.LLMModel == "" {
			errors = append(errors, "LLM model cannot be empty when LLM categorization is enabled")
		}
	}
	if c.LLMMaxTokens < 1 {
		errors = append(errors, fmt.Sprintf("invalid LLM max tokens %d: must be at least 1", c.LLMMaxTokens))
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 1 {
		errors = append(errors, fmt.Sprintf("invalid LLM temperature %v: must be between 0 and 1", c.LLMTemperature))
	}
	if c.LLMMaxRetries < 0 || c.LLMMaxRetries > 10 {
		errors = append(errors, fmt.Sprintf("invalid LLM max retries %d: must be between 0 and 10", c.LLMMaxRetries))
	}
	if c.LLMRequestsPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid LLM requests per minute %d: must be at least 1", c.LLMRequestsPerMinute))
	}
	if c.LLMBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid LLM batch size %d: must be at least 1", c.LLMBatchSize))
	} else if c.LLMBatchSize > 50 {
		errors = append(errors, fmt.Sprintf("invalid LLM batch size %d: must be at most 50", c.LLMBatchSize))
	}
	if c.LLMCostPer1KTokens < 0 {
		errors = append(errors, fmt.Sprintf("invalid LLM cost per 1K tokens %v: must not be negative", c.LLMCostPer1KTokens))
	}

	if c.BenchmarkFile != "" {
		if _, err := os.Stat(c.BenchmarkFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("benchmark file does not exist: %s", c.BenchmarkFile))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" && c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
	}

	if c.SNSTopicARN != "" && !strings.HasPrefix(c.SNSTopicARN, "arn:") {
		errors = append(errors, fmt.Sprintf("invalid SNS topic ARN '%s': must start with 'arn:'", c.SNSTopicARN))
	}

	if c.BaselineEmployees < 1 || c.CurrentEmployees < 1 {
		errors = append(errors, fmt.Sprintf("invalid headcount baseline=%d current=%d: both must be at least 1", c.BaselineEmployees, c.CurrentEmployees))
	}

	if c.CleanupInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid cleanup interval %v: must be at least 1 minute", c.CleanupInterval))
	} else if c.CleanupInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cleanup interval %v: must be at most 24 hours", c.CleanupInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// CacheMaxBytes returns the hot tier budget in bytes.
func (c *Config) CacheMaxBytes() int64 {
	return int64(c.CacheMaxSizeMB) * 1024 * 1024
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
