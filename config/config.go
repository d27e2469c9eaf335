package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Local dataset store
	Database DatabaseConfig

	// Remote security master / daily returns provider
	Provider ProviderConfig

	// Redis configuration
	RedisHost     string
	RedisPassword string
	RedisPort     string

	// LLM configuration
	LLM LLMConfig

	// Post ingestion
	Ingest IngestConfig

	// Security refresh and forward returns
	Performance PerformanceConfig

	// Run log
	Logging LoggingConfig
}

// DatabaseConfig selects and configures the local store
type DatabaseConfig struct {
	Driver   string // "sqlite" or "postgres"
	Path     string // sqlite file, ":memory:" allowed
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	// Batch size for transactional writes
	BatchSize int
}

// ProviderConfig holds the provider connection and call policy
type ProviderConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string

	NamesTable   string
	ReturnsTable string

	CallTimeout   time.Duration
	MaxAttempts   int
	RetryInterval time.Duration
	BackoffCoeff  int
	RatePerSecond float64
	CacheTTL      time.Duration
}

// LLMConfig holds LLM service configuration
type LLMConfig struct {
	Enabled  bool
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
	// Selftext longer than this is truncated before scoring
	MaxChars int
}

// IngestConfig holds post screening parameters
type IngestConfig struct {
	InputPath        string
	Domain           string
	MinWords         int
	TickersPath      string
	ProblemTickers   string
	ETFTickersPath   string
	ExcludedTickers  []string
	Redirects        map[string]string
	ProgressInterval int
}

// PerformanceConfig holds the security refresh and horizon settings
type PerformanceConfig struct {
	// Latest date the provider has data for
	DataThrough time.Time
	// First date of the daily returns pulled per security
	ReturnsFrom   time.Time
	HorizonDays   []int
	SessionWindow int
}

// LoggingConfig controls the run log
type LoggingConfig struct {
	Dir   string
	Level string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		Database: DatabaseConfig{
			Driver:    getEnvOrDefault("DB_DRIVER", "sqlite"),
			Path:      getEnvOrDefault("DB_PATH", "submissions.db"),
			Host:      getEnvOrDefault("DB_HOST", "localhost"),
			Port:      getEnvInt("DB_PORT", 5432),
			Name:      getEnvOrDefault("DB_NAME", "fin_nlp"),
			User:      getEnvOrDefault("DB_USER", "fin_nlp"),
			Password:  getEnvOrDefault("DB_PASSWORD", ""),
			BatchSize: getEnvInt("DB_BATCH_SIZE", 100),
		},

		Provider: ProviderConfig{
			Host:          getEnvOrDefault("PROVIDER_HOST", "wrds-pgdata.wharton.upenn.edu"),
			Port:          getEnvInt("PROVIDER_PORT", 9737),
			Name:          getEnvOrDefault("PROVIDER_DB", "wrds"),
			User:          os.Getenv("PROVIDER_USER"),
			Password:      os.Getenv("PROVIDER_PASSWORD"),
			SSLMode:       getEnvOrDefault("PROVIDER_SSLMODE", "require"),
			NamesTable:    getEnvOrDefault("PROVIDER_NAMES_TABLE", "crsp_q_stock.stocknames_v2"),
			ReturnsTable:  getEnvOrDefault("PROVIDER_RETURNS_TABLE", "crsp_q_stock.dsf"),
			CallTimeout:   getEnvDuration("PROVIDER_CALL_TIMEOUT", 30*time.Second),
			MaxAttempts:   getEnvInt("PROVIDER_MAX_ATTEMPTS", 5),
			RetryInterval: getEnvDuration("PROVIDER_RETRY_INTERVAL", 500*time.Millisecond),
			BackoffCoeff:  getEnvInt("PROVIDER_BACKOFF_COEFF", 2),
			RatePerSecond: getEnvFloat("PROVIDER_RATE_PER_SECOND", 5.0),
			CacheTTL:      getEnvDuration("PROVIDER_CACHE_TTL", 24*time.Hour),
		},

		// Redis configuration
		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		// LLM configuration
		LLM: LLMConfig{
			Enabled:  getEnvBool("LLM_ENABLED", false),
			Endpoint: getEnvOrDefault("LLM_ENDPOINT", "https://api.openai.com/v1"),
			APIKey:   getEnvOrDefault("LLM_API_KEY", ""),
			Model:    getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
			Timeout:  getEnvDuration("LLM_TIMEOUT", 60*time.Second),
			MaxChars: getEnvInt("LLM_MAX_CHARS", 12000),
		},

		Ingest: IngestConfig{
			InputPath:        os.Getenv("INGEST_INPUT"),
			Domain:           getEnvOrDefault("INGEST_DOMAIN", "self.wallstreetbets"),
			MinWords:         getEnvInt("INGEST_MIN_WORDS", 60),
			TickersPath:      getEnvOrDefault("INGEST_TICKERS_CSV", "ticker_lists/us_companies_5000.csv"),
			ProblemTickers:   getEnvOrDefault("INGEST_PROBLEM_TICKERS_CSV", "ticker_lists/problem_tickers.csv"),
			ETFTickersPath:   getEnvOrDefault("INGEST_ETF_TICKERS_CSV", "ticker_lists/etf_tickers.csv"),
			ExcludedTickers:  getEnvList("INGEST_EXCLUDED_TICKERS", []string{"A", "DD"}),
			Redirects:        getEnvMap("INGEST_REDIRECTS", map[string]string{"GOOG": "GOOGL"}),
			ProgressInterval: getEnvInt("INGEST_PROGRESS_INTERVAL", 10000),
		},

		Performance: PerformanceConfig{
			DataThrough:   getEnvDate("PERFORMANCE_DATA_THROUGH", time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC)),
			ReturnsFrom:   getEnvDate("PERFORMANCE_RETURNS_FROM", time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)),
			HorizonDays:   getEnvIntList("PERFORMANCE_HORIZON_DAYS", []int{30, 60, 90, 182, 365}),
			SessionWindow: getEnvInt("PERFORMANCE_SESSION_WINDOW_DAYS", 10),
		},

		Logging: LoggingConfig{
			Dir:   getEnvOrDefault("LOG_DIR", "logs"),
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
		},
	}
}

// ProviderDSN builds the lib/pq connection string for the provider
func (c *Config) ProviderDSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Provider.Host, c.Provider.Port, c.Provider.Name, c.Provider.User, c.Provider.Password, c.Provider.SSLMode)
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvFloat gets environment variable as float64 or returns default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var floatValue float64
	if _, err := fmt.Sscanf(value, "%f", &floatValue); err != nil {
		return defaultValue
	}
	return floatValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	switch value {
	case "":
		return defaultValue
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

// getEnvDate parses a YYYY-MM-DD value as a UTC date
func getEnvDate(key string, defaultValue time.Time) time.Time {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return defaultValue
	}
	return t
}

// getEnvList splits a comma separated value, dropping blanks
func getEnvList(key string, defaultValue []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvIntList(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d", &n); err != nil || n <= 0 {
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}

// getEnvMap parses FROM:TO pairs separated by commas (e.g. "GOOG:GOOGL,FB:META")
func getEnvMap(key string, defaultValue map[string]string) map[string]string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		from, to, found := strings.Cut(pair, ":")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !found || from == "" || to == "" {
			continue
		}
		out[from] = to
	}
	return out
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
