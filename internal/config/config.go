package config

import (
	"errors"  // For validation errors
	"fmt"     // For error formatting
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // For list parsing

	"micropaper/internal/validator" // Address rules for demo wallets

	"github.com/joho/godotenv" // For loading .env files
)

// Default demo wallets seeded as verified at start
var defaultDemoWallets = []string{
	"0x1234567890123456789012345678901234567890",
	"0xabcdefabcdefabcdefabcdefabcdefabcdefabcd",
}

// Config holds the application configuration
type Config struct {
	AppPort            string   // Application port
	Environment        string   // development or production
	IsProd             bool     // Is production environment
	LogLevel           string   // Logrus level
	APIKey             string   // Shared static credential (X-API-Key)
	AdminKey           string   // Credential for admin operations (X-Admin-Key)
	AllowedOrigins     []string // CORS origins
	DBUser             string   // Database user
	DBPassword         string   // Database password
	DBHost             string   // Database host, empty disables the journal
	DBPort             string   // Database port
	DBName             string   // Database name
	RedisAddr          string   // Redis server address (Redis 2.6 or later), empty disables Redis
	RedisPass          string   // Redis password
	RedisDB            int      // Redis database number
	RateLimitPerMinute int      // Requests per client per minute
	CacheTTLSeconds    int      // TTL of cached read responses
	DemoWallets        []string // Wallets seeded as verified
	DebugErrors        bool     // Expose internal error messages
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	env := getEnv("ENVIRONMENT", "development")
	isProd := env == "production" || os.Getenv("IS_PROD") == "true"
	logLevel := "debug" // Verbose outside production
	if isProd {
		logLevel = "info"
	}
	apiKey := os.Getenv("API_KEY")
	adminKey := os.Getenv("ADMIN_KEY") // Empty leaves verify behind the API key only
	demoWallets := defaultDemoWallets
	if v, ok := os.LookupEnv("DEMO_WALLETS"); ok {
		demoWallets = splitList(v) // Empty value disables seeding
	}
	return &Config{
		AppPort:            getEnv("APP_PORT", "8000"),                                            // Application port
		Environment:        env,                                                                   // Environment name
		IsProd:             isProd,                                                                // Is production environment
		LogLevel:           getEnv("LOG_LEVEL", logLevel),                                         // Logrus level
		APIKey:             apiKey,                                                                // Shared credential
		AdminKey:           adminKey,                                                              // Admin credential
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "https://micropaper.vercel.app")), // CORS origins
		DBUser:             os.Getenv("DB_USER"),                                                  // Database user
		DBPassword:         os.Getenv("DB_PASSWORD"),                                              // Database password
		DBHost:             os.Getenv("DB_HOST"),                                                  // Database host
		DBPort:             getEnv("DB_PORT", "3306"),                                             // Database port
		DBName:             os.Getenv("DB_NAME"),                                                  // Database name
		RedisAddr:          os.Getenv("REDIS_ADDR"),                                               // Redis server address
		RedisPass:          os.Getenv("REDIS_PASS"),                                               // Redis password
		RedisDB:            getInt("REDIS_DB", 0),                                                 // Redis database number
		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 120),                                  // Rate limit budget
		CacheTTLSeconds:    getInt("CACHE_TTL_SECONDS", 5),                                        // Read cache TTL
		DemoWallets:        demoWallets,                                                           // Seeded wallets
		DebugErrors:        os.Getenv("DEBUG_ERRORS") == "true",                                   // Diagnostic error output
	}
}

// Validate checks the configuration for invalid combinations
func (c *Config) Validate() error {
	var errs []error
	if c.IsProd && c.APIKey == "" {
		errs = append(errs, errors.New("API_KEY is required in production"))
	}
	if c.RateLimitPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimitPerMinute))
	}
	if c.CacheTTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL_SECONDS must not be negative, got %d", c.CacheTTLSeconds))
	}
	for _, w := range c.DemoWallets {
		if _, v := validator.ValidateAddress(w); len(v) > 0 {
			errs = append(errs, fmt.Errorf("DEMO_WALLETS entry %q is not a valid wallet address", w))
		}
	}
	return errors.Join(errs...)
}

// DSN builds the MySQL Data Source Name, empty when no database is configured
func (c *Config) DSN() string {
	if c.DBHost == "" {
		return ""
	}
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

// getEnv returns the variable or a fallback when unset or empty
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getInt parses an integer variable, falling back when unset or invalid
func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

// splitList splits a comma-separated list, dropping empty items
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
