package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion

	"github.com/joho/godotenv"      // For loading .env files
	"github.com/shopspring/decimal" // Money amounts
)

// Config holds the application configuration
type Config struct {
	AppPort     string // Application port
	MetricsPort string // Metrics/health sidecar port
	DBUser      string // Database user
	DBPassword  string // Database password
	DBHost      string // Database host
	DBPort      string // Database port
	DBName      string // Database name
	JWTSecret   string // JWT secret key
	RedisAddr   string // Redis server address
	RedisPass   string // Redis password
	RedisDB     int    // Redis database number
	IsProd      bool   // Is production environment

	MinWagerAmount    decimal.Decimal // Smallest allowed wager stake
	DefaultFeePercent decimal.Decimal // House fee on the losing pool when none is given

	BillProviderURL    string // Bill provider base URL
	BillProviderKey    string // Bill provider API key
	BillCallbackSecret string // Shared secret the provider sends on callbacks
	GatewaySecret      string // HMAC secret for deposit gateway webhooks

	RateLimitPerMinute int // Mutating requests allowed per user per minute
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:     os.Getenv("APP_PORT"),               // Application port
		MetricsPort: getEnv("METRICS_PORT", "9095"),      // Metrics/health port
		DBUser:      os.Getenv("DB_USER"),                // Database user
		DBPassword:  os.Getenv("DB_PASSWORD"),            // Database password
		DBHost:      os.Getenv("DB_HOST"),                // Database host
		DBPort:      os.Getenv("DB_PORT"),                // Database port
		DBName:      os.Getenv("DB_NAME"),                // Database name
		JWTSecret:   os.Getenv("JWT_SECRET"),             // JWT secret key
		RedisAddr:   os.Getenv("REDIS_ADDR"),             // Redis server address
		RedisPass:   os.Getenv("REDIS_PASS"),             // Redis password
		RedisDB:     redisDB,                             // Redis database number
		IsProd:      os.Getenv("IS_PROD") == "true",      // Is production environment

		MinWagerAmount:    decimalEnv("MIN_WAGER_AMOUNT", "100"),  // Smallest stake
		DefaultFeePercent: decimalEnv("WAGER_FEE_PERCENT", "5"),   // Default house fee

		BillProviderURL:    os.Getenv("BILL_PROVIDER_URL"),    // Bill provider base URL
		BillProviderKey:    os.Getenv("BILL_PROVIDER_KEY"),    // Bill provider API key
		BillCallbackSecret: os.Getenv("BILL_CALLBACK_SECRET"), // Bill callback secret
		GatewaySecret:      os.Getenv("GATEWAY_SECRET"),       // Deposit webhook HMAC secret

		RateLimitPerMinute: intEnv("RATE_LIMIT_PER_MINUTE", 30), // Rate limit window size
	}
}

// getEnv returns the environment value or a default
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// intEnv parses an integer environment value with a default
func intEnv(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

// decimalEnv parses a decimal environment value with a default
func decimalEnv(key, def string) decimal.Decimal {
	if v, err := decimal.NewFromString(os.Getenv(key)); err == nil {
		return v
	}
	d, _ := decimal.NewFromString(def)
	return d
}
