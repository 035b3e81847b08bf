package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Gateway   GatewayConfig
	Providers ProvidersConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode + "&prepare_threshold=0"
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	PASSWORD string
}

// AuthConfig holds gateway authentication configuration
type AuthConfig struct {
	MasterKey    string
	JWTSecret    string
	AccessExpiry time.Duration
}

// GatewayConfig holds request handling configuration
type GatewayConfig struct {
	CacheEnabled    bool
	CacheTTL        time.Duration
	RequestTimeout  time.Duration
	StreamTimeout   time.Duration
	RetryMax        int
	RateLimitWindow time.Duration
}

// ProvidersConfig holds upstream provider API keys loaded from the environment.
// Credentials configured through the admin API take precedence over these.
type ProvidersConfig struct {
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	AzureAPIKey     string
	AzureEndpoint   string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "inferxgate"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			PASSWORD: getEnv("REDIS_PASSWORD", ""),
		},
		Auth: AuthConfig{
			MasterKey:    getEnv("INFERXGATE_MASTER_KEY", ""),
			JWTSecret:    getEnv("JWT_SECRET", "change-this-in-production"),
			AccessExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
		},
		Gateway: GatewayConfig{
			CacheEnabled:    getEnvAsBool("CACHE_ENABLED", true),
			CacheTTL:        getEnvAsDuration("CACHE_TTL", time.Hour),
			RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 2*time.Minute),
			StreamTimeout:   getEnvAsDuration("STREAM_TIMEOUT", 10*time.Minute),
			RetryMax:        getEnvAsInt("RETRY_MAX", 3),
			RateLimitWindow: getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Providers: ProvidersConfig{
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
			AzureAPIKey:     getEnv("AZURE_API_KEY", ""),
			AzureEndpoint:   getEnv("AZURE_ENDPOINT", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
