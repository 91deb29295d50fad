// Package config reads service settings from the environment. A .env file in
// the working directory is loaded first when present.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	MCPTransportStdio = "stdio"
	MCPTransportHTTP  = "http"
)

type Config struct {
	Host string
	Port int

	Coinbase CoinbaseConfig

	InitialUSD float64

	// DSN enables the Postgres transaction journal when set.
	DSN string

	// JWTSecret enables the admin routes when set.
	JWTSecret string

	LogLevel  string
	LogFormat string

	MCPTransport string
	MCPPort      int

	PriceStubPort int
}

type CoinbaseConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Host: getEnv("HOST", ""),
		Port: getEnvInt("PORT", 8080),
		Coinbase: CoinbaseConfig{
			BaseURL:           getEnv("COINBASE_BASE_URL", "https://api.coinbase.com"),
			Timeout:           getEnvDuration("COINBASE_TIMEOUT", 10*time.Second),
			RequestsPerSecond: getEnvFloat("COINBASE_RPS", 10),
			Burst:             getEnvInt("COINBASE_BURST", 5),
		},
		InitialUSD:    getEnvFloat("INITIAL_USD", 1000),
		DSN:           getEnv("DSN", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		MCPTransport:  strings.ToLower(getEnv("MCP_TRANSPORT", MCPTransportStdio)),
		MCPPort:       getEnvInt("MCP_PORT", 8081),
		PriceStubPort: getEnvInt("PRICE_STUB_PORT", 8090),
	}
}

// NewLogger builds a logger from LOG_LEVEL and LOG_FORMAT. An unknown level
// falls back to info.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logger.Warningf("logrus.ParseLevel: %s", err)

		level = logrus.InfoLevel
	}

	logger.SetLevel(level)

	if strings.EqualFold(c.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}

	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}

	return value
}
