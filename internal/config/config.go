package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string
	HTTPAddr    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBFile            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string

	Gateway    GatewayConfig
	Conversion ConversionConfig
}

type GatewayConfig struct {
	MercadoPagoBaseURL   string
	MercadoPagoPublicKey string
	StripeBaseURL        string
	StripePublishableKey string
	TimeoutSeconds       int
}

type ConversionConfig struct {
	Endpoint       string
	Platform       string
	TimeoutSeconds int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "checkout"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "checkout"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBFile:            getenv("DATABASE_FILE", "checkout.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		Gateway: GatewayConfig{
			MercadoPagoBaseURL:   getenv("MERCADOPAGO_BASE_URL", ""),
			MercadoPagoPublicKey: strings.TrimSpace(getenv("MERCADOPAGO_PUBLIC_KEY", "")),
			StripeBaseURL:        getenv("STRIPE_BASE_URL", ""),
			StripePublishableKey: strings.TrimSpace(getenv("STRIPE_PUBLISHABLE_KEY", "")),
			TimeoutSeconds:       getenvInt("GATEWAY_HTTP_TIMEOUT_SECONDS", 10),
		},
		Conversion: ConversionConfig{
			Endpoint:       getenv("CONVERSION_ENDPOINT", "https://api.utmify.com.br/api-credentials/orders"),
			Platform:       getenv("CONVERSION_PLATFORM", "Vendelo"),
			TimeoutSeconds: getenvInt("CONVERSION_HTTP_TIMEOUT_SECONDS", 10),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
