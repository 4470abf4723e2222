package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		// A missing .env is fine, real deployments inject variables directly
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL       string
	ALLOWED_ORIGINS string
	// SMTP Configuration
	SMTP_HOST     string
	SMTP_PORT     int
	SMTP_USERNAME string
	SMTP_PASSWORD string
	SMTP_FROM     string
	// Payment provider (PayPal Orders v2)
	PAYPAL_CLIENT_ID         string
	PAYPAL_CLIENT_SECRET     string
	PAYPAL_BASE_URL          string
	PAYMENT_CURRENCY         string
	PAYMENT_RETURN_URL       string
	PAYMENT_CANCEL_URL       string
	PAYMENT_PROVIDER_TIMEOUT time.Duration
	// OTP verification
	OTP_TTL             time.Duration
	OTP_RESEND_COOLDOWN time.Duration
	OTP_MAX_ATTEMPTS    int
	// Misc
	COURSE_CACHE_TTL time.Duration
	CRON_ENABLED     bool
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	smtpPort, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		smtpPort = 587
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       getEnvOrDefault("GO_ENV", "development"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      getEnvOrDefault("DB_HOST", "localhost"),
		DB_PORT:      getEnvOrDefault("DB_PORT", "5432"),
		DB_SSL_MODE:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		PORT:         port,
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: getEnvOrDefault("JWT_ISSUER", "coursemart-api"),
		// Redis
		REDIS_URL:       getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		ALLOWED_ORIGINS: getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
		// SMTP
		SMTP_HOST:     getEnvOrDefault("SMTP_HOST", "smtp.gmail.com"),
		SMTP_PORT:     smtpPort,
		SMTP_USERNAME: os.Getenv("SMTP_USERNAME"),
		SMTP_PASSWORD: os.Getenv("SMTP_PASSWORD"),
		SMTP_FROM:     getEnvOrDefault("SMTP_FROM", "noreply@coursemart.app"),
		// Payments
		PAYPAL_CLIENT_ID:         os.Getenv("PAYPAL_CLIENT_ID"),
		PAYPAL_CLIENT_SECRET:     os.Getenv("PAYPAL_CLIENT_SECRET"),
		PAYPAL_BASE_URL:          getEnvOrDefault("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
		PAYMENT_CURRENCY:         getEnvOrDefault("PAYMENT_CURRENCY", "USD"),
		PAYMENT_RETURN_URL:       getEnvOrDefault("PAYMENT_RETURN_URL", "http://localhost:3000/payments/success"),
		PAYMENT_CANCEL_URL:       getEnvOrDefault("PAYMENT_CANCEL_URL", "http://localhost:3000/payments/cancel"),
		PAYMENT_PROVIDER_TIMEOUT: getDurationOrDefault("PAYMENT_PROVIDER_TIMEOUT", 15*time.Second),
		// OTP
		OTP_TTL:             getDurationOrDefault("OTP_TTL", 5*time.Minute),
		OTP_RESEND_COOLDOWN: getDurationOrDefault("OTP_RESEND_COOLDOWN", 60*time.Second),
		OTP_MAX_ATTEMPTS:    getIntOrDefault("OTP_MAX_ATTEMPTS", 5),
		// Misc
		COURSE_CACHE_TTL: getDurationOrDefault("COURSE_CACHE_TTL", 5*time.Minute),
		CRON_ENABLED:     os.Getenv("CRON_ENABLED") != "false", // Default to enabled
	}

	return envVariables, nil
}

// IsProduction reports whether the service runs with GO_ENV=production
func (e *EnviornmentVariable) IsProduction() bool {
	return e.GO_ENV == "production"
}

// DSN builds the Postgres connection string used by GORM
func (e *EnviornmentVariable) DSN() string {
	return "host=" + e.DB_HOST +
		" user=" + e.DB_USER_NAME +
		" password=" + e.DB_PASSWORD +
		" dbname=" + e.DB_NAME +
		" port=" + e.DB_PORT +
		" sslmode=" + e.DB_SSL_MODE +
		" TimeZone=UTC"
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntOrDefault(key string, defaultVal int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultVal
}

// getDurationOrDefault accepts Go duration strings ("90s", "5m")
func getDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultVal
}
