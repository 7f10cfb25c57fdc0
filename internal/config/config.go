package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	LogLevel    string

	AuthCookieSecure bool
	SessionTTL       time.Duration

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string

	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	Gateway GatewayConfig
	SMTP    SMTPConfig
	SMS     SMSConfig
}

// GatewayConfig carries payment provider credentials.
type GatewayConfig struct {
	ClientID      string
	ClientSecret  string
	Environment   string // sandbox | live
	WebhookSecret string
	Timeout       time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMSConfig struct {
	APIURL string
	APIKey string
	Sender string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	return Config{
		AppName:     getenv("APP_SERVICE", "aegis"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		AuthCookieSecure: authCookieSecure,
		SessionTTL:       getenvDuration("AUTH_SESSION_TTL", 12*time.Hour),

		DBType:            getenv("DB_TYPE", "postgres"),
		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBName:            getenv("DB_NAME", "aegis"),
		DBUser:            getenv("DB_USER", "aegis"),
		DBPassword:        getenv("DB_PASSWORD", ""),
		DBSSLMode:         getenv("DB_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DB_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DB_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DB_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DB_CONN_MAX_IDLE_TIME", 600),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		BootstrapAdminEmail:    strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_EMAIL", "")),
		BootstrapAdminPassword: getenv("BOOTSTRAP_ADMIN_PASSWORD", ""),

		Gateway: GatewayConfig{
			ClientID:      strings.TrimSpace(getenv("GATEWAY_CLIENT_ID", "")),
			ClientSecret:  strings.TrimSpace(getenv("GATEWAY_CLIENT_SECRET", "")),
			Environment:   strings.ToLower(getenv("GATEWAY_ENVIRONMENT", "sandbox")),
			WebhookSecret: strings.TrimSpace(getenv("GATEWAY_WEBHOOK_SECRET", "")),
			Timeout:       getenvDuration("GATEWAY_TIMEOUT", 12*time.Second),
		},
		SMTP: SMTPConfig{
			Host:     getenv("SMTP_HOST", ""),
			Port:     getenvInt("SMTP_PORT", 587),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", "no-reply@guardline.io"),
		},
		SMS: SMSConfig{
			APIURL: getenv("SMS_API_URL", ""),
			APIKey: getenv("SMS_API_KEY", ""),
			Sender: getenv("SMS_SENDER", "Guardline"),
		},
	}
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
