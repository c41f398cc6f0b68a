package shared

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// devJWTSecret signs tokens when APP_ENV=dev and no secret is configured.
const devJWTSecret = "rentdesk-dev-only-signing-key"

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	SMSBaseURL  string
	SMSAPIKey   string
	SMSSenderID string
	SMSRPS      int

	BillingWorkers int
	InvoiceDueDays int
	MigrateOnStart bool
	PlansFile      string
}

// Load reads the environment, after merging an optional .env file (ENV_FILE
// overrides the path). Variables already set win over the file.
func Load() Config {
	envFile := env("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("file", envFile).Msg("could not load env file")
	}

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/rentdesk?charset=utf8mb4"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisDB:     atoi("REDIS_DB", 0),
		RedisPass:   env("REDIS_PASSWORD", ""),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,

		JWTSecret:  env("JWT_SECRET", ""),
		AccessTTL:  time.Duration(atoi("ACCESS_TOKEN_TTL_SECONDS", 3600)) * time.Second,
		RefreshTTL: time.Duration(atoi("REFRESH_TOKEN_TTL_SECONDS", 30*24*3600)) * time.Second,

		SMSBaseURL:  env("SMS_BASE_URL", ""),
		SMSAPIKey:   env("SMS_API_KEY", ""),
		SMSSenderID: env("SMS_SENDER_ID", "RENTDESK"),
		SMSRPS:      atoi("SMS_RPS", 5),

		BillingWorkers: atoi("BILLING_WORKERS", 8),
		InvoiceDueDays: atoi("INVOICE_DUE_DAYS", 5),
		MigrateOnStart: boolean("MIGRATE_ON_START", false),
		PlansFile:      env("PLANS_FILE", ""),
	}
	if c.JWTSecret == "" && c.Dev() {
		c.JWTSecret = devJWTSecret
		log.Warn().Msg("JWT_SECRET is empty; using the development secret")
	} else if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty")
	}
	if c.SMSAPIKey == "" {
		log.Warn().Msg("SMS_API_KEY is empty; messages are only logged")
	}
	return c
}

func (c Config) Dev() bool { return c.AppEnv == "dev" || c.AppEnv == "development" }

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func boolean(k string, def bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
