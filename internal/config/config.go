package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process-wide configuration assembled from the environment.
type Config struct {
	Port        string
	Env         string
	CORSOrigins string

	DatabaseDSN      string
	DBMaxIdleConns   int
	DBMaxOpenConns   int
	DBConnLifetime   time.Duration
	DBConnIdleTime   time.Duration
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	KafkaBrokers     []string
	KafkaTopicPrefix string

	JWTSecret      string
	CredentialsKey string

	AdapterTimeout time.Duration
	WebhookTimeout time.Duration
	StripeAPIURL   string
	UPIBaseURL     string
	WalletBaseURL  string

	PlatformFeePercent string
	PlatformFixedFee   int64
	PayoutFixedFee     int64

	DefaultFrequency   string
	DefaultThreshold   int64
	DefaultMaxHoldDays int
	SettlementLockTTL  time.Duration
	SweepSpec          string
	WorkerConcurrency  int
}

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// Load reads the environment into a Config.
func Load() Config {
	return Config{
		Port:             GetEnv("PORT", "3000"),
		Env:              GetEnv("ENV", "development"),
		CORSOrigins:      GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173"),
		DatabaseDSN:      databaseDSN(),
		DBMaxIdleConns:   GetIntEnv("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns:   GetIntEnv("DB_MAX_OPEN_CONNS", 100),
		DBConnLifetime:   GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
		DBConnIdleTime:   GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		RedisAddr:        GetEnv("REDIS_HOST", "localhost") + ":" + GetEnv("REDIS_PORT", "6379"),
		RedisPassword:    GetEnv("REDIS_PASSWORD", ""),
		RedisDB:          GetIntEnv("REDIS_DB", 0),
		KafkaBrokers:     GetListEnv("KAFKA_BROKERS"),
		KafkaTopicPrefix: GetEnv("KAFKA_TOPIC_PREFIX", "menupay."),

		JWTSecret:      GetEnv("JWT_SECRET", "menupay"),
		CredentialsKey: GetEnv("CREDENTIALS_KEY", ""),

		AdapterTimeout: GetDurationEnv("ADAPTER_TIMEOUT", 15*time.Second),
		WebhookTimeout: GetDurationEnv("WEBHOOK_TIMEOUT", 10*time.Second),
		StripeAPIURL:   GetEnv("STRIPE_API_URL", ""),
		UPIBaseURL:     GetEnv("UPI_BASE_URL", "https://api.razorpay.com"),
		WalletBaseURL:  GetEnv("WALLET_BASE_URL", "https://api.phonepe.com/apis/hermes"),

		PlatformFeePercent: GetEnv("PLATFORM_FEE_PERCENT", "0"),
		PlatformFixedFee:   int64(GetIntEnv("PLATFORM_FIXED_FEE", 0)),
		PayoutFixedFee:     int64(GetIntEnv("PAYOUT_FIXED_FEE", 0)),

		DefaultFrequency:   GetEnv("PAYOUT_DEFAULT_FREQUENCY", "weekly"),
		DefaultThreshold:   int64(GetIntEnv("PAYOUT_DEFAULT_THRESHOLD", 5000)),
		DefaultMaxHoldDays: GetIntEnv("PAYOUT_DEFAULT_MAX_HOLD_DAYS", 30),
		SettlementLockTTL:  GetDurationEnv("SETTLEMENT_LOCK_TTL", 2*time.Minute),
		SweepSpec:          GetEnv("SETTLEMENT_SWEEP_SPEC", "@every 1h"),
		WorkerConcurrency:  GetIntEnv("WORKER_CONCURRENCY", 5),
	}
}

func databaseDSN() string {
	if dsn := GetEnv("DATABASE_URL", ""); dsn != "" {
		return dsn
	}
	return "host=" + GetEnv("DB_HOST", "localhost") +
		" user=" + GetEnv("DB_USER", "postgres") +
		" password=" + GetEnv("DB_PASSWORD", "postgres") +
		" dbname=" + GetEnv("DB_NAME", "menupay") +
		" port=" + GetEnv("DB_PORT", "5432") +
		" sslmode=disable TimeZone=UTC"
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetDurationEnv returns a duration environment variable or a default value.
func GetDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// GetListEnv splits a comma separated variable, dropping empty items.
func GetListEnv(key string) []string {
	var out []string
	for _, item := range strings.Split(GetEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// IsProduction checks if the app runs in production mode.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}
