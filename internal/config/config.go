package config

import (
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewPlanCatalogHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	AuthJWTSecret    string
	AuthCookieName   string
	AuthCookieSecure bool

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

	Paystack PaystackConfig
	Billing  BillingConfig
	Redis    RedisConfig
}

// PaystackConfig carries the payment gateway credentials.
type PaystackConfig struct {
	SecretKey      string
	PublicKey      string
	BaseURL        string
	TimeoutSeconds int
}

type BillingConfig struct {
	CallbackURL      string
	VerifyRatePerSec float64
	VerifyBurst      int
	PlanCatalogPath  string
	DefaultCurrency  string
	SupportEmail     string
	CompanyName      string
	CompanyAddress   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
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
		AppName:          getenv("APP_SERVICE", "invoicely"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      environment,
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:     getenv("OTLP_ENDPOINT", "localhost:4317"),
		AuthJWTSecret:    strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AuthCookieName:   getenv("AUTH_COOKIE_NAME", "sb-access-token"),
		AuthCookieSecure: authCookieSecure,

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 1800)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 300)),

		Paystack: PaystackConfig{
			SecretKey:      strings.TrimSpace(getenv("PAYSTACK_SECRET_KEY", "")),
			PublicKey:      strings.TrimSpace(getenv("PAYSTACK_PUBLIC_KEY", "")),
			BaseURL:        strings.TrimRight(getenv("PAYSTACK_BASE_URL", "https://api.paystack.co"), "/"),
			TimeoutSeconds: int(getenvInt64("PAYSTACK_TIMEOUT_SECONDS", 15)),
		},
		Billing: BillingConfig{
			CallbackURL:      strings.TrimSpace(getenv("BILLING_CALLBACK_URL", "http://localhost:3000/billing/verify")),
			VerifyRatePerSec: getenvFloat("VERIFY_RATE_PER_SEC", 0.5),
			VerifyBurst:      int(getenvInt64("VERIFY_BURST", 5)),
			PlanCatalogPath:  strings.TrimSpace(getenv("PLAN_CATALOG_PATH", "")),
			DefaultCurrency:  strings.ToUpper(getenv("BILLING_CURRENCY", "NGN")),
			SupportEmail:     getenv("BILLING_SUPPORT_EMAIL", "support@invoicely.app"),
			CompanyName:      getenv("BILLING_COMPANY_NAME", "Invoicely"),
			CompanyAddress:   getenv("BILLING_COMPANY_ADDRESS", ""),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(lookupEnv(key)); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(lookupEnv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(lookupEnv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(lookupEnv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
