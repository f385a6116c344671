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

	Port        string
	APIBasePath string
	ClientURL   string
	CORSOrigins []string

	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For is honoured.
	TrustedProxies []string

	OTLPEndpoint string

	Stripe  StripeConfig
	Catalog CatalogConfig
	Mongo   MongoConfig
	Admin   AdminConfig
	Redis   RedisConfig
	Limits  RateLimitConfig
	Email   EmailConfig
	Webhook WebhookConfig

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
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

type CatalogConfig struct {
	Source   string
	Fallback string
	CacheTTL time.Duration
}

type MongoConfig struct {
	URI                    string
	Database               string
	Collection             string
	ServerSelectionTimeout time.Duration
}

type AdminConfig struct {
	Token     string
	TokenHash string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled bool
	Rate    float64
	Burst   int
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	NotifyTo     []string
}

type WebhookConfig struct {
	ReplayInterval    time.Duration
	ReplayBatchSize   int
	ReplayMaxAttempts int
}

const (
	CatalogSourceStatic = "static"
	CatalogSourceStripe = "stripe"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	stripeKey := strings.TrimSpace(getenv("STRIPE_SECRET_KEY", ""))
	defaultSource := CatalogSourceStatic
	if stripeKey != "" {
		defaultSource = CatalogSourceStripe
	}

	cfg := Config{
		AppName:        getenv("APP_SERVICE", "blsuntech"),
		AppVersion:     getenv("APP_VERSION", "0.1.0"),
		Environment:    getenv("ENVIRONMENT", "development"),
		Port:           getenv("PORT", "5050"),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),
		ClientURL:      strings.TrimRight(getenv("CLIENT_URL", "http://localhost:3000"), "/"),
		CORSOrigins:    splitList(getenv("CORS_ORIGIN", getenv("ORIGIN", "http://localhost:3000"))),
		TrustedProxies: splitList(getenv("TRUSTED_PROXIES", "")),
		OTLPEndpoint:   getenv("OTLP_ENDPOINT", "localhost:4317"),
		Stripe: StripeConfig{
			SecretKey:     stripeKey,
			WebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			Timeout:       getenvDuration("STRIPE_TIMEOUT", 5*time.Second),
		},
		Catalog: CatalogConfig{
			Source:   normalizeSource(getenv("CATALOG_SOURCE", defaultSource)),
			Fallback: strings.ToLower(strings.TrimSpace(getenv("CATALOG_FALLBACK", ""))),
			CacheTTL: getenvDuration("CATALOG_CACHE_TTL", 0),
		},
		Mongo: MongoConfig{
			URI:                    strings.TrimSpace(getenv("MONGODB_URI", "")),
			Database:               getenv("MONGODB_DB", "blsuntech"),
			Collection:             getenv("MONGODB_COLLECTION", "intakes"),
			ServerSelectionTimeout: getenvDuration("MONGODB_SERVER_SELECTION_TIMEOUT", 5*time.Second),
		},
		Admin: AdminConfig{
			Token:     strings.TrimSpace(getenv("INTAKE_ADMIN_TOKEN", "")),
			TokenHash: strings.TrimSpace(getenv("INTAKE_ADMIN_TOKEN_HASH", "")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Limits: RateLimitConfig{
			Enabled: getenvBool("RATE_LIMIT_ENABLED", true),
			Rate:    getenvFloat("RATE_LIMIT_RPS", 1),
			Burst:   getenvInt("RATE_LIMIT_BURST", 5),
		},
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "no-reply@blsuntech.com"),
			NotifyTo:     splitList(getenv("NOTIFY_EMAIL_TO", "")),
		},
		Webhook: WebhookConfig{
			ReplayInterval:    getenvDuration("WEBHOOK_REPLAY_INTERVAL", time.Minute),
			ReplayBatchSize:   getenvInt("WEBHOOK_REPLAY_BATCH_SIZE", 25),
			ReplayMaxAttempts: getenvInt("WEBHOOK_REPLAY_MAX_ATTEMPTS", 5),
		},
		DBType:            getenv("DATABASE_TYPE", "sqlite"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "blsuntech.db"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
	}

	if cfg.Stripe.WebhookSecret == "" {
		log.Printf("[config] STRIPE_WEBHOOK_SECRET is empty, webhook deliveries will be rejected")
	}

	return cfg
}

// IsProduction reports whether the service runs in a production environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// AdminConfigured reports whether any admin credential is set.
func (c Config) AdminConfigured() bool {
	return c.Admin.Token != "" || c.Admin.TokenHash != ""
}

func normalizeSource(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case CatalogSourceStripe, "live":
		return CatalogSourceStripe
	default:
		return CatalogSourceStatic
	}
}

func normalizeBasePath(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" || value == "/" {
		return ""
	}
	if !strings.HasPrefix(value, "/") {
		value = "/" + value
	}
	return strings.TrimRight(value, "/")
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
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

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
