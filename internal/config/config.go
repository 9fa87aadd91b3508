package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort      string
	AppEnv       string
	AppURL       string // public base URL, used for OAuth redirects and magic links
	DashboardURL string // where processor OAuth callbacks land the user after success

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	// Verification engine.
	VerifyStore          string // "memory" | "redis" | "dynamo"
	VerifyCodeTTL        time.Duration
	VerifyResendCooldown time.Duration
	VerifySilentConflict bool // swallow issuance to addresses verified elsewhere (anti-enumeration)
	MagicLinkTTL         time.Duration

	RedisAddr     string
	RedisPassword string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration
	RefreshTokenDur   time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion      string
	SMSSendTimeout time.Duration

	GoogleClientID string

	MercadoPagoClientID     string
	MercadoPagoClientSecret string
	StripeClientID          string
	StripeClientSecret      string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users           string
	Sessions        string
	Verifications   string
	PaymentAccounts string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:      getEnv("APP_PORT", "3000"),
		AppEnv:       getEnv("APP_ENV", "development"),
		AppURL:       getEnv("APP_URL", "http://localhost:3000"),
		DashboardURL: getEnv("DASHBOARD_URL", "http://localhost:3000/dashboard"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:           getEnv("DYNAMO_TABLE_USERS", "users"),
			Sessions:        getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			Verifications:   getEnv("DYNAMO_TABLE_VERIFICATIONS", "verifications"),
			PaymentAccounts: getEnv("DYNAMO_TABLE_PAYMENT_ACCOUNTS", "payment_accounts"),
		},

		VerifyStore:          getEnv("VERIFY_STORE", "memory"),
		VerifyCodeTTL:        getEnvDuration("VERIFY_CODE_TTL", 5*time.Minute),
		VerifyResendCooldown: getEnvDuration("VERIFY_RESEND_COOLDOWN", 60*time.Second),
		VerifySilentConflict: getEnvBool("VERIFY_SILENT_CONFLICT", true),
		MagicLinkTTL:         getEnvDuration("MAGIC_LINK_TTL", 24*time.Hour),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 7*24*time.Hour),
		RefreshTokenDur:   getEnvDuration("REFRESH_TOKEN_EXPIRY", 30*24*time.Hour),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@hunt-tickets.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion:      getEnv("SNS_REGION", "us-east-1"),
		SMSSendTimeout: getEnvDuration("SMS_SEND_TIMEOUT", 5*time.Second),

		GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),

		MercadoPagoClientID:     getEnv("MERCADOPAGO_CLIENT_ID", ""),
		MercadoPagoClientSecret: getEnv("MERCADOPAGO_CLIENT_SECRET", ""),
		StripeClientID:          getEnv("STRIPE_CLIENT_ID", ""),
		StripeClientSecret:      getEnv("STRIPE_CLIENT_SECRET", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
