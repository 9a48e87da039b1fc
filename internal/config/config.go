// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the registration HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC health server listens on (e.g. :9090). Empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN for permanent entities, plans and the finalization ledger.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// DBMaxOpenConns and DBMaxIdleConns size the Postgres pool; DBConnMaxIdleTime is a duration (e.g. "5m").
	DBMaxOpenConns    int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns    int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxIdleTime string `mapstructure:"DB_CONN_MAX_IDLE_TIME"`
	// RedisAddr is the Redis address holding temporary registrations and slug reservations.
	// Empty falls back to the in-process store (single instance, development only).
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// JWTPrivateKey is the PEM-encoded private key (RSA, P-256 ECDSA or Ed25519) or a path to one.
	// Unset outside production, the server signs with an ephemeral key; unset in
	// production, Finalize issues no access token.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is optional; it defaults to the private key's public half.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// RegistrationTTL bounds the lifetime of an in-progress registration (e.g. "24h").
	RegistrationTTL string `mapstructure:"REGISTRATION_TTL"`
	// OTPTTL is the lifetime of one verification code (e.g. "10m").
	OTPTTL string `mapstructure:"OTP_TTL"`
	// OTPDigits is the code length (4–8).
	OTPDigits int `mapstructure:"OTP_DIGITS"`
	// OTPMaxAttempts is the number of wrong codes tolerated per challenge.
	OTPMaxAttempts int `mapstructure:"OTP_MAX_ATTEMPTS"`
	// OTPResendCooldown is the minimum delay between two sends (e.g. "60s").
	OTPResendCooldown string `mapstructure:"OTP_RESEND_COOLDOWN"`

	// SessionCookieName is the HTTP-only cookie carrying the registration reference.
	SessionCookieName string `mapstructure:"SESSION_COOKIE_NAME"`
	// SessionCookieSecure sets the Secure attribute; only disable for local plain-HTTP development.
	SessionCookieSecure bool   `mapstructure:"SESSION_COOKIE_SECURE"`
	SessionCookieDomain string `mapstructure:"SESSION_COOKIE_DOMAIN"`
	// CORSAllowedOrigins is a comma-separated list of origins allowed to call the API with credentials.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// SMSProvider selects the SMS gateway: "smslocal" or "twilio".
	SMSProvider string `mapstructure:"SMS_PROVIDER"`
	// SMSLocalAPIKey is the API key for SMS Local.
	SMSLocalAPIKey string `mapstructure:"SMS_LOCAL_API_KEY"`
	// SMSLocalSender is the optional sender ID for SMS Local.
	SMSLocalSender string `mapstructure:"SMS_LOCAL_SENDER"`
	// SMSLocalBaseURL is the SMS Local API base URL.
	SMSLocalBaseURL  string `mapstructure:"SMS_LOCAL_BASE_URL"`
	TwilioAccountSID string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `mapstructure:"TWILIO_FROM_NUMBER"`

	// SMTP settings for EMAIL verification codes.
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	// PaymentGatewayURL is the authorization endpoint of the card gateway. Empty uses the sandbox authorizer.
	PaymentGatewayURL string `mapstructure:"PAYMENT_GATEWAY_URL"`
	PaymentGatewayKey string `mapstructure:"PAYMENT_GATEWAY_KEY"`

	// SignupPolicyFile optionally adds Rego modules to the signup policy (package onboarding.signup).
	SignupPolicyFile string `mapstructure:"SIGNUP_POLICY_FILE"`
	// SignupBlockedEmailDomains is a comma-separated list of email domains refused at FORM.
	SignupBlockedEmailDomains string `mapstructure:"SIGNUP_BLOCKED_EMAIL_DOMAINS"`

	// InterviewQuestionsFile optionally overrides the embedded interview catalog (YAML).
	InterviewQuestionsFile string `mapstructure:"INTERVIEW_QUESTIONS_FILE"`

	// OTPReturnToClient when true enables dev OTP mode: codes are not dispatched, they are stored for GET /dev/otp.
	// Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// Telemetry (optional). When Kafka brokers are set, registration funnel events are emitted to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for funnel events.
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
	// OTelEndpoint is the OTLP gRPC collector endpoint (e.g. localhost:4317). Empty disables OTel export.
	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// OTelSampleRatio is the share of new traces sampled; 0 or 1 samples everything.
	OTelSampleRatio float64 `mapstructure:"OTEL_TRACES_SAMPLE_RATIO"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", "5m")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "onboarding")
	v.SetDefault("JWT_AUDIENCE", "app")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("REGISTRATION_TTL", "24h")
	v.SetDefault("OTP_TTL", "10m")
	v.SetDefault("OTP_DIGITS", 6)
	v.SetDefault("OTP_MAX_ATTEMPTS", 3)
	v.SetDefault("OTP_RESEND_COOLDOWN", "60s")
	v.SetDefault("SESSION_COOKIE_NAME", "reg_session")
	v.SetDefault("SESSION_COOKIE_SECURE", true)
	v.SetDefault("SESSION_COOKIE_DOMAIN", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("SMS_PROVIDER", "smslocal")
	v.SetDefault("SMS_LOCAL_API_KEY", "")
	v.SetDefault("SMS_LOCAL_SENDER", "")
	v.SetDefault("SMS_LOCAL_BASE_URL", "https://app.smslocal.in/api/smsapi")
	v.SetDefault("TWILIO_ACCOUNT_SID", "")
	v.SetDefault("TWILIO_AUTH_TOKEN", "")
	v.SetDefault("TWILIO_FROM_NUMBER", "")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("PAYMENT_GATEWAY_URL", "")
	v.SetDefault("PAYMENT_GATEWAY_KEY", "")
	v.SetDefault("SIGNUP_POLICY_FILE", "")
	v.SetDefault("SIGNUP_BLOCKED_EMAIL_DOMAINS", "")
	v.SetDefault("INTERVIEW_QUESTIONS_FILE", "")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "registration-events")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	v.SetDefault("OTEL_TRACES_SAMPLE_RATIO", 1.0)
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "registration-events-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}
	if cfg.Env == "production" && (cfg.DatabaseURL == "" || cfg.RedisAddr == "") {
		return nil, errors.New("config: DATABASE_URL and REDIS_ADDR must be set when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.OTPDigits < 4 || cfg.OTPDigits > 8 {
		return nil, errors.New("config: OTP_DIGITS must be between 4 and 8")
	}
	if cfg.OTPMaxAttempts < 1 {
		return nil, errors.New("config: OTP_MAX_ATTEMPTS must be at least 1")
	}
	switch cfg.SMSProvider {
	case "smslocal", "twilio":
	default:
		return nil, errors.New("config: SMS_PROVIDER must be smslocal or twilio")
	}
	if cfg.SessionCookieName == "" {
		return nil, errors.New("config: SESSION_COOKIE_NAME must be set")
	}
	if (cfg.JWTPrivateKey == "") != (cfg.JWTPublicKey == "") {
		return nil, errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 15*time.Minute)
}

// RegistrationLifetime parses RegistrationTTL. Returns 24h if unset or invalid.
func (c *Config) RegistrationLifetime() time.Duration {
	return parseDuration(c.RegistrationTTL, 24*time.Hour)
}

// OTPLifetime parses OTPTTL. Returns 10m if unset or invalid.
func (c *Config) OTPLifetime() time.Duration {
	return parseDuration(c.OTPTTL, 10*time.Minute)
}

// ResendCooldown parses OTPResendCooldown. Returns 60s if unset or invalid.
func (c *Config) ResendCooldown() time.Duration {
	return parseDuration(c.OTPResendCooldown, 60*time.Second)
}

// DBIdleTime parses DBConnMaxIdleTime. Returns 5m if unset or invalid.
func (c *Config) DBIdleTime() time.Duration {
	return parseDuration(c.DBConnMaxIdleTime, 5*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TelemetryKafkaBrokers)
}

// CORSOrigins returns the configured CORS origins.
func (c *Config) CORSOrigins() []string {
	if c == nil {
		return nil
	}
	return splitList(c.CORSAllowedOrigins)
}

// BlockedEmailDomains returns the configured blocked signup email domains.
func (c *Config) BlockedEmailDomains() []string {
	if c == nil {
		return nil
	}
	return splitList(c.SignupBlockedEmailDomains)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
