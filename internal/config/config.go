package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppURL  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret string
	JWTExpiry time.Duration

	// Google Drive OAuth
	GoogleClientID     string
	GoogleClientSecret string

	// Microsoft / SharePoint OAuth
	MicrosoftClientID     string
	MicrosoftClientSecret string

	// Provider API endpoints (overridable for local stubs)
	GoogleDriveBaseURL  string
	GoogleUploadBaseURL string
	GoogleTokenURL      string
	GoogleSlidesBaseURL string
	GraphBaseURL        string
	MicrosoftTokenURL   string

	// Automation engine (n8n or compatible)
	AutomationWebhookURL    string
	AutomationAPIKey        string
	AutomationSigningSecret string // optional Standard Webhooks secret

	// Email (report notifications)
	EmailFrom    string
	ResendAPIKey string

	// Observability (optional)
	SentryDSN string

	// Avatar storage (S3-compatible: MinIO, AWS S3, R2, etc.), optional
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3Endpoint      string
	S3PresignExpiry time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		AppName: envString("APP_NAME", "ReportDeck"),
		AppEnv:  envRequired("APP_ENV"), // 'development' or 'production'
		AppURL:  envRequired("APP_URL"), // base URL for OAuth redirects and the webhook callback
		Port:    envString("PORT", "8090"),

		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/reportdeck.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),

		JWTSecret: envRequired("JWT_SECRET"),
		JWTExpiry: envDuration("JWT_EXPIRY", 168*time.Hour), // 7 days

		GoogleClientID:     envString("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: envString("GOOGLE_CLIENT_SECRET", ""),

		MicrosoftClientID:     envString("MICROSOFT_CLIENT_ID", ""),
		MicrosoftClientSecret: envString("MICROSOFT_CLIENT_SECRET", ""),

		GoogleDriveBaseURL:  envString("GOOGLE_DRIVE_BASE_URL", "https://www.googleapis.com"),
		GoogleUploadBaseURL: envString("GOOGLE_UPLOAD_BASE_URL", "https://www.googleapis.com"),
		GoogleTokenURL:      envString("GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		GoogleSlidesBaseURL: envString("GOOGLE_SLIDES_BASE_URL", "https://slides.googleapis.com"),
		GraphBaseURL:        envString("GRAPH_BASE_URL", "https://graph.microsoft.com"),
		MicrosoftTokenURL:   envString("MICROSOFT_TOKEN_URL", "https://login.microsoftonline.com/common/oauth2/v2.0/token"),

		AutomationWebhookURL:    envString("AUTOMATION_WEBHOOK_URL", ""),
		AutomationAPIKey:        envString("AUTOMATION_API_KEY", ""),
		AutomationSigningSecret: envString("AUTOMATION_SIGNING_SECRET", ""),

		EmailFrom:    envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),

		SentryDSN: envString("SENTRY_DSN", ""),

		S3Region:        envString("S3_REGION", ""),
		S3Bucket:        envString("S3_BUCKET", ""),
		S3AccessKey:     envString("S3_ACCESS_KEY", ""),
		S3SecretKey:     envString("S3_SECRET_KEY", ""),
		S3Endpoint:      envString("S3_ENDPOINT", ""),
		S3PresignExpiry: envDuration("S3_PRESIGN_EXPIRY", 168*time.Hour),
	}

	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures required services are configured for production
// deployments. Development allows local stubs and empty credentials.
func validateProduction(cfg *Config) {
	if cfg.AutomationWebhookURL == "" {
		slog.Error("production deployment requires AUTOMATION_WEBHOOK_URL")
		os.Exit(1)
	}
	if cfg.AutomationAPIKey == "" {
		slog.Error("production deployment requires AUTOMATION_API_KEY")
		os.Exit(1)
	}
	if cfg.GoogleClientID == "" && cfg.MicrosoftClientID == "" {
		slog.Error("production deployment requires at least one storage provider",
			"hint", "set GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET or MICROSOFT_CLIENT_ID/MICROSOFT_CLIENT_SECRET")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// HasAvatarStorage reports whether S3-compatible storage is configured.
// Avatar endpoints are disabled without it.
func (c *Config) HasAvatarStorage() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}
