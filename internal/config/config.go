package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Auth
		Identity
		Mail
		Tasks
		Scheduler
		Audit
		Logging
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		AppName                  string
		Environment              string
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Auth struct {
		SessionSecret   string
		SessionLifetime time.Duration
		SecureCookies   bool // Set to false for local dev without HTTPS

		MaxLoginAttempts int           // Failed attempts per IP+email before lockout
		RateLimitWindow  time.Duration // Window for counting failed attempts
		LockoutDuration  time.Duration
	}
	// Identity configures the token authority that issues role-bearing ID tokens.
	Identity struct {
		TokenSecret string
		Issuer      string
		TokenTTL    time.Duration
		ResetTTL    time.Duration
		BcryptCost  int
	}
	Mail struct {
		Provider        string // "console" or "sendgrid"
		SendGridAPIKey  string
		FromAddress     string
		FromName        string
		FrontendBaseURL string // Used to build password reset links
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Scheduler struct {
		Enabled            bool
		ResetPurgeSchedule string // Cron format
		EventSweepSchedule string
		AuditPurgeSchedule string
	}
	Audit struct {
		Retention time.Duration
	}
	Logging struct {
		Level        string
		Pretty       bool
		RollbarToken string
	}
)

func NewConfig() *Config {
	// A missing .env is the normal case in production.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8080)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("app_name", "Mark It")
	v.SetDefault("environment", "development")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Browser session defaults
	v.SetDefault("auth_session_secret", "")
	v.SetDefault("auth_session_lifetime", "24h")
	v.SetDefault("auth_secure_cookies", true)
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "30m")

	// Token authority defaults
	v.SetDefault("identity_token_secret", "")
	v.SetDefault("identity_issuer", DefaultIssuer)
	v.SetDefault("identity_token_ttl", "1h")
	v.SetDefault("identity_reset_ttl", "1h")
	v.SetDefault("identity_bcrypt_cost", 12)

	v.SetDefault("mail_provider", "console")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("mail_from_address", "no-reply@markit.local")
	v.SetDefault("mail_from_name", "Mark It")
	v.SetDefault("frontend_base_url", "http://localhost:8080")

	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	v.SetDefault("scheduler_enabled", true)
	v.SetDefault("reset_purge_schedule", "*/30 * * * *")
	v.SetDefault("event_sweep_schedule", "*/10 * * * *")
	v.SetDefault("audit_purge_schedule", "0 3 * * *")
	v.SetDefault("audit_retention", "2160h")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("rollbar_token", "")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			AppName:                  v.GetString("APP_NAME"),
			Environment:              v.GetString("ENVIRONMENT"),
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Auth: Auth{
			SessionSecret:    v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime:  v.GetDuration("AUTH_SESSION_LIFETIME"),
			SecureCookies:    v.GetBool("AUTH_SECURE_COOKIES"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:  v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:  v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Identity: Identity{
			TokenSecret: v.GetString("IDENTITY_TOKEN_SECRET"),
			Issuer:      v.GetString("IDENTITY_ISSUER"),
			TokenTTL:    v.GetDuration("IDENTITY_TOKEN_TTL"),
			ResetTTL:    v.GetDuration("IDENTITY_RESET_TTL"),
			BcryptCost:  v.GetInt("IDENTITY_BCRYPT_COST"),
		},
		Mail: Mail{
			Provider:        v.GetString("MAIL_PROVIDER"),
			SendGridAPIKey:  v.GetString("SENDGRID_API_KEY"),
			FromAddress:     v.GetString("MAIL_FROM_ADDRESS"),
			FromName:        v.GetString("MAIL_FROM_NAME"),
			FrontendBaseURL: v.GetString("FRONTEND_BASE_URL"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Scheduler: Scheduler{
			Enabled:            v.GetBool("SCHEDULER_ENABLED"),
			ResetPurgeSchedule: v.GetString("RESET_PURGE_SCHEDULE"),
			EventSweepSchedule: v.GetString("EVENT_SWEEP_SCHEDULE"),
			AuditPurgeSchedule: v.GetString("AUDIT_PURGE_SCHEDULE"),
		},
		Audit: Audit{
			Retention: v.GetDuration("AUDIT_RETENTION"),
		},
		Logging: Logging{
			Level:        v.GetString("LOG_LEVEL"),
			Pretty:       v.GetBool("LOG_PRETTY"),
			RollbarToken: v.GetString("ROLLBAR_TOKEN"),
		},
	}
}
