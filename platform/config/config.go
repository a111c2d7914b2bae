// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// SchedulerConfig provides settings for the asynq-backed scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// CallGatewayConfig provides settings for the outbound call gateway.
type CallGatewayConfig interface {
	GetCallGatewayURL() string
	GetCallGatewayAPIKey() string
	GetCallAssistantID() string
	GetCallerNumber() string
	GetCallRatePerSecond() float64
	IsCallGatewayEnabled() bool
}

// WhatsAppConfig provides settings for WhatsApp message delivery.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppAPIKey() string
	GetWhatsAppSender() string
	IsWhatsAppEnabled() bool
}

// EmailConfig provides settings for outbound email sending.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// IMAPConfig provides settings for polling inbound email replies.
type IMAPConfig interface {
	GetIMAPHost() string
	GetIMAPPort() int
	GetIMAPUsername() string
	GetIMAPPassword() string
	GetIMAPFolder() string
	GetIMAPPollInterval() time.Duration
	IsIMAPEnabled() bool
}

// EngagementConfig provides settings for the engagement state machine.
type EngagementConfig interface {
	GetMaxCallAttempts() int
	GetRetryDelays() []time.Duration
	GetTickInterval() time.Duration
	GetReconcileInterval() time.Duration
	GetInFlightTimeout() time.Duration
	GetCallbackMaxHorizon() time.Duration
	GetEngagementPolicyFile() string
}

// BatchConfig provides settings for batch wave dispatching.
type BatchConfig interface {
	GetWaveSizeMin() int
	GetWaveSizeMax() int
	GetWavePacingDefault() time.Duration
}

// WebhookConfig provides settings for webhook authentication.
type WebhookConfig interface {
	GetWebhookSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetMetricsAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOBucketCallArtifacts() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	MetricsAddr              string
	DatabaseURL              string
	RedisURL                 string
	RedisTLSInsecure         bool
	AsynqQueueName           string
	AsynqConcurrency         int
	CORSAllowAll             bool
	CORSOrigins              []string
	CORSAllowCreds           bool
	WebhookSecret            string
	CallGatewayURL           string
	CallGatewayAPIKey        string
	CallAssistantID          string
	CallerNumber             string
	CallRatePerSecond        float64
	WhatsAppURL              string
	WhatsAppAPIKey           string
	WhatsAppSender           string
	SMTPHost                 string
	SMTPPort                 int
	SMTPUsername             string
	SMTPPassword             string
	EmailEnabled             bool
	EmailFromName            string
	EmailFromAddress         string
	IMAPHost                 string
	IMAPPort                 int
	IMAPUsername             string
	IMAPPassword             string
	IMAPFolder               string
	IMAPPollInterval         time.Duration
	MaxCallAttempts          int
	RetryDelays              []time.Duration
	TickInterval             time.Duration
	ReconcileInterval        time.Duration
	InFlightTimeout          time.Duration
	CallbackMaxHorizon       time.Duration
	EngagementPolicyFile     string
	WaveSizeMin              int
	WaveSizeMax              int
	WavePacingDefault        time.Duration
	MinIOEndpoint            string
	MinIOAccessKey           string
	MinIOSecretKey           string
	MinIOUseSSL              bool
	MinioBucketCallArtifacts string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// CallGatewayConfig implementation
func (c *Config) GetCallGatewayURL() string      { return c.CallGatewayURL }
func (c *Config) GetCallGatewayAPIKey() string   { return c.CallGatewayAPIKey }
func (c *Config) GetCallAssistantID() string     { return c.CallAssistantID }
func (c *Config) GetCallerNumber() string        { return c.CallerNumber }
func (c *Config) GetCallRatePerSecond() float64  { return c.CallRatePerSecond }
func (c *Config) IsCallGatewayEnabled() bool     { return c.CallGatewayURL != "" && c.CallGatewayAPIKey != "" }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string    { return c.WhatsAppURL }
func (c *Config) GetWhatsAppAPIKey() string { return c.WhatsAppAPIKey }
func (c *Config) GetWhatsAppSender() string { return c.WhatsAppSender }
func (c *Config) IsWhatsAppEnabled() bool   { return c.WhatsAppURL != "" }

// EmailConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsEmailEnabled() bool        { return c.EmailEnabled }

// IMAPConfig implementation
func (c *Config) GetIMAPHost() string                { return c.IMAPHost }
func (c *Config) GetIMAPPort() int                   { return c.IMAPPort }
func (c *Config) GetIMAPUsername() string            { return c.IMAPUsername }
func (c *Config) GetIMAPPassword() string            { return c.IMAPPassword }
func (c *Config) GetIMAPFolder() string              { return c.IMAPFolder }
func (c *Config) GetIMAPPollInterval() time.Duration { return c.IMAPPollInterval }
func (c *Config) IsIMAPEnabled() bool                { return c.IMAPHost != "" && c.IMAPUsername != "" }

// EngagementConfig implementation
func (c *Config) GetMaxCallAttempts() int               { return c.MaxCallAttempts }
func (c *Config) GetRetryDelays() []time.Duration       { return c.RetryDelays }
func (c *Config) GetTickInterval() time.Duration        { return c.TickInterval }
func (c *Config) GetReconcileInterval() time.Duration   { return c.ReconcileInterval }
func (c *Config) GetInFlightTimeout() time.Duration     { return c.InFlightTimeout }
func (c *Config) GetCallbackMaxHorizon() time.Duration  { return c.CallbackMaxHorizon }
func (c *Config) GetEngagementPolicyFile() string       { return c.EngagementPolicyFile }

// BatchConfig implementation
func (c *Config) GetWaveSizeMin() int                  { return c.WaveSizeMin }
func (c *Config) GetWaveSizeMax() int                  { return c.WaveSizeMax }
func (c *Config) GetWavePacingDefault() time.Duration  { return c.WavePacingDefault }

// WebhookConfig implementation
func (c *Config) GetWebhookSecret() string { return c.WebhookSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetMetricsAddr() string   { return c.MetricsAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string            { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string           { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string           { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool                { return c.MinIOUseSSL }
func (c *Config) GetMinIOBucketCallArtifacts() string { return c.MinioBucketCallArtifacts }
func (c *Config) IsMinIOEnabled() bool                { return c.MinIOEndpoint != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	retryDelays, err := parseDurationsCSV(getEnv("RETRY_DELAYS", "2m,4m,6m"))
	if err != nil {
		return nil, fmt.Errorf("RETRY_DELAYS: %w", err)
	}

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:              getEnv("METRICS_ADDR", ":9100"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		RedisURL:                 getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure:         getEnv("REDIS_TLS_INSECURE", "false") == "true",
		AsynqQueueName:           getEnv("ASYNQ_QUEUE", "engagement"),
		AsynqConcurrency:         mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		CORSAllowAll:             corsAllowAll,
		CORSOrigins:              corsOrigins,
		CORSAllowCreds:           strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		WebhookSecret:            getEnv("WEBHOOK_SECRET", ""),
		CallGatewayURL:           getEnv("CALL_GATEWAY_URL", ""),
		CallGatewayAPIKey:        getEnv("CALL_GATEWAY_API_KEY", ""),
		CallAssistantID:          getEnv("CALL_ASSISTANT_ID", ""),
		CallerNumber:             getEnv("CALLER_NUMBER", ""),
		CallRatePerSecond:        mustFloat(getEnv("CALL_RATE_PER_SECOND", "2")),
		WhatsAppURL:              getEnv("WHATSAPP_API_URL", ""),
		WhatsAppAPIKey:           getEnv("WHATSAPP_API_KEY", ""),
		WhatsAppSender:           getEnv("WHATSAPP_SENDER", ""),
		SMTPHost:                 getEnv("SMTP_HOST", ""),
		SMTPPort:                 mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:             getEnv("SMTP_USERNAME", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
		EmailEnabled:             strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true"),
		EmailFromName:            getEnv("EMAIL_FROM_NAME", "Presales"),
		EmailFromAddress:         getEnv("EMAIL_FROM_ADDRESS", ""),
		IMAPHost:                 getEnv("IMAP_HOST", ""),
		IMAPPort:                 mustInt(getEnv("IMAP_PORT", "993")),
		IMAPUsername:             getEnv("IMAP_USERNAME", ""),
		IMAPPassword:             getEnv("IMAP_PASSWORD", ""),
		IMAPFolder:               getEnv("IMAP_FOLDER", "INBOX"),
		IMAPPollInterval:         mustDuration(getEnv("IMAP_POLL_INTERVAL", "1m")),
		MaxCallAttempts:          mustInt(getEnv("MAX_CALL_ATTEMPTS", "3")),
		RetryDelays:              retryDelays,
		TickInterval:             mustDuration(getEnv("TICK_INTERVAL", "15s")),
		ReconcileInterval:        mustDuration(getEnv("RECONCILE_INTERVAL", "2m")),
		InFlightTimeout:          mustDuration(getEnv("IN_FLIGHT_TIMEOUT", "10m")),
		CallbackMaxHorizon:       mustDuration(getEnv("CALLBACK_MAX_HORIZON", "168h")),
		EngagementPolicyFile:     getEnv("ENGAGEMENT_POLICY_FILE", ""),
		WaveSizeMin:              mustInt(getEnv("WAVE_SIZE_MIN", "1")),
		WaveSizeMax:              mustInt(getEnv("WAVE_SIZE_MAX", "50")),
		WavePacingDefault:        mustDuration(getEnv("WAVE_PACING_DEFAULT", "30s")),
		MinIOEndpoint:            getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:           getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:           getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:              strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketCallArtifacts: getEnv("MINIO_BUCKET_CALL_ARTIFACTS", "call-artifacts"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.MaxCallAttempts < 1 {
		return nil, fmt.Errorf("MAX_CALL_ATTEMPTS must be at least 1")
	}
	if len(cfg.RetryDelays) == 0 {
		return nil, fmt.Errorf("RETRY_DELAYS must contain at least one delay")
	}
	if cfg.WaveSizeMin < 1 || cfg.WaveSizeMax < cfg.WaveSizeMin {
		return nil, fmt.Errorf("WAVE_SIZE_MIN/WAVE_SIZE_MAX must satisfy 1 <= min <= max")
	}
	if cfg.EmailEnabled && cfg.SMTPHost != "" && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func parseDurationsCSV(value string) ([]time.Duration, error) {
	parts := splitCSV(value)
	results := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q", part)
		}
		if d <= 0 {
			return nil, fmt.Errorf("duration %q must be positive", part)
		}
		results = append(results, d)
	}
	return results, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
