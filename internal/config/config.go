package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// DefaultGraphAPIVersion is the Graph API version the client is tested against.
	DefaultGraphAPIVersion = "v13.0"
	// DefaultAPIBaseURL is the Graph API host used when no override is configured.
	DefaultAPIBaseURL = "https://graph.facebook.com"
)

// Config captures all runtime configuration for the WhatsApp Cloud client and
// the binaries built around it. Sections that a binary does not need are left
// zero-valued by the scoped loaders.
type Config struct {
	App           AppConfig
	Cloud         CloudConfig
	Kafka         KafkaConfig
	Topics        TopicConfig
	ConsumerGroup string
	Retry         RetryConfig
	Validation    ValidationConfig
	Timeouts      TimeoutConfig
	Webhook       WebhookConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

// CloudConfig holds the credentials and endpoint data for the Graph API. It is
// created once and shared read-only by every client operation.
type CloudConfig struct {
	AccessToken         string
	GraphAPIVersion     string
	SenderPhoneNumberID string
	BusinessAccountID   string
	APIBaseURL          string
}

// Version returns the configured Graph API version or the default.
func (c CloudConfig) Version() string {
	if v := strings.TrimSpace(c.GraphAPIVersion); v != "" {
		return v
	}
	return DefaultGraphAPIVersion
}

// VersionOverridden reports whether a non-default API version was requested.
func (c CloudConfig) VersionOverridden() bool {
	v := strings.TrimSpace(c.GraphAPIVersion)
	return v != "" && v != DefaultGraphAPIVersion
}

// APIRoot is the versioned Graph API root, e.g. https://graph.facebook.com/v13.0.
func (c CloudConfig) APIRoot() string {
	host := strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if host == "" {
		host = DefaultAPIBaseURL
	}
	return host + "/" + c.Version()
}

// BaseURL is the sender phone number endpoint all message calls are made against.
func (c CloudConfig) BaseURL() string {
	return c.APIRoot() + "/" + strings.TrimSpace(c.SenderPhoneNumberID)
}

// KafkaConfig defines broker information.
type KafkaConfig struct {
	Brokers []string
}

// TopicConfig enumerates the WhatsApp topics.
type TopicConfig struct {
	Request string
	Status  string
	DLQ     string
	Inbound string
}

// RetryConfig controls worker retry and backoff behaviour.
type RetryConfig struct {
	MaxAttempts         int
	BaseBackoffSeconds  int
	MaxBackoffSeconds   int
	WorkerConcurrency   int
	CommitOnSuccessOnly bool
}

// ValidationConfig holds the limits used while validating dispatch requests.
type ValidationConfig struct {
	MsgMaxBytes     int
	MetaMaxEntries  int
	MetaMaxKeyLen   int
	MetaMaxValueLen int
}

// TimeoutConfig contains timeout thresholds for outbound calls.
type TimeoutConfig struct {
	ProviderTimeoutSeconds int
}

// WebhookConfig configures the inbound webhook receiver.
type WebhookConfig struct {
	VerifyToken string
}

type scope int

const (
	scopeCloud scope = 1 << iota
	scopeWorker
	scopeWebhook
)

// LoadCloud loads the settings required to construct a Graph API client.
func LoadCloud() (*Config, error) {
	return load(scopeCloud)
}

// LoadWorker loads the client settings plus the Kafka dispatch worker settings.
func LoadWorker() (*Config, error) {
	return load(scopeCloud | scopeWorker)
}

// LoadWebhook loads the settings for the webhook receiver. Graph API
// credentials are not required since the receiver never calls the API.
func LoadWebhook() (*Config, error) {
	return load(scopeWebhook)
}

func load(s scope) (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}
	cfg := &Config{}

	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.Port = ldr.getInt("APP_PORT", 8080, false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	needCloud := s&scopeCloud != 0
	cfg.Cloud.AccessToken = ldr.getString("WHATSAPP_ACCESS_TOKEN", "", needCloud)
	cfg.Cloud.SenderPhoneNumberID = ldr.getString("WHATSAPP_SENDER_PHONE_NUMBER_ID", "", needCloud)
	cfg.Cloud.GraphAPIVersion = ldr.getString("WHATSAPP_GRAPH_API_VERSION", "", false)
	cfg.Cloud.BusinessAccountID = ldr.getString("WHATSAPP_BUSINESS_ACCOUNT_ID", "", false)
	cfg.Cloud.APIBaseURL = ldr.getString("WHATSAPP_API_BASE_URL", DefaultAPIBaseURL, false)

	cfg.Timeouts.ProviderTimeoutSeconds = ldr.getInt("PROVIDER_TIMEOUT_SECONDS", 30, false)

	if s&(scopeWorker|scopeWebhook) != 0 {
		cfg.Kafka.Brokers = ldr.getStringSlice("KAFKA_BROKERS", true)
	}

	if s&scopeWorker != 0 {
		cfg.Topics.Request = ldr.getString("KAFKA_WHATSAPP_REQUEST_TOPIC", "", true)
		cfg.Topics.Status = ldr.getString("KAFKA_WHATSAPP_STATUS_TOPIC", "", true)
		cfg.Topics.DLQ = ldr.getString("KAFKA_WHATSAPP_DLQ_TOPIC", "", true)
		cfg.ConsumerGroup = ldr.getString("WHATSAPP_CONSUMER_GROUP", "", true)

		cfg.Retry.MaxAttempts = ldr.getInt("MAX_ATTEMPTS", 3, false)
		cfg.Retry.BaseBackoffSeconds = ldr.getInt("BASE_BACKOFF_SECONDS", 10, false)
		cfg.Retry.MaxBackoffSeconds = ldr.getInt("MAX_BACKOFF_SECONDS", 120, false)
		cfg.Retry.WorkerConcurrency = ldr.getInt("WORKER_CONCURRENCY", 10, false)
		cfg.Retry.CommitOnSuccessOnly = ldr.getBool("COMMIT_ON_SUCCESS_ONLY", true, false)

		cfg.Validation.MsgMaxBytes = ldr.getInt("MSG_MAX_BYTES", 200000, false)
		cfg.Validation.MetaMaxEntries = ldr.getInt("META_MAX_ENTRIES", 20, false)
		cfg.Validation.MetaMaxKeyLen = ldr.getInt("META_MAX_KEY_LEN", 64, false)
		cfg.Validation.MetaMaxValueLen = ldr.getInt("META_MAX_VALUE_LEN", 256, false)
	}

	if s&scopeWebhook != 0 {
		cfg.Topics.Inbound = ldr.getString("KAFKA_WHATSAPP_INBOUND_TOPIC", "", true)
		cfg.Webhook.VerifyToken = ldr.getString("WEBHOOK_VERIFY_TOKEN", "", true)
	}

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) lookup(key string, required bool) (string, bool) {
	val, ok := os.LookupEnv(key)
	val = strings.TrimSpace(val)
	if !ok || val == "" {
		if required {
			l.addError(fmt.Sprintf("%s is required", key))
		}
		return "", false
	}
	return val, true
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := l.lookup(key, required); ok {
		return val
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	val, ok := l.lookup(key, required)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid integer", key))
		return def
	}
	return i
}

func (l *envLoader) getBool(key string, def bool, required bool) bool {
	val, ok := l.lookup(key, required)
	if !ok {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid boolean", key))
		return def
	}
	return parsed
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
