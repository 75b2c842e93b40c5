package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/whatsapp-messaging/pkg/whatsapp"
)

// Config captures the runtime configuration shared by the worker and the
// send CLI.
type Config struct {
	App      AppConfig
	WhatsApp WhatsAppConfig
	Kafka    KafkaConfig
	Worker   WorkerConfig
	Metrics  MetricsConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	LogLevel string
}

// WhatsAppConfig holds the Cloud API credentials and endpoint overrides.
type WhatsAppConfig struct {
	PhoneNumberID  string
	AccessToken    string
	BaseURL        string
	APIVersion     string
	Debug          bool
	TimeoutSeconds int
}

// KafkaConfig defines brokers, topics and the consumer group of the worker.
type KafkaConfig struct {
	Brokers             []string
	RequestTopic        string
	StatusTopic         string
	DLQTopic            string
	ConsumerGroup       string
	CommitOnSuccessOnly bool
}

// WorkerConfig controls dispatcher concurrency and payload limits.
type WorkerConfig struct {
	Concurrency     int
	MsgMaxBytes     int
	TextBodyMax     int
	MetaMaxEntries  int
	MetaMaxKeyLen   int
	MetaMaxValueLen int
}

// MetricsConfig configures the prometheus listener.
type MetricsConfig struct {
	Addr string
}

// Load reads environment variables (after an optional .env file), applies
// defaults, validates required values and returns a populated Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.WhatsApp.PhoneNumberID = ldr.getString("WHATSAPP_PHONE_NUMBER_ID", "", true)
	cfg.WhatsApp.AccessToken = ldr.getString("WHATSAPP_ACCESS_TOKEN", "", true)
	cfg.WhatsApp.BaseURL = ldr.getString("WHATSAPP_BASE_URL", whatsapp.DefaultBaseURL, false)
	cfg.WhatsApp.APIVersion = ldr.getString("WHATSAPP_API_VERSION", string(whatsapp.DefaultAPIVersion), false)
	cfg.WhatsApp.Debug = ldr.getBool("WHATSAPP_DEBUG", false, false)
	cfg.WhatsApp.TimeoutSeconds = ldr.getInt("WHATSAPP_TIMEOUT_SECONDS", int(whatsapp.DefaultTimeout/time.Second), false)

	cfg.Kafka.Brokers = ldr.getStringSlice("KAFKA_BROKERS", false)
	cfg.Kafka.RequestTopic = ldr.getString("KAFKA_WHATSAPP_REQUEST_TOPIC", "whatsapp.request", false)
	cfg.Kafka.StatusTopic = ldr.getString("KAFKA_WHATSAPP_STATUS_TOPIC", "whatsapp.status", false)
	cfg.Kafka.DLQTopic = ldr.getString("KAFKA_WHATSAPP_DLQ_TOPIC", "whatsapp.dlq", false)
	cfg.Kafka.ConsumerGroup = ldr.getString("WHATSAPP_CONSUMER_GROUP", "whatsapp-worker", false)
	cfg.Kafka.CommitOnSuccessOnly = ldr.getBool("COMMIT_ON_SUCCESS_ONLY", true, false)

	cfg.Worker.Concurrency = ldr.getInt("WORKER_CONCURRENCY", 10, false)
	cfg.Worker.MsgMaxBytes = ldr.getInt("MSG_MAX_BYTES", 200000, false)
	cfg.Worker.TextBodyMax = ldr.getInt("WA_BODY_MAX", 4096, false)
	cfg.Worker.MetaMaxEntries = ldr.getInt("META_MAX_ENTRIES", 20, false)
	cfg.Worker.MetaMaxKeyLen = ldr.getInt("META_MAX_KEY_LEN", 64, false)
	cfg.Worker.MetaMaxValueLen = ldr.getInt("META_MAX_VALUE_LEN", 256, false)

	cfg.Metrics.Addr = ldr.getString("METRICS_ADDR", ":9090", false)

	if cfg.WhatsApp.TimeoutSeconds <= 0 {
		ldr.addError("WHATSAPP_TIMEOUT_SECONDS must be positive")
	}
	if cfg.Worker.Concurrency < 1 {
		ldr.addError("WORKER_CONCURRENCY must be >= 1")
	}

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateWorker checks the settings only the Kafka worker needs.
func (c *Config) ValidateWorker() error {
	ldr := &envLoader{}
	if len(c.Kafka.Brokers) == 0 {
		ldr.addError("KAFKA_BROKERS is required")
	}
	if c.Kafka.RequestTopic == "" {
		ldr.addError("KAFKA_WHATSAPP_REQUEST_TOPIC is required")
	}
	if c.Kafka.StatusTopic == "" {
		ldr.addError("KAFKA_WHATSAPP_STATUS_TOPIC is required")
	}
	if c.Kafka.DLQTopic == "" {
		ldr.addError("KAFKA_WHATSAPP_DLQ_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		ldr.addError("WHATSAPP_CONSUMER_GROUP is required")
	}
	return ldr.validate()
}

// Timeout returns the per-request HTTP timeout.
func (w WhatsAppConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
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
	val, ok := l.lookup(key, required)
	if !ok {
		return def
	}
	return val
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
		p = strings.TrimSpace(p)
		if p != "" {
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
