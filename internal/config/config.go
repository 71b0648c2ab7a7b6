package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported values for MAIL_PROVIDER.
const (
	ProviderSES  = "ses"
	ProviderSMTP = "smtp"
	ProviderMock = "mock"
)

// Config captures all runtime configuration for the contact relay. It is read
// once at cold start and passed by value into the components that need it.
type Config struct {
	App        AppConfig
	Mail       MailConfig
	AWS        AWSConfig
	SMTP       SMTPConfig
	Mock       MockConfig
	Challenge  ChallengeConfig
	Validation ValidationConfig
	Timeouts   TimeoutConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

// MailConfig describes the fixed envelope of every relayed message.
type MailConfig struct {
	// From is the sender display address, e.g. "Website <cloud@my.domain>".
	// It must be a verified identity with the selected provider.
	From     string
	To       string
	Provider string
}

// AWSConfig holds the settings used by the SES provider.
type AWSConfig struct {
	Region string
}

// SMTPConfig stores SMTP credentials for the smtp provider backend.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
}

// MockConfig drives the in-memory provider used for local runs.
type MockConfig struct {
	Scenario      string
	LatencyMillis int
}

// ChallengeConfig controls proof-of-work challenge issuance.
type ChallengeConfig struct {
	HMACKey   string
	MaxNumber int64
	Expires   time.Duration
}

// ValidationConfig holds the limits applied to outbound messages.
type ValidationConfig struct {
	SubjectMaxLen int
	BodyMaxBytes  int
}

// TimeoutConfig contains timeout thresholds for outbound providers.
type TimeoutConfig struct {
	ProviderTimeoutSeconds int
}

// ProviderTimeout returns the configured provider timeout as a duration.
func (t TimeoutConfig) ProviderTimeout() time.Duration {
	return time.Duration(t.ProviderTimeoutSeconds) * time.Second
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "production", false)
	cfg.App.Port = ldr.getInt("APP_PORT", 8080, false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.Mail.From = ldr.getString("MAIL_FROM", "", true)
	cfg.Mail.To = ldr.getString("MAIL_TO", "", true)
	cfg.Mail.Provider = strings.ToLower(ldr.getString("MAIL_PROVIDER", ProviderSES, false))

	switch cfg.Mail.Provider {
	case ProviderSES:
		cfg.AWS.Region = ldr.getString("AWS_REGION", "", true)
	case ProviderSMTP:
		cfg.AWS.Region = ldr.getString("AWS_REGION", "", false)
		cfg.SMTP.Host = ldr.getString("SMTP_HOST", "", true)
		cfg.SMTP.Port = ldr.getInt("SMTP_PORT", 0, true)
	case ProviderMock:
		cfg.AWS.Region = ldr.getString("AWS_REGION", "", false)
	default:
		ldr.addError(fmt.Sprintf("MAIL_PROVIDER %q is not supported", cfg.Mail.Provider))
	}
	if cfg.Mail.Provider != ProviderSMTP {
		cfg.SMTP.Host = ldr.getString("SMTP_HOST", "", false)
		cfg.SMTP.Port = ldr.getInt("SMTP_PORT", 0, false)
	}
	cfg.SMTP.User = ldr.getString("SMTP_USER", "", false)
	cfg.SMTP.Pass = ldr.getString("SMTP_PASS", "", false)

	cfg.Mock.Scenario = strings.ToLower(ldr.getString("MOCK_SCENARIO", "success", false))
	cfg.Mock.LatencyMillis = ldr.getInt("MOCK_LATENCY_MS", 0, false)

	cfg.Challenge.HMACKey = ldr.getString("ALTCHA_HMAC_KEY", "", true)
	cfg.Challenge.MaxNumber = int64(ldr.getPositiveInt("ALTCHA_MAX_NUMBER", 100000))
	cfg.Challenge.Expires = time.Duration(ldr.getPositiveInt("ALTCHA_EXPIRES_SECONDS", 600)) * time.Second

	cfg.Validation.SubjectMaxLen = ldr.getInt("SUBJECT_MAX_LEN", 255, false)
	cfg.Validation.BodyMaxBytes = ldr.getInt("BODY_MAX_BYTES", 100000, false)

	cfg.Timeouts.ProviderTimeoutSeconds = ldr.getInt("PROVIDER_TIMEOUT_SECONDS", 10, false)

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
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val != "" {
			return val, true
		}
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return "", false
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

func (l *envLoader) getPositiveInt(key string, def int) int {
	i := l.getInt(key, def, false)
	if i <= 0 {
		l.addError(fmt.Sprintf("%s must be greater than zero", key))
		return def
	}
	return i
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
