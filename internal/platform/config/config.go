package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"
	DefaultRelayURL  = "https://keap.app/app/form/process"
	DefaultOrigin    = "https://mikeweinberg.com"
)

// Config holds runtime configuration loaded from environment variables and an
// optional YAML file. It is read-only once Load returns.
type Config struct {
	Port              string `yaml:"port"`
	GinMode           string `yaml:"gin_mode"`
	LogLevel          string `yaml:"log_level"`
	AllowedOrigins    string `yaml:"allowed_origins"`
	ExposeDiagnostics bool   `yaml:"expose_diagnostics"`

	Recaptcha RecaptchaConfig `yaml:"recaptcha"`
	Relay     RelayConfig     `yaml:"relay"`
	Firebase  FirebaseConfig  `yaml:"firebase"`
}

// RecaptchaConfig configures the verification service client.
type RecaptchaConfig struct {
	SecretKey        string        `yaml:"secret_key"`
	VerifyURL        string        `yaml:"verify_url"`
	Timeout          time.Duration `yaml:"timeout"`
	MinScore         float64       `yaml:"min_score"`
	ExpectedHostname string        `yaml:"hostname"`
}

// RelayConfig configures the downstream form processor and the redirect policy.
type RelayConfig struct {
	URL          string        `yaml:"url"`
	FormXID      string        `yaml:"form_xid"`
	FormName     string        `yaml:"form_name"`
	Version      string        `yaml:"version"`
	Timeout      time.Duration `yaml:"timeout"`
	Confirm      bool          `yaml:"confirm"`
	MaxHops      int           `yaml:"max_hops"`
	AllowedHosts []string      `yaml:"allowed_hosts"`
}

// FirebaseConfig enables the optional Firestore outcome counters.
type FirebaseConfig struct {
	ProjectID   string `yaml:"project_id"`
	CredsBase64 string `yaml:"creds_base64"`
	CredsFile   string `yaml:"creds_file"`
}

// Load reads environment variables into a Config with sensible defaults. When
// CONFIG_FILE is set the YAML file is applied first and env vars override it.
func Load() (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Port:           "8080",
		GinMode:        "release",
		LogLevel:       "info",
		AllowedOrigins: DefaultOrigin,
		Recaptcha: RecaptchaConfig{
			VerifyURL: DefaultVerifyURL,
			Timeout:   5 * time.Second,
		},
		Relay: RelayConfig{
			URL:      DefaultRelayURL,
			FormName: "Web Form submitted",
			Timeout:  10 * time.Second,
			MaxHops:  2,
		},
	}
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read CONFIG_FILE: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse CONFIG_FILE: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.GinMode = getEnv("GIN_MODE", c.GinMode)
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
	c.AllowedOrigins = getEnv("ALLOWED_ORIGINS", c.AllowedOrigins)

	c.Recaptcha.SecretKey = getEnv("RECAPTCHA_SECRET_KEY", c.Recaptcha.SecretKey)
	c.Recaptcha.VerifyURL = getEnv("RECAPTCHA_VERIFY_URL", c.Recaptcha.VerifyURL)
	c.Recaptcha.ExpectedHostname = getEnv("RECAPTCHA_HOSTNAME", c.Recaptcha.ExpectedHostname)

	c.Relay.URL = getEnv("RELAY_URL", c.Relay.URL)
	c.Relay.FormXID = getEnv("RELAY_FORM_XID", c.Relay.FormXID)
	c.Relay.FormName = getEnv("RELAY_FORM_NAME", c.Relay.FormName)
	c.Relay.Version = getEnv("RELAY_VERSION", c.Relay.Version)
	if hosts := splitCSV(os.Getenv("RELAY_ALLOWED_HOSTS")); len(hosts) > 0 {
		c.Relay.AllowedHosts = hosts
	}

	c.Firebase.ProjectID = getEnv("FIREBASE_PROJECT_ID", c.Firebase.ProjectID)
	c.Firebase.CredsBase64 = getEnv("FIREBASE_CREDS_BASE64", c.Firebase.CredsBase64)
	c.Firebase.CredsFile = getEnv("FIREBASE_CREDS_FILE", c.Firebase.CredsFile)

	var err error
	if c.ExposeDiagnostics, err = parseBoolEnv("EXPOSE_DIAGNOSTICS", c.ExposeDiagnostics); err != nil {
		return fmt.Errorf("parse EXPOSE_DIAGNOSTICS: %w", err)
	}
	if c.Relay.Confirm, err = parseBoolEnv("RELAY_CONFIRM", c.Relay.Confirm); err != nil {
		return fmt.Errorf("parse RELAY_CONFIRM: %w", err)
	}
	if c.Relay.MaxHops, err = parseIntEnv("RELAY_MAX_HOPS", c.Relay.MaxHops); err != nil {
		return fmt.Errorf("parse RELAY_MAX_HOPS: %w", err)
	}
	if c.Relay.Timeout, err = parseDurationEnv("RELAY_TIMEOUT", c.Relay.Timeout); err != nil {
		return fmt.Errorf("parse RELAY_TIMEOUT: %w", err)
	}
	if c.Recaptcha.Timeout, err = parseDurationEnv("RECAPTCHA_TIMEOUT", c.Recaptcha.Timeout); err != nil {
		return fmt.Errorf("parse RECAPTCHA_TIMEOUT: %w", err)
	}
	if c.Recaptcha.MinScore, err = parseFloatEnv("RECAPTCHA_MIN_SCORE", c.Recaptcha.MinScore); err != nil {
		return fmt.Errorf("parse RECAPTCHA_MIN_SCORE: %w", err)
	}
	return nil
}

// Validate ensures required fields are present.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.Recaptcha.SecretKey == "" {
		return errors.New("RECAPTCHA_SECRET_KEY is required")
	}
	if c.Relay.FormXID == "" {
		return errors.New("RELAY_FORM_XID is required")
	}
	u, err := url.Parse(c.Relay.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("RELAY_URL must be an absolute http(s) URL, got %q", c.Relay.URL)
	}
	if c.Relay.MaxHops < 1 {
		return errors.New("RELAY_MAX_HOPS must be at least 1")
	}
	if c.Recaptcha.Timeout <= 0 || c.Relay.Timeout <= 0 {
		return errors.New("RECAPTCHA_TIMEOUT and RELAY_TIMEOUT must be positive")
	}
	if c.Recaptcha.MinScore < 0 || c.Recaptcha.MinScore > 1 {
		return errors.New("RECAPTCHA_MIN_SCORE must be between 0 and 1")
	}
	return nil
}

// StatsEnabled reports whether a Firestore project was configured for outcome counters.
func (c Config) StatsEnabled() bool {
	return c.Firebase.ProjectID != ""
}

// Origins returns the trimmed CORS allow-list.
func (c Config) Origins() []string {
	return splitCSV(c.AllowedOrigins)
}

// FirebaseCredentialsJSON returns the service account JSON bytes and the source used.
// An empty source with no error means application default credentials apply.
func (c Config) FirebaseCredentialsJSON() ([]byte, string, error) {
	if c.Firebase.CredsBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(c.Firebase.CredsBase64)
		if err != nil {
			return nil, "base64", fmt.Errorf("decode FIREBASE_CREDS_BASE64: %w", err)
		}
		return decoded, "base64", nil
	}
	if c.Firebase.CredsFile != "" {
		data, err := os.ReadFile(c.Firebase.CredsFile)
		if err != nil {
			return nil, "file", fmt.Errorf("read FIREBASE_CREDS_FILE: %w", err)
		}
		return data, "file", nil
	}
	return nil, "", nil
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func parseBoolEnv(key string, defaultVal bool) (bool, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(val)
}

func parseIntEnv(key string, defaultVal int) (int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(val)
}

func parseFloatEnv(key string, defaultVal float64) (float64, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	return strconv.ParseFloat(val, 64)
}

func parseDurationEnv(key string, defaultVal time.Duration) (time.Duration, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(val)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
