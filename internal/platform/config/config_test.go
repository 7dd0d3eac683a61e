package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"CONFIG_FILE", "PORT", "GIN_MODE", "LOG_LEVEL", "ALLOWED_ORIGINS", "EXPOSE_DIAGNOSTICS",
	"RECAPTCHA_SECRET_KEY", "RECAPTCHA_VERIFY_URL", "RECAPTCHA_TIMEOUT", "RECAPTCHA_MIN_SCORE", "RECAPTCHA_HOSTNAME",
	"RELAY_URL", "RELAY_FORM_XID", "RELAY_FORM_NAME", "RELAY_VERSION", "RELAY_TIMEOUT",
	"RELAY_CONFIRM", "RELAY_MAX_HOPS", "RELAY_ALLOWED_HOSTS",
	"FIREBASE_PROJECT_ID", "FIREBASE_CREDS_BASE64", "FIREBASE_CREDS_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECAPTCHA_SECRET_KEY", "secret")
	t.Setenv("RELAY_FORM_XID", "xid123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.GinMode != "release" {
		t.Fatalf("unexpected defaults: port=%s mode=%s", cfg.Port, cfg.GinMode)
	}
	if cfg.Relay.MaxHops != 2 {
		t.Fatalf("expected default max hops 2, got %d", cfg.Relay.MaxHops)
	}
	if cfg.Relay.Confirm {
		t.Fatalf("confirmation should default to off")
	}
	if cfg.Recaptcha.VerifyURL != DefaultVerifyURL {
		t.Fatalf("unexpected verify url %s", cfg.Recaptcha.VerifyURL)
	}
	if got := cfg.Origins(); len(got) != 1 || got[0] != DefaultOrigin {
		t.Fatalf("unexpected origins %v", got)
	}
	if cfg.StatsEnabled() {
		t.Fatalf("stats should be disabled without FIREBASE_PROJECT_ID")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECAPTCHA_SECRET_KEY", "secret")
	t.Setenv("RELAY_FORM_XID", "xid123")
	t.Setenv("RELAY_CONFIRM", "true")
	t.Setenv("RELAY_MAX_HOPS", "3")
	t.Setenv("RELAY_TIMEOUT", "2s")
	t.Setenv("RELAY_ALLOWED_HOSTS", "keap.app, thanks.example.com ,")
	t.Setenv("RECAPTCHA_MIN_SCORE", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Relay.Confirm || cfg.Relay.MaxHops != 3 {
		t.Fatalf("unexpected relay policy: %+v", cfg.Relay)
	}
	if cfg.Relay.Timeout != 2*time.Second {
		t.Fatalf("unexpected relay timeout %s", cfg.Relay.Timeout)
	}
	if len(cfg.Relay.AllowedHosts) != 2 || cfg.Relay.AllowedHosts[1] != "thanks.example.com" {
		t.Fatalf("unexpected allowed hosts %v", cfg.Relay.AllowedHosts)
	}
	if cfg.Recaptcha.MinScore != 0.5 {
		t.Fatalf("unexpected min score %v", cfg.Recaptcha.MinScore)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("RELAY_FORM_XID", "xid123")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without RECAPTCHA_SECRET_KEY")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"RELAY_CONFIRM":       "maybe",
		"RELAY_MAX_HOPS":      "0",
		"RELAY_URL":           "/relative",
		"RECAPTCHA_MIN_SCORE": "2",
		"RECAPTCHA_TIMEOUT":   "soon",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("RECAPTCHA_SECRET_KEY", "secret")
			t.Setenv("RELAY_FORM_XID", "xid123")
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, val)
			}
		})
	}
}

func TestLoadFromYAMLWithEnvPrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	yamlBody := `
port: "9090"
recaptcha:
  secret_key: from-file
  timeout: 3s
relay:
  form_xid: file-xid
  confirm: true
  max_hops: 4
  allowed_hosts: [keap.app]
`
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RELAY_FORM_XID", "env-xid")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" || cfg.Recaptcha.SecretKey != "from-file" {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	if cfg.Relay.FormXID != "env-xid" {
		t.Fatalf("env should override yaml, got %s", cfg.Relay.FormXID)
	}
	if cfg.Recaptcha.Timeout != 3*time.Second || cfg.Relay.MaxHops != 4 || !cfg.Relay.Confirm {
		t.Fatalf("unexpected yaml-derived values: %+v", cfg)
	}
	if cfg.Relay.Timeout != 10*time.Second {
		t.Fatalf("defaults should survive a partial yaml file, got %s", cfg.Relay.Timeout)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing CONFIG_FILE")
	}
}
