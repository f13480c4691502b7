package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/flexiboard/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenMode(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}

	cfg = AuthConfig{Mode: "token"}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("empty token err = %v", err)
	}
}

func TestAuthConfig_JWTMode(t *testing.T) {
	cfg := AuthConfig{Mode: "jwt", JWTSecret: "0123456789abcdef"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("jwt mode with secret should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("jwt mode should be enabled")
	}

	cfg = AuthConfig{Mode: "jwt", JWTSecret: "short"}
	if err := cfg.Validate(); err == nil {
		t.Error("short jwt secret should fail")
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestAutomationConfig(t *testing.T) {
	cfg := AutomationConfig{Enabled: true, SweepInterval: 100 * time.Millisecond}
	if err := cfg.Validate(); err == nil {
		t.Error("sub-second sweep interval should fail")
	}
	cfg = AutomationConfig{Enabled: false}
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled scheduler needs no interval: %v", err)
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("FLEXIBOARD_TEST_TOKEN", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `app:
  log_level: debug
  http:
    port: 9090
sqlite:
  path: /tmp/boards.db
auth:
  mode: token
  token: ${FLEXIBOARD_TEST_TOKEN}
automation:
  enabled: true
  sweep_interval: 30s
templates:
  dir: ./templates
cors:
  allowed_origins: [https://app.example.com]
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.Auth.Token != "from-env" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Automation.SweepInterval != 30*time.Second {
		t.Errorf("sweep interval = %v", cfg.Automation.SweepInterval)
	}
	if cfg.Attachments.Dir != "./attachments" {
		t.Errorf("unset section lost its default: %q", cfg.Attachments.Dir)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "https://app.example.com" {
		t.Errorf("origins = %v", cfg.CORS.AllowedOrigins)
	}
}
