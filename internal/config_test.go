package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestStoreConfig_RequiresDSN(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.DSN = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty dsn should fail")
	}
}

func TestAIConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.AI.BaseURL = "http://not a url"
	if err := cfg.AI.Validate(); err == nil {
		t.Error("invalid base url should fail")
	}

	cfg = NewDefaultConfig()
	cfg.AI.RequestsPerSecond = -1
	if err := cfg.AI.Validate(); err == nil {
		t.Error("negative rate should fail")
	}

	cfg = NewDefaultConfig()
	cfg.AI.APIKey = "k"
	c := cfg.AI.Client()
	if c.APIKey != "k" || c.ChatModel != cfg.AI.ChatModel || c.Timeout != cfg.AI.Timeout {
		t.Errorf("client config = %+v", c)
	}
}

func TestAutosaveConfig_QuietWindowBounds(t *testing.T) {
	cfg := AutosaveConfig{QuietWindow: time.Millisecond}
	if err := cfg.Validate(); err == nil {
		t.Error("1ms quiet window should fail")
	}
	cfg.QuietWindow = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero quiet window should fail")
	}
	cfg.QuietWindow = 500 * time.Millisecond
	if err := cfg.Validate(); err != nil {
		t.Errorf("500ms should pass: %v", err)
	}
}

func TestPublishConfig(t *testing.T) {
	cfg := NewDefaultConfig().Publish
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty repo url is allowed: %v", err)
	}
	cfg.RepoURL = "https://github.com/me/notes"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid repo url: %v", err)
	}
	cfg.Branch = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty branch should fail")
	}
}
