package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/notemind/internal/ai"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Store       StoreConfig       `yaml:"store"`
	Identity    IdentityConfig    `yaml:"identity"`
	AI          AIConfig          `yaml:"ai"`
	Autosave    AutosaveConfig    `yaml:"autosave"`
	Attachments AttachmentsConfig `yaml:"attachments"`
	Publish     PublishConfig     `yaml:"publish"`
	Auth        AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Store, &c.Identity, &c.AI, &c.Autosave, &c.Attachments, &c.Publish,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig selects the backend store. DSN is a SQLite file path,
// sqlite://path, or a postgres:// URL.
type StoreConfig struct {
	DSN string `yaml:"dsn"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DSN, validation.Required),
	)
}

// IdentityConfig holds the path of the file that persists the anonymous
// owner id.
type IdentityConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the identity configuration.
func (c *IdentityConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AIConfig describes the OpenAI-compatible upstream.
type AIConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	ChatModel         string        `yaml:"chat_model"`
	EmbedModel        string        `yaml:"embed_model"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	EmbedCacheTTL     time.Duration `yaml:"embed_cache_ttl"`
}

// Validate validates the AI configuration.
func (c *AIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.ChatModel, validation.Required),
		validation.Field(&c.EmbedModel, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.RequestsPerSecond, validation.Min(0.0)),
	)
}

// Client returns the ai package view of this section.
func (c *AIConfig) Client() ai.Config {
	return ai.Config{
		BaseURL:           c.BaseURL,
		APIKey:            c.APIKey,
		ChatModel:         c.ChatModel,
		EmbedModel:        c.EmbedModel,
		Timeout:           c.Timeout,
		RequestsPerSecond: c.RequestsPerSecond,
		EmbedCacheTTL:     c.EmbedCacheTTL,
	}
}

// AutosaveConfig holds the quiet window after the last edit before a
// draft is written.
type AutosaveConfig struct {
	QuietWindow time.Duration `yaml:"quiet_window"`
}

// Validate validates the autosave configuration.
func (c *AutosaveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.QuietWindow, validation.Required, validation.Min(10*time.Millisecond)),
	)
}

// AttachmentsConfig holds the blob root and how long an unreferenced blob
// survives before the reconciler removes it.
type AttachmentsConfig struct {
	Path  string        `yaml:"path"`
	Grace time.Duration `yaml:"grace"`
}

// Validate validates the attachments configuration.
func (c *AttachmentsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Grace, validation.Min(time.Duration(0))),
	)
}

// PublishConfig holds the default publish target. RepoURL may be empty,
// in which case every publish request must name one.
type PublishConfig struct {
	RepoURL string `yaml:"repo_url"`
	Branch  string `yaml:"branch"`
	Token   string `yaml:"token"`
	APIBase string `yaml:"api_base"`
}

// Validate validates the publish configuration.
func (c *PublishConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RepoURL, is.URL),
		validation.Field(&c.Branch, validation.Required),
		validation.Field(&c.APIBase, validation.Required, is.URL),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			DSN: "./notemind.db",
		},
		Identity: IdentityConfig{
			Path: "./.notemind-owner",
		},
		AI: AIConfig{
			BaseURL:           "https://api.openai.com/v1",
			ChatModel:         "gpt-4o-mini",
			EmbedModel:        "text-embedding-3-small",
			Timeout:           60 * time.Second,
			RequestsPerSecond: 2,
			EmbedCacheTTL:     time.Hour,
		},
		Autosave: AutosaveConfig{
			QuietWindow: time.Second,
		},
		Attachments: AttachmentsConfig{
			Path:  "./attachments",
			Grace: 10 * time.Minute,
		},
		Publish: PublishConfig{
			Branch:  "main",
			APIBase: "https://api.github.com",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
