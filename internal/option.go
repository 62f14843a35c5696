package internal

import (
	"io"

	"github.com/starford/notemind/internal/session"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	assistant session.Assistant
	logOut    io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithAssistant replaces the AI client built from config.
func WithAssistant(as session.Assistant) Option {
	return func(a *application) {
		a.assistant = as
	}
}

// WithLogOutput sets where the JSON log is written. Defaults to stdout;
// the MCP command points it at stderr because stdout carries the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}
