package app

import (
	"github.com/rs/zerolog"

	"github.com/vulntor/exposure/pkg/config"
	"github.com/vulntor/exposure/pkg/tasks"
)

// Deps holds dependencies for the server application.
type Deps struct {
	// Config manager for runtime configuration. Its current value is read
	// for every task run, so reloads take effect without a restart.
	Config *config.Manager

	// ConfigPath enables hot reload when set.
	ConfigPath string

	// Tasks defaults to the built-in registry.
	Tasks *tasks.Registry

	// Logger for structured logging (injected by caller)
	Logger zerolog.Logger
}
