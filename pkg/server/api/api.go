package api

import (
	"context"
	"sync/atomic"

	"github.com/vulntor/exposure/pkg/nvd"
	"github.com/vulntor/exposure/pkg/results"
	"github.com/vulntor/exposure/pkg/server/jobs"
	"github.com/vulntor/exposure/pkg/tasks"
)

// Deps holds dependencies for API handlers.
// This pattern enables dependency injection and easier testing.
type Deps struct {
	// Tasks is the registry of runnable tasks.
	Tasks *tasks.Registry

	// Env returns a fresh task environment for one run. Handlers attach
	// the results store and the run's log to it.
	Env func() *tasks.Env

	// Results stores task output and uploaded documents.
	Results *results.Store

	// Jobs runs tasks in the background.
	Jobs jobs.Manager

	// CVE serves single-CVE lookups.
	CVE CVEFetcher

	// Shodan returns an account client for apiKey. An empty key selects
	// the configured one.
	Shodan func(apiKey string) ShodanAccount

	// Ready flag for readiness check
	Ready *atomic.Bool

	Config Config
}

// CVEFetcher is the subset of the NVD client used by the API.
type CVEFetcher interface {
	Get(ctx context.Context, cveID string) (*nvd.CVEDetail, error)
}

// ShodanAccount is the subset of the Shodan client used by the API.
// Defined here to ease mocking.
type ShodanAccount interface {
	APIInfo(ctx context.Context) (map[string]any, error)
	Alerts(ctx context.Context) ([]map[string]any, error)
	DeleteAlert(ctx context.Context, id string) error
}

// TaskEnv returns the environment for one run, never nil.
func (d *Deps) TaskEnv() *tasks.Env {
	var env *tasks.Env
	if d.Env != nil {
		env = d.Env()
	}
	if env == nil {
		env = &tasks.Env{}
	}
	if env.Store == nil {
		env.Store = d.Results
	}
	return env
}
