package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/vulntor/exposure/pkg/config"
	"github.com/vulntor/exposure/pkg/logging"
	"github.com/vulntor/exposure/pkg/results"
	"github.com/vulntor/exposure/pkg/server"
	"github.com/vulntor/exposure/pkg/server/api"
	"github.com/vulntor/exposure/pkg/server/httpx"
	"github.com/vulntor/exposure/pkg/server/jobs"
	"github.com/vulntor/exposure/pkg/shodan"
	"github.com/vulntor/exposure/pkg/tasks"
	"github.com/vulntor/exposure/pkg/workspace"
)

// shutdownTimeout bounds the graceful shutdown of HTTP and jobs.
const shutdownTimeout = 30 * time.Second

// App orchestrates the server runtime components:
// - HTTP server (API)
// - Background job manager
// - Config file watcher
// - Lifecycle management
type App struct {
	HTTP    *http.Server
	Jobs    jobs.Manager
	Ready   *atomic.Bool
	Config  config.ServerConfig
	Results *results.Store
	Deps    *Deps

	listener net.Listener
	watcher  *config.Watcher
}

// New creates and configures a new server application. It prepares the
// workspace and results directory but does not bind the listener.
func New(ctx context.Context, deps *Deps) (*App, error) {
	if deps == nil || deps.Config == nil {
		return nil, server.ErrConfigUnavailable
	}
	deps.Logger.Info().Msg("Initializing server application")

	cfg := deps.Config.Get()
	srv := cfg.Server
	if srv.Port < 0 || srv.Port > 65535 {
		return nil, server.NewInvalidPortError(srv.Port)
	}
	if srv.Concurrency < 1 {
		return nil, server.NewInvalidConcurrencyError(srv.Concurrency)
	}

	root, err := workspace.Prepare(cfg.Workspace.Dir)
	if err != nil {
		return nil, server.WrapWorkspaceInit(err)
	}
	store, err := results.NewStore(workspace.Results(root))
	if err != nil {
		return nil, server.WrapWorkspaceInit(err)
	}
	deps.Logger.Info().Str("results", store.Root()).Msg("Results directory ready")

	registry := deps.Tasks
	if registry == nil {
		registry = tasks.Default()
	}

	cves := newCVEService(cfg)
	deps.Config.OnChange(func(c config.Config) {
		cves.reconfigure(c)
		deps.Logger.Info().Msg("Upstream clients reconfigured")
	})

	apiCfg := api.DefaultConfig()
	apiCfg.UploadLimit = int64(srv.UploadLimitMB) << 20
	if err := apiCfg.Validate(); err != nil {
		return nil, server.WrapInvalidConfig(err)
	}

	ready := &atomic.Bool{}
	jobsMgr := jobs.NewMemoryManager(srv.Concurrency, srv.QueueSize)
	manager := deps.Config
	apiDeps := &api.Deps{
		Tasks: registry,
		Env: func() *tasks.Env {
			env := manager.Get().TaskEnv()
			env.Store = store
			return env
		},
		Results: store,
		Jobs:    jobsMgr,
		CVE:     cves,
		Shodan: func(apiKey string) api.ShodanAccount {
			sc := manager.Get().Shodan()
			if apiKey != "" {
				sc.APIKey = apiKey
			}
			return shodan.New(sc)
		},
		Ready:  ready,
		Config: apiCfg,
	}

	router := httpx.NewRouter(apiDeps)
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(srv.Addr, strconv.Itoa(srv.Port)),
		Handler:           httpx.Chain(srv, router),
		ReadTimeout:       srv.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      srv.WriteTimeout,
	}

	a := &App{
		HTTP:    httpServer,
		Jobs:    jobsMgr,
		Ready:   ready,
		Config:  srv,
		Results: store,
		Deps:    deps,
	}

	if deps.ConfigPath != "" {
		w, err := config.NewWatcher(deps.Config, deps.ConfigPath, deps.Logger)
		if err != nil {
			deps.Logger.Warn().Err(err).Msg("Config hot reload unavailable")
		} else {
			a.watcher = w
		}
	}
	return a, nil
}

// Listen binds the HTTP listener. Run calls it when needed.
func (a *App) Listen() error {
	if a.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", a.HTTP.Addr)
	if err != nil {
		return server.WrapRuntime(fmt.Errorf("listen on %s: %w", a.HTTP.Addr, err))
	}
	a.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (a *App) Addr() string {
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.HTTP.Addr
}

// Run starts the server and blocks until ctx is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.Listen(); err != nil {
		return err
	}
	a.Deps.Logger.Info().
		Str("addr", a.Addr()).
		Int("concurrency", a.Config.Concurrency).
		Str("auth", a.Config.Auth.Mode).
		Msg("Starting exposure server")

	serverErr := make(chan error, 1)
	go func() {
		if err := a.HTTP.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- server.WrapRuntime(fmt.Errorf("HTTP server failed: %w", err))
		}
	}()

	if err := a.Jobs.Start(ctx); err != nil {
		_ = a.HTTP.Close()
		return server.WrapRuntime(fmt.Errorf("start jobs: %w", err))
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	if a.watcher != nil {
		go func() {
			if err := a.watcher.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.Deps.Logger.Warn().Err(err).Msg("Config watcher stopped")
			}
		}()
	}
	a.listenSignals(runCtx)

	a.Ready.Store(true)
	a.Deps.Logger.Info().Msg("Server is ready and accepting connections")

	select {
	case <-ctx.Done():
		a.Deps.Logger.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		a.Deps.Logger.Error().Err(err).Msg("Server error")
		a.Ready.Store(false)
		_ = a.Jobs.Stop(context.Background())
		return err
	}

	return a.shutdown()
}

// listenSignals rotates the log file on the platform's rotation signal.
func (a *App) listenSignals(ctx context.Context) {
	sigs := make(chan os.Signal, 1)
	if !notifyRotate(sigs) {
		return
	}
	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigs:
				a.Deps.Logger.Info().Str("signal", sig.String()).Msg("Rotating log file")
				if err := logging.Rotate(); err != nil {
					a.Deps.Logger.Error().Err(err).Msg("Log rotation failed")
				}
			}
		}
	}()
}

// shutdown performs graceful shutdown of all components.
func (a *App) shutdown() error {
	a.Deps.Logger.Info().Msg("Initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.Ready.Store(false)

	if err := a.HTTP.Shutdown(shutdownCtx); err != nil {
		a.Deps.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
		return server.WrapRuntime(err)
	}
	a.Deps.Logger.Info().Msg("HTTP server stopped")

	if err := a.Jobs.Stop(shutdownCtx); err != nil {
		a.Deps.Logger.Error().Err(err).Msg("Jobs shutdown failed")
		return server.WrapRuntime(err)
	}
	a.Deps.Logger.Info().Msg("Server shutdown complete")
	return nil
}
