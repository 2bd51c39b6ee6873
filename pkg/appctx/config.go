// Package appctx carries process-wide handles on a context.Context between
// cobra commands.
package appctx

import (
	"context"

	"github.com/vulntor/exposure/pkg/config"
	"github.com/vulntor/exposure/pkg/results"
)

type key string

const (
	configKey key = "exposure.config.manager"
	storeKey  key = "exposure.results.store"
)

// WithConfig stores the shared config manager on context.
func WithConfig(ctx context.Context, manager *config.Manager) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, configKey, manager)
}

// Config retrieves the shared config manager from context.
func Config(ctx context.Context) (*config.Manager, bool) {
	if ctx == nil {
		return nil, false
	}
	mgr, ok := ctx.Value(configKey).(*config.Manager)
	return mgr, ok && mgr != nil
}

// WithStore stores the results store on context.
func WithStore(ctx context.Context, store *results.Store) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, storeKey, store)
}

// Store retrieves the results store from context.
func Store(ctx context.Context) (*results.Store, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(storeKey).(*results.Store)
	return s, ok && s != nil
}
