package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/harvestmap/trust-cli/internal/admin"
	"github.com/harvestmap/trust-cli/internal/claims"
	"github.com/harvestmap/trust-cli/internal/enhance"
	"github.com/harvestmap/trust-cli/internal/points"
	"github.com/harvestmap/trust-cli/internal/store"
	"github.com/harvestmap/trust-cli/internal/verify"
	anthropicpkg "github.com/harvestmap/trust-cli/pkg/anthropic"
)

// serviceEnv holds the initialized store and services shared by the serve,
// enhance, and admin commands.
type serviceEnv struct {
	Store   store.Store
	Votes   *verify.Service
	Claims  *claims.Service
	Points  *points.Service
	Enhance *enhance.Pipeline
	Admin   *admin.Service
}

// Close releases resources held by the environment.
func (e *serviceEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "trust.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initServices validates config for the given mode, opens the store, runs
// migrations, and builds the service graph. Callers should defer env.Close().
func initServices(ctx context.Context, mode string) (*serviceEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	env := &serviceEnv{
		Store:  st,
		Votes:  verify.New(st),
		Claims: claims.New(st),
		Points: points.New(st),
	}

	// Store-only modes never touch the model API.
	if mode != "store" {
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		env.Enhance = enhance.NewPipeline(client, st, enhance.Config{
			Model:          cfg.Anthropic.Model,
			MaxTokens:      cfg.Anthropic.MaxTokens,
			BatchSize:      cfg.Enhance.BatchSize,
			Concurrency:    cfg.Enhance.Concurrency,
			RatePerSec:     cfg.Enhance.RatePerSec,
			Timeout:        time.Duration(cfg.Anthropic.TimeoutSecs) * time.Second,
			TrustedDomains: cfg.Enhance.TrustedDomains,
		})
	}
	env.Admin = admin.New(st, env.Enhance)

	return env, nil
}
