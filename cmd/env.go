package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/store"
	"github.com/sells-group/leadgen-cli/pkg/apify"
)

// runEnv bundles the initialized store and pipeline for commands.
type runEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

func (e *runEnv) Close() {
	_ = e.Store.Close()
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// initEnv builds the full pipeline environment. The Apify client is shared
// across every task the command runs, so submissions stay behind one rate
// limiter and circuit breaker.
func initEnv(ctx context.Context) (*runEnv, error) {
	if cfg.Apify.Token == "" {
		return nil, eris.New("apify token not configured (set LEADGEN_APIFY_TOKEN)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	opts := []apify.Option{}
	if cfg.Apify.BaseURL != "" {
		opts = append(opts, apify.WithBaseURL(cfg.Apify.BaseURL))
	}
	api := apify.NewClient(cfg.Apify.Token, opts...)

	return &runEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg, st, api),
	}, nil
}
