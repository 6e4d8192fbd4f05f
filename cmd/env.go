package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-research/internal/pipeline"
	"github.com/sells-group/company-research/internal/registry"
	"github.com/sells-group/company-research/internal/store"
	anthropicpkg "github.com/sells-group/company-research/pkg/anthropic"
	"github.com/sells-group/company-research/pkg/tavily"
)

// researchEnv holds the initialized clients, job registry, and pipeline
// shared by the research/serve/jobs commands.
type researchEnv struct {
	Store    store.Store // nil when no driver configured
	Registry *registry.Registry
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *researchEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates config, opens the optional store, and builds the
// pipeline. Callers should defer env.Close().
func initEnv(ctx context.Context) (*researchEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	tavilyOpts := []tavily.Option{tavily.WithDefaultMaxResults(cfg.Research.MaxResults)}
	if cfg.Tavily.BaseURL != "" {
		tavilyOpts = append(tavilyOpts, tavily.WithBaseURL(cfg.Tavily.BaseURL))
	}
	if cfg.Tavily.RateLimit > 0 {
		tavilyOpts = append(tavilyOpts, tavily.WithRateLimit(cfg.Tavily.RateLimit, cfg.Tavily.RateBurst))
	}
	tavilyClient := tavily.NewClient(cfg.Tavily.Key, tavilyOpts...)
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	reg := registry.New()
	p, err := pipeline.New(cfg, reg, st, tavilyClient, anthropicClient)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, err
	}

	return &researchEnv{
		Store:    st,
		Registry: reg,
		Pipeline: p,
	}, nil
}

// initStore opens the configured database and runs migrations. A blank
// driver means jobs live only in memory.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error

	switch cfg.Store.Driver {
	case "":
		zap.L().Info("no store configured, jobs are in-memory only")
		return nil, nil
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	zap.L().Info("store ready", zap.String("driver", cfg.Store.Driver))
	return st, nil
}
