package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/profile-cli/internal/analysis"
	"github.com/sells-group/profile-cli/internal/config"
	"github.com/sells-group/profile-cli/internal/session"
	"github.com/sells-group/profile-cli/internal/store"
	"github.com/sells-group/profile-cli/pkg/simplai"
)

func initStore(ctx context.Context, c config.StoreConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch c.Driver {
	case "sqlite":
		dsn := c.DatabaseURL
		if dsn == "" {
			dsn = "profiles.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.DatabaseURL, &store.PoolConfig{MaxConns: c.MaxConns, MinConns: c.MinConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func initSessions(ctx context.Context, c config.SessionConfig) (session.Store, error) {
	switch c.Driver {
	case "", "memory":
		return session.NewMemoryStore(c.TTL()), nil
	case "redis":
		rs := session.NewRedisStore(session.NewRedisClient(session.RedisConfig{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		}), c.TTL())
		if err := rs.Ping(ctx); err != nil {
			rs.Close() //nolint:errcheck
			return nil, err
		}
		return rs, nil
	default:
		return nil, eris.Errorf("unsupported session driver: %s", c.Driver)
	}
}

func newClient(c config.AnalysisConfig) simplai.Client {
	opts := []simplai.Option{
		simplai.WithBaseURL(c.BaseURL),
		simplai.WithPaths(c.InitiatePath, c.PollPath),
	}
	if c.RequestTimeoutSecs > 0 {
		opts = append(opts, simplai.WithTimeout(c.RequestTimeout()))
	}
	if c.RateLimitRPS > 0 {
		opts = append(opts, simplai.WithRateLimit(c.RateLimitRPS))
	}
	return simplai.NewClient(simplai.Identity{
		DeviceID: c.DeviceID,
		PIMSID:   c.PIMSID,
		TenantID: c.TenantID,
		UserID:   c.UserID,
	}, opts...)
}

func newWorkflow(c config.AnalysisConfig, client simplai.Client, sessions analysis.ProfileSaver) *analysis.Workflow {
	return analysis.NewWorkflow(
		analysis.NewInitiator(client, analysis.ToolConfig{
			ToolID:       c.ToolID,
			LanguageCode: c.LanguageCode,
			Source:       c.Source,
			Action:       c.Action,
		}),
		analysis.NewPoller(client, analysis.PollerConfig{
			MaxAttempts: c.MaxAttempts,
			Interval:    c.PollInterval(),
		}),
		sessions,
	)
}

// appEnv holds the long-lived dependencies shared by analyze and serve.
type appEnv struct {
	Store    store.Store
	Sessions session.Store
	Manager  *analysis.Manager
}

func initApp(ctx context.Context, c *config.Config, wrap func(analysis.Recorder) analysis.Recorder) (*appEnv, error) {
	st, err := initStore(ctx, c.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	sessions, err := initSessions(ctx, c.Session)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "init sessions")
	}

	var rec analysis.Recorder = st
	if wrap != nil {
		rec = wrap(st)
	}
	wf := newWorkflow(c.Analysis, newClient(c.Analysis), sessions)
	return &appEnv{Store: st, Sessions: sessions, Manager: analysis.NewManager(wf, rec)}, nil
}

// Close stops running analyses and releases the backends.
func (e *appEnv) Close(ctx context.Context) {
	if err := e.Manager.Shutdown(ctx); err != nil {
		zap.L().Warn("shutdown analyses", zap.Error(err))
	}
	if err := e.Sessions.Close(); err != nil {
		zap.L().Warn("close session store", zap.Error(err))
	}
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}
