package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/antoniostano/npctalk/internal/catalog"
	"github.com/antoniostano/npctalk/internal/config"
	"github.com/antoniostano/npctalk/internal/dialog"
	"github.com/antoniostano/npctalk/internal/events"
	"github.com/antoniostano/npctalk/internal/httpapi"
	"github.com/antoniostano/npctalk/internal/npc"
	"github.com/antoniostano/npctalk/internal/observability"
	"github.com/antoniostano/npctalk/internal/script"
	"github.com/antoniostano/npctalk/internal/session"
)

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.Manager
	Orchestrator *npc.Orchestrator
	Scripts      *script.Loader
	Catalog      catalog.Store
	Metrics      *observability.Metrics
	// Listener is nil when REDIS_ADDR is empty.
	Listener *events.Listener

	// Cleanup should be called on shutdown to release external resources (DB, redis).
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := catalog.NewStore(ctx, cfg.DatabaseURL, cfg.CatalogSeedPath)
	if err != nil {
		return nil, fmt.Errorf("catalog store init failed: %w", err)
	}

	var (
		sink     events.Sink = events.Nop{}
		rdb      *redis.Client
		listener *events.Listener
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		sink = events.NewPublisher(rdb, cfg.RedisEventsChannel)
	}

	loader := script.NewLoader(cfg.ScriptDir)
	sessions := session.NewManager(cfg.SessionInactivityTimeout)

	orchestrator := npc.NewOrchestrator(npc.Config{
		Sessions: sessions,
		Scripts:  loader,
		Catalogs: dialog.Catalogs{Shops: store, Storage: store, Beauty: store},
		Events:   sink,
		Metrics:  metrics,
	})
	sessions.SetExpireHook(func(s *session.Session) {
		orchestrator.SessionExpired(s)
		metrics.SessionEvent("expired")
		metrics.SetActiveSessions(sessions.ActiveCount())
	})
	if rdb != nil {
		listener = events.NewListener(rdb, cfg.RedisTerminateChannel, orchestrator)
	}

	api := httpapi.New(cfg, sessions, orchestrator, metrics)

	log.Info().
		Str("script_dir", cfg.ScriptDir).
		Bool("postgres_catalog", cfg.DatabaseURL != "").
		Bool("redis_events", rdb != nil).
		Msg("service assembled")

	cleanup := func() error {
		var errs []string
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if err := store.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Sessions:     sessions,
		Orchestrator: orchestrator,
		Scripts:      loader,
		Catalog:      store,
		Metrics:      metrics,
		Listener:     listener,
		Cleanup:      cleanup,
	}, nil
}
