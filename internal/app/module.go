// Package app composes the client's components into an fx application:
// config, logging, the profile lock, the sqlite cache, the RPC client, the
// chat manager and the realtime subscription.
package app

import (
	"context"
	"fmt"

	"github.com/Nahtral/100IN-sub005/internal/bus"
	"github.com/Nahtral/100IN-sub005/internal/chat"
	"github.com/Nahtral/100IN-sub005/internal/config"
	"github.com/Nahtral/100IN-sub005/internal/lock"
	"github.com/Nahtral/100IN-sub005/internal/logging"
	"github.com/Nahtral/100IN-sub005/internal/realtime"
	"github.com/Nahtral/100IN-sub005/internal/rpc"
	"github.com/Nahtral/100IN-sub005/internal/session"
	"github.com/Nahtral/100IN-sub005/internal/status"
	"github.com/Nahtral/100IN-sub005/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
}

// Module returns the fx module for the client, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideRPCClient,
			provideManager,
			provideReconciler,
			provideSubscriber,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config (run `courtctl login` first): %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	// File-only: stderr belongs to the terminal UI.
	return logging.NewFile(session.LogPath(p.Profile), p.Profile)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(session.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.CachePath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRPCClient(cfg *config.Config) *rpc.Client {
	return rpc.NewClient(cfg.BaseURL, cfg.AccessToken)
}

func provideManager(client *rpc.Client, b *bus.Bus, db *store.DB, cfg *config.Config, logger *zap.Logger) *chat.Manager {
	return chat.NewManager(client, b, db, cfg.UserID, logger)
}

func provideReconciler(mgr *chat.Manager, b *bus.Bus, logger *zap.Logger) *chat.Reconciler {
	return chat.NewReconciler(mgr, b, logger)
}

func provideSubscriber(cfg *config.Config, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *realtime.Subscriber {
	return realtime.NewSubscriber(cfg.BaseURL, cfg.AccessToken, b, machine, logger)
}

func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, mgr *chat.Manager, rec *chat.Reconciler, sub *realtime.Subscriber, machine *status.Machine, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Serve the cached snapshot while the first refresh is in flight.
			mgr.WarmStart()

			if cfg.AccessToken == "" {
				logger.Info("no access token configured, auth required")
				return machine.Transition(status.AuthRequired)
			}

			rec.Start(context.Background())
			sub.Start(context.Background())

			go func() {
				if err := mgr.LoadChats(context.Background(), true); err != nil {
					logger.Warn("initial chat list load failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			sub.Stop()
			rec.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}
