package daemon

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rlacuesta/campusd/internal/bus"
	"github.com/rlacuesta/campusd/internal/config"
	"github.com/rlacuesta/campusd/internal/connectivity"
	"github.com/rlacuesta/campusd/internal/cooldown"
	"github.com/rlacuesta/campusd/internal/kv"
	"github.com/rlacuesta/campusd/internal/listener"
	"github.com/rlacuesta/campusd/internal/lock"
	"github.com/rlacuesta/campusd/internal/logging"
	"github.com/rlacuesta/campusd/internal/metrics"
	"github.com/rlacuesta/campusd/internal/notify"
	"github.com/rlacuesta/campusd/internal/profile"
	"github.com/rlacuesta/campusd/internal/queue"
	"github.com/rlacuesta/campusd/internal/remote"
	"github.com/rlacuesta/campusd/internal/session"
	"github.com/rlacuesta/campusd/internal/syncer"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideRemote,
			provideMonitor,
			provideQueue,
			provideLimiter,
			provideCoordinator,
			provideListeners,
			providePrefs,
			provideGate,
			provideNotifier,
			provideSessions,
			provideMetricsServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	return config.LoadOrDefault(profile.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*kv.SQLite, error) {
	dbPath := profile.DBPath(p.Profile)
	db, err := kv.Open(dbPath)
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
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRemote(cfg *config.Config, logger *zap.Logger) (*remote.FirestoreStore, error) {
	return remote.NewFirestore(context.Background(),
		cfg.Firestore.ProjectID,
		cfg.Firestore.CredentialsFile,
		remote.Collections{
			Tasks:         cfg.Firestore.Tasks,
			Announcements: cfg.Firestore.Announcements,
			Wall:          cfg.Firestore.Wall,
		},
		logger)
}

func provideMonitor(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *connectivity.Monitor {
	probe := &connectivity.DialProbe{Endpoint: cfg.Sync.ProbeEndpoint}
	interval := time.Duration(cfg.Sync.ProbeIntervalSeconds) * time.Second
	return connectivity.NewMonitor(probe, interval, b, logger)
}

func provideQueue() *queue.Queue {
	return queue.New()
}

func provideLimiter(db *kv.SQLite, logger *zap.Logger) *cooldown.Limiter {
	return cooldown.New(db, logger)
}

func provideCoordinator(monitor *connectivity.Monitor, q *queue.Queue, store *remote.FirestoreStore, limiter *cooldown.Limiter, cfg *config.Config, b *bus.Bus, logger *zap.Logger) *syncer.Coordinator {
	window := time.Duration(cfg.Sync.CooldownSeconds) * time.Second
	return syncer.New(monitor, q, store, limiter, window, b, logger)
}

func provideListeners(store *remote.FirestoreStore, b *bus.Bus, logger *zap.Logger) *listener.Manager {
	return listener.New(store, b, logger)
}

func providePrefs(db *kv.SQLite, logger *zap.Logger) *notify.Prefs {
	return notify.NewPrefs(db, logger)
}

func provideGate(prefs *notify.Prefs) *notify.Gate {
	return notify.NewGate(prefs)
}

func provideNotifier(cfg *config.Config, logger *zap.Logger) (notify.Notifier, error) {
	if cfg.Notify.DeviceToken == "" {
		logger.Info("no device token configured, notifications go to the log")
		return notify.NewLogNotifier(logger), nil
	}
	return notify.NewFCMNotifier(context.Background(), cfg.Firestore.CredentialsFile, cfg.Notify.DeviceToken, logger)
}

func provideSessions(lm *listener.Manager, gate *notify.Gate, notifier notify.Notifier, db *kv.SQLite, cfg *config.Config, b *bus.Bus, logger *zap.Logger) *session.Manager {
	collections := map[notify.Category]string{
		notify.CategoryTasks:         cfg.Firestore.Tasks,
		notify.CategoryAnnouncements: cfg.Firestore.Announcements,
		notify.CategoryWall:          cfg.Firestore.Wall,
	}
	return session.New(lm, gate, notifier, db, collections, b, logger)
}

func provideMetricsServer(cfg *config.Config) *http.Server {
	return &http.Server{
		Addr:    cfg.Metrics.ListenAddr,
		Handler: metrics.Router(),
	}
}

func registerLifecycle(lc fx.Lifecycle, monitor *connectivity.Monitor, coord *syncer.Coordinator, sessions *session.Manager, srv *http.Server, lk *lock.Lock, store *remote.FirestoreStore, db *kv.SQLite, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// The flush callback must be registered before the monitor starts,
			// or the first offline-to-online edge could be missed.
			monitor.OnOnline(func() {
				go coord.FlushPending(context.Background())
			})
			monitor.Start(context.Background())

			// Resume the previous session, if one was persisted.
			if sessions.Restore(context.Background()) {
				logger.Info("session restored", zap.String("user_id", sessions.CurrentUserID()))
			}

			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server error", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			sessions.Shutdown()
			monitor.Stop()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("metrics server shutdown", zap.Error(err))
			}
			if err := store.Close(); err != nil {
				logger.Warn("error closing remote store", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing local store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
