package daemon

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/chatline/internal/actions"
	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/boot"
	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/config"
	"github.com/matheus3301/chatline/internal/control"
	"github.com/matheus3301/chatline/internal/diag"
	"github.com/matheus3301/chatline/internal/inflight"
	"github.com/matheus3301/chatline/internal/lock"
	"github.com/matheus3301/chatline/internal/logging"
	"github.com/matheus3301/chatline/internal/metrics"
	"github.com/matheus3301/chatline/internal/nav"
	"github.com/matheus3301/chatline/internal/notify"
	"github.com/matheus3301/chatline/internal/profile"
	"github.com/matheus3301/chatline/internal/realtime"
	"github.com/matheus3301/chatline/internal/state"
	"github.com/matheus3301/chatline/internal/status"
	"github.com/matheus3301/chatline/internal/store"
	"github.com/matheus3301/chatline/internal/token"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile    string
	Config     *config.Config
	SocketPath string // optional override for testing; empty = use default
	Dir        string // optional profile directory override; empty = use default
}

func (p Params) dir() string {
	if p.Dir != "" {
		return p.Dir
	}
	return profile.Dir(p.Profile)
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	if p.Config == nil {
		p.Config = config.Default()
	}
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideRouter,
			provideMetrics,
			provideLock,
			provideStore,
			provideTokens,
			provideStores,
			inflight.New,
			provideSocket,
			provideBridge,
			provideExpiry,
			provideAPI,
			provideActions,
			provideNotify,
			providePanel,
			provideInitializer,
			provideControl,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if p.Dir != "" {
		return logging.New(filepath.Join(p.Dir, "daemon.log"), p.Profile, p.Config.Log.Level)
	}
	return logging.New(profile.LogPath(p.Profile), p.Profile, p.Config.Log.Level)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideRouter(b *bus.Bus) *nav.Router {
	return nav.NewRouter(b)
}

func provideMetrics() *metrics.Metrics {
	return metrics.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if p.Dir == "" {
		if err := profile.EnsureDir(p.Profile); err != nil {
			return nil, err
		}
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(p.dir())
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.Profile)
	if p.Dir != "" {
		dbPath = filepath.Join(p.Dir, "chatline.db")
	}
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
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideTokens(db *store.DB, logger *zap.Logger) *token.Store {
	return token.New(db, logger)
}

func provideStores(p Params, b *bus.Bus, m *metrics.Metrics) *state.Stores {
	return &state.Stores{
		Auth:      state.NewAuthStore(b),
		Chats:     state.NewChatStore(b),
		Groups:    state.NewGroupStore(b),
		Selection: state.NewSelectionStore(b),
		Stars:     state.NewStarStore(b),
		Pins:      state.NewPinStore(b),
		Toasts:    state.NewToastStore(b, m, p.Config.Client.ToastDuration.Duration),
	}
}

func provideSocket(p Params, tokens *token.Store, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *realtime.Socket {
	return realtime.NewSocket(realtime.Config{URL: p.Config.Server.SocketURL}, tokens, b, m, logger.Named("socket"))
}

func provideBridge(stores *state.Stores, guard *inflight.Guard, b *bus.Bus, logger *zap.Logger) *realtime.Bridge {
	return realtime.NewBridge(stores, guard, b, logger.Named("bridge"))
}

func provideExpiry(stores *state.Stores, machine *status.Machine, router *nav.Router, sock *realtime.Socket, logger *zap.Logger) *actions.Expiry {
	return actions.NewExpiry(stores, machine, router, sock, logger)
}

func provideAPI(p Params, tokens *token.Store, expiry *actions.Expiry, m *metrics.Metrics, logger *zap.Logger) *api.Client {
	return api.New(p.Config.Server.APIURL, tokens,
		api.WithTimeout(p.Config.Server.RequestTimeout.Duration),
		api.WithExpirer(expiry),
		api.WithMetrics(m),
		api.WithLogger(logger.Named("api")),
	)
}

func provideActions(
	p Params,
	client *api.Client,
	stores *state.Stores,
	guard *inflight.Guard,
	tokens *token.Store,
	machine *status.Machine,
	router *nav.Router,
	sock *realtime.Socket,
	db *store.DB,
	m *metrics.Metrics,
	logger *zap.Logger,
) *actions.Actions {
	return actions.New(actions.Deps{
		API:     client,
		Stores:  stores,
		Guard:   guard,
		Session: tokens,
		Machine: machine,
		Router:  router,
		Socket:  sock,
		Local:   db,
		Metrics: m,
		Logger:  logger,
		Settings: actions.Settings{
			MaxImageBytes: p.Config.Client.MaxImageBytes,
			RedirectDelay: p.Config.Client.RedirectDelay.Duration,
		},
	})
}

func provideNotify(p Params, client *api.Client, act *actions.Actions, logger *zap.Logger) *notify.Service {
	return notify.New(client, act, p.Config.Client.AppURL, logger.Named("notify"))
}

func providePanel(b *bus.Bus, logger *zap.Logger) *diag.Panel {
	return diag.New(b, diag.DefaultCapacity, logger.Named("diag"))
}

func provideInitializer(p Params, act *actions.Actions, n *notify.Service, panel *diag.Panel, logger *zap.Logger) *boot.Initializer {
	return boot.New(act, act, n, boot.Options{
		Timeout:    p.Config.Client.InitTimeout.Duration,
		Attempts:   p.Config.Client.InitAttempts,
		RetryDelay: time.Second,
		PushToken:  p.Config.Client.PushToken,
	}, logger.Named("boot")).WithRecover(panel.Recover)
}

func provideControl(
	p Params,
	act *actions.Actions,
	stores *state.Stores,
	machine *status.Machine,
	router *nav.Router,
	sock *realtime.Socket,
	n *notify.Service,
	panel *diag.Panel,
	b *bus.Bus,
	logger *zap.Logger,
) *control.Service {
	return control.NewService(control.Deps{
		Profile: p.Profile,
		Actions: act,
		Stores:  stores,
		Machine: machine,
		Router:  router,
		Socket:  control.SocketStateFunc(func() string { return string(sock.State()) }),
		Notify:  n,
		Panel:   panel,
		Bus:     b,
		Logger:  logger,
	})
}

type lifecycleParams struct {
	fx.In

	Params  Params
	Server  *Server
	Lock    *lock.Lock
	DB      *store.DB
	Socket  *realtime.Socket
	Bridge  *realtime.Bridge
	Init    *boot.Initializer
	Panel   *diag.Panel
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, lp lifecycleParams) {
	var (
		cancel     context.CancelFunc
		metricsSrv *http.Server
	)
	logger := lp.Logger
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())

			// Start the socket and the bridge applying its events.
			lp.Panel.Go(func() {
				if err := lp.Socket.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					lp.Panel.Capture(err)
				}
			})
			lp.Panel.Go(func() {
				_ = lp.Bridge.Run(ctx, lp.Socket.Events())
			})

			// Start gRPC server in background.
			lp.Panel.Go(func() {
				if err := lp.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			})

			if addr := lp.Params.Config.Metrics.Listen; addr != "" {
				metricsSrv = &http.Server{Addr: addr, Handler: lp.Metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
				lp.Panel.Go(func() {
					logger.Info("metrics listening", zap.String("addr", addr))
					if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("metrics server error", zap.Error(err))
					}
				})
			}

			// Restore the session and prefetch in the background.
			lp.Panel.Go(func() {
				res, err := lp.Init.Run(ctx)
				if err != nil {
					logger.Warn("start-up failed", zap.Error(err))
					return
				}
				logger.Info("start-up finished",
					zap.Bool("authenticated", res.Authenticated),
					zap.Int("attempts", res.Attempts),
					zap.Strings("failed", res.Failed),
				)
			})
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			lp.Server.Stop(ctx)
			if metricsSrv != nil {
				_ = metricsSrv.Shutdown(ctx)
			}
			if err := lp.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lp.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
