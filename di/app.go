package di

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/KOMKZ/go-yogan-assets/cache"
	"github.com/KOMKZ/go-yogan-assets/config"
	"github.com/KOMKZ/go-yogan-assets/diag"
	"github.com/KOMKZ/go-yogan-assets/event"
	"github.com/KOMKZ/go-yogan-assets/logger"
	"github.com/KOMKZ/go-yogan-assets/manager"
	"github.com/KOMKZ/go-yogan-assets/monitor"
	"github.com/KOMKZ/go-yogan-assets/pipeline"
	"github.com/KOMKZ/go-yogan-assets/quality"
	"github.com/samber/do/v2"
	"go.uber.org/zap"
)

// AppState lifecycle state
type AppState int

const (
	StateInit AppState = iota
	StateSetup
	StateRunning
	StateStopping
	StateStopped
)

func (s AppState) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateSetup:
		return "Setup"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// App owns the injector and the start/stop order of the subsystem.
type App struct {
	injector *do.RootScope

	loadOpts config.LoadOptions
	cfg      *config.AppConfig // preset config skips loading
	registry *manager.Registry

	logger *logger.CtxZapLogger

	// resolved in Setup so Shutdown never builds anything
	loggers    *logger.Manager
	appCfg     *config.AppConfig
	dispatcher *event.Dispatcher
	cache      *cache.AssetCache
	pipeline   *pipeline.Pipeline
	monitor    *monitor.Monitor
	controller *quality.Controller
	manager    *manager.Manager
	diag       *diag.Server

	mu           sync.RWMutex
	state        AppState
	detachSample event.UnsubscribeFunc

	name    string
	version string
}

// AppOption configures an App
type AppOption func(*App)

// WithLoadOptions where the configuration is read from
func WithLoadOptions(opts config.LoadOptions) AppOption {
	return func(a *App) { a.loadOpts = opts }
}

// WithConfig uses cfg instead of loading
func WithConfig(cfg config.AppConfig) AppOption {
	return func(a *App) { a.cfg = &cfg }
}

// WithRegistry the asset factories
func WithRegistry(reg *manager.Registry) AppOption {
	return func(a *App) { a.registry = reg }
}

// WithName application name, used for the root logger
func WithName(name string) AppOption {
	return func(a *App) { a.name = name }
}

// WithVersion application version
func WithVersion(version string) AppOption {
	return func(a *App) { a.version = version }
}

// NewApp creates an unconfigured app
func NewApp(opts ...AppOption) *App {
	a := &App{
		injector: do.New(),
		logger:   logger.NewNop(),
		name:     "scene-assets",
		version:  "0.0.1",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Injector the root scope
func (a *App) Injector() *do.RootScope { return a.injector }

// Logger application logger, no-op before Setup
func (a *App) Logger() *logger.CtxZapLogger { return a.logger }

// State current lifecycle state
func (a *App) State() AppState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *App) setState(s AppState) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Config effective configuration, nil before Setup
func (a *App) Config() *config.AppConfig { return a.appCfg }

// Manager the asset manager, nil before Setup
func (a *App) Manager() *manager.Manager { return a.manager }

// Monitor the performance monitor, nil before Setup
func (a *App) Monitor() *monitor.Monitor { return a.monitor }

// Controller the quality controller, nil before Setup
func (a *App) Controller() *quality.Controller { return a.controller }

// Setup loads the configuration and builds the component graph.
func (a *App) Setup() error {
	a.setState(StateSetup)
	if a.registry == nil {
		return fmt.Errorf("setup %s: no asset registry", a.name)
	}

	if a.cfg != nil {
		do.Provide(a.injector, config.ProvideValue(*a.cfg))
	} else {
		do.Provide(a.injector, config.Provide(a.loadOpts))
	}
	do.ProvideValue(a.injector, a.registry)
	Register(a.injector)

	cfg, err := do.Invoke[*config.AppConfig](a.injector)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.appCfg = cfg
	a.loggers = do.MustInvoke[*logger.Manager](a.injector)
	a.logger = a.loggers.GetLogger(a.name)

	// building the manager builds everything it depends on
	mgr, err := do.Invoke[*manager.Manager](a.injector)
	if err != nil {
		return fmt.Errorf("build asset manager: %w", err)
	}
	a.manager = mgr
	a.dispatcher = do.MustInvoke[*event.Dispatcher](a.injector)
	a.cache = do.MustInvoke[*cache.AssetCache](a.injector)
	a.pipeline = do.MustInvoke[*pipeline.Pipeline](a.injector)
	a.controller = do.MustInvoke[*quality.Controller](a.injector)
	if a.monitor, err = do.Invoke[*monitor.Monitor](a.injector); err != nil {
		return fmt.Errorf("build performance monitor: %w", err)
	}
	if cfg.Diag.Enabled {
		if a.diag, err = do.Invoke[*diag.Server](a.injector); err != nil {
			return fmt.Errorf("build diagnostics server: %w", err)
		}
	}
	a.logger.Info("asset subsystem configured",
		zap.String("name", a.name),
		zap.String("version", a.version),
		zap.Strings("config_files", a.loadedFiles()),
	)
	return nil
}

func (a *App) loadedFiles() []string {
	if a.loadOpts.File == "" {
		return nil
	}
	return []string{a.loadOpts.File}
}

// Start attaches the controller to the monitor, starts sampling, preloads
// the priority categories and serves diagnostics when enabled.
func (a *App) Start(ctx context.Context) error {
	if a.manager == nil {
		return fmt.Errorf("start %s: Setup not called", a.name)
	}
	detach, err := a.controller.Attach(a.monitor)
	if err != nil {
		return fmt.Errorf("attach quality controller: %w", err)
	}
	a.mu.Lock()
	a.detachSample = detach
	a.mu.Unlock()

	if err := a.monitor.Start(ctx); err != nil {
		return err
	}

	report := a.manager.Preload(ctx)
	a.logger.InfoCtx(ctx, "priority assets preloaded",
		zap.Int("loaded", len(report.Loaded)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("skipped", len(report.Skipped)),
	)

	if a.diag != nil {
		if err := a.diag.Start(); err != nil {
			return err
		}
	}

	a.setState(StateRunning)
	a.logger.InfoCtx(ctx, "asset subsystem running", zap.String("quality", a.controller.Current().String()))
	return nil
}

// Run sets up, starts and blocks until ctx ends or SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	if err := a.Setup(); err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	a.logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Shutdown stops components in reverse dependency order. Cached resources
// are disposed exactly once.
func (a *App) Shutdown(ctx context.Context) error {
	a.setState(StateStopping)
	a.logger.Info("shutting down asset subsystem")

	if a.diag != nil {
		if err := a.diag.Shutdown(ctx); err != nil {
			a.logger.Warn("diagnostics shutdown failed", zap.Error(err))
		}
	}

	a.mu.Lock()
	detach := a.detachSample
	a.detachSample = nil
	a.mu.Unlock()
	if detach != nil {
		detach()
	}

	if a.monitor != nil {
		if err := a.monitor.Close(); err != nil {
			a.logger.Warn("monitor stop failed", zap.Error(err))
		}
	}
	if a.manager != nil {
		a.manager.Close()
	}
	if a.cache != nil {
		a.cache.DisposeAll()
	}
	if a.pipeline != nil {
		a.pipeline.Close()
	}
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}

	// flushes telemetry, which implements do.ShutdownerWithContextAndError
	if err := a.injector.Shutdown(); err != nil {
		a.logger.Warn("injector shutdown failed", zap.Error(err))
	}

	a.setState(StateStopped)
	a.logger.Info("asset subsystem stopped")
	if a.loggers != nil {
		a.loggers.Close()
	}
	return nil
}
