package di

import (
	"context"
	"fmt"

	"github.com/KOMKZ/go-yogan-assets/asset"
	"github.com/KOMKZ/go-yogan-assets/cache"
	"github.com/KOMKZ/go-yogan-assets/config"
	"github.com/KOMKZ/go-yogan-assets/diag"
	"github.com/KOMKZ/go-yogan-assets/event"
	"github.com/KOMKZ/go-yogan-assets/health"
	"github.com/KOMKZ/go-yogan-assets/logger"
	"github.com/KOMKZ/go-yogan-assets/manager"
	"github.com/KOMKZ/go-yogan-assets/monitor"
	"github.com/KOMKZ/go-yogan-assets/pipeline"
	"github.com/KOMKZ/go-yogan-assets/quality"
	"github.com/KOMKZ/go-yogan-assets/telemetry"
	"github.com/samber/do/v2"
)

// meterScope instrument scope shared by every component
const meterScope = "scene-assets"

// Register adds every component provider. *config.AppConfig and
// *manager.Registry must be provided by the caller.
func Register(i do.Injector) {
	do.Provide(i, ProvideLoggerManager)
	do.Provide(i, ProvideTelemetry)
	do.Provide(i, ProvideDispatcher)
	do.Provide(i, ProvideCache)
	do.Provide(i, ProvidePipeline)
	do.Provide(i, ProvideMonitor)
	do.Provide(i, ProvideController)
	do.Provide(i, ProvideManager)
	do.Provide(i, ProvideHealth)
	do.Provide(i, ProvideDiag)
}

// ProvideLoggerManager one zap logger per module
func ProvideLoggerManager(i do.Injector) (*logger.Manager, error) {
	cfg := do.MustInvoke[*config.AppConfig](i)
	return logger.NewManager(cfg.Logger), nil
}

func moduleLogger(i do.Injector, module string) *logger.CtxZapLogger {
	lm, err := do.Invoke[*logger.Manager](i)
	if err != nil {
		return logger.NewNop()
	}
	return lm.GetLogger(module)
}

// ProvideTelemetry started metric and trace providers
func ProvideTelemetry(i do.Injector) (*telemetry.Manager, error) {
	cfg := do.MustInvoke[*config.AppConfig](i)
	tm := telemetry.NewManager(cfg.Telemetry, moduleLogger(i, "telemetry"))
	if err := tm.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("start telemetry: %w", err)
	}
	return tm, nil
}

// ProvideDispatcher bus shared by the monitor, the controller and the manager
func ProvideDispatcher(i do.Injector) (*event.Dispatcher, error) {
	cfg := do.MustInvoke[*config.AppConfig](i)
	return event.NewDispatcher(
		event.WithMaxListeners(cfg.Monitor.MaxSubscribers+8),
		event.WithLogger(moduleLogger(i, "event")),
	), nil
}

// ProvideCache the asset cache with category priorities
func ProvideCache(i do.Injector) (*cache.AssetCache, error) {
	cfg := do.MustInvoke[*config.AppConfig](i)
	tm := do.MustInvoke[*telemetry.Manager](i)
	return cache.New(cfg.Cache,
		cache.WithLogger(moduleLogger(i, "cache")),
		cache.WithPriority(asset.DefaultPriority(cfg.Cache.PreloadPriorityKeys)),
		cache.WithMetrics(tm.Builder(meterScope)),
	)
}

// ProvidePipeline resolution pipeline
func ProvidePipeline(i do.Injector) (*pipeline.Pipeline, error) {
	cfg := do.MustInvoke[*config.AppConfig](i)
	tm := do.MustInvoke[*telemetry.Manager](i)
	return pipeline.New(cfg.Pipeline,
		pipeline.WithLogger(moduleLogger(i, "pipeline")),
		pipeline.WithMetrics(tm.Builder(meterScope)),
	)
}

// ProvideMonitor stopped performance monitor on the shared bus
func ProvideMonitor(i do.Injector) (*monitor.Monitor, error) {
	cfg := do.MustInvoke[*config.AppConfig](i)
	tm := do.MustInvoke[*telemetry.Manager](i)
	return monitor.New(cfg.Monitor,
		monitor.WithLogger(moduleLogger(i, "monitor")),
		monitor.WithDispatcher(do.MustInvoke[*event.Dispatcher](i)),
		monitor.WithMetrics(tm.Builder(meterScope)),
	)
}

// ProvideController quality controller sweeping the cache on every change.
// An empty quality.initial probes the local device.
func ProvideController(i do.Injector) (*quality.Controller, error) {
	cfg := do.MustInvoke[*config.AppConfig](i)
	tm := do.MustInvoke[*telemetry.Manager](i)

	initial, err := quality.InitialLevel(cfg.Quality, quality.LocalDevice())
	if err != nil {
		return nil, err
	}
	return quality.NewController(cfg.Quality, initial,
		quality.WithInvalidator(do.MustInvoke[*cache.AssetCache](i)),
		quality.WithDispatcher(do.MustInvoke[*event.Dispatcher](i)),
		quality.WithLogger(moduleLogger(i, "quality")),
		quality.WithMetrics(tm.Builder(meterScope)),
	)
}

// ProvideManager facade over registry, cache, pipeline and controller
func ProvideManager(i do.Injector) (*manager.Manager, error) {
	cfg := do.MustInvoke[*config.AppConfig](i)
	reg, err := do.Invoke[*manager.Registry](i)
	if err != nil {
		return nil, fmt.Errorf("asset factories not registered: %w", err)
	}
	tm := do.MustInvoke[*telemetry.Manager](i)

	mcfg := cfg.Manager
	mcfg.RewarmOnQualityChange = cfg.Quality.RewarmOnQualityChange
	return manager.New(mcfg, reg,
		do.MustInvoke[*cache.AssetCache](i),
		do.MustInvoke[*pipeline.Pipeline](i),
		do.MustInvoke[*quality.Controller](i),
		manager.WithLogger(moduleLogger(i, "manager")),
		manager.WithTracer(tm.Tracer(meterScope)),
		manager.WithDispatcher(do.MustInvoke[*event.Dispatcher](i)),
	)
}

// ProvideHealth cache occupancy and frame rate checks
func ProvideHealth(i do.Injector) (*health.Aggregator, error) {
	cfg := do.MustInvoke[*config.AppConfig](i)
	agg := health.NewAggregator(cfg.Health.Timeout)
	agg.Register(health.CacheChecker(do.MustInvoke[*cache.AssetCache](i), cfg.Health.CacheUtilizationPct))
	agg.Register(health.FrameRateChecker(do.MustInvoke[*monitor.Monitor](i), cfg.Health.MinFPS))
	agg.SetMetadata("service", cfg.Telemetry.ServiceName)
	return agg, nil
}

// ProvideDiag diagnostics server; health is attached only when enabled
func ProvideDiag(i do.Injector) (*diag.Server, error) {
	cfg := do.MustInvoke[*config.AppConfig](i)
	tm := do.MustInvoke[*telemetry.Manager](i)

	var agg *health.Aggregator
	if cfg.Health.Enabled {
		agg = do.MustInvoke[*health.Aggregator](i)
	}
	opts := []diag.Option{diag.WithLogger(moduleLogger(i, "diag"))}
	if tm.TracesEnabled() {
		opts = append(opts, diag.WithTracerProvider(tm.TracerProvider()))
	}
	return diag.NewServer(cfg.Diag,
		do.MustInvoke[*manager.Manager](i),
		do.MustInvoke[*monitor.Monitor](i),
		agg, opts...)
}
