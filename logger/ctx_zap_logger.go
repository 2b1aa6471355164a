package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// CtxZapLogger context-aware zap wrapper.
// The module is bound at creation; call sites only pass ctx.
// A nil *CtxZapLogger is valid and discards everything, so components can
// take an optional logger without nil checks at every call site.
type CtxZapLogger struct {
	base   *zap.Logger
	module string
	cfg    *ManagerConfig
}

// NewNop returns a logger that discards everything.
func NewNop() *CtxZapLogger {
	return &CtxZapLogger{base: zap.NewNop(), module: "nop"}
}

// NewObserved returns a logger backed by an in-memory core, for tests that
// assert on emitted signals.
func NewObserved(module string, level zapcore.Level) (*CtxZapLogger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &CtxZapLogger{
		base:   zap.New(core).With(zap.String("module", module)),
		module: module,
	}, logs
}

// Module returns the bound module name.
func (l *CtxZapLogger) Module() string {
	if l == nil {
		return ""
	}
	return l.module
}

func (l *CtxZapLogger) DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.base.Debug(msg, l.enrich(ctx, fields)...)
}

func (l *CtxZapLogger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.base.Info(msg, l.enrich(ctx, fields)...)
}

func (l *CtxZapLogger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.base.Warn(msg, l.enrich(ctx, fields)...)
}

func (l *CtxZapLogger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.base.Error(msg, l.enrich(ctx, fields)...)
}

// Debug logs without a context.
func (l *CtxZapLogger) Debug(msg string, fields ...zap.Field) {
	l.DebugCtx(context.Background(), msg, fields...)
}

// Info logs without a context.
func (l *CtxZapLogger) Info(msg string, fields ...zap.Field) {
	l.InfoCtx(context.Background(), msg, fields...)
}

// Warn logs without a context.
func (l *CtxZapLogger) Warn(msg string, fields ...zap.Field) {
	l.WarnCtx(context.Background(), msg, fields...)
}

// Error logs without a context.
func (l *CtxZapLogger) Error(msg string, fields ...zap.Field) {
	l.ErrorCtx(context.Background(), msg, fields...)
}

// With returns a child logger with preset fields.
//
//	keyLog := log.With(zap.String("key", string(key)))
//	keyLog.WarnCtx(ctx, "dispose failed")
func (l *CtxZapLogger) With(fields ...zap.Field) *CtxZapLogger {
	if l == nil {
		return nil
	}
	return &CtxZapLogger{base: l.base.With(fields...), module: l.module, cfg: l.cfg}
}

// GetZapLogger exposes the underlying logger for third-party integrations.
func (l *CtxZapLogger) GetZapLogger() *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.base
}

// enrich adds app_name and the otel trace id when present.
func (l *CtxZapLogger) enrich(ctx context.Context, fields []zap.Field) []zap.Field {
	if l.cfg == nil {
		return fields
	}
	enriched := make([]zap.Field, 0, len(fields)+2)
	if l.cfg.AppName != "" {
		enriched = append(enriched, zap.String("app_name", l.cfg.AppName))
	}
	if l.cfg.EnableTraceID && ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			enriched = append(enriched, zap.String(l.cfg.TraceIDFieldName, sc.TraceID().String()))
		}
	}
	return append(enriched, fields...)
}
