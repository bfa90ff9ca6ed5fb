// Package log provides context-scoped structured logging on top of zap,
// following the pattern of pachyderm's internal/log + internal/pctx pair:
// a *zap.Logger travels on the context, named children are created as work
// descends into subsystems, and call sites log through the context rather
// than a package-global logger.
package log

import (
	"context"

	"go.uber.org/zap"
)

type loggerKey struct{}

// New returns a development-friendly zap.Logger. Callers embedding this
// module in a daemon should build their own zap.Logger (e.g. from a config
// file) and pass it to AddLogger instead.
func New() *zap.Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		// zap.NewDevelopment only fails on a broken encoder config; ours is
		// the library default and cannot fail.
		panic(err)
	}
	return l
}

// AddLogger attaches l to ctx, replacing any logger already present.
func AddLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// Extract returns the logger attached to ctx, or a no-op logger if none was attached.
func Extract(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}

// Child returns a context whose logger is named name, nested under the
// current logger's name (zap dot-joins Named calls).
func Child(ctx context.Context, name string, fields ...zap.Field) context.Context {
	l := Extract(ctx).Named(name)
	if len(fields) > 0 {
		l = l.With(fields...)
	}
	return AddLogger(ctx, l)
}

// Debug logs at debug level using the logger on ctx.
func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	Extract(ctx).Debug(msg, fields...)
}

// Info logs at info level using the logger on ctx.
func Info(ctx context.Context, msg string, fields ...zap.Field) {
	Extract(ctx).Info(msg, fields...)
}

// Error logs at error level using the logger on ctx.
func Error(ctx context.Context, msg string, fields ...zap.Field) {
	Extract(ctx).Error(msg, fields...)
}

// Errorp is a zap.Field for an *error, following the teacher's convention of
// naming error fields "error" and skipping the field entirely when nil.
func Errorp(err *error) zap.Field {
	if err == nil || *err == nil {
		return zap.Skip()
	}
	return zap.Error(*err)
}
