// Package pctx builds the named, logger-carrying contexts used across the
// transaction engine, mirroring pachyderm's internal/pctx: a background
// context is created once per long-running process or top-level call, and
// Child derives named sub-contexts as work descends into subsystems so log
// lines carry a breadcrumb of where they came from.
package pctx

import (
	"context"

	"go.uber.org/zap"

	"github.com/BryanQuigley/systemd/internal/log"
)

// Background returns a context for a top-level entry point (a CLI command,
// a single Activate call made outside of any larger request), named process.
func Background(process string) context.Context {
	return log.AddLogger(context.Background(), log.New().Named(process))
}

// TODO returns a context for use where a proper context has not been
// threaded through yet. Prefer Background or Child in new code.
func TODO() context.Context {
	return log.AddLogger(context.TODO(), log.New())
}

// Child returns a named child of ctx, carrying ctx's deadline/cancellation
// and a logger named "parent.name" with fields attached.
func Child(ctx context.Context, name string, fields ...zap.Field) context.Context {
	return log.Child(ctx, name, fields...)
}
