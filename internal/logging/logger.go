// Package logging defines the structured-logging interface used across the
// server and the client. The variadic args are key-value pairs:
//
//	log.Info(ctx, "entry saved", "id", e.ID, "darkSide", e.IsDarkSide)
package logging

import "context"

type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given pairs.
	With(args ...any) Logger
}
