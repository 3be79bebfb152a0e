// Package logging is the structured logger shared by the server, the CLI
// and the services.
package logging

import "context"

// Logger takes key/value pairs after the message:
//
//	log.Info(ctx, "loan approved", "loan_id", id, "actor", actor.Identity())
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	With(args ...any) Logger
}
