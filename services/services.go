// Package services implements the use cases on top of the unit of work.
// Every mutating call takes the acting models.Actor explicitly and writes its
// audit row in the same transaction as the change.
package services

import (
	"context"
	"time"

	"Gin_postgres_redis_loan_tracker/apperr"
	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/logging"
)

// SessionRevoker ends every session of a user. Implemented by the redis session store.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string) error
}

// Archive stores a copy of a generated report.
type Archive interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

type Options struct {
	Logger       logging.Logger
	OverdueAfter time.Duration
	Sessions     SessionRevoker
	Archive      Archive
	Now          func() time.Time
}

type Services struct {
	Audit   *AuditService
	Auth    *AuthService
	Users   *UserService
	Items   *ItemService
	Loans   *LoanService
	Reports *ReportService
}

func New(uow db.UnitOfWork, opts Options) *Services {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.OverdueAfter <= 0 {
		opts.OverdueAfter = DefaultOverdueAfter
	}

	audit := NewAuditService(uow, opts.Now)
	loans := NewLoanService(uow, audit, opts.Logger.With("component", "loans"), opts.OverdueAfter, opts.Now)
	return &Services{
		Audit:   audit,
		Auth:    NewAuthService(uow, audit, opts.Logger.With("component", "auth")),
		Users:   NewUserService(uow, audit, opts.Sessions, opts.Logger.With("component", "users")),
		Items:   NewItemService(uow, audit),
		Loans:   loans,
		Reports: NewReportService(uow, audit, loans, opts.Archive, opts.Logger.With("component", "reports"), opts.Now),
	}
}

// notFoundOr turns a missing row into a NotFound error and passes anything else through.
func notFoundOr(err error, format string, args ...any) error {
	if db.IsNotFound(err) {
		return apperr.NotFound(format, args...)
	}
	return err
}

func requireAdmin(actor Actor) error {
	if !actor.Authenticated() {
		return apperr.Unauthenticated("authentication required")
	}
	if !actor.IsAdmin() {
		return apperr.Forbidden("administrator role required")
	}
	return nil
}
