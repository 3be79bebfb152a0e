package db

import (
	"context"
	"errors"
	"fmt"

	"Gin_postgres_redis_loan_tracker/models"

	"gorm.io/gorm"
)

var ErrNoTransaction = errors.New("unit of work has no open transaction")

// UnitOfWork groups the repositories over one connection or one transaction.
// Writes inside Transaction commit together or not at all.
type UnitOfWork interface {
	Roles() RoleRepository
	Users() UserRepository
	Items() ItemRepository
	Loans() LoanRepository
	AuditLogs() AuditLogRepository
	Credentials() CredentialRepository

	// Begin opens a transaction. The caller must Commit or Rollback it.
	Begin(ctx context.Context) (UnitOfWork, error)
	Commit() error
	Rollback() error
	// SaveChanges flushes the open transaction; it is Commit under another name.
	SaveChanges() error
	// Transaction runs fn in a transaction stamped with actor. It commits when
	// fn returns nil and rolls back on error or panic. Nested calls join the
	// open transaction.
	Transaction(ctx context.Context, actor models.Actor, fn func(ctx context.Context, tx UnitOfWork) error) error
}

type gormUnitOfWork struct {
	db   *gorm.DB
	inTx bool
}

func NewUnitOfWork(gdb *gorm.DB) UnitOfWork {
	return &gormUnitOfWork{db: gdb}
}

func (u *gormUnitOfWork) Roles() RoleRepository             { return NewRoleRepository(u.db) }
func (u *gormUnitOfWork) Users() UserRepository             { return NewUserRepository(u.db) }
func (u *gormUnitOfWork) Items() ItemRepository             { return NewItemRepository(u.db) }
func (u *gormUnitOfWork) Loans() LoanRepository             { return NewLoanRepository(u.db) }
func (u *gormUnitOfWork) AuditLogs() AuditLogRepository     { return NewAuditLogRepository(u.db) }
func (u *gormUnitOfWork) Credentials() CredentialRepository { return NewCredentialRepository(u.db) }

func (u *gormUnitOfWork) Begin(ctx context.Context) (UnitOfWork, error) {
	if u.inTx {
		return u, nil
	}
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin: %w", tx.Error)
	}
	return &gormUnitOfWork{db: tx, inTx: true}, nil
}

func (u *gormUnitOfWork) Commit() error {
	if !u.inTx {
		return ErrNoTransaction
	}
	if err := u.db.Commit().Error; err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (u *gormUnitOfWork) SaveChanges() error { return u.Commit() }

func (u *gormUnitOfWork) Rollback() error {
	if !u.inTx {
		return ErrNoTransaction
	}
	if err := u.db.Rollback().Error; err != nil && !errors.Is(err, gorm.ErrInvalidTransaction) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (u *gormUnitOfWork) Transaction(ctx context.Context, actor models.Actor, fn func(ctx context.Context, tx UnitOfWork) error) (err error) {
	ctx = models.WithActor(ctx, actor)
	if u.inTx {
		return fn(ctx, u)
	}

	tx, err := u.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}
