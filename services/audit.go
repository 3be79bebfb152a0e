package services

import (
	"context"
	"fmt"
	"time"

	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/models"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"gorm.io/datatypes"
)

var snapshotJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// AuditEntry describes one audited change. Old is nil for creations,
// New is nil for deletions.
type AuditEntry struct {
	Table       string
	Action      string
	PrimaryKey  string
	Old         any
	New         any
	Description string
}

type AuditService struct {
	uow db.UnitOfWork
	now func() time.Time
}

func NewAuditService(uow db.UnitOfWork, now func() time.Time) *AuditService {
	return &AuditService{uow: uow, now: now}
}

// Record appends the entry through tx. Errors are returned, never swallowed:
// the caller's transaction must roll back with it.
func (s *AuditService) Record(ctx context.Context, tx db.UnitOfWork, actor Actor, e AuditEntry) error {
	oldValues, err := snapshot(e.Old)
	if err != nil {
		return fmt.Errorf("snapshot old values: %w", err)
	}
	newValues, err := snapshot(e.New)
	if err != nil {
		return fmt.Errorf("snapshot new values: %w", err)
	}
	// v7 ids sort by creation, which orders entries sharing an action date
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("audit id: %w", err)
	}
	entry := &models.AuditLog{
		ID:          id.String(),
		Table:       e.Table,
		Action:      e.Action,
		PrimaryKey:  e.PrimaryKey,
		OldValues:   oldValues,
		NewValues:   newValues,
		ActionDate:  s.now(),
		ActionBy:    actor.Identity(),
		Description: clip(e.Description, 200),
		IPAddress:   clip(actor.IP, 45),
		UserAgent:   clip(actor.UserAgent, 500),
	}
	if err := tx.AuditLogs().Create(ctx, entry); err != nil {
		return fmt.Errorf("audit %s %s/%s: %w", e.Action, e.Table, e.PrimaryKey, err)
	}
	return nil
}

func (s *AuditService) EntityHistory(ctx context.Context, table, primaryKey string) ([]models.AuditLog, error) {
	return s.uow.AuditLogs().ListByEntity(ctx, table, primaryKey)
}

// UserActivity lists what actionBy did; zero bounds are open.
func (s *AuditService) UserActivity(ctx context.Context, actionBy string, from, to time.Time) ([]models.AuditLog, error) {
	return s.uow.AuditLogs().ListByActor(ctx, actionBy, from, to)
}

func (s *AuditService) SystemActivity(ctx context.Context, from, to time.Time) ([]models.AuditLog, error) {
	return s.uow.AuditLogs().ListBetween(ctx, from, to, 0)
}

func snapshot(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := snapshotJSON.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
