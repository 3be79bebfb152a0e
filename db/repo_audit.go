package db

import (
	"context"
	"fmt"
	"time"

	"Gin_postgres_redis_loan_tracker/models"

	"gorm.io/gorm"
)

// AuditLogRepository only appends and reads.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	ListByEntity(ctx context.Context, table, primaryKey string) ([]models.AuditLog, error)
	// ListByActor filters by action_by; zero from/to leave that side open.
	ListByActor(ctx context.Context, actionBy string, from, to time.Time) ([]models.AuditLog, error)
	// ListBetween returns at most limit entries, newest first; limit <= 0 means all.
	ListBetween(ctx context.Context, from, to time.Time, limit int) ([]models.AuditLog, error)
}

type auditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (r *auditLogRepository) ListByEntity(ctx context.Context, table, primaryKey string) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := r.db.WithContext(ctx).
		Where("table_name = ? AND primary_key = ?", table, primaryKey).
		Order("action_date DESC, id DESC").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("list audit logs of %s/%s: %w", table, primaryKey, err)
	}
	return logs, nil
}

func (r *auditLogRepository) ListByActor(ctx context.Context, actionBy string, from, to time.Time) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	q := between(r.db.WithContext(ctx).Where("action_by = ?", actionBy), from, to)
	if err := q.Order("action_date DESC, id DESC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list audit logs of %s: %w", actionBy, err)
	}
	return logs, nil
}

func (r *auditLogRepository) ListBetween(ctx context.Context, from, to time.Time, limit int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	q := between(r.db.WithContext(ctx), from, to).Order("action_date DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}

func between(tx *gorm.DB, from, to time.Time) *gorm.DB {
	if !from.IsZero() {
		tx = tx.Where("action_date >= ?", from.UTC())
	}
	if !to.IsZero() {
		tx = tx.Where("action_date <= ?", to.UTC())
	}
	return tx
}
