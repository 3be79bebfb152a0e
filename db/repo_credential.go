package db

import (
	"context"
	"fmt"
	"time"

	"Gin_postgres_redis_loan_tracker/models"

	"gorm.io/gorm"
)

// CredentialRepository stores passkeys.
type CredentialRepository interface {
	Add(ctx context.Context, c *models.Credential) error
	ListByUser(ctx context.Context, userID string) ([]models.Credential, error)
	Count(ctx context.Context, userID string) (int64, error)
	FindOwner(ctx context.Context, credID []byte) (*models.User, *models.Credential, error)
	// RecordUse stores the new signature counter and clone flag after a login.
	RecordUse(ctx context.Context, credID []byte, signCount uint32, cloneWarning bool) error
	DeleteByUser(ctx context.Context, userID string) error
}

type credentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) Add(ctx context.Context, c *models.Credential) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("add credential: %w", err)
	}
	return nil
}

func (r *credentialRepository) ListByUser(ctx context.Context, userID string) ([]models.Credential, error) {
	var cs []models.Credential
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&cs).Error; err != nil {
		return nil, fmt.Errorf("list credentials of %s: %w", userID, err)
	}
	return cs, nil
}

func (r *credentialRepository) Count(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Credential{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

func (r *credentialRepository) FindOwner(ctx context.Context, credID []byte) (*models.User, *models.Credential, error) {
	var c models.Credential
	if err := r.db.WithContext(ctx).Where("credential_id = ?", credID).First(&c).Error; err != nil {
		return nil, nil, fmt.Errorf("find credential: %w", err)
	}
	var u models.User
	if err := r.db.WithContext(ctx).Preload("Role").First(&u, "id = ?", c.UserID).Error; err != nil {
		return nil, nil, fmt.Errorf("find credential owner %s: %w", c.UserID, err)
	}
	return &u, &c, nil
}

func (r *credentialRepository) RecordUse(ctx context.Context, credID []byte, signCount uint32, cloneWarning bool) error {
	return r.db.WithContext(ctx).Model(&models.Credential{}).
		Where("credential_id = ?", credID).
		Updates(map[string]any{
			"sign_count":    signCount,
			"clone_warning": cloneWarning,
			"last_used_at":  time.Now().UTC(),
		}).Error
}

func (r *credentialRepository) DeleteByUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Credential{}).Error
}
