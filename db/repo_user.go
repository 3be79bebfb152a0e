package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Gin_postgres_redis_loan_tracker/models"

	"gorm.io/gorm"
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// EmailExists ignores the user with excludeID, if given.
	EmailExists(ctx context.Context, email, excludeID string) (bool, error)
	List(ctx context.Context) ([]models.User, error)
	ListByRole(ctx context.Context, roleID string) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id string) error
	TouchLogin(ctx context.Context, id, ip, ua string) error
	TouchSeen(ctx context.Context, id string) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Preload("Role").First(&u, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return &u, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Preload("Role").
		Where("email = ?", normalizeEmail(email)).
		First(&u).Error
	if err != nil {
		return nil, fmt.Errorf("find user by email %s: %w", email, err)
	}
	return &u, nil
}

func (r *userRepository) EmailExists(ctx context.Context, email, excludeID string) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", normalizeEmail(email))
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return n > 0, nil
}

func (r *userRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Preload("Role").Order("name ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *userRepository) ListByRole(ctx context.Context, roleID string) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Preload("Role").
		Where("role_id = ?", roleID).
		Order("name ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list users by role %s: %w", roleID, err)
	}
	return users, nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *userRepository) Create(ctx context.Context, u *models.User) error {
	u.Email = normalizeEmail(u.Email)
	if err := r.db.WithContext(ctx).Omit("Role").Create(u).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, u *models.User) error {
	u.Email = normalizeEmail(u.Email)
	if err := r.db.WithContext(ctx).Omit("Role").Save(u).Error; err != nil {
		return fmt.Errorf("update user %s: %w", u.ID, err)
	}
	return nil
}

// Delete is a soft delete; loans keep pointing at the row.
func (r *userRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete user %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete user %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// TouchLogin bumps the login counters without touching the audit stamps.
func (r *userRepository) TouchLogin(ctx context.Context, id, ip, ua string) error {
	now := time.Now().UTC()
	if len(ua) > 500 {
		ua = ua[:500]
	}
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"last_login_at": now,
			"last_seen_at":  now,
			"login_count":   gorm.Expr("COALESCE(login_count, 0) + 1"),
			"last_login_ip": ip,
			"last_login_ua": ua,
		}).Error
}

func (r *userRepository) TouchSeen(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_seen_at", time.Now().UTC()).Error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
