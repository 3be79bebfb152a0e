package db

import (
	"context"
	"fmt"

	"Gin_postgres_redis_loan_tracker/models"

	"gorm.io/gorm"
)

type RoleRepository interface {
	List(ctx context.Context) ([]models.Role, error)
	FindByID(ctx context.Context, id string) (*models.Role, error)
	FindByName(ctx context.Context, name string) (*models.Role, error)
	NameExists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, id string) error
	// CountUsers includes soft-deleted users: they still hold the foreign key.
	CountUsers(ctx context.Context, roleID string) (int64, error)
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) List(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

func (r *roleRepository) FindByID(ctx context.Context, id string) (*models.Role, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).First(&role, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("find role %s: %w", id, err)
	}
	return &role, nil
}

func (r *roleRepository) FindByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&role).Error; err != nil {
		return nil, fmt.Errorf("find role %q: %w", name, err)
	}
	return &role, nil
}

func (r *roleRepository) NameExists(ctx context.Context, name string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Role{}).
		Where("LOWER(name) = LOWER(?)", name).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check role name: %w", err)
	}
	return n > 0, nil
}

func (r *roleRepository) Create(ctx context.Context, role *models.Role) error {
	if err := r.db.WithContext(ctx).Create(role).Error; err != nil {
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

func (r *roleRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Role{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete role %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete role %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *roleRepository) CountUsers(ctx context.Context, roleID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.User{}).
		Where("role_id = ?", roleID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count users of role %s: %w", roleID, err)
	}
	return n, nil
}
