package db

import (
	"context"
	"fmt"
	"time"

	"Gin_postgres_redis_loan_tracker/models"

	"gorm.io/gorm"
)

type LoanRepository interface {
	FindByID(ctx context.Context, id string) (*models.Loan, error)
	ListAll(ctx context.Context) ([]models.Loan, error)
	ListByStatus(ctx context.Context, status models.LoanStatus) ([]models.Loan, error)
	ListByUser(ctx context.Context, userID string) ([]models.Loan, error)
	ListPending(ctx context.Context) ([]models.Loan, error)
	ListActiveByItem(ctx context.Context, itemID string) ([]models.Loan, error)
	ListOverdue(ctx context.Context, deliveredBefore time.Time) ([]models.Loan, error)
	HasActiveForItem(ctx context.Context, itemID string) (bool, error)
	HasActiveForUser(ctx context.Context, userID string) (bool, error)
	CountByStatus(ctx context.Context) (map[models.LoanStatus]int64, error)
	Create(ctx context.Context, loan *models.Loan) error
	Update(ctx context.Context, loan *models.Loan) error
}

type loanRepository struct {
	db *gorm.DB
}

func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

// withRefs preloads user and item, deleted ones included, for history views.
func (r *loanRepository) withRefs(ctx context.Context) *gorm.DB {
	unscoped := func(tx *gorm.DB) *gorm.DB { return tx.Unscoped() }
	return r.db.WithContext(ctx).Preload("User", unscoped).Preload("Item", unscoped)
}

func (r *loanRepository) FindByID(ctx context.Context, id string) (*models.Loan, error) {
	var l models.Loan
	if err := r.withRefs(ctx).First(&l, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("find loan %s: %w", id, err)
	}
	return &l, nil
}

func (r *loanRepository) ListAll(ctx context.Context) ([]models.Loan, error) {
	var loans []models.Loan
	if err := r.withRefs(ctx).Order("request_date DESC").Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	return loans, nil
}

func (r *loanRepository) ListByStatus(ctx context.Context, status models.LoanStatus) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.withRefs(ctx).Where("status = ?", status).Order("request_date DESC").Find(&loans).Error
	if err != nil {
		return nil, fmt.Errorf("list loans by status %s: %w", status, err)
	}
	return loans, nil
}

func (r *loanRepository) ListByUser(ctx context.Context, userID string) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.withRefs(ctx).Where("user_id = ?", userID).Order("request_date DESC").Find(&loans).Error
	if err != nil {
		return nil, fmt.Errorf("list loans of user %s: %w", userID, err)
	}
	return loans, nil
}

// ListPending is oldest first: the approval queue.
func (r *loanRepository) ListPending(ctx context.Context) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.withRefs(ctx).Where("status = ?", models.LoanPending).Order("request_date ASC").Find(&loans).Error
	if err != nil {
		return nil, fmt.Errorf("list pending loans: %w", err)
	}
	return loans, nil
}

func (r *loanRepository) ListActiveByItem(ctx context.Context, itemID string) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.withRefs(ctx).
		Where("item_id = ? AND status IN ?", itemID, models.ActiveLoanStatuses).
		Order("request_date DESC").
		Find(&loans).Error
	if err != nil {
		return nil, fmt.Errorf("list active loans of item %s: %w", itemID, err)
	}
	return loans, nil
}

func (r *loanRepository) ListOverdue(ctx context.Context, deliveredBefore time.Time) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.withRefs(ctx).
		Where("status = ? AND return_date IS NULL AND delivery_date < ?", models.LoanDelivered, deliveredBefore).
		Order("delivery_date ASC").
		Find(&loans).Error
	if err != nil {
		return nil, fmt.Errorf("list overdue loans: %w", err)
	}
	return loans, nil
}

func (r *loanRepository) HasActiveForItem(ctx context.Context, itemID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Loan{}).
		Where("item_id = ? AND status IN ?", itemID, models.ActiveLoanStatuses).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check active loans of item %s: %w", itemID, err)
	}
	return n > 0, nil
}

func (r *loanRepository) HasActiveForUser(ctx context.Context, userID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Loan{}).
		Where("user_id = ? AND status IN ?", userID, models.ActiveLoanStatuses).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check active loans of user %s: %w", userID, err)
	}
	return n > 0, nil
}

func (r *loanRepository) CountByStatus(ctx context.Context) (map[models.LoanStatus]int64, error) {
	var rows []struct {
		Status models.LoanStatus
		N      int64
	}
	err := r.db.WithContext(ctx).Model(&models.Loan{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count loans by status: %w", err)
	}
	out := make(map[models.LoanStatus]int64, len(models.LoanStatuses))
	for _, s := range models.LoanStatuses {
		out[s] = 0
	}
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

func (r *loanRepository) Create(ctx context.Context, loan *models.Loan) error {
	if err := r.db.WithContext(ctx).Omit("User", "Item").Create(loan).Error; err != nil {
		return fmt.Errorf("create loan: %w", err)
	}
	return nil
}

func (r *loanRepository) Update(ctx context.Context, loan *models.Loan) error {
	if err := r.db.WithContext(ctx).Omit("User", "Item").Save(loan).Error; err != nil {
		return fmt.Errorf("update loan %s: %w", loan.ID, err)
	}
	return nil
}
