package db

import (
	"context"
	"fmt"
	"strings"

	"Gin_postgres_redis_loan_tracker/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ItemSort string

const (
	ItemSortName        ItemSort = "Name"
	ItemSortCode        ItemSort = "Code"
	ItemSortCategory    ItemSort = "Category"
	ItemSortStatus      ItemSort = "Status"
	ItemSortCreatedDate ItemSort = "CreatedDate"
)

var itemSortColumns = map[ItemSort]string{
	ItemSortName:        "name",
	ItemSortCode:        "code",
	ItemSortCategory:    "category",
	ItemSortCreatedDate: "created_at",
}

// ItemQuery is an already-normalized filter; empty fields match everything.
type ItemQuery struct {
	Search   string
	Category string
	Status   models.ItemStatus
	SortBy   ItemSort
	Desc     bool
	Offset   int
	Limit    int
}

type ItemRepository interface {
	FindByID(ctx context.Context, id string) (*models.Item, error)
	// LockByID selects the row FOR UPDATE where the dialect supports it.
	LockByID(ctx context.Context, id string) (*models.Item, error)
	FindByCode(ctx context.Context, code string) (*models.Item, error)
	CodeExists(ctx context.Context, code, excludeID string) (bool, error)
	Query(ctx context.Context, q ItemQuery) ([]models.Item, int64, error)
	ListAll(ctx context.Context) ([]models.Item, error)
	ListByCategory(ctx context.Context, category string) ([]models.Item, error)
	ListByStatus(ctx context.Context, status models.ItemStatus) ([]models.Item, error)
	Categories(ctx context.Context) ([]string, error)
	CountByStatus(ctx context.Context) (map[models.ItemStatus]int64, error)
	Create(ctx context.Context, item *models.Item) error
	Update(ctx context.Context, item *models.Item) error
	SetStatus(ctx context.Context, id string, status models.ItemStatus) error
	Delete(ctx context.Context, id string) error
}

type itemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) FindByID(ctx context.Context, id string) (*models.Item, error) {
	var it models.Item
	if err := r.db.WithContext(ctx).First(&it, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("find item %s: %w", id, err)
	}
	return &it, nil
}

func (r *itemRepository) LockByID(ctx context.Context, id string) (*models.Item, error) {
	var it models.Item
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&it, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("lock item %s: %w", id, err)
	}
	return &it, nil
}

func (r *itemRepository) FindByCode(ctx context.Context, code string) (*models.Item, error) {
	var it models.Item
	err := r.db.WithContext(ctx).
		Where("LOWER(code) = ?", strings.ToLower(strings.TrimSpace(code))).
		First(&it).Error
	if err != nil {
		return nil, fmt.Errorf("find item by code %s: %w", code, err)
	}
	return &it, nil
}

func (r *itemRepository) CodeExists(ctx context.Context, code, excludeID string) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Item{}).
		Where("LOWER(code) = ?", strings.ToLower(strings.TrimSpace(code)))
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("check item code: %w", err)
	}
	return n > 0, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern escaped with '\'.
func escapeLike(s string) string { return likeEscaper.Replace(s) }

// Query filters, counts the filtered set, then sorts and pages it.
func (r *itemRepository) Query(ctx context.Context, q ItemQuery) ([]models.Item, int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.Item{})
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + escapeLike(strings.ToLower(s)) + "%"
		tx = tx.Where(
			`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(code) LIKE ? ESCAPE '\' OR `+
				`LOWER(category) LIKE ? ESCAPE '\' OR LOWER(COALESCE(location, '')) LIKE ? ESCAPE '\'`,
			like, like, like, like,
		)
	}
	if c := strings.TrimSpace(q.Category); c != "" {
		tx = tx.Where("LOWER(category) = ?", strings.ToLower(c))
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count items: %w", err)
	}

	var items []models.Item
	if total == 0 {
		return items, 0, nil
	}
	err := tx.Order(itemOrder(q.SortBy, q.Desc)).
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("query items: %w", err)
	}
	return items, total, nil
}

// itemOrder ranks status by declaration order rather than alphabetically.
// id breaks ties so pages do not overlap.
func itemOrder(sort ItemSort, desc bool) clause.OrderBy {
	if sort == ItemSortStatus {
		var b strings.Builder
		vars := make([]any, 0, len(models.ItemStatuses))
		b.WriteString("CASE status")
		for i, s := range models.ItemStatuses {
			fmt.Fprintf(&b, " WHEN ? THEN %d", i)
			vars = append(vars, string(s))
		}
		b.WriteString(" END")
		if desc {
			b.WriteString(" DESC")
		}
		b.WriteString(", id ASC")
		return clause.OrderBy{Expression: clause.Expr{SQL: b.String(), Vars: vars, WithoutParentheses: true}}
	}
	col, ok := itemSortColumns[sort]
	if !ok {
		col = itemSortColumns[ItemSortName]
	}
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: col}, Desc: desc},
		{Column: clause.Column{Name: "id"}},
	}}
}

func (r *itemRepository) ListAll(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (r *itemRepository) ListByCategory(ctx context.Context, category string) ([]models.Item, error) {
	var items []models.Item
	err := r.db.WithContext(ctx).
		Where("LOWER(category) = ?", strings.ToLower(strings.TrimSpace(category))).
		Order("name ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list items by category %s: %w", category, err)
	}
	return items, nil
}

func (r *itemRepository) ListByStatus(ctx context.Context, status models.ItemStatus) ([]models.Item, error) {
	var items []models.Item
	if err := r.db.WithContext(ctx).Where("status = ?", status).Order("name ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list items by status %s: %w", status, err)
	}
	return items, nil
}

func (r *itemRepository) Categories(ctx context.Context) ([]string, error) {
	var cats []string
	err := r.db.WithContext(ctx).Model(&models.Item{}).
		Distinct("category").
		Order("category ASC").
		Pluck("category", &cats).Error
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (r *itemRepository) CountByStatus(ctx context.Context) (map[models.ItemStatus]int64, error) {
	var rows []struct {
		Status models.ItemStatus
		N      int64
	}
	err := r.db.WithContext(ctx).Model(&models.Item{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count items by status: %w", err)
	}
	out := make(map[models.ItemStatus]int64, len(models.ItemStatuses))
	for _, s := range models.ItemStatuses {
		out[s] = 0
	}
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

func (r *itemRepository) Create(ctx context.Context, item *models.Item) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

func (r *itemRepository) Update(ctx context.Context, item *models.Item) error {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return fmt.Errorf("update item %s: %w", item.ID, err)
	}
	return nil
}

func (r *itemRepository) SetStatus(ctx context.Context, id string, status models.ItemStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Item{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("set item %s status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("set item %s status: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// Delete is a soft delete so loan history keeps its item.
func (r *itemRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Item{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete item %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete item %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}
