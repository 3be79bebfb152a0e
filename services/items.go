package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"Gin_postgres_redis_loan_tracker/apperr"
	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/models"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 10
	MinPageSize     = 5
	MaxPageSize     = 100
)

// ItemFilter is the raw listing request. Normalize clamps it instead of rejecting it.
type ItemFilter struct {
	Search    string
	Category  string
	Status    string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

var itemSorts = map[string]db.ItemSort{
	"name":        db.ItemSortName,
	"code":        db.ItemSortCode,
	"category":    db.ItemSortCategory,
	"status":      db.ItemSortStatus,
	"createddate": db.ItemSortCreatedDate,
}

// Normalize: page < 1 becomes 1, page size 0 means the default and anything
// else is clamped to [MinPageSize, MaxPageSize], unknown sort fields mean Name,
// unknown orders mean asc, and an unknown status is dropped.
func (f ItemFilter) Normalize() ItemFilter {
	f.Search = strings.TrimSpace(f.Search)
	f.Category = strings.TrimSpace(f.Category)
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.PageSize == 0:
		f.PageSize = DefaultPageSize
	case f.PageSize < MinPageSize:
		f.PageSize = MinPageSize
	case f.PageSize > MaxPageSize:
		f.PageSize = MaxPageSize
	}
	if s, ok := itemSorts[strings.ToLower(strings.TrimSpace(f.SortBy))]; ok {
		f.SortBy = string(s)
	} else {
		f.SortBy = string(db.ItemSortName)
	}
	if strings.EqualFold(strings.TrimSpace(f.SortOrder), "desc") {
		f.SortOrder = "desc"
	} else {
		f.SortOrder = "asc"
	}
	if st, ok := models.ParseItemStatus(f.Status); ok {
		f.Status = string(st)
	} else {
		f.Status = ""
	}
	return f
}

// PagedResult is one page of a filtered, sorted listing.
type PagedResult[T any] struct {
	Items       []T   `json:"items"`
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	PageSize    int   `json:"pageSize"`
	TotalItems  int64 `json:"totalItems"`
	HasPrevious bool  `json:"hasPrevious"`
	HasNext     bool  `json:"hasNext"`
	// StartItem and EndItem are 1-based positions of the page's rows, 0 when empty.
	StartItem int64 `json:"startItem"`
	EndItem   int64 `json:"endItem"`
}

func NewPagedResult[T any](items []T, total int64, page, pageSize int) PagedResult[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	r := PagedResult[T]{
		Items:       items,
		CurrentPage: page,
		TotalPages:  totalPages,
		PageSize:    pageSize,
		TotalItems:  total,
		HasPrevious: page > 1,
		HasNext:     page < totalPages,
	}
	if total > 0 && len(items) > 0 {
		r.StartItem = int64(page-1)*int64(pageSize) + 1
		r.EndItem = r.StartItem + int64(len(items)) - 1
	}
	return r
}

type ItemService struct {
	uow   db.UnitOfWork
	audit *AuditService
}

func NewItemService(uow db.UnitOfWork, audit *AuditService) *ItemService {
	return &ItemService{uow: uow, audit: audit}
}

// Query runs the catalog listing: filter, count, sort, page.
func (s *ItemService) Query(ctx context.Context, f ItemFilter) (PagedResult[models.Item], error) {
	f = f.Normalize()
	items, total, err := s.uow.Items().Query(ctx, db.ItemQuery{
		Search:   f.Search,
		Category: f.Category,
		Status:   models.ItemStatus(f.Status),
		SortBy:   db.ItemSort(f.SortBy),
		Desc:     f.SortOrder == "desc",
		Offset:   (f.Page - 1) * f.PageSize,
		Limit:    f.PageSize,
	})
	if err != nil {
		return PagedResult[models.Item]{}, err
	}
	return NewPagedResult(items, total, f.Page, f.PageSize), nil
}

func (s *ItemService) Get(ctx context.Context, id string) (*models.Item, error) {
	it, err := s.uow.Items().FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "item %s not found", id)
	}
	return it, nil
}

func (s *ItemService) ListAll(ctx context.Context) ([]models.Item, error) {
	return s.uow.Items().ListAll(ctx)
}

func (s *ItemService) ListByCategory(ctx context.Context, category string) ([]models.Item, error) {
	return s.uow.Items().ListByCategory(ctx, category)
}

func (s *ItemService) ListByStatus(ctx context.Context, status string) ([]models.Item, error) {
	st, ok := models.ParseItemStatus(status)
	if !ok {
		return nil, apperr.Validation("unknown item status %q", status)
	}
	return s.uow.Items().ListByStatus(ctx, st)
}

func (s *ItemService) Categories(ctx context.Context) ([]string, error) {
	return s.uow.Items().Categories(ctx)
}

// IsAvailableForLoan: status Available and no active loan.
func (s *ItemService) IsAvailableForLoan(ctx context.Context, id string) (bool, error) {
	it, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return itemAvailable(ctx, s.uow, it)
}

func itemAvailable(ctx context.Context, uow db.UnitOfWork, it *models.Item) (bool, error) {
	if it.Status != models.ItemAvailable {
		return false, nil
	}
	active, err := uow.Loans().HasActiveForItem(ctx, it.ID)
	if err != nil {
		return false, err
	}
	return !active, nil
}

type ItemInput struct {
	Code     string
	Name     string
	Category string
	Location string
	// empty means Available on create and unchanged on update
	Status string
}

func (in ItemInput) validate() (ItemInput, models.ItemStatus, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Location = strings.TrimSpace(in.Location)
	for _, f := range []struct {
		name, value string
		max         int
		required    bool
	}{
		{"code", in.Code, 20, true},
		{"name", in.Name, 100, true},
		{"category", in.Category, 50, true},
		{"location", in.Location, 100, false},
	} {
		if f.required && f.value == "" {
			return in, "", apperr.Validation("%s is required", f.name)
		}
		if utf8.RuneCountInString(f.value) > f.max {
			return in, "", apperr.Validation("%s must be at most %d characters", f.name, f.max)
		}
	}
	var status models.ItemStatus
	if in.Status != "" {
		st, ok := models.ParseItemStatus(in.Status)
		if !ok {
			return in, "", apperr.Validation("unknown item status %q", in.Status)
		}
		status = st
	}
	return in, status, nil
}

func (s *ItemService) Create(ctx context.Context, actor Actor, in ItemInput) (*models.Item, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	in, status, err := in.validate()
	if err != nil {
		return nil, err
	}
	if status == "" {
		status = models.ItemAvailable
	}
	it := &models.Item{
		ID:       uuid.NewString(),
		Code:     in.Code,
		Name:     in.Name,
		Category: in.Category,
		Location: in.Location,
		Status:   status,
	}
	err = s.uow.Transaction(ctx, actor, func(ctx context.Context, tx db.UnitOfWork) error {
		exists, err := tx.Items().CodeExists(ctx, it.Code, "")
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("an item with code %s already exists", it.Code)
		}
		if err := tx.Items().Create(ctx, it); err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.Conflict("an item with code %s already exists", it.Code)
			}
			return err
		}
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Table:       models.ItemTable,
			Action:      models.ActionCreate,
			PrimaryKey:  it.ID,
			New:         it,
			Description: "Created item " + it.Code,
		})
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (s *ItemService) Update(ctx context.Context, actor Actor, id string, in ItemInput) (*models.Item, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	in, status, err := in.validate()
	if err != nil {
		return nil, err
	}
	var it *models.Item
	err = s.uow.Transaction(ctx, actor, func(ctx context.Context, tx db.UnitOfWork) error {
		var err error
		it, err = tx.Items().FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "item %s not found", id)
		}
		before := *it

		exists, err := tx.Items().CodeExists(ctx, in.Code, id)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("an item with code %s already exists", in.Code)
		}
		it.Code, it.Name, it.Category, it.Location = in.Code, in.Name, in.Category, in.Location
		if status != "" {
			it.Status = status
		}
		if err := tx.Items().Update(ctx, it); err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.Conflict("an item with code %s already exists", in.Code)
			}
			return err
		}
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Table:      models.ItemTable,
			Action:     models.ActionUpdate,
			PrimaryKey: it.ID,
			Old:        before,
			New:        it,
		})
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

// Delete soft-deletes an item without active loans.
func (s *ItemService) Delete(ctx context.Context, actor Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return s.uow.Transaction(ctx, actor, func(ctx context.Context, tx db.UnitOfWork) error {
		it, err := tx.Items().FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "item %s not found", id)
		}
		active, err := tx.Loans().HasActiveForItem(ctx, id)
		if err != nil {
			return err
		}
		if active {
			return apperr.Conflict("item %s has active loans", it.Code)
		}
		if err := tx.Items().Delete(ctx, id); err != nil {
			return notFoundOr(err, "item %s not found", id)
		}
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Table:       models.ItemTable,
			Action:      models.ActionDelete,
			PrimaryKey:  id,
			Old:         it,
			Description: "Deleted item " + it.Code,
		})
	})
}
