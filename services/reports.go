package services

import (
	"context"
	"fmt"
	"time"

	"Gin_postgres_redis_loan_tracker/apperr"
	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/logging"
	"Gin_postgres_redis_loan_tracker/models"
	"Gin_postgres_redis_loan_tracker/reports"
)

// MaxActivityRows caps the activity spreadsheet.
const MaxActivityRows = 1000

const (
	ReportItems     = "items"
	ReportInventory = "inventory"
	ReportLoans     = "loans"
	ReportActivity  = "activity"
)

// Report is a rendered document ready to be served or written to disk.
type Report struct {
	Name        string
	ContentType string
	Body        []byte
}

type ReportService struct {
	uow     db.UnitOfWork
	audit   *AuditService
	loans   *LoanService
	archive Archive
	log     logging.Logger
	now     func() time.Time
}

// NewReportService builds the service; archive may be nil.
func NewReportService(uow db.UnitOfWork, audit *AuditService, loans *LoanService, archive Archive, log logging.Logger, now func() time.Time) *ReportService {
	return &ReportService{uow: uow, audit: audit, loans: loans, archive: archive, log: log, now: now}
}

func (s *ReportService) ItemsPDF(ctx context.Context, actor Actor) (*Report, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	items, err := s.uow.Items().ListAll(ctx)
	if err != nil {
		return nil, err
	}
	at := s.now()
	body, err := reports.ItemsPDF(items, at)
	if err != nil {
		return nil, fmt.Errorf("render items pdf: %w", err)
	}
	return s.finish(ctx, actor, ReportItems, "pdf", reports.ContentTypePDF, at, body,
		fmt.Sprintf("Exported items report (%d items)", len(items)))
}

func (s *ReportService) InventoryStatusPDF(ctx context.Context, actor Actor) (*Report, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	sum, err := s.inventorySummary(ctx)
	if err != nil {
		return nil, err
	}
	body, err := reports.InventoryStatusPDF(sum)
	if err != nil {
		return nil, fmt.Errorf("render inventory pdf: %w", err)
	}
	return s.finish(ctx, actor, ReportInventory, "pdf", reports.ContentTypePDF, sum.GeneratedAt, body,
		fmt.Sprintf("Generated inventory status report (%d items)", sum.TotalItems))
}

func (s *ReportService) inventorySummary(ctx context.Context) (reports.InventorySummary, error) {
	byStatus, err := s.uow.Items().CountByStatus(ctx)
	if err != nil {
		return reports.InventorySummary{}, err
	}
	loansByStatus, err := s.uow.Loans().CountByStatus(ctx)
	if err != nil {
		return reports.InventorySummary{}, err
	}
	sum := reports.InventorySummary{GeneratedAt: s.now(), ByStatus: byStatus}
	for _, n := range byStatus {
		sum.TotalItems += n
	}
	for st, n := range loansByStatus {
		sum.TotalLoans += n
		if st.IsActive() {
			sum.ActiveLoans += n
		}
	}
	sum.PendingLoans = loansByStatus[models.LoanPending]
	return sum, nil
}

func (s *ReportService) LoansExcel(ctx context.Context, actor Actor) (*Report, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	loans, err := s.loans.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	body, err := reports.LoansExcel(loans)
	if err != nil {
		return nil, fmt.Errorf("render loans workbook: %w", err)
	}
	return s.finish(ctx, actor, ReportLoans, "xlsx", reports.ContentTypeXLSX, s.now(), body,
		fmt.Sprintf("Exported loans report (%d loans)", len(loans)))
}

// UserActivityExcel exports the audit trail between from and to, newest first,
// capped at MaxActivityRows.
func (s *ReportService) UserActivityExcel(ctx context.Context, actor Actor, from, to time.Time) (*Report, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, apperr.Validation("range end is before its start")
	}
	logs, err := s.uow.AuditLogs().ListBetween(ctx, from, to, MaxActivityRows)
	if err != nil {
		return nil, err
	}
	body, err := reports.UserActivityExcel(logs, from, to)
	if err != nil {
		return nil, fmt.Errorf("render activity workbook: %w", err)
	}
	return s.finish(ctx, actor, ReportActivity, "xlsx", reports.ContentTypeXLSX, s.now(), body,
		fmt.Sprintf("Exported user activity report (%d entries)", len(logs)))
}

// finish audits the generation and archives the payload when an archive is set.
// Archive failures are logged; the report is still returned.
func (s *ReportService) finish(ctx context.Context, actor Actor, kind, ext, contentType string, at time.Time, body []byte, desc string) (*Report, error) {
	name := fmt.Sprintf("%s-%s.%s", kind, at.Format("20060102-150405"), ext)
	err := s.uow.Transaction(ctx, actor, func(ctx context.Context, tx db.UnitOfWork) error {
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Table:       models.ReportsPseudoTable,
			Action:      models.ActionReport,
			PrimaryKey:  kind,
			New:         map[string]any{"name": name, "size": len(body)},
			Description: desc,
		})
	})
	if err != nil {
		return nil, err
	}
	reportsGenerated.WithLabelValues(kind).Inc()

	if s.archive != nil {
		key := fmt.Sprintf("reports/%s/%s.%s", kind, at.Format("20060102T150405Z"), ext)
		if err := s.archive.Put(ctx, key, body, contentType); err != nil {
			s.log.Warn(ctx, "archive report failed", "key", key, "error", err)
		} else {
			s.log.Debug(ctx, "report archived", "key", key)
		}
	}
	return &Report{Name: name, ContentType: contentType, Body: body}, nil
}

type DashboardStats struct {
	TotalItems     int64         `json:"totalItems"`
	AvailableItems int64         `json:"availableItems"`
	OnLoanItems    int64         `json:"onLoanItems"`
	TotalUsers     int64         `json:"totalUsers"`
	ActiveLoans    int64         `json:"activeLoans"`
	PendingLoans   int64         `json:"pendingLoans"`
	Overdue        []models.Loan `json:"overdue"`
}

// Dashboard: ActiveLoans counts Delivered loans only.
func (s *ReportService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	items, err := s.uow.Items().CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	loans, err := s.uow.Loans().CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.uow.Users().Count(ctx)
	if err != nil {
		return nil, err
	}
	overdue, err := s.loans.ListOverdue(ctx)
	if err != nil {
		return nil, err
	}
	if overdue == nil {
		overdue = []models.Loan{}
	}
	st := &DashboardStats{
		AvailableItems: items[models.ItemAvailable],
		OnLoanItems:    items[models.ItemOnLoan],
		TotalUsers:     users,
		ActiveLoans:    loans[models.LoanDelivered],
		PendingLoans:   loans[models.LoanPending],
		Overdue:        overdue,
	}
	for _, n := range items {
		st.TotalItems += n
	}
	return st, nil
}
