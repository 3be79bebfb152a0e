package services

import (
	"context"
	"time"

	"Gin_postgres_redis_loan_tracker/apperr"
	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/logging"
	"Gin_postgres_redis_loan_tracker/models"

	"github.com/google/uuid"
)

const DefaultOverdueAfter = 7 * 24 * time.Hour

type LoanService struct {
	uow          db.UnitOfWork
	audit        *AuditService
	log          logging.Logger
	overdueAfter time.Duration
	now          func() time.Time
}

func NewLoanService(uow db.UnitOfWork, audit *AuditService, log logging.Logger, overdueAfter time.Duration, now func() time.Time) *LoanService {
	if overdueAfter <= 0 {
		overdueAfter = DefaultOverdueAfter
	}
	return &LoanService{uow: uow, audit: audit, log: log, overdueAfter: overdueAfter, now: now}
}

type CreateLoanInput struct {
	UserID string
	ItemID string
	// planned delivery; Deliver overwrites it with the actual instant
	DeliveryDate *time.Time
	Comments     string
}

// loanChange is the audited part of a loan before and after a transition.
type loanChange struct {
	Status       models.LoanStatus `json:"status"`
	DeliveryDate *time.Time        `json:"deliveryDate,omitempty"`
	ReturnDate   *time.Time        `json:"returnDate,omitempty"`
	Comments     string            `json:"comments,omitempty"`
}

func changeOf(l *models.Loan) loanChange {
	return loanChange{Status: l.Status, DeliveryDate: l.DeliveryDate, ReturnDate: l.ReturnDate, Comments: l.Comments}
}

// Create opens a Pending loan and puts the item on loan. Operators may only
// request loans for themselves.
func (s *LoanService) Create(ctx context.Context, actor Actor, in CreateLoanInput) (*models.Loan, error) {
	if !actor.Authenticated() {
		return nil, apperr.Unauthenticated("authentication required")
	}
	if in.UserID == "" {
		in.UserID = actor.UserID
	}
	if !actor.IsAdmin() && in.UserID != actor.UserID {
		return nil, apperr.Forbidden("operators can only request loans for themselves")
	}
	comments := models.AppendComments("", in.Comments)
	if models.CommentsTooLong(comments) {
		return nil, apperr.Validation("comments must be at most %d characters", models.MaxCommentsLength)
	}

	var loan *models.Loan
	err := s.uow.Transaction(ctx, actor, func(ctx context.Context, tx db.UnitOfWork) error {
		u, err := tx.Users().FindByID(ctx, in.UserID)
		if err != nil || !u.IsActive {
			if err != nil && !db.IsNotFound(err) {
				return err
			}
			return apperr.NotFound("active user %s not found", in.UserID)
		}
		it, err := tx.Items().LockByID(ctx, in.ItemID)
		if err != nil {
			return notFoundOr(err, "item %s not found", in.ItemID)
		}
		ok, err := itemAvailable(ctx, tx, it)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("item not available")
		}

		loan = &models.Loan{
			ID:           uuid.NewString(),
			UserID:       u.ID,
			ItemID:       it.ID,
			RequestDate:  s.now(),
			DeliveryDate: in.DeliveryDate,
			Status:       models.LoanPending,
			Comments:     comments,
		}
		if err := tx.Loans().Create(ctx, loan); err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.Conflict("item not available")
			}
			return err
		}
		if err := tx.Items().SetStatus(ctx, it.ID, models.ItemOnLoan); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Table:      models.LoanTable,
			Action:     models.ActionCreate,
			PrimaryKey: loan.ID,
			New: map[string]any{
				"userId":      u.ID,
				"userName":    u.Name,
				"itemId":      it.ID,
				"itemName":    it.Name,
				"requestDate": loan.RequestDate,
				"status":      loan.Status,
			},
			Description: "Loan request created",
		})
	})
	if err != nil {
		return nil, err
	}
	loanTransitions.WithLabelValues(string(models.LoanPending)).Inc()
	return s.uow.Loans().FindByID(ctx, loan.ID)
}

// ApproveOrReject settles a Pending loan. Rejection releases the item.
func (s *LoanService) ApproveOrReject(ctx context.Context, actor Actor, loanID string, approved bool, comments string) (*models.Loan, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	next, action, desc := models.LoanRejected, models.ActionReject, "Loan rejected"
	if approved {
		next, action, desc = models.LoanApproved, models.ActionApprove, "Loan approved"
	}
	return s.transition(ctx, actor, loanID, next, action, desc, func(l *models.Loan) error {
		return appendLoanComments(l, comments)
	})
}

// Deliver hands an Approved loan over and stamps the delivery instant.
func (s *LoanService) Deliver(ctx context.Context, actor Actor, loanID string) (*models.Loan, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, loanID, models.LoanDelivered, models.ActionDeliver, "Item delivered to user", func(l *models.Loan) error {
		at := s.now()
		l.DeliveryDate = &at
		return nil
	})
}

// Return closes a Delivered loan at returnDate (now when zero) and releases the item.
// The borrower or an administrator may return it.
func (s *LoanService) Return(ctx context.Context, actor Actor, loanID string, returnDate time.Time, comments string) (*models.Loan, error) {
	if !actor.Authenticated() {
		return nil, apperr.Unauthenticated("authentication required")
	}
	if returnDate.IsZero() {
		returnDate = s.now()
	}
	returnDate = returnDate.UTC()
	return s.transition(ctx, actor, loanID, models.LoanReturned, models.ActionReturn, "Item returned", func(l *models.Loan) error {
		if !actor.IsAdmin() && l.UserID != actor.UserID {
			return apperr.Forbidden("only the borrower or an administrator can return this loan")
		}
		if l.DeliveryDate != nil && returnDate.Before(*l.DeliveryDate) {
			return apperr.Validation("return date is before the delivery date")
		}
		l.ReturnDate = &returnDate
		return appendLoanComments(l, comments)
	})
}

func appendLoanComments(l *models.Loan, add string) error {
	c := models.AppendComments(l.Comments, add)
	if models.CommentsTooLong(c) {
		return apperr.Validation("comments must be at most %d characters", models.MaxCommentsLength)
	}
	l.Comments = c
	return nil
}

// transition moves a loan to next if the state machine allows it, applies
// mutate, releases the item when next is terminal, and audits the change.
func (s *LoanService) transition(ctx context.Context, actor Actor, loanID string, next models.LoanStatus, action, desc string, mutate func(*models.Loan) error) (*models.Loan, error) {
	err := s.uow.Transaction(ctx, actor, func(ctx context.Context, tx db.UnitOfWork) error {
		l, err := tx.Loans().FindByID(ctx, loanID)
		if err != nil {
			return notFoundOr(err, "loan %s not found", loanID)
		}
		if !l.Status.CanTransitionTo(next) {
			return apperr.Conflict("loan %s is %s and cannot become %s", loanID, l.Status, next)
		}
		before := changeOf(l)
		l.Status = next
		if err := mutate(l); err != nil {
			return err
		}
		if err := tx.Loans().Update(ctx, l); err != nil {
			return err
		}
		if next.ReleasesItem() {
			if err := tx.Items().SetStatus(ctx, l.ItemID, models.ItemAvailable); err != nil {
				return err
			}
		}
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Table:       models.LoanTable,
			Action:      action,
			PrimaryKey:  l.ID,
			Old:         before,
			New:         changeOf(l),
			Description: desc,
		})
	})
	if err != nil {
		return nil, err
	}
	loanTransitions.WithLabelValues(string(next)).Inc()
	s.log.Info(ctx, "loan transition", "loan", loanID, "status", next, "by", actor.Identity())
	return s.uow.Loans().FindByID(ctx, loanID)
}

// Get returns a loan to its borrower or to an administrator.
func (s *LoanService) Get(ctx context.Context, actor Actor, id string) (*models.Loan, error) {
	l, err := s.uow.Loans().FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "loan %s not found", id)
	}
	if !actor.IsAdmin() && l.UserID != actor.UserID {
		// hide other people's loans
		return nil, apperr.NotFound("loan %s not found", id)
	}
	return l, nil
}

func (s *LoanService) ListAll(ctx context.Context) ([]models.Loan, error) {
	return s.uow.Loans().ListAll(ctx)
}

// ListByStatus lists loans in one status; an empty status lists all.
func (s *LoanService) ListByStatus(ctx context.Context, status string) ([]models.Loan, error) {
	if status == "" {
		return s.ListAll(ctx)
	}
	st, ok := models.ParseLoanStatus(status)
	if !ok {
		return nil, apperr.Validation("unknown loan status %q", status)
	}
	return s.uow.Loans().ListByStatus(ctx, st)
}

func (s *LoanService) ListByUser(ctx context.Context, userID string) ([]models.Loan, error) {
	return s.uow.Loans().ListByUser(ctx, userID)
}

func (s *LoanService) ListPending(ctx context.Context) ([]models.Loan, error) {
	return s.uow.Loans().ListPending(ctx)
}

func (s *LoanService) ListActiveByItem(ctx context.Context, itemID string) ([]models.Loan, error) {
	return s.uow.Loans().ListActiveByItem(ctx, itemID)
}

// ListOverdue lists Delivered loans without a return date delivered more than
// the overdue threshold ago.
func (s *LoanService) ListOverdue(ctx context.Context) ([]models.Loan, error) {
	return s.uow.Loans().ListOverdue(ctx, s.OverdueCutoff())
}

func (s *LoanService) OverdueCutoff() time.Time {
	return s.now().Add(-s.overdueAfter)
}
