package controllers

import (
	"net/http"
	"time"

	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/models"
	"Gin_postgres_redis_loan_tracker/services"

	"github.com/gin-gonic/gin"
)

type createLoanReq struct {
	UserID       string     `json:"userId"`
	ItemID       string     `json:"itemId" binding:"required"`
	DeliveryDate *time.Time `json:"deliveryDate"`
	Comments     string     `json:"comments"`
}

// POST /api/loans
func (s *Srv) CreateLoan(c *gin.Context) {
	var in createLoanReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "itemId is required")
		return
	}
	l, err := s.Svc.Loans.Create(c.Request.Context(), app.ActorOf(c), services.CreateLoanInput{
		UserID:       in.UserID,
		ItemID:       in.ItemID,
		DeliveryDate: in.DeliveryDate,
		Comments:     in.Comments,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"loan": l})
}

// GET /api/loans?status=
// Operators only ever see their own loans.
func (s *Srv) ListLoans(c *gin.Context) {
	actor := app.ActorOf(c)
	var (
		loans []models.Loan
		err   error
	)
	if actor.IsAdmin() {
		loans, err = s.Svc.Loans.ListByStatus(c.Request.Context(), c.Query("status"))
	} else {
		loans, err = s.Svc.Loans.ListByUser(c.Request.Context(), actor.UserID)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"loans": loans})
}

// GET /api/loans/mine
func (s *Srv) MyLoans(c *gin.Context) {
	loans, err := s.Svc.Loans.ListByUser(c.Request.Context(), app.ActorOf(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"loans": loans})
}

// GET /api/loans/pending
func (s *Srv) PendingLoans(c *gin.Context) {
	loans, err := s.Svc.Loans.ListPending(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"loans": loans})
}

// GET /api/loans/overdue
func (s *Srv) OverdueLoans(c *gin.Context) {
	loans, err := s.Svc.Loans.ListOverdue(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"loans": loans, "cutoff": s.Svc.Loans.OverdueCutoff()})
}

// GET /api/items/:id/loans
func (s *Srv) ActiveLoansForItem(c *gin.Context) {
	loans, err := s.Svc.Loans.ListActiveByItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"loans": loans})
}

// GET /api/loans/:id
func (s *Srv) GetLoan(c *gin.Context) {
	l, err := s.Svc.Loans.Get(c.Request.Context(), app.ActorOf(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"loan": l})
}

type decisionReq struct {
	Approved *bool  `json:"approved" binding:"required"`
	Comments string `json:"comments"`
}

// POST /api/loans/:id/decision
func (s *Srv) DecideLoan(c *gin.Context) {
	var in decisionReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "approved is required")
		return
	}
	l, err := s.Svc.Loans.ApproveOrReject(c.Request.Context(), app.ActorOf(c), c.Param("id"), *in.Approved, in.Comments)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"loan": l})
}

// POST /api/loans/:id/deliver
func (s *Srv) DeliverLoan(c *gin.Context) {
	l, err := s.Svc.Loans.Deliver(c.Request.Context(), app.ActorOf(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"loan": l})
}

type returnReq struct {
	ReturnDate *time.Time `json:"returnDate"`
	Comments   string     `json:"comments"`
}

// POST /api/loans/:id/return
func (s *Srv) ReturnLoan(c *gin.Context) {
	var in returnReq
	// an empty body means "returned now, no comment"
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, "invalid body")
			return
		}
	}
	var at time.Time
	if in.ReturnDate != nil {
		at = *in.ReturnDate
	}
	l, err := s.Svc.Loans.Return(c.Request.Context(), app.ActorOf(c), c.Param("id"), at, in.Comments)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"loan": l})
}
