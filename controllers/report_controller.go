package controllers

import (
	"context"
	"net/http"
	"time"

	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/services"

	"github.com/gin-gonic/gin"
)

func (s *Srv) sendReport(c *gin.Context, build func(ctx context.Context) (*services.Report, error)) {
	ctx, cancel := withTimeout(c, s.Cfg.ReportTimeout)
	defer cancel()
	rep, err := build(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+rep.Name+`"`)
	c.Data(http.StatusOK, rep.ContentType, rep.Body)
}

// GET /api/reports/items
func (s *Srv) ItemsReport(c *gin.Context) {
	actor := app.ActorOf(c)
	s.sendReport(c, func(ctx context.Context) (*services.Report, error) {
		return s.Svc.Reports.ItemsPDF(ctx, actor)
	})
}

// GET /api/reports/inventory
func (s *Srv) InventoryReport(c *gin.Context) {
	actor := app.ActorOf(c)
	s.sendReport(c, func(ctx context.Context) (*services.Report, error) {
		return s.Svc.Reports.InventoryStatusPDF(ctx, actor)
	})
}

// GET /api/reports/loans
func (s *Srv) LoansReport(c *gin.Context) {
	actor := app.ActorOf(c)
	s.sendReport(c, func(ctx context.Context) (*services.Report, error) {
		return s.Svc.Reports.LoansExcel(ctx, actor)
	})
}

// GET /api/reports/activity?from=&to=
func (s *Srv) ActivityReport(c *gin.Context) {
	from, to, ok := timeRange(c, time.Now().UTC())
	if !ok {
		return
	}
	actor := app.ActorOf(c)
	s.sendReport(c, func(ctx context.Context) (*services.Report, error) {
		return s.Svc.Reports.UserActivityExcel(ctx, actor, from, to)
	})
}

// GET /api/dashboard
func (s *Srv) Dashboard(c *gin.Context) {
	st, err := s.Svc.Reports.Dashboard(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
