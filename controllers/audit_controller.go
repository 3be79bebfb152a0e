package controllers

import (
	"net/http"
	"time"

	"Gin_postgres_redis_loan_tracker/app"

	"github.com/gin-gonic/gin"
)

const defaultActivityWindow = 30 * 24 * time.Hour

// timeRange reads ?from=&to= as RFC 3339. Missing bounds default to the
// last 30 days.
func timeRange(c *gin.Context, now time.Time) (from, to time.Time, ok bool) {
	to, from = now, now.Add(-defaultActivityWindow)
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(c, "to must be RFC 3339")
			return from, to, false
		}
		to = t
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(c, "from must be RFC 3339")
			return from, to, false
		}
		from = t
	}
	if to.Before(from) {
		badRequest(c, "to is before from")
		return from, to, false
	}
	return from, to, true
}

// GET /api/audit/entity/:table/:key
func (s *Srv) EntityHistory(c *gin.Context) {
	logs, err := s.Svc.Audit.EntityHistory(c.Request.Context(), c.Param("table"), c.Param("key"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"entries": logs})
}

// GET /api/audit/user?actionBy=&from=&to=
func (s *Srv) UserActivity(c *gin.Context) {
	by := c.Query("actionBy")
	if by == "" {
		badRequest(c, "actionBy is required")
		return
	}
	from, to, ok := timeRange(c, time.Now().UTC())
	if !ok {
		return
	}
	logs, err := s.Svc.Audit.UserActivity(c.Request.Context(), by, from, to)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"entries": logs})
}

// GET /api/audit?from=&to=
func (s *Srv) SystemActivity(c *gin.Context) {
	from, to, ok := timeRange(c, time.Now().UTC())
	if !ok {
		return
	}
	logs, err := s.Svc.Audit.SystemActivity(c.Request.Context(), from, to)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"entries": logs})
}
