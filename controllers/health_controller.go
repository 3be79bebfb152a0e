package controllers

import (
	"net/http"
	"time"

	"Gin_postgres_redis_loan_tracker/app"

	"github.com/gin-gonic/gin"
)

// GET /healthz
func (s *Srv) Healthz(c *gin.Context) {
	ctx, cancel := withTimeout(c, 2*time.Second)
	defer cancel()

	status := app.H{"db": "ok", "redis": "ok"}
	code := http.StatusOK
	if sqlDB, err := s.db.DB(); err != nil {
		status["db"], code = err.Error(), http.StatusServiceUnavailable
	} else if err := sqlDB.PingContext(ctx); err != nil {
		status["db"], code = err.Error(), http.StatusServiceUnavailable
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		status["redis"], code = err.Error(), http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
