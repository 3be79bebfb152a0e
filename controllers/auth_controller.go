package controllers

import (
	"net/http"

	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/services"

	"github.com/gin-gonic/gin"
)

type registerReq struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /api/auth/register
func (s *Srv) Register(c *gin.Context) {
	var in registerReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "name, email and password are required")
		return
	}
	u, err := s.Svc.Auth.Register(c.Request.Context(), services.RegisterInput{
		Name:     in.Name,
		Email:    in.Email,
		Password: in.Password,
	}, app.ActorOf(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.issueSession(c, u); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"user": u})
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /api/auth/login
func (s *Srv) Login(c *gin.Context) {
	var in loginReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	u, err := s.Svc.Auth.Login(c.Request.Context(), in.Email, in.Password, app.ActorOf(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.issueSession(c, u); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u})
}

// POST /api/auth/logout
func (s *Srv) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.Svc.Auth.Logout(ctx, app.ActorOf(c)); err != nil {
		s.fail(c, err)
		return
	}
	if sid := app.SessionID(c); sid != "" {
		if err := s.AppSess.Delete(ctx, sid); err != nil {
			s.Log.Warn(ctx, "delete session", "error", err)
		}
	}
	s.clearAppCookie(c)
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /api/auth/me
func (s *Srv) Me(c *gin.Context) {
	u, ok := app.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	n, err := s.Svc.Auth.Passkeys(c.Request.Context(), u.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u, "isAdmin": app.ActorOf(c).IsAdmin(), "passkeys": len(n)})
}
