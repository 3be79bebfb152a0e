package app

import (
	"errors"
	"net/http"

	"Gin_postgres_redis_loan_tracker/apperr"
	"Gin_postgres_redis_loan_tracker/logging"
	"Gin_postgres_redis_loan_tracker/models"
	"Gin_postgres_redis_loan_tracker/services"
	"Gin_postgres_redis_loan_tracker/session"

	"github.com/gin-gonic/gin"
)

const AppSessionCookie = "app_session"

const (
	ctxActor     = "actor"
	ctxUser      = "user"
	ctxUserID    = "userID"
	ctxSessionID = "sessionID"
)

// AuthRequired resolves the session cookie to an active user and stores the
// acting models.Actor in the context.
func AuthRequired(appSess *session.AppSessionStore, auth *services.AuthService, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		sid, err := c.Cookie(AppSessionCookie)
		if err != nil || sid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		as, err := appSess.Get(ctx, sid)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				log.Error(ctx, "load session", "error", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid session"})
			return
		}

		u, err := auth.CurrentUser(ctx, as.UserID)
		if err != nil {
			if apperr.KindOf(err) != apperr.KindUnauthenticated {
				log.Error(ctx, "resolve session user", "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, H{"error": "internal error"})
				return
			}
			_ = appSess.Delete(ctx, sid)
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}

		c.Set(ctxUser, u)
		c.Set(ctxUserID, u.ID)
		c.Set(ctxSessionID, sid)
		c.Set(ctxActor, models.Actor{
			UserID:    u.ID,
			Email:     u.Email,
			Role:      u.RoleName(),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Next()
	}
}

// ActorOf returns the authenticated actor, or an anonymous one that still
// carries the client's IP and user agent.
func ActorOf(c *gin.Context) models.Actor {
	if v, ok := c.Get(ctxActor); ok {
		if a, ok := v.(models.Actor); ok {
			return a
		}
	}
	return models.Actor{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// CurrentUser is the user loaded by AuthRequired.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

func SessionID(c *gin.Context) string { return c.GetString(ctxSessionID) }

// RoleRequired lets the request through when the actor holds one of roles.
func RoleRequired(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		a := ActorOf(c)
		if !a.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		for _, r := range roles {
			if a.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden"})
	}
}

func AdminOnly() gin.HandlerFunc { return RoleRequired(models.RoleAdministrator) }
