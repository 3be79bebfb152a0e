package app

import (
	"time"

	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/logging"
	"Gin_postgres_redis_loan_tracker/session"

	"github.com/gin-gonic/gin"
)

// TouchLastSeen stamps users.last_seen_at at most once per throttle per user.
// Failures are logged and never block the request.
func TouchLastSeen(appSess *session.AppSessionStore, users db.UserRepository, throttle time.Duration, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(ctxUserID)
		if uid == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		due, err := appSess.ShouldTouchSeen(ctx, uid, throttle)
		if err != nil {
			log.Warn(ctx, "last-seen throttle", "user_id", uid, "error", err)
		} else if due {
			if err := users.TouchSeen(ctx, uid); err != nil {
				log.Warn(ctx, "touch last seen", "user_id", uid, "error", err)
			}
		}
		c.Next()
	}
}
