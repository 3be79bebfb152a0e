package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/apperr"
	"Gin_postgres_redis_loan_tracker/config"
	"Gin_postgres_redis_loan_tracker/logging"
	"Gin_postgres_redis_loan_tracker/models"
	"Gin_postgres_redis_loan_tracker/services"
	"Gin_postgres_redis_loan_tracker/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Srv carries what the handlers need. One per process.
type Srv struct {
	WA      *webauthn.WebAuthn
	Svc     *services.Services
	Sess    *session.Store
	AppSess *session.AppSessionStore
	Cfg     config.Config
	Log     logging.Logger

	db  *gorm.DB
	rdb *redis.Client
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		WA:      a.WA,
		Svc:     a.Services,
		Sess:    a.Ceremonies(),
		AppSess: a.AppSessions(),
		Cfg:     a.Config,
		Log:     a.Log.With("component", "http"),
		db:      a.DB,
		rdb:     a.RDB,
	}
}

// --- helpers ---

func (s *Srv) fail(c *gin.Context, err error) { respondError(c, s.Log, err) }

// respondError maps an error to its HTTP status. Unexpected errors are logged
// and never shown to the client.
func respondError(c *gin.Context, log logging.Logger, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindUnauthenticated:
		status = http.StatusUnauthorized
	case apperr.KindForbidden:
		status = http.StatusForbidden
	default:
		log.Error(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, app.H{"error": apperr.Message(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, app.H{"error": msg})
}

func (s *Srv) setAppCookie(c *gin.Context, sessionID string, maxAge time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(app.AppSessionCookie, sessionID, int(maxAge/time.Second), "/", "",
		strings.HasPrefix(s.Cfg.WebOrigin, "https://"), true)
}

func (s *Srv) clearAppCookie(c *gin.Context) { s.setAppCookie(c, "", -time.Second) }

// issueSession starts an app session for u and sets the cookie.
func (s *Srv) issueSession(c *gin.Context, u *models.User) error {
	as, err := s.AppSess.Create(c.Request.Context(), u.ID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		return err
	}
	s.setAppCookie(c, as.ID, s.AppSess.TTL())
	return nil
}

func withTimeout(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), d)
}

// WebAuthn: DB user -> waUser
type waUser struct {
	user  models.User
	creds []webauthn.Credential
}

func (u *waUser) WebAuthnID() []byte                         { id, _ := uuid.Parse(u.user.ID); return id[:] }
func (u *waUser) WebAuthnName() string                       { return u.user.Email }
func (u *waUser) WebAuthnDisplayName() string                { return u.user.Name }
func (u *waUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func toWaCred(c models.Credential) webauthn.Credential {
	return webauthn.Credential{
		ID:              c.CredentialID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.AAGUID,
			SignCount:    c.SignCount,
			CloneWarning: c.CloneWarning,
		},
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
	}
}

func fromWaCred(c *webauthn.Credential) *models.Credential {
	return &models.Credential{
		CredentialID:    c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		AAGUID:          c.Authenticator.AAGUID,
		SignCount:       c.Authenticator.SignCount,
		CloneWarning:    c.Authenticator.CloneWarning,
		BackupEligible:  c.Flags.BackupEligible,
		BackupState:     c.Flags.BackupState,
	}
}

func (s *Srv) waUserFor(ctx context.Context, u *models.User) (*waUser, error) {
	cs, err := s.Svc.Auth.Passkeys(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	ws := make([]webauthn.Credential, 0, len(cs))
	for _, c := range cs {
		ws = append(ws, toWaCred(c))
	}
	return &waUser{user: *u, creds: ws}, nil
}
