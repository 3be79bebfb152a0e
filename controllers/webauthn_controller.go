package controllers

import (
	"errors"
	"net/http"
	"time"

	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/apperr"
	"Gin_postgres_redis_loan_tracker/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

const ceremonyTimeout = 3 * time.Second

// ===== passkeys for a signed-in user =====

// POST /api/credentials/add/begin
func (s *Srv) BeginAddCredential(c *gin.Context) {
	u, ok := app.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	ctx, cancel := withTimeout(c, ceremonyTimeout)
	defer cancel()

	wUser, err := s.waUserFor(ctx, u)
	if err != nil {
		s.fail(c, err)
		return
	}
	exclude := make([]protocol.CredentialDescriptor, 0, len(wUser.creds))
	for _, cr := range wUser.creds {
		exclude = append(exclude, cr.Descriptor())
	}
	opts, sd, err := s.WA.BeginRegistration(
		wUser,
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			UserVerification: protocol.VerificationRequired,
		}),
		webauthn.WithExclusions(exclude),
	)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.Sess.Save(ctx, session.Registration, u.ID, sd); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"opts": opts})
}

// POST /api/credentials/add/finish
func (s *Srv) FinishAddCredential(c *gin.Context) {
	u, ok := app.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	ctx, cancel := withTimeout(c, ceremonyTimeout)
	defer cancel()

	wUser, err := s.waUserFor(ctx, u)
	if err != nil {
		s.fail(c, err)
		return
	}
	sd, err := s.Sess.Take(ctx, session.Registration, u.ID)
	if err != nil {
		badRequest(c, "session expired or invalid")
		return
	}
	cred, err := s.WA.FinishRegistration(wUser, *sd, c.Request)
	if err != nil {
		badRequest(c, "passkey registration failed")
		return
	}
	if err := s.Svc.Auth.AddPasskey(ctx, app.ActorOf(c), fromWaCred(cred)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /api/credentials
func (s *Srv) ListCredentials(c *gin.Context) {
	cs, err := s.Svc.Auth.Passkeys(c.Request.Context(), app.ActorOf(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"credentials": cs})
}

// ===== passkey sign-in =====

type loginBeginReq struct {
	Email        string `json:"email"`
	Discoverable bool   `json:"discoverable"`
}
type loginBeginResp struct {
	Options   *protocol.CredentialAssertion `json:"options"`
	SessionID string                        `json:"sessionId"`
}

// POST /webauthn/login/begin
func (s *Srv) BeginLogin(c *gin.Context) {
	var req loginBeginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "bad request")
		return
	}
	ctx, cancel := withTimeout(c, ceremonyTimeout)
	defer cancel()

	var (
		opts *protocol.CredentialAssertion
		sd   *webauthn.SessionData
		err  error
	)
	if req.Discoverable || req.Email == "" {
		opts, sd, err = s.WA.BeginDiscoverableLogin(webauthn.WithUserVerification(protocol.VerificationRequired))
	} else {
		u, ferr := s.Svc.Users.FindByEmail(ctx, req.Email)
		if ferr != nil {
			s.fail(c, ferr)
			return
		}
		wUser, werr := s.waUserFor(ctx, u)
		if werr != nil {
			s.fail(c, werr)
			return
		}
		opts, sd, err = s.WA.BeginLogin(wUser, webauthn.WithUserVerification(protocol.VerificationRequired))
	}
	if err != nil {
		badRequest(c, "no passkey available for this account")
		return
	}

	sid := uuid.NewString()
	if err := s.Sess.Save(ctx, session.Login, sid, sd); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loginBeginResp{Options: opts, SessionID: sid})
}

// POST /webauthn/login/finish?sessionId=...[&email=...]
func (s *Srv) FinishLogin(c *gin.Context) {
	sid := c.Query("sessionId")
	if sid == "" {
		badRequest(c, "missing sessionId")
		return
	}
	ctx, cancel := withTimeout(c, ceremonyTimeout)
	defer cancel()

	sd, err := s.Sess.Take(ctx, session.Login, sid)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			s.Log.Error(ctx, "load login ceremony", "error", err)
		}
		badRequest(c, "session expired or invalid")
		return
	}

	var (
		userID string
		cred   *webauthn.Credential
	)
	if email := c.Query("email"); email != "" {
		u, err := s.Svc.Users.FindByEmail(ctx, email)
		if err != nil {
			s.fail(c, err)
			return
		}
		wUser, err := s.waUserFor(ctx, u)
		if err != nil {
			s.fail(c, err)
			return
		}
		if cred, err = s.WA.FinishLogin(wUser, *sd, c.Request); err != nil {
			s.fail(c, apperr.Unauthenticated("passkey verification failed"))
			return
		}
		userID = u.ID
	} else {
		handler := func(rawID, _ []byte) (webauthn.User, error) {
			u, err := s.Svc.Auth.PasskeyOwner(ctx, rawID)
			if err != nil {
				return nil, protocol.ErrBadRequest.WithDetails("credential not found")
			}
			return s.waUserFor(ctx, u)
		}
		user, cr, err := s.WA.FinishPasskeyLogin(handler, *sd, c.Request)
		if err != nil {
			s.fail(c, apperr.Unauthenticated("passkey verification failed"))
			return
		}
		userID, cred = user.(*waUser).user.ID, cr
	}

	if err := s.Svc.Auth.RecordPasskeyUse(ctx, cred.ID, cred.Authenticator.SignCount, cred.Authenticator.CloneWarning); err != nil {
		s.Log.Warn(ctx, "record passkey use", "error", err)
	}
	u, err := s.Svc.Auth.PasskeyLogin(ctx, userID, app.ActorOf(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.issueSession(c, u); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true, "user": u})
}
