package services

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"Gin_postgres_redis_loan_tracker/apperr"
	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/logging"
	"Gin_postgres_redis_loan_tracker/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

// ErrInvalidCredentials covers unknown email, wrong password and inactive accounts alike.
var ErrInvalidCredentials = &apperr.Error{Kind: apperr.KindUnauthenticated, Msg: "invalid email or password"}

type AuthService struct {
	uow   db.UnitOfWork
	audit *AuditService
	log   logging.Logger
}

func NewAuthService(uow db.UnitOfWork, audit *AuditService, log logging.Logger) *AuthService {
	return &AuthService{uow: uow, audit: audit, log: log}
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates an active Operator. The new user is the actor of its own audit row.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, actor Actor) (*models.User, error) {
	name, email, err := validateIdentity(in.Name, in.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &models.User{ID: uuid.NewString(), Name: name, Email: email, PasswordHash: hash, IsActive: true}
	actor.UserID, actor.Email, actor.Role = u.ID, email, models.RoleOperator

	err = s.uow.Transaction(ctx, actor, func(ctx context.Context, tx db.UnitOfWork) error {
		exists, err := tx.Users().EmailExists(ctx, email, "")
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("email %s is already registered", email)
		}
		role, err := tx.Roles().FindByName(ctx, models.RoleOperator)
		if err != nil {
			return notFoundOr(err, "role %s not found", models.RoleOperator)
		}
		u.RoleID = role.ID
		if err := tx.Users().Create(ctx, u); err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.Conflict("email %s is already registered", email)
			}
			return err
		}
		u.Role = role
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Table:       models.UserTable,
			Action:      models.ActionRegister,
			PrimaryKey:  u.ID,
			New:         u,
			Description: "Self-registration of " + email,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "user registered", "user_id", u.ID, "email", email)
	return u, nil
}

// Login checks the password and records the login. actor carries only IP and user agent.
func (s *AuthService) Login(ctx context.Context, email, password string, actor Actor) (*models.User, error) {
	u, err := s.uow.Users().FindByEmail(ctx, email)
	if err != nil {
		if db.IsNotFound(err) {
			loginAttempts.WithLabelValues("password", "failure").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive || !CheckPassword(u.PasswordHash, password) {
		loginAttempts.WithLabelValues("password", "failure").Inc()
		return nil, ErrInvalidCredentials
	}
	if err := s.recordLogin(ctx, u, actor, "Password login"); err != nil {
		return nil, err
	}
	loginAttempts.WithLabelValues("password", "success").Inc()
	return u, nil
}

// PasskeyLogin records a login whose credential was already verified.
func (s *AuthService) PasskeyLogin(ctx context.Context, userID string, actor Actor) (*models.User, error) {
	u, err := s.uow.Users().FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			loginAttempts.WithLabelValues("passkey", "failure").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive {
		loginAttempts.WithLabelValues("passkey", "failure").Inc()
		return nil, ErrInvalidCredentials
	}
	if err := s.recordLogin(ctx, u, actor, "Passkey login"); err != nil {
		return nil, err
	}
	loginAttempts.WithLabelValues("passkey", "success").Inc()
	return u, nil
}

func (s *AuthService) recordLogin(ctx context.Context, u *models.User, actor Actor, desc string) error {
	actor.UserID, actor.Email, actor.Role = u.ID, u.Email, u.RoleName()
	return s.uow.Transaction(ctx, actor, func(ctx context.Context, tx db.UnitOfWork) error {
		if err := tx.Users().TouchLogin(ctx, u.ID, actor.IP, actor.UserAgent); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Table:       models.UserTable,
			Action:      models.ActionLogin,
			PrimaryKey:  u.ID,
			Description: desc,
		})
	})
}

// Logout records the logout; ending the session is the caller's job.
func (s *AuthService) Logout(ctx context.Context, actor Actor) error {
	if !actor.Authenticated() {
		return apperr.Unauthenticated("not logged in")
	}
	return s.uow.Transaction(ctx, actor, func(ctx context.Context, tx db.UnitOfWork) error {
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Table:       models.UserTable,
			Action:      models.ActionLogout,
			PrimaryKey:  actor.UserID,
			Description: "Logout",
		})
	})
}

// CurrentUser resolves a session's user. Missing or inactive users are Unauthenticated.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.uow.Users().FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, apperr.Unauthenticated("session user no longer exists")
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, apperr.Unauthenticated("account is disabled")
	}
	return u, nil
}

func validateIdentity(name, email string) (string, string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || len([]rune(name)) > 100 {
		return "", "", apperr.Validation("name is required and must be at most 100 characters")
	}
	if len(email) > 100 {
		return "", "", apperr.Validation("email must be at most 100 characters")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", "", apperr.Validation("email %q is not valid", email)
	}
	return name, email, nil
}

func validatePassword(p string) error {
	if len(p) < MinPasswordLength {
		return apperr.Validation("password must be at least %d characters", MinPasswordLength)
	}
	// bcrypt ignores anything past 72 bytes
	if len(p) > 72 {
		return apperr.Validation("password must be at most 72 bytes")
	}
	return nil
}

// AddPasskey stores a verified passkey for the actor.
func (s *AuthService) AddPasskey(ctx context.Context, actor Actor, cred *models.Credential) error {
	if !actor.Authenticated() {
		return apperr.Unauthenticated("authentication required")
	}
	cred.UserID = actor.UserID
	return s.uow.Transaction(ctx, actor, func(ctx context.Context, tx db.UnitOfWork) error {
		if err := tx.Credentials().Add(ctx, cred); err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.Conflict("passkey already registered")
			}
			return err
		}
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Table:       models.CredentialTable,
			Action:      models.ActionCreate,
			PrimaryKey:  strconv.FormatUint(uint64(cred.ID), 10),
			New:         cred,
			Description: "Passkey registered",
		})
	})
}

func (s *AuthService) Passkeys(ctx context.Context, userID string) ([]models.Credential, error) {
	return s.uow.Credentials().ListByUser(ctx, userID)
}

// PasskeyOwner finds the user a credential id belongs to. Activity is checked by PasskeyLogin.
func (s *AuthService) PasskeyOwner(ctx context.Context, credID []byte) (*models.User, error) {
	u, _, err := s.uow.Credentials().FindOwner(ctx, credID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return u, nil
}

// RecordPasskeyUse keeps the authenticator's signature counter current.
func (s *AuthService) RecordPasskeyUse(ctx context.Context, credID []byte, signCount uint32, cloneWarning bool) error {
	if cloneWarning {
		s.log.Warn(ctx, "passkey clone warning", "credential", credID)
	}
	return s.uow.Credentials().RecordUse(ctx, credID, signCount, cloneWarning)
}
