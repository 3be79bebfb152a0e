package services

import (
	"context"
	"strings"

	"Gin_postgres_redis_loan_tracker/apperr"
	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/logging"
	"Gin_postgres_redis_loan_tracker/models"

	"github.com/google/uuid"
)

type UserService struct {
	uow      db.UnitOfWork
	audit    *AuditService
	sessions SessionRevoker
	log      logging.Logger
}

func NewUserService(uow db.UnitOfWork, audit *AuditService, sessions SessionRevoker, log logging.Logger) *UserService {
	return &UserService{uow: uow, audit: audit, sessions: sessions, log: log}
}

type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	RoleID   string
	// nil means active
	IsActive *bool
}

type UpdateUserInput struct {
	Name  string
	Email string
	// empty keeps the current role
	RoleID   string
	IsActive bool
	// empty keeps the current password
	Password string
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.uow.Users().List(ctx)
}

func (s *UserService) ListByRole(ctx context.Context, roleID string) ([]models.User, error) {
	if _, err := s.uow.Roles().FindByID(ctx, roleID); err != nil {
		return nil, notFoundOr(err, "role %s not found", roleID)
	}
	return s.uow.Users().ListByRole(ctx, roleID)
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.uow.Users().FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user %s not found", id)
	}
	return u, nil
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.uow.Users().FindByEmail(ctx, email)
	if err != nil {
		return nil, notFoundOr(err, "user %s not found", email)
	}
	return u, nil
}

func (s *UserService) Create(ctx context.Context, actor Actor, in CreateUserInput) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
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
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	u := &models.User{ID: uuid.NewString(), Name: name, Email: email, PasswordHash: hash, RoleID: in.RoleID, IsActive: active}

	err = s.uow.Transaction(ctx, actor, func(ctx context.Context, tx db.UnitOfWork) error {
		exists, err := tx.Users().EmailExists(ctx, email, "")
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("email %s is already registered", email)
		}
		role, err := tx.Roles().FindByID(ctx, in.RoleID)
		if err != nil {
			return notFoundOr(err, "role %s not found", in.RoleID)
		}
		if err := tx.Users().Create(ctx, u); err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.Conflict("email %s is already registered", email)
			}
			return err
		}
		u.Role = role
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Table:       models.UserTable,
			Action:      models.ActionCreate,
			PrimaryKey:  u.ID,
			New:         u,
			Description: "Created user " + email + " with role " + role.Name,
		})
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) Update(ctx context.Context, actor Actor, id string, in UpdateUserInput) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name, email, err := validateIdentity(in.Name, in.Email)
	if err != nil {
		return nil, err
	}
	var hash string
	if in.Password != "" {
		if err := validatePassword(in.Password); err != nil {
			return nil, err
		}
		if hash, err = HashPassword(in.Password); err != nil {
			return nil, err
		}
	}

	var (
		u      *models.User
		revoke bool
	)
	err = s.uow.Transaction(ctx, actor, func(ctx context.Context, tx db.UnitOfWork) error {
		var err error
		u, err = tx.Users().FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "user %s not found", id)
		}
		before := *u

		exists, err := tx.Users().EmailExists(ctx, email, id)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("email %s is already registered", email)
		}
		if in.RoleID != "" && in.RoleID != u.RoleID {
			role, err := tx.Roles().FindByID(ctx, in.RoleID)
			if err != nil {
				return notFoundOr(err, "role %s not found", in.RoleID)
			}
			u.RoleID, u.Role = role.ID, role
		}
		if id == actor.UserID && (!in.IsActive || u.RoleName() != models.RoleAdministrator) {
			return apperr.Conflict("you cannot deactivate or demote yourself")
		}
		revoke = before.IsActive && !in.IsActive || before.RoleID != u.RoleID || hash != ""

		u.Name, u.Email, u.IsActive = name, email, in.IsActive
		if hash != "" {
			u.PasswordHash = hash
		}
		if err := tx.Users().Update(ctx, u); err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.Conflict("email %s is already registered", email)
			}
			return err
		}
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Table:      models.UserTable,
			Action:     models.ActionUpdate,
			PrimaryKey: u.ID,
			Old:        before,
			New:        u,
		})
	})
	if err != nil {
		return nil, err
	}
	if revoke {
		s.revokeSessions(ctx, id)
	}
	return u, nil
}

// Delete soft-deletes the user. Users with active loans are kept.
func (s *UserService) Delete(ctx context.Context, actor Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if id == actor.UserID {
		return apperr.Conflict("you cannot delete yourself")
	}
	err := s.uow.Transaction(ctx, actor, func(ctx context.Context, tx db.UnitOfWork) error {
		u, err := tx.Users().FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "user %s not found", id)
		}
		active, err := tx.Loans().HasActiveForUser(ctx, id)
		if err != nil {
			return err
		}
		if active {
			return apperr.Conflict("user %s has active loans", u.Email)
		}
		if err := tx.Credentials().DeleteByUser(ctx, id); err != nil {
			return err
		}
		if err := tx.Users().Delete(ctx, id); err != nil {
			return notFoundOr(err, "user %s not found", id)
		}
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Table:       models.UserTable,
			Action:      models.ActionDelete,
			PrimaryKey:  id,
			Old:         u,
			Description: "Deleted user " + u.Email,
		})
	})
	if err != nil {
		return err
	}
	s.revokeSessions(ctx, id)
	return nil
}

func (s *UserService) ChangeRole(ctx context.Context, actor Actor, userID, roleID string) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if userID == actor.UserID {
		return nil, apperr.Conflict("you cannot change your own role")
	}
	var u *models.User
	err := s.uow.Transaction(ctx, actor, func(ctx context.Context, tx db.UnitOfWork) error {
		var err error
		u, err = tx.Users().FindByID(ctx, userID)
		if err != nil {
			return notFoundOr(err, "user %s not found", userID)
		}
		role, err := tx.Roles().FindByID(ctx, roleID)
		if err != nil {
			return notFoundOr(err, "role %s not found", roleID)
		}
		before := *u
		u.RoleID, u.Role = role.ID, role
		if err := tx.Users().Update(ctx, u); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Table:       models.UserTable,
			Action:      models.ActionRoleChange,
			PrimaryKey:  u.ID,
			Old:         map[string]string{"role": before.RoleName()},
			New:         map[string]string{"role": role.Name},
			Description: "Role of " + u.Email + " changed to " + role.Name,
		})
	})
	if err != nil {
		return nil, err
	}
	s.revokeSessions(ctx, userID)
	return u, nil
}

func (s *UserService) SetActive(ctx context.Context, actor Actor, userID string, active bool) (*models.User, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, actor, userID, UpdateUserInput{
		Name:     u.Name,
		Email:    u.Email,
		RoleID:   u.RoleID,
		IsActive: active,
	})
}

func (s *UserService) revokeSessions(ctx context.Context, userID string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		s.log.Warn(ctx, "revoke sessions failed", "user_id", userID, "err", err)
	}
}

// Roles

func (s *UserService) ListRoles(ctx context.Context) ([]models.Role, error) {
	return s.uow.Roles().List(ctx)
}

func (s *UserService) CreateRole(ctx context.Context, actor Actor, name, description string) (*models.Role, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name, description = strings.TrimSpace(name), strings.TrimSpace(description)
	if name == "" || len([]rune(name)) > 50 {
		return nil, apperr.Validation("role name is required and must be at most 50 characters")
	}
	if len([]rune(description)) > 200 {
		return nil, apperr.Validation("role description must be at most 200 characters")
	}
	role := &models.Role{ID: uuid.NewString(), Name: name, Description: description}
	err := s.uow.Transaction(ctx, actor, func(ctx context.Context, tx db.UnitOfWork) error {
		exists, err := tx.Roles().NameExists(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("role %s already exists", name)
		}
		if err := tx.Roles().Create(ctx, role); err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.Conflict("role %s already exists", name)
			}
			return err
		}
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Table:      models.RoleTable,
			Action:     models.ActionCreate,
			PrimaryKey: role.ID,
			New:        role,
		})
	})
	if err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole refuses while any user, deleted ones included, holds the role.
func (s *UserService) DeleteRole(ctx context.Context, actor Actor, roleID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return s.uow.Transaction(ctx, actor, func(ctx context.Context, tx db.UnitOfWork) error {
		role, err := tx.Roles().FindByID(ctx, roleID)
		if err != nil {
			return notFoundOr(err, "role %s not found", roleID)
		}
		if role.Name == models.RoleAdministrator || role.Name == models.RoleOperator {
			return apperr.Conflict("built-in role %s cannot be deleted", role.Name)
		}
		n, err := tx.Roles().CountUsers(ctx, roleID)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("role %s is assigned to %d users", role.Name, n)
		}
		if err := tx.Roles().Delete(ctx, roleID); err != nil {
			return notFoundOr(err, "role %s not found", roleID)
		}
		return s.audit.Record(ctx, tx, actor, AuditEntry{
			Table:      models.RoleTable,
			Action:     models.ActionDelete,
			PrimaryKey: roleID,
			Old:        role,
		})
	})
}
