package app

import (
	"context"

	"Gin_postgres_redis_loan_tracker/config"
	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/logging"
	"Gin_postgres_redis_loan_tracker/models"
	"Gin_postgres_redis_loan_tracker/services"
)

// BootstrapAdmin creates the first administrator from BOOTSTRAP_ADMIN_* when
// that email is not registered yet. It is a no-op without an email.
func BootstrapAdmin(ctx context.Context, cfg config.Config, uow db.UnitOfWork, users *services.UserService, log logging.Logger) error {
	if cfg.BootstrapAdminEmail == "" {
		return nil
	}
	exists, err := uow.Users().EmailExists(ctx, cfg.BootstrapAdminEmail, "")
	if err != nil {
		return err
	}
	if exists {
		log.Debug(ctx, "bootstrap admin already present", "email", cfg.BootstrapAdminEmail)
		return nil
	}
	role, err := uow.Roles().FindByName(ctx, models.RoleAdministrator)
	if err != nil {
		return err
	}
	u, err := users.Create(ctx, services.System, services.CreateUserInput{
		Name:     cfg.BootstrapAdminName,
		Email:    cfg.BootstrapAdminEmail,
		Password: cfg.BootstrapAdminPassword,
		RoleID:   role.ID,
	})
	if err != nil {
		return err
	}
	log.Info(ctx, "bootstrap administrator created", "email", u.Email, "user_id", u.ID)
	return nil
}
