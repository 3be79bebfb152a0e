package services_test

import (
	"context"
	"testing"
	"time"

	"Gin_postgres_redis_loan_tracker/apperr"
	"Gin_postgres_redis_loan_tracker/models"
	"Gin_postgres_redis_loan_tracker/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteUserBlockedByActiveLoan(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.createUser(t, "borrower@example.com", models.RoleOperator)
	item := e.createItem(t, "CAM-1", "Cameras")

	loan, err := e.svc.Loans.Create(ctx, actorOf(u), services.CreateLoanInput{ItemID: item.ID})
	require.NoError(t, err)
	_, err = e.svc.Loans.ApproveOrReject(ctx, e.admin, loan.ID, true, "")
	require.NoError(t, err)
	_, err = e.svc.Loans.Deliver(ctx, e.admin, loan.ID)
	require.NoError(t, err)

	err = e.svc.Users.Delete(ctx, e.admin, u.ID)
	requireKind(t, err, apperr.KindConflict)
	assert.Empty(t, e.sessions.Revoked())

	_, err = e.svc.Loans.Return(ctx, e.admin, loan.ID, time.Time{}, "")
	require.NoError(t, err)

	require.NoError(t, e.svc.Users.Delete(ctx, e.admin, u.ID))
	_, err = e.svc.Users.Get(ctx, u.ID)
	requireKind(t, err, apperr.KindNotFound)
	assert.Equal(t, []string{u.ID}, e.sessions.Revoked())

	// the loan keeps pointing at the deleted borrower
	got, err := e.svc.Loans.Get(ctx, e.admin, loan.ID)
	require.NoError(t, err)
	require.NotNil(t, got.User)
	assert.Equal(t, u.Email, got.User.Email)
}

func TestUserCreateValidationAndConflicts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	op := e.createUser(t, "op@example.com", models.RoleOperator)
	roleID := e.roleID(t, models.RoleOperator)

	tests := []struct {
		name string
		in   services.CreateUserInput
		kind apperr.Kind
	}{
		{"bad email", services.CreateUserInput{Name: "X", Email: "nope", Password: "secret123", RoleID: roleID}, apperr.KindValidation},
		{"short password", services.CreateUserInput{Name: "X", Email: "x@example.com", Password: "123", RoleID: roleID}, apperr.KindValidation},
		{"duplicate email", services.CreateUserInput{Name: "X", Email: "OP@example.com", Password: "secret123", RoleID: roleID}, apperr.KindConflict},
		{"unknown role", services.CreateUserInput{Name: "X", Email: "x@example.com", Password: "secret123", RoleID: "missing"}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Users.Create(ctx, e.admin, tt.in)
			requireKind(t, err, tt.kind)
		})
	}

	_, err := e.svc.Users.Create(ctx, actorOf(op), services.CreateUserInput{Name: "X", Email: "x@example.com", Password: "secret123", RoleID: roleID})
	requireKind(t, err, apperr.KindForbidden)
}

func TestUserSelfProtection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	requireKind(t, e.svc.Users.Delete(ctx, e.admin, e.admin.UserID), apperr.KindConflict)
	_, err := e.svc.Users.SetActive(ctx, e.admin, e.admin.UserID, false)
	requireKind(t, err, apperr.KindConflict)
	_, err = e.svc.Users.ChangeRole(ctx, e.admin, e.admin.UserID, e.roleID(t, models.RoleOperator))
	requireKind(t, err, apperr.KindConflict)
}

func TestChangeRoleRevokesSessions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.createUser(t, "op@example.com", models.RoleOperator)

	got, err := e.svc.Users.ChangeRole(ctx, e.admin, u.ID, e.roleID(t, models.RoleAdministrator))
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdministrator, got.RoleName())
	assert.Equal(t, []string{u.ID}, e.sessions.Revoked())

	admins, err := e.svc.Users.ListByRole(ctx, e.roleID(t, models.RoleAdministrator))
	require.NoError(t, err)
	assert.Len(t, admins, 2)

	history, err := e.svc.Audit.EntityHistory(ctx, models.UserTable, u.ID)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, models.ActionRoleChange, history[0].Action)
	assert.JSONEq(t, `{"role":"Operator"}`, string(history[0].OldValues))
}

func TestUpdateUserKeepsRoleAndPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.createUser(t, "op@example.com", models.RoleOperator)

	got, err := e.svc.Users.Update(ctx, e.admin, u.ID, services.UpdateUserInput{Name: "Renamed", Email: "op@example.com", IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, models.RoleOperator, got.RoleName())
	assert.Empty(t, e.sessions.Revoked())

	_, err = e.svc.Auth.Login(ctx, "op@example.com", "secret123", services.Actor{})
	require.NoError(t, err)
}

func TestRoleManagement(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	role, err := e.svc.Users.CreateRole(ctx, e.admin, "Auditor", "Read-only access")
	require.NoError(t, err)
	_, err = e.svc.Users.CreateRole(ctx, e.admin, "Auditor", "")
	requireKind(t, err, apperr.KindConflict)

	u := e.createUser(t, "aud@example.com", "Auditor")
	requireKind(t, e.svc.Users.DeleteRole(ctx, e.admin, role.ID), apperr.KindConflict)

	require.NoError(t, e.svc.Users.Delete(ctx, e.admin, u.ID))
	// soft-deleted users still hold the role
	requireKind(t, e.svc.Users.DeleteRole(ctx, e.admin, role.ID), apperr.KindConflict)

	requireKind(t, e.svc.Users.DeleteRole(ctx, e.admin, e.roleID(t, models.RoleOperator)), apperr.KindConflict)

	other, err := e.svc.Users.CreateRole(ctx, e.admin, "Guest", "")
	require.NoError(t, err)
	require.NoError(t, e.svc.Users.DeleteRole(ctx, e.admin, other.ID))

	roles, err := e.svc.Users.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 3)
}
