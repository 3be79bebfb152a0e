package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"Gin_postgres_redis_loan_tracker/apperr"
	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/db/dbtest"
	"Gin_postgres_redis_loan_tracker/logging"
	"Gin_postgres_redis_loan_tracker/models"
	"Gin_postgres_redis_loan_tracker/services"

	"github.com/stretchr/testify/require"
)

type fakeRevoker struct {
	mu      sync.Mutex
	revoked []string
}

func (f *fakeRevoker) RevokeAllForUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, userID)
	return nil
}

func (f *fakeRevoker) Revoked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revoked...)
}

type fakeArchive struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakeArchive) Put(_ context.Context, key string, _ []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type env struct {
	svc      *services.Services
	uow      db.UnitOfWork
	clock    *clock
	sessions *fakeRevoker
	archive  *fakeArchive
	admin    services.Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	uow := db.NewUnitOfWork(dbtest.New(t))
	e := &env{
		uow:      uow,
		clock:    &clock{now: time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)},
		sessions: &fakeRevoker{},
		archive:  &fakeArchive{},
	}
	e.svc = services.New(uow, services.Options{
		Logger:   logging.Discard(),
		Sessions: e.sessions,
		Archive:  e.archive,
		Now:      e.clock.Now,
	})
	admin := e.createUser(t, "admin@example.com", models.RoleAdministrator)
	e.admin = actorOf(admin)
	return e
}

func actorOf(u *models.User) services.Actor {
	return services.Actor{UserID: u.ID, Email: u.Email, Role: u.RoleName(), IP: "127.0.0.1", UserAgent: "go-test"}
}

func (e *env) roleID(t *testing.T, name string) string {
	t.Helper()
	r, err := e.uow.Roles().FindByName(context.Background(), name)
	require.NoError(t, err)
	return r.ID
}

func (e *env) createUser(t *testing.T, email, role string) *models.User {
	t.Helper()
	u, err := e.svc.Users.Create(context.Background(), services.System, services.CreateUserInput{
		Name:     "User " + email,
		Email:    email,
		Password: "secret123",
		RoleID:   e.roleID(t, role),
	})
	require.NoError(t, err)
	return u
}

func (e *env) createItem(t *testing.T, code, category string) *models.Item {
	t.Helper()
	it, err := e.svc.Items.Create(context.Background(), e.admin, services.ItemInput{
		Code:     code,
		Name:     "Item " + code,
		Category: category,
		Location: "Shelf A",
	})
	require.NoError(t, err)
	return it
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperr.KindOf(err), "error: %v", err)
}

func countLoans(t *testing.T, e *env) int {
	t.Helper()
	loans, err := e.svc.Loans.ListAll(context.Background())
	require.NoError(t, err)
	return len(loans)
}

func itemCodes(items []models.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Code
	}
	return out
}

func code(n int) string { return fmt.Sprintf("EL-%02d", n) }
