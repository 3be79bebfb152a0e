package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/config"
	"Gin_postgres_redis_loan_tracker/db/dbtest"
	"Gin_postgres_redis_loan_tracker/logging"
	"Gin_postgres_redis_loan_tracker/models"
	"Gin_postgres_redis_loan_tracker/routes"
	"Gin_postgres_redis_loan_tracker/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const origin = "http://localhost:5173"

type server struct {
	t *testing.T
	a *app.App
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.Config{
		WebOrigin:        origin,
		RPID:             "localhost",
		RPOrigins:        []string{origin},
		SessionTTL:       time.Hour,
		WebAuthnTTL:      time.Minute,
		LastSeenThrottle: time.Minute,
		OverdueAfter:     7 * 24 * time.Hour,
		ReportTimeout:    10 * time.Second,
	}
	a, err := app.Assemble(cfg, logging.Discard(), dbtest.New(t), rdb, nil)
	require.NoError(t, err)
	routes.RegisterRoutes(a.Router, a)
	return &server{t: t, a: a}
}

func (s *server) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Origin", origin)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.a.Router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == app.AppSessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no %s cookie in response %d: %s", app.AppSessionCookie, rec.Code, rec.Body.String())
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (s *server) admin() *http.Cookie {
	s.t.Helper()
	ctx := context.Background()
	role, err := s.a.UoW.Roles().FindByName(ctx, models.RoleAdministrator)
	require.NoError(s.t, err)
	_, err = s.a.Services.Users.Create(ctx, services.System, services.CreateUserInput{
		Name: "Admin", Email: "admin@example.com", Password: "secret123", RoleID: role.ID,
	})
	require.NoError(s.t, err)

	rec := s.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "admin@example.com", "password": "secret123",
	}, nil)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(s.t, rec)
}

func (s *server) operator(email string) *http.Cookie {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Op", "email": email, "password": "secret123",
	}, nil)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return sessionCookie(s.t, rec)
}

func (s *server) createItem(admin *http.Cookie, code string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/items", map[string]string{
		"code": code, "name": "Laptop " + code, "category": "Laptops", "location": "Shelf A",
	}, admin)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Item models.Item `json:"item"`
	}
	decode(s.t, rec, &out)
	return out.Item.ID
}

type loanResp struct {
	Loan models.Loan `json:"loan"`
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"db":"ok","redis":"ok"}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "loan_tracker_http_request_duration_seconds")
}

func TestForeignOriginIsRejected(t *testing.T) {
	s := newServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"a@example.com","password":"secret123"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	s.a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthEndpoints(t *testing.T) {
	s := newServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/items", nil, nil).Code)

	op := s.operator("op@example.com")
	rec := s.do(http.MethodGet, "/api/auth/me", nil, op)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		User     models.User `json:"user"`
		IsAdmin  bool        `json:"isAdmin"`
		Passkeys int         `json:"passkeys"`
	}
	decode(t, rec, &me)
	assert.Equal(t, "op@example.com", me.User.Email)
	assert.False(t, me.IsAdmin)
	assert.Zero(t, me.Passkeys)

	rec = s.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "op@example.com", "password": "wrong-password",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Dup", "email": "OP@example.com", "password": "secret123",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/logout", nil, op)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", nil, op).Code)
}

func TestOperatorCannotReachAdminRoutes(t *testing.T) {
	s := newServer(t)
	op := s.operator("op@example.com")

	for _, path := range []string{"/api/users", "/api/roles", "/api/audit", "/api/reports/loans", "/api/dashboard", "/api/loans/pending"} {
		assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, path, nil, op).Code, path)
	}
	rec := s.do(http.MethodPost, "/api/items", map[string]string{
		"code": "X-1", "name": "x", "category": "y",
	}, op)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoanLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)
	admin := s.admin()
	op := s.operator("op@example.com")
	itemID := s.createItem(admin, "LP-100")

	rec := s.do(http.MethodPost, "/api/loans", map[string]string{"itemId": itemID, "comments": "for travel"}, op)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created loanResp
	decode(t, rec, &created)
	assert.Equal(t, models.LoanPending, created.Loan.Status)
	loanPath := "/api/loans/" + created.Loan.ID

	// the item is held by the pending loan
	rec = s.do(http.MethodPost, "/api/loans", map[string]string{"itemId": itemID}, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, loanPath+"/decision", map[string]any{"approved": true}, op)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, loanPath+"/decision", map[string]any{"comments": "no flag"}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, loanPath+"/decision", map[string]any{"approved": true, "comments": "ok"}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var approved loanResp
	decode(t, rec, &approved)
	assert.Equal(t, models.LoanApproved, approved.Loan.Status)
	assert.Equal(t, "for travel\nok", approved.Loan.Comments)

	// returning before delivery is an invalid transition
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, loanPath+"/return", nil, op).Code)

	rec = s.do(http.MethodPost, loanPath+"/deliver", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, loanPath+"/return", nil, op)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var returned loanResp
	decode(t, rec, &returned)
	assert.Equal(t, models.LoanReturned, returned.Loan.Status)
	assert.NotNil(t, returned.Loan.ReturnDate)

	rec = s.do(http.MethodGet, "/api/items/"+itemID+"/availability", nil, op)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"available":true}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/loans/mine", nil, op)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine struct {
		Loans []models.Loan `json:"loans"`
	}
	decode(t, rec, &mine)
	assert.Len(t, mine.Loans, 1)

	rec = s.do(http.MethodGet, "/api/audit/entity/loans/"+created.Loan.ID, nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		Entries []models.AuditLog `json:"entries"`
	}
	decode(t, rec, &hist)
	assert.Len(t, hist.Entries, 4)
}

func TestOtherUsersLoanIsHidden(t *testing.T) {
	s := newServer(t)
	admin := s.admin()
	ana := s.operator("ana@example.com")
	ben := s.operator("ben@example.com")
	itemID := s.createItem(admin, "LP-1")

	rec := s.do(http.MethodPost, "/api/loans", map[string]string{"itemId": itemID}, ana)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created loanResp
	decode(t, rec, &created)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/loans/"+created.Loan.ID, nil, ben).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/loans/"+created.Loan.ID, nil, ana).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/loans/"+created.Loan.ID, nil, admin).Code)
}

func TestItemQueryPaging(t *testing.T) {
	s := newServer(t)
	admin := s.admin()
	for _, code := range []string{"A-1", "A-2", "A-3", "A-4", "A-5", "A-6", "A-7"} {
		s.createItem(admin, code)
	}

	rec := s.do(http.MethodGet, "/api/items?sortBy=code&sortOrder=desc&page=2&pageSize=5", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page services.PagedResult[models.Item]
	decode(t, rec, &page)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 2, page.TotalPages)
	assert.EqualValues(t, 7, page.TotalItems)
	assert.True(t, page.HasPrevious)
	assert.False(t, page.HasNext)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "A-2", page.Items[0].Code)
	assert.Equal(t, "A-1", page.Items[1].Code)

	rec = s.do(http.MethodGet, "/api/items/categories", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"categories":["Laptops"]}`, rec.Body.String())
}

func TestReportDownload(t *testing.T) {
	s := newServer(t)
	admin := s.admin()
	s.createItem(admin, "LP-1")

	rec := s.do(http.MethodGet, "/api/reports/items", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="items-`)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = s.do(http.MethodGet, "/api/reports/activity?from=2030-01-02T00:00:00Z&to=2030-01-01T00:00:00Z", nil, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/dashboard", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var st services.DashboardStats
	decode(t, rec, &st)
	assert.EqualValues(t, 1, st.TotalItems)
	assert.EqualValues(t, 1, st.AvailableItems)
}

func TestUserAdministration(t *testing.T) {
	s := newServer(t)
	admin := s.admin()
	op := s.operator("op@example.com")

	rec := s.do(http.MethodGet, "/api/auth/me", nil, op)
	var me struct {
		User models.User `json:"user"`
	}
	decode(t, rec, &me)

	rec = s.do(http.MethodPut, "/api/users/"+me.User.ID+"/active", map[string]bool{"active": false}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// deactivation revokes the operator's sessions
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", nil, op).Code)

	rec = s.do(http.MethodGet, "/api/roles", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var roles struct {
		Roles []models.Role `json:"roles"`
	}
	decode(t, rec, &roles)
	assert.Len(t, roles.Roles, 2)
}
