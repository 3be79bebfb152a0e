package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Gin_postgres_redis_loan_tracker/config"
	"Gin_postgres_redis_loan_tracker/db/dbtest"
	"Gin_postgres_redis_loan_tracker/logging"
	"Gin_postgres_redis_loan_tracker/models"
	"Gin_postgres_redis_loan_tracker/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	return config.Config{
		WebOrigin:        "http://localhost:5173",
		RPID:             "localhost",
		RPOrigins:        []string{"http://localhost:5173", "http://localhost:3001"},
		SessionTTL:       time.Hour,
		WebAuthnTTL:      time.Minute,
		LastSeenThrottle: time.Minute,
		OverdueAfter:     7 * 24 * time.Hour,
		ReportTimeout:    5 * time.Second,
	}
}

func newTestApp(t *testing.T) (*App, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	a, err := Assemble(testConfig(), logging.Discard(), dbtest.New(t), rdb, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return a, mr
}

func createUser(t *testing.T, a *App, email, role string) *models.User {
	t.Helper()
	ctx := context.Background()
	r, err := a.UoW.Roles().FindByName(ctx, role)
	require.NoError(t, err)
	u, err := a.Services.Users.Create(ctx, services.System, services.CreateUserInput{
		Name: email, Email: email, Password: "secret123", RoleID: r.ID,
	})
	require.NoError(t, err)
	return u
}

func TestAllowedOriginsDeduplicates(t *testing.T) {
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3001"}, allowedOrigins(testConfig()))
}

func TestCSRF(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mw := CSRF([]string{"https://localhost:8443", "https://admin.example.com"})

	tests := []struct {
		name       string
		method     string
		origin     string
		referer    string
		wantStatus int
	}{
		{"GET passes without headers", http.MethodGet, "", "", http.StatusOK},
		{"OPTIONS passes without headers", http.MethodOptions, "", "", http.StatusOK},
		{"POST with allowed origin", http.MethodPost, "https://localhost:8443", "", http.StatusOK},
		{"POST with trailing slash and upper case", http.MethodPost, "HTTPS://LOCALHOST:8443/", "", http.StatusOK},
		{"POST with foreign origin", http.MethodPost, "https://evil.com", "", http.StatusForbidden},
		{"DELETE with allowed referer", http.MethodDelete, "", "https://admin.example.com/items?page=2", http.StatusOK},
		{"PUT with foreign referer", http.MethodPut, "", "https://evil.com/admin.example.com", http.StatusForbidden},
		{"origin wins over referer", http.MethodPost, "https://evil.com", "https://admin.example.com/", http.StatusForbidden},
		{"POST without headers", http.MethodPost, "", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(mw)
			r.Handle(tt.method, "/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(tt.method, "/x", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRoleRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name  string
		actor *models.Actor
		want  int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"operator", &models.Actor{UserID: "u1", Role: models.RoleOperator}, http.StatusForbidden},
		{"administrator", &models.Actor{UserID: "u2", Role: models.RoleAdministrator}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(func(c *gin.Context) {
				if tt.actor != nil {
					c.Set(ctxActor, *tt.actor)
				}
			})
			r.GET("/admin", AdminOnly(), func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAuthRequiredResolvesActor(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	u := createUser(t, a, "op@example.com", models.RoleOperator)
	sess, err := a.AppSessions().Create(ctx, u.ID, "", "")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", AuthRequired(a.AppSessions(), a.Services.Auth, a.Log), func(c *gin.Context) {
		act := ActorOf(c)
		c.JSON(http.StatusOK, H{"id": act.UserID, "role": act.Role, "email": act.Email})
	})

	do := func(cookie string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: AppSessionCookie, Value: cookie})
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(sess.ID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"`+u.ID+`","role":"Operator","email":"op@example.com"}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do("").Code)
	assert.Equal(t, http.StatusUnauthorized, do("bogus").Code)

	// deactivation revokes the session and the middleware refuses it
	_, err = a.Services.Users.SetActive(ctx, services.System, u.ID, false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(sess.ID).Code)
}

func TestAuthRequiredDropsSessionOfDisabledUser(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	u := createUser(t, a, "op@example.com", models.RoleOperator)
	sess, err := a.AppSessions().Create(ctx, u.ID, "", "")
	require.NoError(t, err)

	// flip the flag behind the service's back so the session survives
	u.IsActive = false
	require.NoError(t, a.UoW.Users().Update(ctx, u))

	r := gin.New()
	r.GET("/me", AuthRequired(a.AppSessions(), a.Services.Auth, a.Log), func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AppSessionCookie, Value: sess.ID})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, err = a.AppSessions().Get(ctx, sess.ID)
	assert.Error(t, err)
}

func TestTouchLastSeenIsThrottled(t *testing.T) {
	a, mr := newTestApp(t)
	ctx := context.Background()
	u := createUser(t, a, "op@example.com", models.RoleOperator)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(ctxUserID, u.ID) })
	r.GET("/ping", TouchLastSeen(a.AppSessions(), a.UoW.Users(), time.Minute, a.Log), func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func() {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	hit()
	got, err := a.UoW.Users().FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastSeenAt)
	first := *got.LastSeenAt

	time.Sleep(5 * time.Millisecond)
	hit()
	got, err = a.UoW.Users().FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.LastSeenAt.Equal(first))

	mr.FastForward(2 * time.Minute)
	hit()
	got, err = a.UoW.Users().FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.LastSeenAt.After(first))
}

func TestBootstrapAdmin(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, BootstrapAdmin(ctx, a.Config, a.UoW, a.Services.Users, a.Log))
	n, err := a.UoW.Users().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	cfg := a.Config
	cfg.BootstrapAdminEmail = "root@example.com"
	cfg.BootstrapAdminName = "Root"
	cfg.BootstrapAdminPassword = "changeme"
	require.NoError(t, BootstrapAdmin(ctx, cfg, a.UoW, a.Services.Users, a.Log))
	require.NoError(t, BootstrapAdmin(ctx, cfg, a.UoW, a.Services.Users, a.Log))

	u, err := a.UoW.Users().FindByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdministrator, u.RoleName())
	n, err = a.UoW.Users().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
