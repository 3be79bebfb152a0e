package app

import (
	"context"
	"fmt"
	"time"

	"Gin_postgres_redis_loan_tracker/config"
	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/logging"
	"Gin_postgres_redis_loan_tracker/reports"
	"Gin_postgres_redis_loan_tracker/services"
	"Gin_postgres_redis_loan_tracker/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Ctx = gin.Context
type H = gin.H

// App holds the process-wide dependencies.
type App struct {
	Router   *gin.Engine
	DB       *gorm.DB
	RDB      *redis.Client
	WA       *webauthn.WebAuthn
	Config   config.Config
	Log      logging.Logger
	UoW      db.UnitOfWork
	Services *services.Services

	appSess    *session.AppSessionStore
	ceremonies *session.Store
}

func (a *App) AppSessions() *session.AppSessionStore { return a.appSess }
func (a *App) Ceremonies() *session.Store            { return a.ceremonies }

// New dials the database and redis, then assembles the app.
func New(ctx context.Context, cfg config.Config, log logging.Logger) (*App, error) {
	gdb, err := db.Open(cfg)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	var archive services.Archive
	if cfg.ReportS3.Enabled() {
		s3a, err := reports.NewS3Archive(ctx, cfg.ReportS3)
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("report archive: %w", err)
		}
		archive = s3a
		log.Info(ctx, "archiving reports to s3", "bucket", cfg.ReportS3.Bucket)
	}

	return Assemble(cfg, log, gdb, rdb, archive)
}

// Assemble wires an App from already-open connections. archive may be nil.
func Assemble(cfg config.Config, log logging.Logger, gdb *gorm.DB, rdb *redis.Client, archive services.Archive) (*App, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: "Loan Tracker",
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("webauthn: %w", err)
	}

	appSess := session.NewAppSessionStore(rdb, cfg.SessionTTL)
	uow := db.NewUnitOfWork(gdb)
	svc := services.New(uow, services.Options{
		Logger:       log,
		OverdueAfter: cfg.OverdueAfter,
		Sessions:     appSess,
		Archive:      archive,
	})

	r := gin.Default()
	r.Use(RequestMetrics())
	useCORS(r, allowedOrigins(cfg))

	return &App{
		Router:     r,
		DB:         gdb,
		RDB:        rdb,
		WA:         wa,
		Config:     cfg,
		Log:        log,
		UoW:        uow,
		Services:   svc,
		appSess:    appSess,
		ceremonies: session.NewStore(rdb, cfg.WebAuthnTTL),
	}, nil
}

func (a *App) Close() {
	_ = a.RDB.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// allowedOrigins is the web origin plus the passkey origins, deduplicated.
func allowedOrigins(cfg config.Config) []string {
	seen := map[string]bool{}
	var out []string
	for _, o := range append([]string{cfg.WebOrigin}, cfg.RPOrigins...) {
		if o != "" && !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	return out
}

// AllowedOrigins is what CORS and the CSRF check accept.
func (a *App) AllowedOrigins() []string { return allowedOrigins(a.Config) }
