package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/config"
	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/logging"
	"Gin_postgres_redis_loan_tracker/models"
	"Gin_postgres_redis_loan_tracker/routes"
	"Gin_postgres_redis_loan_tracker/services"

	"github.com/urfave/cli/v3"
)

func main() {
	config.LoadEnv()

	root := &cli.Command{
		Name:  "loan-tracker",
		Usage: "Equipment loan tracker server and admin CLI",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			createAdminCommand(),
			reportCommand(),
		},
		Action: func(ctx context.Context, _ *cli.Command) error {
			return runServer(ctx, config.Load())
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server (default)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Usage: "listen port, overrides PORT"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := config.Load()
			if p := c.String("port"); p != "" {
				cfg.Port = p
			}
			return runServer(ctx, cfg)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	logger := logging.New(os.Stderr, cfg.LogLevel)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := db.Migrate(ctx, a.DB); err != nil {
		return err
	}
	if err := app.BootstrapAdmin(ctx, cfg, a.UoW, a.Services.Users, logger); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	routes.RegisterRoutes(a.Router, a)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: a.Router, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info(ctx, "shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations and exit",
		Action: func(ctx context.Context, _ *cli.Command) error {
			gdb, err := db.Open(config.Load())
			if err != nil {
				return err
			}
			if sqlDB, err := gdb.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := db.Migrate(ctx, gdb); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func createAdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-admin",
		Usage: "Create an administrator account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			role, err := a.UoW.Roles().FindByName(ctx, models.RoleAdministrator)
			if err != nil {
				return fmt.Errorf("administrator role: %w", err)
			}
			u, err := a.Services.Users.Create(ctx, services.System, services.CreateUserInput{
				Name:     c.String("name"),
				Email:    c.String("email"),
				Password: c.String("password"),
				RoleID:   role.ID,
			})
			if err != nil {
				return err
			}
			fmt.Printf("created administrator %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Generate a report file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Required: true, Usage: "items | inventory | loans | activity"},
			&cli.StringFlag{Name: "out", Value: ".", Usage: "output directory"},
			&cli.StringFlag{Name: "from", Usage: "activity start, RFC 3339 (default 30 days ago)"},
			&cli.StringFlag{Name: "to", Usage: "activity end, RFC 3339 (default now)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(ctx, a.Config.ReportTimeout)
			defer cancel()

			var rep *services.Report
			switch c.String("kind") {
			case services.ReportItems:
				rep, err = a.Services.Reports.ItemsPDF(ctx, services.System)
			case services.ReportInventory:
				rep, err = a.Services.Reports.InventoryStatusPDF(ctx, services.System)
			case services.ReportLoans:
				rep, err = a.Services.Reports.LoansExcel(ctx, services.System)
			case services.ReportActivity:
				to, perr := parseTime(c.String("to"), time.Now().UTC())
				if perr != nil {
					return perr
				}
				from, perr := parseTime(c.String("from"), to.Add(-30*24*time.Hour))
				if perr != nil {
					return perr
				}
				rep, err = a.Services.Reports.UserActivityExcel(ctx, services.System, from, to)
			default:
				return fmt.Errorf("unknown report kind %q", c.String("kind"))
			}
			if err != nil {
				return err
			}

			path := filepath.Join(c.String("out"), rep.Name)
			if err := os.WriteFile(path, rep.Body, 0o644); err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
}

// openApp wires the full application for one-shot commands.
func openApp(ctx context.Context) (*app.App, error) {
	cfg := config.Load()
	a, err := app.New(ctx, cfg, logging.New(os.Stderr, cfg.LogLevel))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, a.DB); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func parseTime(v string, def time.Time) (time.Time, error) {
	if v == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", v, err)
	}
	return t, nil
}
