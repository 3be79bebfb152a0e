// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv loads .env into the process environment when the file exists.
// Variables already set win.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Printf("config: load %s: %v", f, err)
		}
	}
}

type Config struct {
	Port     string
	LogLevel string

	DBDriver    string // postgres | sqlite
	DatabaseURL string
	SQLitePath  string

	RedisAddr string
	RedisPwd  string

	WebOrigin  string
	RPID       string
	RPOrigins  []string
	SessionTTL time.Duration
	// ceremony data for passkeys lives much shorter than app sessions
	WebAuthnTTL      time.Duration
	LastSeenThrottle time.Duration

	OverdueAfter  time.Duration
	ReportTimeout time.Duration

	BootstrapAdminEmail    string
	BootstrapAdminName     string
	BootstrapAdminPassword string

	ReportS3 S3Config
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

func (c S3Config) Enabled() bool { return c.Bucket != "" }

func Load() Config {
	return Config{
		Port:     get("PORT", "3001"),
		LogLevel: get("LOG_LEVEL", "info"),

		DBDriver:    strings.ToLower(get("DB_DRIVER", "postgres")),
		DatabaseURL: get("DATABASE_URL", postgresDSNFromParts()),
		SQLitePath:  get("SQLITE_PATH", "loan_tracker.db"),

		RedisAddr: get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:  os.Getenv("REDIS_PASSWORD"),

		WebOrigin:        get("WEB_ORIGIN", "http://localhost:5173"),
		RPID:             get("RP_ID", "localhost"),
		RPOrigins:        splitCSV(get("RP_ORIGINS", "http://localhost:5173")),
		SessionTTL:       duration("SESSION_TTL", 24*time.Hour),
		WebAuthnTTL:      duration("WEBAUTHN_TTL", 5*time.Minute),
		LastSeenThrottle: duration("LAST_SEEN_THROTTLE", time.Minute),

		OverdueAfter:  duration("OVERDUE_AFTER", 7*24*time.Hour),
		ReportTimeout: duration("REPORT_TIMEOUT", 30*time.Second),

		BootstrapAdminEmail:    strings.ToLower(strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_EMAIL"))),
		BootstrapAdminName:     get("BOOTSTRAP_ADMIN_NAME", "Administrator"),
		BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),

		ReportS3: S3Config{
			Bucket:    os.Getenv("REPORT_S3_BUCKET"),
			Region:    get("REPORT_S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("REPORT_S3_ENDPOINT"),
			AccessKey: os.Getenv("REPORT_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("REPORT_S3_SECRET_KEY"),
		},
	}
}

func get(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func duration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("config: %s=%q is not a positive duration, using %s", k, v, def)
		return def
	}
	return d
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func postgresDSNFromParts() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		get("DB_HOST", "127.0.0.1"),
		get("DB_USER", "postgres"),
		os.Getenv("DB_PASSWORD"),
		get("DB_NAME", "loan_tracker"),
		get("DB_PORT", "5432"),
	)
}
