package config

import (
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

var envMu sync.Mutex

func TestLoadAll_HappyPath_NoRedis(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	t.Setenv("POSTGRES_URL", "postgres://u:p@localhost:5432/db?sslmode=disable")

	cfg, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}

	if cfg.Database.PostgresURL != "postgres://u:p@localhost:5432/db?sslmode=disable" {
		t.Fatalf("unexpected PostgresURL: %q", cfg.Database.PostgresURL)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected Server.Address default: %q", cfg.Server.Address)
	}
	if cfg.Schedule.BodyMax != 2000 {
		t.Fatalf("unexpected BodyMax default: %d", cfg.Schedule.BodyMax)
	}
	if cfg.Scheduler.Interval != 60*time.Second {
		t.Fatalf("unexpected Scheduler.Interval default: %v", cfg.Scheduler.Interval)
	}
	if cfg.Scheduler.Workers != 1 {
		t.Fatalf("unexpected Scheduler.Workers default: %d", cfg.Scheduler.Workers)
	}
	if !cfg.Scheduler.AutoStart {
		t.Fatalf("expected scheduler autostart by default")
	}
	if cfg.SMTP.Host != "smtp.gmail.com" || cfg.SMTP.Port != 587 || !cfg.SMTP.UseTLS {
		t.Fatalf("unexpected SMTP defaults: %+v", cfg.SMTP)
	}
	if cfg.SMTP.Timeout != 20*time.Second || cfg.WhatsApp.Timeout != 20*time.Second {
		t.Fatalf("unexpected dispatch timeout defaults: smtp=%v whatsapp=%v", cfg.SMTP.Timeout, cfg.WhatsApp.Timeout)
	}

	if cfg.Redis.Enabled {
		t.Fatalf("expected Redis disabled when REDIS_ADDR not set")
	}
	if cfg.AMQP.Enabled {
		t.Fatalf("expected AMQP disabled when AMQP_URL not set")
	}
}

func TestLoadAll_SQLiteAndCredentials(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	t.Setenv("SQLITE_PATH", "/tmp/schedules.db")
	t.Setenv("EMAIL_USER", "bot@example.com")
	t.Setenv("EMAIL_PASS", "secret")
	t.Setenv("SMTP_USE_TLS", "false")
	t.Setenv("WHATSAPP_API_URL", "https://wa.example.com/send")
	t.Setenv("SCHED_SPEC", "@every 30s")

	cfg, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}
	if cfg.Database.SQLitePath != "/tmp/schedules.db" {
		t.Fatalf("unexpected SQLitePath: %q", cfg.Database.SQLitePath)
	}
	if cfg.SMTP.From != "bot@example.com" {
		t.Fatalf("expected EMAIL_FROM to default to EMAIL_USER, got %q", cfg.SMTP.From)
	}
	if cfg.SMTP.UseTLS {
		t.Fatalf("expected SMTP_USE_TLS=false to disable TLS")
	}
	if cfg.WhatsApp.URL != "https://wa.example.com/send" {
		t.Fatalf("unexpected WhatsApp.URL: %q", cfg.WhatsApp.URL)
	}
	if cfg.Scheduler.Spec != "@every 30s" {
		t.Fatalf("unexpected Scheduler.Spec: %q", cfg.Scheduler.Spec)
	}
}

func TestLoadAll_HappyPath_WithRedis(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	t.Setenv("POSTGRES_URL", "postgres://u:p@localhost:5432/db?sslmode=disable")

	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_TTL_SECONDS", "42")

	cfg, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}

	if !cfg.Redis.Enabled {
		t.Fatalf("expected Redis enabled")
	}
	if cfg.Redis.Address != "localhost:6379" {
		t.Fatalf("unexpected Redis.Address: %q", cfg.Redis.Address)
	}
	if cfg.Redis.Password != "secret" {
		t.Fatalf("unexpected Redis.Password: %q", cfg.Redis.Password)
	}
	if cfg.Redis.DB != 3 {
		t.Fatalf("unexpected Redis.DB: %d", cfg.Redis.DB)
	}
	if cfg.Redis.TTL != 42*time.Second {
		t.Fatalf("unexpected Redis.TTL: %v", cfg.Redis.TTL)
	}
}

func TestLoadAll_RequiredEnvMissing(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	_, err := LoadAll()
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "POSTGRES_URL or SQLITE_PATH") {
		t.Fatalf("expected error mentioning the store env vars, got: %v", err)
	}
}

func TestLoadAll_InvalidValues(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"invalid BODY_MAX", "BODY_MAX", "abc"},
		{"invalid SCHED_INTERVAL_SECONDS", "SCHED_INTERVAL_SECONDS", "nope"},
		{"invalid SCHED_WORKERS", "SCHED_WORKERS", "x"},
		{"invalid SCHED_RATE_PER_SECOND", "SCHED_RATE_PER_SECOND", "fast"},
		{"invalid SCHED_AUTOSTART", "SCHED_AUTOSTART", "maybe"},
		{"invalid SMTP_PORT", "SMTP_PORT", "smtp"},
		{"invalid REDIS_DB", "REDIS_DB", "bad"},
		{"invalid REDIS_TTL_SECONDS", "REDIS_TTL_SECONDS", "bad"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			clearTestEnv(t)

			t.Setenv("POSTGRES_URL", "postgres://u:p@localhost:5432/db?sslmode=disable")

			// Enable redis only for redis-related invalid ints.
			if strings.HasPrefix(tc.key, "REDIS_") {
				t.Setenv("REDIS_ADDR", "localhost:6379")
			}

			t.Setenv(tc.key, tc.val)

			_, err := LoadAll()
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.key) {
				t.Fatalf("expected error mentioning %s, got: %v", tc.key, err)
			}
		})
	}
}

func TestLoadAll_ValidationFailures(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	cases := []struct {
		key string
		val string
	}{
		{"SCHED_WORKERS", "0"},
		{"SCHED_INTERVAL_SECONDS", "0"},
		{"BODY_MAX", "0"},
		{"SCHED_ONCE_EXPIRY_SECONDS", "0"},
		{"SCHED_RATE_PER_SECOND", "-1"},
		{"DISPATCH_TIMEOUT_SECONDS", "0"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.key, func(t *testing.T) {
			clearTestEnv(t)

			t.Setenv("POSTGRES_URL", "postgres://u:p@localhost:5432/db?sslmode=disable")
			t.Setenv(tc.key, tc.val)

			_, err := LoadAll()
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.key) {
				t.Fatalf("expected error mentioning %s, got: %v", tc.key, err)
			}
		})
	}
}

func TestLoadAll_ReportsEveryProblem(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	t.Setenv("SCHED_WORKERS", "0")
	t.Setenv("BODY_MAX", "bad")

	_, err := LoadAll()
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	for _, want := range []string{"POSTGRES_URL", "SCHED_WORKERS", "BODY_MAX"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error mentioning %s, got: %v", want, err)
		}
	}
}

func TestGetEnv(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	if got := getEnv("NOPE", "default"); got != "default" {
		t.Fatalf("expected default, got %q", got)
	}

	t.Setenv("A", "x")
	if got := getEnv("A", "default"); got != "x" {
		t.Fatalf("expected x, got %q", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	got, err := getEnvInt("MISSING", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 {
		t.Fatalf("expected default 7, got %d", got)
	}

	t.Setenv("N", "123")
	got, err = getEnvInt("N", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 123 {
		t.Fatalf("expected 123, got %d", got)
	}

	t.Setenv("BAD", "abc")
	_, err = getEnvInt("BAD", 7)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "BAD") {
		t.Fatalf("expected error mentioning BAD, got: %v", err)
	}
}

func TestGetEnvBool(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	for raw, want := range map[string]bool{"1": true, "yes": true, "TRUE": true, "0": false, "off": false} {
		t.Setenv("A", raw)
		got, err := getEnvBool("A", !want)
		if err != nil {
			t.Fatalf("getEnvBool(%q) error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("getEnvBool(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestJoinErrors(t *testing.T) {
	if err := joinErrors(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	e1 := errors.New("one")
	e2 := errors.New("two")
	err := joinErrors([]error{e1, e2})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	if !errors.Is(err, e1) {
		t.Fatalf("expected errors.Is(err, e1) to be true")
	}
	if !errors.Is(err, e2) {
		t.Fatalf("expected errors.Is(err, e2) to be true")
	}
}

func clearTestEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"POSTGRES_URL",
		"SQLITE_PATH",
		"BODY_MAX",
		"SCHED_INTERVAL_SECONDS",
		"SCHED_SPEC",
		"SCHED_WORKERS",
		"SCHED_RATE_PER_SECOND",
		"SCHED_AUTOSTART",
		"SCHED_EXPEDITE_SECONDS",
		"SCHED_ONCE_EXPIRY_SECONDS",
		"SERVER_ADDRESS",
		"SMTP_HOST",
		"SMTP_PORT",
		"SMTP_USE_TLS",
		"EMAIL_USER",
		"EMAIL_PASS",
		"EMAIL_FROM",
		"WHATSAPP_API_URL",
		"WHATSAPP_API_TOKEN",
		"DISPATCH_TIMEOUT_SECONDS",
		"AMQP_URL",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"REDIS_TTL_SECONDS",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"LOG_FILE",
		"A",
		"N",
		"BAD",
	}
	for _, k := range keys {
		_ = os.Unsetenv(k)
	}
}
