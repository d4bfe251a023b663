package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults valid, got %v", err)
	}
	th := cfg.Thresholds()
	if th.UnclaimedClose != 72*time.Hour || th.Reassign != 48*time.Hour {
		t.Fatalf("unexpected thresholds %+v", th)
	}
	if cfg.ScanInterval() != 15*time.Minute {
		t.Fatalf("expected 15 minute interval, got %v", cfg.ScanInterval())
	}
}

func TestLoadAppliesFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("default_language: es\ninactivity:\n  reassign_hours: 36\nsanctions:\n  removal_threshold: 5\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("STAFF_ROLE_ID", "role-1")
	t.Setenv("SCAN_WORKERS", "8")
	t.Setenv("TICKETS_SAVE_ATTEMPTS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultLanguage != "es" {
		t.Fatalf("expected es, got %s", cfg.DefaultLanguage)
	}
	if cfg.Inactivity.ReassignHours != 36 || cfg.Inactivity.ClaimedCloseHours != 72 {
		t.Fatalf("expected file override merged with defaults, got %+v", cfg.Inactivity)
	}
	if cfg.Sanctions.RemovalThreshold != 5 {
		t.Fatalf("expected removal threshold 5, got %d", cfg.Sanctions.RemovalThreshold)
	}
	if cfg.Roles.StaffRoleID != "role-1" || cfg.Inactivity.Workers != 8 {
		t.Fatalf("expected env overrides, got %+v / %+v", cfg.Roles, cfg.Inactivity)
	}
	if cfg.Tickets.SaveAttempts != 5 {
		t.Fatalf("expected 5 save attempts, got %d", cfg.Tickets.SaveAttempts)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("TICKETBOT_TEST_DOTENV_TOKEN=1\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	t.Setenv("ENV_FILE", envPath)
	t.Setenv("DISCORD_TOKEN", "token")
	t.Cleanup(func() { _ = os.Unsetenv("TICKETBOT_TEST_DOTENV_TOKEN") })

	if _, err := Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if os.Getenv("TICKETBOT_TEST_DOTENV_TOKEN") != "1" {
		t.Fatalf("expected .env values loaded into the environment")
	}
}

func TestLoadRequiresToken(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("DISCORD_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected missing token error")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"driver":     func(c *Config) { c.Database.Driver = "mysql" },
		"thresholds": func(c *Config) { c.Inactivity.ReassignHours = 12 },
		"removal":    func(c *Config) { c.Sanctions.RemovalThreshold = 1 },
		"workers":    func(c *Config) { c.Inactivity.Workers = 0 },
		"attempts":   func(c *Config) { c.Tickets.SaveAttempts = 0 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
