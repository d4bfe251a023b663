package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"ticketbot/internal/ticket"
)

type Config struct {
	DiscordToken    string           `yaml:"discord_token"`
	GuildID         string           `yaml:"guild_id"`
	LogLevel        string           `yaml:"log_level"`
	DefaultLanguage string           `yaml:"default_language"`
	RetentionDays   int              `yaml:"retention_days"`
	Database        DatabaseConfig   `yaml:"database"`
	Redis           RedisConfig      `yaml:"redis"`
	Roles           RoleConfig       `yaml:"roles"`
	Channels        ChannelConfig    `yaml:"channels"`
	Tickets         TicketConfig     `yaml:"tickets"`
	Inactivity      InactivityConfig `yaml:"inactivity"`
	Sanctions       SanctionConfig   `yaml:"sanctions"`
	Notifications   NotifyConfig     `yaml:"notifications"`
	Health          HealthConfig     `yaml:"health"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Metrics bool   `yaml:"metrics"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	LockKey        string `yaml:"lock_key"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

type RoleConfig struct {
	StaffRoleID string `yaml:"staff_role_id"`
}

type ChannelConfig struct {
	StaffAlertChannelID string `yaml:"staff_alert_channel_id"`
	TicketCategoryID    string `yaml:"ticket_category_id"`
	TranscriptChannelID string `yaml:"transcript_channel_id"`
}

type TicketConfig struct {
	MaxOpenPerUser     int `yaml:"max_open_per_user"`
	OpenLimit          int `yaml:"open_limit"`
	OpenWindowSeconds  int `yaml:"open_window_seconds"`
	DeleteAfterMinutes int `yaml:"delete_after_minutes"`
	SaveAttempts       int `yaml:"save_attempts"`
}

type InactivityConfig struct {
	ScanIntervalMinutes      int `yaml:"scan_interval_minutes"`
	Workers                  int `yaml:"workers"`
	UnclaimedWarnHours       int `yaml:"unclaimed_warn_hours"`
	UnclaimedSecondWarnHours int `yaml:"unclaimed_second_warn_hours"`
	UnclaimedCloseHours      int `yaml:"unclaimed_close_hours"`
	ClaimedWarnHours         int `yaml:"claimed_warn_hours"`
	ReassignHours            int `yaml:"reassign_hours"`
	ClaimedCloseHours        int `yaml:"claimed_close_hours"`
}

type SanctionConfig struct {
	TimeoutMinutes   int `yaml:"timeout_minutes"`
	RemovalThreshold int `yaml:"removal_threshold"`
	RetryAttempts    int `yaml:"retry_attempts"`
	RetryDelayMillis int `yaml:"retry_delay_ms"`
}

type NotifyConfig struct {
	RatePerSecond float64     `yaml:"rate_per_second"`
	Burst         int         `yaml:"burst"`
	EmbedColors   EmbedColors `yaml:"embed_colors"`
}

type EmbedColors struct {
	Info    int `yaml:"info"`
	Warning int `yaml:"warning"`
	Error   int `yaml:"error"`
	Success int `yaml:"success"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:        "info",
		DefaultLanguage: "fr",
		RetentionDays:   30,
		Database:        DatabaseConfig{Driver: "sqlite", DSN: "/data/tickets.db"},
		Redis:           RedisConfig{LockKey: "ticketbot:scanner", LockTTLSeconds: 600},
		Tickets: TicketConfig{
			MaxOpenPerUser:     3,
			OpenLimit:          3,
			OpenWindowSeconds:  600,
			DeleteAfterMinutes: 10,
			SaveAttempts:       3,
		},
		Inactivity: InactivityConfig{
			ScanIntervalMinutes:      15,
			Workers:                  4,
			UnclaimedWarnHours:       24,
			UnclaimedSecondWarnHours: 48,
			UnclaimedCloseHours:      72,
			ClaimedWarnHours:         24,
			ReassignHours:            48,
			ClaimedCloseHours:        72,
		},
		Sanctions: SanctionConfig{
			TimeoutMinutes:   60,
			RemovalThreshold: 3,
			RetryAttempts:    5,
			RetryDelayMillis: 200,
		},
		Notifications: NotifyConfig{
			RatePerSecond: 5,
			Burst:         5,
			EmbedColors: EmbedColors{
				Info:    0x3B82F6,
				Warning: 0xF59E0B,
				Error:   0xEF4444,
				Success: 0x22C55E,
			},
		},
		Health: HealthConfig{Enabled: false, Addr: ":8080", Metrics: true},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	cfg.DefaultLanguage = normalizeLanguage(cfg.DefaultLanguage)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Inactivity.ScanIntervalMinutes <= 0 {
		return errors.New("inactivity scan interval must be positive")
	}
	if c.Inactivity.Workers <= 0 {
		return errors.New("inactivity workers must be positive")
	}
	if err := c.Thresholds().Validate(); err != nil {
		return fmt.Errorf("inactivity: %w", err)
	}
	if c.Tickets.SaveAttempts <= 0 {
		return errors.New("ticket save attempts must be positive")
	}
	if c.Sanctions.RemovalThreshold < 2 {
		return errors.New("sanction removal threshold must be at least 2")
	}
	if c.Sanctions.TimeoutMinutes <= 0 {
		return errors.New("sanction timeout must be positive")
	}
	return nil
}

func (c Config) Thresholds() ticket.Thresholds {
	return ticket.Thresholds{
		UnclaimedWarn:       hours(c.Inactivity.UnclaimedWarnHours),
		UnclaimedSecondWarn: hours(c.Inactivity.UnclaimedSecondWarnHours),
		UnclaimedClose:      hours(c.Inactivity.UnclaimedCloseHours),
		ClaimedWarn:         hours(c.Inactivity.ClaimedWarnHours),
		Reassign:            hours(c.Inactivity.ReassignHours),
		ClaimedClose:        hours(c.Inactivity.ClaimedCloseHours),
	}
}

func (c Config) ScanInterval() time.Duration {
	return time.Duration(c.Inactivity.ScanIntervalMinutes) * time.Minute
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.GuildID = envString("GUILD_ID", cfg.GuildID)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultLanguage = envString("DEFAULT_LANGUAGE", cfg.DefaultLanguage)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Database.Driver = envString("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = envString("DATABASE_DSN", cfg.Database.DSN)
	cfg.Redis.Addr = envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envInt("REDIS_DB", cfg.Redis.DB)
	cfg.Roles.StaffRoleID = envString("STAFF_ROLE_ID", cfg.Roles.StaffRoleID)
	cfg.Channels.StaffAlertChannelID = envString("STAFF_ALERT_CHANNEL_ID", cfg.Channels.StaffAlertChannelID)
	cfg.Channels.TicketCategoryID = envString("TICKET_CATEGORY_ID", cfg.Channels.TicketCategoryID)
	cfg.Channels.TranscriptChannelID = envString("TRANSCRIPT_CHANNEL_ID", cfg.Channels.TranscriptChannelID)
	cfg.Tickets.MaxOpenPerUser = envInt("TICKETS_MAX_OPEN_PER_USER", cfg.Tickets.MaxOpenPerUser)
	cfg.Tickets.DeleteAfterMinutes = envInt("TICKETS_DELETE_AFTER_MINUTES", cfg.Tickets.DeleteAfterMinutes)
	cfg.Tickets.SaveAttempts = envInt("TICKETS_SAVE_ATTEMPTS", cfg.Tickets.SaveAttempts)
	cfg.Inactivity.ScanIntervalMinutes = envInt("SCAN_INTERVAL_MINUTES", cfg.Inactivity.ScanIntervalMinutes)
	cfg.Inactivity.Workers = envInt("SCAN_WORKERS", cfg.Inactivity.Workers)
	cfg.Inactivity.UnclaimedWarnHours = envInt("UNCLAIMED_WARN_HOURS", cfg.Inactivity.UnclaimedWarnHours)
	cfg.Inactivity.UnclaimedSecondWarnHours = envInt("UNCLAIMED_SECOND_WARN_HOURS", cfg.Inactivity.UnclaimedSecondWarnHours)
	cfg.Inactivity.UnclaimedCloseHours = envInt("UNCLAIMED_CLOSE_HOURS", cfg.Inactivity.UnclaimedCloseHours)
	cfg.Inactivity.ClaimedWarnHours = envInt("CLAIMED_WARN_HOURS", cfg.Inactivity.ClaimedWarnHours)
	cfg.Inactivity.ReassignHours = envInt("REASSIGN_HOURS", cfg.Inactivity.ReassignHours)
	cfg.Inactivity.ClaimedCloseHours = envInt("CLAIMED_CLOSE_HOURS", cfg.Inactivity.ClaimedCloseHours)
	cfg.Sanctions.TimeoutMinutes = envInt("SANCTION_TIMEOUT_MINUTES", cfg.Sanctions.TimeoutMinutes)
	cfg.Sanctions.RemovalThreshold = envInt("SANCTION_REMOVAL_THRESHOLD", cfg.Sanctions.RemovalThreshold)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Health.Metrics = envBool("METRICS_ENABLED", cfg.Health.Metrics)
	cfg.Notifications.EmbedColors.Info = envInt("EMBED_COLOR_INFO", cfg.Notifications.EmbedColors.Info)
	cfg.Notifications.EmbedColors.Warning = envInt("EMBED_COLOR_WARNING", cfg.Notifications.EmbedColors.Warning)
	cfg.Notifications.EmbedColors.Error = envInt("EMBED_COLOR_ERROR", cfg.Notifications.EmbedColors.Error)
	cfg.Notifications.EmbedColors.Success = envInt("EMBED_COLOR_SUCCESS", cfg.Notifications.EmbedColors.Success)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func hours(v int) time.Duration {
	return time.Duration(v) * time.Hour
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func normalizeLanguage(value string) string {
	switch strings.ToLower(value) {
	case "en", "es":
		return strings.ToLower(value)
	default:
		return "fr"
	}
}
