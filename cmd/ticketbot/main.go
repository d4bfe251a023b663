package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticketbot/internal/analytics"
	"ticketbot/internal/audit"
	"ticketbot/internal/bot"
	"ticketbot/internal/closure"
	"ticketbot/internal/config"
	"ticketbot/internal/i18n"
	"ticketbot/internal/lifecycle"
	"ticketbot/internal/metrics"
	"ticketbot/internal/notify"
	"ticketbot/internal/sanction"
	"ticketbot/internal/scanner"
	"ticketbot/internal/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(context.Background()); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	collectors := metrics.New()
	catalog := i18n.New(cfg.DefaultLanguage)
	prefs := i18n.NewPreferences(catalog, store, cfg.GuildID, logger)
	auditLogger := audit.NewLogger(store, logger)
	analyticsEngine := analytics.New(store)

	session, err := bot.NewSession(cfg.DiscordToken)
	if err != nil {
		logger.Fatal("discord session init failed", zap.Error(err))
	}

	notifier := notify.New(notify.Config{
		GuildID:             cfg.GuildID,
		StaffRoleID:         cfg.Roles.StaffRoleID,
		StaffAlertChannelID: cfg.Channels.StaffAlertChannelID,
		TranscriptChannelID: cfg.Channels.TranscriptChannelID,
		TicketCategoryID:    cfg.Channels.TicketCategoryID,
		Colors: notify.Colors{
			Info:    cfg.Notifications.EmbedColors.Info,
			Warning: cfg.Notifications.EmbedColors.Warning,
			Error:   cfg.Notifications.EmbedColors.Error,
			Success: cfg.Notifications.EmbedColors.Success,
		},
		RatePerSecond: cfg.Notifications.RatePerSecond,
		Burst:         cfg.Notifications.Burst,
	}, session, catalog, prefs, store, logger)
	notifier.WithRecorder(collectors)

	deletions := closure.New(time.Duration(cfg.Tickets.DeleteAfterMinutes)*time.Minute, notifier.DeleteChannel, logger)
	defer deletions.Stop()
	notifier.WithScheduler(deletions)

	sanctions := sanction.NewEngine(sanction.Config{
		StaffRoleID:      cfg.Roles.StaffRoleID,
		TimeoutDuration:  time.Duration(cfg.Sanctions.TimeoutMinutes) * time.Minute,
		RemovalThreshold: cfg.Sanctions.RemovalThreshold,
		RetryAttempts:    uint(cfg.Sanctions.RetryAttempts),
		RetryDelay:       time.Duration(cfg.Sanctions.RetryDelayMillis) * time.Millisecond,
	}, store, notifier, notifier, logger)
	sanctions.WithAuditor(auditLogger)
	sanctions.WithRecorder(collectors)

	tickets := lifecycle.NewService(lifecycle.Config{
		MaxOpenPerUser: cfg.Tickets.MaxOpenPerUser,
		OpenLimit:      cfg.Tickets.OpenLimit,
		OpenWindow:     time.Duration(cfg.Tickets.OpenWindowSeconds) * time.Second,
		SaveAttempts:   cfg.Tickets.SaveAttempts,
	}, store, notifier, logger)
	tickets.WithSanctioner(sanctions)
	tickets.WithArchiver(notifier)
	tickets.WithChannels(notifier)
	tickets.WithAuditor(auditLogger)
	tickets.WithRecorder(collectors)

	sweeper := scanner.New(scanner.Config{
		Interval:   cfg.ScanInterval(),
		Workers:    cfg.Inactivity.Workers,
		Thresholds: cfg.Thresholds(),
	}, store, tickets, logger)
	sweeper.WithRecorder(collectors)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			_ = redisClient.Close()
		}()
		sweeper.WithGuard(scanner.NewRedisGuard(redisClient, cfg.Redis.LockKey, time.Duration(cfg.Redis.LockTTLSeconds)*time.Second, logger))
		logger.Info("distributed sweep lock enabled", zap.String("addr", cfg.Redis.Addr))
	}

	botSvc := bot.New(cfg, logger, session, store, tickets, prefs, analyticsEngine, auditLogger)
	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go sweeper.Start(runCtx)
	go cleanupAuditLogs(runCtx, store, cfg, logger)

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			if err := store.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("storage unavailable"))
				return
			}
			if redisClient != nil {
				if err := redisClient.Ping(r.Context()).Err(); err != nil {
					w.WriteHeader(http.StatusServiceUnavailable)
					_, _ = w.Write([]byte("redis unavailable"))
					return
				}
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		if cfg.Health.Metrics {
			mux.Handle("/metrics", collectors.Handler())
		}
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
}

// cleanupAuditLogs trims the audit trail once a day using the guild retention
// setting, falling back to the configured default.
func cleanupAuditLogs(ctx context.Context, store *storage.Store, cfg config.Config, logger *zap.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		retention := cfg.RetentionDays
		settings, err := store.GetGuildSettings(ctx, cfg.GuildID, storage.GuildSettings{RetentionDays: cfg.RetentionDays})
		if err == nil && settings.RetentionDays > 0 {
			retention = settings.RetentionDays
		}
		removed, err := store.CleanupAuditLogs(ctx, time.Now().UTC(), retention)
		if err != nil {
			logger.Warn("audit cleanup failed", zap.Error(err))
		} else if removed > 0 {
			logger.Info("audit logs cleaned", zap.Int64("removed", removed), zap.Int("retention_days", retention))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
