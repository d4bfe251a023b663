package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ticketbot/internal/storage"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

type Store interface {
	AddAuditLog(ctx context.Context, log storage.AuditLog) error
}

type Logger struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
	notify func(context.Context, storage.AuditLog)
}

func NewLogger(store Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger, now: time.Now}
}

func (l *Logger) SetNotifier(notify func(context.Context, storage.AuditLog)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, level, ticketID, userID, event, details string) {
	entry := storage.AuditLog{
		TicketID:  ticketID,
		UserID:    userID,
		Level:     level,
		Event:     event,
		Details:   details,
		CreatedAt: l.now(),
	}
	if l.store != nil {
		if err := l.store.AddAuditLog(ctx, entry); err != nil {
			l.logger.Warn("audit log write failed", zap.String("event", event), zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("audit",
		zap.String("level", level),
		zap.String("ticket_id", ticketID),
		zap.String("user_id", userID),
		zap.String("event", event),
		zap.String("details", details),
	)
}
