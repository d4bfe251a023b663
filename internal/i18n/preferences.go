package i18n

import (
	"context"

	"go.uber.org/zap"

	"ticketbot/internal/storage"
)

type PreferenceStore interface {
	UserLanguage(ctx context.Context, userID string) (string, error)
	GetGuildSettings(ctx context.Context, guildID string, defaults storage.GuildSettings) (storage.GuildSettings, error)
}

// Preferences resolves the language for a user: stored user choice, then the
// guild setting, then the client locale, then the catalog fallback.
type Preferences struct {
	catalog *Catalog
	store   PreferenceStore
	guildID string
	logger  *zap.Logger
}

func NewPreferences(catalog *Catalog, store PreferenceStore, guildID string, logger *zap.Logger) *Preferences {
	return &Preferences{catalog: catalog, store: store, guildID: guildID, logger: logger}
}

func (p *Preferences) Catalog() *Catalog {
	return p.catalog
}

func (p *Preferences) For(ctx context.Context, userID, locale string) string {
	var user string
	if userID != "" {
		lang, err := p.store.UserLanguage(ctx, userID)
		if err != nil {
			p.logger.Warn("user language lookup failed", zap.String("user_id", userID), zap.Error(err))
		} else {
			user = lang
		}
	}
	return p.catalog.Resolve(user, p.Guild(ctx), locale)
}

// Guild returns the stored guild language, or an empty string.
func (p *Preferences) Guild(ctx context.Context) string {
	if p.guildID == "" {
		return ""
	}
	settings, err := p.store.GetGuildSettings(ctx, p.guildID, storage.GuildSettings{})
	if err != nil {
		p.logger.Warn("guild language lookup failed", zap.String("guild_id", p.guildID), zap.Error(err))
		return ""
	}
	return settings.Language
}
