package bot

import (
	"context"
	"errors"
	"strconv"
	"time"

	"ticketbot/internal/analytics"
	"ticketbot/internal/audit"
	"ticketbot/internal/config"
	"ticketbot/internal/i18n"
	"ticketbot/internal/lifecycle"
	"ticketbot/internal/storage"
	"ticketbot/internal/ticket"
	"ticketbot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	session   *discordgo.Session
	store     *storage.Store
	tickets   *lifecycle.Service
	prefs     *i18n.Preferences
	analytics *analytics.Service
	audit     *audit.Logger
}

func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent
	return session, nil
}

func New(cfg config.Config, logger *zap.Logger, session *discordgo.Session, store *storage.Store, tickets *lifecycle.Service, prefs *i18n.Preferences, analyticsEngine *analytics.Service, auditLogger *audit.Logger) *Bot {
	return &Bot{
		cfg:       cfg,
		logger:    logger,
		session:   session,
		store:     store,
		tickets:   tickets,
		prefs:     prefs,
		analytics: analyticsEngine,
		audit:     auditLogger,
	}
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}
	return b.registerCommands()
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" || msg.GuildID != b.cfg.GuildID {
		return
	}

	ctx := context.Background()
	message := messageFromDiscord(msg.Message, isStaff(msg.Member, b.cfg.Roles.StaffRoleID), b.proofHosts(ctx))
	if _, err := b.tickets.RecordMessage(ctx, msg.ChannelID, message); err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, ticket.ErrClosed) {
			return
		}
		b.logger.Warn("ticket message not recorded",
			zap.String("channel_id", msg.ChannelID),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}

func (b *Bot) proofHosts(ctx context.Context) map[string]struct{} {
	stored, err := b.store.ListProofHosts(ctx, b.cfg.GuildID)
	if err != nil {
		b.logger.Warn("proof hosts fallback", zap.Error(err))
	}
	return utils.HostSet(utils.DefaultProofHosts, stored)
}

func (b *Bot) guildSettings(ctx context.Context) storage.GuildSettings {
	defaults := storage.GuildSettings{
		GuildID:           b.cfg.GuildID,
		Language:          b.cfg.DefaultLanguage,
		StaffAlertChannel: b.cfg.Channels.StaffAlertChannelID,
		TranscriptChannel: b.cfg.Channels.TranscriptChannelID,
		TicketCategory:    b.cfg.Channels.TicketCategoryID,
		RetentionDays:     b.cfg.RetentionDays,
	}
	settings, err := b.store.GetGuildSettings(ctx, b.cfg.GuildID, defaults)
	if err != nil {
		b.logger.Warn("guild settings fallback", zap.Error(err))
		return defaults
	}
	return settings
}

func (b *Bot) lang(ctx context.Context, interaction *discordgo.InteractionCreate) string {
	var userID string
	if user := interactionUser(interaction.Interaction); user != nil {
		userID = user.ID
	}
	return b.prefs.For(ctx, userID, string(interaction.Locale))
}

func (b *Bot) t(lang, key string, params map[string]string) string {
	return b.prefs.Catalog().T(lang, key, params)
}

func (b *Bot) reply(session *discordgo.Session, interaction *discordgo.InteractionCreate, lang, key string, params map[string]string, color int) {
	b.respondEmbed(session, interaction, b.commandEmbed("", b.t(lang, key, params), color, nil), true)
}

func (b *Bot) replyError(session *discordgo.Session, interaction *discordgo.InteractionCreate, lang string, err error) {
	b.respondEmbed(session, interaction, b.errorEmbed(interaction, lang, err), true)
}

func (b *Bot) errorEmbed(interaction *discordgo.InteractionCreate, lang string, err error) *discordgo.MessageEmbed {
	key := errorKey(err)
	if key == "reply.error" {
		b.logger.Warn("interaction failed", zap.String("interaction_id", interaction.ID), zap.Error(err))
	}
	params := map[string]string{"count": strconv.Itoa(b.cfg.Tickets.MaxOpenPerUser)}
	return b.commandEmbed("", b.t(lang, key, params), b.cfg.Notifications.EmbedColors.Error, nil)
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	}); err != nil {
		b.logger.Debug("interaction response failed", zap.Error(err))
	}
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func interactionUser(interaction *discordgo.Interaction) *discordgo.User {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User
	}
	return interaction.User
}

func identity(user *discordgo.User) ticket.Identity {
	if user == nil {
		return ticket.Identity{}
	}
	return ticket.Identity{UserID: user.ID, Username: user.Username}
}

func isStaff(member *discordgo.Member, staffRoleID string) bool {
	if member == nil {
		return false
	}
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	if staffRoleID == "" {
		return false
	}
	for _, role := range member.Roles {
		if role == staffRoleID {
			return true
		}
	}
	return false
}

func canManageGuild(member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	return member.Permissions&(discordgo.PermissionAdministrator|discordgo.PermissionManageServer) != 0
}

func messageFromDiscord(msg *discordgo.Message, staff bool, hosts map[string]struct{}) ticket.Message {
	attachments := make([]ticket.Attachment, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		if a == nil {
			continue
		}
		attachments = append(attachments, ticket.Attachment{URL: a.URL, Filename: a.Filename, ContentType: a.ContentType})
	}
	created := msg.Timestamp.UTC()
	if msg.Timestamp.IsZero() {
		created = time.Now().UTC()
	}
	out := ticket.Message{
		ID:          msg.ID,
		Staff:       staff,
		Content:     msg.Content,
		Attachments: attachments,
		Proof:       utils.DetectProof(msg.Content, attachments, hosts),
		CreatedAt:   created,
	}
	if msg.Author != nil {
		out.AuthorID = msg.Author.ID
		out.AuthorName = msg.Author.Username
	}
	return out
}

func errorKey(err error) string {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return "reply.not_ticket"
	case errors.Is(err, ticket.ErrInvalidType):
		return "reply.invalid_type"
	case errors.Is(err, ticket.ErrInvalidPriority):
		return "reply.invalid_priority"
	case errors.Is(err, ticket.ErrDetailTooLong):
		return "reply.detail_too_long"
	case errors.Is(err, ticket.ErrAlreadyClaimed):
		return "reply.already_claimed"
	case errors.Is(err, ticket.ErrClosed):
		return "reply.closed_ticket"
	case errors.Is(err, ticket.ErrNotClosed):
		return "reply.not_closed"
	case errors.Is(err, ticket.ErrNoChange):
		return "reply.priority"
	case errors.Is(err, lifecycle.ErrTooManyOpen):
		return "reply.too_many_open"
	case errors.Is(err, lifecycle.ErrRateLimited):
		return "reply.rate_limited"
	default:
		return "reply.error"
	}
}
