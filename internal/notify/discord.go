package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ticketbot/internal/i18n"
	"ticketbot/internal/sanction"
	"ticketbot/internal/storage"
	"ticketbot/internal/ticket"
	"ticketbot/internal/transcript"
)

const (
	ButtonClaim  = "ticket_claim"
	ButtonClose  = "ticket_close"
	ButtonReopen = "ticket_reopen"
)

var ErrNoChannel = errors.New("notify: no destination channel configured")

// API is the subset of *discordgo.Session used to reach Discord.
type API interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberTimeout(guildID, userID string, until *time.Time, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

type Languages interface {
	For(ctx context.Context, userID, locale string) string
}

type SettingsStore interface {
	GetGuildSettings(ctx context.Context, guildID string, defaults storage.GuildSettings) (storage.GuildSettings, error)
}

type Scheduler interface {
	Schedule(channelID string) bool
	Cancel(channelID string) bool
}

type Recorder interface {
	Notification(kind string, err error)
}

type Colors struct {
	Info    int
	Warning int
	Error   int
	Success int
}

type Config struct {
	GuildID             string
	StaffRoleID         string
	StaffAlertChannelID string
	TranscriptChannelID string
	TicketCategoryID    string
	Colors              Colors
	RatePerSecond       float64
	Burst               int
}

type Discord struct {
	api       API
	cfg       Config
	catalog   *i18n.Catalog
	languages Languages
	settings  SettingsStore
	scheduler Scheduler
	recorder  Recorder
	limiter   *rate.Limiter
	logger    *zap.Logger
}

func New(cfg Config, api API, catalog *i18n.Catalog, languages Languages, settings SettingsStore, logger *zap.Logger) *Discord {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Discord{
		api:       api,
		cfg:       cfg,
		catalog:   catalog,
		languages: languages,
		settings:  settings,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger,
	}
}

func (d *Discord) WithScheduler(scheduler Scheduler) { d.scheduler = scheduler }

func (d *Discord) WithRecorder(recorder Recorder) { d.recorder = recorder }

func (d *Discord) StaffAlert(ctx context.Context, notice ticket.Notice) (err error) {
	defer d.record("staff_alert", &err)
	settings := d.guildSettings(ctx)
	if settings.StaffAlertChannel == "" {
		return ErrNoChannel
	}
	lang := d.languages.For(ctx, "", "")
	embed := d.embed(lang, d.catalog.T(lang, "title.staff_alert", notice.Params), notice)
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = d.api.ChannelMessageSendEmbed(settings.StaffAlertChannel, embed, discordgo.WithContext(ctx))
	return err
}

func (d *Discord) DirectMessage(ctx context.Context, userID string, notice ticket.Notice) (err error) {
	defer d.record("direct_message", &err)
	lang := d.languages.For(ctx, userID, "")
	title := d.catalog.T(lang, "title.ticket", notice.Params)
	if strings.HasPrefix(notice.Key, "sanction.") {
		title = d.catalog.T(lang, "title.sanction", notice.Params)
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	channel, err := d.api.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm with %s: %w", userID, err)
	}
	_, err = d.api.ChannelMessageSendEmbed(channel.ID, d.embed(lang, title, notice), discordgo.WithContext(ctx))
	return err
}

// TicketNotice posts in the ticket channel in the requester's language. The
// welcome and closing notices carry the matching action buttons.
func (d *Discord) TicketNotice(ctx context.Context, channelID string, notice ticket.Notice) (err error) {
	defer d.record("ticket_notice", &err)
	lang := d.languages.For(ctx, notice.Params["user"], "")
	msg := &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{d.embed(lang, d.catalog.T(lang, "title.ticket", notice.Params), notice)},
		Components: d.Buttons(lang, notice.Key),
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = d.api.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	return err
}

func (d *Discord) Buttons(lang, key string) []discordgo.MessageComponent {
	var buttons []discordgo.MessageComponent
	switch key {
	case ticket.NoticeTicketOpened, ticket.NoticeTicketReopened, ticket.NoticeTicketReassigned:
		buttons = []discordgo.MessageComponent{
			discordgo.Button{Label: d.catalog.T(lang, "button.claim", nil), Style: discordgo.SuccessButton, CustomID: ButtonClaim},
			discordgo.Button{Label: d.catalog.T(lang, "button.close", nil), Style: discordgo.DangerButton, CustomID: ButtonClose},
		}
	case ticket.NoticeTicketClaimed:
		buttons = []discordgo.MessageComponent{
			discordgo.Button{Label: d.catalog.T(lang, "button.close", nil), Style: discordgo.DangerButton, CustomID: ButtonClose},
		}
	case ticket.NoticeTicketClosed:
		buttons = []discordgo.MessageComponent{
			discordgo.Button{Label: d.catalog.T(lang, "button.reopen", nil), Style: discordgo.SecondaryButton, CustomID: ButtonReopen},
		}
	default:
		return nil
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}

func (d *Discord) LookupMember(ctx context.Context, userID string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := d.api.GuildMember(d.cfg.GuildID, userID, discordgo.WithContext(ctx))
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser:
			return fmt.Errorf("%w: %s", sanction.ErrMemberNotFound, userID)
		}
	}
	return err
}

func (d *Discord) Timeout(ctx context.Context, userID string, until time.Time) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	return d.api.GuildMemberTimeout(d.cfg.GuildID, userID, &until, discordgo.WithContext(ctx))
}

func (d *Discord) RemoveRole(ctx context.Context, userID, roleID string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	return d.api.GuildMemberRoleRemove(d.cfg.GuildID, userID, roleID, discordgo.WithContext(ctx))
}

// Archive posts the transcript to the archive channel and schedules the
// ticket channel for deletion. Deletion is scheduled even if the upload fails.
func (d *Discord) Archive(ctx context.Context, t ticket.Ticket) (err error) {
	defer d.record("archive", &err)
	if d.scheduler != nil {
		d.scheduler.Schedule(t.ChannelID)
	}
	settings := d.guildSettings(ctx)
	if settings.TranscriptChannel == "" {
		return nil
	}
	embed := &discordgo.MessageEmbed{
		Title:     "Ticket #" + t.TicketID,
		Color:     d.cfg.Colors.Error,
		Timestamp: time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Requester", Value: "<@" + t.UserID + ">", Inline: true},
			{Name: "Type", Value: string(t.Type), Inline: true},
			{Name: "Priority", Value: string(t.Priority), Inline: true},
		},
	}
	if t.ClosedBy != nil {
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Closed by", Value: t.ClosedBy.Username, Inline: true},
			&discordgo.MessageEmbedField{Name: "Reason", Value: orDash(t.ClosedBy.Reason), Inline: true},
		)
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = d.api.ChannelMessageSendComplex(settings.TranscriptChannel, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Files: []*discordgo.File{{
			Name:        transcript.FileName(t),
			ContentType: "text/plain",
			Reader:      strings.NewReader(transcript.Render(t)),
		}},
	}, discordgo.WithContext(ctx))
	return err
}

func (d *Discord) CancelArchive(channelID string) bool {
	if d.scheduler == nil {
		return false
	}
	return d.scheduler.Cancel(channelID)
}

// CreateTicketChannel creates a private text channel visible to the
// requester and the staff role only.
func (d *Discord) CreateTicketChannel(ctx context.Context, number int64, requester ticket.Identity) (string, error) {
	settings := d.guildSettings(ctx)
	if err := d.limiter.Wait(ctx); err != nil {
		return "", err
	}
	channel, err := d.api.GuildChannelCreateComplex(d.cfg.GuildID, discordgo.GuildChannelCreateData{
		Name:                 ticket.ChannelName(number),
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                "Ticket #" + ticket.FormatID(number) + " - " + requester.Username,
		ParentID:             settings.TicketCategory,
		PermissionOverwrites: Overwrites(d.cfg.GuildID, requester.UserID, d.cfg.StaffRoleID),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return channel.ID, nil
}

func (d *Discord) DeleteChannel(ctx context.Context, channelID string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := d.api.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return err
}

func Overwrites(guildID, requesterID, staffRoleID string) []*discordgo.PermissionOverwrite {
	const member = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory | discordgo.PermissionAttachFiles | discordgo.PermissionEmbedLinks
	overwrites := []*discordgo.PermissionOverwrite{
		{ID: guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: requesterID, Type: discordgo.PermissionOverwriteTypeMember, Allow: member},
	}
	if staffRoleID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{ID: staffRoleID, Type: discordgo.PermissionOverwriteTypeRole, Allow: member})
	}
	return overwrites
}

func (d *Discord) embed(lang, title string, notice ticket.Notice) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: d.catalog.T(lang, notice.Key, notice.Params),
		Color:       d.color(notice.Key),
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func (d *Discord) color(key string) int {
	switch {
	case strings.HasPrefix(key, "sanction."), key == ticket.NoticeAutoClosedAlert, key == ticket.NoticeReassignedAlert, key == ticket.NoticeTicketClosed:
		return d.cfg.Colors.Error
	case strings.HasPrefix(key, "scanner."):
		return d.cfg.Colors.Warning
	case key == ticket.NoticeTicketClaimed, key == ticket.NoticeTicketReopened:
		return d.cfg.Colors.Success
	default:
		return d.cfg.Colors.Info
	}
}

func (d *Discord) guildSettings(ctx context.Context) storage.GuildSettings {
	defaults := storage.GuildSettings{
		GuildID:           d.cfg.GuildID,
		StaffAlertChannel: d.cfg.StaffAlertChannelID,
		TranscriptChannel: d.cfg.TranscriptChannelID,
		TicketCategory:    d.cfg.TicketCategoryID,
	}
	if d.settings == nil {
		return defaults
	}
	settings, err := d.settings.GetGuildSettings(ctx, d.cfg.GuildID, defaults)
	if err != nil {
		d.logger.Warn("guild settings fallback", zap.Error(err))
		return defaults
	}
	return settings
}

func (d *Discord) record(kind string, err *error) {
	if d.recorder != nil {
		d.recorder.Notification(kind, *err)
	}
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
