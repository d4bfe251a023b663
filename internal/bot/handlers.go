package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"ticketbot/internal/analytics"
	"ticketbot/internal/audit"
	"ticketbot/internal/lifecycle"
	"ticketbot/internal/notify"
	"ticketbot/internal/storage"
	"ticketbot/internal/ticket"
	"ticketbot/internal/transcript"
	"ticketbot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(list []*discordgo.ApplicationCommandInteractionDataOption) options {
	out := make(options, len(list))
	for _, opt := range list {
		if opt != nil {
			out[opt.Name] = opt
		}
	}
	return out
}

func (o options) text(name string) string {
	if opt, ok := o[name]; ok {
		if value, ok := opt.Value.(string); ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func (o options) number(name string, fallback int) int {
	if opt, ok := o[name]; ok {
		if value, ok := opt.Value.(float64); ok {
			return int(value)
		}
	}
	return fallback
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx := context.Background()
	if interaction.GuildID == "" || interaction.GuildID != b.cfg.GuildID {
		lang := b.lang(ctx, interaction)
		b.respondEmbed(session, interaction, b.commandEmbed("", b.t(lang, "reply.not_ticket", nil), b.cfg.Notifications.EmbedColors.Error, nil), true)
		return
	}

	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		data := interaction.ApplicationCommandData()
		switch data.Name {
		case "ticket":
			b.handleTicketCommand(ctx, session, interaction, data.Options)
		case "language":
			b.handleLanguageCommand(ctx, session, interaction, optionMap(data.Options))
		case "reputation":
			b.handleReputationCommand(ctx, session, interaction, optionMap(data.Options))
		case "stats":
			b.handleStatsCommand(ctx, session, interaction, optionMap(data.Options))
		case "proofhost":
			b.handleProofHostCommand(ctx, session, interaction, data.Options)
		case "settings":
			b.handleSettingsCommand(ctx, session, interaction, optionMap(data.Options))
		}
	case discordgo.InteractionMessageComponent:
		lang := b.lang(ctx, interaction)
		switch interaction.MessageComponentData().CustomID {
		case notify.ButtonClaim:
			b.claimTicket(ctx, session, interaction, lang)
		case notify.ButtonClose:
			b.closeTicket(ctx, session, interaction, lang, "")
		case notify.ButtonReopen:
			b.reopenTicket(ctx, session, interaction, lang)
		}
	}
}

func (b *Bot) handleTicketCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, list []*discordgo.ApplicationCommandInteractionDataOption) {
	lang := b.lang(ctx, interaction)
	if len(list) == 0 {
		b.replyError(session, interaction, lang, errors.New("missing subcommand"))
		return
	}
	sub := list[0]
	opts := optionMap(sub.Options)

	switch sub.Name {
	case "open":
		b.openTicket(ctx, session, interaction, lang, opts)
	case "claim":
		b.claimTicket(ctx, session, interaction, lang)
	case "close":
		b.closeTicket(ctx, session, interaction, lang, opts.text("reason"))
	case "reopen":
		b.reopenTicket(ctx, session, interaction, lang)
	case "priority":
		if !b.requireStaff(session, interaction, lang) {
			return
		}
		user := identity(interactionUser(interaction.Interaction))
		if _, err := b.tickets.SetPriority(ctx, interaction.ChannelID, opts.text("level"), user); err != nil {
			b.replyError(session, interaction, lang, err)
			return
		}
		b.reply(session, interaction, lang, "reply.priority", nil, b.cfg.Notifications.EmbedColors.Success)
	case "transcript":
		if !b.requireStaff(session, interaction, lang) {
			return
		}
		t, err := b.tickets.Get(ctx, interaction.ChannelID)
		if err != nil {
			b.replyError(session, interaction, lang, err)
			return
		}
		b.sendTranscript(session, interaction, lang, t)
	case "info":
		t, err := b.tickets.Get(ctx, interaction.ChannelID)
		if err != nil {
			b.replyError(session, interaction, lang, err)
			return
		}
		b.respondEmbed(session, interaction, b.ticketInfoEmbed(lang, t), true)
	default:
		b.replyError(session, interaction, lang, fmt.Errorf("unknown subcommand %q", sub.Name))
	}
}

func (b *Bot) openTicket(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, lang string, opts options) {
	b.deferReply(session, interaction)
	created, err := b.tickets.Open(ctx, lifecycle.OpenRequest{
		Requester: identity(interactionUser(interaction.Interaction)),
		Type:      opts.text("type"),
		Detail:    opts.text("detail"),
		Priority:  opts.text("priority"),
	})
	if err != nil {
		b.editEmbed(session, interaction, b.errorEmbed(interaction, lang, err))
		return
	}
	text := b.t(lang, "reply.opened", map[string]string{"channel": created.ChannelID})
	b.editEmbed(session, interaction, b.commandEmbed("", text, b.cfg.Notifications.EmbedColors.Success, nil))
}

func (b *Bot) claimTicket(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, lang string) {
	if !b.requireStaff(session, interaction, lang) {
		return
	}
	user := identity(interactionUser(interaction.Interaction))
	if _, err := b.tickets.Claim(ctx, interaction.ChannelID, user); err != nil {
		b.replyError(session, interaction, lang, err)
		return
	}
	b.reply(session, interaction, lang, "reply.claimed", nil, b.cfg.Notifications.EmbedColors.Success)
}

// closeTicket accepts staff and the ticket requester. The archive upload runs
// inside Close, so the response is deferred.
func (b *Bot) closeTicket(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, lang, reason string) {
	user := identity(interactionUser(interaction.Interaction))
	t, err := b.tickets.Get(ctx, interaction.ChannelID)
	if err != nil {
		b.replyError(session, interaction, lang, err)
		return
	}
	if !isStaff(interaction.Member, b.cfg.Roles.StaffRoleID) && t.UserID != user.UserID {
		b.reply(session, interaction, lang, "reply.staff_only", nil, b.cfg.Notifications.EmbedColors.Error)
		return
	}
	if reason == "" {
		reason = "-"
	}

	b.deferReply(session, interaction)
	if _, err := b.tickets.Close(ctx, interaction.ChannelID, ticket.Closure{UserID: user.UserID, Username: user.Username, Reason: reason}); err != nil {
		b.editEmbed(session, interaction, b.errorEmbed(interaction, lang, err))
		return
	}
	b.editEmbed(session, interaction, b.commandEmbed("", b.t(lang, "reply.closed", nil), b.cfg.Notifications.EmbedColors.Success, nil))
}

func (b *Bot) reopenTicket(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, lang string) {
	if !b.requireStaff(session, interaction, lang) {
		return
	}
	user := identity(interactionUser(interaction.Interaction))
	if _, err := b.tickets.Reopen(ctx, interaction.ChannelID, user); err != nil {
		b.replyError(session, interaction, lang, err)
		return
	}
	b.reply(session, interaction, lang, "reply.reopened", nil, b.cfg.Notifications.EmbedColors.Success)
}

func (b *Bot) sendTranscript(session *discordgo.Session, interaction *discordgo.InteractionCreate, lang string, t ticket.Ticket) {
	text := b.t(lang, "reply.transcript", map[string]string{"ticket": t.TicketID})
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
			Files: []*discordgo.File{{
				Name:        transcript.FileName(t),
				ContentType: "text/plain",
				Reader:      strings.NewReader(transcript.Render(t)),
			}},
		},
	})
	if err != nil {
		b.logger.Warn("transcript response failed", zap.String("ticket_id", t.TicketID), zap.Error(err))
	}
}

func (b *Bot) ticketInfoEmbed(lang string, t ticket.Ticket) *discordgo.MessageEmbed {
	status := string(t.Status)
	if t.ClaimedBy != nil {
		status += " (<@" + t.ClaimedBy.UserID + ">)"
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: b.t(lang, "field.status", nil), Value: status, Inline: true},
		{Name: "Type", Value: string(t.Type), Inline: true},
		{Name: "Priority", Value: string(t.Priority), Inline: true},
	}
	description := t.Detail
	if description == "" {
		description = "<@" + t.UserID + ">"
	}
	title := b.t(lang, "title.ticket", map[string]string{"ticket": t.TicketID})
	return b.commandEmbed(title, description, b.cfg.Notifications.EmbedColors.Info, fields)
}

func (b *Bot) handleLanguageCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts options) {
	lang := b.lang(ctx, interaction)
	value := strings.ToLower(opts.text("value"))
	if !b.prefs.Catalog().Supported(value) {
		b.replyError(session, interaction, lang, fmt.Errorf("unsupported language %q", value))
		return
	}
	user := identity(interactionUser(interaction.Interaction))

	if opts.text("scope") == "guild" {
		if !canManageGuild(interaction.Member) {
			b.reply(session, interaction, lang, "reply.staff_only", nil, b.cfg.Notifications.EmbedColors.Error)
			return
		}
		settings := b.guildSettings(ctx)
		settings.Language = value
		if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
			b.replyError(session, interaction, lang, err)
			return
		}
	} else if err := b.store.SetUserLanguage(ctx, user.UserID, value, time.Now().UTC()); err != nil {
		b.replyError(session, interaction, lang, err)
		return
	}

	b.audit.Log(ctx, audit.LevelInfo, "", user.UserID, "language_changed", opts.text("scope")+"="+value)
	b.reply(session, interaction, value, "reply.language", map[string]string{"language": value}, b.cfg.Notifications.EmbedColors.Success)
}

func (b *Bot) handleReputationCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts options) {
	lang := b.lang(ctx, interaction)
	if !b.requireStaff(session, interaction, lang) {
		return
	}
	target := interactionUser(interaction.Interaction)
	if opt, ok := opts["user"]; ok {
		target = opt.UserValue(nil)
	}
	if target == nil {
		b.replyError(session, interaction, lang, errors.New("no target user"))
		return
	}

	rep, err := b.store.GetReputation(ctx, target.ID)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(session, interaction, lang, "reply.no_reputation", nil, b.cfg.Notifications.EmbedColors.Info)
		return
	}
	if err != nil {
		b.replyError(session, interaction, lang, err)
		return
	}
	b.respondEmbed(session, interaction, b.reputationEmbed(lang, rep), true)
}

func (b *Bot) reputationEmbed(lang string, rep storage.StaffReputation) *discordgo.MessageEmbed {
	last := "-"
	if rep.LastSanctionAt != nil {
		last = fmt.Sprintf("<t:%d:R>", rep.LastSanctionAt.Unix())
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: b.t(lang, "field.abandoned", nil), Value: strconv.Itoa(rep.AbandonedTickets), Inline: true},
		{Name: b.t(lang, "field.sanctions", nil), Value: strconv.Itoa(rep.Sanctions), Inline: true},
		{Name: b.t(lang, "field.last", nil), Value: last, Inline: true},
		{Name: b.t(lang, "field.role_removed", nil), Value: strconv.FormatBool(rep.RoleRemoved), Inline: true},
	}
	color := b.cfg.Notifications.EmbedColors.Info
	if rep.RoleRemoved {
		color = b.cfg.Notifications.EmbedColors.Error
	}
	title := b.t(lang, "title.reputation", map[string]string{"user": rep.Username})
	return b.commandEmbed(title, "<@"+rep.UserID+">", color, fields)
}

func (b *Bot) handleStatsCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts options) {
	lang := b.lang(ctx, interaction)
	if !b.requireStaff(session, interaction, lang) {
		return
	}
	days := opts.number("days", 7)
	if days <= 0 {
		days = 7
	}
	report, err := b.analytics.Report(ctx, time.Now().UTC().AddDate(0, 0, -days))
	if err != nil {
		b.replyError(session, interaction, lang, err)
		return
	}
	b.respondEmbed(session, interaction, b.statsEmbed(lang, report), true)
}

func (b *Bot) statsEmbed(lang string, report analytics.Report) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: b.t(lang, "field.events", nil), Value: formatReport(report), Inline: false},
		{Name: b.t(lang, "field.status", nil), Value: formatStatus(report.ByStatus), Inline: false},
		{Name: b.t(lang, "field.sanctions", nil), Value: strconv.Itoa(report.Sanctions), Inline: true},
	}
	if len(report.TopClosers) > 0 {
		lines := make([]string, 0, len(report.TopClosers))
		for _, c := range report.TopClosers {
			lines = append(lines, fmt.Sprintf("<@%s> (%d)", c.Key, c.Value))
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: b.t(lang, "field.closers", nil), Value: strings.Join(lines, "\n"), Inline: false})
	}
	return b.commandEmbed(b.t(lang, "title.stats", nil), "", b.cfg.Notifications.EmbedColors.Info, fields)
}

func (b *Bot) handleProofHostCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, list []*discordgo.ApplicationCommandInteractionDataOption) {
	lang := b.lang(ctx, interaction)
	if !b.requireStaff(session, interaction, lang) {
		return
	}
	if len(list) == 0 {
		b.replyError(session, interaction, lang, errors.New("missing subcommand"))
		return
	}
	sub := list[0]
	user := identity(interactionUser(interaction.Interaction))

	switch sub.Name {
	case "list":
		hosts, err := b.store.ListProofHosts(ctx, b.cfg.GuildID)
		if err != nil {
			b.replyError(session, interaction, lang, err)
			return
		}
		all := append(append([]string(nil), utils.DefaultProofHosts...), hosts...)
		sort.Strings(all)
		b.reply(session, interaction, lang, "reply.proof_hosts", map[string]string{"hosts": strings.Join(all, ", ")}, b.cfg.Notifications.EmbedColors.Info)
	case "add", "remove":
		host, err := utils.NormalizeHost(optionMap(sub.Options).text("host"))
		if err != nil {
			b.replyError(session, interaction, lang, err)
			return
		}
		key := "reply.proof_host_added"
		if sub.Name == "add" {
			err = b.store.AddProofHost(ctx, b.cfg.GuildID, host)
		} else {
			key = "reply.proof_host_remove"
			err = b.store.RemoveProofHost(ctx, b.cfg.GuildID, host)
		}
		if err != nil {
			b.replyError(session, interaction, lang, err)
			return
		}
		b.audit.Log(ctx, audit.LevelInfo, "", user.UserID, "proof_host_"+sub.Name, host)
		b.reply(session, interaction, lang, key, map[string]string{"host": host}, b.cfg.Notifications.EmbedColors.Success)
	}
}

func (b *Bot) handleSettingsCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts options) {
	lang := b.lang(ctx, interaction)
	if !canManageGuild(interaction.Member) {
		b.reply(session, interaction, lang, "reply.staff_only", nil, b.cfg.Notifications.EmbedColors.Error)
		return
	}
	settings := b.guildSettings(ctx)
	if opt, ok := opts["alerts"]; ok {
		settings.StaffAlertChannel = opt.ChannelValue(nil).ID
	}
	if opt, ok := opts["transcripts"]; ok {
		settings.TranscriptChannel = opt.ChannelValue(nil).ID
	}
	if opt, ok := opts["category"]; ok {
		settings.TicketCategory = opt.ChannelValue(nil).ID
	}
	if days := opts.number("retention", 0); days > 0 {
		settings.RetentionDays = days
	}
	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.replyError(session, interaction, lang, err)
		return
	}
	user := identity(interactionUser(interaction.Interaction))
	b.audit.Log(ctx, audit.LevelInfo, "", user.UserID, "settings_updated", formatSettings(settings))
	b.reply(session, interaction, lang, "reply.settings", nil, b.cfg.Notifications.EmbedColors.Success)
}

func (b *Bot) requireStaff(session *discordgo.Session, interaction *discordgo.InteractionCreate, lang string) bool {
	if isStaff(interaction.Member, b.cfg.Roles.StaffRoleID) {
		return true
	}
	b.reply(session, interaction, lang, "reply.staff_only", nil, b.cfg.Notifications.EmbedColors.Error)
	return false
}

func (b *Bot) deferReply(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		b.logger.Debug("deferred response failed", zap.Error(err))
	}
}

func (b *Bot) editEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	embeds := []*discordgo.MessageEmbed{embed}
	if _, err := session.InteractionResponseEdit(interaction.Interaction, &discordgo.WebhookEdit{Embeds: &embeds}); err != nil {
		b.logger.Debug("interaction edit failed", zap.Error(err))
	}
}

func formatReport(report analytics.Report) string {
	return fmt.Sprintf("Total: %d | INFO: %d | WARN: %d | CRIT: %d", report.Total, report.ByLevel[audit.LevelInfo], report.ByLevel[audit.LevelWarn], report.ByLevel[audit.LevelCrit])
}

func formatStatus(counts map[ticket.Status]int) string {
	return fmt.Sprintf("%s: %d | %s: %d | %s: %d",
		ticket.StatusOpen, counts[ticket.StatusOpen],
		ticket.StatusClaimed, counts[ticket.StatusClaimed],
		ticket.StatusClosed, counts[ticket.StatusClosed],
	)
}

func formatSettings(s storage.GuildSettings) string {
	return fmt.Sprintf("alerts=%s transcripts=%s category=%s retention=%d", s.StaffAlertChannel, s.TranscriptChannel, s.TicketCategory, s.RetentionDays)
}
