package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"ticketbot/internal/i18n"
	"ticketbot/internal/sanction"
	"ticketbot/internal/storage"
	"ticketbot/internal/ticket"
)

type fakeAPI struct {
	mu        sync.Mutex
	embeds    map[string][]*discordgo.MessageEmbed
	complex   map[string][]*discordgo.MessageSend
	files     map[string]string
	created   []discordgo.GuildChannelCreateData
	deleted   []string
	timeouts  []time.Time
	removed   []string
	memberErr error
	dmErr     error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		embeds:  make(map[string][]*discordgo.MessageEmbed),
		complex: make(map[string][]*discordgo.MessageSend),
		files:   make(map[string]string),
	}
}

func (f *fakeAPI) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeds[channelID] = append(f.embeds[channelID], embed)
	return &discordgo.Message{ID: "m1", ChannelID: channelID}, nil
}

func (f *fakeAPI) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complex[channelID] = append(f.complex[channelID], data)
	for _, file := range data.Files {
		raw, _ := io.ReadAll(file.Reader)
		f.files[file.Name] = string(raw)
	}
	return &discordgo.Message{ID: "m2", ChannelID: channelID}, nil
}

func (f *fakeAPI) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.dmErr != nil {
		return nil, f.dmErr
	}
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *fakeAPI) GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	if f.memberErr != nil {
		return nil, f.memberErr
	}
	return &discordgo.Member{User: &discordgo.User{ID: userID}}, nil
}

func (f *fakeAPI) GuildMemberTimeout(guildID, userID string, until *time.Time, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeouts = append(f.timeouts, *until)
	return nil
}

func (f *fakeAPI) GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, userID+":"+roleID)
	return nil
}

func (f *fakeAPI) GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, data)
	return &discordgo.Channel{ID: "chan-" + data.Name, Name: data.Name}, nil
}

func (f *fakeAPI) ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, channelID)
	return &discordgo.Channel{ID: channelID}, nil
}

type fixedLanguages map[string]string

func (f fixedLanguages) For(ctx context.Context, userID, locale string) string {
	if lang, ok := f[userID]; ok {
		return lang
	}
	return "en"
}

type settingsStore struct {
	alert string
}

func (s settingsStore) GetGuildSettings(ctx context.Context, guildID string, defaults storage.GuildSettings) (storage.GuildSettings, error) {
	if s.alert != "" {
		defaults.StaffAlertChannel = s.alert
	}
	return defaults, nil
}

type fakeScheduler struct {
	scheduled []string
	cancelled []string
}

func (f *fakeScheduler) Schedule(channelID string) bool {
	f.scheduled = append(f.scheduled, channelID)
	return true
}

func (f *fakeScheduler) Cancel(channelID string) bool {
	f.cancelled = append(f.cancelled, channelID)
	return true
}

func newDiscord(api *fakeAPI, settings SettingsStore) *Discord {
	cfg := Config{
		GuildID:             "guild",
		StaffRoleID:         "staff-role",
		StaffAlertChannelID: "alerts",
		TranscriptChannelID: "archive",
		TicketCategoryID:    "category",
		Colors:              Colors{Info: 1, Warning: 2, Error: 3, Success: 4},
	}
	return New(cfg, api, i18n.New("fr"), fixedLanguages{"u-fr": "fr", "u-es": "es"}, settings, zap.NewNop())
}

func TestStaffAlertUsesGuildChannel(t *testing.T) {
	api := newFakeAPI()
	d := newDiscord(api, settingsStore{})
	notice := ticket.Notice{Key: ticket.NoticeUnclaimedWarning, Params: map[string]string{"ticket": "0003", "channel": "c3", "hours": "24"}}

	if err := d.StaffAlert(context.Background(), notice); err != nil {
		t.Fatalf("staff alert: %v", err)
	}
	sent := api.embeds["alerts"]
	if len(sent) != 1 {
		t.Fatalf("expected one alert, got %d", len(sent))
	}
	if sent[0].Description != "Ticket #0003 (<#c3>) has been unclaimed for 24h." || sent[0].Color != 2 {
		t.Fatalf("unexpected embed %+v", sent[0])
	}

	d = newDiscord(api, settingsStore{alert: "override"})
	if err := d.StaffAlert(context.Background(), notice); err != nil {
		t.Fatalf("staff alert: %v", err)
	}
	if len(api.embeds["override"]) != 1 {
		t.Fatalf("expected guild override channel to be used")
	}
}

func TestStaffAlertWithoutChannel(t *testing.T) {
	api := newFakeAPI()
	d := New(Config{GuildID: "guild"}, api, i18n.New("fr"), fixedLanguages{}, nil, zap.NewNop())
	if err := d.StaffAlert(context.Background(), ticket.Notice{Key: ticket.NoticeProofReceived}); !errors.Is(err, ErrNoChannel) {
		t.Fatalf("expected no channel error, got %v", err)
	}
}

func TestDirectMessageLocalized(t *testing.T) {
	api := newFakeAPI()
	d := newDiscord(api, settingsStore{})
	notice := ticket.Notice{Key: "sanction.warning_dm", Params: map[string]string{"reason": "Abandonment", "count": "1"}}

	if err := d.DirectMessage(context.Background(), "u-es", notice); err != nil {
		t.Fatalf("dm: %v", err)
	}
	sent := api.embeds["dm-u-es"]
	if len(sent) != 1 || sent[0].Title != "Sanción de staff" || !strings.Contains(sent[0].Description, "Advertencia") {
		t.Fatalf("unexpected dm %+v", sent)
	}

	api.dmErr = errors.New("cannot send messages to this user")
	if err := d.DirectMessage(context.Background(), "u-fr", notice); err == nil {
		t.Fatalf("expected dm error")
	}
}

func TestTicketNoticeButtons(t *testing.T) {
	api := newFakeAPI()
	d := newDiscord(api, settingsStore{})
	notice := ticket.Notice{Key: ticket.NoticeTicketOpened, Params: map[string]string{"user": "u-fr", "type": "support", "priority": "normal", "ticket": "0001"}}

	if err := d.TicketNotice(context.Background(), "c1", notice); err != nil {
		t.Fatalf("ticket notice: %v", err)
	}
	sent := api.complex["c1"]
	if len(sent) != 1 || len(sent[0].Components) != 1 {
		t.Fatalf("expected one message with an action row, got %+v", sent)
	}
	row := sent[0].Components[0].(discordgo.ActionsRow)
	if len(row.Components) != 2 || row.Components[0].(discordgo.Button).CustomID != ButtonClaim {
		t.Fatalf("unexpected buttons %+v", row.Components)
	}
	if !strings.HasPrefix(sent[0].Embeds[0].Description, "Bienvenue <@u-fr>") {
		t.Fatalf("expected french welcome, got %q", sent[0].Embeds[0].Description)
	}

	if got := d.Buttons("en", ticket.NoticePriorityChanged); got != nil {
		t.Fatalf("expected no buttons, got %+v", got)
	}
}

func TestLookupMemberMapsUnknownMember(t *testing.T) {
	api := newFakeAPI()
	d := newDiscord(api, settingsStore{})
	if err := d.LookupMember(context.Background(), "s1"); err != nil {
		t.Fatalf("lookup: %v", err)
	}

	api.memberErr = &discordgo.RESTError{
		Response: &http.Response{Status: "404 Not Found", StatusCode: http.StatusNotFound},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMember, Message: "Unknown Member"},
	}
	if err := d.LookupMember(context.Background(), "s1"); !errors.Is(err, sanction.ErrMemberNotFound) {
		t.Fatalf("expected member not found, got %v", err)
	}

	api.memberErr = errors.New("gateway timeout")
	if err := d.LookupMember(context.Background(), "s1"); err == nil || errors.Is(err, sanction.ErrMemberNotFound) {
		t.Fatalf("expected raw error, got %v", err)
	}
}

func TestModeratorActions(t *testing.T) {
	api := newFakeAPI()
	d := newDiscord(api, settingsStore{})
	until := time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)
	if err := d.Timeout(context.Background(), "s1", until); err != nil {
		t.Fatalf("timeout: %v", err)
	}
	if err := d.RemoveRole(context.Background(), "s1", "staff-role"); err != nil {
		t.Fatalf("remove role: %v", err)
	}
	if len(api.timeouts) != 1 || !api.timeouts[0].Equal(until) {
		t.Fatalf("unexpected timeouts %v", api.timeouts)
	}
	if len(api.removed) != 1 || api.removed[0] != "s1:staff-role" {
		t.Fatalf("unexpected removals %v", api.removed)
	}
}

func TestArchiveUploadsTranscriptAndSchedules(t *testing.T) {
	api := newFakeAPI()
	d := newDiscord(api, settingsStore{})
	scheduler := &fakeScheduler{}
	d.WithScheduler(scheduler)

	closedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tk := ticket.Ticket{
		TicketID:  "0009",
		ChannelID: "c9",
		UserID:    "u1",
		Username:  "alice",
		Type:      ticket.TypeSupport,
		Priority:  ticket.PriorityNormal,
		Status:    ticket.StatusClosed,
		ClosedAt:  &closedAt,
		ClosedBy:  &ticket.Closure{Username: "bob", Reason: "solved"},
		Messages:  []ticket.Message{{AuthorName: "alice", Content: "thanks", CreatedAt: closedAt}},
	}
	if err := d.Archive(context.Background(), tk); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if len(api.complex["archive"]) != 1 {
		t.Fatalf("expected transcript upload")
	}
	if body := api.files["ticket-0009-transcript.txt"]; !strings.Contains(body, "alice: thanks") {
		t.Fatalf("unexpected transcript %q", body)
	}
	if len(scheduler.scheduled) != 1 || scheduler.scheduled[0] != "c9" {
		t.Fatalf("expected deletion scheduled, got %v", scheduler.scheduled)
	}
	if !d.CancelArchive("c9") || len(scheduler.cancelled) != 1 {
		t.Fatalf("expected cancellation")
	}
}

func TestCreateTicketChannel(t *testing.T) {
	api := newFakeAPI()
	d := newDiscord(api, settingsStore{})
	id, err := d.CreateTicketChannel(context.Background(), 12, ticket.Identity{UserID: "u1", Username: "alice"})
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if id != "chan-ticket-0012" {
		t.Fatalf("unexpected channel id %s", id)
	}
	data := api.created[0]
	if data.ParentID != "category" || len(data.PermissionOverwrites) != 3 {
		t.Fatalf("unexpected channel data %+v", data)
	}
	everyone := data.PermissionOverwrites[0]
	if everyone.ID != "guild" || everyone.Deny&discordgo.PermissionViewChannel == 0 {
		t.Fatalf("expected everyone to be denied, got %+v", everyone)
	}
	if err := d.DeleteChannel(context.Background(), id); err != nil || len(api.deleted) != 1 {
		t.Fatalf("expected delete, got %v / %v", err, api.deleted)
	}
}
