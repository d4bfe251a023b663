package ticket

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestTicket(t *testing.T) Ticket {
	t.Helper()
	tk, err := New(NewTicket{
		Number:    7,
		ChannelID: "chan-1",
		Requester: Identity{UserID: "user-1", Username: "alice"},
		Type:      TypeSupport,
		Detail:    "  cannot log in  ",
	}, t0)
	if err != nil {
		t.Fatalf("new ticket: %v", err)
	}
	return tk
}

func TestNewTicket(t *testing.T) {
	tk := newTestTicket(t)
	if tk.TicketID != "0007" {
		t.Fatalf("expected zero padded id, got %s", tk.TicketID)
	}
	if tk.Status != StatusOpen || tk.Priority != PriorityNormal {
		t.Fatalf("unexpected initial state %s/%s", tk.Status, tk.Priority)
	}
	if tk.Detail != "cannot log in" {
		t.Fatalf("expected trimmed detail, got %q", tk.Detail)
	}
	if err := tk.Validate(); err != nil {
		t.Fatalf("expected valid ticket, got %v", err)
	}
}

func TestNewTicketRejectsInvalidInput(t *testing.T) {
	_, err := New(NewTicket{Number: 1, Type: "billing"}, t0)
	if !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected invalid type, got %v", err)
	}
	_, err = New(NewTicket{Number: 1, Type: TypeOther, Detail: strings.Repeat("é", MaxDetailLength+1)}, t0)
	if !errors.Is(err, ErrDetailTooLong) {
		t.Fatalf("expected detail too long, got %v", err)
	}
}

func TestClaimSetsOwnershipAndResetsFlags(t *testing.T) {
	tk := newTestTicket(t)
	tk.Alert24hSent = true
	tk.Alert48hSent = true
	at := t0.Add(2 * time.Hour)

	claimed, effects, err := Claim(tk, Identity{UserID: "staff-1", Username: "bob"}, at)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != StatusClaimed || claimed.ClaimedBy == nil || claimed.ClaimedBy.UserID != "staff-1" {
		t.Fatalf("expected claimed by staff-1, got %+v", claimed.ClaimedBy)
	}
	if !claimed.ClaimedAt.Equal(at) || !claimed.LastStaffMessageAt.Equal(at) {
		t.Fatalf("expected claim timestamps at %v", at)
	}
	if claimed.InactivityWarned || claimed.Alert24hSent || claimed.Alert48hSent {
		t.Fatalf("expected escalation flags reset")
	}
	if len(effects) != 1 || effects[0].Kind != EffectTicketNotice {
		t.Fatalf("expected one ticket notice, got %+v", effects)
	}
	if tk.Status != StatusOpen || !tk.Alert24hSent {
		t.Fatalf("expected input ticket untouched")
	}

	if _, _, err := Claim(claimed, Identity{UserID: "staff-2"}, at); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected already claimed, got %v", err)
	}
}

func TestAddMessageResetsFlagsAndDetectsProofOnce(t *testing.T) {
	tk := newTestTicket(t)
	tk.InactivityWarned = true
	tk.Alert24hSent = true

	msg := Message{ID: "m1", AuthorID: "user-1", Content: "see screenshot", Proof: true, CreatedAt: t0.Add(time.Hour),
		Attachments: []Attachment{{URL: "https://cdn.example/a.png", Filename: "a.png", ContentType: "image/png"}}}
	out, effects, err := AddMessage(tk, msg)
	if err != nil {
		t.Fatalf("add message: %v", err)
	}
	if out.InactivityWarned || out.Alert24hSent || out.Alert48hSent {
		t.Fatalf("expected flags reset after activity")
	}
	if !out.LastActivity.Equal(msg.CreatedAt) {
		t.Fatalf("expected last activity %v, got %v", msg.CreatedAt, out.LastActivity)
	}
	if out.LastStaffMessageAt != nil {
		t.Fatalf("expected requester message not to stamp staff time")
	}
	if !out.ProofDetected || len(effects) != 1 || effects[0].Notice.Key != NoticeProofReceived {
		t.Fatalf("expected proof alert, got %+v", effects)
	}
	if len(tk.Messages) != 0 {
		t.Fatalf("expected input history untouched")
	}

	msg.ID = "m2"
	msg.Staff = true
	out2, effects, err := AddMessage(out, msg)
	if err != nil {
		t.Fatalf("add message: %v", err)
	}
	if len(effects) != 0 {
		t.Fatalf("expected proof alert only once, got %+v", effects)
	}
	if out2.LastStaffMessageAt == nil || len(out2.Messages) != 2 {
		t.Fatalf("expected staff stamp and two messages")
	}
}

func TestCloseAndReopen(t *testing.T) {
	tk := newTestTicket(t)
	claimed, _, _ := Claim(tk, Identity{UserID: "staff-1"}, t0)
	closed, effects, err := Close(claimed, Closure{UserID: "staff-1", Username: "bob", Reason: "resolved"}, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := closed.Validate(); err != nil {
		t.Fatalf("expected valid closed ticket: %v", err)
	}
	if closed.ClaimedBy != nil || closed.ClosedBy.Reason != "resolved" {
		t.Fatalf("unexpected closure %+v", closed.ClosedBy)
	}
	if effects[len(effects)-1].Kind != EffectArchive {
		t.Fatalf("expected archive effect, got %+v", effects)
	}
	if _, _, err := AddMessage(closed, Message{CreatedAt: t0}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}

	reopened, effects, err := Reopen(closed, Identity{UserID: "user-1"}, t0.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Status != StatusOpen || reopened.ClosedAt != nil || reopened.ClosedBy != nil {
		t.Fatalf("expected closure cleared, got %+v", reopened)
	}
	if effects[0].Kind != EffectCancelArchive {
		t.Fatalf("expected archive cancellation first, got %+v", effects)
	}
	if _, _, err := Reopen(reopened, Identity{}, t0); !errors.Is(err, ErrNotClosed) {
		t.Fatalf("expected not closed, got %v", err)
	}
}

func TestReassignRequestsSanction(t *testing.T) {
	tk := newTestTicket(t)
	claimed, _, _ := Claim(tk, Identity{UserID: "staff-1", Username: "bob"}, t0)
	claimed.InactivityWarned = true

	out, effects, err := Reassign(claimed, ReasonAbandonment)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if out.Status != StatusOpen || out.ClaimedBy != nil || out.ClaimedAt != nil {
		t.Fatalf("expected claim cleared, got %+v", out)
	}
	if err := out.Validate(); err != nil {
		t.Fatalf("expected valid ticket, got %v", err)
	}
	var sanctioned *Effect
	for i := range effects {
		if effects[i].Kind == EffectSanction {
			sanctioned = &effects[i]
		}
	}
	if sanctioned == nil || sanctioned.Staff.UserID != "staff-1" || sanctioned.Reason != ReasonAbandonment {
		t.Fatalf("expected sanction against staff-1, got %+v", effects)
	}
	if _, _, err := Reassign(out, ReasonAbandonment); !errors.Is(err, ErrNotClaimed) {
		t.Fatalf("expected not claimed, got %v", err)
	}
}

func TestSetPriority(t *testing.T) {
	tk := newTestTicket(t)
	out, effects, err := SetPriority(tk, PriorityUrgent, Identity{UserID: "staff-1"})
	if err != nil || out.Priority != PriorityUrgent || len(effects) != 1 {
		t.Fatalf("expected urgent priority, got %s (%v)", out.Priority, err)
	}
	if _, _, err := SetPriority(out, PriorityUrgent, Identity{}); !errors.Is(err, ErrNoChange) {
		t.Fatalf("expected no change, got %v", err)
	}
	if _, _, err := SetPriority(out, "critical", Identity{}); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("expected invalid priority, got %v", err)
	}
}
