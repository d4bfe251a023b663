package ticket

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

type Status string

const (
	StatusOpen    Status = "open"
	StatusClaimed Status = "claimed"
	StatusClosed  Status = "closed"
)

type Type string

const (
	TypeSupport     Type = "support"
	TypeReport      Type = "report"
	TypePurchase    Type = "purchase"
	TypeAppeal      Type = "appeal"
	TypePartnership Type = "partnership"
	TypeOther       Type = "other"
)

var Types = []Type{TypeSupport, TypeReport, TypePurchase, TypeAppeal, TypePartnership, TypeOther}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var Priorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}

const (
	MaxDetailLength   = 1000
	AutoCloseUsername = "AutoClose"

	ReasonInactivity   = "Inactivity"
	ReasonNeverClaimed = "Inactivity: created but never claimed"
	ReasonAbandonment  = "Abandonment"
)

var (
	ErrInvalidType     = errors.New("ticket: invalid type")
	ErrInvalidPriority = errors.New("ticket: invalid priority")
	ErrDetailTooLong   = errors.New("ticket: detail too long")
	ErrAlreadyClaimed  = errors.New("ticket: already claimed")
	ErrNotClaimed      = errors.New("ticket: not claimed")
	ErrClosed          = errors.New("ticket: closed")
	ErrNotClosed       = errors.New("ticket: not closed")
	ErrNoChange        = errors.New("ticket: no change")
)

type Identity struct {
	UserID   string
	Username string
}

type Closure struct {
	UserID   string
	Username string
	Reason   string
}

type Attachment struct {
	URL         string
	Filename    string
	ContentType string
}

type Message struct {
	ID          string
	AuthorID    string
	AuthorName  string
	Staff       bool
	Content     string
	Attachments []Attachment
	Proof       bool
	CreatedAt   time.Time
}

type Ticket struct {
	TicketID  string
	ChannelID string
	UserID    string
	Username  string

	Type     Type
	Detail   string
	Priority Priority

	Status    Status
	ClaimedBy *Identity
	ClaimedAt *time.Time

	CreatedAt          time.Time
	LastActivity       time.Time
	LastStaffMessageAt *time.Time
	InactivityWarned   bool
	Alert24hSent       bool
	Alert48hSent       bool
	ProofDetected      bool

	Messages []Message

	ClosedAt *time.Time
	ClosedBy *Closure

	Version int64
}

type NewTicket struct {
	Number    int64
	ChannelID string
	Requester Identity
	Type      Type
	Detail    string
	Priority  Priority
}

func FormatID(number int64) string {
	return fmt.Sprintf("%04d", number)
}

func ChannelName(number int64) string {
	return "ticket-" + FormatID(number)
}

func ParseType(value string) (Type, error) {
	v := Type(strings.ToLower(strings.TrimSpace(value)))
	for _, t := range Types {
		if t == v {
			return v, nil
		}
	}
	return "", ErrInvalidType
}

func ParsePriority(value string) (Priority, error) {
	v := Priority(strings.ToLower(strings.TrimSpace(value)))
	if v == "" {
		return PriorityNormal, nil
	}
	for _, p := range Priorities {
		if p == v {
			return v, nil
		}
	}
	return "", ErrInvalidPriority
}

func New(in NewTicket, now time.Time) (Ticket, error) {
	if _, err := ParseType(string(in.Type)); err != nil {
		return Ticket{}, err
	}
	if utf8.RuneCountInString(in.Detail) > MaxDetailLength {
		return Ticket{}, ErrDetailTooLong
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if _, err := ParsePriority(string(priority)); err != nil {
		return Ticket{}, err
	}
	return Ticket{
		TicketID:     FormatID(in.Number),
		ChannelID:    in.ChannelID,
		UserID:       in.Requester.UserID,
		Username:     in.Requester.Username,
		Type:         in.Type,
		Detail:       strings.TrimSpace(in.Detail),
		Priority:     priority,
		Status:       StatusOpen,
		CreatedAt:    now,
		LastActivity: now,
	}, nil
}

func (t Ticket) Active() bool {
	return t.Status == StatusOpen || t.Status == StatusClaimed
}

func (t Ticket) Validate() error {
	switch t.Status {
	case StatusOpen, StatusClaimed, StatusClosed:
	default:
		return fmt.Errorf("ticket %s: unknown status %q", t.TicketID, t.Status)
	}
	if (t.ClaimedBy != nil) != (t.Status == StatusClaimed) {
		return fmt.Errorf("ticket %s: claimedBy set=%t with status %s", t.TicketID, t.ClaimedBy != nil, t.Status)
	}
	if (t.ClaimedAt != nil) != (t.Status == StatusClaimed) {
		return fmt.Errorf("ticket %s: claimedAt set=%t with status %s", t.TicketID, t.ClaimedAt != nil, t.Status)
	}
	closed := t.Status == StatusClosed
	if (t.ClosedAt != nil) != closed || (t.ClosedBy != nil) != closed {
		return fmt.Errorf("ticket %s: closure fields inconsistent with status %s", t.TicketID, t.Status)
	}
	return nil
}

func (t Ticket) clone() Ticket {
	out := t
	if t.ClaimedBy != nil {
		c := *t.ClaimedBy
		out.ClaimedBy = &c
	}
	out.ClaimedAt = cloneTime(t.ClaimedAt)
	out.LastStaffMessageAt = cloneTime(t.LastStaffMessageAt)
	out.ClosedAt = cloneTime(t.ClosedAt)
	if t.ClosedBy != nil {
		c := *t.ClosedBy
		out.ClosedBy = &c
	}
	if t.Messages != nil {
		out.Messages = make([]Message, len(t.Messages))
		for i, m := range t.Messages {
			if m.Attachments != nil {
				m.Attachments = append([]Attachment(nil), m.Attachments...)
			}
			out.Messages[i] = m
		}
	}
	return out
}

func (t *Ticket) resetEscalation() {
	t.InactivityWarned = false
	t.Alert24hSent = false
	t.Alert48hSent = false
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func timePtr(v time.Time) *time.Time {
	return &v
}
