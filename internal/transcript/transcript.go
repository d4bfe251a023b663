package transcript

import (
	"fmt"
	"strings"
	"time"

	"ticketbot/internal/ticket"
)

const timeLayout = "2006-01-02 15:04:05"

func FileName(t ticket.Ticket) string {
	return fmt.Sprintf("ticket-%s-transcript.txt", t.TicketID)
}

// Render writes the ticket header followed by every message in order.
// Timestamps are rendered in UTC.
func Render(t ticket.Ticket) string {
	var sb strings.Builder
	sb.WriteString("=== TICKET TRANSCRIPT ===\n")
	fmt.Fprintf(&sb, "Ticket: #%s\n", t.TicketID)
	fmt.Fprintf(&sb, "Requester: %s (%s)\n", t.Username, t.UserID)
	fmt.Fprintf(&sb, "Type: %s\n", t.Type)
	fmt.Fprintf(&sb, "Priority: %s\n", t.Priority)
	fmt.Fprintf(&sb, "Status: %s\n", t.Status)
	fmt.Fprintf(&sb, "Opened: %s\n", stamp(t.CreatedAt))
	if t.ClosedAt != nil && t.ClosedBy != nil {
		fmt.Fprintf(&sb, "Closed: %s by %s (%s)\n", stamp(*t.ClosedAt), t.ClosedBy.Username, t.ClosedBy.Reason)
	}
	if t.Detail != "" {
		fmt.Fprintf(&sb, "Detail: %s\n", t.Detail)
	}
	sb.WriteString("\n")

	if len(t.Messages) == 0 {
		sb.WriteString("(no messages)\n")
		return sb.String()
	}
	for _, m := range t.Messages {
		author := m.AuthorName
		if m.Staff {
			author += " [staff]"
		}
		fmt.Fprintf(&sb, "[%s] %s: %s\n", stamp(m.CreatedAt), author, m.Content)
		for _, a := range m.Attachments {
			fmt.Fprintf(&sb, "  attachment: %s\n", a.URL)
		}
	}
	return sb.String()
}

func stamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
