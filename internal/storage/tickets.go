package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ticketbot/internal/ticket"
)

const ticketColumns = `
	ticket_id, channel_id, user_id, username, type, detail, priority, status,
	claimed_by_id, claimed_by_name, claimed_at, created_at, last_activity, last_staff_message_at,
	inactivity_warned, alert_24h_sent, alert_48h_sent, proof_detected,
	closed_at, closed_by_id, closed_by_name, close_reason, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) NextTicketNumber(ctx context.Context) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO counters (name, value) VALUES ('ticket', 1)
		ON CONFLICT(name) DO UPDATE SET value = counters.value + 1
		RETURNING value
	`).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("next ticket number: %w", err)
	}
	return value, nil
}

func (s *Store) CreateTicket(ctx context.Context, t ticket.Ticket) (ticket.Ticket, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ticket.Ticket{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	t.Version = 1
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`, ticketArgs(t)...)
	if err != nil {
		return ticket.Ticket{}, fmt.Errorf("create ticket %s: %w", t.TicketID, err)
	}
	if t.Messages, err = appendMessages(ctx, tx, t.TicketID, t.Messages, 0); err != nil {
		return ticket.Ticket{}, err
	}
	if err = tx.Commit(); err != nil {
		return ticket.Ticket{}, err
	}
	return t, nil
}

// SaveTicket writes the ticket if its stored version still matches t.Version
// and appends any messages beyond those already persisted.
func (s *Store) SaveTicket(ctx context.Context, t ticket.Ticket) (ticket.Ticket, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ticket.Ticket{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	args := ticketArgs(t)
	res, err := tx.ExecContext(ctx, `
		UPDATE tickets SET
			channel_id = $2, user_id = $3, username = $4, type = $5, detail = $6, priority = $7, status = $8,
			claimed_by_id = $9, claimed_by_name = $10, claimed_at = $11, created_at = $12, last_activity = $13,
			last_staff_message_at = $14, inactivity_warned = $15, alert_24h_sent = $16, alert_48h_sent = $17,
			proof_detected = $18, closed_at = $19, closed_by_id = $20, closed_by_name = $21, close_reason = $22,
			version = version + 1
		WHERE ticket_id = $1 AND version = $23
	`, args...)
	if err != nil {
		return ticket.Ticket{}, fmt.Errorf("save ticket %s: %w", t.TicketID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return ticket.Ticket{}, err
	}
	if affected == 0 {
		var exists int
		scanErr := tx.QueryRowContext(ctx, `SELECT 1 FROM tickets WHERE ticket_id = $1`, t.TicketID).Scan(&exists)
		switch {
		case errors.Is(scanErr, sql.ErrNoRows):
			err = ErrNotFound
		case scanErr != nil:
			err = scanErr
		default:
			err = ErrVersionConflict
		}
		return ticket.Ticket{}, err
	}

	var stored int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM ticket_messages WHERE ticket_id = $1`, t.TicketID).Scan(&stored); err != nil {
		return ticket.Ticket{}, err
	}
	if t.Messages, err = appendMessages(ctx, tx, t.TicketID, t.Messages, stored); err != nil {
		return ticket.Ticket{}, err
	}
	if err = tx.Commit(); err != nil {
		return ticket.Ticket{}, err
	}
	t.Version++
	return t, nil
}

func (s *Store) GetTicket(ctx context.Context, ticketID string) (ticket.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = $1`, ticketID)
	return s.loadTicket(ctx, row)
}

func (s *Store) GetTicketByChannel(ctx context.Context, channelID string) (ticket.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE channel_id = $1`, channelID)
	return s.loadTicket(ctx, row)
}

// ListActiveTickets returns open and claimed tickets without their message
// history.
func (s *Store) ListActiveTickets(ctx context.Context) ([]ticket.Ticket, error) {
	return s.listTickets(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE status IN ($1, $2) ORDER BY ticket_id`,
		string(ticket.StatusOpen), string(ticket.StatusClaimed))
}

func (s *Store) ListTicketsByUser(ctx context.Context, userID string) ([]ticket.Ticket, error) {
	return s.listTickets(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE user_id = $1 ORDER BY ticket_id`, userID)
}

func (s *Store) CountOpenByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tickets WHERE user_id = $1 AND status IN ($2, $3)
	`, userID, string(ticket.StatusOpen), string(ticket.StatusClaimed)).Scan(&count)
	return count, err
}

func (s *Store) CountByStatus(ctx context.Context) (map[ticket.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[ticket.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[ticket.Status(status)] = count
	}
	return counts, rows.Err()
}

func (s *Store) listTickets(ctx context.Context, query string, args ...any) ([]ticket.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []ticket.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (s *Store) loadTicket(ctx context.Context, row rowScanner) (ticket.Ticket, error) {
	t, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ticket.Ticket{}, ErrNotFound
		}
		return ticket.Ticket{}, err
	}
	t.Messages, err = s.ListMessages(ctx, t.TicketID)
	if err != nil {
		return ticket.Ticket{}, err
	}
	return t, nil
}

func (s *Store) ListMessages(ctx context.Context, ticketID string) ([]ticket.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author_id, author_name, staff, content, attachments, proof, created_at
		FROM ticket_messages
		WHERE ticket_id = $1
		ORDER BY seq
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []ticket.Message
	for rows.Next() {
		var m ticket.Message
		var staff, proof int
		var attachments string
		var created int64
		if err := rows.Scan(&m.ID, &m.AuthorID, &m.AuthorName, &staff, &m.Content, &attachments, &proof, &created); err != nil {
			return nil, err
		}
		m.Staff = staff == 1
		m.Proof = proof == 1
		m.CreatedAt = fromUnixNano(created)
		if attachments != "" {
			if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
				return nil, fmt.Errorf("decode attachments of message %s: %w", m.ID, err)
			}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func appendMessages(ctx context.Context, tx *sql.Tx, ticketID string, messages []ticket.Message, stored int) ([]ticket.Message, error) {
	if stored >= len(messages) {
		return messages, nil
	}
	out := append([]ticket.Message(nil), messages...)
	for i := stored; i < len(out); i++ {
		m := &out[i]
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		attachments := ""
		if len(m.Attachments) > 0 {
			raw, err := json.Marshal(m.Attachments)
			if err != nil {
				return nil, err
			}
			attachments = string(raw)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ticket_messages (id, ticket_id, seq, author_id, author_name, staff, content, attachments, proof, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, m.ID, ticketID, i, m.AuthorID, m.AuthorName, boolToInt(m.Staff), m.Content, attachments, boolToInt(m.Proof), unixNano(m.CreatedAt))
		if err != nil {
			return nil, fmt.Errorf("append message to ticket %s: %w", ticketID, err)
		}
	}
	return out, nil
}

func ticketArgs(t ticket.Ticket) []any {
	var claimedID, claimedName any
	if t.ClaimedBy != nil {
		claimedID, claimedName = t.ClaimedBy.UserID, t.ClaimedBy.Username
	}
	var closedID, closedName, closeReason any
	if t.ClosedBy != nil {
		closedID, closedName, closeReason = t.ClosedBy.UserID, t.ClosedBy.Username, t.ClosedBy.Reason
	}
	return []any{
		t.TicketID, t.ChannelID, t.UserID, t.Username, string(t.Type), t.Detail, string(t.Priority), string(t.Status),
		claimedID, claimedName, nullTime(t.ClaimedAt), unixNano(t.CreatedAt), unixNano(t.LastActivity), nullTime(t.LastStaffMessageAt),
		boolToInt(t.InactivityWarned), boolToInt(t.Alert24hSent), boolToInt(t.Alert48hSent), boolToInt(t.ProofDetected),
		nullTime(t.ClosedAt), closedID, closedName, closeReason, t.Version,
	}
}

func scanTicket(row rowScanner) (ticket.Ticket, error) {
	var t ticket.Ticket
	var kind, priority, status string
	var claimedID, claimedName, closedID, closedName, closeReason sql.NullString
	var claimedAt, lastStaff, closedAt sql.NullInt64
	var created, lastActivity int64
	var warned, alert24, alert48, proof int
	err := row.Scan(
		&t.TicketID, &t.ChannelID, &t.UserID, &t.Username, &kind, &t.Detail, &priority, &status,
		&claimedID, &claimedName, &claimedAt, &created, &lastActivity, &lastStaff,
		&warned, &alert24, &alert48, &proof,
		&closedAt, &closedID, &closedName, &closeReason, &t.Version,
	)
	if err != nil {
		return ticket.Ticket{}, err
	}
	t.Type = ticket.Type(kind)
	t.Priority = ticket.Priority(priority)
	t.Status = ticket.Status(status)
	if claimedID.Valid {
		t.ClaimedBy = &ticket.Identity{UserID: claimedID.String, Username: claimedName.String}
	}
	t.ClaimedAt = timeFromNull(claimedAt)
	t.CreatedAt = fromUnixNano(created)
	t.LastActivity = fromUnixNano(lastActivity)
	t.LastStaffMessageAt = timeFromNull(lastStaff)
	t.InactivityWarned = warned == 1
	t.Alert24hSent = alert24 == 1
	t.Alert48hSent = alert48 == 1
	t.ProofDetected = proof == 1
	t.ClosedAt = timeFromNull(closedAt)
	if closedName.Valid || closedID.Valid || closeReason.Valid {
		t.ClosedBy = &ticket.Closure{UserID: closedID.String, Username: closedName.String, Reason: closeReason.String}
	}
	return t, nil
}
