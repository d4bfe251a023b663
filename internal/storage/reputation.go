package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type StaffReputation struct {
	UserID           string
	Username         string
	AbandonedTickets int
	Sanctions        int
	LastSanctionAt   *time.Time
	RoleRemoved      bool
}

func (s *Store) GetReputation(ctx context.Context, userID string) (StaffReputation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, username, abandoned_tickets, sanctions, last_sanction_at, role_removed
		FROM staff_reputation
		WHERE user_id = $1
	`, userID)
	rep, err := scanReputation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StaffReputation{}, ErrNotFound
	}
	return rep, err
}

// IncrementAbandoned creates the record on first use and adds one abandonment
// in a single statement so concurrent callers never lose an increment.
func (s *Store) IncrementAbandoned(ctx context.Context, userID, username string) (StaffReputation, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO staff_reputation (user_id, username, abandoned_tickets, sanctions, role_removed)
		VALUES ($1, $2, 1, 0, 0)
		ON CONFLICT(user_id) DO UPDATE SET
			abandoned_tickets = staff_reputation.abandoned_tickets + 1,
			username = CASE WHEN excluded.username <> '' THEN excluded.username ELSE staff_reputation.username END
		RETURNING user_id, username, abandoned_tickets, sanctions, last_sanction_at, role_removed
	`, userID, username)
	rep, err := scanReputation(row)
	if err != nil {
		return StaffReputation{}, fmt.Errorf("increment abandoned tickets for %s: %w", userID, err)
	}
	return rep, nil
}

// SaveReputation persists the sanction fields. The abandonment counter is
// owned by IncrementAbandoned and role removal is never reverted here.
func (s *Store) SaveReputation(ctx context.Context, rep StaffReputation) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE staff_reputation SET
			username = $2,
			sanctions = CASE WHEN $3 > sanctions THEN $3 ELSE sanctions END,
			last_sanction_at = COALESCE($4, last_sanction_at),
			role_removed = CASE WHEN role_removed = 1 THEN 1 ELSE $5 END
		WHERE user_id = $1
	`, rep.UserID, rep.Username, rep.Sanctions, nullTime(rep.LastSanctionAt), boolToInt(rep.RoleRemoved))
	if err != nil {
		return fmt.Errorf("save reputation for %s: %w", rep.UserID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListReputations(ctx context.Context) ([]StaffReputation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, username, abandoned_tickets, sanctions, last_sanction_at, role_removed
		FROM staff_reputation
		ORDER BY abandoned_tickets DESC, user_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reps []StaffReputation
	for rows.Next() {
		rep, err := scanReputation(rows)
		if err != nil {
			return nil, err
		}
		reps = append(reps, rep)
	}
	return reps, rows.Err()
}

func scanReputation(row rowScanner) (StaffReputation, error) {
	var rep StaffReputation
	var lastSanction sql.NullInt64
	var removed int
	if err := row.Scan(&rep.UserID, &rep.Username, &rep.AbandonedTickets, &rep.Sanctions, &lastSanction, &removed); err != nil {
		return StaffReputation{}, err
	}
	rep.LastSanctionAt = timeFromNull(lastSanction)
	rep.RoleRemoved = removed == 1
	return rep, nil
}
