package ticket

import (
	"errors"
	"strconv"
	"time"
)

type Thresholds struct {
	UnclaimedWarn       time.Duration
	UnclaimedSecondWarn time.Duration
	UnclaimedClose      time.Duration
	ClaimedWarn         time.Duration
	Reassign            time.Duration
	ClaimedClose        time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		UnclaimedWarn:       24 * time.Hour,
		UnclaimedSecondWarn: 48 * time.Hour,
		UnclaimedClose:      72 * time.Hour,
		ClaimedWarn:         24 * time.Hour,
		Reassign:            48 * time.Hour,
		ClaimedClose:        72 * time.Hour,
	}
}

func (th Thresholds) Validate() error {
	if th.UnclaimedWarn <= 0 || th.ClaimedWarn <= 0 {
		return errors.New("thresholds must be positive")
	}
	if !(th.UnclaimedWarn < th.UnclaimedSecondWarn && th.UnclaimedSecondWarn < th.UnclaimedClose) {
		return errors.New("unclaimed thresholds must be ascending")
	}
	if !(th.ClaimedWarn < th.Reassign && th.Reassign < th.ClaimedClose) {
		return errors.New("claimed thresholds must be ascending")
	}
	return nil
}

type Action string

const (
	ActionNone                Action = "none"
	ActionWarnUnclaimed       Action = "warn_unclaimed"
	ActionSecondWarnUnclaimed Action = "second_warn_unclaimed"
	ActionWarnClaimed         Action = "warn_claimed"
	ActionReassign            Action = "reassign"
	ActionCloseInactive       Action = "close_inactive"
	ActionCloseAbandoned      Action = "close_abandoned"
)

// ReferenceTime is the instant inactivity is measured from. Open tickets count
// from the later of creation and the last message. Claimed tickets count from
// the later of the claim and the last staff message, so requester messages do
// not hold off reassignment.
func ReferenceTime(t Ticket) time.Time {
	if t.Status == StatusClaimed && t.ClaimedAt != nil {
		ref := *t.ClaimedAt
		if t.LastStaffMessageAt != nil && t.LastStaffMessageAt.After(ref) {
			ref = *t.LastStaffMessageAt
		}
		return ref
	}
	return lastActivity(t)
}

// lastActivity is the later of the status anchor and the last message of
// any author.
func lastActivity(t Ticket) time.Time {
	ref := t.CreatedAt
	if t.Status == StatusClaimed && t.ClaimedAt != nil {
		ref = *t.ClaimedAt
	}
	if t.LastActivity.After(ref) {
		ref = t.LastActivity
	}
	return ref
}

// Evaluate decides at most one action for the ticket. Flags guard each
// warning so repeated evaluation of an unchanged ticket is a no-op.
//
// For claimed tickets the warning and reassignment follow the staff clock
// while the final close needs the whole ticket to be quiet. A warning whose
// flag was cleared by a later message fires again only after a full quiet
// window since that message.
func Evaluate(t Ticket, now time.Time, th Thresholds) Action {
	elapsed := now.Sub(ReferenceTime(t))
	switch t.Status {
	case StatusOpen:
		switch {
		case elapsed >= th.UnclaimedClose:
			return ActionCloseInactive
		case elapsed >= th.UnclaimedSecondWarn && !t.Alert48hSent:
			return ActionSecondWarnUnclaimed
		case elapsed >= th.UnclaimedWarn && !t.Alert24hSent:
			return ActionWarnUnclaimed
		}
	case StatusClaimed:
		quiet := now.Sub(lastActivity(t))
		switch {
		case quiet >= th.ClaimedClose:
			return ActionCloseAbandoned
		case elapsed >= th.Reassign:
			return ActionReassign
		case elapsed >= th.ClaimedWarn && !t.InactivityWarned && claimedWarnDue(t, quiet, th):
			return ActionWarnClaimed
		}
	}
	return ActionNone
}

func claimedWarnDue(t Ticket, quiet time.Duration, th Thresholds) bool {
	warnAt := ReferenceTime(t).Add(th.ClaimedWarn)
	if t.LastActivity.Before(warnAt) {
		return true
	}
	return quiet >= th.ClaimedWarn
}

func ApplyInactivity(t Ticket, action Action, now time.Time) (Ticket, []Effect, error) {
	hours := strconv.Itoa(int(now.Sub(ReferenceTime(t)).Hours()))
	switch action {
	case ActionWarnUnclaimed:
		if t.Status != StatusOpen {
			return t, nil, ErrNoChange
		}
		out := t.clone()
		out.Alert24hSent = true
		return out, []Effect{staffAlert(out.notice(NoticeUnclaimedWarning, "hours", hours))}, nil
	case ActionSecondWarnUnclaimed:
		if t.Status != StatusOpen {
			return t, nil, ErrNoChange
		}
		out := t.clone()
		out.Alert24hSent = true
		out.Alert48hSent = true
		return out, []Effect{staffAlert(out.notice(NoticeUnclaimedSecondWarning, "hours", hours))}, nil
	case ActionWarnClaimed:
		if t.Status != StatusClaimed || t.ClaimedBy == nil {
			return t, nil, ErrNotClaimed
		}
		out := t.clone()
		out.InactivityWarned = true
		staff := out.ClaimedBy.UserID
		return out, []Effect{
			directMessage(staff, out.notice(NoticeClaimedWarningDM, "hours", hours)),
			staffAlert(out.notice(NoticeClaimedWarning, "staff", staff, "hours", hours)),
		}, nil
	case ActionReassign:
		return Reassign(t, ReasonAbandonment)
	case ActionCloseInactive:
		reason := ReasonInactivity
		if t.Status == StatusOpen && t.LastStaffMessageAt == nil {
			reason = ReasonNeverClaimed
		}
		return AutoClose(t, reason, now)
	case ActionCloseAbandoned:
		if t.Status != StatusClaimed || t.ClaimedBy == nil {
			return t, nil, ErrNotClaimed
		}
		previous := *t.ClaimedBy
		out, effects, err := AutoClose(t, ReasonAbandonment, now)
		if err != nil {
			return t, nil, err
		}
		return out, append(effects, sanction(previous, ReasonAbandonment)), nil
	}
	return t, nil, ErrNoChange
}
