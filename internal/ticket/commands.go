package ticket

import "time"

func Opened(t Ticket) []Effect {
	return []Effect{
		channelNotice(t.ChannelID, t.notice(NoticeTicketOpened, "priority", string(t.Priority))),
	}
}

func Claim(t Ticket, staff Identity, now time.Time) (Ticket, []Effect, error) {
	switch t.Status {
	case StatusClosed:
		return t, nil, ErrClosed
	case StatusClaimed:
		return t, nil, ErrAlreadyClaimed
	}
	out := t.clone()
	out.Status = StatusClaimed
	out.ClaimedBy = &Identity{UserID: staff.UserID, Username: staff.Username}
	out.ClaimedAt = timePtr(now)
	out.LastStaffMessageAt = timePtr(now)
	out.LastActivity = now
	out.resetEscalation()
	return out, []Effect{
		channelNotice(out.ChannelID, out.notice(NoticeTicketClaimed, "staff", staff.UserID)),
	}, nil
}

func AddMessage(t Ticket, msg Message) (Ticket, []Effect, error) {
	if t.Status == StatusClosed {
		return t, nil, ErrClosed
	}
	out := t.clone()
	if msg.Attachments != nil {
		msg.Attachments = append([]Attachment(nil), msg.Attachments...)
	}
	out.Messages = append(out.Messages, msg)
	if msg.CreatedAt.After(out.LastActivity) {
		out.LastActivity = msg.CreatedAt
	}
	if msg.Staff {
		out.LastStaffMessageAt = timePtr(msg.CreatedAt)
	}
	out.resetEscalation()

	var effects []Effect
	if msg.Proof && !out.ProofDetected {
		out.ProofDetected = true
		effects = append(effects, staffAlert(out.notice(NoticeProofReceived, "author", msg.AuthorID)))
	}
	return out, effects, nil
}

// Reassign moves a claimed ticket back to the open queue. Both unclaimed
// escalation flags are set so the ticket goes straight to the close window
// instead of re-sending the unclaimed warnings.
func Reassign(t Ticket, reason string) (Ticket, []Effect, error) {
	if t.Status != StatusClaimed || t.ClaimedBy == nil {
		return t, nil, ErrNotClaimed
	}
	previous := *t.ClaimedBy
	out := t.clone()
	out.Status = StatusOpen
	out.ClaimedBy = nil
	out.ClaimedAt = nil
	out.InactivityWarned = false
	out.Alert24hSent = true
	out.Alert48hSent = true
	return out, []Effect{
		staffAlert(out.notice(NoticeReassignedAlert, "staff", previous.UserID, "reason", reason)),
		channelNotice(out.ChannelID, out.notice(NoticeTicketReassigned)),
		sanction(previous, reason),
	}, nil
}

func Close(t Ticket, by Closure, now time.Time) (Ticket, []Effect, error) {
	if t.Status == StatusClosed {
		return t, nil, ErrClosed
	}
	out := t.clone()
	out.Status = StatusClosed
	out.ClaimedBy = nil
	out.ClaimedAt = nil
	out.ClosedAt = timePtr(now)
	out.ClosedBy = &Closure{UserID: by.UserID, Username: by.Username, Reason: by.Reason}
	return out, []Effect{
		channelNotice(out.ChannelID, out.notice(NoticeTicketClosed, "by", by.Username, "reason", by.Reason)),
		{Kind: EffectArchive, Target: out.ChannelID},
	}, nil
}

func AutoClose(t Ticket, reason string, now time.Time) (Ticket, []Effect, error) {
	out, effects, err := Close(t, Closure{Username: AutoCloseUsername, Reason: reason}, now)
	if err != nil {
		return t, nil, err
	}
	effects = append([]Effect{staffAlert(out.notice(NoticeAutoClosedAlert, "reason", reason))}, effects...)
	return out, effects, nil
}

func Reopen(t Ticket, by Identity, now time.Time) (Ticket, []Effect, error) {
	if t.Status != StatusClosed {
		return t, nil, ErrNotClosed
	}
	out := t.clone()
	out.Status = StatusOpen
	out.ClosedAt = nil
	out.ClosedBy = nil
	out.LastActivity = now
	out.resetEscalation()
	return out, []Effect{
		{Kind: EffectCancelArchive, Target: out.ChannelID},
		channelNotice(out.ChannelID, out.notice(NoticeTicketReopened, "by", by.UserID)),
	}, nil
}

func SetPriority(t Ticket, p Priority, by Identity) (Ticket, []Effect, error) {
	if t.Status == StatusClosed {
		return t, nil, ErrClosed
	}
	if _, err := ParsePriority(string(p)); err != nil {
		return t, nil, err
	}
	if t.Priority == p {
		return t, nil, ErrNoChange
	}
	out := t.clone()
	out.Priority = p
	return out, []Effect{
		channelNotice(out.ChannelID, out.notice(NoticePriorityChanged, "priority", string(p), "by", by.UserID)),
	}, nil
}
