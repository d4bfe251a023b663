package ticket

type EffectKind string

const (
	EffectStaffAlert    EffectKind = "staff_alert"
	EffectDirectMessage EffectKind = "direct_message"
	EffectTicketNotice  EffectKind = "ticket_notice"
	EffectSanction      EffectKind = "sanction"
	EffectArchive       EffectKind = "archive"
	EffectCancelArchive EffectKind = "cancel_archive"
)

type Notice struct {
	Key    string
	Params map[string]string
}

// Effect is a side effect requested by a transition. Target is a user id for
// direct messages and a channel id for ticket notices and archive requests.
type Effect struct {
	Kind   EffectKind
	Target string
	Notice Notice
	Staff  Identity
	Reason string
}

const (
	NoticeTicketOpened           = "ticket.opened"
	NoticeTicketClaimed          = "ticket.claimed"
	NoticeTicketClosed           = "ticket.closed"
	NoticeTicketReopened         = "ticket.reopened"
	NoticeTicketReassigned       = "ticket.reassigned"
	NoticePriorityChanged        = "ticket.priority_changed"
	NoticeProofReceived          = "ticket.proof_received"
	NoticeUnclaimedWarning       = "scanner.unclaimed_warning"
	NoticeUnclaimedSecondWarning = "scanner.unclaimed_second_warning"
	NoticeClaimedWarning         = "scanner.claimed_warning"
	NoticeClaimedWarningDM       = "scanner.claimed_warning_dm"
	NoticeReassignedAlert        = "scanner.reassigned"
	NoticeAutoClosedAlert        = "scanner.auto_closed"
)

func (t Ticket) notice(key string, extra ...string) Notice {
	params := map[string]string{
		"ticket":  t.TicketID,
		"channel": t.ChannelID,
		"user":    t.UserID,
		"type":    string(t.Type),
	}
	for i := 0; i+1 < len(extra); i += 2 {
		params[extra[i]] = extra[i+1]
	}
	return Notice{Key: key, Params: params}
}

func staffAlert(n Notice) Effect {
	return Effect{Kind: EffectStaffAlert, Notice: n}
}

func channelNotice(channelID string, n Notice) Effect {
	return Effect{Kind: EffectTicketNotice, Target: channelID, Notice: n}
}

func directMessage(userID string, n Notice) Effect {
	return Effect{Kind: EffectDirectMessage, Target: userID, Notice: n}
}

func sanction(staff Identity, reason string) Effect {
	return Effect{Kind: EffectSanction, Staff: staff, Reason: reason}
}
