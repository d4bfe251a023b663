package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ticketbot/internal/audit"
	"ticketbot/internal/sanction"
	"ticketbot/internal/storage"
	"ticketbot/internal/ticket"
	"ticketbot/internal/utils"
)

var (
	ErrTooManyOpen = errors.New("lifecycle: too many open tickets")
	ErrRateLimited = errors.New("lifecycle: ticket creation rate limited")
	ErrNoChannels  = errors.New("lifecycle: no channel provisioner")
)

const (
	EventOpened          = "ticket_opened"
	EventClaimed         = "ticket_claimed"
	EventClosed          = "ticket_closed"
	EventReopened        = "ticket_reopened"
	EventPriorityChanged = "ticket_priority_changed"
	EventProofDetected   = "ticket_proof_detected"
)

var errNothingToDo = errors.New("lifecycle: nothing to do")

type Store interface {
	NextTicketNumber(ctx context.Context) (int64, error)
	CreateTicket(ctx context.Context, t ticket.Ticket) (ticket.Ticket, error)
	GetTicket(ctx context.Context, ticketID string) (ticket.Ticket, error)
	GetTicketByChannel(ctx context.Context, channelID string) (ticket.Ticket, error)
	SaveTicket(ctx context.Context, t ticket.Ticket) (ticket.Ticket, error)
	CountOpenByUser(ctx context.Context, userID string) (int, error)
}

type Notifier interface {
	StaffAlert(ctx context.Context, notice ticket.Notice) error
	DirectMessage(ctx context.Context, userID string, notice ticket.Notice) error
	TicketNotice(ctx context.Context, channelID string, notice ticket.Notice) error
}

type Sanctioner interface {
	ApplySanction(ctx context.Context, staffID, username, reason string) (sanction.Result, error)
}

type Archiver interface {
	Archive(ctx context.Context, t ticket.Ticket) error
	CancelArchive(channelID string) bool
}

// Channels provisions the private channel backing a new ticket.
type Channels interface {
	CreateTicketChannel(ctx context.Context, number int64, requester ticket.Identity) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
}

type Auditor interface {
	Log(ctx context.Context, level, ticketID, userID, event, details string)
}

type Recorder interface {
	TicketEvent(event string)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type Config struct {
	MaxOpenPerUser int
	OpenLimit      int
	OpenWindow     time.Duration
	SaveAttempts   int
}

type OpenRequest struct {
	Requester ticket.Identity
	Type      string
	Detail    string
	Priority  string
}

type Service struct {
	cfg        Config
	store      Store
	notifier   Notifier
	sanctioner Sanctioner
	archiver   Archiver
	channels   Channels
	auditor    Auditor
	recorder   Recorder
	clock      Clock
	logger     *zap.Logger
	opens      *utils.SlidingWindow

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(cfg Config, store Store, notifier Notifier, logger *zap.Logger) *Service {
	if cfg.SaveAttempts <= 0 {
		cfg.SaveAttempts = 3
	}
	if cfg.OpenWindow <= 0 {
		cfg.OpenWindow = 10 * time.Minute
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		clock:    realClock{},
		logger:   logger,
		opens:    utils.NewSlidingWindow(cfg.OpenWindow),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *Service) WithSanctioner(sanctioner Sanctioner) { s.sanctioner = sanctioner }

func (s *Service) WithArchiver(archiver Archiver) { s.archiver = archiver }

func (s *Service) WithChannels(channels Channels) { s.channels = channels }

func (s *Service) WithAuditor(auditor Auditor) { s.auditor = auditor }

func (s *Service) WithRecorder(recorder Recorder) { s.recorder = recorder }

func (s *Service) WithClock(clock Clock) {
	if clock != nil {
		s.clock = clock
	}
}

func (s *Service) Open(ctx context.Context, req OpenRequest) (ticket.Ticket, error) {
	kind, err := ticket.ParseType(req.Type)
	if err != nil {
		return ticket.Ticket{}, err
	}
	priority, err := ticket.ParsePriority(req.Priority)
	if err != nil {
		return ticket.Ticket{}, err
	}
	if s.channels == nil {
		return ticket.Ticket{}, ErrNoChannels
	}

	lock := s.lockFor("open:" + req.Requester.UserID)
	lock.Lock()
	defer lock.Unlock()

	now := s.clock.Now()
	if s.cfg.MaxOpenPerUser > 0 {
		open, err := s.store.CountOpenByUser(ctx, req.Requester.UserID)
		if err != nil {
			return ticket.Ticket{}, err
		}
		if open >= s.cfg.MaxOpenPerUser {
			return ticket.Ticket{}, ErrTooManyOpen
		}
	}
	if s.cfg.OpenLimit > 0 && s.opens.Count(req.Requester.UserID, now) >= s.cfg.OpenLimit {
		return ticket.Ticket{}, ErrRateLimited
	}

	draft, err := ticket.New(ticket.NewTicket{
		Requester: req.Requester,
		Type:      kind,
		Detail:    req.Detail,
		Priority:  priority,
	}, now)
	if err != nil {
		return ticket.Ticket{}, err
	}

	number, err := s.store.NextTicketNumber(ctx)
	if err != nil {
		return ticket.Ticket{}, err
	}
	channelID, err := s.channels.CreateTicketChannel(ctx, number, req.Requester)
	if err != nil {
		return ticket.Ticket{}, fmt.Errorf("create ticket channel: %w", err)
	}
	draft.TicketID = ticket.FormatID(number)
	draft.ChannelID = channelID

	created, err := s.store.CreateTicket(ctx, draft)
	if err != nil {
		if delErr := s.channels.DeleteChannel(ctx, channelID); delErr != nil {
			s.logger.Warn("orphan ticket channel not removed", zap.String("channel_id", channelID), zap.Error(delErr))
		}
		return ticket.Ticket{}, err
	}
	s.opens.Add(req.Requester.UserID, now)

	s.dispatch(ctx, created, ticket.Opened(created))
	s.record(ctx, audit.LevelInfo, created.TicketID, req.Requester.UserID, EventOpened, string(created.Type)+"/"+string(created.Priority))
	s.logger.Info("ticket opened",
		zap.String("ticket_id", created.TicketID),
		zap.String("channel_id", created.ChannelID),
		zap.String("user_id", created.UserID),
	)
	return created, nil
}

func (s *Service) Get(ctx context.Context, channelID string) (ticket.Ticket, error) {
	return s.store.GetTicketByChannel(ctx, channelID)
}

func (s *Service) Claim(ctx context.Context, channelID string, staff ticket.Identity) (ticket.Ticket, error) {
	now := s.clock.Now()
	saved, effects, err := s.mutate(ctx, s.byChannel(channelID), func(t ticket.Ticket) (ticket.Ticket, []ticket.Effect, error) {
		return ticket.Claim(t, staff, now)
	})
	if err != nil {
		return saved, err
	}
	s.dispatch(ctx, saved, effects)
	s.record(ctx, audit.LevelInfo, saved.TicketID, staff.UserID, EventClaimed, staff.Username)
	return saved, nil
}

func (s *Service) Close(ctx context.Context, channelID string, by ticket.Closure) (ticket.Ticket, error) {
	now := s.clock.Now()
	saved, effects, err := s.mutate(ctx, s.byChannel(channelID), func(t ticket.Ticket) (ticket.Ticket, []ticket.Effect, error) {
		return ticket.Close(t, by, now)
	})
	if err != nil {
		return saved, err
	}
	s.dispatch(ctx, saved, effects)
	s.record(ctx, audit.LevelInfo, saved.TicketID, by.UserID, EventClosed, by.Reason)
	return saved, nil
}

func (s *Service) Reopen(ctx context.Context, channelID string, by ticket.Identity) (ticket.Ticket, error) {
	now := s.clock.Now()
	saved, effects, err := s.mutate(ctx, s.byChannel(channelID), func(t ticket.Ticket) (ticket.Ticket, []ticket.Effect, error) {
		return ticket.Reopen(t, by, now)
	})
	if err != nil {
		return saved, err
	}
	s.dispatch(ctx, saved, effects)
	s.record(ctx, audit.LevelInfo, saved.TicketID, by.UserID, EventReopened, "")
	return saved, nil
}

func (s *Service) SetPriority(ctx context.Context, channelID, priority string, by ticket.Identity) (ticket.Ticket, error) {
	p, err := ticket.ParsePriority(priority)
	if err != nil {
		return ticket.Ticket{}, err
	}
	saved, effects, err := s.mutate(ctx, s.byChannel(channelID), func(t ticket.Ticket) (ticket.Ticket, []ticket.Effect, error) {
		return ticket.SetPriority(t, p, by)
	})
	if err != nil {
		return saved, err
	}
	s.dispatch(ctx, saved, effects)
	s.record(ctx, audit.LevelInfo, saved.TicketID, by.UserID, EventPriorityChanged, string(p))
	return saved, nil
}

// RecordMessage appends a message posted in a ticket channel. Channels that
// are not tickets return storage.ErrNotFound.
func (s *Service) RecordMessage(ctx context.Context, channelID string, msg ticket.Message) (ticket.Ticket, error) {
	var proofBefore bool
	saved, effects, err := s.mutate(ctx, s.byChannel(channelID), func(t ticket.Ticket) (ticket.Ticket, []ticket.Effect, error) {
		proofBefore = t.ProofDetected
		return ticket.AddMessage(t, msg)
	})
	if err != nil {
		return saved, err
	}
	s.dispatch(ctx, saved, effects)
	if saved.ProofDetected && !proofBefore {
		s.record(ctx, audit.LevelInfo, saved.TicketID, msg.AuthorID, EventProofDetected, "")
	}
	return saved, nil
}

// ApplyInactivity re-evaluates the stored ticket behind snapshot and applies
// the resulting action. A ticket that changed since the snapshot was taken is
// judged on its current state.
func (s *Service) ApplyInactivity(ctx context.Context, snapshot ticket.Ticket, now time.Time, th ticket.Thresholds) (ticket.Action, error) {
	var action ticket.Action
	saved, effects, err := s.mutate(ctx, s.byID(snapshot.TicketID), func(t ticket.Ticket) (ticket.Ticket, []ticket.Effect, error) {
		action = ticket.Evaluate(t, now, th)
		if action == ticket.ActionNone {
			return t, nil, errNothingToDo
		}
		return ticket.ApplyInactivity(t, action, now)
	})
	if errors.Is(err, errNothingToDo) {
		return ticket.ActionNone, nil
	}
	if err != nil {
		return action, err
	}

	s.logger.Info("inactivity action applied",
		zap.String("ticket_id", saved.TicketID),
		zap.String("action", string(action)),
	)
	s.dispatch(ctx, saved, effects)
	level := audit.LevelWarn
	if action == ticket.ActionCloseAbandoned || action == ticket.ActionReassign {
		level = audit.LevelCrit
	}
	s.record(ctx, level, saved.TicketID, "", "inactivity_"+string(action), "")
	if saved.Status == ticket.StatusClosed && saved.ClosedBy != nil {
		s.record(ctx, audit.LevelInfo, saved.TicketID, "", EventClosed, saved.ClosedBy.Reason)
	}
	return action, nil
}

type command func(ticket.Ticket) (ticket.Ticket, []ticket.Effect, error)

type loader func(ctx context.Context) (ticket.Ticket, error)

func (s *Service) byChannel(channelID string) loader {
	return func(ctx context.Context) (ticket.Ticket, error) {
		return s.store.GetTicketByChannel(ctx, channelID)
	}
}

func (s *Service) byID(ticketID string) loader {
	return func(ctx context.Context) (ticket.Ticket, error) {
		return s.store.GetTicket(ctx, ticketID)
	}
}

// mutate loads, applies and saves under the version check. A conflicting
// write reloads and re-applies the command against the fresh state.
func (s *Service) mutate(ctx context.Context, load loader, cmd command) (ticket.Ticket, []ticket.Effect, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.SaveAttempts; attempt++ {
		current, err := load(ctx)
		if err != nil {
			return ticket.Ticket{}, nil, err
		}
		next, effects, err := cmd(current)
		if err != nil {
			return current, nil, err
		}
		saved, err := s.store.SaveTicket(ctx, next)
		if errors.Is(err, storage.ErrVersionConflict) {
			s.logger.Debug("ticket version conflict, retrying",
				zap.String("ticket_id", current.TicketID),
				zap.Int("attempt", attempt+1),
			)
			lastErr = err
			continue
		}
		if err != nil {
			s.logger.Error("ticket save failed", zap.String("ticket_id", current.TicketID), zap.Error(err))
			return current, nil, err
		}
		return saved, effects, nil
	}
	return ticket.Ticket{}, nil, lastErr
}

func (s *Service) dispatch(ctx context.Context, t ticket.Ticket, effects []ticket.Effect) {
	for _, effect := range effects {
		var err error
		switch effect.Kind {
		case ticket.EffectStaffAlert:
			err = s.notifier.StaffAlert(ctx, effect.Notice)
		case ticket.EffectDirectMessage:
			err = s.notifier.DirectMessage(ctx, effect.Target, effect.Notice)
		case ticket.EffectTicketNotice:
			err = s.notifier.TicketNotice(ctx, effect.Target, effect.Notice)
		case ticket.EffectSanction:
			if s.sanctioner != nil {
				_, err = s.sanctioner.ApplySanction(ctx, effect.Staff.UserID, effect.Staff.Username, effect.Reason)
			}
		case ticket.EffectArchive:
			if s.archiver != nil {
				err = s.archiver.Archive(ctx, t)
			}
		case ticket.EffectCancelArchive:
			if s.archiver != nil {
				s.archiver.CancelArchive(effect.Target)
			}
		}
		if err != nil {
			s.logger.Warn("ticket effect failed",
				zap.String("ticket_id", t.TicketID),
				zap.String("effect", string(effect.Kind)),
				zap.String("notice", effect.Notice.Key),
				zap.Error(err),
			)
		}
	}
}

func (s *Service) record(ctx context.Context, level, ticketID, userID, event, details string) {
	if s.recorder != nil {
		s.recorder.TicketEvent(event)
	}
	if s.auditor != nil {
		s.auditor.Log(ctx, level, ticketID, userID, event, details)
	}
}

func (s *Service) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}
