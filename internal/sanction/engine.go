package sanction

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"ticketbot/internal/storage"
	"ticketbot/internal/ticket"
)

var ErrMemberNotFound = errors.New("sanction: staff member not found")

type Step string

const (
	StepWarn       Step = "warn"
	StepTimeout    Step = "timeout"
	StepRemoveRole Step = "remove_role"
)

const (
	NoticeWarningDM     = "sanction.warning_dm"
	NoticeTimeoutDM     = "sanction.timeout_dm"
	NoticeTimeoutAlert  = "sanction.timeout_alert"
	NoticeRoleRemovedDM = "sanction.role_removed_dm"
	NoticeRoleRemoved   = "sanction.role_removed_alert"
)

type Store interface {
	IncrementAbandoned(ctx context.Context, userID, username string) (storage.StaffReputation, error)
	SaveReputation(ctx context.Context, rep storage.StaffReputation) error
}

type Moderator interface {
	LookupMember(ctx context.Context, userID string) error
	Timeout(ctx context.Context, userID string, until time.Time) error
	RemoveRole(ctx context.Context, userID, roleID string) error
}

type Notifier interface {
	DirectMessage(ctx context.Context, userID string, notice ticket.Notice) error
	StaffAlert(ctx context.Context, notice ticket.Notice) error
}

type Auditor interface {
	Log(ctx context.Context, level, ticketID, userID, event, details string)
}

type Recorder interface {
	SanctionStep(step string)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	StaffRoleID      string
	TimeoutDuration  time.Duration
	RemovalThreshold int
	RetryAttempts    uint
	RetryDelay       time.Duration
}

type Result struct {
	Reputation  storage.StaffReputation
	Steps       []Step
	MemberFound bool
}

type Engine struct {
	cfg       Config
	store     Store
	moderator Moderator
	notifier  Notifier
	auditor   Auditor
	recorder  Recorder
	logger    *zap.Logger
	clock     Clock

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(cfg Config, store Store, moderator Moderator, notifier Notifier, logger *zap.Logger) *Engine {
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 1
	}
	return &Engine{
		cfg:       cfg,
		store:     store,
		moderator: moderator,
		notifier:  notifier,
		logger:    logger,
		clock:     realClock{},
		locks:     make(map[string]*sync.Mutex),
	}
}

func (e *Engine) WithClock(clock Clock) {
	if clock != nil {
		e.clock = clock
	}
}

func (e *Engine) WithAuditor(auditor Auditor) {
	e.auditor = auditor
}

func (e *Engine) WithRecorder(recorder Recorder) {
	e.recorder = recorder
}

// Ladder returns the steps owed for a record whose abandonment counter has
// just been incremented. Counts between 2 and the removal threshold only fire
// the removal step once the threshold is reached.
func Ladder(rep storage.StaffReputation, removalThreshold int) []Step {
	var steps []Step
	switch rep.AbandonedTickets {
	case 1:
		steps = append(steps, StepWarn)
	case 2:
		steps = append(steps, StepTimeout)
	}
	if rep.AbandonedTickets >= removalThreshold && !rep.RoleRemoved {
		steps = append(steps, StepRemoveRole)
	}
	return steps
}

func (e *Engine) ApplySanction(ctx context.Context, staffID, username, reason string) (Result, error) {
	lock := e.lockFor(staffID)
	lock.Lock()
	defer lock.Unlock()

	rep, err := backoff.Retry(ctx, func() (storage.StaffReputation, error) {
		return e.store.IncrementAbandoned(ctx, staffID, username)
	}, e.retryOptions()...)
	if err != nil {
		e.logger.Error("abandonment not recorded", zap.String("staff_id", staffID), zap.Error(err))
		return Result{}, err
	}
	e.audit(ctx, "WARN", staffID, "staff_abandonment", reason+" (count "+strconv.Itoa(rep.AbandonedTickets)+")")

	result := Result{Reputation: rep, MemberFound: true}
	steps := Ladder(rep, e.cfg.RemovalThreshold)
	if len(steps) > 0 {
		if err := e.moderator.LookupMember(ctx, staffID); err != nil {
			e.logger.Warn("staff member unavailable, skipping sanctions",
				zap.String("staff_id", staffID),
				zap.Error(err),
			)
			result.MemberFound = false
			steps = nil
		}
	}

	now := e.clock.Now()
	count := strconv.Itoa(rep.AbandonedTickets)
	for _, step := range steps {
		switch step {
		case StepWarn:
			e.dm(ctx, staffID, NoticeWarningDM, "reason", reason, "count", count)
		case StepTimeout:
			rep.Sanctions++
			stamp := now
			rep.LastSanctionAt = &stamp
			until := now.Add(e.cfg.TimeoutDuration)
			if err := e.moderator.Timeout(ctx, staffID, until); err != nil {
				e.logger.Warn("staff timeout failed", zap.String("staff_id", staffID), zap.Error(err))
			}
			minutes := strconv.Itoa(int(e.cfg.TimeoutDuration.Minutes()))
			e.dm(ctx, staffID, NoticeTimeoutDM, "reason", reason, "minutes", minutes)
			e.alert(ctx, NoticeTimeoutAlert, "staff", staffID, "minutes", minutes, "count", count)
		case StepRemoveRole:
			if err := e.moderator.RemoveRole(ctx, staffID, e.cfg.StaffRoleID); err != nil {
				e.logger.Warn("staff role removal failed", zap.String("staff_id", staffID), zap.Error(err))
			}
			rep.RoleRemoved = true
			e.dm(ctx, staffID, NoticeRoleRemovedDM, "count", count)
			e.alert(ctx, NoticeRoleRemoved, "staff", staffID, "count", count)
		}
		result.Steps = append(result.Steps, step)
		if e.recorder != nil {
			e.recorder.SanctionStep(string(step))
		}
		e.audit(ctx, "CRIT", staffID, "sanction_"+string(step), reason)
	}

	if _, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, e.store.SaveReputation(ctx, rep)
	}, e.retryOptions()...); err != nil {
		e.logger.Error("reputation save failed", zap.String("staff_id", staffID), zap.Error(err))
		result.Reputation = rep
		return result, err
	}
	result.Reputation = rep
	return result, nil
}

func (e *Engine) retryOptions() []backoff.RetryOption {
	return []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(e.cfg.RetryDelay)),
		backoff.WithMaxTries(e.cfg.RetryAttempts),
	}
}

func (e *Engine) lockFor(staffID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[staffID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[staffID] = lock
	}
	return lock
}

func (e *Engine) dm(ctx context.Context, userID, key string, params ...string) {
	if err := e.notifier.DirectMessage(ctx, userID, notice(key, params...)); err != nil {
		e.logger.Warn("sanction dm failed", zap.String("staff_id", userID), zap.String("notice", key), zap.Error(err))
	}
}

func (e *Engine) alert(ctx context.Context, key string, params ...string) {
	if err := e.notifier.StaffAlert(ctx, notice(key, params...)); err != nil {
		e.logger.Warn("sanction alert failed", zap.String("notice", key), zap.Error(err))
	}
}

func (e *Engine) audit(ctx context.Context, level, staffID, event, details string) {
	if e.auditor != nil {
		e.auditor.Log(ctx, level, "", staffID, event, details)
	}
}

func notice(key string, params ...string) ticket.Notice {
	values := make(map[string]string, len(params)/2)
	for i := 0; i+1 < len(params); i += 2 {
		values[params[i]] = params[i+1]
	}
	return ticket.Notice{Key: key, Params: values}
}
