package closure

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

// DeleteFunc removes a closed ticket channel.
type DeleteFunc func(ctx context.Context, channelID string) error

type pending struct {
	timer Timer
	due   time.Time
}

type Scheduler struct {
	mu      sync.Mutex
	delay   time.Duration
	clock   Clock
	remove  DeleteFunc
	logger  *zap.Logger
	pending map[string]*pending
}

func New(delay time.Duration, remove DeleteFunc, logger *zap.Logger) *Scheduler {
	if delay <= 0 {
		delay = 10 * time.Minute
	}
	return &Scheduler{
		delay:   delay,
		clock:   realClock{},
		remove:  remove,
		logger:  logger,
		pending: make(map[string]*pending),
	}
}

func (s *Scheduler) WithClock(clock Clock) {
	s.clock = clock
}

// Schedule arms channel deletion after the configured delay. A channel that
// is already scheduled keeps its original deadline.
func (s *Scheduler) Schedule(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[channelID]; ok {
		return false
	}
	entry := &pending{due: s.clock.Now().Add(s.delay)}
	entry.timer = s.clock.AfterFunc(s.delay, func() { s.fire(channelID, entry) })
	s.pending[channelID] = entry
	return true
}

func (s *Scheduler) Cancel(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pending[channelID]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(s.pending, channelID)
	return true
}

func (s *Scheduler) Due(channelID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pending[channelID]
	if !ok {
		return time.Time{}, false
	}
	return entry.due, true
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.pending {
		entry.timer.Stop()
		delete(s.pending, id)
	}
}

func (s *Scheduler) fire(channelID string, entry *pending) {
	s.mu.Lock()
	current, ok := s.pending[channelID]
	if !ok || current != entry {
		s.mu.Unlock()
		return
	}
	delete(s.pending, channelID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.remove(ctx, channelID); err != nil {
		s.logger.Warn("closed ticket channel deletion failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	s.logger.Info("closed ticket channel deleted", zap.String("channel_id", channelID))
}
