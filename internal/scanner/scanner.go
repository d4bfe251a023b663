package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ticketbot/internal/ticket"
)

var ErrSweepInProgress = errors.New("scanner: sweep already in progress")

type Store interface {
	ListActiveTickets(ctx context.Context) ([]ticket.Ticket, error)
}

type Applier interface {
	ApplyInactivity(ctx context.Context, snapshot ticket.Ticket, now time.Time, th ticket.Thresholds) (ticket.Action, error)
}

// Guard serializes sweeps across processes. Acquire reports false when
// another holder owns the sweep.
type Guard interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

type Recorder interface {
	Sweep(outcome string, seconds float64)
	Scanned(n int)
	ScannerAction(action string)
	ScannerFailure()
}

type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

type realTicker struct{ t *time.Ticker }

func (realClock) Now() time.Time { return time.Now().UTC() }

func (realClock) NewTicker(d time.Duration) Ticker { return realTicker{t: time.NewTicker(d)} }

func (t realTicker) Chan() <-chan time.Time { return t.t.C }

func (t realTicker) Stop() { t.t.Stop() }

type Config struct {
	Interval   time.Duration
	Workers    int
	Thresholds ticket.Thresholds
}

type Report struct {
	Scanned  int
	Actions  map[ticket.Action]int
	Failed   int
	Duration time.Duration
}

type Scanner struct {
	cfg      Config
	store    Store
	applier  Applier
	guard    Guard
	recorder Recorder
	clock    Clock
	logger   *zap.Logger
	running  atomic.Bool
}

func New(cfg Config, store Store, applier Applier, logger *zap.Logger) *Scanner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	return &Scanner{
		cfg:     cfg,
		store:   store,
		applier: applier,
		clock:   realClock{},
		logger:  logger,
	}
}

func (s *Scanner) WithGuard(guard Guard) { s.guard = guard }

func (s *Scanner) WithRecorder(recorder Recorder) { s.recorder = recorder }

func (s *Scanner) WithClock(clock Clock) {
	if clock != nil {
		s.clock = clock
	}
}

// Start sweeps once immediately and then on every tick until ctx is done.
func (s *Scanner) Start(ctx context.Context) {
	ticker := s.clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("inactivity scanner started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("workers", s.cfg.Workers),
	)
	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("inactivity scanner stopped")
			return
		case <-ticker.Chan():
			s.sweep(ctx)
		}
	}
}

func (s *Scanner) sweep(ctx context.Context) {
	report, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrSweepInProgress):
		s.logger.Warn("inactivity sweep skipped, previous sweep still running")
	case err != nil:
		s.logger.Error("inactivity sweep failed", zap.Error(err))
	default:
		s.logger.Info("inactivity sweep completed",
			zap.Int("scanned", report.Scanned),
			zap.Int("failed", report.Failed),
			zap.Any("actions", report.Actions),
			zap.Duration("duration", report.Duration),
		)
	}
}

// RunOnce evaluates every active ticket once. A failure on one ticket is
// counted and logged without stopping the others.
func (s *Scanner) RunOnce(ctx context.Context) (Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.observe("skipped", 0)
		return Report{}, ErrSweepInProgress
	}
	defer s.running.Store(false)

	if s.guard != nil {
		release, ok, err := s.guard.Acquire(ctx)
		if err != nil {
			s.observe("failed", 0)
			return Report{}, err
		}
		if !ok {
			s.observe("skipped", 0)
			return Report{}, ErrSweepInProgress
		}
		defer release()
	}

	started := s.clock.Now()
	tickets, err := s.store.ListActiveTickets(ctx)
	if err != nil {
		s.observe("failed", 0)
		return Report{}, err
	}

	report := Report{Scanned: len(tickets), Actions: make(map[ticket.Action]int)}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, t := range tickets {
		g.Go(func() error {
			action, err := s.applier.ApplyInactivity(ctx, t, started, s.cfg.Thresholds)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				if s.recorder != nil {
					s.recorder.ScannerFailure()
				}
				s.logger.Error("inactivity evaluation failed",
					zap.String("ticket_id", t.TicketID),
					zap.String("action", string(action)),
					zap.Error(err),
				)
				return nil
			}
			if action != ticket.ActionNone {
				report.Actions[action]++
				if s.recorder != nil {
					s.recorder.ScannerAction(string(action))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = s.clock.Now().Sub(started)
	if s.recorder != nil {
		s.recorder.Scanned(report.Scanned)
	}
	s.observe("completed", report.Duration.Seconds())
	return report, nil
}

func (s *Scanner) observe(outcome string, seconds float64) {
	if s.recorder != nil {
		s.recorder.Sweep(outcome, seconds)
	}
}
