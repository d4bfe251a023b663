package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"ticketbot/internal/lifecycle"
	"ticketbot/internal/metrics"
	"ticketbot/internal/sanction"
	"ticketbot/internal/storage"
	"ticketbot/internal/ticket"
)

var t0 = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

type fakeTicker struct {
	ch chan time.Time
}

func (f *fakeTicker) Chan() <-chan time.Time { return f.ch }

func (f *fakeTicker) Stop() {}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	ticker *fakeTicker
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticker == nil {
		c.ticker = &fakeTicker{ch: make(chan time.Time)}
	}
	return c.ticker
}

type recordingNotifier struct {
	mu   sync.Mutex
	keys []string
}

func (n *recordingNotifier) add(key string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.keys = append(n.keys, key)
	return nil
}

func (n *recordingNotifier) StaffAlert(ctx context.Context, notice ticket.Notice) error {
	return n.add(notice.Key)
}

func (n *recordingNotifier) DirectMessage(ctx context.Context, userID string, notice ticket.Notice) error {
	return n.add(notice.Key)
}

func (n *recordingNotifier) TicketNotice(ctx context.Context, channelID string, notice ticket.Notice) error {
	return n.add(notice.Key)
}

func (n *recordingNotifier) count(key string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, k := range n.keys {
		if k == key {
			total++
		}
	}
	return total
}

type okModerator struct{}

func (okModerator) LookupMember(ctx context.Context, userID string) error { return nil }

func (okModerator) Timeout(ctx context.Context, userID string, until time.Time) error { return nil }

func (okModerator) RemoveRole(ctx context.Context, userID, roleID string) error { return nil }

type env struct {
	store    *storage.Store
	service  *lifecycle.Service
	scanner  *Scanner
	clock    *fakeClock
	notifier *recordingNotifier
	metrics  *metrics.Collectors
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store, err := storage.Open(storage.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	e := &env{
		store:    store,
		clock:    &fakeClock{now: t0},
		notifier: &recordingNotifier{},
		metrics:  metrics.New(),
	}
	engine := sanction.NewEngine(sanction.Config{StaffRoleID: "staff", TimeoutDuration: time.Hour, RemovalThreshold: 3, RetryAttempts: 1},
		store, okModerator{}, e.notifier, zap.NewNop())
	e.service = lifecycle.NewService(lifecycle.Config{}, store, e.notifier, zap.NewNop())
	e.service.WithClock(e.clock)
	e.service.WithSanctioner(engine)

	e.scanner = New(Config{Workers: 4, Thresholds: ticket.DefaultThresholds()}, store, e.service, zap.NewNop())
	e.scanner.WithClock(e.clock)
	e.scanner.WithRecorder(e.metrics)
	return e
}

func (e *env) create(t *testing.T, user string) ticket.Ticket {
	t.Helper()
	ctx := context.Background()
	number, err := e.store.NextTicketNumber(ctx)
	if err != nil {
		t.Fatalf("next number: %v", err)
	}
	draft, err := ticket.New(ticket.NewTicket{
		Number:    number,
		ChannelID: "chan-" + ticket.FormatID(number),
		Requester: ticket.Identity{UserID: user, Username: user},
		Type:      ticket.TypeSupport,
	}, e.clock.Now())
	if err != nil {
		t.Fatalf("new ticket: %v", err)
	}
	created, err := e.store.CreateTicket(ctx, draft)
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return created
}

func (e *env) runAt(t *testing.T, at time.Time) Report {
	t.Helper()
	e.clock.Set(at)
	report, err := e.scanner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	return report
}

func (e *env) load(t *testing.T, id string) ticket.Ticket {
	t.Helper()
	tk, err := e.store.GetTicket(context.Background(), id)
	if err != nil {
		t.Fatalf("load ticket: %v", err)
	}
	return tk
}

func TestUnclaimedLadder(t *testing.T) {
	e := newEnv(t)
	tk := e.create(t, "u1")
	th := ticket.DefaultThresholds()

	report := e.runAt(t, t0.Add(th.UnclaimedWarn))
	if report.Actions[ticket.ActionWarnUnclaimed] != 1 {
		t.Fatalf("expected first warning, got %v", report.Actions)
	}
	e.runAt(t, t0.Add(th.UnclaimedWarn+time.Minute))
	if got := e.notifier.count(ticket.NoticeUnclaimedWarning); got != 1 {
		t.Fatalf("expected one first warning, got %d", got)
	}

	report = e.runAt(t, t0.Add(th.UnclaimedSecondWarn))
	if report.Actions[ticket.ActionSecondWarnUnclaimed] != 1 {
		t.Fatalf("expected second warning, got %v", report.Actions)
	}

	report = e.runAt(t, t0.Add(th.UnclaimedClose))
	if report.Actions[ticket.ActionCloseInactive] != 1 {
		t.Fatalf("expected close, got %v", report.Actions)
	}
	closed := e.load(t, tk.TicketID)
	if closed.Status != ticket.StatusClosed || closed.ClosedBy.Username != ticket.AutoCloseUsername {
		t.Fatalf("unexpected ticket %+v", closed)
	}
	if closed.ClosedBy.Reason != ticket.ReasonNeverClaimed {
		t.Fatalf("expected never claimed reason, got %q", closed.ClosedBy.Reason)
	}
}

func TestScenarioAClosesWithoutPriorWarnings(t *testing.T) {
	e := newEnv(t)
	tk := e.create(t, "u1")

	report := e.runAt(t, t0.Add(ticket.DefaultThresholds().UnclaimedClose))
	if report.Scanned != 1 || report.Actions[ticket.ActionCloseInactive] != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	closed := e.load(t, tk.TicketID)
	if closed.Status != ticket.StatusClosed || closed.ClosedBy == nil || closed.ClosedBy.Username != "AutoClose" {
		t.Fatalf("unexpected ticket %+v", closed)
	}
	if err := closed.Validate(); err != nil {
		t.Fatalf("invalid ticket: %v", err)
	}
}

func TestScenarioBReassignsAndSanctions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.create(t, "u1")
	if _, err := e.service.Claim(ctx, tk.ChannelID, ticket.Identity{UserID: "s1", Username: "bob"}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	report := e.runAt(t, t0.Add(ticket.DefaultThresholds().Reassign))
	if report.Actions[ticket.ActionReassign] != 1 {
		t.Fatalf("expected reassignment, got %v", report.Actions)
	}
	reassigned := e.load(t, tk.TicketID)
	if reassigned.Status != ticket.StatusOpen || reassigned.ClaimedBy != nil || reassigned.ClaimedAt != nil {
		t.Fatalf("unexpected ticket %+v", reassigned)
	}
	rep, err := e.store.GetReputation(ctx, "s1")
	if err != nil {
		t.Fatalf("reputation: %v", err)
	}
	if rep.AbandonedTickets != 1 {
		t.Fatalf("expected one abandonment, got %d", rep.AbandonedTickets)
	}

	e.runAt(t, t0.Add(ticket.DefaultThresholds().Reassign+time.Minute))
	rep, _ = e.store.GetReputation(ctx, "s1")
	if rep.AbandonedTickets != 1 {
		t.Fatalf("expected no double count, got %d", rep.AbandonedTickets)
	}
}

func TestScenarioDActivityResetsWarning(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	th := ticket.DefaultThresholds()
	tk := e.create(t, "u1")
	if _, err := e.service.Claim(ctx, tk.ChannelID, ticket.Identity{UserID: "s1", Username: "bob"}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	report := e.runAt(t, t0.Add(th.ClaimedWarn))
	if report.Actions[ticket.ActionWarnClaimed] != 1 || !e.load(t, tk.TicketID).InactivityWarned {
		t.Fatalf("expected claimed warning, got %v", report.Actions)
	}

	msgAt := t0.Add(th.ClaimedWarn + time.Hour)
	if _, err := e.service.RecordMessage(ctx, tk.ChannelID, ticket.Message{AuthorID: "u1", Content: "any news?", CreatedAt: msgAt}); err != nil {
		t.Fatalf("record message: %v", err)
	}
	if e.load(t, tk.TicketID).InactivityWarned {
		t.Fatalf("expected warning flag cleared by activity")
	}

	report = e.runAt(t, msgAt.Add(time.Hour))
	if len(report.Actions) != 0 {
		t.Fatalf("expected no action on stale elapsed time, got %v", report.Actions)
	}
	if got := e.notifier.count(ticket.NoticeClaimedWarning); got != 1 {
		t.Fatalf("expected no re-warning, got %d warnings", got)
	}
	if e.load(t, tk.TicketID).Status != ticket.StatusClaimed {
		t.Fatalf("expected ticket to stay claimed")
	}
}

func TestRequesterOnlyTrafficStillReassigns(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	th := ticket.DefaultThresholds()
	tk := e.create(t, "u1")
	if _, err := e.service.Claim(ctx, tk.ChannelID, ticket.Identity{UserID: "s1", Username: "bob"}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	for _, at := range []time.Duration{20 * time.Hour, 40 * time.Hour} {
		postAt := t0.Add(at)
		if _, err := e.service.RecordMessage(ctx, tk.ChannelID, ticket.Message{ID: "m-" + at.String(), AuthorID: "u1", Content: "hello?", CreatedAt: postAt}); err != nil {
			t.Fatalf("record message: %v", err)
		}
		e.runAt(t, postAt)
	}
	if e.load(t, tk.TicketID).Status != ticket.StatusClaimed {
		t.Fatalf("expected ticket claimed before the reassign window")
	}

	report := e.runAt(t, t0.Add(th.Reassign))
	if report.Actions[ticket.ActionReassign] != 1 {
		t.Fatalf("expected reassignment despite requester messages, got %v", report.Actions)
	}
	reassigned := e.load(t, tk.TicketID)
	if reassigned.Status != ticket.StatusOpen || reassigned.ClaimedBy != nil {
		t.Fatalf("unexpected ticket %+v", reassigned)
	}
	rep, err := e.store.GetReputation(ctx, "s1")
	if err != nil {
		t.Fatalf("reputation: %v", err)
	}
	if rep.AbandonedTickets != 1 {
		t.Fatalf("expected one abandonment, got %d", rep.AbandonedTickets)
	}
}

func TestStaffReplyPushesReassignmentBack(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	th := ticket.DefaultThresholds()
	tk := e.create(t, "u1")
	if _, err := e.service.Claim(ctx, tk.ChannelID, ticket.Identity{UserID: "s1", Username: "bob"}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	replyAt := t0.Add(40 * time.Hour)
	if _, err := e.service.RecordMessage(ctx, tk.ChannelID, ticket.Message{ID: "m1", AuthorID: "s1", Staff: true, Content: "looking into it", CreatedAt: replyAt}); err != nil {
		t.Fatalf("record message: %v", err)
	}

	report := e.runAt(t, t0.Add(th.Reassign))
	if report.Actions[ticket.ActionReassign] != 0 {
		t.Fatalf("expected no reassignment after staff reply, got %v", report.Actions)
	}
	if e.load(t, tk.TicketID).Status != ticket.StatusClaimed {
		t.Fatalf("expected ticket to stay claimed")
	}

	report = e.runAt(t, replyAt.Add(th.Reassign))
	if report.Actions[ticket.ActionReassign] != 1 {
		t.Fatalf("expected reassignment one window after the reply, got %v", report.Actions)
	}
	if _, err := e.store.GetReputation(ctx, "s1"); err != nil {
		t.Fatalf("expected abandonment recorded, got %v", err)
	}
}

func TestSecondPassIsIdempotent(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 5; i++ {
		e.create(t, "u1")
	}
	at := t0.Add(ticket.DefaultThresholds().UnclaimedWarn)
	first := e.runAt(t, at)
	second := e.runAt(t, at)
	if first.Actions[ticket.ActionWarnUnclaimed] != 5 {
		t.Fatalf("expected five warnings, got %v", first.Actions)
	}
	if len(second.Actions) != 0 {
		t.Fatalf("expected no actions on second pass, got %v", second.Actions)
	}
	if got := e.notifier.count(ticket.NoticeUnclaimedWarning); got != 5 {
		t.Fatalf("expected five alerts, got %d", got)
	}
	if got := testutil.ToFloat64(e.metrics.SweepsTotal.WithLabelValues("completed")); got != 2 {
		t.Fatalf("expected two completed sweeps, got %v", got)
	}
	if got := testutil.ToFloat64(e.metrics.ScannerActions.WithLabelValues(string(ticket.ActionWarnUnclaimed))); got != 5 {
		t.Fatalf("expected five recorded actions, got %v", got)
	}
}

type staticStore struct {
	tickets []ticket.Ticket
	calls   chan struct{}
}

func (s *staticStore) ListActiveTickets(ctx context.Context) ([]ticket.Ticket, error) {
	if s.calls != nil {
		s.calls <- struct{}{}
	}
	return s.tickets, nil
}

type scriptedApplier struct {
	mu      sync.Mutex
	fail    map[string]bool
	seen    []string
	block   chan struct{}
	entered chan struct{}
}

func (a *scriptedApplier) ApplyInactivity(ctx context.Context, snapshot ticket.Ticket, now time.Time, th ticket.Thresholds) (ticket.Action, error) {
	if a.entered != nil {
		a.entered <- struct{}{}
	}
	if a.block != nil {
		<-a.block
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = append(a.seen, snapshot.TicketID)
	if a.fail[snapshot.TicketID] {
		return ticket.ActionNone, errors.New("database is locked")
	}
	return ticket.ActionWarnUnclaimed, nil
}

func TestFailureIsIsolatedPerTicket(t *testing.T) {
	store := &staticStore{tickets: []ticket.Ticket{{TicketID: "0001"}, {TicketID: "0002"}, {TicketID: "0003"}}}
	applier := &scriptedApplier{fail: map[string]bool{"0002": true}}
	s := New(Config{Workers: 2, Thresholds: ticket.DefaultThresholds()}, store, applier, zap.NewNop())

	report, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if report.Scanned != 3 || report.Failed != 1 || report.Actions[ticket.ActionWarnUnclaimed] != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(applier.seen) != 3 {
		t.Fatalf("expected every ticket evaluated, got %v", applier.seen)
	}
}

func TestConcurrentSweepIsRejected(t *testing.T) {
	store := &staticStore{tickets: []ticket.Ticket{{TicketID: "0001"}}}
	applier := &scriptedApplier{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	s := New(Config{Workers: 1, Thresholds: ticket.DefaultThresholds()}, store, applier, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background())
		done <- err
	}()
	<-applier.entered

	if _, err := s.RunOnce(context.Background()); !errors.Is(err, ErrSweepInProgress) {
		t.Fatalf("expected sweep in progress, got %v", err)
	}
	close(applier.block)
	if err := <-done; err != nil {
		t.Fatalf("first sweep: %v", err)
	}

	applier.entered = nil
	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected sweep after release, got %v", err)
	}
}

func TestStartSweepsOnTicks(t *testing.T) {
	store := &staticStore{calls: make(chan struct{})}
	clock := &fakeClock{now: t0}
	s := New(Config{Interval: time.Minute, Thresholds: ticket.DefaultThresholds()}, store, &scriptedApplier{}, zap.NewNop())
	s.WithClock(clock)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(stopped)
	}()

	<-store.calls
	ticker := func() *fakeTicker {
		clock.mu.Lock()
		defer clock.mu.Unlock()
		return clock.ticker
	}()
	ticker.ch <- t0.Add(time.Minute)
	<-store.calls

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("scanner did not stop")
	}
}
