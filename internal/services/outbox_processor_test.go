package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/internal/infrastructure/outbox"
	"github.com/fastygo/taskpulse/internal/testutil"
	"github.com/fastygo/taskpulse/repository"
	"github.com/fastygo/taskpulse/usecase"
	"github.com/fastygo/taskpulse/usecase/report"
	taskUC "github.com/fastygo/taskpulse/usecase/task"
)

type stubMonitor struct{ online bool }

func (m *stubMonitor) IsOnline() bool { return m.online }

type sentMessage struct {
	chatID int64
	text   string
}

type stubSender struct {
	mu      sync.Mutex
	enabled bool
	err     error
	sent    []sentMessage
}

func (s *stubSender) Enabled() bool { return s.enabled }

func (s *stubSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

type temporaryErr struct{}

func (temporaryErr) Error() string   { return "telegram api: 502" }
func (temporaryErr) Temporary() bool { return true }

type stubTasks struct {
	repository.TaskRepository
	created []domain.Task
	deleted []int64
	err     error
	nextID  int64
}

func (s *stubTasks) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.nextID++
	task.ID = s.nextID
	s.created = append(s.created, *task)
	return task, nil
}

func (s *stubTasks) Delete(ctx context.Context, id int64) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, id)
	return nil
}

type stubEvents struct {
	events []domain.TaskEvent
}

func (s *stubEvents) Append(ctx context.Context, event domain.TaskEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubEvents) ListByTask(ctx context.Context, taskID int64, limit, offset int) ([]domain.TaskEvent, error) {
	return s.events, nil
}

type stubProfiles struct {
	profiles map[int64]domain.TelegramProfile
}

func (s *stubProfiles) GetByUserID(ctx context.Context, userID int64) (*domain.TelegramProfile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

func (s *stubProfiles) GetByTelegramUserID(ctx context.Context, id int64) (*domain.TelegramProfile, error) {
	return nil, domain.ErrProfileNotFound
}

func (s *stubProfiles) Upsert(ctx context.Context, profile *domain.TelegramProfile) error {
	return nil
}

type fixture struct {
	store     *outbox.Store
	monitor   *stubMonitor
	tasks     *stubTasks
	events    *stubEvents
	sender    *stubSender
	processor *OutboxProcessor
	bridge    *OutboxBridge
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := outbox.Open(filepath.Join(t.TempDir(), "outbox.db"), "")
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		store:   store,
		monitor: &stubMonitor{online: true},
		tasks:   &stubTasks{},
		events:  &stubEvents{},
		sender:  &stubSender{enabled: true},
	}
	f.processor = NewOutboxProcessor(store, f.monitor, f.tasks, f.events, f.sender, nil, ProcessorConfig{
		Interval:   time.Hour,
		MaxRetries: 2,
	})
	f.bridge = NewOutboxBridge(f.processor, &stubProfiles{profiles: map[int64]domain.TelegramProfile{
		7: {UserID: 7, TelegramUserID: 700, ChatID: 7000},
	}})
	return f
}

func TestNotifySendsImmediately(t *testing.T) {
	f := newFixture(t)

	if err := f.bridge.Notify(context.Background(), 7, "New task: demo /tasks/1"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0].chatID != 7000 {
		t.Fatalf("unexpected deliveries %+v", f.sender.sent)
	}
	if f.processor.Size() != 0 {
		t.Fatalf("expected empty outbox")
	}
}

func TestNotifySkipsUnlinkedUsers(t *testing.T) {
	f := newFixture(t)

	if err := f.bridge.Notify(context.Background(), 8, "hello"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(f.sender.sent) != 0 || f.processor.Size() != 0 {
		t.Fatalf("unlinked user must be skipped")
	}
}

func TestNotifyQueuesOnTemporaryFailureAndDrains(t *testing.T) {
	f := newFixture(t)
	f.sender.err = temporaryErr{}

	if err := f.bridge.Notify(context.Background(), 7, "ping"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if f.processor.Size() != 1 {
		t.Fatalf("expected queued notification, size=%d", f.processor.Size())
	}

	f.sender.err = nil
	if err := f.processor.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(f.sender.sent) != 1 || f.processor.Size() != 0 {
		t.Fatalf("expected delivery after drain, sent=%d size=%d", len(f.sender.sent), f.processor.Size())
	}
}

func TestDrainDropsAfterMaxRetries(t *testing.T) {
	f := newFixture(t)
	f.sender.err = temporaryErr{}
	_ = f.bridge.Notify(context.Background(), 7, "ping")

	for i := 0; i < 2; i++ {
		if err := f.processor.Drain(context.Background()); err != nil {
			t.Fatalf("drain: %v", err)
		}
	}
	if f.processor.Size() != 0 {
		t.Fatalf("expected item dropped after max retries, size=%d", f.processor.Size())
	}
}

func TestDrainDropsPermanentFailures(t *testing.T) {
	f := newFixture(t)
	f.sender.err = temporaryErr{}
	_ = f.bridge.Notify(context.Background(), 7, "ping")

	f.sender.err = domain.ErrTelegramUnavailable
	if err := f.processor.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if f.processor.Size() != 0 {
		t.Fatalf("expected permanent failure to be dropped")
	}
}

func TestBufferedTaskWaitsForStorage(t *testing.T) {
	f := newFixture(t)
	f.monitor.online = false

	task := &domain.Task{CreatorID: 1, AssigneeID: 7, Title: "offline", Status: domain.StatusNew}
	if err := f.bridge.BufferTask(context.Background(), usecase.OperationCreate, 1, task); err != nil {
		t.Fatalf("buffer: %v", err)
	}

	if err := f.processor.Drain(context.Background()); err != nil {
		t.Fatalf("drain offline: %v", err)
	}
	if len(f.tasks.created) != 0 || f.processor.Size() != 1 {
		t.Fatalf("task replayed while offline")
	}

	f.monitor.online = true
	if err := f.processor.Drain(context.Background()); err != nil {
		t.Fatalf("drain online: %v", err)
	}
	if len(f.tasks.created) != 1 || f.tasks.created[0].Title != "offline" {
		t.Fatalf("expected replayed create, got %+v", f.tasks.created)
	}
	if len(f.events.events) != 1 || f.events.events[0].Name != domain.EventTaskCreated || f.events.events[0].ActorID != 1 {
		t.Fatalf("expected replay event, got %+v", f.events.events)
	}
	if f.processor.Size() != 0 {
		t.Fatalf("expected empty outbox")
	}
}

func TestReplayedDeleteOfMissingTaskIsDropped(t *testing.T) {
	f := newFixture(t)
	f.tasks.err = domain.ErrTaskNotFound

	_ = f.bridge.BufferTask(context.Background(), usecase.OperationDelete, 1, &domain.Task{ID: 5})
	if err := f.processor.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if f.processor.Size() != 0 {
		t.Fatalf("expected not-found delete to be dropped")
	}
}

func TestRetryable(t *testing.T) {
	if retryable(domain.ErrTaskNotFound) {
		t.Fatalf("domain errors are final")
	}
	if !retryable(temporaryErr{}) {
		t.Fatalf("temporary errors retry")
	}
	if !retryable(errors.New("connection refused")) {
		t.Fatalf("unknown errors retry")
	}
}

// flakyUpdates fails Update while reads and replays reach the store.
type flakyUpdates struct {
	repository.TaskRepository
	err error
}

func (f flakyUpdates) Update(ctx context.Context, task *domain.Task) error { return f.err }

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type replayEnv struct {
	clock     *clock
	store     *testutil.Store
	tasks     *taskUC.UseCase
	processor *OutboxProcessor
	task      *domain.Task
}

// newReplayEnv seeds a task due 2026-01-10 12:00 UTC, created at 10:00,
// and a task use case whose writes fail with a storage error.
func newReplayEnv(t *testing.T) *replayEnv {
	t.Helper()
	c := &clock{now: time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)}
	store := testutil.NewStore()
	store.SetClock(c.Now)
	store.AddUser(1, domain.RoleCreator)
	store.AddUser(2, domain.RoleExecutor)

	box, err := outbox.Open(filepath.Join(t.TempDir(), "outbox.db"), "")
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}
	t.Cleanup(func() { _ = box.Close() })

	processor := NewOutboxProcessor(box, &stubMonitor{online: true}, store.Tasks(), store.Events(), nil, nil, ProcessorConfig{Interval: time.Hour})
	processor.now = c.Now
	bridge := NewOutboxBridge(processor, store.TelegramProfiles())

	due := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	task, err := store.Tasks().Create(context.Background(), &domain.Task{
		CreatorID: 1, AssigneeID: 2, Title: "report", Status: domain.StatusInProgress,
		Priority: domain.PriorityHigh, DueAt: &due,
	})
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}

	flaky := flakyUpdates{TaskRepository: store.Tasks(), err: errors.New("connection refused")}
	tasks := taskUC.New(flaky, store.Users(), store.Events(), bridge, bridge, nil)
	return &replayEnv{clock: c, store: store, tasks: tasks, processor: processor, task: task}
}

func TestReplayedCompletionKeepsMutationTime(t *testing.T) {
	e := newReplayEnv(t)
	ctx := context.Background()

	e.clock.now = time.Date(2026, 1, 10, 11, 0, 0, 0, time.UTC)
	done := domain.StatusDone
	if _, err := e.tasks.UpdateTask(ctx, 2, e.task.ID, taskUC.Patch{Status: &done}); err != nil {
		t.Fatalf("expected buffered update, got %v", err)
	}
	if e.processor.Size() != 1 {
		t.Fatalf("expected buffered mutation, size=%d", e.processor.Size())
	}

	e.clock.now = time.Date(2026, 1, 10, 13, 0, 0, 0, time.UTC)
	if err := e.processor.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if e.processor.Size() != 0 {
		t.Fatalf("expected replayed mutation, size=%d", e.processor.Size())
	}

	stored, err := e.store.Tasks().GetByID(ctx, e.task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if want := time.Date(2026, 1, 10, 11, 0, 0, 0, time.UTC); !stored.UpdatedAt.Equal(want) {
		t.Fatalf("updated_at = %v, want %v", stored.UpdatedAt, want)
	}

	kpi, err := report.New(e.store.Tasks(), time.UTC, nil).Compute(ctx, 2, 2026, 1)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if kpi.Done != 1 || kpi.DoneOnTime != 1 || kpi.DoneLate != 0 {
		t.Fatalf("completion before the deadline must count on time, got %+v", kpi.KpiCounters)
	}
}

func TestReplayDoesNotOverwriteNewerEdits(t *testing.T) {
	e := newReplayEnv(t)
	ctx := context.Background()

	e.clock.now = time.Date(2026, 1, 10, 11, 0, 0, 0, time.UTC)
	stale := "stale title"
	if _, err := e.tasks.UpdateTask(ctx, 1, e.task.ID, taskUC.Patch{Title: &stale}); err != nil {
		t.Fatalf("expected buffered update, got %v", err)
	}

	e.clock.now = time.Date(2026, 1, 10, 11, 30, 0, 0, time.UTC)
	fresh, _ := e.store.Tasks().GetByID(ctx, e.task.ID)
	fresh.Title = "fresh title"
	if err := e.store.Tasks().Update(ctx, fresh); err != nil {
		t.Fatalf("direct update: %v", err)
	}

	e.clock.now = time.Date(2026, 1, 10, 13, 0, 0, 0, time.UTC)
	if err := e.processor.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if e.processor.Size() != 0 {
		t.Fatalf("expected conflicting mutation to be dropped, size=%d", e.processor.Size())
	}
	stored, _ := e.store.Tasks().GetByID(ctx, e.task.ID)
	if stored.Title != "fresh title" {
		t.Fatalf("newer edit overwritten, title=%q", stored.Title)
	}
}

func TestIntervalIsClampedToWholeSeconds(t *testing.T) {
	store, err := outbox.Open(filepath.Join(t.TempDir(), "outbox.db"), "")
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cases := map[time.Duration]time.Duration{
		500 * time.Millisecond:  time.Second,
		1500 * time.Millisecond: time.Second,
		45 * time.Second:        45 * time.Second,
	}
	for in, want := range cases {
		p := NewOutboxProcessor(store, nil, nil, nil, nil, nil, ProcessorConfig{Interval: in})
		if p.cfg.Interval != want {
			t.Fatalf("interval %v: got %v want %v", in, p.cfg.Interval, want)
		}
		if n := len(p.cron.Entries()); n != 2 {
			t.Fatalf("interval %v: expected drain and cleanup jobs, got %d", in, n)
		}
	}
}
