package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/repository"
)

// Store is an in-memory stand-in for the Postgres repositories. Setting Err
// makes every call fail with it, the way an unreachable database would.
type Store struct {
	mu sync.Mutex

	Err error

	users    map[int64]domain.User
	tasks    map[int64]domain.Task
	messages []domain.TaskMessage
	events   []domain.TaskEvent
	profiles map[int64]domain.TelegramProfile

	nextTaskID    int64
	nextMessageID int64
	now           func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:    make(map[int64]domain.User),
		tasks:    make(map[int64]domain.Task),
		profiles: make(map[int64]domain.TelegramProfile),
		now:      time.Now,
	}
}

// SetClock overrides the time source used for created_at/updated_at.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) fail() error {
	return s.Err
}

// AddUser seeds an active user.
func (s *Store) AddUser(id int64, role domain.Role) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := domain.User{ID: id, Role: role, Status: "active", CreatedAt: s.now(), UpdatedAt: s.now()}
	s.users[id] = u
	return u
}

// PutTask stores task verbatim, keeping its timestamps.
func (s *Store) PutTask(task domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.ID > s.nextTaskID {
		s.nextTaskID = task.ID
	}
	s.tasks[task.ID] = task
}

func (s *Store) Users() repository.UserRepository                       { return userRepo{s} }
func (s *Store) Tasks() repository.TaskRepository                       { return taskRepo{s} }
func (s *Store) Messages() repository.MessageRepository                 { return messageRepo{s} }
func (s *Store) Events() repository.TaskEventRepository                 { return eventRepo{s} }
func (s *Store) TelegramProfiles() repository.TelegramProfileRepository { return profileRepo{s} }

type userRepo struct{ s *Store }

func (r userRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r userRepo) Upsert(ctx context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(); err != nil {
		return err
	}
	if u == nil {
		return domain.ErrInvalidPayload
	}
	u.UpdatedAt = r.s.now()
	r.s.users[u.ID] = *u
	return nil
}

type taskRepo struct{ s *Store }

func (r taskRepo) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(); err != nil {
		return nil, err
	}
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return &t, nil
}

func (r taskRepo) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(); err != nil {
		return nil, err
	}
	var out []domain.Task
	for _, t := range r.s.tasks {
		if filter.ParticipantID != 0 && !t.HasParticipant(filter.ParticipantID) {
			continue
		}
		if filter.AssigneeID != 0 && t.AssigneeID != filter.AssigneeID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r taskRepo) ListDueBetween(ctx context.Context, assigneeID int64, from, to time.Time) ([]domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(); err != nil {
		return nil, err
	}
	var out []domain.Task
	for _, t := range r.s.tasks {
		if t.AssigneeID != assigneeID || t.DueAt == nil {
			continue
		}
		if t.DueAt.Before(from) || !t.DueAt.Before(to) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r taskRepo) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(); err != nil {
		return nil, err
	}
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	r.s.nextTaskID++
	task.ID = r.s.nextTaskID
	if task.CreatedAt.IsZero() {
		task.CreatedAt = r.s.now()
	}
	task.UpdatedAt = task.CreatedAt
	r.s.tasks[task.ID] = *task
	return task, nil
}

func (r taskRepo) Update(ctx context.Context, task *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(); err != nil {
		return err
	}
	existing, ok := r.s.tasks[task.ID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = r.s.now()
	r.s.tasks[task.ID] = *task
	return nil
}

func (r taskRepo) Replay(ctx context.Context, task *domain.Task, mutatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(); err != nil {
		return err
	}
	if task == nil || mutatedAt.IsZero() {
		return domain.ErrInvalidPayload
	}
	existing, ok := r.s.tasks[task.ID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if existing.UpdatedAt.After(mutatedAt) {
		return domain.ErrTaskChanged
	}
	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = mutatedAt
	r.s.tasks[task.ID] = *task
	return nil
}

func (r taskRepo) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(); err != nil {
		return err
	}
	if _, ok := r.s.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

type messageRepo struct{ s *Store }

func (r messageRepo) Create(ctx context.Context, msg *domain.TaskMessage) (*domain.TaskMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(); err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, domain.ErrInvalidPayload
	}
	if _, ok := r.s.tasks[msg.TaskID]; !ok {
		return nil, domain.ErrTaskNotFound
	}
	r.s.nextMessageID++
	msg.ID = r.s.nextMessageID
	msg.CreatedAt = r.s.now()
	r.s.messages = append(r.s.messages, *msg)
	return msg, nil
}

func (r messageRepo) List(ctx context.Context, filter repository.MessageFilter) ([]domain.TaskMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(); err != nil {
		return nil, err
	}
	var out []domain.TaskMessage
	for _, m := range r.s.messages {
		if m.TaskID != filter.TaskID {
			continue
		}
		if filter.UserID != 0 && m.SenderID != filter.UserID && m.PeerID != filter.UserID {
			continue
		}
		out = append(out, m)
	}
	return page(out, filter.Limit, filter.Offset), nil
}

type eventRepo struct{ s *Store }

func (r eventRepo) Append(ctx context.Context, event domain.TaskEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(); err != nil {
		return err
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = r.s.now()
	}
	r.s.events = append(r.s.events, event)
	return nil
}

func (r eventRepo) ListByTask(ctx context.Context, taskID int64, limit, offset int) ([]domain.TaskEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(); err != nil {
		return nil, err
	}
	var out []domain.TaskEvent
	for _, e := range r.s.events {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return page(out, limit, offset), nil
}

type profileRepo struct{ s *Store }

func (r profileRepo) GetByUserID(ctx context.Context, userID int64) (*domain.TelegramProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(); err != nil {
		return nil, err
	}
	p, ok := r.s.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

func (r profileRepo) GetByTelegramUserID(ctx context.Context, telegramUserID int64) (*domain.TelegramProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(); err != nil {
		return nil, err
	}
	for _, p := range r.s.profiles {
		if p.TelegramUserID == telegramUserID {
			return &p, nil
		}
	}
	return nil, domain.ErrProfileNotFound
}

func (r profileRepo) Upsert(ctx context.Context, profile *domain.TelegramProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(); err != nil {
		return err
	}
	if profile == nil || profile.UserID == 0 {
		return domain.ErrInvalidPayload
	}
	for uid, p := range r.s.profiles {
		if p.TelegramUserID == profile.TelegramUserID && uid != profile.UserID {
			delete(r.s.profiles, uid)
		}
	}
	if profile.LinkedAt.IsZero() {
		profile.LinkedAt = r.s.now()
	}
	r.s.profiles[profile.UserID] = *profile
	return nil
}

// EventNames returns the names of events recorded for taskID in order.
func (s *Store) EventNames(taskID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, e := range s.events {
		if e.TaskID == taskID {
			names = append(names, e.Name)
		}
	}
	return names
}

func page[T any](items []T, limit, offset int) []T {
	if offset > len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
