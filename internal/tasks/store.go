// Package tasks holds the pollable registry of in-flight processing tasks.
package tasks

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

// Store maps task handles to their lifecycle state.
//
// Update and Delete on an unknown handle are silent no-ops so a late write
// after cleanup never fails a pipeline. Once a task reaches a terminal status
// further updates are ignored.
type Store interface {
	Create() string
	Get(id string) (entity.Task, bool)
	Update(id string, status constants.TaskStatus, result *entity.TaskResult, errMsg string)
	Delete(id string)
}

// Clock returns the current time; tests inject a fixed one.
type Clock func() time.Time

// MemoryStore is a process-local Store guarded by a RWMutex.
type MemoryStore struct {
	mu     sync.RWMutex
	tasks  map[string]*entity.Task
	now    Clock
	newID  func() string
	logger *slog.Logger
}

type Option func(*MemoryStore)

// WithClock overrides time.Now.
func WithClock(c Clock) Option {
	return func(s *MemoryStore) {
		if c != nil {
			s.now = c
		}
	}
}

// WithIDGenerator overrides uuid handle allocation.
func WithIDGenerator(f func() string) Option {
	return func(s *MemoryStore) {
		if f != nil {
			s.newID = f
		}
	}
}

func NewMemoryStore(logger *slog.Logger, opts ...Option) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MemoryStore{
		tasks:  make(map[string]*entity.Task),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		logger: logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *MemoryStore) Create() string {
	now := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for _, exists := s.tasks[id]; exists; _, exists = s.tasks[id] {
		id = s.newID()
	}
	s.tasks[id] = &entity.Task{
		ID:        id,
		Status:    constants.TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.logger.Debug("task.created", "task_id", id)
	return id
}

func (s *MemoryStore) Get(id string) (entity.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return entity.Task{}, false
	}
	out := *t
	out.Result = t.Result.Clone()
	return out, true
}

func (s *MemoryStore) Update(id string, status constants.TaskStatus, result *entity.TaskResult, errMsg string) {
	now := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		s.logger.Debug("task.update.unknown", "task_id", id, "status", status)
		return
	}
	if !t.Status.CanTransitionTo(status) {
		s.logger.Debug("task.update.rejected", "task_id", id, "from", t.Status, "to", status)
		return
	}
	t.Status = status
	t.Result = result.Clone()
	t.Error = errMsg
	t.UpdatedAt = now
}

func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// Len reports the number of tracked tasks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
