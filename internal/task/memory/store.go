// Package memory holds the in-process task registry. Task state does not
// survive a restart; that is an accepted property of the submit/poll
// contract, not an oversight.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/planform/planform/internal/clock/system"
	"github.com/planform/planform/internal/plan"
)

// Store is a mutex-guarded map from task id to task record. Each id is
// written by exactly one pipeline run and read by arbitrarily many pollers.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]plan.Task
	clock plan.Clock
}

// NewStore constructs an empty registry on the system clock.
func NewStore() *Store {
	return NewStoreWithClock(system.New())
}

// NewStoreWithClock constructs an empty registry with an explicit clock.
func NewStoreWithClock(clock plan.Clock) *Store {
	return &Store{
		tasks: make(map[string]plan.Task),
		clock: clock,
	}
}

// Create registers a fresh pending task.
func (s *Store) Create(_ context.Context, task plan.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return errors.New("task id already registered")
	}
	if task.Status == "" {
		task.Status = plan.TaskPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = s.clock.Now()
	}
	s.tasks[task.ID] = task
	return nil
}

// MarkProcessing transitions pending -> processing.
func (s *Store) MarkProcessing(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return plan.ErrTaskNotFound
	}
	if task.Status.Terminal() {
		return plan.ErrTaskTerminal
	}
	now := s.clock.Now()
	task.Status = plan.TaskProcessing
	task.StartedAt = &now
	s.tasks[id] = task
	return nil
}

// Complete records the terminal success state with its payload.
func (s *Store) Complete(_ context.Context, id string, result *plan.Payload) error {
	return s.finish(id, plan.TaskCompleted, result, "")
}

// Fail records the terminal failure state with a reason.
func (s *Store) Fail(_ context.Context, id string, reason string) error {
	return s.finish(id, plan.TaskFailed, nil, reason)
}

func (s *Store) finish(id string, status plan.TaskStatus, result *plan.Payload, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return plan.ErrTaskNotFound
	}
	if task.Status.Terminal() {
		return plan.ErrTaskTerminal
	}
	now := s.clock.Now()
	task.Status = status
	task.Result = result
	task.Error = reason
	task.FinishedAt = &now
	s.tasks[id] = task
	return nil
}

// Get returns a copy of the task record.
func (s *Store) Get(_ context.Context, id string) (plan.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return plan.Task{}, plan.ErrTaskNotFound
	}
	return task, nil
}
