package store

import (
	"context"
	"strings"
	"time"

	"github.com/abefas/todoboard/database"
	"github.com/abefas/todoboard/models"
	"github.com/google/uuid"
)

// TaskStore owns the task collection. Every method is scoped to one user: a
// task owned by someone else behaves exactly like a missing one.
type TaskStore struct {
	tasks database.Collection[models.Task]
	now   func() time.Time
	loc   *time.Location
}

// TaskOption configures a TaskStore.
type TaskOption func(*TaskStore)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TaskOption {
	return func(s *TaskStore) { s.now = now }
}

// WithLocation sets the zone used for due dates given without an offset.
func WithLocation(loc *time.Location) TaskOption {
	return func(s *TaskStore) { s.loc = loc }
}

// NewTaskStore creates a TaskStore over the given collection.
func NewTaskStore(tasks database.Collection[models.Task], opts ...TaskOption) *TaskStore {
	s := &TaskStore{tasks: tasks, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAll returns the user's tasks in insertion order.
func (s *TaskStore) GetAll(ctx context.Context, userID string) ([]models.Task, error) {
	all, err := s.tasks.Load(ctx)
	if err != nil {
		return nil, err
	}
	owned := make([]models.Task, 0, len(all))
	for _, t := range all {
		if t.UserID == userID {
			owned = append(owned, t)
		}
	}
	return owned, nil
}

// FindByID returns the user's task with the given id.
func (s *TaskStore) FindByID(ctx context.Context, userID, id string) (*models.Task, error) {
	all, err := s.tasks.Load(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexOwned(all, userID, id); i >= 0 {
		return &all[i], nil
	}
	return nil, ErrNotFound
}

// CreateTask normalizes input and appends a new task for the user.
func (s *TaskStore) CreateTask(ctx context.Context, userID string, in models.TaskInput) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, &ValidationError{Field: "title", Reason: "required"}
	}
	due, err := models.ParseDueDate(in.DueDate, s.loc)
	if err != nil {
		return nil, &ValidationError{Field: "dueDate", Reason: err.Error()}
	}

	now := s.now().UTC()
	task := models.Task{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		DueDate:     due,
		Priority:    models.ParsePriority(in.Priority),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	task.Overdue = task.ShouldBeOverdue(now)

	err = s.tasks.Update(ctx, func(all []models.Task) ([]models.Task, bool, error) {
		return append(all, task), true, nil
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask merges the supplied fields over the user's task. Empty due date
// or priority strings leave the stored value alone.
func (s *TaskStore) UpdateTask(ctx context.Context, userID, id string, patch models.TaskPatch) (*models.Task, error) {
	var title string
	if patch.Title != nil {
		title = strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, &ValidationError{Field: "title", Reason: "required"}
		}
	}
	var due *time.Time
	if patch.DueDate != nil {
		parsed, err := models.ParseDueDate(*patch.DueDate, s.loc)
		if err != nil {
			return nil, &ValidationError{Field: "dueDate", Reason: err.Error()}
		}
		due = parsed
	}

	var updated models.Task
	err := s.tasks.Update(ctx, func(all []models.Task) ([]models.Task, bool, error) {
		i := indexOwned(all, userID, id)
		if i < 0 {
			return nil, false, ErrNotFound
		}
		t := &all[i]
		if patch.Title != nil {
			t.Title = title
		}
		if patch.Description != nil {
			t.Description = strings.TrimSpace(*patch.Description)
		}
		if due != nil {
			t.DueDate = due
		}
		if patch.Priority != nil && strings.TrimSpace(*patch.Priority) != "" {
			t.Priority = models.ParsePriority(*patch.Priority)
		}
		now := s.now().UTC()
		t.Overdue = t.ShouldBeOverdue(now)
		t.UpdatedAt = now
		updated = *t
		return all, true, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ToggleComplete flips the completed flag. Completing a task clears its overdue flag.
func (s *TaskStore) ToggleComplete(ctx context.Context, userID, id string) (*models.Task, error) {
	var toggled models.Task
	err := s.tasks.Update(ctx, func(all []models.Task) ([]models.Task, bool, error) {
		i := indexOwned(all, userID, id)
		if i < 0 {
			return nil, false, ErrNotFound
		}
		t := &all[i]
		t.Completed = !t.Completed
		if t.Completed {
			t.Overdue = false
		}
		t.UpdatedAt = s.now().UTC()
		toggled = *t
		return all, true, nil
	})
	if err != nil {
		return nil, err
	}
	return &toggled, nil
}

// RemoveTask deletes the user's task and reports whether one existed.
func (s *TaskStore) RemoveTask(ctx context.Context, userID, id string) (bool, error) {
	removed := false
	err := s.tasks.Update(ctx, func(all []models.Task) ([]models.Task, bool, error) {
		i := indexOwned(all, userID, id)
		if i < 0 {
			return nil, false, nil
		}
		removed = true
		return append(all[:i], all[i+1:]...), true, nil
	})
	return removed, err
}

// RemoveAllForUser deletes every task the user owns and returns how many went.
func (s *TaskStore) RemoveAllForUser(ctx context.Context, userID string) (int, error) {
	count := 0
	err := s.tasks.Update(ctx, func(all []models.Task) ([]models.Task, bool, error) {
		next := all[:0]
		for _, t := range all {
			if t.UserID == userID {
				count++
				continue
			}
			next = append(next, t)
		}
		return next, count > 0, nil
	})
	return count, err
}

// MarkOverdueForUser recomputes the overdue flag of the user's tasks and
// returns how many flipped. Nothing is written when no flag changes, so a
// second call with no boundary crossed returns 0.
func (s *TaskStore) MarkOverdueForUser(ctx context.Context, userID string) (int, error) {
	count := 0
	err := s.tasks.Update(ctx, func(all []models.Task) ([]models.Task, bool, error) {
		count = 0
		now := s.now().UTC()
		for i := range all {
			t := &all[i]
			if t.UserID != userID {
				continue
			}
			if should := t.ShouldBeOverdue(now); t.Overdue != should {
				t.Overdue = should
				t.UpdatedAt = now
				count++
			}
		}
		return all, count > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func indexOwned(all []models.Task, userID, id string) int {
	for i := range all {
		if all[i].ID == id && all[i].UserID == userID {
			return i
		}
	}
	return -1
}
