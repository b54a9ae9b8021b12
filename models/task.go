package models

import (
	"fmt"
	"strings"
	"time"
)

// dueDateLayouts are tried in order. Layouts without an offset are read in the caller's location.
var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDueDate normalizes a user-supplied due date to UTC. Empty input means no due date.
func ParseDueDate(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			utc := t.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", raw)
}

// Priority ranks a task on the dashboard.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority lowercases raw input. Absent or unrecognized values fall back to medium.
func ParsePriority(raw string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(raw))); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p
	default:
		return PriorityMedium
	}
}

// Rank orders priorities high=0 < medium=1 < low=2.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// Task represents a to-do item owned by exactly one user.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
	Priority    Priority   `json:"priority"`
	Completed   bool       `json:"completed"`
	Overdue     bool       `json:"overdue"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ShouldBeOverdue reports whether the task is past due at now and still open.
func (t Task) ShouldBeOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && !t.Completed
}

// TaskInput carries the fields accepted when creating a task.
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	Priority    string `json:"priority"`
}

// TaskPatch carries the fields supplied to an update. Nil means "not supplied".
type TaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"dueDate,omitempty"`
	Priority    *string `json:"priority,omitempty"`
}

// SortBy selects the dashboard ordering.
type SortBy string

const (
	SortPriority SortBy = "priority"
	SortDue      SortBy = "due"
	SortCreated  SortBy = "created"
)

// Filter narrows a task list before sorting.
type Filter struct {
	Search string
	Today  bool
}

// Query is the dashboard request: sort, search and view as they arrived on the URL.
type Query struct {
	Sort   string `json:"sort"`
	Search string `json:"search"`
	View   string `json:"view"`
}

// Filter derives the pipeline filter from the query.
func (q Query) Filter() Filter {
	return Filter{Search: q.Search, Today: q.View == "today"}
}
