// Package query filters and orders an already-loaded task list. Nothing here
// touches storage and no input slice is modified.
package query

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/abefas/todoboard/models"
)

// ParseSort maps the sort query parameter. Empty means priority; any other
// value is passed through and SortTasks leaves the order alone.
func ParseSort(raw string) models.SortBy {
	if raw == "" {
		return models.SortPriority
	}
	return models.SortBy(raw)
}

// FilterTasks keeps tasks matching every supplied criterion. Search is a
// case-insensitive substring of title or description; Today keeps tasks due
// on now's calendar day in now's location.
func FilterTasks(tasks []models.Task, f models.Filter, now time.Time) []models.Task {
	term := strings.ToLower(f.Search)
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if term != "" &&
			!strings.Contains(strings.ToLower(t.Title), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) {
			continue
		}
		if f.Today && !dueOn(t, now) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func dueOn(t models.Task, day time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	y1, m1, d1 := t.DueDate.In(day.Location()).Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// SortTasks returns a stably sorted copy.
func SortTasks(tasks []models.Task, by models.SortBy) []models.Task {
	out := slices.Clone(tasks)
	switch by {
	case models.SortPriority:
		slices.SortStableFunc(out, func(a, b models.Task) int {
			if c := cmp.Compare(a.Priority.Rank(), b.Priority.Rank()); c != 0 {
				return c
			}
			return compareDue(a, b)
		})
	case models.SortDue:
		slices.SortStableFunc(out, compareDue)
	case models.SortCreated:
		slices.SortStableFunc(out, func(a, b models.Task) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})
	}
	return out
}

// compareDue orders by due date with undated tasks last.
func compareDue(a, b models.Task) int {
	switch {
	case a.DueDate == nil && b.DueDate == nil:
		return 0
	case a.DueDate == nil:
		return 1
	case b.DueDate == nil:
		return -1
	default:
		return a.DueDate.Compare(*b.DueDate)
	}
}

// Dashboard runs the full read pipeline for one dashboard request.
func Dashboard(tasks []models.Task, q models.Query, now time.Time) []models.Task {
	return SortTasks(FilterTasks(tasks, q.Filter(), now), ParseSort(q.Sort))
}
