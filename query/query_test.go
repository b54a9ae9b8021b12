package query

import (
	"testing"
	"time"

	"github.com/abefas/todoboard/models"
	"github.com/stretchr/testify/assert"
)

func due(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func ids(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestSortTasks_PriorityThenDue(t *testing.T) {
	a := models.Task{ID: "A", Priority: models.PriorityHigh, DueDate: due("2030-02-01T00:00:00Z")}
	b := models.Task{ID: "B", Priority: models.PriorityHigh, DueDate: due("2030-01-01T00:00:00Z")}
	c := models.Task{ID: "C", Priority: models.PriorityLow, DueDate: due("2030-01-01T00:00:00Z")}

	got := SortTasks([]models.Task{a, b, c}, models.SortPriority)

	assert.Equal(t, []string{"B", "A", "C"}, ids(got))
}

func TestSortTasks_UnknownPriorityRanksAsMedium(t *testing.T) {
	tasks := []models.Task{
		{ID: "low", Priority: models.PriorityLow},
		{ID: "weird", Priority: "urgent"},
		{ID: "medium", Priority: models.PriorityMedium},
		{ID: "high", Priority: models.PriorityHigh},
	}

	got := SortTasks(tasks, models.SortPriority)

	assert.Equal(t, []string{"high", "weird", "medium", "low"}, ids(got))
}

func TestSortTasks_IsStable(t *testing.T) {
	tasks := []models.Task{
		{ID: "1", Priority: models.PriorityMedium},
		{ID: "2", Priority: models.PriorityMedium, DueDate: due("2030-01-01T00:00:00Z")},
		{ID: "3", Priority: models.PriorityMedium},
		{ID: "4", Priority: models.PriorityMedium, DueDate: due("2030-01-01T00:00:00Z")},
		{ID: "5", Priority: models.PriorityMedium},
	}

	assert.Equal(t, []string{"2", "4", "1", "3", "5"}, ids(SortTasks(tasks, models.SortPriority)))
	assert.Equal(t, []string{"2", "4", "1", "3", "5"}, ids(SortTasks(tasks, models.SortDue)))
}

func TestSortTasks_UndatedLast(t *testing.T) {
	tasks := []models.Task{
		{ID: "none", Priority: models.PriorityHigh},
		{ID: "far", Priority: models.PriorityHigh, DueDate: due("2999-12-31T00:00:00Z")},
		{ID: "near", Priority: models.PriorityHigh, DueDate: due("2000-01-01T00:00:00Z")},
	}

	for _, by := range []models.SortBy{models.SortPriority, models.SortDue} {
		t.Run(string(by), func(t *testing.T) {
			assert.Equal(t, []string{"near", "far", "none"}, ids(SortTasks(tasks, by)))
		})
	}
}

func TestSortTasks_Created(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tasks := []models.Task{
		{ID: "newest", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "oldest", CreatedAt: base},
		{ID: "middle", CreatedAt: base.Add(time.Hour)},
	}

	assert.Equal(t, []string{"oldest", "middle", "newest"}, ids(SortTasks(tasks, models.SortCreated)))
}

func TestSortTasks_UnknownCriterionPassesThrough(t *testing.T) {
	tasks := []models.Task{
		{ID: "z", Priority: models.PriorityLow},
		{ID: "a", Priority: models.PriorityHigh},
	}

	got := SortTasks(tasks, "alphabetical")

	assert.Equal(t, []string{"z", "a"}, ids(got))
}

func TestSortTasks_DoesNotMutateInput(t *testing.T) {
	tasks := []models.Task{
		{ID: "low", Priority: models.PriorityLow},
		{ID: "high", Priority: models.PriorityHigh},
	}

	_ = SortTasks(tasks, models.SortPriority)

	assert.Equal(t, []string{"low", "high"}, ids(tasks))
}

func TestFilterTasks_Search(t *testing.T) {
	tasks := []models.Task{
		{ID: "title", Title: "Buy MILK"},
		{ID: "desc", Title: "Groceries", Description: "oat milk and bread"},
		{ID: "neither", Title: "Call mom"},
	}

	got := FilterTasks(tasks, models.Filter{Search: "milk"}, time.Now())
	assert.Equal(t, []string{"title", "desc"}, ids(got))

	got = FilterTasks(tasks, models.Filter{Search: "Milk"}, time.Now())
	assert.Equal(t, []string{"title", "desc"}, ids(got))

	got = FilterTasks(tasks, models.Filter{}, time.Now())
	assert.Equal(t, []string{"title", "desc", "neither"}, ids(got))
}

func TestFilterTasks_Today(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, loc)

	tasks := []models.Task{
		// 2026-10-17 23:30 local is 2026-10-18 04:30 UTC: still today locally.
		{ID: "late-today", DueDate: due("2026-10-18T04:30:00Z")},
		{ID: "early-today", DueDate: due("2026-10-17T05:00:00Z")},
		// 2026-10-16 23:00 local.
		{ID: "yesterday", DueDate: due("2026-10-17T04:00:00Z")},
		{ID: "undated"},
	}

	got := FilterTasks(tasks, models.Filter{Today: true}, now)

	assert.Equal(t, []string{"late-today", "early-today"}, ids(got))
}

func TestFilterTasks_ComposesWithAnd(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	tasks := []models.Task{
		{ID: "match", Title: "milk", DueDate: due("2026-10-17T18:00:00Z")},
		{ID: "wrong-day", Title: "milk", DueDate: due("2026-10-20T18:00:00Z")},
		{ID: "wrong-text", Title: "bread", DueDate: due("2026-10-17T18:00:00Z")},
	}

	got := FilterTasks(tasks, models.Filter{Search: "milk", Today: true}, now)

	assert.Equal(t, []string{"match"}, ids(got))
}

func TestParseSort(t *testing.T) {
	assert.Equal(t, models.SortPriority, ParseSort(""))
	assert.Equal(t, models.SortDue, ParseSort("due"))
	assert.Equal(t, models.SortBy("bogus"), ParseSort("bogus"))
}

func TestDashboard(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	tasks := []models.Task{
		{ID: "low-milk", Title: "milk", Priority: models.PriorityLow},
		{ID: "bread", Title: "bread", Priority: models.PriorityHigh},
		{ID: "high-milk", Title: "more milk", Priority: models.PriorityHigh},
	}

	got := Dashboard(tasks, models.Query{Search: "milk"}, now)

	assert.Equal(t, []string{"high-milk", "low-milk"}, ids(got))
}
