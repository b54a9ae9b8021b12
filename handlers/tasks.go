package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/abefas/todoboard/middleware"
	"github.com/abefas/todoboard/models"
	"github.com/abefas/todoboard/query"
	"github.com/abefas/todoboard/store"
)

func dashboardQuery(r *http.Request) models.Query {
	v := r.URL.Query()
	return models.Query{Sort: v.Get("sort"), Search: v.Get("search"), View: v.Get("view")}
}

// refresh flags the user's past-due tasks before they are read.
func (h *Handlers) refresh(r *http.Request, userID string) (int, error) {
	n, err := h.overdue.RefreshUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("overdue refresh failed", "user", userID, "err", err)
		return 0, err
	}
	return n, nil
}

// Dashboard lists the user's tasks after search, today and sort are applied.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	marked, err := h.refresh(r, user.UserID)
	if err != nil {
		http.Error(w, "Failed to load tasks", http.StatusInternalServerError)
		return
	}

	all, err := h.tasks.GetAll(r.Context(), user.UserID)
	if err != nil {
		h.logger.Error("failed to load tasks", "user", user.UserID, "err", err)
		http.Error(w, "Failed to load tasks", http.StatusInternalServerError)
		return
	}

	now := h.now()
	q := dashboardQuery(r)
	tasks := query.Dashboard(all, q, now)
	if q.Sort == "" {
		q.Sort = string(models.SortPriority)
	}

	page := &Page{Title: "Dashboard", Query: q, Tasks: taskViews(tasks, now)}
	if marked > 0 && middleware.FlashFromContext(r.Context()) == nil {
		page.Flash = &middleware.FlashMessage{
			Type:    middleware.FlashWarning,
			Message: fmt.Sprintf("You have %d overdue task(s).", marked),
		}
	}
	h.render(w, r, "dashboard", page)
}

// AddTaskForm shows the new-task form.
func (h *Handlers) AddTaskForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "add_task", &Page{Title: "Add Task"})
}

// CreateTask stores a task from the add form.
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if err := r.ParseForm(); err != nil {
		h.flash(w, middleware.FlashDanger, "Failed to create task.")
		h.redirect(w, r, "/tasks/add")
		return
	}
	in := models.TaskInput{
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
		DueDate:     r.PostFormValue("dueDate"),
		Priority:    r.PostFormValue("priority"),
	}
	if strings.TrimSpace(in.Title) == "" {
		h.flash(w, middleware.FlashDanger, "Title is required.")
		h.redirect(w, r, "/tasks/add")
		return
	}

	task, err := h.tasks.CreateTask(r.Context(), user.UserID, in)
	if store.IsValidation(err) {
		h.flash(w, middleware.FlashDanger, validationMessage(err))
		h.redirect(w, r, "/tasks/add")
		return
	}
	if err != nil {
		h.logger.Error("failed to create task", "user", user.UserID, "err", err)
		h.flash(w, middleware.FlashDanger, "Failed to create task.")
		h.redirect(w, r, "/tasks/add")
		return
	}

	h.logger.Debug("task created", "user", user.UserID, "task", task.ID)
	h.flash(w, middleware.FlashSuccess, "Task created.")
	h.redirect(w, r, "/dashboard")
}

// EditTaskForm shows the edit form for one of the user's tasks.
func (h *Handlers) EditTaskForm(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	task, err := h.tasks.FindByID(r.Context(), user.UserID, mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		h.flash(w, middleware.FlashDanger, "Task not found.")
		h.redirect(w, r, "/dashboard")
		return
	}
	if err != nil {
		h.logger.Error("failed to load task", "user", user.UserID, "err", err)
		http.Error(w, "Failed to load task", http.StatusInternalServerError)
		return
	}

	view := newTaskView(*task, h.now())
	h.render(w, r, "edit_task", &Page{Title: "Edit Task", Task: &view})
}

// formField returns a pointer to the submitted value, or nil when the field was absent.
func formField(r *http.Request, name string) *string {
	values, ok := r.PostForm[name]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

// UpdateTask applies the edit form to one of the user's tasks.
func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id := mux.Vars(r)["id"]
	if err := r.ParseForm(); err != nil {
		h.flash(w, middleware.FlashDanger, "Failed to update task.")
		h.redirect(w, r, "/dashboard")
		return
	}
	patch := models.TaskPatch{
		Title:       formField(r, "title"),
		Description: formField(r, "description"),
		DueDate:     formField(r, "dueDate"),
		Priority:    formField(r, "priority"),
	}

	_, err := h.tasks.UpdateTask(r.Context(), user.UserID, id, patch)
	switch {
	case err == nil:
		h.flash(w, middleware.FlashSuccess, "Task updated.")
		h.redirect(w, r, "/dashboard")
	case errors.Is(err, store.ErrNotFound):
		h.flash(w, middleware.FlashDanger, "Task not found.")
		h.redirect(w, r, "/dashboard")
	case store.IsValidation(err):
		h.flash(w, middleware.FlashDanger, validationMessage(err))
		h.redirect(w, r, "/tasks/"+id+"/edit")
	default:
		h.logger.Error("failed to update task", "user", user.UserID, "task", id, "err", err)
		h.flash(w, middleware.FlashDanger, "Failed to update task.")
		h.redirect(w, r, "/dashboard")
	}
}

// ToggleTask flips a task between complete and incomplete.
func (h *Handlers) ToggleTask(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	task, err := h.tasks.ToggleComplete(r.Context(), user.UserID, mux.Vars(r)["id"])
	switch {
	case err == nil && task.Completed:
		h.flash(w, middleware.FlashSuccess, "Task marked complete.")
	case err == nil:
		h.flash(w, middleware.FlashSuccess, "Task marked incomplete.")
	case errors.Is(err, store.ErrNotFound):
		h.flash(w, middleware.FlashDanger, "Task not found.")
	default:
		h.logger.Error("failed to toggle task", "user", user.UserID, "err", err)
		h.flash(w, middleware.FlashDanger, "Failed to update task.")
	}
	h.redirect(w, r, "/dashboard")
}

// DeleteTask removes one of the user's tasks.
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	removed, err := h.tasks.RemoveTask(r.Context(), user.UserID, mux.Vars(r)["id"])
	switch {
	case err != nil:
		h.logger.Error("failed to delete task", "user", user.UserID, "err", err)
		h.flash(w, middleware.FlashDanger, "Failed to delete task.")
	case removed:
		h.flash(w, middleware.FlashSuccess, "Task deleted.")
	default:
		h.flash(w, middleware.FlashDanger, "Task not found.")
	}
	h.redirect(w, r, "/dashboard")
}

// APITasks returns the user's tasks as JSON, with the same query parameters as the dashboard.
func (h *Handlers) APITasks(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if _, err := h.refresh(r, user.UserID); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to retrieve tasks")
		return
	}

	all, err := h.tasks.GetAll(r.Context(), user.UserID)
	if err != nil {
		h.logger.Error("failed to load tasks", "user", user.UserID, "err", err)
		respondWithError(w, http.StatusInternalServerError, "failed to retrieve tasks")
		return
	}

	tasks := query.Dashboard(all, dashboardQuery(r), h.now())
	respondWithJSON(w, http.StatusOK, tasks)
}
