package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/abefas/todoboard/middleware"
	"github.com/abefas/todoboard/models"
)

// UserService is the account API the handlers need.
type UserService interface {
	CreateUser(ctx context.Context, username, password string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ValidateUser(ctx context.Context, username, password string) (*models.User, error)
}

// TaskService is the per-user task API the handlers need.
type TaskService interface {
	GetAll(ctx context.Context, userID string) ([]models.Task, error)
	FindByID(ctx context.Context, userID, id string) (*models.Task, error)
	CreateTask(ctx context.Context, userID string, in models.TaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, userID, id string, patch models.TaskPatch) (*models.Task, error)
	ToggleComplete(ctx context.Context, userID, id string) (*models.Task, error)
	RemoveTask(ctx context.Context, userID, id string) (bool, error)
}

// OverdueRefresher brings one user's overdue flags up to date before a read.
type OverdueRefresher interface {
	RefreshUser(ctx context.Context, userID string) (int, error)
}

// Options wires the handlers to their collaborators.
type Options struct {
	Users    UserService
	Tasks    TaskService
	Overdue  OverdueRefresher
	Sessions *middleware.SessionManager
	Renderer Renderer
	Logger   *log.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Handlers struct holds the stores and session manager shared by every route.
type Handlers struct {
	users    UserService
	tasks    TaskService
	overdue  OverdueRefresher
	sessions *middleware.SessionManager
	views    Renderer
	logger   *log.Logger
	now      func() time.Time
}

// NewHandlers is a constructor for the Handlers struct.
func NewHandlers(opts Options) *Handlers {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	views := opts.Renderer
	if views == nil {
		views = MustTemplates()
	}
	opts.Sessions.SetUsers(opts.Users)
	return &Handlers{
		users:    opts.Users,
		tasks:    opts.Tasks,
		overdue:  opts.Overdue,
		sessions: opts.Sessions,
		views:    views,
		logger:   opts.Logger.WithPrefix("http"),
		now:      now,
	}
}

// Routes builds the application's router wrapped in the request-level middleware.
func (h *Handlers) Routes() http.Handler {
	router := mux.NewRouter()
	router.Use(h.sessions.LoadSession, h.sessions.Flash)

	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	router.HandleFunc("/", h.Home).Methods(http.MethodGet)
	router.HandleFunc("/guest", h.Guest).Methods(http.MethodGet)
	router.HandleFunc("/login", h.LoginForm).Methods(http.MethodGet)
	router.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	router.HandleFunc("/register", h.RegisterForm).Methods(http.MethodGet)
	router.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	router.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)

	router.Handle("/dashboard", h.page(h.Dashboard)).Methods(http.MethodGet)
	router.Handle("/tasks/add", h.page(h.AddTaskForm)).Methods(http.MethodGet)
	router.Handle("/tasks", h.page(h.CreateTask)).Methods(http.MethodPost)
	router.Handle("/tasks/{id}/edit", h.page(h.EditTaskForm)).Methods(http.MethodGet)
	router.Handle("/tasks/{id}", h.page(h.UpdateTask)).Methods(http.MethodPut)
	router.Handle("/tasks/{id}/toggle", h.page(h.ToggleTask)).Methods(http.MethodPost)
	router.Handle("/tasks/{id}/delete", h.page(h.DeleteTask)).Methods(http.MethodPost)
	router.Handle("/tasks/{id}", h.page(h.DeleteTask)).Methods(http.MethodDelete)

	router.HandleFunc("/api/login", h.APILogin).Methods(http.MethodPost)
	router.Handle("/api/tasks", h.sessions.RequireAPIAuth(http.HandlerFunc(h.APITasks))).Methods(http.MethodGet)

	// Outside the router so its 404 and 405 responses carry the headers too.
	handler := middleware.SecurityHeaders(router)
	// Method override must run before routing so "PUT /tasks/{id}" matches.
	handler = ghandlers.HTTPMethodOverrideHandler(handler)
	handler = ghandlers.RecoveryHandler(
		ghandlers.RecoveryLogger(h.logger.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel})),
	)(handler)
	return ghandlers.CustomLoggingHandler(io.Discard, handler, h.logRequest)
}

func (h *Handlers) page(fn http.HandlerFunc) http.Handler {
	return h.sessions.RequireAuth(fn)
}

func (h *Handlers) logRequest(_ io.Writer, p ghandlers.LogFormatterParams) {
	h.logger.Info("request",
		"method", p.Request.Method,
		"path", p.URL.Path,
		"status", p.StatusCode,
		"size", p.Size,
		"duration", time.Since(p.TimeStamp).Round(time.Microsecond),
	)
}

// respondWithJSON is a helper function to format and send JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// Health reports that the process is serving.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// currentUser returns the signed-in user. Guarded routes always have one.
func currentUser(r *http.Request) *models.Claims {
	claims, _ := middleware.UserFromContext(r.Context())
	return claims
}

func (h *Handlers) flash(w http.ResponseWriter, kind, message string) {
	h.sessions.SetFlash(w, kind, message)
}

func (h *Handlers) redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusFound)
}
