package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/abefas/todoboard/middleware"
	"github.com/abefas/todoboard/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"welcome", "guest", "login", "register", "dashboard", "add_task", "edit_task"}

// Renderer writes a named page.
type Renderer interface {
	Render(w io.Writer, name string, page *Page) error
}

// Page is the data every view receives.
type Page struct {
	Title string
	User  *models.Claims
	Flash *middleware.FlashMessage
	Query models.Query
	Tasks []TaskView
	Task  *TaskView
}

// TaskView is a task plus its display strings.
type TaskView struct {
	models.Task
	PriorityLabel string
	DueRelative   string
	DueISO        string
	DueInput      string
}

func newTaskView(t models.Task, now time.Time) TaskView {
	v := TaskView{Task: t, PriorityLabel: strings.ToUpper(string(t.Priority)), DueRelative: "no due date"}
	if t.DueDate != nil {
		v.DueRelative = humanize.RelTime(*t.DueDate, now, "ago", "from now")
		v.DueISO = t.DueDate.UTC().Format(time.RFC3339)
		v.DueInput = t.DueDate.In(now.Location()).Format("2006-01-02T15:04")
	}
	return v
}

func taskViews(tasks []models.Task, now time.Time) []TaskView {
	out := make([]TaskView, len(tasks))
	for i, t := range tasks {
		out[i] = newTaskView(t, now)
	}
	return out
}

// Templates renders the embedded html/template views.
type Templates struct {
	pages map[string]*template.Template
}

// NewTemplates parses the layout and every page.
func NewTemplates() (*Templates, error) {
	base, err := template.New("layout").ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	t := &Templates{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		page, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := page.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		t.pages[name] = page
	}
	return t, nil
}

// MustTemplates is NewTemplates for embedded views that are known to parse.
func MustTemplates() *Templates {
	t, err := NewTemplates()
	if err != nil {
		panic(err)
	}
	return t
}

// Render executes the page inside the layout.
func (t *Templates) Render(w io.Writer, name string, page *Page) error {
	tmpl, ok := t.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", page)
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, name string, page *Page) {
	if claims, ok := middleware.UserFromContext(r.Context()); ok {
		page.User = claims
	}
	if page.Flash == nil {
		page.Flash = middleware.FlashFromContext(r.Context())
	}

	var buf bytes.Buffer
	if err := h.views.Render(&buf, name, page); err != nil {
		h.logger.Error("failed to render page", "page", name, "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
