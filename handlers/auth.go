package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/abefas/todoboard/middleware"
	"github.com/abefas/todoboard/models"
	"github.com/abefas/todoboard/store"
)

// Home sends signed-in users to their dashboard and everyone else to the welcome page.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserFromContext(r.Context()); ok {
		h.redirect(w, r, "/dashboard")
		return
	}
	h.render(w, r, "welcome", &Page{Title: "Welcome"})
}

// Guest shows the public information page.
func (h *Handlers) Guest(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "guest", &Page{Title: "Guest"})
}

// LoginForm shows the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "login", &Page{Title: "Login"})
}

// RegisterForm shows the registration page.
func (h *Handlers) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "register", &Page{Title: "Register"})
}

// Login checks the submitted credentials and starts a session.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.flash(w, middleware.FlashDanger, "Login failed")
		h.redirect(w, r, "/login")
		return
	}

	user, err := h.users.ValidateUser(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if errors.Is(err, store.ErrInvalidCredentials) {
		h.flash(w, middleware.FlashDanger, "Invalid credentials")
		h.redirect(w, r, "/login")
		return
	}
	if err != nil {
		h.logger.Error("login failed", "err", err)
		h.flash(w, middleware.FlashDanger, "Login failed")
		h.redirect(w, r, "/login")
		return
	}

	if err := h.sessions.Login(w, user.Public()); err != nil {
		h.logger.Error("failed to start session", "user", user.ID, "err", err)
		h.flash(w, middleware.FlashDanger, "Login failed")
		h.redirect(w, r, "/login")
		return
	}
	h.redirect(w, r, "/dashboard")
}

// Register creates an account and signs it in.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.flash(w, middleware.FlashDanger, "Registration failed")
		h.redirect(w, r, "/register")
		return
	}
	var req models.LoginRequest
	req.Username = r.PostFormValue("username")
	req.Password = r.PostFormValue("password")
	req.Confirm = r.PostFormValue("confirm")

	if strings.TrimSpace(req.Username) == "" || req.Password == "" || req.Password != req.Confirm {
		h.flash(w, middleware.FlashDanger, "Password mismatch or missing fields")
		h.redirect(w, r, "/register")
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, store.ErrDuplicateUsername):
		h.flash(w, middleware.FlashDanger, "Username already exists")
		h.redirect(w, r, "/register")
		return
	case store.IsValidation(err):
		h.flash(w, middleware.FlashDanger, validationMessage(err))
		h.redirect(w, r, "/register")
		return
	case err != nil:
		h.logger.Error("registration failed", "err", err)
		h.flash(w, middleware.FlashDanger, "Registration failed")
		h.redirect(w, r, "/register")
		return
	}

	h.logger.Info("user registered", "user", user.ID)
	if err := h.sessions.Login(w, user.Public()); err != nil {
		h.logger.Error("failed to start session", "user", user.ID, "err", err)
		h.redirect(w, r, "/login")
		return
	}
	h.redirect(w, r, "/dashboard")
}

// Logout ends the browser session.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(w)
	h.redirect(w, r, "/")
}

// APILogin handles user authentication and returns a JWT.
func (h *Handlers) APILogin(w http.ResponseWriter, r *http.Request) {
	var loginRequest models.LoginRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&loginRequest); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	user, err := h.users.ValidateUser(r.Context(), loginRequest.Username, loginRequest.Password)
	if errors.Is(err, store.ErrInvalidCredentials) {
		respondWithError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		h.logger.Error("api login failed", "err", err)
		respondWithError(w, http.StatusInternalServerError, "login failed")
		return
	}

	token, err := h.sessions.Issue(user.Public())
	if err != nil {
		h.logger.Error("error signing token", "err", err)
		respondWithError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": user.Public()})
}

// validationMessage turns a store validation error into a notice for the user.
func validationMessage(err error) string {
	var v *store.ValidationError
	if !errors.As(err, &v) {
		return "Invalid input."
	}
	switch v.Field {
	case "title":
		return "Title is required."
	case "dueDate":
		return "Due date is not a valid date."
	case "username":
		return "Username is required."
	case "password":
		return "Password " + v.Reason + "."
	default:
		return "Invalid " + v.Field + "."
	}
}
