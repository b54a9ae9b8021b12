package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"

	"github.com/abefas/todoboard/models"
	"github.com/abefas/todoboard/store"
)

// SessionCookie holds the signed session token.
const SessionCookie = "todoboard_session"

// ContextKey is a custom type to avoid context key collisions.
type ContextKey string

const (
	// UserIDKey is the key we'll use to store the user's ID in the request context.
	UserIDKey ContextKey = "userId"
	claimsKey ContextKey = "claims"
)

// ErrNoSession is returned when the request carries no session token.
var ErrNoSession = errors.New("no session")

// UserFinder looks up the account a session belongs to.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// SessionManager issues and validates the HS256 session tokens used by both
// the cookie-based pages and the bearer-token API.
type SessionManager struct {
	key    []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
	users  UserFinder
	logger *log.Logger
}

// NewSessionManager creates a SessionManager signing with secret.
func NewSessionManager(secret string, ttl time.Duration, secure bool, logger *log.Logger) *SessionManager {
	return &SessionManager{
		key:    []byte(secret),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
		logger: logger.WithPrefix("auth"),
	}
}

// SetClock replaces the time source used for issuing and validating tokens.
func (s *SessionManager) SetClock(now func() time.Time) {
	s.now = now
}

// SetUsers makes LoadSession drop sessions whose user no longer exists.
func (s *SessionManager) SetUsers(users UserFinder) {
	s.users = users
}

// Issue signs a session token for the user.
func (s *SessionManager) Issue(user models.PublicUser) (string, error) {
	now := s.now()
	claims := &models.Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

// Parse validates a session token and returns its claims.
func (s *SessionManager) Parse(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, errors.New("session token has no user")
	}
	return claims, nil
}

func (s *SessionManager) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("token is not valid")
	}
	return nil
}

// Login issues a session for the user and stores it in the session cookie.
func (s *SessionManager) Login(w http.ResponseWriter, user models.PublicUser) error {
	token, err := s.Issue(user)
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(s.ttl),
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Logout expires the session cookie. Tokens are stateless, so a copied
// bearer token stays valid until it expires.
func (s *SessionManager) Logout(w http.ResponseWriter) {
	s.expire(w, SessionCookie)
}

func (s *SessionManager) expire(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// tokenFromRequest reads the bearer token, falling back to the session cookie.
func tokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		// The token is in the format "Bearer <token>".
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", errors.New("invalid Authorization header format")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", ErrNoSession
}

// Authenticate returns the request's session claims.
func (s *SessionManager) Authenticate(r *http.Request) (*models.Claims, error) {
	tokenString, err := tokenFromRequest(r)
	if err != nil {
		return nil, err
	}
	return s.Parse(tokenString)
}

// LoadSession adds the session to the request context when a valid one is
// present. Requests without a session pass through unchanged, and so do
// sessions of deleted users, whose cookie is expired on the way.
func (s *SessionManager) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.Authenticate(r)
		if err != nil {
			if !errors.Is(err, ErrNoSession) {
				s.logger.Debug("ignoring invalid session", "path", r.URL.Path, "err", err)
			}
			next.ServeHTTP(w, r)
			return
		}
		if s.users != nil {
			_, err := s.users.FindByID(r.Context(), claims.UserID)
			if errors.Is(err, store.ErrNotFound) {
				s.logger.Info("dropping session of deleted user", "user", claims.UserID)
				s.expire(w, SessionCookie)
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				s.logger.Error("failed to look up session user", "user", claims.UserID, "err", err)
				http.Error(w, "Failed to load session", http.StatusInternalServerError)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireAuth guards HTML pages: visitors without a session are sent to the
// login page with a notice.
func (s *SessionManager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			s.SetFlash(w, FlashWarning, "Please login first.")
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAPIAuth guards JSON endpoints with a 401 response.
func (s *SessionManager) RequireAPIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithClaims stores the session claims in ctx.
func WithClaims(ctx context.Context, claims *models.Claims) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	return context.WithValue(ctx, UserIDKey, claims.UserID)
}

// UserFromContext returns the session claims stored by LoadSession.
func UserFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*models.Claims)
	return claims, ok && claims != nil
}

// UserID returns the signed-in user's ID, or "" when there is none.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}
