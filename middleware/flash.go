package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/abefas/todoboard/models"
)

// FlashCookie carries a one-shot notice across a redirect.
const FlashCookie = "todoboard_flash"

const flashTTL = 5 * time.Minute

const flashKey ContextKey = "flash"

// Flash kinds, named after the alert styles the views use.
const (
	FlashSuccess = "success"
	FlashWarning = "warning"
	FlashDanger  = "danger"
)

// FlashMessage is a notice shown once on the next rendered page.
type FlashMessage struct {
	Type    string
	Message string
}

// SetFlash stores a signed notice for the next request.
func (s *SessionManager) SetFlash(w http.ResponseWriter, kind, message string) {
	now := s.now()
	claims := &models.FlashClaims{
		Type:    kind,
		Message: message,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(flashTTL)),
		},
	}
	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		s.logger.Error("failed to sign flash", "err", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   int(flashTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Flash consumes the incoming notice: it is cleared from the browser and
// made available to this request through FlashFromContext.
func (s *SessionManager) Flash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(FlashCookie)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		s.expire(w, FlashCookie)

		claims := &models.FlashClaims{}
		if err := s.parse(c.Value, claims); err != nil {
			s.logger.Debug("dropping invalid flash", "err", err)
			next.ServeHTTP(w, r)
			return
		}
		msg := &FlashMessage{Type: claims.Type, Message: claims.Message}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), flashKey, msg)))
	})
}

// FlashFromContext returns the notice consumed by the Flash middleware.
func FlashFromContext(ctx context.Context) *FlashMessage {
	msg, _ := ctx.Value(flashKey).(*FlashMessage)
	return msg
}
