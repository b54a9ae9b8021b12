package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abefas/todoboard/logging"
	"github.com/abefas/todoboard/models"
	"github.com/abefas/todoboard/store"
)

var alice = models.PublicUser{ID: "u-1", Username: "alice"}

func newTestSessions() *SessionManager {
	return NewSessionManager("test-secret", time.Hour, false, logging.Discard())
}

func TestSessionManager_RoundTrip(t *testing.T) {
	s := newTestSessions()

	token, err := s.Issue(alice)
	require.NoError(t, err)

	claims, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestSessionManager_RejectsTamperedAndExpired(t *testing.T) {
	s := newTestSessions()
	token, err := s.Issue(alice)
	require.NoError(t, err)

	other := NewSessionManager("other-secret", time.Hour, false, logging.Discard())
	_, err = other.Parse(token)
	assert.Error(t, err, "wrong key")

	_, err = s.Parse(token + "x")
	assert.Error(t, err, "tampered signature")

	s.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
	_, err = s.Parse(token)
	assert.Error(t, err, "expired")
}

func TestSessionManager_FlashIsNotASession(t *testing.T) {
	s := newTestSessions()
	rec := httptest.NewRecorder()
	s.SetFlash(rec, FlashSuccess, "hi")

	cookie := rec.Result().Cookies()[0]
	_, err := s.Parse(cookie.Value)
	assert.Error(t, err)
}

func TestRequireAuth_RedirectsWithFlash(t *testing.T) {
	s := newTestSessions()
	h := s.LoadSession(s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	var flash *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == FlashCookie {
			flash = c
		}
	}
	require.NotNil(t, flash)

	// The next page shows the notice once.
	var got *FlashMessage
	next := s.Flash(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FlashFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(flash)
	rec = httptest.NewRecorder()
	next.ServeHTTP(rec, req)

	require.NotNil(t, got)
	assert.Equal(t, FlashWarning, got.Type)
	assert.Equal(t, "Please login first.", got.Message)

	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, FlashCookie, cleared[0].Name)
	assert.Negative(t, cleared[0].MaxAge)
}

func TestLoadSession_CookieAndBearer(t *testing.T) {
	s := newTestSessions()
	token, err := s.Issue(alice)
	require.NoError(t, err)

	var seen string
	h := s.LoadSession(s.RequireAPIAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", seen)

	seen = ""
	req = httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", seen)

	req = httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Token "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"authentication required"}`, rec.Body.String())
}

type stubFinder struct {
	err error
}

func (f stubFinder) FindByID(_ context.Context, id string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: id}, nil
}

func TestLoadSession_ChecksUserStillExists(t *testing.T) {
	token, err := newTestSessions().Issue(alice)
	require.NoError(t, err)

	tests := []struct {
		name       string
		finder     stubFinder
		wantCode   int
		wantUser   string
		wantExpire bool
	}{
		{"existing user", stubFinder{}, http.StatusOK, "u-1", false},
		{"deleted user", stubFinder{err: store.ErrNotFound}, http.StatusOK, "", true},
		{"storage failure", stubFinder{err: errors.New("disk on fire")}, http.StatusInternalServerError, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSessions()
			s.SetUsers(tt.finder)

			seen := ""
			h := s.LoadSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = UserID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantUser, seen)

			expired := false
			for _, c := range rec.Result().Cookies() {
				if c.Name == SessionCookie && c.MaxAge < 0 {
					expired = true
				}
			}
			assert.Equal(t, tt.wantExpire, expired)
		})
	}
}

func TestLogin_SetsHttpOnlyCookie(t *testing.T) {
	s := newTestSessions()
	rec := httptest.NewRecorder()
	require.NoError(t, s.Login(rec, alice))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	rec = httptest.NewRecorder()
	s.Logout(rec)
	assert.Negative(t, rec.Result().Cookies()[0].MaxAge)
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}
