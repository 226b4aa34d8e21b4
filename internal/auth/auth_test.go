package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-hq/inkwell/internal/config"
)

func testConfig(clientID string) *config.AuthConfig {
	return &config.AuthConfig{
		GoogleClientID:     clientID,
		GoogleClientSecret: clientID,
		CookieName:         "inkwell_session",
		CookieMaxAge:       3600,
	}
}

func TestRequireAuthDisabledPassesThrough(t *testing.T) {
	m := NewManager(testConfig(""), "http://localhost:8080")
	require.False(t, m.Enabled())

	called := false
	h := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/milestones", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuthRejectsWithoutSession(t *testing.T) {
	m := NewManager(testConfig("client"), "http://localhost:8080")
	require.True(t, m.Enabled())

	h := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/milestones", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionExpiry(t *testing.T) {
	m := NewManager(testConfig("client"), "http://localhost:8080")

	m.mu.Lock()
	m.sessions["sid"] = &Session{
		Email:     "admin@example.com",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	m.sessions["fresh"] = &Session{
		Email:     "admin@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	m.mu.Unlock()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "inkwell_session", Value: "sid"})
	assert.Nil(t, m.SessionFor(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "inkwell_session", Value: "fresh"})
	session := m.SessionFor(req)
	require.NotNil(t, session)
	assert.Equal(t, "admin@example.com", session.Email)
}
