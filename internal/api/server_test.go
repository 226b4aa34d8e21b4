package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-hq/inkwell/internal/campaign"
	"github.com/inkwell-hq/inkwell/internal/config"
	"github.com/inkwell-hq/inkwell/internal/mailer"
	"github.com/inkwell-hq/inkwell/internal/newsletter"
	"github.com/inkwell-hq/inkwell/internal/ratelimit"
	"github.com/inkwell-hq/inkwell/internal/sequence"
)

type sentEmail struct {
	To      string
	Subject string
	HTML    string
}

type recordingSender struct {
	sent []sentEmail
}

func (r *recordingSender) Send(ctx context.Context, to, subject, html string) error {
	r.sent = append(r.sent, sentEmail{To: to, Subject: subject, HTML: html})
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:    8080,
			BaseURL: "http://api.test",
			SiteURL: "http://site.test",
		},
	}
}

func newTestServer(t *testing.T, deps Deps) (*Server, sqlmock.Sqlmock, *recordingSender) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sender := &recordingSender{}
	if deps.Sender == nil {
		deps.Sender = sender
	}
	return NewServer(testConfig(), db, deps), mock, sender
}

func subscriberRow(id uuid.UUID, email, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "email", "first_name", "status", "confirm_token", "unsubscribe_token",
		"referral_code", "referred_by", "referral_count", "source", "confirmed_at",
		"unsubscribed_at", "created_at", "updated_at",
	}).AddRow(id, email, "Ada", status, "ctok", "utok", nil, nil, 0, "", nil, nil, now, now)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSubscribeRejectsInvalidEmail(t *testing.T) {
	srv, mock, _ := newTestServer(t, Deps{})

	rec := postJSON(t, srv.Router(), "/api/newsletter/subscribe", map[string]string{"email": "not-an-address"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscribeCreatesPendingAndSendsConfirmation(t *testing.T) {
	srv, mock, sender := newTestServer(t, Deps{})

	mock.ExpectQuery(`SELECT .+ FROM subscribers WHERE email`).
		WithArgs("ada@example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO subscribers`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := postJSON(t, srv.Router(), "/api/newsletter/subscribe", map[string]string{
		"email":      "ada@example.com",
		"first_name": "Ada",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ada@example.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].HTML, "http://api.test/api/newsletter/confirm/")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscribeActiveIsIdempotent(t *testing.T) {
	srv, mock, sender := newTestServer(t, Deps{})

	mock.ExpectQuery(`SELECT .+ FROM subscribers WHERE email`).
		WithArgs("ada@example.com").
		WillReturnRows(subscriberRow(uuid.New(), "ada@example.com", newsletter.SubscriberActive))

	rec := postJSON(t, srv.Router(), "/api/newsletter/subscribe", map[string]string{"email": "ada@example.com"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, sender.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscribePendingResendsConfirmation(t *testing.T) {
	srv, mock, sender := newTestServer(t, Deps{})

	id := uuid.New()
	mock.ExpectQuery(`SELECT .+ FROM subscribers WHERE email`).
		WithArgs("ada@example.com").
		WillReturnRows(subscriberRow(id, "ada@example.com", newsletter.SubscriberPending))
	mock.ExpectExec(`UPDATE subscribers SET confirm_token`).
		WithArgs(sqlmock.AnyArg(), id, newsletter.SubscriberPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := postJSON(t, srv.Router(), "/api/newsletter/subscribe", map[string]string{"email": "ada@example.com"})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sender.sent, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscribeRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := ratelimit.New(client, 1, time.Minute)

	srv, mock, _ := newTestServer(t, Deps{Limiter: limiter})

	mock.ExpectQuery(`SELECT .+ FROM subscribers WHERE email`).
		WithArgs("ada@example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO subscribers`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	router := srv.Router()
	body := map[string]string{"email": "ada@example.com"}

	rec := postJSON(t, router, "/api/newsletter/subscribe", body)
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Same window, budget spent.
	rec = postJSON(t, router, "/api/newsletter/subscribe", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmUnknownTokenRedirectsInvalid(t *testing.T) {
	srv, mock, _ := newTestServer(t, Deps{})

	mock.ExpectQuery(`SELECT .+ FROM subscribers WHERE confirm_token`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/api/newsletter/confirm/nope", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://site.test/confirm?status=invalid", rec.Header().Get("Location"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmAlreadyActiveIsIdempotent(t *testing.T) {
	srv, mock, _ := newTestServer(t, Deps{})

	mock.ExpectQuery(`SELECT .+ FROM subscribers WHERE confirm_token`).
		WithArgs("ctok").
		WillReturnRows(subscriberRow(uuid.New(), "ada@example.com", newsletter.SubscriberActive))

	req := httptest.NewRequest(http.MethodGet, "/api/newsletter/confirm/ctok", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://site.test/confirm?status=already-confirmed", rec.Header().Get("Location"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmActivatesAndAssignsCode(t *testing.T) {
	srv, mock, _ := newTestServer(t, Deps{})

	id := uuid.New()
	mock.ExpectQuery(`SELECT .+ FROM subscribers WHERE confirm_token`).
		WithArgs("ctok").
		WillReturnRows(subscriberRow(id, "ada@example.com", newsletter.SubscriberPending))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM subscribers WHERE referral_code`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`UPDATE subscribers SET status`).
		WithArgs(newsletter.SubscriberActive, sqlmock.AnyArg(), id, newsletter.SubscriberPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Side effects: default list assignment, no lists configured.
	mock.ExpectQuery(`FROM contact_lists WHERE status = 'active' AND is_default`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "is_default", "status", "subscriber_count",
			"created_at", "updated_at",
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/newsletter/confirm/ctok", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "http://site.test/confirm?status=confirmed&code=")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMilestoneDuplicateThreshold(t *testing.T) {
	srv, mock, _ := newTestServer(t, Deps{})

	mock.ExpectExec(`INSERT INTO referral_milestones`).
		WillReturnError(&pq.Error{Code: "23505"})

	rec := postJSON(t, srv.Router(), "/api/admin/milestones", map[string]any{
		"threshold": 5,
		"name":      "Bronze Badge",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMilestoneRejectsBadThreshold(t *testing.T) {
	srv, mock, _ := newTestServer(t, Deps{})

	rec := postJSON(t, srv.Router(), "/api/admin/milestones", map[string]any{
		"threshold": 0,
		"name":      "Nothing Yet",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralDashboardUnknownCode(t *testing.T) {
	srv, mock, _ := newTestServer(t, Deps{})

	mock.ExpectQuery(`SELECT .+ FROM subscribers WHERE referral_code`).
		WithArgs("NOPE2345").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/api/referral/dashboard/NOPE2345", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralDashboardServedFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := ratelimit.NewCache(client, time.Minute)

	srv, mock, _ := newTestServer(t, Deps{Cache: cache})

	cached := []byte(`{"success":true,"data":{"referral_code":"ABCDE234","referral_count":7}}`)
	cache.Set(context.Background(), "ABCDE234", cached)

	req := httptest.NewRequest(http.MethodGet, "/api/referral/dashboard/ABCDE234", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cached, rec.Body.Bytes())
	// No database round trip on a cache hit.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnsubscribeUnknownToken(t *testing.T) {
	srv, mock, _ := newTestServer(t, Deps{})

	mock.ExpectQuery(`SELECT .+ FROM subscribers WHERE unsubscribe_token`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/api/newsletter/unsubscribe/nope", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://site.test/unsubscribe?status=invalid", rec.Header().Get("Location"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralLinkRedirectsToSite(t *testing.T) {
	srv, _, _ := newTestServer(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/r/ABCDE234", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://site.test/?ref=ABCDE234", rec.Header().Get("Location"))
}

func TestHealthReportsEngineStatus(t *testing.T) {
	engineDB, _, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { engineDB.Close() })

	runner := sequence.NewRunner(engineDB, mailer.LogSender{},
		mailer.NewTemplates("http://api.test"), time.Second)
	evaluator := campaign.NewEvaluator(engineDB, time.Minute, 4*time.Hour)

	srv, _, _ := newTestServer(t, Deps{Runner: runner, Evaluator: evaluator})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status  string `json:"status"`
		Engines map[string]struct {
			Healthy bool `json:"healthy"`
		} `json:"engines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	require.Contains(t, body.Engines, "sequence_runner")
	require.Contains(t, body.Engines, "ab_evaluator")
	assert.True(t, body.Engines["sequence_runner"].Healthy)
	assert.True(t, body.Engines["ab_evaluator"].Healthy)
	assert.NotContains(t, body.Engines, "rss_poller")
}

func TestPageSignupRejectedDoesNotCount(t *testing.T) {
	srv, mock, _ := newTestServer(t, Deps{})
	pageID := uuid.New()
	now := time.Now()

	// Page lookup succeeds, the invalid email is rejected, and no
	// signup_count update runs.
	mock.ExpectQuery(`FROM signup_pages WHERE slug = \$1`).
		WithArgs("launch", newsletter.StatusPublished).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "slug", "title", "description", "html_content", "hero_image_url",
			"list_id", "status", "view_count", "signup_count", "created_at", "updated_at",
		}).AddRow(pageID, "launch", "Launch", "", "", "", nil, newsletter.StatusPublished, 0, 0, now, now))

	rec := postJSON(t, srv.Router(), "/api/pages/launch/signup", map[string]string{"email": "not-an-address"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
