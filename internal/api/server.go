// Package api exposes the public signup/referral surface and the
// authenticated admin API.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/inkwell-hq/inkwell/internal/assets"
	"github.com/inkwell-hq/inkwell/internal/assist"
	"github.com/inkwell-hq/inkwell/internal/auth"
	"github.com/inkwell-hq/inkwell/internal/campaign"
	"github.com/inkwell-hq/inkwell/internal/captcha"
	"github.com/inkwell-hq/inkwell/internal/config"
	"github.com/inkwell-hq/inkwell/internal/contactsync"
	"github.com/inkwell-hq/inkwell/internal/mailer"
	"github.com/inkwell-hq/inkwell/internal/newsletter"
	"github.com/inkwell-hq/inkwell/internal/pkg/logger"
	"github.com/inkwell-hq/inkwell/internal/ratelimit"
	"github.com/inkwell-hq/inkwell/internal/referral"
	"github.com/inkwell-hq/inkwell/internal/sequence"
)

// Server wires stores, engines, and external clients into the HTTP API.
type Server struct {
	cfg *config.Config
	db  *sql.DB

	news      *newsletter.Store
	referrals *referral.Store
	refEngine *referral.Engine
	sequences *sequence.Store
	runner    *sequence.Runner
	campaigns *campaign.Store
	evaluator *campaign.Evaluator
	poller    *campaign.RSSPoller

	sender    mailer.Sender
	templates *mailer.Templates
	captcha   *captcha.Verifier
	sync      *contactsync.Client
	limiter   *ratelimit.Limiter
	cache     *ratelimit.Cache
	assist    *assist.Service
	assets    *assets.Service
	auth      *auth.Manager

	http *http.Server
}

// Deps carries the optional external clients. Nil fields disable the
// corresponding feature.
type Deps struct {
	Sender    mailer.Sender
	Templates *mailer.Templates
	Captcha   *captcha.Verifier
	Sync      *contactsync.Client
	Limiter   *ratelimit.Limiter
	Cache     *ratelimit.Cache
	Assist    *assist.Service
	Assets    *assets.Service
	Auth      *auth.Manager
	Runner    *sequence.Runner
	Evaluator *campaign.Evaluator
	Poller    *campaign.RSSPoller
}

// NewServer builds the server and its routes.
func NewServer(cfg *config.Config, db *sql.DB, deps Deps) *Server {
	if deps.Sender == nil {
		deps.Sender = mailer.LogSender{}
	}
	if deps.Templates == nil {
		// Emails link back to this server: confirm/unsubscribe links land
		// on their handlers, share links bounce through /r/{code}.
		deps.Templates = mailer.NewTemplates(cfg.Server.BaseURL)
	}

	refStore := referral.NewStore(db)
	notifier := referral.NewNotifier(refStore, deps.Sender, deps.Templates, cfg.Referral.AdminEmail)

	s := &Server{
		cfg:       cfg,
		db:        db,
		news:      newsletter.NewStore(db),
		referrals: refStore,
		refEngine: referral.NewEngine(refStore, notifier),
		sequences: sequence.NewStore(db),
		runner:    deps.Runner,
		campaigns: campaign.NewStore(db),
		evaluator: deps.Evaluator,
		poller:    deps.Poller,
		sender:    deps.Sender,
		templates: deps.Templates,
		captcha:   deps.Captcha,
		sync:      deps.Sync,
		limiter:   deps.Limiter,
		cache:     deps.Cache,
		assist:    deps.Assist,
		assets:    deps.Assets,
		auth:      deps.Auth,
	}

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router assembles the middleware stack and routes.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	if s.auth != nil {
		r.Get("/auth/login", s.auth.HandleLogin)
		r.Get("/auth/callback", s.auth.HandleCallback)
		r.Get("/auth/logout", s.auth.HandleLogout)
		r.Get("/auth/me", s.auth.HandleMe)
	}

	// Public surface: signup, confirmation, unsubscribe, referral
	// dashboards, published signup pages.
	r.Post("/api/newsletter/subscribe", s.handleSubscribe)
	r.Get("/api/newsletter/confirm/{token}", s.handleConfirm)
	r.Get("/api/newsletter/unsubscribe/{token}", s.handleUnsubscribe)
	r.Get("/api/referral/dashboard/{code}", s.handleReferralDashboard)
	r.Get("/r/{code}", s.handleReferralLink)
	r.Get("/api/pages/{slug}", s.handlePublicPage)
	r.Post("/api/pages/{slug}/signup", s.handlePageSignup)

	r.Route("/api/admin", func(r chi.Router) {
		if s.auth != nil {
			r.Use(s.auth.RequireAuth)
		}
		s.registerMilestoneRoutes(r)
		s.registerSubscriberRoutes(r)
		s.registerSequenceRoutes(r)
		s.registerCampaignRoutes(r)
		s.registerPageRoutes(r)
		s.registerBillingRoutes(r)
		s.registerAssistRoutes(r)
	})

	return r
}

type engineStatus struct {
	Healthy   bool       `json:"healthy"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := s.db.PingContext(r.Context()); err != nil {
		status = "degraded"
	}

	engines := map[string]engineStatus{}
	report := func(name string, healthy bool, last time.Time) {
		st := engineStatus{Healthy: healthy}
		if !last.IsZero() {
			st.LastRunAt = &last
		}
		if !healthy {
			status = "degraded"
		}
		engines[name] = st
	}
	if s.runner != nil {
		report("sequence_runner", s.runner.IsHealthy(), s.runner.LastRunAt())
	}
	if s.evaluator != nil {
		report("ab_evaluator", s.evaluator.IsHealthy(), s.evaluator.LastRunAt())
	}
	if s.poller != nil {
		report("rss_poller", s.poller.IsHealthy(), s.poller.LastRunAt())
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"time":    time.Now().Format(time.RFC3339),
		"engines": engines,
	})
}

// Start runs the HTTP server until it fails or Shutdown is called.
func (s *Server) Start() error {
	logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
