package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/inkwell-hq/inkwell/internal/contactsync"
	"github.com/inkwell-hq/inkwell/internal/mailer"
	"github.com/inkwell-hq/inkwell/internal/newsletter"
	"github.com/inkwell-hq/inkwell/internal/pkg/httputil"
	"github.com/inkwell-hq/inkwell/internal/pkg/logger"
	"github.com/inkwell-hq/inkwell/internal/referral"
)

type subscribeRequest struct {
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	ReferralCode string `json:"referral_code"`
	Source       string `json:"source"`
	CaptchaToken string `json:"captcha_token"`
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	s.subscribe(w, r, req, "", nil)
}

// subscribe runs the shared signup flow for the bare endpoint and for
// hosted signup pages.
// subscribe runs the shared signup flow and reports whether the attempt
// was accepted, so page handlers only count signups that got through.
func (s *Server) subscribe(w http.ResponseWriter, r *http.Request, req subscribeRequest, sourceOverride string, listID *uuid.UUID) bool {
	ctx := r.Context()
	ip := clientIP(r)

	if !s.limiter.Allow(ctx, ip) {
		httputil.Fail(w, http.StatusTooManyRequests, "too many signup attempts, try again later")
		return false
	}

	if !newsletter.ValidateEmail(req.Email) {
		httputil.BadRequest(w, "a valid email address is required")
		return false
	}

	if s.cfg.Captcha.Enabled {
		ok, err := s.captcha.Verify(ctx, req.CaptchaToken, ip)
		if err != nil {
			httputil.InternalError(w, err)
			return false
		}
		if !ok {
			httputil.BadRequest(w, "captcha verification failed")
			return false
		}
	}

	existing, err := s.news.GetSubscriberByEmail(ctx, req.Email)
	if err != nil {
		httputil.InternalError(w, err)
		return false
	}
	if existing != nil {
		switch existing.Status {
		case newsletter.SubscriberActive:
			// Idempotent: an active subscriber signing up again is a success.
			httputil.OK(w, map[string]string{"message": "you are already subscribed"})
			return true
		case newsletter.SubscriberPending:
			token, err := s.news.RefreshConfirmToken(ctx, existing.ID)
			if err != nil {
				httputil.InternalError(w, err)
				return false
			}
			s.sendConfirmation(ctx, existing.Email, existing.FirstName, token)
			httputil.OK(w, map[string]string{"message": "confirmation email resent, check your inbox"})
			return true
		}
		// Unsubscribed addresses fall through and re-enter the double
		// opt-in flow as a fresh pending signup.
	}

	sub := &newsletter.Subscriber{
		Email:     req.Email,
		FirstName: req.FirstName,
		Source:    req.Source,
		IPAddress: ip,
	}
	if sourceOverride != "" {
		sub.Source = sourceOverride
	}

	// An invalid referral code never blocks a signup; the referral is
	// simply not credited.
	if req.ReferralCode != "" {
		referrer, err := s.news.GetSubscriberByReferralCode(ctx, req.ReferralCode)
		if err != nil {
			httputil.InternalError(w, err)
			return false
		}
		if referrer != nil && referrer.Status == newsletter.SubscriberActive {
			sub.ReferredBy = &referrer.ID
		} else {
			logger.Debug("unknown referral code on signup", "code", req.ReferralCode)
		}
	}

	if existing != nil {
		// Re-subscribe after an unsubscribe: flip the old row back to
		// pending with fresh tokens so the double opt-in runs again.
		if err := s.reopenSubscriber(ctx, existing, sub.ReferredBy); err != nil {
			httputil.InternalError(w, err)
			return false
		}
		s.sendConfirmation(ctx, existing.Email, existing.FirstName, existing.ConfirmToken)
		httputil.OK(w, map[string]string{"message": "welcome back, check your inbox to confirm"})
		return true
	}

	if err := s.news.CreateSubscriber(ctx, sub); err != nil {
		if newsletter.IsUniqueViolation(err) {
			// Raced with another signup for the same address.
			httputil.OK(w, map[string]string{"message": "confirmation email sent, check your inbox"})
			return true
		}
		httputil.InternalError(w, err)
		return false
	}

	if listID != nil {
		if err := s.news.AddToList(ctx, *listID, sub.ID); err != nil {
			logger.Error("adding signup to page list failed", "error", err)
		}
	}

	s.sendConfirmation(ctx, sub.Email, sub.FirstName, sub.ConfirmToken)
	httputil.Created(w, map[string]string{"message": "confirmation email sent, check your inbox"})
	return true
}

func (s *Server) sendConfirmation(ctx context.Context, email, firstName, token string) {
	subject, html, err := s.templates.ConfirmationEmail(mailer.ConfirmationData{
		FirstName:    firstName,
		ConfirmToken: token,
	})
	if err == nil {
		err = s.sender.Send(ctx, email, subject, html)
	}
	if err != nil {
		// The subscriber row exists; they can sign up again to resend.
		logger.Error("sending confirmation failed", "subscriber", email, "error", err)
	}
}

// reopenSubscriber flips an unsubscribed row back to pending with fresh
// tokens so the double opt-in runs again.
func (s *Server) reopenSubscriber(ctx context.Context, sub *newsletter.Subscriber, referredBy *uuid.UUID) error {
	sub.ConfirmToken = newsletter.NewToken()
	sub.UnsubscribeToken = newsletter.NewToken()
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscribers SET status = 'pending', confirm_token = $1, unsubscribe_token = $2,
		referred_by = COALESCE(referred_by, $3), unsubscribed_at = NULL, updated_at = NOW()
		WHERE id = $4`,
		sub.ConfirmToken, sub.UnsubscribeToken, referredBy, sub.ID)
	return err
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")

	sub, err := s.news.GetSubscriberByConfirmToken(ctx, token)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if sub == nil {
		s.redirectSite(w, r, "/confirm?status=invalid")
		return
	}
	if sub.Status == newsletter.SubscriberActive {
		s.redirectSite(w, r, "/confirm?status=already-confirmed")
		return
	}

	code, err := referral.UniqueCode(ctx, s.referrals)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	activated, err := s.news.ActivateSubscriber(ctx, sub.ID, code)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if !activated {
		// A concurrent confirmation won; same outcome for the subscriber.
		s.redirectSite(w, r, "/confirm?status=already-confirmed")
		return
	}

	logger.Info("subscriber confirmed", "subscriber", sub.Email)

	// Everything past this point is best-effort: the confirmation itself
	// has succeeded and stays succeeded.
	s.runConfirmationSideEffects(ctx, sub, code)

	s.redirectSite(w, r, "/confirm?status=confirmed&code="+code)
}

func (s *Server) runConfirmationSideEffects(ctx context.Context, sub *newsletter.Subscriber, code string) {
	defaults, err := s.news.DefaultLists(ctx)
	if err != nil {
		logger.Error("loading default lists failed", "error", err)
	}
	var listNames []string
	for _, list := range defaults {
		if err := s.news.AddToList(ctx, list.ID, sub.ID); err != nil {
			logger.Error("default list assignment failed", "list", list.Name, "error", err)
			continue
		}
		listNames = append(listNames, list.Name)
	}

	if s.runner != nil {
		s.runner.EnrollOnConfirmation(ctx, sub.ID)
	}

	if err := s.sync.Upsert(ctx, contactsync.Contact{
		Email:        sub.Email,
		FirstName:    sub.FirstName,
		Lists:        listNames,
		ReferralCode: code,
	}); err != nil {
		logger.Error("contact sync failed", "subscriber", sub.Email, "error", err)
	}

	if sub.ReferredBy != nil {
		s.creditReferrer(ctx, *sub.ReferredBy)
	}
}

func (s *Server) creditReferrer(ctx context.Context, referrerID uuid.UUID) {
	referrer, err := s.news.GetSubscriber(ctx, referrerID)
	if err != nil || referrer == nil {
		logger.Error("loading referrer failed", "referrer", referrerID, "error", err)
		return
	}

	if _, _, err := s.refEngine.OnReferralConfirmed(ctx, referral.Referrer{
		ID:        referrer.ID,
		Email:     referrer.Email,
		FirstName: referrer.FirstName,
	}); err != nil {
		logger.Error("crediting referral failed", "referrer", referrer.Email, "error", err)
		return
	}

	if referrer.ReferralCode != nil {
		s.cache.Invalidate(ctx, *referrer.ReferralCode)
	}
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")

	sub, err := s.news.UnsubscribeByToken(ctx, token)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if sub == nil {
		s.redirectSite(w, r, "/unsubscribe?status=invalid")
		return
	}

	if err := s.sequences.CancelEnrollmentsForSubscriber(ctx, sub.ID); err != nil {
		logger.Error("cancelling enrollments failed", "subscriber", sub.Email, "error", err)
	}
	if err := s.sync.Remove(ctx, sub.Email); err != nil {
		logger.Error("contact removal failed", "subscriber", sub.Email, "error", err)
	}

	logger.Info("subscriber unsubscribed", "subscriber", sub.Email)
	s.redirectSite(w, r, "/unsubscribe?status=done")
}

func (s *Server) redirectSite(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, s.cfg.Server.SiteURL+path, http.StatusFound)
}

// handleReferralLink bounces a shared referral link to the signup site
// with the code attached, so the signup form can credit the referrer.
func (s *Server) handleReferralLink(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	http.Redirect(w, r, s.cfg.Server.SiteURL+"/?ref="+code, http.StatusFound)
}

func (s *Server) handleReferralDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	if cached := s.cache.Get(ctx, code); cached != nil {
		w.Header().Set("Content-Type", "application/json")
		w.Write(cached)
		return
	}

	sub, err := s.news.GetSubscriberByReferralCode(ctx, code)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if sub == nil || sub.Status != newsletter.SubscriberActive {
		httputil.NotFound(w, "unknown referral code")
		return
	}

	dashboard, err := s.refEngine.BuildDashboard(ctx, sub.ID, code, sub.ReferralCount)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	payload, err := json.Marshal(httputil.Envelope{Success: true, Data: dashboard})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	s.cache.Set(ctx, code, payload)

	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

func (s *Server) handlePublicPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")

	page, err := s.news.GetSignupPageBySlug(ctx, slug)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if page == nil {
		httputil.NotFound(w, "page not found")
		return
	}

	if err := s.news.IncrementPageCounter(ctx, page.ID, "view"); err != nil {
		logger.Debug("page view counter failed", "error", err)
	}
	httputil.OK(w, page)
}

func (s *Server) handlePageSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")

	page, err := s.news.GetSignupPageBySlug(ctx, slug)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if page == nil {
		httputil.NotFound(w, "page not found")
		return
	}

	var req subscribeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	// Count only accepted signups; rejected or throttled attempts must
	// not inflate the page's conversion numbers.
	if s.subscribe(w, r, req, "page:"+slug, page.ListID) {
		if err := s.news.IncrementPageCounter(ctx, page.ID, "signup"); err != nil {
			logger.Debug("page signup counter failed", "error", err)
		}
	}
}
