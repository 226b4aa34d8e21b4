package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-hq/inkwell/internal/newsletter"
	"github.com/inkwell-hq/inkwell/internal/pkg/httputil"
)

func (s *Server) registerBillingRoutes(r chi.Router) {
	r.Get("/plans", s.handleListPlans)
	r.Post("/plans", s.handleCreatePlan)
	r.Get("/plans/{id}", s.handleGetPlan)
	r.Put("/plans/{id}", s.handleUpdatePlan)
	r.Delete("/plans/{id}", s.handleDeletePlan)
	r.Get("/coupons", s.handleListCoupons)
	r.Post("/coupons", s.handleCreateCoupon)
	r.Put("/coupons/{id}", s.handleUpdateCoupon)
	r.Delete("/coupons/{id}", s.handleDeleteCoupon)
}

type planRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	PriceCents      int    `json:"price_cents"`
	BillingInterval string `json:"billing_interval"`
	Status          string `json:"status"`
}

func (req *planRequest) validate(w http.ResponseWriter) bool {
	if req.Name == "" {
		httputil.BadRequest(w, "name is required")
		return false
	}
	if req.PriceCents < 0 {
		httputil.BadRequest(w, "price_cents must not be negative")
		return false
	}
	switch req.BillingInterval {
	case "month", "year":
	default:
		httputil.BadRequest(w, "billing_interval must be \"month\" or \"year\"")
		return false
	}
	return true
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.news.GetPlans(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, plans)
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !httputil.Decode(w, r, &req) || !req.validate(w) {
		return
	}

	plan := &newsletter.Plan{
		Name:            req.Name,
		Description:     req.Description,
		PriceCents:      req.PriceCents,
		BillingInterval: req.BillingInterval,
		Status:          newsletter.StatusActive,
	}
	if err := s.news.CreatePlan(r.Context(), plan); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, plan)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	plan, err := s.news.GetPlan(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if plan == nil {
		httputil.NotFound(w, "plan not found")
		return
	}
	httputil.OK(w, plan)
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req planRequest
	if !httputil.Decode(w, r, &req) || !req.validate(w) {
		return
	}

	plan, err := s.news.GetPlan(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if plan == nil {
		httputil.NotFound(w, "plan not found")
		return
	}

	plan.Name = req.Name
	plan.Description = req.Description
	plan.PriceCents = req.PriceCents
	plan.BillingInterval = req.BillingInterval
	if req.Status != "" {
		plan.Status = req.Status
	}
	if err := s.news.UpdatePlan(r.Context(), plan); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, plan)
}

// handleDeletePlan retires a plan rather than removing it; billing rows
// may still reference it.
func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := s.news.DeletePlan(r.Context(), id); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"message": "plan retired"})
}

type couponRequest struct {
	Code           string     `json:"code"`
	DiscountType   string     `json:"discount_type"`
	DiscountValue  int        `json:"discount_value"`
	MaxRedemptions int        `json:"max_redemptions"`
	ExpiresAt      *time.Time `json:"expires_at"`
	Status         string     `json:"status"`
}

func (req *couponRequest) validate(w http.ResponseWriter) bool {
	if req.Code == "" {
		httputil.BadRequest(w, "code is required")
		return false
	}
	switch req.DiscountType {
	case newsletter.DiscountPercent:
		if req.DiscountValue < 1 || req.DiscountValue > 100 {
			httputil.BadRequest(w, "percent discounts must be between 1 and 100")
			return false
		}
	case newsletter.DiscountFixed:
		if req.DiscountValue <= 0 {
			httputil.BadRequest(w, "fixed discounts must be a positive cent amount")
			return false
		}
	default:
		httputil.BadRequest(w, "discount_type must be \"percent\" or \"fixed\"")
		return false
	}
	return true
}

func (s *Server) handleListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := s.news.GetCoupons(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, coupons)
}

func (s *Server) handleCreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if !httputil.Decode(w, r, &req) || !req.validate(w) {
		return
	}

	c := &newsletter.Coupon{
		Code:           strings.ToUpper(strings.TrimSpace(req.Code)),
		DiscountType:   req.DiscountType,
		DiscountValue:  req.DiscountValue,
		MaxRedemptions: req.MaxRedemptions,
		ExpiresAt:      req.ExpiresAt,
		Status:         newsletter.StatusActive,
	}
	if err := s.news.CreateCoupon(r.Context(), c); err != nil {
		if newsletter.IsUniqueViolation(err) {
			httputil.Conflict(w, "a coupon with that code already exists")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, c)
}

func (s *Server) handleUpdateCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req couponRequest
	if !httputil.Decode(w, r, &req) || !req.validate(w) {
		return
	}

	c, err := s.news.GetCoupon(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if c == nil {
		httputil.NotFound(w, "coupon not found")
		return
	}

	c.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	c.DiscountType = req.DiscountType
	c.DiscountValue = req.DiscountValue
	c.MaxRedemptions = req.MaxRedemptions
	c.ExpiresAt = req.ExpiresAt
	if req.Status != "" {
		c.Status = req.Status
	}
	if err := s.news.UpdateCoupon(r.Context(), c); err != nil {
		if newsletter.IsUniqueViolation(err) {
			httputil.Conflict(w, "a coupon with that code already exists")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (s *Server) handleDeleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := s.news.DeleteCoupon(r.Context(), id); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"message": "coupon deactivated"})
}
