package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/inkwell-hq/inkwell/internal/newsletter"
	"github.com/inkwell-hq/inkwell/internal/pkg/httputil"
	"github.com/inkwell-hq/inkwell/internal/referral"
)

// urlID parses the {id} route parameter. On failure it writes a 400 and
// returns false.
func urlID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) registerMilestoneRoutes(r chi.Router) {
	r.Get("/milestones", s.handleListMilestones)
	r.Post("/milestones", s.handleCreateMilestone)
	r.Get("/milestones/{id}", s.handleGetMilestone)
	r.Put("/milestones/{id}", s.handleUpdateMilestone)
	r.Delete("/milestones/{id}", s.handleDeleteMilestone)
	r.Get("/referral-stats", s.handleReferralStats)
}

type milestoneRequest struct {
	Threshold   int    `json:"threshold"`
	Name        string `json:"name"`
	Description string `json:"description"`
	RewardType  string `json:"reward_type"`
	RewardValue string `json:"reward_value"`
}

func (req *milestoneRequest) validate(w http.ResponseWriter) bool {
	if req.Threshold <= 0 {
		httputil.BadRequest(w, "threshold must be a positive referral count")
		return false
	}
	if req.Name == "" {
		httputil.BadRequest(w, "name is required")
		return false
	}
	if req.RewardType != "" && !referral.ValidRewardType(req.RewardType) {
		httputil.BadRequest(w, "unknown reward type: "+req.RewardType)
		return false
	}
	return true
}

func (s *Server) handleListMilestones(w http.ResponseWriter, r *http.Request) {
	milestones, err := s.referrals.GetMilestones(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, milestones)
}

func (s *Server) handleCreateMilestone(w http.ResponseWriter, r *http.Request) {
	var req milestoneRequest
	if !httputil.Decode(w, r, &req) || !req.validate(w) {
		return
	}

	m := &referral.Milestone{
		Threshold:   req.Threshold,
		Name:        req.Name,
		Description: req.Description,
		RewardType:  req.RewardType,
		RewardValue: req.RewardValue,
	}
	if err := s.referrals.CreateMilestone(r.Context(), m); err != nil {
		if newsletter.IsUniqueViolation(err) {
			httputil.Conflict(w, "a milestone with that threshold already exists")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, m)
}

func (s *Server) handleGetMilestone(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	m, err := s.referrals.GetMilestone(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if m == nil {
		httputil.NotFound(w, "milestone not found")
		return
	}
	httputil.OK(w, m)
}

func (s *Server) handleUpdateMilestone(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req milestoneRequest
	if !httputil.Decode(w, r, &req) || !req.validate(w) {
		return
	}

	m, err := s.referrals.GetMilestone(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if m == nil {
		httputil.NotFound(w, "milestone not found")
		return
	}

	m.Threshold = req.Threshold
	m.Name = req.Name
	m.Description = req.Description
	m.RewardType = req.RewardType
	m.RewardValue = req.RewardValue
	if err := s.referrals.UpdateMilestone(r.Context(), m); err != nil {
		if newsletter.IsUniqueViolation(err) {
			httputil.Conflict(w, "a milestone with that threshold already exists")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, m)
}

func (s *Server) handleDeleteMilestone(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	deleted, err := s.referrals.DeleteMilestone(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if !deleted {
		httputil.NotFound(w, "milestone not found")
		return
	}
	httputil.OK(w, map[string]string{"message": "milestone deleted"})
}

func (s *Server) handleReferralStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.referrals.GetStats(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, stats)
}
