package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/inkwell-hq/inkwell/internal/campaign"
	"github.com/inkwell-hq/inkwell/internal/pkg/httputil"
)

func (s *Server) registerCampaignRoutes(r chi.Router) {
	r.Get("/campaigns", s.handleListCampaigns)
	r.Post("/campaigns", s.handleCreateCampaign)
	r.Get("/campaigns/{id}", s.handleGetCampaign)
	r.Put("/campaigns/{id}", s.handleUpdateCampaign)
	r.Delete("/campaigns/{id}", s.handleDeleteCampaign)
	r.Get("/campaigns/{id}/ab-test", s.handleGetABTest)
	r.Post("/campaigns/{id}/ab-test", s.handleCreateABTest)
	r.Get("/rss-feeds", s.handleListRSSFeeds)
	r.Post("/rss-feeds", s.handleCreateRSSFeed)
	r.Delete("/rss-feeds/{id}", s.handleDeleteRSSFeed)
}

type campaignRequest struct {
	ListID      *uuid.UUID `json:"list_id"`
	Name        string     `json:"name"`
	Subject     string     `json:"subject"`
	FromName    string     `json:"from_name"`
	FromEmail   string     `json:"from_email"`
	HTMLContent string     `json:"html_content"`
	Status      string     `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := s.campaigns.ListCampaigns(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, campaigns)
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}

	c := &campaign.Campaign{
		ListID:      req.ListID,
		Name:        req.Name,
		Subject:     req.Subject,
		FromName:    req.FromName,
		FromEmail:   req.FromEmail,
		HTMLContent: req.HTMLContent,
		Status:      campaign.StatusDraft,
		ScheduledAt: req.ScheduledAt,
	}
	if req.ScheduledAt != nil {
		c.Status = campaign.StatusScheduled
	}
	if err := s.campaigns.CreateCampaign(r.Context(), c); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, c)
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	c, err := s.campaigns.GetCampaign(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if c == nil {
		httputil.NotFound(w, "campaign not found")
		return
	}
	httputil.OK(w, c)
}

func (s *Server) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req campaignRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	c, err := s.campaigns.GetCampaign(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if c == nil {
		httputil.NotFound(w, "campaign not found")
		return
	}
	if c.Status == campaign.StatusSending || c.Status == campaign.StatusSent {
		httputil.Conflict(w, "campaign has already been sent")
		return
	}

	if req.Name != "" {
		c.Name = req.Name
	}
	if req.Subject != "" {
		c.Subject = req.Subject
	}
	c.ListID = req.ListID
	c.FromName = req.FromName
	c.FromEmail = req.FromEmail
	c.HTMLContent = req.HTMLContent
	c.ScheduledAt = req.ScheduledAt
	if req.Status != "" {
		c.Status = req.Status
	}
	if err := s.campaigns.UpdateCampaign(r.Context(), c); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (s *Server) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	c, err := s.campaigns.GetCampaign(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if c == nil {
		httputil.NotFound(w, "campaign not found")
		return
	}
	if c.Status != campaign.StatusDraft {
		httputil.Conflict(w, "only draft campaigns can be deleted")
		return
	}
	if _, err := s.campaigns.DeleteCampaign(r.Context(), id); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"message": "campaign deleted"})
}

type abTestRequest struct {
	SubjectA string `json:"subject_a"`
	SubjectB string `json:"subject_b"`
}

func (s *Server) handleGetABTest(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	test, err := s.campaigns.GetABTestByCampaign(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if test == nil {
		httputil.NotFound(w, "campaign has no subject test")
		return
	}
	httputil.OK(w, test)
}

func (s *Server) handleCreateABTest(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req abTestRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.SubjectA == "" || req.SubjectB == "" {
		httputil.BadRequest(w, "both subject variants are required")
		return
	}
	if req.SubjectA == req.SubjectB {
		httputil.BadRequest(w, "subject variants must differ")
		return
	}

	c, err := s.campaigns.GetCampaign(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if c == nil {
		httputil.NotFound(w, "campaign not found")
		return
	}
	if c.Status == campaign.StatusSending || c.Status == campaign.StatusSent {
		httputil.Conflict(w, "campaign has already been sent")
		return
	}

	existing, err := s.campaigns.GetABTestByCampaign(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if existing != nil {
		httputil.Conflict(w, "campaign already has a subject test")
		return
	}

	// The test pool shrinks as the audience grows; small lists test on
	// half, large lists on a tenth.
	audience, err := s.news.CountActiveSubscribers(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	test := &campaign.ABTest{
		CampaignID: id,
		TestRatio:  campaign.TestRatio(audience),
		Status:     campaign.TestRunning,
		Variants: []*campaign.Variant{
			{Label: "A", Subject: req.SubjectA},
			{Label: "B", Subject: req.SubjectB},
		},
	}
	if err := s.campaigns.CreateABTest(r.Context(), test); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, test)
}

type rssFeedRequest struct {
	ListID       *uuid.UUID `json:"list_id"`
	Name         string     `json:"name"`
	FeedURL      string     `json:"feed_url"`
	PollInterval int        `json:"poll_interval_minutes"`
}

func (s *Server) handleListRSSFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := s.campaigns.ListRSSFeeds(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, feeds)
}

func (s *Server) handleCreateRSSFeed(w http.ResponseWriter, r *http.Request) {
	var req rssFeedRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.FeedURL == "" {
		httputil.BadRequest(w, "name and feed_url are required")
		return
	}

	f := &campaign.RSSFeed{
		ListID:       req.ListID,
		Name:         req.Name,
		FeedURL:      req.FeedURL,
		PollInterval: req.PollInterval,
		Status:       "active",
	}
	if f.PollInterval <= 0 {
		f.PollInterval = 60
	}
	if err := s.campaigns.CreateRSSFeed(r.Context(), f); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, f)
}

func (s *Server) handleDeleteRSSFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	deleted, err := s.campaigns.DeleteRSSFeed(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if !deleted {
		httputil.NotFound(w, "feed not found")
		return
	}
	httputil.OK(w, map[string]string{"message": "feed deleted"})
}
