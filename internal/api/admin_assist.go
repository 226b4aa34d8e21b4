package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-hq/inkwell/internal/pkg/httputil"
)

func (s *Server) registerAssistRoutes(r chi.Router) {
	r.Post("/assist/subjects", s.handleAssistSubjects)
	r.Post("/assist/body", s.handleAssistBody)
}

func (s *Server) assistEnabled(w http.ResponseWriter) bool {
	if s.assist == nil {
		httputil.Fail(w, http.StatusServiceUnavailable, "writing assistance is not configured")
		return false
	}
	return true
}

func (s *Server) handleAssistSubjects(w http.ResponseWriter, r *http.Request) {
	if !s.assistEnabled(w) {
		return
	}
	var req struct {
		Topic string `json:"topic"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Topic == "" {
		httputil.BadRequest(w, "topic is required")
		return
	}

	subjects, err := s.assist.SuggestSubjects(r.Context(), req.Topic)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"subjects": subjects})
}

func (s *Server) handleAssistBody(w http.ResponseWriter, r *http.Request) {
	if !s.assistEnabled(w) {
		return
	}
	var req struct {
		Draft string `json:"draft"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Draft == "" {
		httputil.BadRequest(w, "draft is required")
		return
	}

	improved, err := s.assist.ImproveBody(r.Context(), req.Draft)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"improved": improved})
}
