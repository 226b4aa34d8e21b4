package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-hq/inkwell/internal/pkg/httputil"
	"github.com/inkwell-hq/inkwell/internal/sequence"
)

func (s *Server) registerSequenceRoutes(r chi.Router) {
	r.Get("/sequences", s.handleListSequences)
	r.Post("/sequences", s.handleCreateSequence)
	r.Get("/sequences/{id}", s.handleGetSequence)
	r.Put("/sequences/{id}", s.handleUpdateSequence)
	r.Delete("/sequences/{id}", s.handleDeleteSequence)
	r.Post("/sequences/{id}/steps", s.handleCreateStep)
	r.Post("/sequences/{id}/reorder", s.handleReorderSteps)
	r.Put("/steps/{id}", s.handleUpdateStep)
	r.Delete("/steps/{id}", s.handleDeleteStep)
}

type sequenceRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	TriggerEvent string `json:"trigger_event"`
	Status       string `json:"status"`
}

func (s *Server) handleListSequences(w http.ResponseWriter, r *http.Request) {
	sequences, err := s.sequences.ListSequences(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, sequences)
}

func (s *Server) handleCreateSequence(w http.ResponseWriter, r *http.Request) {
	var req sequenceRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}

	seq := &sequence.Sequence{
		Name:         req.Name,
		Description:  req.Description,
		TriggerEvent: req.TriggerEvent,
		Status:       req.Status,
	}
	if seq.TriggerEvent == "" {
		seq.TriggerEvent = "subscriber_confirmed"
	}
	if seq.Status == "" {
		seq.Status = sequence.StatusDraft
	}
	if err := s.sequences.CreateSequence(r.Context(), seq); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, seq)
}

func (s *Server) handleGetSequence(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	seq, err := s.sequences.GetSequence(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if seq == nil {
		httputil.NotFound(w, "sequence not found")
		return
	}
	httputil.OK(w, seq)
}

func (s *Server) handleUpdateSequence(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req sequenceRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	seq, err := s.sequences.GetSequence(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if seq == nil {
		httputil.NotFound(w, "sequence not found")
		return
	}

	if req.Name != "" {
		seq.Name = req.Name
	}
	seq.Description = req.Description
	if req.TriggerEvent != "" {
		seq.TriggerEvent = req.TriggerEvent
	}
	if req.Status != "" {
		seq.Status = req.Status
	}
	if err := s.sequences.UpdateSequence(r.Context(), seq); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, seq)
}

func (s *Server) handleDeleteSequence(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	deleted, err := s.sequences.DeleteSequence(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if !deleted {
		httputil.NotFound(w, "sequence not found")
		return
	}
	httputil.OK(w, map[string]string{"message": "sequence deleted"})
}

type stepRequest struct {
	Subject     string `json:"subject"`
	HTMLContent string `json:"html_content"`
	DelayDays   int    `json:"delay_days"`
	DelayTime   string `json:"delay_time"`
}

func (req *stepRequest) validate(w http.ResponseWriter) bool {
	if req.Subject == "" {
		httputil.BadRequest(w, "subject is required")
		return false
	}
	if req.DelayDays < 0 {
		httputil.BadRequest(w, "delay_days must not be negative")
		return false
	}
	if !sequence.ValidDelayTime(req.DelayTime) {
		httputil.BadRequest(w, "delay_time must be HH:MM in 24-hour form")
		return false
	}
	return true
}

func (s *Server) handleCreateStep(w http.ResponseWriter, r *http.Request) {
	seqID, ok := urlID(w, r)
	if !ok {
		return
	}
	var req stepRequest
	if !httputil.Decode(w, r, &req) || !req.validate(w) {
		return
	}

	seq, err := s.sequences.GetSequence(r.Context(), seqID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if seq == nil {
		httputil.NotFound(w, "sequence not found")
		return
	}

	step := &sequence.Step{
		SequenceID:  seqID,
		Subject:     req.Subject,
		HTMLContent: req.HTMLContent,
		DelayDays:   req.DelayDays,
		DelayTime:   req.DelayTime,
	}
	if err := s.sequences.CreateStep(r.Context(), step); err != nil {
		httputil.InternalError(w, err)
		return
	}
	// Positions are derived from delays, so every mutation reorders.
	steps, err := s.sequences.ResequenceSteps(r.Context(), seqID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, steps)
}

func (s *Server) handleUpdateStep(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req stepRequest
	if !httputil.Decode(w, r, &req) || !req.validate(w) {
		return
	}

	step, err := s.sequences.GetStep(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if step == nil {
		httputil.NotFound(w, "step not found")
		return
	}

	step.Subject = req.Subject
	step.HTMLContent = req.HTMLContent
	step.DelayDays = req.DelayDays
	step.DelayTime = req.DelayTime
	if err := s.sequences.UpdateStep(r.Context(), step); err != nil {
		httputil.InternalError(w, err)
		return
	}
	steps, err := s.sequences.ResequenceSteps(r.Context(), step.SequenceID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, steps)
}

func (s *Server) handleDeleteStep(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}

	step, err := s.sequences.GetStep(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if step == nil {
		httputil.NotFound(w, "step not found")
		return
	}

	if _, err := s.sequences.DeleteStep(r.Context(), id); err != nil {
		httputil.InternalError(w, err)
		return
	}
	steps, err := s.sequences.ResequenceSteps(r.Context(), step.SequenceID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, steps)
}

func (s *Server) handleReorderSteps(w http.ResponseWriter, r *http.Request) {
	seqID, ok := urlID(w, r)
	if !ok {
		return
	}
	seq, err := s.sequences.GetSequence(r.Context(), seqID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if seq == nil {
		httputil.NotFound(w, "sequence not found")
		return
	}
	steps, err := s.sequences.ResequenceSteps(r.Context(), seqID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, steps)
}
