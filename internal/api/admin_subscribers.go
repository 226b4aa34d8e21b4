package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-hq/inkwell/internal/newsletter"
	"github.com/inkwell-hq/inkwell/internal/pkg/httputil"
)

func (s *Server) registerSubscriberRoutes(r chi.Router) {
	r.Get("/subscribers", s.handleListSubscribers)
	r.Get("/subscribers/{id}", s.handleGetSubscriber)
	r.Get("/lists", s.handleGetLists)
	r.Post("/lists", s.handleCreateList)
	r.Put("/lists/{id}", s.handleUpdateList)
	r.Delete("/lists/{id}", s.handleDeleteList)
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (s *Server) handleListSubscribers(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := queryInt(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	offset := queryInt(r, "offset", 0)

	subs, total, err := s.news.ListSubscribers(r.Context(), status, limit, offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"subscribers": subs,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}

func (s *Server) handleGetSubscriber(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	sub, err := s.news.GetSubscriber(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if sub == nil {
		httputil.NotFound(w, "subscriber not found")
		return
	}
	httputil.OK(w, sub)
}

func (s *Server) handleGetLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.news.GetLists(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, lists)
}

type listRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsDefault   bool   `json:"is_default"`
	Status      string `json:"status"`
}

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}

	list := &newsletter.List{
		Name:        req.Name,
		Description: req.Description,
		IsDefault:   req.IsDefault,
		Status:      req.Status,
	}
	if list.Status == "" {
		list.Status = newsletter.StatusActive
	}
	if err := s.news.CreateList(r.Context(), list); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, list)
}

func (s *Server) handleUpdateList(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req listRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}

	list, err := s.news.GetList(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if list == nil {
		httputil.NotFound(w, "list not found")
		return
	}

	list.Name = req.Name
	list.Description = req.Description
	list.IsDefault = req.IsDefault
	if req.Status != "" {
		list.Status = req.Status
	}
	if err := s.news.UpdateList(r.Context(), list); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, list)
}

func (s *Server) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := s.news.DeleteList(r.Context(), id); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"message": "list deleted"})
}
