package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/inkwell-hq/inkwell/internal/newsletter"
	"github.com/inkwell-hq/inkwell/internal/pkg/httputil"
)

func (s *Server) registerPageRoutes(r chi.Router) {
	r.Get("/pages", s.handleListPages)
	r.Post("/pages", s.handleCreatePage)
	r.Get("/pages/{id}", s.handleGetPage)
	r.Put("/pages/{id}", s.handleUpdatePage)
	r.Delete("/pages/{id}", s.handleDeletePage)
	r.Post("/pages/{id}/assets", s.handleUploadAsset)
}

type pageRequest struct {
	Slug         string     `json:"slug"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	HTMLContent  string     `json:"html_content"`
	HeroImageURL string     `json:"hero_image_url"`
	ListID       *uuid.UUID `json:"list_id"`
	Status       string     `json:"status"`
}

func (req *pageRequest) validate(w http.ResponseWriter) bool {
	if !newsletter.ValidSlug.MatchString(req.Slug) {
		httputil.BadRequest(w, "slug must be lowercase letters, digits, and single dashes")
		return false
	}
	if req.Title == "" {
		httputil.BadRequest(w, "title is required")
		return false
	}
	return true
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.news.GetSignupPages(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, pages)
}

func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if !httputil.Decode(w, r, &req) || !req.validate(w) {
		return
	}

	page := &newsletter.SignupPage{
		Slug:         req.Slug,
		Title:        req.Title,
		Description:  req.Description,
		HTMLContent:  req.HTMLContent,
		HeroImageURL: req.HeroImageURL,
		ListID:       req.ListID,
		Status:       req.Status,
	}
	if page.Status == "" {
		page.Status = newsletter.StatusDraft
	}
	if err := s.news.CreateSignupPage(r.Context(), page); err != nil {
		if newsletter.IsUniqueViolation(err) {
			httputil.Conflict(w, "a page with that slug already exists")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, page)
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	page, err := s.news.GetSignupPage(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if page == nil {
		httputil.NotFound(w, "page not found")
		return
	}
	httputil.OK(w, page)
}

func (s *Server) handleUpdatePage(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req pageRequest
	if !httputil.Decode(w, r, &req) || !req.validate(w) {
		return
	}

	page, err := s.news.GetSignupPage(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if page == nil {
		httputil.NotFound(w, "page not found")
		return
	}

	page.Slug = req.Slug
	page.Title = req.Title
	page.Description = req.Description
	page.HTMLContent = req.HTMLContent
	page.HeroImageURL = req.HeroImageURL
	page.ListID = req.ListID
	if req.Status != "" {
		page.Status = req.Status
	}
	if err := s.news.UpdateSignupPage(r.Context(), page); err != nil {
		if newsletter.IsUniqueViolation(err) {
			httputil.Conflict(w, "a page with that slug already exists")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, page)
}

func (s *Server) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := s.news.DeleteSignupPage(r.Context(), id); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"message": "page deleted"})
}

func (s *Server) handleUploadAsset(w http.ResponseWriter, r *http.Request) {
	if s.assets == nil {
		httputil.Fail(w, http.StatusServiceUnavailable, "asset storage is not configured")
		return
	}
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	page, err := s.news.GetSignupPage(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if page == nil {
		httputil.NotFound(w, "page not found")
		return
	}

	if err := r.ParseMultipartForm(12 << 20); err != nil {
		httputil.BadRequest(w, "invalid multipart upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "a file part named \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	upload, err := s.assets.Store(r.Context(), header.Filename, data)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	asset := &newsletter.PageAsset{
		PageID:       &page.ID,
		Filename:     upload.Filename,
		ContentType:  upload.ContentType,
		OriginalURL:  upload.OriginalURL,
		ThumbnailURL: upload.ThumbnailURL,
		SizeBytes:    upload.SizeBytes,
	}
	if err := s.news.CreatePageAsset(r.Context(), asset); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, asset)
}
