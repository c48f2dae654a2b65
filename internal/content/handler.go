package content

import (
	"net/http"
	"strings"

	"github.com/cofabri/site-backend/internal/airtable"
	"github.com/cofabri/site-backend/internal/domain"
	"github.com/cofabri/site-backend/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// Handler handles HTTP requests for the content module.
type Handler struct {
	service *Service
}

// NewHandler creates a new content handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers content routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/apps", func(r chi.Router) {
		r.Get("/", h.ListApps)
		r.Get("/{id}", h.GetApp)
	})
	r.Route("/api/knowledge-base", func(r chi.Router) {
		r.Get("/", h.ListArticles)
		r.Get("/{slug}", h.GetArticle)
	})
	r.Route("/api/blog", func(r chi.Router) {
		r.Get("/", h.ListPosts)
		r.Get("/{slug}", h.GetPost)
	})
	r.Get("/api/roadmap", h.GetRoadmap)
	r.Get("/api/testimonials", h.ListTestimonials)
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrNotFound, Status: http.StatusNotFound},
	{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
	{Error: airtable.ErrUpstream, Status: http.StatusServiceUnavailable, Message: "content is temporarily unavailable"},
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, data interface{}, err error) {
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	httputil.JSON(w, http.StatusOK, data)
}

// ListApps handles GET /api/apps.
func (h *Handler) ListApps(w http.ResponseWriter, r *http.Request) {
	status := domain.AppStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	apps, err := h.service.ListApps(r.Context(), status)
	h.respond(w, r, apps, err)
}

// GetApp handles GET /api/apps/{id}.
func (h *Handler) GetApp(w http.ResponseWriter, r *http.Request) {
	app, err := h.service.GetApp(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, app, err)
}

// ListArticles handles GET /api/knowledge-base.
func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	articles, err := h.service.ListArticles(r.Context(), ArticleFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Query:    q.Get("q"),
	})
	h.respond(w, r, articles, err)
}

// GetArticle handles GET /api/knowledge-base/{slug}.
func (h *Handler) GetArticle(w http.ResponseWriter, r *http.Request) {
	article, err := h.service.GetArticle(r.Context(), chi.URLParam(r, "slug"))
	h.respond(w, r, article, err)
}

// ListPosts handles GET /api/blog.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListPosts(r.Context())
	h.respond(w, r, posts, err)
}

// GetPost handles GET /api/blog/{slug}.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.GetPost(r.Context(), chi.URLParam(r, "slug"))
	h.respond(w, r, post, err)
}

// GetRoadmap handles GET /api/roadmap.
func (h *Handler) GetRoadmap(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.Roadmap(r.Context())
	h.respond(w, r, groups, err)
}

// ListTestimonials handles GET /api/testimonials.
func (h *Handler) ListTestimonials(w http.ResponseWriter, r *http.Request) {
	testimonials, err := h.service.ListTestimonials(r.Context())
	h.respond(w, r, testimonials, err)
}
