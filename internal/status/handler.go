package status

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cofabri/site-backend/internal/pkg/ctxlog"
	"github.com/cofabri/site-backend/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// HandlerConfig configures the public status endpoints.
type HandlerConfig struct {
	StatusPageURL string
	FeedTitle     string
	FeedLimit     int
}

// Handler handles HTTP requests for the status module.
type Handler struct {
	service *Service
	widgets *WidgetRenderer
	config  HandlerConfig
	now     func() time.Time
}

// NewHandler creates a new status handler.
func NewHandler(service *Service, widgets *WidgetRenderer, config HandlerConfig) *Handler {
	if config.FeedLimit <= 0 {
		config.FeedLimit = DefaultFeedLimit
	}
	if config.FeedTitle == "" {
		config.FeedTitle = "CoFabri System Status"
	}
	return &Handler{
		service: service,
		widgets: widgets,
		config:  config,
		now:     time.Now,
	}
}

// RegisterRoutes registers status routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/status", func(r chi.Router) {
		r.Get("/", h.ListIncidents)
		r.Get("/summary", h.GetSummary)
		r.Get("/feed.rss", h.GetFeed)
		r.With(httputil.NoCacheMiddleware).Get("/{app}", h.GetAppWidget)
	})
	r.With(httputil.NoCacheMiddleware).Get("/api/status-widget", h.GetGlobalWidget)
	r.Get("/widgets/{script}", h.GetScript)
}

// ListIncidents handles GET /api/status.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := h.service.Incidents(r.Context())
	if err != nil {
		ctxlog.FromContext(r.Context()).Error("failed to load incidents", "error", err)
		httputil.Error(w, http.StatusServiceUnavailable, "system status is temporarily unavailable")
		return
	}
	httputil.JSON(w, http.StatusOK, incidents)
}

// SummaryResponse is the aggregated indicator consumed by the embeddable scripts.
type SummaryResponse struct {
	Indicator
	Operational bool `json:"operational"`
}

// GetSummary handles GET /api/status/summary.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ind := h.service.Summary(r.Context(), strings.TrimSpace(r.URL.Query().Get("app")))
	w.Header().Set("Cache-Control", "public, max-age=60")
	httputil.JSON(w, http.StatusOK, SummaryResponse{Indicator: ind, Operational: ind.Operational()})
}

// GetAppWidget handles GET /api/status/{app}.
func (h *Handler) GetAppWidget(w http.ResponseWriter, r *http.Request) {
	app := chi.URLParam(r, "app")
	// chi routes on RawPath when it is set, leaving the parameter escaped.
	if r.URL.RawPath != "" {
		if decoded, err := url.PathUnescape(app); err == nil {
			app = decoded
		}
	}
	h.renderWidget(w, r, app)
}

// GetGlobalWidget handles GET /api/status-widget.
func (h *Handler) GetGlobalWidget(w http.ResponseWriter, r *http.Request) {
	h.renderWidget(w, r, "")
}

func (h *Handler) renderWidget(w http.ResponseWriter, r *http.Request, app string) {
	ind := h.service.Summary(r.Context(), app)

	body, err := h.widgets.Render(app, ind, h.config.StatusPageURL, h.now())
	if err != nil {
		ctxlog.FromContext(r.Context()).Error("failed to render status widget", "app", app, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httputil.HTML(w, http.StatusOK, body)
}

// GetFeed handles GET /api/status/feed.rss.
func (h *Handler) GetFeed(w http.ResponseWriter, r *http.Request) {
	incidents, err := h.service.Recent(r.Context(), h.config.FeedLimit)
	if err != nil {
		ctxlog.FromContext(r.Context()).Error("failed to load incidents for feed", "error", err)
		httputil.Error(w, http.StatusServiceUnavailable, "system status is temporarily unavailable")
		return
	}

	body, err := BuildFeed(FeedInfo{Title: h.config.FeedTitle, StatusPageURL: h.config.StatusPageURL}, incidents, h.now())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		ctxlog.FromContext(r.Context()).Warn("failed to write feed", "error", err)
	}
}

// GetScript handles GET /widgets/{script}.
func (h *Handler) GetScript(w http.ResponseWriter, r *http.Request) {
	data, ok := Script(chi.URLParam(r, "script"))
	if !ok {
		httputil.Error(w, http.StatusNotFound, "widget not found")
		return
	}

	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		ctxlog.FromContext(r.Context()).Warn("failed to write widget script", "error", err)
	}
}
