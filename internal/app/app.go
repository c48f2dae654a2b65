// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/cofabri/site-backend/api"
	"github.com/cofabri/site-backend/internal/airtable"
	"github.com/cofabri/site-backend/internal/blob"
	"github.com/cofabri/site-backend/internal/captcha"
	"github.com/cofabri/site-backend/internal/config"
	"github.com/cofabri/site-backend/internal/content"
	"github.com/cofabri/site-backend/internal/domain"
	"github.com/cofabri/site-backend/internal/identity"
	"github.com/cofabri/site-backend/internal/markdown"
	"github.com/cofabri/site-backend/internal/notify/mattermost"
	"github.com/cofabri/site-backend/internal/pkg/cache"
	cachepostgres "github.com/cofabri/site-backend/internal/pkg/cache/postgres"
	"github.com/cofabri/site-backend/internal/pkg/ctxlog"
	"github.com/cofabri/site-backend/internal/pkg/httpclient"
	"github.com/cofabri/site-backend/internal/pkg/httputil"
	"github.com/cofabri/site-backend/internal/pkg/metrics"
	"github.com/cofabri/site-backend/internal/pkg/postgres"
	"github.com/cofabri/site-backend/internal/status"
	"github.com/cofabri/site-backend/internal/support"
	supportpostgres "github.com/cofabri/site-backend/internal/support/postgres"
	"github.com/cofabri/site-backend/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// rateLimitIdleTTL is how long an idle client bucket is kept.
const rateLimitIdleTTL = 10 * time.Minute

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
}

// New creates a new application instance. The database is optional; without
// it the cache stays in process memory and failed submissions are kept in a
// bounded in-memory list.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		metricsCancel: metricsCancel,
	}

	if cfg.Database.Enabled() {
		db, err := connectDatabase(cfg.Database)
		if err != nil {
			metricsCancel()
			return nil, err
		}
		app.db = db
		go app.collectDBMetrics(metricsCtx)
	}

	router, err := app.setupRouter()
	if err != nil {
		app.closeDB()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	if cfg.Server.MetricsPort > 0 {
		metricsRouter := chi.NewRouter()
		metricsRouter.Handle("/metrics", promhttp.Handler())

		app.metricsServer = &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.MetricsPort)),
			Handler:           metricsRouter,
			ReadTimeout:       5 * time.Second,
			ReadHeaderTimeout: 2 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}

	return app, nil
}

func connectDatabase(cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout*time.Duration(max(cfg.ConnectAttempts, 1)))
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.URL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnectAttempts: cfg.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := postgres.Migrate(cfg.URL); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	return db, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	if a.metricsServer != nil {
		go func() {
			a.logger.Info("starting metrics server",
				"host", a.config.Server.Host,
				"port", a.config.Server.MetricsPort,
			)
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server error", "error", err)
			}
		}()
	}

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"version", version.Version,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	shutdown := func(name string, srv *http.Server) {
		defer wg.Done()
		if err := srv.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
			mu.Unlock()
		}
	}

	wg.Add(1)
	go shutdown("server", a.server)
	if a.metricsServer != nil {
		wg.Add(1)
		go shutdown("metrics server", a.metricsServer)
	}

	wg.Wait()

	a.closeDB()

	return errors.Join(errs...)
}

func (a *App) closeDB() {
	if a.db != nil {
		a.db.Close()
	}
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db.Stat())

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db.Stat())
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter() (*chi.Mux, error) {
	cfg := a.config

	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.Recoverer)
	r.Use(httputil.SecurityHeadersMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(api.OpenAPISpec)
	})

	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		httputil.HTML(w, http.StatusOK, []byte(docsPage))
	})

	outbound := func(timeout time.Duration) *http.Client {
		return httpclient.New(httpclient.Config{
			Timeout:      timeout,
			AllowPrivate: cfg.Outbound.AllowPrivateNetworks,
		})
	}

	source := airtable.NewClient(airtable.Config{
		BaseURL:           cfg.Airtable.BaseURL,
		APIKey:            cfg.Airtable.APIKey,
		BaseID:            cfg.Airtable.BaseID,
		RequestsPerSecond: cfg.Airtable.RateLimit,
	}, outbound(cfg.Airtable.Timeout))

	cacheConfig := cache.Config{TTL: cfg.Cache.TTL, Store: a.cacheStore()}

	// Status
	statusService := status.NewService(source, status.ServiceConfig{
		Table: cfg.Airtable.Tables.Status,
		Cache: cacheConfig,
	})
	widgets, err := status.NewWidgetRenderer()
	if err != nil {
		return nil, fmt.Errorf("create widget renderer: %w", err)
	}
	statusHandler := status.NewHandler(statusService, widgets, status.HandlerConfig{
		StatusPageURL: cfg.Site.StatusPageURL,
		FeedTitle:     cfg.Site.FeedTitle,
	})

	// Content
	contentService := content.NewService(source, markdown.NewRenderer(), content.Config{
		Tables: content.Tables{
			Apps:          cfg.Airtable.Tables.Apps,
			KnowledgeBase: cfg.Airtable.Tables.KnowledgeBase,
			Blog:          cfg.Airtable.Tables.Blog,
			Roadmap:       cfg.Airtable.Tables.Roadmap,
			Testimonials:  cfg.Airtable.Tables.Testimonials,
		},
		AssetBaseURL: cfg.Site.PublicURL,
		Cache:        cacheConfig,
	})
	contentHandler := content.NewHandler(contentService)

	// Forms
	var verifier support.Verifier = captcha.Noop{}
	if cfg.Turnstile.Enabled {
		verifier = captcha.NewTurnstile(captcha.Config{
			SecretKey: cfg.Turnstile.SecretKey,
			VerifyURL: cfg.Turnstile.VerifyURL,
		}, outbound(cfg.Turnstile.Timeout))
	} else {
		slog.Warn("turnstile verification is disabled: form submissions are not checked for bots")
	}

	if cfg.Blob.Token == "" {
		slog.Warn("blob token is not set: screenshot uploads will fail and be skipped")
	}
	uploader := blob.NewVercel(blob.Config{
		Token:      cfg.Blob.Token,
		BaseURL:    cfg.Blob.BaseURL,
		APIVersion: cfg.Blob.APIVersion,
	}, outbound(cfg.Blob.Timeout))

	var alerter support.Alerter
	if cfg.Alerts.MattermostWebhookURL != "" {
		alerter = mattermost.NewSender(mattermost.Config{
			WebhookURL: cfg.Alerts.MattermostWebhookURL,
			Channel:    cfg.Alerts.MattermostChannel,
		}, outbound(0))
	}

	supportService := support.NewService(verifier, uploader, source, a.failedSubmissionRepository(), alerter, support.Config{
		SupportTable:       cfg.Airtable.Tables.Support,
		ContactTable:       cfg.Airtable.Tables.Contact,
		MaxScreenshotBytes: cfg.Support.MaxScreenshotBytes,
		MaxScreenshots:     cfg.Support.MaxScreenshots,
		MaxRequestBytes:    cfg.Support.MaxRequestBytes,
	})
	supportHandler := support.NewHandler(supportService)

	// Admin
	var operators []identity.Operator
	if cfg.Admin.Enabled() {
		operators = append(operators, identity.Operator{
			Username:     cfg.Admin.Username,
			PasswordHash: cfg.Admin.PasswordHash,
			Role:         domain.RoleAdmin,
		})
	}
	identityService, err := identity.NewService(operators, identity.NewAuthenticator(identity.JWTConfig{
		SecretKey:     cfg.Admin.JWTSecret,
		TokenDuration: cfg.Admin.TokenDuration,
	}))
	if err != nil {
		return nil, fmt.Errorf("create identity service: %w", err)
	}
	identityHandler := identity.NewHandler(identityService)

	slog.Info("components configured",
		"cache_backend", cfg.Cache.Backend,
		"database", a.db != nil,
		"turnstile", cfg.Turnstile.Enabled,
		"alerts", alerter != nil,
		"admin", identityService.Enabled(),
	)

	statusHandler.RegisterRoutes(r)
	contentHandler.RegisterRoutes(r)

	limiter := httputil.NewRateLimiter(cfg.Support.RateLimitPerMinute, rateLimitIdleTTL)

	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		supportHandler.RegisterRoutes(r)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(httputil.NoCacheMiddleware)

		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)
			identityHandler.RegisterRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(identityService))
			r.Use(httputil.RequireRole(domain.RoleOperator))
			supportHandler.RegisterAdminRoutes(r)
		})
	})

	return r, nil
}

func (a *App) cacheStore() cache.Store {
	if a.config.Cache.Backend == config.CacheBackendPostgres && a.db != nil {
		return cachepostgres.NewStore(a.db)
	}
	return cache.NewMemoryStore()
}

func (a *App) failedSubmissionRepository() support.Repository {
	if a.db != nil {
		return supportpostgres.NewRepository(a.db)
	}
	slog.Warn("no database configured: failed submissions are kept in memory only")
	return support.NewMemoryRepository(support.DefaultMemoryCapacity)
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if a.db == nil {
		httputil.Text(w, http.StatusOK, "OK")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Get())
}

const docsPage = `<!DOCTYPE html>
<html>
<head>
    <title>CoFabri Site API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
