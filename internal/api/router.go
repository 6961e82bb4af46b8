package api

import (
	"log/slog"
	"net/http"

	"github.com/sydlexius/trackmend/internal/api/middleware"
	"github.com/sydlexius/trackmend/internal/backup"
	"github.com/sydlexius/trackmend/internal/engine"
	"github.com/sydlexius/trackmend/internal/event"
	"github.com/sydlexius/trackmend/internal/logging"
	"github.com/sydlexius/trackmend/internal/maintenance"
	"github.com/sydlexius/trackmend/internal/settings"
)

// RouterDeps bundles all dependencies needed by the HTTP router.
type RouterDeps struct {
	Engine     *engine.Engine
	LogManager *logging.Manager
	// Settings persists logging changes. Nil keeps them in memory only.
	Settings *settings.Store
	EventBus *event.Bus
	// Maintenance and Backup back the database endpoints. Nil omits them.
	Maintenance *maintenance.Service
	Backup      *backup.Service
	// LidarrToken enables the inbound Lidarr webhook when non-empty.
	LidarrToken string
	// TriggerLimiter throttles the endpoints that start jobs. Nil disables it.
	TriggerLimiter *middleware.RateLimiter
	Logger         *slog.Logger
	BasePath       string
}

// Router sets up all HTTP routes for the application.
type Router struct {
	engine     *engine.Engine
	logManager *logging.Manager
	settings   *settings.Store
	eventBus   *event.Bus
	maint      *maintenance.Service
	backup     *backup.Service
	lidarr     string
	limiter    *middleware.RateLimiter
	logger     *slog.Logger
	basePath   string
}

// NewRouter creates a new Router with all routes configured.
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		engine:     deps.Engine,
		logManager: deps.LogManager,
		settings:   deps.Settings,
		eventBus:   deps.EventBus,
		maint:      deps.Maintenance,
		backup:     deps.Backup,
		lidarr:     deps.LidarrToken,
		limiter:    deps.TriggerLimiter,
		logger:     deps.Logger,
		basePath:   deps.BasePath,
	}
}

// Handler returns the fully configured HTTP handler with middleware applied.
func (r *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	bp := r.basePath

	mux.HandleFunc("GET "+bp+"/api/v1/health", r.handleHealth)

	// Library
	mux.HandleFunc("GET "+bp+"/api/v1/tracks", r.handleListTracks)
	mux.HandleFunc("GET "+bp+"/api/v1/tracks/{id}", r.handleGetTrack)
	mux.HandleFunc("POST "+bp+"/api/v1/match", r.handleMatch)

	// Duplicates
	mux.HandleFunc("GET "+bp+"/api/v1/duplicates", r.handleDuplicates)
	mux.HandleFunc("POST "+bp+"/api/v1/duplicates/remove", r.limit(r.handleRemoveDuplicates))

	// Wishlist
	mux.HandleFunc("GET "+bp+"/api/v1/wishlist", r.handleListWishlist)
	mux.HandleFunc("POST "+bp+"/api/v1/wishlist", r.handleCreateWishlistItem)
	mux.HandleFunc("GET "+bp+"/api/v1/wishlist/{id}", r.handleGetWishlistItem)
	mux.HandleFunc("PUT "+bp+"/api/v1/wishlist/{id}/status", r.handleSetWishlistStatus)
	mux.HandleFunc("DELETE "+bp+"/api/v1/wishlist/{id}", r.handleDeleteWishlistItem)

	// Jobs
	mux.HandleFunc("POST "+bp+"/api/v1/reconcile", r.limit(r.handleReconcile))
	mux.HandleFunc("POST "+bp+"/api/v1/scan", r.limit(r.handleScan))
	mux.HandleFunc("GET "+bp+"/api/v1/jobs", r.handleListJobs)
	mux.HandleFunc("GET "+bp+"/api/v1/jobs/{kind}", r.handleJobStatus)
	mux.HandleFunc("DELETE "+bp+"/api/v1/jobs/{kind}", r.handleCancelJob)
	mux.HandleFunc("GET "+bp+"/api/v1/events", r.handleRecentEvents)

	// Integrations
	if r.lidarr != "" {
		mux.HandleFunc("POST "+bp+"/api/v1/webhooks/lidarr", r.limit(r.handleLidarrWebhook))
	}

	// Database
	if r.maint != nil {
		mux.HandleFunc("GET "+bp+"/api/v1/database", r.handleDatabaseStatus)
		mux.HandleFunc("POST "+bp+"/api/v1/database/optimize", r.limit(r.handleDatabaseOptimize))
	}
	if r.backup != nil {
		mux.HandleFunc("GET "+bp+"/api/v1/database/backups", r.handleListBackups)
		mux.HandleFunc("POST "+bp+"/api/v1/database/backups", r.limit(r.handleCreateBackup))
	}

	// Settings
	mux.HandleFunc("GET "+bp+"/api/v1/logging", r.handleGetLogging)
	mux.HandleFunc("PUT "+bp+"/api/v1/logging", r.handleUpdateLogging)

	return middleware.Logging(r.logger)(middleware.SecurityHeaders(mux))
}

// limit wraps a job trigger with the per-client rate limiter.
func (r *Router) limit(fn http.HandlerFunc) http.HandlerFunc {
	if r.limiter == nil {
		return fn
	}
	h := r.limiter.Middleware(fn)
	return h.ServeHTTP
}
