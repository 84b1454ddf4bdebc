package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/linkpulse/linkpulse/internal/config"
	"github.com/linkpulse/linkpulse/internal/infrastructure/telemetry"
	"github.com/linkpulse/linkpulse/internal/processing/analytics"
	"github.com/linkpulse/linkpulse/internal/processing/links"
	"github.com/linkpulse/linkpulse/internal/transport/http/middleware"
	"github.com/linkpulse/linkpulse/pkg/httputils"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var spanNames = map[string]string{
	"GET /health":               "health",
	"GET /metrics":              "metrics",
	"POST /api/links":           "links.create",
	"GET /api/links":            "links.list",
	"PUT /api/links/{token}":    "links.update",
	"DELETE /api/links/{token}": "links.delete",
	"GET /api/analytics/clicks": "analytics.clicks",
	"GET /api/analytics/visits": "analytics.visits",
	"GET /{token}":              "links.redirect",
}

type RouterOptions struct {
	EnableCORS    bool
	EnableLogging bool
	EnableMetrics bool

	RedirectOptions RedirectHandlerOptions

	// RateLimiter guards link creation when set.
	RateLimiter *middleware.RedisFixedWindowLimiter
}

func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		EnableCORS:    true,
		EnableLogging: true,
		EnableMetrics: true,
		RedirectOptions: RedirectHandlerOptions{
			AsyncClick:   true,
			ClickTimeout: 2 * time.Second,
		},
	}
}

type RouterDeps struct {
	LinkService *links.Service
	Recorder    *analytics.Recorder
	Aggregator  *analytics.Aggregator
}

func NewRouter(cfg *config.Config, deps RouterDeps) http.Handler {
	return NewRouterWithOptions(cfg, deps, DefaultRouterOptions())
}

func NewRouterWithOptions(cfg *config.Config, deps RouterDeps, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	healthHandler := NewHealthHandler()
	linksHandler := NewLinksHandler(cfg, deps.LinkService, deps.Aggregator)
	analyticsHandler := NewAnalyticsHandler(deps.Aggregator)
	redirectHandler := NewRedirectHandler(cfg, deps.LinkService, deps.Recorder, opts.RedirectOptions)

	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("GET /metrics", healthHandler.Metrics())

	auth := middleware.AuthMiddleware(cfg.Auth.JWTSecret)

	createMiddlewares := []func(http.Handler) http.Handler{auth}
	if opts.RateLimiter != nil {
		createMiddlewares = append(createMiddlewares, middleware.RateLimitMiddleware(opts.RateLimiter))
	}

	mux.Handle("POST /api/links", middleware.Chain(
		http.HandlerFunc(linksHandler.Create),
		createMiddlewares...,
	))
	mux.Handle("GET /api/links", middleware.Chain(http.HandlerFunc(linksHandler.List), auth))
	mux.Handle("PUT /api/links/{token}", middleware.Chain(http.HandlerFunc(linksHandler.Update), auth))
	mux.Handle("DELETE /api/links/{token}", middleware.Chain(http.HandlerFunc(linksHandler.Delete), auth))

	mux.Handle("GET /api/analytics/clicks", middleware.Chain(http.HandlerFunc(analyticsHandler.Clicks), auth))
	mux.Handle("GET /api/analytics/visits", middleware.Chain(http.HandlerFunc(analyticsHandler.Visits), auth))

	mux.HandleFunc("GET /{token}", redirectHandler.Redirect)

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		httputils.RespondJSON(w, http.StatusOK, map[string]string{
			"service": cfg.App.Name,
			"version": cfg.App.Version,
		})
	})

	var innerHandler http.Handler = mux
	if opts.EnableCORS {
		innerHandler = middleware.CORSMiddleware(innerHandler)
	}
	if opts.EnableLogging {
		innerHandler = middleware.LoggingMiddleware(innerHandler)
	}
	if opts.EnableMetrics {
		innerHandler = middleware.MetricsMiddleware(innerHandler)
	}

	otelOptions := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			key := r.Method + " " + r.Pattern
			if name, ok := spanNames[key]; ok {
				return name
			}
			if r.Pattern != "" {
				return r.Pattern
			}
			path := strings.TrimSpace(r.URL.Path)
			if path == "" {
				path = "/"
			}
			return path
		}),
	}

	if telemetry.TracerProvider != nil {
		otelOptions = append(otelOptions, otelhttp.WithTracerProvider(telemetry.TracerProvider))
	}

	return otelhttp.NewHandler(innerHandler, cfg.App.Name, otelOptions...)
}
