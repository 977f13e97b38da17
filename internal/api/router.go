package api

import (
	"crypto/rand"
	"net/http"
	"sort"
	"strings"

	"github.com/Togather-Foundation/graphevents/internal/api/handlers"
	"github.com/Togather-Foundation/graphevents/internal/api/middleware"
	"github.com/Togather-Foundation/graphevents/internal/api/render"
	"github.com/Togather-Foundation/graphevents/internal/audit"
	"github.com/Togather-Foundation/graphevents/internal/auth"
	"github.com/Togather-Foundation/graphevents/internal/cache"
	"github.com/Togather-Foundation/graphevents/internal/config"
	"github.com/Togather-Foundation/graphevents/internal/domain/events"
	"github.com/Togather-Foundation/graphevents/internal/metrics"
	"github.com/Togather-Foundation/graphevents/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

// Dependencies are the collaborators the router wires into handlers.
// PageCache and JWT may be nil: listings are then served uncached and
// writes are open.
type Dependencies struct {
	Config      config.Config
	Logger      zerolog.Logger
	Service     *events.Service
	Renderer    *render.Renderer
	Health      *handlers.HealthChecker
	PageCache   cache.Store
	JWT         *auth.JWTManager
	RateLimiter *middleware.RateLimiter
	Build       BuildInfo
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config

	renderer := deps.Renderer
	if renderer == nil {
		renderer = render.MustNew()
	}
	health := deps.Health
	if health == nil {
		health = handlers.NewHealthChecker(deps.Build.Version, deps.Build.GitCommit)
	}
	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.ReadPerMinute, cfg.RateLimit.WritePerMinute)
	}

	eventsHandler := handlers.NewEventsHandler(deps.Service, renderer, cfg.Environment)
	eventsHandler.Audit = audit.NewLogger(deps.Logger)

	readLimit := limiter.Limit(middleware.TierRead)
	writeLimit := limiter.Limit(middleware.TierWrite)
	pageCache := cache.Pages(deps.PageCache, cfg.Events.CacheTTL)
	csrf := csrfProtection(cfg.CSRF, deps.Logger)
	writers := middleware.RequireRole(deps.JWT, auth.RoleWriter, auth.RoleAdmin)
	admins := middleware.RequireRole(deps.JWT, auth.RoleAdmin)
	bodyLimit := middleware.RequestSize(cfg.Server.MaxBodyBytes)

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", web.IndexHandler())
	mux.Handle("GET /robots.txt", web.RobotsTxtHandler())
	mux.Handle("GET /healthz", health.Healthz())
	mux.Handle("GET /readyz", health.Readyz())
	mux.Handle("GET /version", VersionHandler(deps.Build))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.Handle("/events/{$}", methodMux(map[string]http.Handler{
		http.MethodGet:  readLimit(pageCache(http.HandlerFunc(eventsHandler.List))),
		http.MethodPost: writeLimit(writers(bodyLimit(http.HandlerFunc(eventsHandler.Create)))),
	}))
	mux.Handle("GET /events/page/{page_id}", readLimit(pageCache(http.HandlerFunc(eventsHandler.ListPage))))
	mux.Handle("GET /events/get_data", readLimit(http.HandlerFunc(eventsHandler.Data)))
	mux.Handle("/events/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:    readLimit(csrf(http.HandlerFunc(eventsHandler.Detail))),
		http.MethodDelete: writeLimit(admins(http.HandlerFunc(eventsHandler.Delete))),
	}))
	mux.Handle("POST /events/{id}/delete", writeLimit(csrf(http.HandlerFunc(eventsHandler.DeleteForm))))

	// Tracing and metrics sit inside the logging chain so that both see
	// the route pattern the mux records on the request.
	var handler http.Handler = mux
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.SecurityHeaders(cfg.IsProduction())(handler)
	handler = middleware.RequestLogging(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)
	return handler
}

// csrfProtection guards the HTML delete form. Without a configured key a
// random one is generated, which is fine for a single instance but breaks
// tokens across restarts and replicas.
func csrfProtection(cfg config.CSRFConfig, logger zerolog.Logger) func(http.Handler) http.Handler {
	key := []byte(cfg.Key)
	if len(key) != 32 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
		logger.Warn().Msg("CSRF_KEY not set; using an ephemeral key")
	}
	return middleware.CSRFProtection(key, cfg.Secure)
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.Method
		if method == http.MethodHead {
			method = http.MethodGet
		}
		if handler, ok := handlers[method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
