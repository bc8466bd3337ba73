package httpapi

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/authcore"
)

const defaultVersion = "1.0.0"

// Options configures the router.
type Options struct {
	// AppName appears in the root banner.
	AppName string
	// Version appears in the root banner. Defaults to 1.0.0.
	Version string
	// AllowedOrigins lists CORS origins. Listed origins may send
	// credentials. A "*" entry allows any origin without credentials.
	// Empty disables CORS headers.
	AllowedOrigins []string
	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Enable only behind a proxy that overwrites them, since the
	// address keys the per-IP rate limits.
	TrustProxyHeaders bool
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter builds the HTTP handler for engine.
func NewRouter(engine *authcore.Engine, opts Options) http.Handler {
	if opts.Version == "" {
		opts.Version = defaultVersion
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if opts.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(
		requestLogger(opts.Logger),
		middleware.Recoverer,
		corsHandler(opts.AllowedOrigins),
		requestContext,
	)

	sys := &systemRoutes{appName: opts.AppName, version: opts.Version}
	r.Get("/", sys.getRoot)
	r.Get("/health", sys.getHealth)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Mount("/auth", AuthRouter(engine, opts.Logger))
	return r
}

type systemRoutes struct {
	appName string
	version string
}

func (s *systemRoutes) getRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to " + s.appName,
		"version": s.version,
	})
}

func (*systemRoutes) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// requestContext attaches the client address and User-Agent for rate
// limiting and audit.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := authcore.WithClientIP(r.Context(), clientIP(r))
		ctx = authcore.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.LogAttrs(r.Context(), slog.LevelDebug, "http request",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
