// Package http serves the extraction form and its JSON API.
package http

import (
	"context"
	"embed"
	"html/template"
	"net"
	"net/http"
	"time"

	plprom "github.com/fwojciec/pluck/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// ShutdownTimeout is the time given for outstanding requests to finish
// before shutdown.
const ShutdownTimeout = 1 * time.Second

//go:embed templates/*.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Server serves the form for every browser profile known to Sessions.
type Server struct {
	ln     net.Listener
	server *http.Server

	// Bind address to open. Set before calling Open().
	Addr string

	// Sessions owns the per-profile extraction clients.
	Sessions *Sessions

	Logger zerolog.Logger

	// Optional. Metrics instruments requests; Gatherer is served on /metrics.
	Metrics  *plprom.Metrics
	Gatherer prometheus.Gatherer

	// RateLimit is the allowed number of POST requests per second per client.
	// Zero disables rate limiting.
	RateLimit float64

	// AllowedOrigins enables CORS on the JSON API for the given origins.
	AllowedOrigins []string

	// WelcomeDelay is used by the page to re-check for the welcome overlay.
	WelcomeDelay time.Duration
}

// NewServer returns a new instance of Server.
func NewServer(sessions *Sessions) *Server {
	return &Server{
		Sessions: sessions,
		Logger:   zerolog.Nop(),
	}
}

// Handler returns the router wrapped in the server's middleware.
func (s *Server) Handler() http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("GET /{$}", s.handleIndex)
	router.HandleFunc("POST /extract", s.handleExtract)
	router.HandleFunc("POST /credential", s.handleCredentialSave)
	router.HandleFunc("POST /credential/open", s.handleCredentialOpen)
	router.HandleFunc("POST /credential/cancel", s.handleCredentialCancel)
	router.HandleFunc("GET /healthz", s.handleHealth)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/state", s.handleAPIState)
	api.HandleFunc("POST /api/extract", s.handleAPIExtract)
	api.HandleFunc("POST /api/credential", s.handleAPICredentialSave)
	api.HandleFunc("DELETE /api/credential", s.handleAPICredentialDelete)
	var apiHandler http.Handler = api
	if len(s.AllowedOrigins) > 0 {
		apiHandler = cors.New(cors.Options{
			AllowedOrigins:   s.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}).Handler(api)
	}
	router.Handle("/api/", apiHandler)

	if s.Gatherer != nil {
		router.Handle("GET /metrics", plprom.Handler(s.Gatherer))
	}

	var h http.Handler = router
	if s.Metrics != nil {
		h = s.Metrics.Middleware(h)
	}
	if s.RateLimit > 0 {
		h = NewClientLimiter(s.RateLimit).Middleware(h)
	}
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(h)
	h = hlog.RemoteAddrHandler("ip")(h)
	h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
	h = hlog.NewHandler(s.Logger)(h)
	return h
}

// Open validates the server options and begins listening on the bind address.
func (s *Server) Open() (err error) {
	if s.ln, err = net.Listen("tcp", s.Addr); err != nil {
		return err
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go s.server.Serve(s.ln)

	return nil
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// URL returns the local base URL of the running server.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}
