// Package http serves the botpod REST API, the login gate and the WebSocket feeds.
package http

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/botpod/internal/botpod/cache"
	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/botpod/lifecycle"
	"github.com/autopeer-io/botpod/internal/botpod/registry"
	"github.com/autopeer-io/botpod/internal/botpod/server/ws"
	"github.com/autopeer-io/botpod/internal/botpod/session"
	"github.com/autopeer-io/botpod/pkg/log"
)

const maxBodySize = 64 << 10

// Container holds all dependencies for the router
type Container struct {
	Gateway      core.Gateway
	Cache        *cache.Cache
	Registry     *registry.Registry
	Orchestrator *lifecycle.Orchestrator
	Sessions     *session.Coordinator
	Hub          *ws.Hub
	// Auth is nil when the login gate is disabled.
	Auth           *Authenticator
	AllowedOrigins []string
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	authH := &authHandler{auth: c.Auth}
	podH := &podHandler{gw: c.Gateway, cache: c.Cache, orch: c.Orchestrator}
	botH := &botHandler{cache: c.Cache, registry: c.Registry, orch: c.Orchestrator}
	sessionH := &sessionHandler{sessions: c.Sessions}
	wsH := ws.NewHandler(c.Hub, c.Sessions, c.AllowedOrigins)

	r.Use(loggingMiddleware)
	r.Use(corsMiddleware(c.AllowedOrigins))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
	r.HandleFunc("/readyz", readyz(c.Cache)).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authH.Login).Methods("POST", "OPTIONS")
	v1.HandleFunc("/auth/logout", authH.Logout).Methods("POST", "OPTIONS")
	v1.HandleFunc("/shutdown-bot", sessionH.Unload).Methods("POST", "OPTIONS")

	// Everything else sits behind the login gate
	private := v1.NewRoute().Subrouter()
	private.Use(c.Auth.Require)

	private.HandleFunc("/pods", podH.List).Methods("GET", "OPTIONS")
	private.HandleFunc("/pods", podH.Create).Methods("POST", "OPTIONS")
	private.HandleFunc("/pods/{id}", podH.Get).Methods("GET", "OPTIONS")
	private.HandleFunc("/pods/{id}/start", podH.Start).Methods("POST", "OPTIONS")
	private.HandleFunc("/pods/{id}/stop", podH.Stop).Methods("POST", "OPTIONS")

	private.HandleFunc("/bots", botH.List).Methods("GET", "OPTIONS")
	private.HandleFunc("/bots/{id}", botH.Get).Methods("GET", "OPTIONS")
	private.HandleFunc("/bots/{id}/wake", botH.Wake).Methods("POST", "OPTIONS")
	private.HandleFunc("/bots/{id}/shutdown", botH.Shutdown).Methods("POST", "OPTIONS")

	private.HandleFunc("/sessions", sessionH.Open).Methods("POST", "OPTIONS")
	private.HandleFunc("/sessions", sessionH.List).Methods("GET", "OPTIONS")
	private.HandleFunc("/sessions/{id}", sessionH.Get).Methods("GET", "OPTIONS")
	private.HandleFunc("/sessions/{id}/leave", sessionH.Leave).Methods("POST", "OPTIONS")
	private.HandleFunc("/sessions/{id}/disconnected", sessionH.Disconnected).Methods("POST", "OPTIONS")

	private.HandleFunc("/ws/bots", wsH.BotsWS).Methods("GET")
	private.HandleFunc("/ws/sessions/{id}", wsH.SessionWS).Methods("GET")

	return r
}

type readiness struct {
	Status      string     `json:"status"`
	RefreshedAt *time.Time `json:"refreshedAt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}

// readyz reports ready once the cache holds a pod list. A failing refresh
// keeps the last list, so it does not make the process unready.
func readyz(c *cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refreshedAt := c.RefreshedAt()
		if refreshedAt.IsZero() {
			writeJSON(w, http.StatusServiceUnavailable, readiness{Status: "warming"})
			return
		}

		resp := readiness{Status: "ok", RefreshedAt: &refreshedAt}
		if err := c.LastError(); err != nil {
			resp.LastError = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func corsMiddleware(allowedOrigins []string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Hijack is needed by the WebSocket upgrader.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func loggingMiddleware(next http.Handler) http.Handler {
	logger := log.WithName("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger.Debug("Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
