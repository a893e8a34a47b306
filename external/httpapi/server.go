package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VladimirHumeniuk/custiq-backend/internal/apperr"
	"github.com/VladimirHumeniuk/custiq-backend/internal/config"
	"github.com/VladimirHumeniuk/custiq-backend/internal/metrics"
	"github.com/VladimirHumeniuk/custiq-backend/internal/repository"
	"github.com/VladimirHumeniuk/custiq-backend/internal/session"
)

type Server struct {
	cfg *config.Config
	svc *session.Service
}

func NewServer(cfg *config.Config, svc *session.Service) *Server {
	return &Server{cfg: cfg, svc: svc}
}

// Handler wires all routes to a fresh mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/sessions", s.instrument("create_session", s.handleCreateSession))
	mux.HandleFunc("GET /api/sessions/current", s.instrument("get_current_session", s.handleGetCurrentSession))
	mux.HandleFunc("POST /api/sessions/current/segments", s.instrument("append_segments", s.handleAppendSegments))
	mux.HandleFunc("PATCH /api/sessions/current", s.instrument("patch_current_session", s.handlePatchCurrentSession))

	mux.HandleFunc("GET /api/usage", s.instrument("usage", s.withOwner(s.handleUsage)))
	mux.HandleFunc("GET /api/interviews/{interviewID}/sessions", s.instrument("list_sessions", s.withOwner(s.handleListSessions)))
	mux.HandleFunc("GET /api/sessions/{id}", s.instrument("get_session", s.withOwner(s.handleGetOwnedSession)))
	mux.HandleFunc("DELETE /api/sessions/{id}", s.instrument("delete_session", s.withOwner(s.handleDeleteSession)))
	mux.HandleFunc("GET /api/sessions/{id}/report", s.instrument("get_report", s.withOwner(s.handleGetOwnedReport)))

	mux.HandleFunc("GET /api/maintenance/sessions/stale", s.instrument("stale_sessions", s.withMaintenanceSecret(s.handleStaleSessions)))
	mux.HandleFunc("PATCH /api/maintenance/sessions/{id}", s.instrument("maintenance_patch", s.withMaintenanceSecret(s.handleMaintenancePatch)))
	mux.HandleFunc("PUT /api/maintenance/sessions/{id}/report", s.instrument("maintenance_report", s.withMaintenanceSecret(s.handleMaintenanceReport)))

	return mux
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r)
		metrics.HTTPRequestDuration.
			WithLabelValues(route, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	}
}

type ownerHandler func(w http.ResponseWriter, r *http.Request, owner *repository.Owner)

// withOwner resolves the bearer API key to an owner record. Owner routes
// scope every query by the resolved owner's user id.
func (s *Server) withOwner(next ownerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := s.svc.AuthenticateOwner(r.Context(), bearerToken(r))
		if err != nil {
			writeAppError(w, err)
			return
		}
		next(w, r, owner)
	}
}

// withMaintenanceSecret guards the privileged surface with a bearer secret
// distinct from both participant tokens and owner API keys.
func (s *Server) withMaintenanceSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		supplied := bearerToken(r)
		if supplied == "" ||
			subtle.ConstantTimeCompare([]byte(supplied), []byte(s.cfg.MaintenanceAPISecret)) != 1 {
			writeAppError(w, apperr.New(apperr.KindUnauthorized, "invalid maintenance credentials"))
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, prefix))
}
