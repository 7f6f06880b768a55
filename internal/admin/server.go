package admin

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/naru-gw/gatewayd/internal/gwerr"
	"github.com/naru-gw/gatewayd/internal/metrics"
)

// appAddRequest is the body of POST /app/add and /app/update.
type appAddRequest struct {
	AppID                string `json:"app_id"`
	LimitIntervalSeconds int    `json:"limit_interval_seconds"`
	Limit                int    `json:"limit"`
}

// appIDRequest is the body of POST /app/remove and /app/get.
type appIDRequest struct {
	AppID string `json:"app_id"`
}

// Server is the control-plane HTTP listener (§6): loopback-only, accepts
// JSON bodies, and responds with short text/plain status strings, per
// spec.md's admin contract. It also exposes /metrics for Prometheus
// scraping — ambient observability, not one of the admin operations.
type Server struct {
	ingestion *Ingestion
	metrics   *metrics.Collector
	log       *zap.Logger

	mux *http.ServeMux
}

// NewServer builds the admin HTTP server's handler. collector may be nil to
// omit the /metrics endpoint.
func NewServer(ingestion *Ingestion, collector *metrics.Collector, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{ingestion: ingestion, metrics: collector, log: log, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/app/add", s.handleAppAdd)
	s.mux.HandleFunc("/app/update", s.handleAppUpdate)
	s.mux.HandleFunc("/app/remove", s.handleAppRemove)
	s.mux.HandleFunc("/app/get", s.handleAppGet)
	s.mux.HandleFunc("/lb/add", s.handleLBAdd)
	s.mux.HandleFunc("/lb/remove", s.handleLBRemove)
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics.Handler())
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleAppAdd(w http.ResponseWriter, r *http.Request) {
	var req appAddRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.ingestion.AddApplication(req.AppID, req.LimitIntervalSeconds, req.Limit); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, "application added")
}

func (s *Server) handleAppUpdate(w http.ResponseWriter, r *http.Request) {
	var req appAddRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.ingestion.UpdateApplication(req.AppID, req.LimitIntervalSeconds, req.Limit); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, "application updated")
}

func (s *Server) handleAppRemove(w http.ResponseWriter, r *http.Request) {
	var req appIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.ingestion.RemoveApplication(req.AppID); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, "application removed")
}

func (s *Server) handleAppGet(w http.ResponseWriter, r *http.Request) {
	var req appIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := s.ingestion.GetApplication(req.AppID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "app_id=%s limit=%d interval_seconds=%d rate=%.2f\n",
		view.AppID, view.Limit, view.LimitIntervalSeconds, view.Rate)
}

func (s *Server) handleLBAdd(w http.ResponseWriter, r *http.Request) {
	var req AddRouteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.ingestion.AddRoute(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, "route added")
}

func (s *Server) handleLBRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.ingestion.RemoveRoute(r.Context(), req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, "route removed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil {
		writeError(w, gwerr.New(gwerr.ConfigInvalid, "request body is required"))
		return false
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, gwerr.Wrap(gwerr.ConfigInvalid, "invalid request body", err))
		return false
	}
	return true
}

func writeOK(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, msg)
}

func writeError(w http.ResponseWriter, err error) {
	if ge, ok := gwerr.As(err); ok {
		ge.WritePlain(w)
		return
	}
	gwerr.Wrap(gwerr.ConfigInvalid, "request failed", err).WritePlain(w)
}
