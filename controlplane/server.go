// Package controlplane exposes a read-only HTTP surface over a running
// session and dispatcher: health, current state, trajectory, and artifact
// listing. It deliberately never exposes a mutating endpoint — writes to
// a session happen only through Agent.Invoke via the Dispatcher, so the
// control plane cannot become a second, inconsistent path to the same
// state.
package controlplane

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/chronos-ai/substrate/core"
	"github.com/chronos-ai/substrate/session"
)

// Server is the substrate's HTTP control plane.
type Server struct {
	Addr       string
	Session    *session.Session
	Dispatcher *session.Dispatcher
	Metrics    *session.MetricsHook
	Logger     *log.Logger

	mux *http.ServeMux
}

// New builds a Server wired to sess and dispatcher. logger may be nil. A
// MetricsHook is created and attached to dispatcher so /metrics has
// something to report.
func New(addr string, sess *session.Session, dispatcher *session.Dispatcher, logger *log.Logger) *Server {
	metrics := session.NewMetricsHook()
	dispatcher.AddHook(metrics)

	s := &Server{Addr: addr, Session: sess, Dispatcher: dispatcher, Metrics: metrics, Logger: logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/session", s.handleSession)
	s.mux.HandleFunc("/trajectory", s.handleTrajectory)
	s.mux.HandleFunc("/artifacts", s.handleArtifacts)
	s.mux.HandleFunc("/capabilities", s.handleCapabilities)
	s.mux.HandleFunc("/metrics", s.handleMetrics)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"ok"}`)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	snap := s.Session.SnapshotForAgent("controlplane", nil)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"session_id":    snap.SessionID,
		"state":         snap.State,
		"state_version": snap.StateVersion,
		"artifacts":     snap.Artifacts,
	})
}

func (s *Server) handleTrajectory(w http.ResponseWriter, r *http.Request) {
	filter := session.TrajectoryFilter{}
	if v := r.URL.Query().Get("since_seq"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.SinceSeq = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := r.URL.Query().Get("entry_type"); v != "" {
		filter.EntryType = core.EntryType(v)
	}

	entries := s.Session.GetTrajectory(filter)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"entries": entries})
}

func (s *Server) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	w.Header().Set("Content-Type", "application/json")
	if name == "" {
		json.NewEncoder(w).Encode(map[string]any{"artifacts": s.Session.ListArtifacts()})
		return
	}
	data, err := s.Session.ReadArtifact(name)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error_code":%q,"message":%q}`, err.Code, err.Message), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"capabilities": s.Dispatcher.GetCapabilities(),
		"agents":       s.Dispatcher.GetAgents(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Metrics.Summary())
}

// ListenAndServe starts the control plane. It blocks until the server
// exits or returns an error.
func (s *Server) ListenAndServe() error {
	s.logf("control plane listening on %s", s.Addr)
	return http.ListenAndServe(s.Addr, s.mux)
}

func (s *Server) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}
