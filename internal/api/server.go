// Package api provides the fleet's HTTP status/metrics surface: a
// health check, a status line, per-node state, and (when enabled) the
// Prometheus /metrics endpoint.
//
// Grounded on internal/api/server.go's Handler()/writeJSON/writeError
// shape and middleware stack, pared down to the subset this protocol's
// ambient stack actually needs — no model-serving or website routes,
// since those belong to the teacher's original domain, not this one.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NodeSnapshot is the subset of a node's reportable state the API
// surfaces — decoupled from internal/node.NodeSnapshot so this package
// does not need to import internal/controller's dependency chain just
// to describe its own response shape.
type NodeSnapshot struct {
	ID         int     `json:"id"`
	GPUType    string  `json:"gpu_type"`
	UpdatedCPU float64 `json:"updated_cpu"`
	UpdatedGPU float64 `json:"updated_gpu"`
	JobCount   int     `json:"job_count"`
}

// Snapshotter is the fleet collaborator the API queries for per-node
// state — internal/controller.Controller satisfies this via the
// fleetAdapter in internal/cli (run.go).
type Snapshotter interface {
	Snapshot(nodeID int) (NodeSnapshot, error)
	NumNodes() int
}

// Server is the fleet's HTTP API server.
type Server struct {
	fleet          Snapshotter
	metricsEnabled bool
}

// NewServer constructs a Server backed by fleet.
func NewServer(fleet Snapshotter) *Server {
	return &Server{fleet: fleet}
}

// EnableMetrics turns on the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "plebiscito is running",
			"num_nodes": s.fleet.NumNodes(),
		})
	})

	r.Get("/api/nodes/{id}", s.handleNode)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "node id must be an integer")
		return
	}

	snap, err := s.fleet.Snapshot(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
		},
	})
}
