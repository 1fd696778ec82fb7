package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeFleet struct {
	nodes map[int]NodeSnapshot
}

func (f *fakeFleet) Snapshot(nodeID int) (NodeSnapshot, error) {
	snap, ok := f.nodes[nodeID]
	if !ok {
		return NodeSnapshot{}, fmt.Errorf("node %d not found", nodeID)
	}
	return snap, nil
}

func (f *fakeFleet) NumNodes() int { return len(f.nodes) }

func newFakeFleet() *fakeFleet {
	return &fakeFleet{nodes: map[int]NodeSnapshot{
		0: {ID: 0, GPUType: "A100", UpdatedCPU: 4, UpdatedGPU: 1, JobCount: 2},
	}}
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer(newFakeFleet())
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestStatusEndpointReportsNodeCount(t *testing.T) {
	srv := NewServer(newFakeFleet())
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	srv.Handler().ServeHTTP(rr, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["num_nodes"].(float64) != 1 {
		t.Errorf("num_nodes = %v, want 1", body["num_nodes"])
	}
}

func TestNodeEndpointReturnsSnapshot(t *testing.T) {
	srv := NewServer(newFakeFleet())
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/nodes/0", nil)
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var snap NodeSnapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.GPUType != "A100" {
		t.Errorf("GPUType = %q, want A100", snap.GPUType)
	}
}

func TestNodeEndpointUnknownID(t *testing.T) {
	srv := NewServer(newFakeFleet())
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/nodes/99", nil)
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestNodeEndpointNonIntegerID(t *testing.T) {
	srv := NewServer(newFakeFleet())
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/nodes/abc", nil)
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestMetricsEndpointDisabledByDefault(t *testing.T) {
	srv := NewServer(newFakeFleet())
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when metrics disabled", rr.Code)
	}
}

func TestMetricsEndpointEnabled(t *testing.T) {
	srv := NewServer(newFakeFleet())
	srv.EnableMetrics()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when metrics enabled", rr.Code)
	}
}
