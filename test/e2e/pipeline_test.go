package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/solhaga/threatlens/internal/adapter/handler"
	"github.com/solhaga/threatlens/internal/adapter/loader"
	"github.com/solhaga/threatlens/internal/core/domain"
)

// analyticRoot is the expected probability of the fixture tree:
// OR(T-DEF=0.6, AND(T-FW=0.3, T-TEL=0.5)) = 1 - 0.4*0.85 = 0.66.
const analyticRoot = 0.66

// memoryRepository keeps assessments in memory for the pipeline test.
type memoryRepository struct {
	saved []domain.Assessment
}

func (m *memoryRepository) Save(ctx context.Context, a domain.Assessment) error {
	m.saved = append(m.saved, a)
	return nil
}

func (m *memoryRepository) ListRecent(ctx context.Context, limit int) ([]domain.Assessment, error) {
	if limit > len(m.saved) {
		limit = len(m.saved)
	}
	out := make([]domain.Assessment, limit)
	copy(out, m.saved[len(m.saved)-limit:])
	return out, nil
}

// newTestServer loads the fixture catalog and tree and wires the same routes
// the API binary serves.
func newTestServer(t *testing.T) (*httptest.Server, *memoryRepository) {
	t.Helper()

	catalog, err := loader.LoadCatalog("testdata/catalog.json")
	if err != nil {
		t.Fatalf("failed to load fixture catalog: %v", err)
	}
	tree, err := loader.LoadTree("testdata/tree.json", catalog)
	if err != nil {
		t.Fatalf("failed to load fixture tree: %v", err)
	}

	repo := &memoryRepository{}
	restHandler := handler.NewRestHandler(catalog, tree, repo, zap.NewNop(), 2)

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/health", restHandler.Health).Methods("GET")
	router.HandleFunc("/api/v1/threats/ranked", restHandler.RankedThreats).Methods("GET")
	router.HandleFunc("/api/v1/threats/export", restHandler.ExportThreats).Methods("GET")
	router.HandleFunc("/api/v1/tree/evaluate", restHandler.EvaluateTree).Methods("GET")
	router.HandleFunc("/api/v1/tree/simulate", restHandler.SimulateTree).Methods("GET")
	router.HandleFunc("/api/v1/assessments", restHandler.ListAssessments).Methods("GET")

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, repo
}

func getJSON(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	return resp.StatusCode, body
}

func TestPipeline_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := getJSON(t, srv.URL+"/api/v1/health")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}
	if body["threats"] != float64(4) {
		t.Errorf("expected 4 threats, got %v", body["threats"])
	}
	if body["tree"] != true {
		t.Errorf("expected tree to be configured")
	}
}

func TestPipeline_RankedThreats(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := getJSON(t, srv.URL+"/api/v1/threats/ranked")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	threats, ok := body["threats"].([]interface{})
	if !ok || len(threats) != 4 {
		t.Fatalf("expected 4 ranked threats, got %v", body["threats"])
	}

	// Score order: T-DEF 9.2 Critical, T-FW 7.0 High, T-TEL 6.4 Medium,
	// T-PHY 3.6 Low.
	want := []struct {
		id       string
		severity string
	}{
		{"T-DEF", "Critical"},
		{"T-FW", "High"},
		{"T-TEL", "Medium"},
		{"T-PHY", "Low"},
	}
	for i, w := range want {
		got := threats[i].(map[string]interface{})
		if got["id"] != w.id {
			t.Errorf("rank %d: expected %s, got %v", i+1, w.id, got["id"])
		}
		if got["severity"] != w.severity {
			t.Errorf("rank %d: expected severity %s, got %v", i+1, w.severity, got["severity"])
		}
	}
}

func TestPipeline_AnalyticThenSimulationAgree(t *testing.T) {
	srv, repo := newTestServer(t)

	status, analytic := getJSON(t, srv.URL+"/api/v1/tree/evaluate")
	if status != http.StatusOK {
		t.Fatalf("evaluate: expected 200, got %d", status)
	}
	root, _ := analytic["root_probability"].(float64)
	if math.Abs(root-analyticRoot) > 1e-9 {
		t.Errorf("analytic root %v, expected %v", root, analyticRoot)
	}

	status, sim := getJSON(t, srv.URL+"/api/v1/tree/simulate?trials=20000&seed=7")
	if status != http.StatusOK {
		t.Fatalf("simulate: expected 200, got %d", status)
	}
	estimate, _ := sim["estimate"].(float64)
	if math.Abs(estimate-root) > 0.02 {
		t.Errorf("simulation estimate %v deviates more than 0.02 from analytic %v", estimate, root)
	}
	low, _ := sim["interval_low"].(float64)
	high, _ := sim["interval_high"].(float64)
	if !(low <= estimate && estimate <= high) {
		t.Errorf("estimate %v outside its interval [%v, %v]", estimate, low, high)
	}

	// Both runs were persisted.
	if len(repo.saved) != 2 {
		t.Fatalf("expected 2 persisted assessments, got %d", len(repo.saved))
	}

	status, history := getJSON(t, srv.URL+"/api/v1/assessments")
	if status != http.StatusOK {
		t.Fatalf("assessments: expected 200, got %d", status)
	}
	if history["count"] != float64(2) {
		t.Errorf("expected 2 assessments in history, got %v", history["count"])
	}
}

func TestPipeline_SimulationReproducible(t *testing.T) {
	srv, _ := newTestServer(t)

	url := srv.URL + "/api/v1/tree/simulate?trials=5000&seed=99"
	_, first := getJSON(t, url)
	_, second := getJSON(t, url)

	if first["estimate"] != second["estimate"] || first["successes"] != second["successes"] {
		t.Errorf("same seed produced different results: %v vs %v", first, second)
	}
}

func TestPipeline_ExportFormats(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		format      string
		contentType string
		marker      string
	}{
		{"csv", "text/csv", "rank,id,score"},
		{"markdown", "text/markdown", "# Ranked Threats"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			resp, err := http.Get(fmt.Sprintf("%s/api/v1/threats/export?format=%s", srv.URL, tt.format))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, tt.contentType) {
				t.Errorf("expected %s content type, got %q", tt.contentType, ct)
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("failed to read body: %v", err)
			}
			if !strings.Contains(string(body), tt.marker) {
				t.Errorf("export missing marker %q:\n%s", tt.marker, body)
			}
			if !strings.Contains(string(body), "T-DEF") {
				t.Error("export missing top-ranked threat")
			}
		})
	}
}
