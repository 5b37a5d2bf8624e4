package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/wpl-go/weather-provider-storage/internal/controller"
	"github.com/wpl-go/weather-provider-storage/internal/model"
	"github.com/wpl-go/weather-provider-storage/internal/storage"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	demo := model.NewSynthetic(model.SyntheticConfig{Code: "demo", Name: "Demo"})
	h, err := storage.NewHandler(storage.Settings{
		ModelCode:     "demo",
		Location:      t.TempDir(),
		ChunkDuration: 24 * time.Hour,
	}, demo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	registry := model.NewRegistry(model.NewSource("synthetic", "Synthetic", demo))
	ctrl := controller.New(registry, map[string]*storage.Handler{"synthetic/demo": h}, zerolog.Nop())

	app := fiber.New()
	RegisterRoutes(app, ctrl)
	return app
}

const extentParams = "minLat=50&maxLat=54&minLon=3&maxLon=8&factors=temperature"

// TestEvaluationQueryValidation verifies that the evaluation endpoint rejects
// incomplete or inverted time/space parameters.
func TestEvaluationQueryValidation(t *testing.T) {
	app := newTestApp(t)

	// Missing from/to should return 400.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/storage/synthetic/demo/evaluation?"+extentParams, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	// to before from should also return 400.
	req = httptest.NewRequest(http.MethodGet,
		"/api/v1/storage/synthetic/demo/evaluation?from=2026-01-02T00:00:00Z&to=2026-01-01T00:00:00Z&"+extentParams, nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestUnknownModelReturns404(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/storage/synthetic/icon/index", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/storage/nosuch/demo/index", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

// TestUpdateThenEvaluation drives a forced refresh through the API and checks
// that the evaluation endpoint reports the refreshed range as covered.
func TestUpdateThenEvaluation(t *testing.T) {
	app := newTestApp(t)
	window := "from=2026-01-01T00:00:00Z&to=2026-01-02T00:00:00Z&" + extentParams

	req := httptest.NewRequest(http.MethodPost, "/api/v1/storage/synthetic/demo/update?"+window, nil)
	resp, err := app.Test(req, 10_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/storage/synthetic/demo/evaluation?"+window, nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var report storage.CoverageReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Segments) != 1 {
		t.Fatalf("expected one segment, got %d", len(report.Segments))
	}
	if report.Segments[0].Status != storage.StatusFresh {
		t.Fatalf("expected status %q, got %q", storage.StatusFresh, report.Segments[0].Status)
	}
}

func TestClearRemovesPartitions(t *testing.T) {
	app := newTestApp(t)
	window := "from=2026-01-01T00:00:00Z&to=2026-01-02T00:00:00Z&" + extentParams

	req := httptest.NewRequest(http.MethodPost, "/api/v1/storage/synthetic/demo/update?"+window, nil)
	if _, err := app.Test(req, 10_000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/storage/synthetic/demo", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/storage/synthetic/demo/index", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Partitions []storage.Partition `json:"partitions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(body.Partitions) != 0 {
		t.Fatalf("expected empty index after clear, got %d partitions", len(body.Partitions))
	}
}

func TestSourcesListing(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sources", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var body struct {
		Sources []struct {
			ID     string `json:"id"`
			Models []struct {
				Metadata model.Metadata `json:"metadata"`
			} `json:"models"`
		} `json:"sources"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(body.Sources) != 1 || body.Sources[0].ID != "synthetic" {
		t.Fatalf("unexpected sources listing: %+v", body.Sources)
	}
	if len(body.Sources[0].Models) != 1 || body.Sources[0].Models[0].Metadata.Code != "demo" {
		t.Fatalf("unexpected models listing: %+v", body.Sources[0].Models)
	}
}
