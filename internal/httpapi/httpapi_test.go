package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pescapos/backend/internal/cache"
	"pescapos/backend/internal/report"
	"pescapos/backend/internal/service"
	"pescapos/backend/internal/store/memory"
)

func newTestHandler() http.Handler {
	repo := memory.NewSeeded()
	svc := service.New(repo)
	reports := report.NewEngine(repo, cache.NoopReportCache{})
	return New(svc, reports, "http://127.0.0.1:3000").Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := doJSON(t, newTestHandler(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestListClients(t *testing.T) {
	rec := doJSON(t, newTestHandler(), http.MethodGet, "/api/v1/clients", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var clients []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &clients); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(clients) == 0 {
		t.Fatalf("expected seeded clients")
	}
}

func TestCreateAndCancelSale(t *testing.T) {
	handler := newTestHandler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", `{
		"payment_method": "DINHEIRO",
		"items": [{"product_id": "prod-seed-1", "quantity": "2", "unit_price": "22.90"}]
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Sale struct {
			ID    string `json:"id"`
			Total string `json:"total"`
		} `json:"sale"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Sale.ID == "" {
		t.Fatalf("expected sale id in %s", rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales/"+resp.Sale.ID+"/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status %d: %s", rec.Code, rec.Body.String())
	}

	// Second cancel conflicts.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales/"+resp.Sale.ID+"/cancel", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second cancel status %d, want 409", rec.Code)
	}
}

func TestCancelUnknownSaleMapsTo404(t *testing.T) {
	rec := doJSON(t, newTestHandler(), http.MethodPost, "/api/v1/sales/sale-missing/cancel", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestInvalidSaleMapsTo422(t *testing.T) {
	rec := doJSON(t, newTestHandler(), http.MethodPost, "/api/v1/sales", `{
		"payment_method": "ROTATIVO",
		"items": [{"product_id": "prod-seed-1", "quantity": "1", "unit_price": "10"}]
	}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422: %s", rec.Code, rec.Body.String())
	}
}

func TestMalformedJSONMapsTo400(t *testing.T) {
	rec := doJSON(t, newTestHandler(), http.MethodPost, "/api/v1/sales", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := doJSON(t, newTestHandler(), http.MethodDelete, "/api/v1/clients", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status %d, want 405", rec.Code)
	}
}

func TestReportsEndpoints(t *testing.T) {
	handler := newTestHandler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/reports/dre?month=2026-08", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dre status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/dre?month=nope", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad month status %d, want 422", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status %d", rec.Code)
	}
}

func TestBackupExportImport(t *testing.T) {
	handler := newTestHandler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/backup/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status %d", rec.Code)
	}
	exported := rec.Body.String()

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/backup/import", exported)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/backup/import", `{"foo": 1}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unrecognized import status %d, want 422", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	rec := doJSON(t, newTestHandler(), http.MethodOptions, "/api/v1/clients", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d, want 204", rec.Code)
	}
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "http://127.0.0.1:3000" {
		t.Fatalf("origin header %q", origin)
	}
}
