package server

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"option-pricer/internal/config"
	"option-pricer/internal/models"
	"option-pricer/internal/store"
)

func newTestServer(t *testing.T, withStore bool) *Server {
	t.Helper()
	dir := t.TempDir()

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	cfg.Server.RateLimit = 0 // tests drive requests back to back

	var st store.Store
	if withStore {
		sqlStore, err := store.NewSQLiteStore(filepath.Join(dir, "api_test.db"))
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		t.Cleanup(func() { sqlStore.Close() })
		st = sqlStore
	}

	return NewServer(cfg, zerolog.Nop(), st)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestPriceEndpointAnalytic(t *testing.T) {
	s := newTestServer(t, false)

	body := `{"kind":"call","strike":100,"maturity":1,"spot":100,"rate":0.05,"vol":0.2}`
	rec := doRequest(t, s, "POST", "/api/v1/price", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp priceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if math.Abs(resp.Price-10.450584) > 1e-4 {
		t.Errorf("price = %f, want ~10.450584", resp.Price)
	}
	if resp.Method != string(models.MethodAnalytic) {
		t.Errorf("method = %q", resp.Method)
	}
	if resp.StdErr != nil {
		t.Error("analytic price should have no standard error")
	}
}

func TestPriceEndpointSimulation(t *testing.T) {
	s := newTestServer(t, false)

	body := `{"kind":"call","strike":100,"maturity":1,"spot":100,"rate":0.05,"vol":0.2,"method":"simulation","paths":2000,"seed":7}`
	rec := doRequest(t, s, "POST", "/api/v1/price", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp priceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.StdErr == nil || *resp.StdErr <= 0 {
		t.Fatal("expected a positive standard error")
	}
	if resp.CILow == nil || resp.CIHigh == nil || *resp.CILow >= *resp.CIHigh {
		t.Error("expected a non-empty confidence interval")
	}
	if resp.Paths != 2000 {
		t.Errorf("paths = %d", resp.Paths)
	}
	if resp.Steps != 365 {
		t.Errorf("steps = %d, want 365 for a one-year maturity", resp.Steps)
	}
}

func TestPriceEndpointValidation(t *testing.T) {
	s := newTestServer(t, false)

	body := `{"kind":"call","strike":100,"maturity":1,"spot":-5,"rate":0.05,"vol":0.2}`
	rec := doRequest(t, s, "POST", "/api/v1/price", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "spot") {
		t.Errorf("error should name the parameter: %s", rec.Body.String())
	}
}

func TestPriceEndpointAmericanAnalytic(t *testing.T) {
	s := newTestServer(t, false)

	body := `{"kind":"put","style":"american","strike":100,"maturity":1,"spot":100,"rate":0.05,"vol":0.2,"method":"analytic"}`
	rec := doRequest(t, s, "POST", "/api/v1/price", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body.String())
	}
}

func TestPriceEndpointRequestCaps(t *testing.T) {
	s := newTestServer(t, false)

	body := `{"kind":"call","strike":100,"maturity":1,"spot":100,"rate":0.05,"vol":0.2,"method":"simulation","paths":100000000}`
	rec := doRequest(t, s, "POST", "/api/v1/price", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "paths") {
		t.Errorf("error should name the capped parameter: %s", rec.Body.String())
	}
}

func TestPriceEndpointBadBody(t *testing.T) {
	s := newTestServer(t, false)

	rec := doRequest(t, s, "POST", "/api/v1/price", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGreeksEndpointAnalytic(t *testing.T) {
	s := newTestServer(t, false)

	body := `{"kind":"call","strike":100,"maturity":1,"spot":100,"rate":0.05,"vol":0.2}`
	rec := doRequest(t, s, "POST", "/api/v1/greeks", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp greeksResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if math.Abs(resp.Delta-0.636831) > 1e-4 {
		t.Errorf("delta = %f, want ~0.636831", resp.Delta)
	}
	if resp.Method != string(models.GreeksAnalytic) {
		t.Errorf("method = %q", resp.Method)
	}
	if resp.Bumps != nil {
		t.Error("analytic greeks should carry no bump sizes")
	}
}

func TestGreeksEndpointLattice(t *testing.T) {
	s := newTestServer(t, false)

	body := `{"kind":"call","strike":100,"maturity":1,"spot":100,"rate":0.05,"vol":0.2,"method":"lattice","steps":200}`
	rec := doRequest(t, s, "POST", "/api/v1/greeks", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp greeksResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Method != string(models.GreeksFiniteDifference) {
		t.Errorf("method = %q", resp.Method)
	}
	if resp.Bumps == nil || resp.Bumps.Spot <= 0 {
		t.Error("finite-difference greeks should report their bump sizes")
	}
	if resp.Delta < 0.55 || resp.Delta > 0.72 {
		t.Errorf("delta = %f outside the plausible range", resp.Delta)
	}
}

func TestMethodsEndpoint(t *testing.T) {
	s := newTestServer(t, false)

	rec := doRequest(t, s, "GET", "/api/v1/methods", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var methods []methodInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &methods); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(methods) != 3 {
		t.Fatalf("expected 3 methods, got %d", len(methods))
	}
	names := map[string]bool{}
	for _, m := range methods {
		names[m.Name] = true
	}
	for _, want := range []string{"black-scholes", "crr-binomial", "gbm-monte-carlo"} {
		if !names[want] {
			t.Errorf("missing method %q", want)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, false)

	for _, path := range []string{"/api/v1/healthz", "/healthz"} {
		rec := doRequest(t, s, "GET", path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
			t.Errorf("unexpected health body from %s: %s", path, rec.Body.String())
		}
	}
}

func TestValuationJournalFlow(t *testing.T) {
	s := newTestServer(t, true)

	body := `{"symbol":"ACME","kind":"call","strike":100,"maturity":1,"spot":100,"rate":0.05,"vol":0.2,"save":true}`
	rec := doRequest(t, s, "POST", "/api/v1/price", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp priceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ValuationID == "" {
		t.Fatal("expected a valuation id after save")
	}

	rec = doRequest(t, s, "GET", "/api/v1/valuations?symbol=ACME", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listed []models.Valuation
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != resp.ValuationID {
		t.Fatalf("unexpected journal listing: %+v", listed)
	}

	rec = doRequest(t, s, "GET", "/api/v1/valuations/"+resp.ValuationID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doRequest(t, s, "GET", "/api/v1/valuations/VAL-MISSING", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing valuation status = %d, want 404", rec.Code)
	}
}

func TestValuationsWithoutStore(t *testing.T) {
	s := newTestServer(t, false)

	rec := doRequest(t, s, "GET", "/api/v1/valuations", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	body := `{"kind":"call","strike":100,"maturity":1,"spot":100,"rate":0.05,"vol":0.2,"save":true}`
	rec = doRequest(t, s, "POST", "/api/v1/price", body)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("save without store status = %d, want 503", rec.Code)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	cfg.Server.RateLimit = 1
	cfg.Server.RateBurst = 2

	s := NewServer(cfg, zerolog.Nop(), nil)

	var limited bool
	for i := 0; i < 3; i++ {
		rec := doRequest(t, s, "GET", "/healthz", "")
		if rec.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("expected the third request to hit the rate limit")
	}
}
