package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/rchauhan/fraudlens/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:                  "0",
		Env:                   "development",
		LogLevel:              "error",
		AlertThreshold:        0.4,
		VelocityWindowMinutes: 10,
		VelocityThreshold:     5,
		AmountThreshold:       1000,
		GeoDistanceKm:         500,
		Workers:               2,
		IngestBuffer:          64,
		RateLimitRPS:          1000,
		AdminSecret:           "test-secret",
	}
}

// newTestServer creates a server with in-memory stores
func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	t.Cleanup(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
	})
	return s
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/live", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/ready", nil)
	s.router.ServeHTTP(w, req)

	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"GET:/health",
		"GET:/health/live",
		"GET:/health/ready",
		"GET:/metrics",
		"GET:/ws",
		"GET:/api",
		"POST:/v1/transactions",
		"POST:/v1/transactions/batch",
		"GET:/v1/transactions",
		"GET:/v1/transactions/:id",
		"GET:/v1/alerts",
		"GET:/v1/alerts/:id",
		"PUT:/v1/alerts/:id",
		"GET:/v1/stats",
		"POST:/v1/webhooks",
		"GET:/v1/webhooks",
		"DELETE:/v1/webhooks/:webhookId",
		"DELETE:/v1/admin/data",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Core route %s not registered", e)
		}
	}
}

// ---------------------------------------------------------------------------
// Dashboard page test
// ---------------------------------------------------------------------------

func TestDashboardEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for dashboard, got %d", w.Code)
	}

	if w.Header().Get("Content-Type") == "" {
		t.Error("Expected Content-Type header")
	}
}

// ---------------------------------------------------------------------------
// API info test
// ---------------------------------------------------------------------------

func TestInfoEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if resp["modelVersion"] == nil || resp["modelVersion"] == "" {
		t.Error("Expected modelVersion in /api response")
	}
	if resp["alertThreshold"] != 0.4 {
		t.Errorf("Expected alertThreshold 0.4, got %v", resp["alertThreshold"])
	}
}

// ---------------------------------------------------------------------------
// End-to-end ingestion tests
// ---------------------------------------------------------------------------

func TestTransactionIngestion(t *testing.T) {
	s := newTestServer(t)

	body := `{
		"id": "txn_server_1",
		"accountId": "acct_server_1",
		"amount": 42.50,
		"merchant": "Coffee Shop",
		"category": "dining",
		"location": {"lat": 40.71, "lon": -74.00, "country": "US"}
	}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Result struct {
			Record struct {
				Transaction struct {
					ID string `json:"id"`
				} `json:"transaction"`
				Score     float64 `json:"score"`
				RiskLevel string  `json:"riskLevel"`
			} `json:"record"`
			Duplicate bool `json:"duplicate"`
		} `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Result.Record.Transaction.ID != "txn_server_1" {
		t.Errorf("Expected transaction id txn_server_1, got %q", resp.Result.Record.Transaction.ID)
	}
	if resp.Result.Record.RiskLevel == "" {
		t.Error("Expected a risk level on the scored record")
	}
	if resp.Result.Duplicate {
		t.Error("First ingestion should not be a duplicate")
	}

	// Replay returns 200 with the stored record and no second side effect
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest("POST", "/v1/transactions", strings.NewReader(body))
	req2.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w2, req2)

	if w2.Code != http.StatusOK {
		t.Fatalf("Expected 200 for replay, got %d: %s", w2.Code, w2.Body.String())
	}
}

func TestBatchIngestionAccepted(t *testing.T) {
	s := newTestServer(t)

	body := `{
		"transactions": [
			{"id": "txn_b1", "accountId": "acct_b", "amount": 10},
			{"id": "txn_b2", "accountId": "acct_b", "amount": 20}
		]
	}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/transactions/batch", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Accepted int `json:"accepted"`
		Dropped  int `json:"dropped"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Accepted != 2 || resp.Dropped != 0 {
		t.Errorf("Expected 2 accepted / 0 dropped, got %d / %d", resp.Accepted, resp.Dropped)
	}
}

func TestBatchIngestionRejectsEmptyBatch(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/transactions/batch", strings.NewReader(`{"transactions": []}`))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty batch, got %d", w.Code)
	}
}

func TestMalformedIDParamRejected(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/transactions/not%20a%20valid%20id", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed id, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Admin endpoint tests
// ---------------------------------------------------------------------------

func TestAdminWipeRequiresSecret(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", "/v1/admin/data", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without admin secret, got %d", w.Code)
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest("DELETE", "/v1/admin/data", nil)
	req2.Header.Set("X-Admin-Secret", "test-secret")
	s.router.ServeHTTP(w2, req2)

	if w2.Code != http.StatusOK {
		t.Errorf("Expected 200 with admin secret, got %d: %s", w2.Code, w2.Body.String())
	}
}

func TestWebhookManagementRequiresSecret(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/webhooks", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without admin secret, got %d", w.Code)
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest("GET", "/v1/webhooks", nil)
	req2.Header.Set("X-Admin-Secret", "test-secret")
	s.router.ServeHTTP(w2, req2)

	if w2.Code != http.StatusOK {
		t.Errorf("Expected 200 with admin secret, got %d: %s", w2.Code, w2.Body.String())
	}
}

// ---------------------------------------------------------------------------
// 404 test
// ---------------------------------------------------------------------------

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/nonexistent", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
