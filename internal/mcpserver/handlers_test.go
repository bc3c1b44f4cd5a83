package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

func newTestSetup(handler http.Handler) (*Handlers, func()) {
	ts := httptest.NewServer(handler)
	cfg := Config{
		APIURL: ts.URL,
		APIKey: "sk_test_key",
	}
	client := NewFraudlensClient(cfg)
	h := NewHandlers(client)
	return h, ts.Close
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func pendingAlert(id string) map[string]any {
	return map[string]any{
		"id":            id,
		"transactionId": "txn_1",
		"accountId":     "acct_9",
		"amount":        1200.50,
		"merchant":      "HIGH_RISK_VENDOR",
		"score":         0.73,
		"riskLevel":     "HIGH",
		"status":        "PENDING",
		"reasons": []map[string]any{
			{"code": "VELOCITY_HIGH", "message": "High transaction velocity detected", "severity": "high"},
			{"code": "HIGH_RISK_MERCHANT", "message": "Transaction with known high-risk merchant", "severity": "high"},
		},
	}
}

// ============================================================
// Client tests
// ============================================================

func TestClient_DoRequest_AuthHeader(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := NewFraudlensClient(Config{APIURL: ts.URL, APIKey: "sk_secret123"})
	_, err := client.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk_secret123", gotAuth)
}

func TestClient_DoRequest_NoAuthHeaderWithoutKey(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := NewFraudlensClient(Config{APIURL: ts.URL})
	_, err := client.GetStats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestClient_DoRequest_HTTPError_WithAPIMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "forbidden",
			"message": "Invalid API key",
		})
	}))
	defer ts.Close()

	client := NewFraudlensClient(Config{APIURL: ts.URL, APIKey: "bad"})
	_, err := client.GetStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestClient_DoRequest_HTTPError_NonJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	}))
	defer ts.Close()

	client := NewFraudlensClient(Config{APIURL: ts.URL, APIKey: "k"})
	_, err := client.GetStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestClient_DoRequest_ConnectionRefused(t *testing.T) {
	client := NewFraudlensClient(Config{APIURL: "http://127.0.0.1:1", APIKey: "k"})
	_, err := client.GetStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestClient_DoRequest_CancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := NewFraudlensClient(Config{APIURL: ts.URL, APIKey: "k"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately
	_, err := client.GetStats(ctx)
	require.Error(t, err)
}

func TestClient_ListAlerts_QueryParams(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PENDING", r.URL.Query().Get("filter"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"alerts":[]}`))
	}))
	defer ts.Close()

	client := NewFraudlensClient(Config{APIURL: ts.URL, APIKey: "k"})
	_, err := client.ListAlerts(context.Background(), "PENDING", 5)
	require.NoError(t, err)
}

func TestClient_ListAlerts_ZeroLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("limit"), "limit=0 should not be sent")
		assert.Empty(t, r.URL.Query().Get("filter"))
		_, _ = w.Write([]byte(`{"alerts":[]}`))
	}))
	defer ts.Close()

	client := NewFraudlensClient(Config{APIURL: ts.URL, APIKey: "k"})
	_, err := client.ListAlerts(context.Background(), "", 0)
	require.NoError(t, err)
}

func TestClient_ReviewAlert_RequestBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v1/alerts/alt-42", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		var m map[string]string
		_ = json.Unmarshal(body, &m)
		assert.Equal(t, "BLOCKED", m["action"])
		assert.Equal(t, "analyst1", m["assignedTo"])
		assert.Equal(t, "confirmed fraud", m["comments"])

		_ = json.NewEncoder(w).Encode(map[string]any{"alert": map[string]any{"id": "alt-42", "status": "BLOCKED"}})
	}))
	defer ts.Close()

	client := NewFraudlensClient(Config{APIURL: ts.URL, APIKey: "k"})
	_, err := client.ReviewAlert(context.Background(), "alt-42", "BLOCKED", "analyst1", "confirmed fraud")
	require.NoError(t, err)
}

// ============================================================
// Handler: list_alerts
// ============================================================

func TestHandleListAlerts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/alerts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_test_key", r.Header.Get("Authorization"))
		assert.Equal(t, "PENDING", r.URL.Query().Get("filter"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"alerts": []map[string]any{pendingAlert("alt_1"), pendingAlert("alt_2")},
			"count":  2,
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleListAlerts(context.Background(), makeRequest(map[string]any{
		"filter": "PENDING",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Found 2 alert(s)")
	assert.Contains(t, text, "alt_1")
	assert.Contains(t, text, "0.730")
	assert.Contains(t, text, "HIGH")
	assert.Contains(t, text, "HIGH_RISK_VENDOR")
}

func TestHandleListAlerts_Empty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/alerts", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"alerts": []map[string]any{}, "count": 0})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleListAlerts(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "No alerts found")
}

func TestHandleListAlerts_APIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/alerts", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "internal", "message": "db down"})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleListAlerts(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "db down")
}

// ============================================================
// Handler: get_alert
// ============================================================

func TestHandleGetAlert(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/alerts/alt_1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"alert": pendingAlert("alt_1")})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleGetAlert(context.Background(), makeRequest(map[string]any{
		"alert_id": "alt_1",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "alt_1")
	assert.Contains(t, text, "PENDING")
	assert.Contains(t, text, "VELOCITY_HIGH")
	assert.Contains(t, text, "High transaction velocity detected")
	assert.Contains(t, text, "$1200.50")
}

func TestHandleGetAlert_MissingID(t *testing.T) {
	h := NewHandlers(NewFraudlensClient(Config{}))
	result, err := h.HandleGetAlert(context.Background(), makeRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "alert_id is required")
}

func TestHandleGetAlert_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/alerts/alt_missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "not_found", "message": "Alert not found"})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleGetAlert(context.Background(), makeRequest(map[string]any{
		"alert_id": "alt_missing",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Alert not found")
}

// ============================================================
// Handler: review_alert
// ============================================================

func TestHandleReviewAlert(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/alerts/alt_1", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "BLOCKED", body["action"])
		assert.Equal(t, "analyst1", body["assignedTo"])

		reviewed := pendingAlert("alt_1")
		reviewed["status"] = "BLOCKED"
		reviewed["action"] = "BLOCKED"
		reviewed["assignedTo"] = "analyst1"
		_ = json.NewEncoder(w).Encode(map[string]any{"alert": reviewed})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleReviewAlert(context.Background(), makeRequest(map[string]any{
		"alert_id": "alt_1",
		"action":   "BLOCKED",
		"reviewer": "analyst1",
		"note":     "confirmed fraud",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "alt_1")
	assert.Contains(t, text, "BLOCKED")
	assert.Contains(t, text, "analyst1")
}

func TestHandleReviewAlert_MissingID(t *testing.T) {
	h := NewHandlers(NewFraudlensClient(Config{}))
	result, err := h.HandleReviewAlert(context.Background(), makeRequest(map[string]any{
		"action": "APPROVED",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "alert_id is required")
}

func TestHandleReviewAlert_MissingAction(t *testing.T) {
	h := NewHandlers(NewFraudlensClient(Config{}))
	result, err := h.HandleReviewAlert(context.Background(), makeRequest(map[string]any{
		"alert_id": "alt_1",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "action is required")
}

func TestHandleReviewAlert_AlreadyReviewed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/alerts/alt_done", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(409)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "already_reviewed",
			"message": "Alert has already been reviewed",
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleReviewAlert(context.Background(), makeRequest(map[string]any{
		"alert_id": "alt_done",
		"action":   "APPROVED",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "already been reviewed")
}

// ============================================================
// Handler: get_stats
// ============================================================

func TestHandleGetStats(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"stats": map[string]any{
				"total":         42.0,
				"pending":       10.0,
				"approved":      20.0,
				"blocked":       8.0,
				"escalated":     4.0,
				"critical":      5.0,
				"high":          12.0,
				"blockedAmount": 96000.75,
				"avgScore":      0.412,
			},
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleGetStats(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "42")
	assert.Contains(t, text, "Pending")
	assert.Contains(t, text, "10")
	assert.Contains(t, text, "$96000.75")
	assert.Contains(t, text, "0.412")
}

func TestHandleGetStats_APIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "unavailable", "message": "maintenance"})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleGetStats(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "maintenance")
}

// ============================================================
// Handler: lookup_transaction
// ============================================================

func TestHandleLookupTransaction(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/transactions/txn_1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"transaction": map[string]any{
				"id":        "txn_1",
				"accountId": "acct_9",
				"amount":    75000.0,
				"merchant":  "CRYPTO_EXCHANGE",
				"category":  "CRYPTO",
				"score":     0.61,
				"riskLevel": "HIGH",
				"contributions": map[string]any{
					"isHighAmount":         0.08,
					"isSuspiciousMerchant": 0.15,
				},
			},
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleLookupTransaction(context.Background(), makeRequest(map[string]any{
		"transaction_id": "txn_1",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "txn_1")
	assert.Contains(t, text, "acct_9")
	assert.Contains(t, text, "CRYPTO_EXCHANGE")
	assert.Contains(t, text, "0.610")
	assert.Contains(t, text, "isSuspiciousMerchant")
}

func TestHandleLookupTransaction_MissingID(t *testing.T) {
	h := NewHandlers(NewFraudlensClient(Config{}))
	result, err := h.HandleLookupTransaction(context.Background(), makeRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "transaction_id is required")
}

func TestHandleLookupTransaction_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/transactions/txn_missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "not_found", "message": "Transaction not found"})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleLookupTransaction(context.Background(), makeRequest(map[string]any{
		"transaction_id": "txn_missing",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Transaction not found")
}

// ============================================================
// Handler: list_transactions
// ============================================================

func TestHandleListTransactions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"transactions": []map[string]any{
				{"id": "txn_1", "amount": 120.0, "merchant": "Corner Grocery", "score": 0.0, "riskLevel": "LOW"},
				{"id": "txn_2", "amount": 80000.0, "merchant": "CRYPTO_EXCHANGE", "score": 0.23, "riskLevel": "LOW"},
			},
			"count": 2,
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleListTransactions(context.Background(), makeRequest(map[string]any{
		"limit": float64(3), // JSON numbers come as float64
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Found 2 transaction(s)")
	assert.Contains(t, text, "txn_1")
	assert.Contains(t, text, "Corner Grocery")
	assert.Contains(t, text, "CRYPTO_EXCHANGE")
}

func TestHandleListTransactions_Empty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"transactions": []map[string]any{}, "count": 0})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleListTransactions(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "No transactions found")
}

// ============================================================
// Formatting & parsing unit tests
// ============================================================

func TestFormatAlertList_MalformedJSON(t *testing.T) {
	_, err := formatAlertList(json.RawMessage(`not json`))
	assert.Error(t, err)
}

func TestFormatAlertDetail_FlatAlert(t *testing.T) {
	raw := mustMarshal(pendingAlert("alt_flat"))
	text, err := formatAlertDetail(raw)
	require.NoError(t, err)
	assert.Contains(t, text, "alt_flat")
}

func TestExtractAlert_Nested(t *testing.T) {
	raw := json.RawMessage(`{"alert":{"id":"alt_nested","status":"PENDING"}}`)
	alert, err := extractAlert(raw)
	require.NoError(t, err)
	assert.Equal(t, "alt_nested", getString(alert, "id"))
}

func TestExtractAlert_NoAlert(t *testing.T) {
	raw := json.RawMessage(`{"status":"ok"}`)
	_, err := extractAlert(raw)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no alert")
}

func TestExtractAlert_MalformedJSON(t *testing.T) {
	_, err := extractAlert(json.RawMessage(`not json`))
	assert.Error(t, err)
}

func TestFormatStats_MalformedJSON(t *testing.T) {
	_, err := formatStats(json.RawMessage(`garbage`))
	assert.Error(t, err)
}

func TestFormatStats_FlatResponse(t *testing.T) {
	raw := json.RawMessage(`{"total": 3, "pending": 1, "avgScore": 0.5}`)
	text, err := formatStats(raw)
	require.NoError(t, err)
	assert.Contains(t, text, "Total")
	assert.Contains(t, text, "0.500")
}

func TestFormatTransactionDetail_MalformedJSON(t *testing.T) {
	_, err := formatTransactionDetail(json.RawMessage(`garbage`))
	assert.Error(t, err)
}

func TestFormatJSON_ValidJSON(t *testing.T) {
	result := formatJSON(json.RawMessage(`{"a":1,"b":"two"}`))
	assert.Contains(t, result, "\"a\": 1")
	assert.Contains(t, result, "\"b\": \"two\"")
}

func TestFormatJSON_InvalidJSON(t *testing.T) {
	result := formatJSON(json.RawMessage(`not json`))
	assert.Equal(t, "not json", result)
}

func TestGetString_Fallback(t *testing.T) {
	m := map[string]any{"foo": "bar"}
	assert.Equal(t, "bar", getString(m, "missing", "foo"))
	assert.Equal(t, "", getString(m, "missing1", "missing2"))
}

func TestGetString_NumericValue(t *testing.T) {
	m := map[string]any{"count": float64(42)}
	assert.Equal(t, "42", getString(m, "count"))
}

func TestGetFloat_Fallback(t *testing.T) {
	m := map[string]any{"score": 95.5}
	v, ok := getFloat(m, "missing", "score")
	assert.True(t, ok)
	assert.Equal(t, 95.5, v)

	_, ok = getFloat(m, "missing1", "missing2")
	assert.False(t, ok)
}

func TestGetFloat_NonNumeric(t *testing.T) {
	m := map[string]any{"score": "not a number"}
	_, ok := getFloat(m, "score")
	assert.False(t, ok)
}

// ============================================================
// Concurrency / race detection
// ============================================================

func TestHandlers_ConcurrentCalls(t *testing.T) {
	var callCount atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		callCount.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"stats": map[string]any{"total": 1.0}})
	})
	mux.HandleFunc("/v1/alerts", func(w http.ResponseWriter, r *http.Request) {
		callCount.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"alerts": []map[string]any{}})
	})
	mux.HandleFunc("/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		callCount.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"transactions": []map[string]any{}})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			h.HandleGetStats(context.Background(), makeRequest(nil))
			h.HandleListAlerts(context.Background(), makeRequest(nil))
			h.HandleListTransactions(context.Background(), makeRequest(nil))
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}
	assert.Equal(t, int32(60), callCount.Load())
}

// ============================================================
// Server wiring test
// ============================================================

func TestNewMCPServer_RegistersAllTools(t *testing.T) {
	s := NewMCPServer(Config{APIURL: "http://localhost:8080", APIKey: "k"})
	require.NotNil(t, s)
	// The server should not be nil — that's the main assertion.
	// We can't easily inspect registered tools without calling ListTools,
	// but we can verify it doesn't panic.
}

// ============================================================
// Edge cases: handler never returns Go error
// ============================================================

func TestHandlers_NeverReturnGoError(t *testing.T) {
	// All handlers should return (result, nil) even on failures.
	// The failure is encoded in result.IsError, not in the Go error.
	h := NewHandlers(NewFraudlensClient(Config{
		APIURL: "http://127.0.0.1:1", // unreachable
		APIKey: "k",
	}))

	tests := []struct {
		name string
		fn   func() (*mcp.CallToolResult, error)
	}{
		{"ListAlerts", func() (*mcp.CallToolResult, error) {
			return h.HandleListAlerts(context.Background(), makeRequest(nil))
		}},
		{"GetAlert", func() (*mcp.CallToolResult, error) {
			return h.HandleGetAlert(context.Background(), makeRequest(map[string]any{"alert_id": "alt_1"}))
		}},
		{"ReviewAlert", func() (*mcp.CallToolResult, error) {
			return h.HandleReviewAlert(context.Background(), makeRequest(map[string]any{"alert_id": "alt_1", "action": "APPROVED"}))
		}},
		{"GetStats", func() (*mcp.CallToolResult, error) {
			return h.HandleGetStats(context.Background(), makeRequest(nil))
		}},
		{"LookupTransaction", func() (*mcp.CallToolResult, error) {
			return h.HandleLookupTransaction(context.Background(), makeRequest(map[string]any{"transaction_id": "txn_1"}))
		}},
		{"ListTransactions", func() (*mcp.CallToolResult, error) {
			return h.HandleListTransactions(context.Background(), makeRequest(nil))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.fn()
			assert.NoError(t, err, "handler should never return Go error")
			assert.NotNil(t, result, "handler should always return a result")
			assert.True(t, result.IsError, "unreachable server should produce isError result")
		})
	}
}
