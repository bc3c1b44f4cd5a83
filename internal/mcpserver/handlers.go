package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *FraudlensClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *FraudlensClient) *Handlers {
	return &Handlers{client: client}
}

// HandleListAlerts lists alerts in the review queue.
func (h *Handlers) HandleListAlerts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := req.GetString("filter", "")
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListAlerts(ctx, filter, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list alerts: %v", err)), nil
	}

	text, err := formatAlertList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse alerts: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetAlert returns full detail for one alert.
func (h *Handlers) HandleGetAlert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alertID := req.GetString("alert_id", "")
	if alertID == "" {
		return mcp.NewToolResultError("alert_id is required"), nil
	}

	raw, err := h.client.GetAlert(ctx, alertID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get alert: %v", err)), nil
	}

	text, err := formatAlertDetail(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse alert: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleReviewAlert applies a verdict to a pending alert.
func (h *Handlers) HandleReviewAlert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alertID := req.GetString("alert_id", "")
	if alertID == "" {
		return mcp.NewToolResultError("alert_id is required"), nil
	}
	action := req.GetString("action", "")
	if action == "" {
		return mcp.NewToolResultError("action is required"), nil
	}
	reviewer := req.GetString("reviewer", "mcp")
	note := req.GetString("note", "")

	raw, err := h.client.ReviewAlert(ctx, alertID, action, reviewer, note)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Review failed: %v", err)), nil
	}

	alert, err := extractAlert(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse alert: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Alert %s reviewed.\n"+
			"Verdict: %s\n"+
			"Transaction: %s\n"+
			"Reviewer: %s",
		alertID, getString(alert, "status"), getString(alert, "transactionId"), reviewer)), nil
}

// HandleGetStats returns queue-level statistics.
func (h *Handlers) HandleGetStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get stats: %v", err)), nil
	}

	text, err := formatStats(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse stats: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleLookupTransaction returns one scored transaction.
func (h *Handlers) HandleLookupTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	txnID := req.GetString("transaction_id", "")
	if txnID == "" {
		return mcp.NewToolResultError("transaction_id is required"), nil
	}

	raw, err := h.client.GetTransaction(ctx, txnID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to look up transaction: %v", err)), nil
	}

	text, err := formatTransactionDetail(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse transaction: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListTransactions lists recently scored transactions.
func (h *Handlers) HandleListTransactions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListTransactions(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list transactions: %v", err)), nil
	}

	text, err := formatTransactionList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse transactions: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// --- Formatting helpers ---

func formatAlertList(raw json.RawMessage) (string, error) {
	var resp struct {
		Alerts []map[string]any `json:"alerts"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected alerts response format")
	}

	if len(resp.Alerts) == 0 {
		return "No alerts found matching your criteria.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d alert(s):\n\n", len(resp.Alerts))
	for i, a := range resp.Alerts {
		fmt.Fprintf(&sb, "%d. %s [%s]\n", i+1, getString(a, "id"), getString(a, "status"))
		score, _ := getFloat(a, "score")
		fmt.Fprintf(&sb, "   Score: %.3f (%s)\n", score, getString(a, "riskLevel"))
		amount, _ := getFloat(a, "amount")
		fmt.Fprintf(&sb, "   Transaction: %s | Account: %s | $%.2f at %s\n",
			getString(a, "transactionId"), getString(a, "accountId"), amount, getString(a, "merchant"))
		if by := getString(a, "assignedTo"); by != "" {
			fmt.Fprintf(&sb, "   Reviewed by: %s\n", by)
		}
		if i < len(resp.Alerts)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func formatAlertDetail(raw json.RawMessage) (string, error) {
	alert, err := extractAlert(raw)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Alert %s [%s]\n", getString(alert, "id"), getString(alert, "status"))
	score, _ := getFloat(alert, "score")
	fmt.Fprintf(&sb, "Risk: %.3f (%s)\n", score, getString(alert, "riskLevel"))
	amount, _ := getFloat(alert, "amount")
	fmt.Fprintf(&sb, "Transaction: %s\n", getString(alert, "transactionId"))
	fmt.Fprintf(&sb, "Account: %s\n", getString(alert, "accountId"))
	fmt.Fprintf(&sb, "Amount: $%.2f at %s\n", amount, getString(alert, "merchant"))

	if reasons, ok := alert["reasons"].([]any); ok && len(reasons) > 0 {
		sb.WriteString("\nReasons:\n")
		for _, r := range reasons {
			m, ok := r.(map[string]any)
			if !ok {
				continue
			}
			fmt.Fprintf(&sb, "  - [%s] %s: %s\n",
				getString(m, "severity"), getString(m, "code"), getString(m, "message"))
		}
	}

	if by := getString(alert, "assignedTo"); by != "" {
		fmt.Fprintf(&sb, "\nReviewed by %s", by)
		if note := getString(alert, "comments"); note != "" {
			fmt.Fprintf(&sb, ": %s", note)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func extractAlert(raw json.RawMessage) (map[string]any, error) {
	var resp map[string]any
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	// Try resp.alert
	if alert, ok := resp["alert"].(map[string]any); ok {
		return alert, nil
	}
	// Try top level
	if _, ok := resp["id"]; ok {
		return resp, nil
	}
	return nil, fmt.Errorf("no alert in response: %s", string(raw))
}

func formatStats(raw json.RawMessage) (string, error) {
	var resp map[string]any
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	stats := resp
	if s, ok := resp["stats"].(map[string]any); ok {
		stats = s
	}

	var sb strings.Builder
	sb.WriteString("Alert Queue:\n")
	if v, ok := getFloat(stats, "total"); ok {
		fmt.Fprintf(&sb, "  Total:     %.0f\n", v)
	}
	if v, ok := getFloat(stats, "pending"); ok {
		fmt.Fprintf(&sb, "  Pending:   %.0f\n", v)
	}
	if v, ok := getFloat(stats, "approved"); ok {
		fmt.Fprintf(&sb, "  Approved:  %.0f\n", v)
	}
	if v, ok := getFloat(stats, "blocked"); ok {
		fmt.Fprintf(&sb, "  Blocked:   %.0f\n", v)
	}
	if v, ok := getFloat(stats, "escalated"); ok {
		fmt.Fprintf(&sb, "  Escalated: %.0f\n", v)
	}
	if v, ok := getFloat(stats, "critical"); ok {
		fmt.Fprintf(&sb, "  Critical:  %.0f\n", v)
	}
	if v, ok := getFloat(stats, "high"); ok {
		fmt.Fprintf(&sb, "  High:      %.0f\n", v)
	}
	if v, ok := getFloat(stats, "blockedAmount"); ok {
		fmt.Fprintf(&sb, "  Blocked amount: $%.2f\n", v)
	}
	if v, ok := getFloat(stats, "avgScore"); ok {
		fmt.Fprintf(&sb, "  Average score:  %.3f\n", v)
	}
	return sb.String(), nil
}

func formatTransactionDetail(raw json.RawMessage) (string, error) {
	var resp map[string]any
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	txn := resp
	if t, ok := resp["transaction"].(map[string]any); ok {
		txn = t
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Transaction %s\n", getString(txn, "id"))
	fmt.Fprintf(&sb, "Account: %s\n", getString(txn, "accountId"))
	amount, _ := getFloat(txn, "amount")
	fmt.Fprintf(&sb, "Amount: $%.2f at %s (%s)\n", amount, getString(txn, "merchant"), getString(txn, "category"))
	score, _ := getFloat(txn, "score")
	fmt.Fprintf(&sb, "Score: %.3f (%s)\n", score, getString(txn, "riskLevel"))

	if contribs, ok := txn["contributions"].(map[string]any); ok && len(contribs) > 0 {
		sb.WriteString("\nScore contributions:\n")
		fmt.Fprintf(&sb, "%s", formatJSON(mustMarshal(contribs)))
	}
	return sb.String(), nil
}

func formatTransactionList(raw json.RawMessage) (string, error) {
	var resp struct {
		Transactions []map[string]any `json:"transactions"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected transactions response format")
	}

	if len(resp.Transactions) == 0 {
		return "No transactions found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d transaction(s):\n\n", len(resp.Transactions))
	for i, t := range resp.Transactions {
		amount, _ := getFloat(t, "amount")
		score, _ := getFloat(t, "score")
		fmt.Fprintf(&sb, "%d. %s | $%.2f at %s | score %.3f (%s)\n",
			i+1, getString(t, "id"), amount, getString(t, "merchant"), score, getString(t, "riskLevel"))
	}
	return sb.String(), nil
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map, trying multiple key names.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
