package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Fraudlens MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolListAlerts = mcp.NewTool("list_alerts",
	mcp.WithDescription(
		"List fraud alerts in the review queue. "+
			"Returns alert IDs, scores, risk levels, and current status. "+
			"Use this to see what needs review before triaging individual alerts."),
	mcp.WithString("filter",
		mcp.Description("Filter alerts: 'ALL', 'PENDING' (awaiting review), 'REVIEWED', 'HIGH', or 'CRITICAL'"),
		mcp.Enum("ALL", "PENDING", "REVIEWED", "HIGH", "CRITICAL")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of alerts to return (default 20)")),
)

var ToolGetAlert = mcp.NewTool("get_alert",
	mcp.WithDescription(
		"Get the full detail of one fraud alert, including the triggering "+
			"transaction, risk score, and the human-readable reason codes "+
			"explaining why it was flagged. Use this before reviewing an alert."),
	mcp.WithString("alert_id",
		mcp.Required(),
		mcp.Description("The alert ID (e.g. 'alt_1234...')")),
)

var ToolReviewAlert = mcp.NewTool("review_alert",
	mcp.WithDescription(
		"Apply a verdict to a pending fraud alert. "+
			"APPROVED clears the transaction as legitimate, BLOCKED marks it as fraud, "+
			"ESCALATED sends it to a senior analyst. "+
			"An alert can only be reviewed once; further verdicts are rejected."),
	mcp.WithString("alert_id",
		mcp.Required(),
		mcp.Description("The alert ID to review")),
	mcp.WithString("action",
		mcp.Required(),
		mcp.Description("The verdict: 'APPROVED', 'BLOCKED', or 'ESCALATED'"),
		mcp.Enum("APPROVED", "BLOCKED", "ESCALATED")),
	mcp.WithString("reviewer",
		mcp.Description("Name or ID of the reviewer applying the verdict")),
	mcp.WithString("note",
		mcp.Description("Optional note explaining the verdict")),
)

var ToolGetStats = mcp.NewTool("get_stats",
	mcp.WithDescription(
		"Get aggregate statistics for the alert queue: total alerts, pending "+
			"count, verdict breakdown, blocked dollar amount, and average risk score. "+
			"Use this for a queue health overview."),
)

var ToolLookupTransaction = mcp.NewTool("lookup_transaction",
	mcp.WithDescription(
		"Look up one scored transaction by ID. "+
			"Returns the transaction details, its risk score, risk level, and the "+
			"per-indicator score contributions."),
	mcp.WithString("transaction_id",
		mcp.Required(),
		mcp.Description("The transaction ID (e.g. 'txn_1234...')")),
)

var ToolListTransactions = mcp.NewTool("list_transactions",
	mcp.WithDescription(
		"List recently scored transactions, newest first. "+
			"Use this to scan recent activity or find a transaction ID."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of transactions to return (default 20)")),
)
