package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all Fraudlens triage tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("fraudlens", "1.0.0")
	client := NewFraudlensClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolListAlerts, h.HandleListAlerts)
	s.AddTool(ToolGetAlert, h.HandleGetAlert)
	s.AddTool(ToolReviewAlert, h.HandleReviewAlert)
	s.AddTool(ToolGetStats, h.HandleGetStats)
	s.AddTool(ToolLookupTransaction, h.HandleLookupTransaction)
	s.AddTool(ToolListTransactions, h.HandleListTransactions)

	return s
}
