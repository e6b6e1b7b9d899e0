// Package mcp exposes read-only quote and catalog data as MCP tools so
// agent clients can inspect the service without touching its state.
package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"covergate-backend/storage/cover"
)

// MCPServer wraps the mcp-go server with our business logic
type MCPServer struct {
	mcpServer *server.MCPServer
	store     cover.Store
}

// NewMCPServer creates a new MCP server using the mcp-go library
func NewMCPServer(store cover.Store) *MCPServer {
	mcpServer := server.NewMCPServer(
		"CoverGate MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s := &MCPServer{
		mcpServer: mcpServer,
		store:     store,
	}

	s.registerTools()
	return s
}

// GetMCPServer returns the underlying MCP server for transport setup
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// registerTools registers all MCP tools with the server. Every tool is
// read-only; lifecycle transitions stay behind the HTTP API's auth.
func (s *MCPServer) registerTools() {
	s.registerListProvidersTool()
	s.registerGetQuoteTool()
	s.registerQuoteStatusTool()
	s.registerListQuotesTool()
	s.registerPendingAmountsTool()
}

func (s *MCPServer) registerListProvidersTool() {
	tool := mcp.NewTool("list_providers",
		mcp.WithDescription("List configured cover providers"),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		providers, err := s.store.ListProviders(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list providers: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Found %d providers:\n\n%+v", len(providers), providers)), nil
	})
}

func (s *MCPServer) registerGetQuoteTool() {
	tool := mcp.NewTool("get_quote",
		mcp.WithDescription("Get details of a specific quote"),
		mcp.WithNumber("quote_id", mcp.Required(), mcp.Description("ID of quote to retrieve")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		quoteID, ok := request.GetArguments()["quote_id"].(float64)
		if !ok {
			return mcp.NewToolResultError("quote_id is required"), nil
		}

		quote, err := s.store.GetQuote(ctx, uint64(quoteID))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get quote: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Quote details:\n\n%+v", quote)), nil
	})
}

func (s *MCPServer) registerQuoteStatusTool() {
	tool := mcp.NewTool("quote_status",
		mcp.WithDescription("Derive the lifecycle status of a quote"),
		mcp.WithNumber("quote_id", mcp.Required(), mcp.Description("ID of quote")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		quoteID, ok := request.GetArguments()["quote_id"].(float64)
		if !ok {
			return mcp.NewToolResultError("quote_id is required"), nil
		}

		status, err := s.store.QuoteStatus(ctx, uint64(quoteID))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to derive status: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Quote %d status: %s", uint64(quoteID), status)), nil
	})
}

func (s *MCPServer) registerListQuotesTool() {
	tool := mcp.NewTool("list_quotes",
		mcp.WithDescription("List quotes with optional filtering"),
		mcp.WithNumber("provider_id", mcp.Description("Filter by provider ID")),
		mcp.WithString("owner", mcp.Description("Filter by owner identity")),
		mcp.WithString("payment_asset", mcp.Description("Filter by payment asset address")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of quotes to return")),
		mcp.WithNumber("offset", mcp.Description("Number of quotes to skip")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		var filter cover.QuoteFilter
		if v, ok := args["provider_id"].(float64); ok {
			filter.ProviderID = uint32(v)
		}
		if v, ok := args["owner"].(string); ok {
			filter.Owner = v
		}
		if v, ok := args["payment_asset"].(string); ok {
			filter.PaymentAsset = v
		}
		if v, ok := args["limit"].(float64); ok {
			filter.Limit = int(v)
		}
		if v, ok := args["offset"].(float64); ok {
			filter.Offset = int(v)
		}

		quotes, err := s.store.ListQuotes(ctx, filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list quotes: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Found %d quotes:\n\n%+v", len(quotes), quotes)), nil
	})
}

func (s *MCPServer) registerPendingAmountsTool() {
	tool := mcp.NewTool("pending_amounts",
		mcp.WithDescription("Snapshot the escrowed payment totals per asset"),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		amounts, err := s.store.PendingAmounts(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to read pending amounts: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Pending amounts:\n\n%+v", amounts)), nil
	})
}
