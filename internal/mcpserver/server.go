// Copyright 2026 Snowbridge Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mcpserver exposes the CRUD client as MCP tools over stdio.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/snowbridge-io/snowbridge/internal/snow"
	"github.com/snowbridge-io/snowbridge/internal/tool"
)

// Server wraps the MCP server and the CRUD tool surface.
type Server struct {
	mcpServer *server.MCPServer
	adapter   *tool.Adapter
	tables    *snow.AllowList
	limiter   *rate.Limiter
	name      string
	version   string
	logger    *slog.Logger
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	// Name is the server name (default: "snowbridge")
	Name string

	// Version is the snowbridge version
	Version string

	// LogLevel controls logging verbosity (debug, info, warn, error)
	LogLevel string

	// Adapter executes CRUD tool calls, required.
	Adapter *tool.Adapter

	// Tables is the allow-list presented by the servicenow_tables tool.
	Tables *snow.AllowList

	// CallsPerMinute bounds total tool calls (default: 100).
	CallsPerMinute int
}

// createLogger creates a logger with the specified log level.
// Writes to stderr to avoid interfering with the MCP stdio protocol.
func createLogger(levelStr string) (*slog.Logger, error) {
	var level slog.Level

	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", levelStr)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler), nil
}

// NewServer creates an MCP server instance.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Adapter == nil {
		return nil, fmt.Errorf("adapter is required")
	}
	if config.Tables == nil {
		return nil, fmt.Errorf("table allow-list is required")
	}
	if config.Name == "" {
		config.Name = "snowbridge"
	}
	if config.Version == "" {
		config.Version = "dev"
	}
	callsPerMinute := config.CallsPerMinute
	if callsPerMinute <= 0 {
		callsPerMinute = 100
	}

	logger, err := createLogger(config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	s := &Server{
		mcpServer: server.NewMCPServer(config.Name, config.Version),
		adapter:   config.Adapter,
		tables:    config.Tables,
		limiter:   rate.NewLimiter(rate.Limit(float64(callsPerMinute)/60.0), callsPerMinute),
		name:      config.Name,
		version:   config.Version,
		logger:    logger,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers the CRUD tool surface with the MCP server.
func (s *Server) registerTools() {
	// Tool: servicenow_crud
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "servicenow_crud",
		Description: "Perform a create, read, update or delete operation on an allow-listed ServiceNow table. Always returns a JSON envelope with success, message, data and error_type fields.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"operation": map[string]interface{}{
					"type":        "string",
					"description": "One of: create, read, update, delete",
					"enum":        []string{"create", "read", "update", "delete"},
				},
				"table": map[string]interface{}{
					"type":        "string",
					"description": "Target table name (e.g. 'incident'). Must be on the allow-list; see servicenow_tables.",
				},
				"sys_id": map[string]interface{}{
					"type":        "string",
					"description": "32-character record identifier. Required for update and delete; optional for read.",
				},
				"data": map[string]interface{}{
					"type":        "object",
					"description": "Field values for create and update. A JSON object string is also accepted.",
				},
				"query": map[string]interface{}{
					"type":        "object",
					"description": "Field/value filters for read. Values support operator prefixes (>=, <=, !=, >, <) and 'BETWEEN<start>@<end>'. A JSON object string is also accepted.",
				},
				"fields": map[string]interface{}{
					"type":        "array",
					"description": "Field names to return in the response (default: all fields).",
					"items":       map[string]interface{}{"type": "string"},
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum records to return for read (bounded by server configuration).",
				},
			},
			Required: []string{"operation", "table"},
		},
	}, s.handleCRUD)

	// Tool: servicenow_tables
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "servicenow_tables",
		Description: "List the ServiceNow tables this server is allowed to operate on.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleTables)
}

// Run starts the MCP server using stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting snowbridge MCP server", slog.String("version", s.version))

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	return nil
}

func (s *Server) handleCRUD(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.limiter.Allow() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}

	args := tool.Args{
		Operation: request.GetString("operation", ""),
		Table:     request.GetString("table", ""),
		SysID:     request.GetString("sys_id", ""),
	}
	raw := request.GetArguments()
	args.Data = raw["data"]
	args.Query = raw["query"]
	args.Fields = raw["fields"]
	args.Limit = raw["limit"]

	return textResponse(s.adapter.InvokeJSON(ctx, args)), nil
}

func (s *Server) handleTables(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.limiter.Allow() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}

	return textResponse(strings.Join(s.tables.Names(), "\n")), nil
}

// errorResponse creates a tool error result.
func errorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

// textResponse creates a plain text tool result.
func textResponse(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}
