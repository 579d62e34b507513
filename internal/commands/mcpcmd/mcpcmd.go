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

// Package mcpcmd implements the mcp-server command.
package mcpcmd

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/snowbridge-io/snowbridge/internal/commands/shared"
	"github.com/snowbridge-io/snowbridge/internal/log"
	"github.com/snowbridge-io/snowbridge/internal/mcpserver"
	"github.com/snowbridge-io/snowbridge/internal/tool"
)

// NewCommand creates the mcp-server command.
func NewCommand(version string) *cobra.Command {
	var (
		configPath  string
		logLevel    string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Start the snowbridge MCP server",
		Long: `Start the snowbridge MCP (Model Context Protocol) server.

The server exposes CRUD operations against allow-listed instance tables
as tools an AI assistant can call. It runs in stdio mode, suitable for
registration in an assistant's MCP configuration:

  {
    "mcpServers": {
      "snowbridge": {
        "command": "snowbridge",
        "args": ["mcp-server"]
      }
    }
  }

The server exposes these tools:
  - servicenow_crud: create, read, update or delete records
  - servicenow_tables: list allow-listed tables`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, configPath, logLevel, metricsAddr, version)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9090)")

	return cmd
}

func run(cmd *cobra.Command, configPath, logLevel, metricsAddr, version string) error {
	// Logs must go to stderr; stdout carries the MCP protocol.
	logger := log.New(&log.Config{
		Level:  logLevel,
		Format: "text",
		Output: os.Stderr,
	})

	runtime, err := shared.BuildRuntime(configPath, logger)
	if err != nil {
		return err
	}
	defer runtime.Close()

	adapter := tool.New(runtime.Client, logger)

	srv, err := mcpserver.NewServer(mcpserver.ServerConfig{
		Version:  version,
		LogLevel: logLevel,
		Adapter:  adapter,
		Tables:   runtime.Tables,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	if metricsAddr != "" {
		go serveMetrics(metricsAddr, logger)
	}

	logger.Info("snowbridge MCP server starting",
		slog.String("version", version),
		slog.String("instance", runtime.Settings.InstanceURL))

	return srv.Run(cmd.Context())
}

// serveMetrics exposes the Prometheus registry over HTTP. Runs until the
// process exits; failures are logged, not fatal.
func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("serving metrics", slog.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", slog.String("error", err.Error()))
	}
}
