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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/snowbridge-io/snowbridge/internal/commands/mcpcmd"
	"github.com/snowbridge-io/snowbridge/internal/commands/opcmd"
	"github.com/snowbridge-io/snowbridge/internal/commands/secretscmd"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:   "snowbridge",
		Short: "Secure CRUD access to ServiceNow tables",
		Long: `snowbridge provides secure create, read, update and delete access to
allow-listed ServiceNow tables, as one-shot commands or as an MCP server
for AI assistants.

Configuration is read from a YAML file (--config) with SERVICENOW_*
environment variable overrides. Credentials are resolved from explicit
configuration, the system keychain, or the environment, in that order.`,
		SilenceUsage: true,
	}

	root.AddCommand(opcmd.NewCommands()...)
	root.AddCommand(secretscmd.NewCommand())
	root.AddCommand(mcpcmd.NewCommand(version))
	root.AddCommand(newVersionCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("snowbridge %s (commit %s, built %s)\n", version, commit, buildDate)
		},
	}
}
