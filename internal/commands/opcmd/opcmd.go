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

// Package opcmd implements one-shot CRUD commands against the instance.
//
// Each command prints the response envelope as JSON and exits non-zero
// when the operation did not succeed, so the commands compose in scripts.
package opcmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/snowbridge-io/snowbridge/internal/commands/shared"
	"github.com/snowbridge-io/snowbridge/internal/log"
	"github.com/snowbridge-io/snowbridge/internal/snow"
	"github.com/snowbridge-io/snowbridge/internal/tool"
)

type opFlags struct {
	configPath string
	data       string
	query      string
	fields     []string
	limit      int
	sysID      string
}

// NewCommands creates the create, read, update, delete, tables and audit
// commands.
func NewCommands() []*cobra.Command {
	return []*cobra.Command{
		newCreateCommand(),
		newReadCommand(),
		newUpdateCommand(),
		newDeleteCommand(),
		newTablesCommand(),
		newAuditCommand(),
	}
}

func newCreateCommand() *cobra.Command {
	flags := &opFlags{}

	cmd := &cobra.Command{
		Use:   "create <table>",
		Short: "Create a record",
		Long: `Create a record in an allow-listed table.

Examples:
  snowbridge create incident --data '{"short_description": "Email down", "urgency": "1"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(cmd, flags, tool.Args{
				Operation: string(snow.OpCreate),
				Table:     args[0],
				Data:      flags.data,
				Fields:    flags.fields,
			})
		},
	}

	addCommonFlags(cmd, flags)
	cmd.Flags().StringVar(&flags.data, "data", "", "Record fields as a JSON object (required)")
	cmd.Flags().StringSliceVar(&flags.fields, "fields", nil, "Field names to return in the created record")
	cmd.MarkFlagRequired("data")

	return cmd
}

func newReadCommand() *cobra.Command {
	flags := &opFlags{}

	cmd := &cobra.Command{
		Use:   "read <table>",
		Short: "Read records",
		Long: `Read records from an allow-listed table.

Query values support operator prefixes (>=, <=, !=, >, <) and BETWEEN
ranges ('BETWEEN2024-01-01@2024-12-31').

Examples:
  snowbridge read incident --query '{"state": "1"}' --limit 10
  snowbridge read incident --query '{"priority": "<3"}' --fields number,short_description
  snowbridge read incident --sys-id 1c741bd70b2322007518478d83673af3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := tool.Args{
				Operation: string(snow.OpRead),
				Table:     args[0],
				SysID:     flags.sysID,
				Fields:    flags.fields,
			}
			if flags.query != "" {
				a.Query = flags.query
			}
			if flags.limit > 0 {
				a.Limit = flags.limit
			}
			return runOp(cmd, flags, a)
		},
	}

	addCommonFlags(cmd, flags)
	cmd.Flags().StringVar(&flags.query, "query", "", "Field filters as a JSON object")
	cmd.Flags().StringVar(&flags.sysID, "sys-id", "", "Read a single record by identifier")
	cmd.Flags().StringSliceVar(&flags.fields, "fields", nil, "Field names to return")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "Maximum records to return")

	return cmd
}

func newUpdateCommand() *cobra.Command {
	flags := &opFlags{}

	cmd := &cobra.Command{
		Use:   "update <table> <sys_id>",
		Short: "Update a record",
		Long: `Update fields on an existing record.

Examples:
  snowbridge update incident 1c741bd70b2322007518478d83673af3 --data '{"state": "6"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(cmd, flags, tool.Args{
				Operation: string(snow.OpUpdate),
				Table:     args[0],
				SysID:     args[1],
				Data:      flags.data,
				Fields:    flags.fields,
			})
		},
	}

	addCommonFlags(cmd, flags)
	cmd.Flags().StringVar(&flags.data, "data", "", "Fields to update as a JSON object (required)")
	cmd.Flags().StringSliceVar(&flags.fields, "fields", nil, "Field names to return in the updated record")
	cmd.MarkFlagRequired("data")

	return cmd
}

func newDeleteCommand() *cobra.Command {
	flags := &opFlags{}

	cmd := &cobra.Command{
		Use:   "delete <table> <sys_id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(cmd, flags, tool.Args{
				Operation: string(snow.OpDelete),
				Table:     args[0],
				SysID:     args[1],
			})
		},
	}

	addCommonFlags(cmd, flags)

	return cmd
}

func newTablesCommand() *cobra.Command {
	flags := &opFlags{}

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List allow-listed tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runtime, err := shared.BuildRuntime(flags.configPath, log.New(log.FromEnv()))
			if err != nil {
				return err
			}
			defer runtime.Close()

			for _, name := range runtime.Tables.Names() {
				fmt.Println(name)
			}
			return nil
		},
	}

	addCommonFlags(cmd, flags)

	return cmd
}

func newAuditCommand() *cobra.Command {
	flags := &opFlags{}
	var auditLimit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent operations from the audit trail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runtime, err := shared.BuildRuntime(flags.configPath, log.New(log.FromEnv()))
			if err != nil {
				return err
			}
			defer runtime.Close()

			if runtime.Audit == nil {
				return fmt.Errorf("auditing is not enabled; set audit_path in the configuration")
			}

			entries, err := runtime.Audit.Recent(cmd.Context(), auditLimit)
			if err != nil {
				return err
			}

			for _, e := range entries {
				outcome := "ok"
				if !e.Success {
					outcome = e.ErrorType
				}
				fmt.Printf("%s  %-6s %-16s %-32s %s (%dms)\n",
					e.Time.Format("2006-01-02 15:04:05"),
					e.Operation, e.Table, e.SysID, outcome,
					e.Duration.Milliseconds())
			}
			return nil
		},
	}

	addCommonFlags(cmd, flags)
	cmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum entries to show")

	return cmd
}

func addCommonFlags(cmd *cobra.Command, flags *opFlags) {
	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Path to configuration file")
}

// runOp executes one operation and prints the envelope.
func runOp(cmd *cobra.Command, flags *opFlags, args tool.Args) error {
	logger := log.New(log.FromEnv())

	runtime, err := shared.BuildRuntime(flags.configPath, logger)
	if err != nil {
		return err
	}
	defer runtime.Close()

	adapter := tool.New(runtime.Client, logger)
	resp := adapter.Invoke(cmd.Context(), args)

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	fmt.Println(string(out))

	if !resp.Success {
		runtime.Close()
		os.Exit(1)
	}
	return nil
}
