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

// Package secretscmd implements credential management commands.
package secretscmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/snowbridge-io/snowbridge/internal/config"
	"github.com/snowbridge-io/snowbridge/internal/secrets"
)

var secretForce bool

// NewCommand creates the secrets command for credential management.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage instance credentials",
		Long: `Manage instance credentials in the system keychain.

Credentials are resolved at startup from, in order:
  1. Explicit configuration (config file)
  2. System keychain (macOS Keychain, Linux Secret Service, Windows Credential Manager)
  3. Environment variables (SERVICENOW_PASSWORD)

Examples:
  snowbridge secrets set servicenow/password
  snowbridge secrets check servicenow/password
  snowbridge secrets delete servicenow/password`,
	}

	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newDeleteCommand())

	return cmd
}

func newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set [key]",
		Short: "Store a credential in the system keychain",
		Long: `Store a credential in the system keychain.

The value can be provided via:
  - Interactive prompt (hidden input, default)
  - Standard input: echo "value" | snowbridge secrets set

The key defaults to servicenow/password.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSet,
	}
}

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [key]",
		Short: "Report which backend provides a credential",
		Long: `Report which backend would provide the credential at resolution
time. The value itself is never printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCheck,
	}
}

func newDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [key]",
		Short: "Remove a credential from the system keychain",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDelete,
	}

	cmd.Flags().BoolVar(&secretForce, "force", false, "Skip confirmation prompt")

	return cmd
}

func keyArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return config.CredentialKey
}

func runSet(cmd *cobra.Command, args []string) error {
	key := keyArg(args)

	value, err := readSecretValue()
	if err != nil {
		return fmt.Errorf("failed to read credential value: %w", err)
	}
	if value == "" {
		return errors.New("credential value cannot be empty")
	}

	keychain := secrets.NewKeychainBackend(config.KeychainService)
	if !keychain.Available() {
		return fmt.Errorf("system keychain is not available\n\nSet the credential via environment instead: export %s=<value>", envName(key))
	}

	if err := keychain.Set(key, value); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	fmt.Printf("Credential %q stored in system keychain\n", key)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	key := keyArg(args)

	resolver := secrets.NewResolver(
		secrets.NewKeychainBackend(config.KeychainService),
		secrets.NewEnvBackend(""),
	)

	backend, err := resolver.Source(cmd.Context(), key)
	if err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return fmt.Errorf("credential %q not found in any backend\n\nSet it with: snowbridge secrets set %s", key, key)
		}
		return fmt.Errorf("failed to check credential: %w", err)
	}

	fmt.Printf("Credential %q is provided by the %s backend\n", key, backend)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	key := keyArg(args)

	if !secretForce {
		fmt.Printf("Delete credential %q from the system keychain? [y/N]: ", key)
		var answer string
		fmt.Scanln(&answer)
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Println("Aborted")
			return nil
		}
	}

	keychain := secrets.NewKeychainBackend(config.KeychainService)
	if err := keychain.Delete(key); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	fmt.Printf("Credential %q removed from system keychain\n", key)
	return nil
}

// readSecretValue reads a credential from stdin or prompts with hidden
// input.
func readSecretValue() (string, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return "", err
	}

	// Piped input
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}

	fmt.Print("Enter credential value (input hidden): ")
	value, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(value)), nil
}

// envName maps a secret key to its environment variable name.
func envName(key string) string {
	upper := strings.ToUpper(key)
	replacer := strings.NewReplacer("/", "_", "-", "_", ".", "_")
	return replacer.Replace(upper)
}
