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

// Package config loads and validates snowbridge settings.
//
// Settings are constructed once at process start from a layered source
// (settings file, then environment overrides, then defaults), validated,
// and immutable thereafter. Components receive the Settings value at
// construction; there is no process-wide mutable configuration state.
package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/snowbridge-io/snowbridge/internal/secrets"
)

// envPrefix is the prefix for all instance-related environment overrides.
const envPrefix = "SERVICENOW_"

// KeychainService is the keychain service name under which snowbridge
// stores and resolves credentials.
const KeychainService = "snowbridge"

// CredentialKey is the secret-store key for the instance credential.
const CredentialKey = "servicenow/password"

// validTableName matches permitted table names.
var validTableName = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// DefaultAllowedTables is the default set of operable tables.
var DefaultAllowedTables = []string{
	"incident",
	"change_request",
	"problem",
	"sc_task",
	"sc_req_item",
	"cmdb_ci",
}

// ConfigurationError indicates a missing or invalid required setting.
// It is fatal at startup; configuration problems are never deferred to
// request time.
type ConfigurationError struct {
	Setting string
	Reason  string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %s: %v", e.Setting, e.Reason, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Setting, e.Reason)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error { return e.Cause }

// AuthType selects how the client authenticates to the instance.
type AuthType string

const (
	// AuthBasic sends HTTP basic auth with username and resolved password.
	AuthBasic AuthType = "basic"
	// AuthBearer sends a bearer token resolved from the credential chain.
	AuthBearer AuthType = "bearer"
)

// Settings holds the validated snowbridge configuration.
type Settings struct {
	// InstanceURL is the base address of the target instance, without a
	// trailing slash.
	InstanceURL string

	// Username for basic authentication.
	Username string

	// Credential is the resolved password or bearer token. Never logged.
	Credential secrets.Secret

	// Auth selects basic or bearer authentication.
	Auth AuthType

	// AllowedTables is the allow-list of operable table names.
	AllowedTables []string

	// Timeout bounds each HTTP attempt (5s-120s).
	Timeout time.Duration

	// MaxRecords caps records per read (1-1000).
	MaxRecords int

	// MaxRetries is the number of additional attempts on transient failure (0-10).
	MaxRetries int

	// RetryDelay seeds the exponential backoff (100ms-30s).
	RetryDelay time.Duration

	// RateLimit bounds outgoing requests per second. Zero disables limiting.
	RateLimit float64

	// AuditPath is the sqlite audit database path. Empty disables auditing.
	AuditPath string
}

// fileSettings is the YAML shape of the settings file.
type fileSettings struct {
	InstanceURL   string   `yaml:"instance_url"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	Auth          string   `yaml:"auth"`
	AllowedTables []string `yaml:"allowed_tables"`
	TimeoutSecs   int      `yaml:"timeout"`
	MaxRecords    int      `yaml:"max_records"`
	MaxRetries    *int     `yaml:"max_retries"`
	RetryDelay    float64  `yaml:"retry_delay"`
	RateLimit     float64  `yaml:"rate_limit"`
	AuditPath     string   `yaml:"audit_path"`
}

// Load builds Settings from an optional settings file and environment
// overrides, resolves the credential through the backend chain, and
// validates the result. A missing credential or out-of-bounds value is a
// ConfigurationError; callers should treat it as fatal.
func Load(path string) (*Settings, error) {
	var file fileSettings
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, &ConfigurationError{Setting: "settings file", Reason: "unreadable", Cause: err}
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, &ConfigurationError{Setting: "settings file", Reason: "invalid YAML", Cause: err}
		}
	}

	s := &Settings{
		InstanceURL:   overlay(file.InstanceURL, "INSTANCE_URL"),
		Username:      overlay(file.Username, "USERNAME"),
		Auth:          AuthType(overlay(file.Auth, "AUTH")),
		AllowedTables: file.AllowedTables,
		MaxRecords:    file.MaxRecords,
		RateLimit:     file.RateLimit,
		AuditPath:     overlay(file.AuditPath, "AUDIT_PATH"),
	}

	if s.Auth == "" {
		s.Auth = AuthBasic
	}

	if v := os.Getenv(envPrefix + "ALLOWED_TABLES"); v != "" {
		s.AllowedTables = splitTables(v)
	}
	if len(s.AllowedTables) == 0 {
		s.AllowedTables = append([]string(nil), DefaultAllowedTables...)
	}

	timeoutSecs := file.TimeoutSecs
	if v := os.Getenv(envPrefix + "TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, &ConfigurationError{Setting: "timeout", Reason: "not an integer", Cause: err}
		}
		timeoutSecs = n
	}
	if timeoutSecs == 0 {
		timeoutSecs = 30
	}
	s.Timeout = time.Duration(timeoutSecs) * time.Second

	if v := os.Getenv(envPrefix + "MAX_RECORDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, &ConfigurationError{Setting: "max_records", Reason: "not an integer", Cause: err}
		}
		s.MaxRecords = n
	}
	if s.MaxRecords == 0 {
		s.MaxRecords = 100
	}

	retries := 3
	if file.MaxRetries != nil {
		retries = *file.MaxRetries
	}
	if v := os.Getenv(envPrefix + "MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, &ConfigurationError{Setting: "max_retries", Reason: "not an integer", Cause: err}
		}
		retries = n
	}
	s.MaxRetries = retries

	delaySecs := file.RetryDelay
	if v := os.Getenv(envPrefix + "RETRY_DELAY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, &ConfigurationError{Setting: "retry_delay", Reason: "not a number", Cause: err}
		}
		delaySecs = f
	}
	if delaySecs == 0 {
		delaySecs = 1.0
	}
	s.RetryDelay = time.Duration(delaySecs * float64(time.Second))

	if err := s.resolveCredential(file.Password); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// resolveCredential resolves the operating credential through the ordered
// chain: explicit value, system keychain, environment variable.
func (s *Settings) resolveCredential(explicit string) error {
	resolver := secrets.NewResolver(
		secrets.NewStaticBackend(map[string]string{CredentialKey: explicit}),
		secrets.NewKeychainBackend(KeychainService),
		secrets.NewEnvBackend(""),
	)

	secret, err := resolver.Resolve(context.Background(), CredentialKey)
	if err != nil {
		return &ConfigurationError{
			Setting: "credential",
			Reason: "not found; set the password in the settings file, store it with " +
				"'snowbridge secrets set', or set SERVICENOW_PASSWORD",
			Cause: err,
		}
	}

	s.Credential = secret
	return nil
}

// Validate checks bounds on all settings.
func (s *Settings) Validate() error {
	if s.InstanceURL == "" {
		return &ConfigurationError{Setting: "instance_url", Reason: "required"}
	}
	if !strings.HasPrefix(s.InstanceURL, "https://") && !strings.HasPrefix(s.InstanceURL, "http://") {
		return &ConfigurationError{Setting: "instance_url", Reason: "must start with https:// or http://"}
	}
	s.InstanceURL = strings.TrimRight(s.InstanceURL, "/")

	switch s.Auth {
	case AuthBasic:
		if s.Username == "" {
			return &ConfigurationError{Setting: "username", Reason: "required for basic auth"}
		}
	case AuthBearer:
	default:
		return &ConfigurationError{Setting: "auth", Reason: fmt.Sprintf("unsupported auth type %q", s.Auth)}
	}

	for _, table := range s.AllowedTables {
		if !validTableName.MatchString(table) {
			return &ConfigurationError{
				Setting: "allowed_tables",
				Reason:  fmt.Sprintf("invalid table name %q: only letters, numbers, and underscores", table),
			}
		}
	}

	if s.Timeout < 5*time.Second || s.Timeout > 120*time.Second {
		return &ConfigurationError{Setting: "timeout", Reason: "must be between 5 and 120 seconds"}
	}
	if s.MaxRecords < 1 || s.MaxRecords > 1000 {
		return &ConfigurationError{Setting: "max_records", Reason: "must be between 1 and 1000"}
	}
	if s.MaxRetries < 0 || s.MaxRetries > 10 {
		return &ConfigurationError{Setting: "max_retries", Reason: "must be between 0 and 10"}
	}
	if s.RetryDelay < 100*time.Millisecond || s.RetryDelay > 30*time.Second {
		return &ConfigurationError{Setting: "retry_delay", Reason: "must be between 0.1 and 30 seconds"}
	}
	if s.RateLimit < 0 {
		return &ConfigurationError{Setting: "rate_limit", Reason: "must be non-negative"}
	}

	return nil
}

// overlay returns the environment override for key if set, else the file value.
func overlay(fileValue, key string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return fileValue
}

// splitTables parses a comma-separated table list.
func splitTables(v string) []string {
	parts := strings.Split(v, ",")
	tables := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tables = append(tables, t)
		}
	}
	return tables
}
