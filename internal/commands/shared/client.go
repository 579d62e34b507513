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

// Package shared wires configuration into a ready CRUD client for the
// CLI commands.
package shared

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/snowbridge-io/snowbridge/internal/audit"
	"github.com/snowbridge-io/snowbridge/internal/config"
	"github.com/snowbridge-io/snowbridge/internal/snow"
	"github.com/snowbridge-io/snowbridge/internal/snow/transport"
)

// Runtime bundles the client and everything it owns. Close releases the
// transport pool and the audit store.
type Runtime struct {
	Client   *snow.Client
	Settings *config.Settings
	Tables   *snow.AllowList
	Audit    *audit.SQLiteStore

	transport *transport.HTTPTransport
}

// Close releases held resources.
func (r *Runtime) Close() error {
	if r.transport != nil {
		r.transport.Close()
	}
	if r.Audit != nil {
		return r.Audit.Close()
	}
	return nil
}

// BuildRuntime loads configuration from path (and the environment) and
// assembles the transport, audit store and client.
func BuildRuntime(configPath string, logger *slog.Logger) (*Runtime, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return buildFromSettings(settings, logger)
}

func buildFromSettings(settings *config.Settings, logger *slog.Logger) (*Runtime, error) {
	authKind := transport.AuthKindBasic
	if settings.Auth == config.AuthBearer {
		authKind = transport.AuthKindBearer
	}

	tr, err := transport.New(&transport.Config{
		Timeout: settings.Timeout,
		Auth: transport.AuthConfig{
			Kind:       authKind,
			Username:   settings.Username,
			Credential: settings.Credential,
		},
		Retry: &transport.RetryConfig{
			MaxRetries:     settings.MaxRetries,
			InitialBackoff: settings.RetryDelay,
			MaxBackoff:     30 * time.Second,
		},
		RateLimit: settings.RateLimit,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("building transport: %w", err)
	}

	runtime := &Runtime{
		Settings:  settings,
		Tables:    snow.NewAllowList(settings.AllowedTables),
		transport: tr,
	}

	var auditor snow.Auditor
	if settings.AuditPath != "" {
		store, err := audit.New(audit.Config{Path: settings.AuditPath})
		if err != nil {
			tr.Close()
			return nil, fmt.Errorf("opening audit store: %w", err)
		}
		runtime.Audit = store
		auditor = store
	}

	client, err := snow.NewClient(&snow.ClientConfig{
		InstanceURL: settings.InstanceURL,
		AllowList:   runtime.Tables,
		MaxRecords:  settings.MaxRecords,
		Executor:    tr,
		Logger:      logger,
		Auditor:     auditor,
	})
	if err != nil {
		runtime.Close()
		return nil, fmt.Errorf("building client: %w", err)
	}
	runtime.Client = client

	return runtime, nil
}
