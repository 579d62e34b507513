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

// Package secrets provides credential resolution through a prioritized chain
// of backends, plus utilities for keeping secret values out of logs.
package secrets

import (
	"context"
	"errors"
)

var (
	// ErrSecretNotFound is returned when a secret key does not exist in the backend.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrBackendUnavailable is returned when a backend cannot be used in the current environment.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Backend provides read access to a source of sensitive values.
// Backends implement different storage mechanisms (keychain, environment,
// explicit configuration) and are queried in priority order by the Resolver.
//
// Implementations that hold external resources (keychain sessions, remote
// clients) must release them on every exit path of Get.
type Backend interface {
	// Name returns the backend identifier (e.g., "keychain", "env", "static").
	Name() string

	// Get retrieves a secret by key. Returns ErrSecretNotFound if not present.
	Get(ctx context.Context, key string) (string, error)

	// Available returns true if this backend is usable in the current environment.
	// For example, keychain returns false if the keyring service is unavailable.
	Available() bool

	// Priority returns the resolution priority (higher = checked first).
	// Standard priorities: static (100), keychain (50), env (25).
	Priority() int
}
