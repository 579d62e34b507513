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

package secrets

import (
	"context"
	"os"
	"strings"
)

// EnvBackend resolves secrets from environment variables. Secret keys are
// mapped to variable names by upper-casing and replacing separators, so the
// key "servicenow/password" resolves SERVICENOW_PASSWORD.
type EnvBackend struct {
	// prefix, when set, is prepended to every variable name.
	prefix string
}

// NewEnvBackend creates an environment variable backend.
func NewEnvBackend(prefix string) *EnvBackend {
	return &EnvBackend{prefix: prefix}
}

// Name returns "env".
func (e *EnvBackend) Name() string { return "env" }

// Get retrieves a secret value from an environment variable.
func (e *EnvBackend) Get(ctx context.Context, key string) (string, error) {
	value := os.Getenv(e.varName(key))
	if value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// varName converts a secret key to its environment variable name.
func (e *EnvBackend) varName(key string) string {
	name := strings.ToUpper(key)
	name = strings.NewReplacer("/", "_", "-", "_", ".", "_").Replace(name)
	return e.prefix + name
}

// Available always returns true; the environment is always present.
func (e *EnvBackend) Available() bool { return true }

// Priority returns 25, the last resort in the chain.
func (e *EnvBackend) Priority() int { return 25 }
