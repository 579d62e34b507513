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
	"errors"
	"fmt"
	"sort"
)

// Resolver manages a chain of Backends and resolves secrets by querying
// backends in priority order. The first non-empty result wins.
type Resolver struct {
	backends []Backend
}

// NewResolver creates a secret resolver with the given backends.
// Unavailable backends are filtered out; the rest are sorted by priority
// (highest first).
func NewResolver(backends ...Backend) *Resolver {
	available := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Available() {
			available = append(available, b)
		}
	}

	sort.SliceStable(available, func(i, j int) bool {
		return available[i].Priority() > available[j].Priority()
	})

	return &Resolver{backends: available}
}

// Resolve retrieves a secret by querying backends in priority order and
// wraps it so it cannot leak through formatting. Returns ErrSecretNotFound
// if no backend yields a value.
func (r *Resolver) Resolve(ctx context.Context, key string) (Secret, error) {
	if len(r.backends) == 0 {
		return Secret{}, fmt.Errorf("%w: no available backends", ErrBackendUnavailable)
	}

	var lastErr error
	for _, backend := range r.backends {
		value, err := backend.Get(ctx, key)
		if err == nil && value != "" {
			return NewSecret(value), nil
		}
		if err != nil && !errors.Is(err, ErrSecretNotFound) {
			lastErr = err
		}
	}

	if lastErr != nil {
		return Secret{}, fmt.Errorf("failed to resolve secret %q: %w", key, lastErr)
	}
	return Secret{}, fmt.Errorf("%w: %q", ErrSecretNotFound, key)
}

// Source reports the name of the backend that would provide the secret,
// without returning the value. Returns ErrSecretNotFound if no backend
// yields one.
func (r *Resolver) Source(ctx context.Context, key string) (string, error) {
	for _, backend := range r.backends {
		value, err := backend.Get(ctx, key)
		if err == nil && value != "" {
			return backend.Name(), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrSecretNotFound, key)
}

// Backends returns the available backends in priority order.
func (r *Resolver) Backends() []Backend {
	return r.backends
}
