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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend is a configurable in-memory backend.
type stubBackend struct {
	name      string
	priority  int
	available bool
	values    map[string]string
	err       error
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Get(ctx context.Context, key string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	v, ok := s.values[key]
	if !ok {
		return "", ErrSecretNotFound
	}
	return v, nil
}

func (s *stubBackend) Available() bool { return s.available }
func (s *stubBackend) Priority() int   { return s.priority }

func TestResolver_PriorityOrder(t *testing.T) {
	high := &stubBackend{name: "high", priority: 100, available: true, values: map[string]string{"k": "from-high"}}
	low := &stubBackend{name: "low", priority: 25, available: true, values: map[string]string{"k": "from-low"}}

	// Registration order must not matter.
	r := NewResolver(low, high)

	secret, err := r.Resolve(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "from-high", secret.Reveal())
}

func TestResolver_FallsThroughToLowerPriority(t *testing.T) {
	high := &stubBackend{name: "high", priority: 100, available: true, values: map[string]string{}}
	low := &stubBackend{name: "low", priority: 25, available: true, values: map[string]string{"k": "from-low"}}

	r := NewResolver(high, low)

	secret, err := r.Resolve(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "from-low", secret.Reveal())
}

func TestResolver_UnavailableBackendsSkipped(t *testing.T) {
	broken := &stubBackend{name: "broken", priority: 100, available: false, values: map[string]string{"k": "never"}}
	working := &stubBackend{name: "working", priority: 25, available: true, values: map[string]string{"k": "yes"}}

	r := NewResolver(broken, working)

	secret, err := r.Resolve(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "yes", secret.Reveal())
}

func TestResolver_NotFound(t *testing.T) {
	r := NewResolver(&stubBackend{name: "empty", priority: 50, available: true, values: map[string]string{}})

	_, err := r.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestResolver_NoBackends(t *testing.T) {
	r := NewResolver()

	_, err := r.Resolve(context.Background(), "k")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestResolver_BackendErrorSurfaced(t *testing.T) {
	failing := &stubBackend{name: "failing", priority: 100, available: true, err: errors.New("keychain locked")}

	r := NewResolver(failing)

	_, err := r.Resolve(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keychain locked")
}

func TestResolver_Source(t *testing.T) {
	high := &stubBackend{name: "static", priority: 100, available: true, values: map[string]string{}}
	low := &stubBackend{name: "env", priority: 25, available: true, values: map[string]string{"k": "v"}}

	r := NewResolver(high, low)

	source, err := r.Source(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "env", source)

	_, err = r.Source(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestStaticBackend_SkipsEmptyValues(t *testing.T) {
	b := NewStaticBackend(map[string]string{"set": "value", "empty": ""})

	v, err := b.Get(context.Background(), "set")
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	_, err = b.Get(context.Background(), "empty")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestEnvBackend_KeyMapping(t *testing.T) {
	t.Setenv("SERVICENOW_PASSWORD", "env-secret")

	b := NewEnvBackend("")

	v, err := b.Get(context.Background(), "servicenow/password")
	require.NoError(t, err)
	assert.Equal(t, "env-secret", v)
}
