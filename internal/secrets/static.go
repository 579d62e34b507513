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

import "context"

// StaticBackend serves secrets supplied explicitly at construction time,
// typically from a configuration file. It has the highest priority so an
// explicit value always wins over stored or ambient credentials.
type StaticBackend struct {
	values map[string]string
}

// NewStaticBackend creates a backend over the given key/value pairs.
// Empty values are treated as absent.
func NewStaticBackend(values map[string]string) *StaticBackend {
	m := make(map[string]string, len(values))
	for k, v := range values {
		if v != "" {
			m[k] = v
		}
	}
	return &StaticBackend{values: m}
}

// Name returns "static".
func (s *StaticBackend) Name() string { return "static" }

// Get returns the explicitly configured value for key.
func (s *StaticBackend) Get(ctx context.Context, key string) (string, error) {
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	return "", ErrSecretNotFound
}

// Available returns true when at least one value is configured.
func (s *StaticBackend) Available() bool { return len(s.values) > 0 }

// Priority returns 100. Explicit configuration is checked first.
func (s *StaticBackend) Priority() int { return 100 }
