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
	"encoding/json"
	"fmt"
	"strings"
)

// sensitiveFragments are key substrings that mark a field as sensitive.
// Matched case-insensitively against map keys before any request detail is
// logged or serialized.
var sensitiveFragments = []string{
	"password",
	"secret",
	"token",
	"key",
	"auth",
	"credential",
}

// IsSensitiveKey reports whether a field name matches a sensitive fragment.
// Comparison is case-insensitive to catch variants like "API_KEY" or "ApiKey".
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// Masker detects and masks sensitive values in strings and data structures
// before they reach logs. It combines key-fragment matching with a set of
// known secret values.
type Masker struct {
	// secrets is a set of known secret values to mask wherever they appear
	secrets map[string]bool
}

// NewMasker creates a masker with no registered values. Key-fragment
// redaction works without registration; value masking requires AddSecret.
func NewMasker() *Masker {
	return &Masker{secrets: make(map[string]bool)}
}

// AddSecret registers a value to be masked wherever it appears.
func (m *Masker) AddSecret(value string) {
	if value != "" {
		m.secrets[value] = true
	}
}

// Mask replaces all known secret values in a string with "***".
func (m *Masker) Mask(s string) string {
	result := s
	for secret := range m.secrets {
		if strings.Contains(result, secret) {
			result = strings.ReplaceAll(result, secret, "***")
		}
	}
	return result
}

// RedactMap returns a copy of data with values under sensitive keys replaced
// by "[REDACTED]" and known secret values masked everywhere else. Nested maps
// and slices are handled recursively. Safe to call on nil.
func (m *Masker) RedactMap(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	result := make(map[string]any, len(data))
	for k, v := range data {
		if IsSensitiveKey(k) {
			result[k] = "[REDACTED]"
			continue
		}
		result[k] = m.redactValue(v)
	}
	return result
}

func (m *Masker) redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return m.Mask(val)
	case map[string]any:
		return m.RedactMap(val)
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = m.redactValue(item)
		}
		return result
	case json.Number, bool, nil:
		return val
	case int, int64, float64:
		return val
	default:
		return m.Mask(fmt.Sprintf("%v", val))
	}
}
