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

// Secret wraps a sensitive string so it cannot leak through default
// formatting or serialization. The raw value is retrievable only through
// Reveal; fmt verbs, JSON marshaling, and string conversion all produce a
// redaction marker.
type Secret struct {
	value string
}

// NewSecret wraps a raw credential value.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// Reveal returns the raw secret value. Callers must never log the result.
func (s Secret) Reveal() string {
	return s.value
}

// IsZero reports whether the secret holds no value.
func (s Secret) IsZero() bool {
	return s.value == ""
}

// String implements fmt.Stringer and always redacts.
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer so %#v does not expose the value.
func (s Secret) GoString() string {
	return `secrets.Secret{value:"[REDACTED]"}`
}

// MarshalJSON redacts the value in JSON output.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// MarshalYAML redacts the value in YAML output.
func (s Secret) MarshalYAML() (interface{}, error) {
	return "[REDACTED]", nil
}
