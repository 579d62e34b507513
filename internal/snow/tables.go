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

package snow

import (
	"regexp"
	"sort"
	"strings"
)

// validTableName restricts table names to identifier characters. Checked
// before allow-list membership so malformed input never reaches a URL.
var validTableName = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ValidTableName reports whether the table name is well-formed.
func ValidTableName(table string) bool {
	return validTableName.MatchString(table)
}

// AllowList holds the set of tables the client may operate on. Membership
// is checked before any URL is constructed or request issued, for every
// operation kind. Comparison is case-insensitive.
type AllowList struct {
	names map[string]string
}

// NewAllowList creates an allow-list from the configured table names.
func NewAllowList(tables []string) *AllowList {
	names := make(map[string]string, len(tables))
	for _, t := range tables {
		names[strings.ToLower(t)] = t
	}
	return &AllowList{names: names}
}

// Allowed reports whether the table may be operated on.
func (a *AllowList) Allowed(table string) bool {
	_, ok := a.names[strings.ToLower(table)]
	return ok
}

// Names returns the configured table names, sorted.
func (a *AllowList) Names() []string {
	names := make([]string, 0, len(a.names))
	for _, original := range a.names {
		names = append(names, original)
	}
	sort.Strings(names)
	return names
}
