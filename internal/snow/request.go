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
	"fmt"
	"regexp"
)

// Operation is a CRUD operation kind.
type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether the operation is one of the four CRUD kinds.
func (o Operation) Valid() bool {
	switch o {
	case OpCreate, OpRead, OpUpdate, OpDelete:
		return true
	}
	return false
}

// validSysID matches the fixed-length hexadecimal record identifier.
var validSysID = regexp.MustCompile(`^[a-f0-9]{32}$`)

// ValidSysID reports whether s is a well-formed record identifier.
// Matching is case-insensitive; identifiers are compared lowercased.
func ValidSysID(s string) bool {
	return validSysID.MatchString(toLowerASCII(s))
}

// CRUDRequest is the typed request normalized at the tool boundary and
// consumed by the client. The core never accepts untyped strings for Data
// or Query.
type CRUDRequest struct {
	Operation Operation      `json:"operation"`
	Table     string         `json:"table"`
	SysID     string         `json:"sys_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Query     Query          `json:"query,omitempty"`
	Fields    []string       `json:"fields,omitempty"`
	Limit     int            `json:"limit,omitempty"`
}

// Validate checks the request shape for its operation kind. Mutating
// operations must identify exactly one record by sys_id; sys_id and query
// are mutually exclusive.
func (r *CRUDRequest) Validate() error {
	if !r.Operation.Valid() {
		return &ValidationError{Message: fmt.Sprintf("invalid operation: %q", r.Operation)}
	}
	if r.Table == "" {
		return &ValidationError{Message: "table is required"}
	}

	switch r.Operation {
	case OpCreate:
		if len(r.Data) == 0 {
			return &ValidationError{Message: "data is required for create operations"}
		}
	case OpRead:
		if r.SysID != "" {
			if !ValidSysID(r.SysID) {
				return &ValidationError{Message: fmt.Sprintf("invalid sys_id format: %q", r.SysID)}
			}
			if len(r.Query) > 0 {
				return &ValidationError{Message: "sys_id and query are mutually exclusive"}
			}
		}
	case OpUpdate:
		if err := r.requireSysID(); err != nil {
			return err
		}
		if len(r.Data) == 0 {
			return &ValidationError{Message: "data is required for update operations"}
		}
	case OpDelete:
		if err := r.requireSysID(); err != nil {
			return err
		}
	}

	if r.Limit < 0 {
		return &ValidationError{Message: "limit must be positive"}
	}

	return nil
}

func (r *CRUDRequest) requireSysID() error {
	if r.SysID == "" {
		return &ValidationError{Message: fmt.Sprintf("sys_id is required for %s operations", r.Operation)}
	}
	if !ValidSysID(r.SysID) {
		return &ValidationError{Message: fmt.Sprintf("invalid sys_id format: %q", r.SysID)}
	}
	if len(r.Query) > 0 {
		return &ValidationError{Message: "sys_id and query are mutually exclusive"}
	}
	return nil
}

// CRUDResponse is the uniform envelope returned by every operation
// regardless of outcome. When Success is false, Data carries no meaningful
// content and ErrorType classifies the failure.
type CRUDResponse struct {
	Success   bool             `json:"success"`
	Operation Operation        `json:"operation"`
	Table     string           `json:"table"`
	Message   string           `json:"message,omitempty"`
	Data      []map[string]any `json:"data,omitempty"`
	Count     *int             `json:"count,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorType string           `json:"error_type,omitempty"`
}

// failure builds a success=false envelope.
func failure(op Operation, table, errType, message string) *CRUDResponse {
	return &CRUDResponse{
		Success:   false,
		Operation: op,
		Table:     table,
		Error:     message,
		ErrorType: errType,
	}
}

// countOf returns a pointer to n for the envelope's optional count field.
func countOf(n int) *int {
	return &n
}

// toLowerASCII lowercases ASCII letters without a unicode table walk.
func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
