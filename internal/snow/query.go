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
	"strings"
)

// validFieldName matches permitted query field names. Dots are allowed for
// dotted-walk fields (e.g. "caller_id.name").
var validFieldName = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)

// comparisonOperators in longest-prefix-first order, so ">=" wins over ">".
var comparisonOperators = []string{">=", "<=", "!=", ">", "<"}

// escaper encodes the query grammar's reserved characters inside values.
// The clause separator and the four relational characters are each replaced
// by a caret-prefixed pair in a single pass, so an already-emitted escape is
// never re-escaped. This is the sole injection defense for query values.
var escaper = strings.NewReplacer(
	"^", "^^",
	"=", "^=",
	">", "^>",
	"<", "^<",
	"!", "^!",
)

// Clause is one field/value pair of a query. Value may be a string
// (plain equality, an operator-prefixed comparison, or a BETWEEN range)
// or any other scalar, which is formatted and matched by equality.
type Clause struct {
	Field string
	Value any
}

// Query is an ordered sequence of clauses. Order is preserved in the built
// string; query engines may be order-sensitive for duplicate-key edge cases.
type Query []Clause

// Set appends a clause, or updates the value in place when the field is
// already present (last write wins, position kept; no warning is emitted).
func (q Query) Set(field string, value any) Query {
	for i := range q {
		if q[i].Field == field {
			q[i].Value = value
			return q
		}
	}
	return append(q, Clause{Field: field, Value: value})
}

// BuildQuery converts a query into the instance's encoded-query string,
// joining per-field clauses with the "^" separator.
//
// Value handling, in priority order:
//  1. strings beginning with "BETWEEN" parse the remainder as
//     "<start>@<end>" (exactly one "@") and emit a range clause
//  2. strings beginning with a comparison operator emit
//     field<op><escaped remainder>
//  3. everything else is matched by equality
//
// Reserved characters inside values are always escaped, including inside
// BETWEEN endpoints. Invalid field names or malformed ranges fail with a
// *ValidationError before any value is emitted.
func BuildQuery(query Query) (string, error) {
	if len(query) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(query))

	for _, clause := range query {
		if !validFieldName.MatchString(clause.Field) {
			return "", &ValidationError{Message: fmt.Sprintf("invalid field name: %q", clause.Field)}
		}

		switch value := clause.Value.(type) {
		case string:
			part, err := buildStringClause(clause.Field, value)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		default:
			parts = append(parts, clause.Field+"="+EscapeValue(fmt.Sprint(value)))
		}
	}

	return strings.Join(parts, "^"), nil
}

// buildStringClause handles the three string value shapes.
func buildStringClause(field, value string) (string, error) {
	if strings.HasPrefix(strings.ToUpper(value), "BETWEEN") {
		return buildBetweenClause(field, value)
	}

	for _, op := range comparisonOperators {
		if strings.HasPrefix(value, op) {
			return field + op + EscapeValue(value[len(op):]), nil
		}
	}

	return field + "=" + EscapeValue(value), nil
}

// buildBetweenClause parses "BETWEEN<start>@<end>" and emits a range clause
// with both endpoints escaped.
func buildBetweenClause(field, value string) (string, error) {
	endpoints := strings.Split(value[len("BETWEEN"):], "@")
	if len(endpoints) != 2 {
		return "", &ValidationError{Message: fmt.Sprintf("invalid BETWEEN format: %q", value)}
	}
	return field + "BETWEEN" + EscapeValue(endpoints[0]) + "@" + EscapeValue(endpoints[1]), nil
}

// EscapeValue encodes reserved query characters in a value.
func EscapeValue(value string) string {
	return escaper.Replace(value)
}

// UnescapeValue reverses EscapeValue. Used by tests to verify the
// escape round-trip; unknown escape sequences are left untouched.
func UnescapeValue(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		if value[i] == '^' && i+1 < len(value) {
			switch value[i+1] {
			case '^', '=', '>', '<', '!':
				b.WriteByte(value[i+1])
				i++
				continue
			}
		}
		b.WriteByte(value[i])
	}
	return b.String()
}
