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

// Package tool adapts loosely-typed tool-call arguments onto the typed
// CRUD client.
//
// Language-model callers routinely send structured arguments as JSON
// strings ("{\"state\": \"1\"}") instead of objects, numbers as strings,
// and field lists in either form. The adapter coerces all of that, and it
// never returns an error: every outcome, including a panic-worthy argument
// shape, comes back as a response envelope the caller can relay verbatim.
package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/snowbridge-io/snowbridge/internal/log"
	"github.com/snowbridge-io/snowbridge/internal/snow"
)

// authFailedMessage is the only text an authentication failure produces.
// Transport detail stays out of tool output entirely.
const authFailedMessage = "Authentication failed. Please verify the configured credentials."

// Args are the raw tool-call arguments before coercion. Data, Query,
// Fields and Limit accept either their natural type or a string encoding
// of it.
type Args struct {
	Operation string
	Table     string
	SysID     string
	Data      any
	Query     any
	Fields    any
	Limit     any
}

// Adapter executes CRUD tool calls against a client.
type Adapter struct {
	client *snow.Client
	logger *slog.Logger
}

// New creates an adapter. A nil logger discards logs.
func New(client *snow.Client, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		client: client,
		logger: log.WithComponent(logger, "tool.adapter"),
	}
}

// Invoke coerces the arguments, runs the operation, and always returns an
// envelope. It never returns an error to the caller.
func (a *Adapter) Invoke(ctx context.Context, args Args) *snow.CRUDResponse {
	op := snow.Operation(strings.ToLower(strings.TrimSpace(args.Operation)))

	req, err := a.buildRequest(op, args)
	if err != nil {
		return a.finish(op, args.Table, &snow.CRUDResponse{
			Success:   false,
			Operation: op,
			Table:     args.Table,
			Error:     err.Error(),
			ErrorType: snow.ErrTypeValidation,
		})
	}

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		// The client surfaces only authentication failures as errors.
		// Replace whatever the transport said with a fixed message.
		a.logger.Warn("authentication failure",
			log.OperationKey, string(op),
			log.TableKey, args.Table)
		return a.finish(op, args.Table, &snow.CRUDResponse{
			Success:   false,
			Operation: op,
			Table:     args.Table,
			Error:     authFailedMessage,
			ErrorType: snow.ErrTypeAuth,
		})
	}

	return a.finish(op, args.Table, resp)
}

// InvokeJSON runs Invoke and renders the envelope as indented JSON, for
// transports that carry tool results as text.
func (a *Adapter) InvokeJSON(ctx context.Context, args Args) string {
	resp := a.Invoke(ctx, args)
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		// Envelope fields are all marshalable types; this is unreachable
		// short of memory corruption, but the contract is "never fail".
		return fmt.Sprintf(`{"success": false, "error": %q, "error_type": %q}`,
			"failed to encode response", snow.ErrTypeUnknown)
	}
	return string(out)
}

// finish normalizes failure envelopes: reads always report an empty result
// set rather than an absent one, so callers can iterate unconditionally.
func (a *Adapter) finish(op snow.Operation, table string, resp *snow.CRUDResponse) *snow.CRUDResponse {
	if !resp.Success && op == snow.OpRead {
		resp.Data = []map[string]any{}
		zero := 0
		resp.Count = &zero
	}
	return resp
}

func (a *Adapter) buildRequest(op snow.Operation, args Args) (*snow.CRUDRequest, error) {
	data, err := coerceObject(args.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid data argument: %w", err)
	}
	query, err := coerceQuery(args.Query)
	if err != nil {
		return nil, fmt.Errorf("invalid query argument: %w", err)
	}
	fields, err := coerceFields(args.Fields)
	if err != nil {
		return nil, fmt.Errorf("invalid fields argument: %w", err)
	}
	limit, err := coerceLimit(args.Limit)
	if err != nil {
		return nil, fmt.Errorf("invalid limit argument: %w", err)
	}

	return &snow.CRUDRequest{
		Operation: op,
		Table:     strings.TrimSpace(args.Table),
		SysID:     strings.TrimSpace(args.SysID),
		Data:      data,
		Query:     query,
		Fields:    fields,
		Limit:     limit,
	}, nil
}

// coerceObject accepts a map or a JSON object string.
func coerceObject(v any) (map[string]any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return val, nil
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return nil, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(trimmed), &m); err != nil {
			return nil, fmt.Errorf("not a JSON object: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("expected object, got %T", v)
	}
}

// coerceQuery accepts a map or a JSON object string. String input is
// decoded with key order preserved. Map input carries no order, so clause
// order is unspecified; callers that care should pass the JSON string form.
func coerceQuery(v any) (snow.Query, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case snow.Query:
		return val, nil
	case map[string]any:
		var q snow.Query
		for field, value := range val {
			q = q.Set(field, value)
		}
		return q, nil
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return nil, nil
		}
		return decodeOrderedObject(trimmed)
	default:
		return nil, fmt.Errorf("expected object, got %T", v)
	}
}

// decodeOrderedObject decodes a one-level JSON object into query clauses,
// preserving the order keys appear in the document.
func decodeOrderedObject(s string) (snow.Query, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("not a JSON object")
	}

	var q snow.Query
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("malformed JSON object: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("malformed JSON object key")
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("malformed JSON value for %q: %w", key, err)
		}
		q = q.Set(key, value)
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("malformed JSON object: %w", err)
	}

	return q, nil
}

// coerceFields accepts a string slice, a JSON array string, or a
// comma-separated list.
func coerceFields(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return val, nil
	case []any:
		fields := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string field name, got %T", item)
			}
			fields = append(fields, s)
		}
		return fields, nil
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return nil, nil
		}
		if strings.HasPrefix(trimmed, "[") {
			var fields []string
			if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
				return nil, fmt.Errorf("not a JSON array: %w", err)
			}
			return fields, nil
		}
		parts := strings.Split(trimmed, ",")
		fields := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				fields = append(fields, p)
			}
		}
		return fields, nil
	default:
		return nil, fmt.Errorf("expected field list, got %T", v)
	}
}

// coerceLimit accepts an int, a JSON number, or a numeric string.
func coerceLimit(v any) (int, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return 0, fmt.Errorf("not an integer: %w", err)
		}
		return int(n), nil
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %w", err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}
