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

// Package snow implements the CRUD client layer over the instance table API.
//
// The client validates every request locally (operation shape, table
// allow-list, field names, record identifiers) before anything touches the
// network, and always answers with a CRUDResponse envelope. The only error
// the methods return is an authentication failure; every other outcome,
// including transport failures, is folded into the envelope so a single
// call site can hand results straight back to a conversational agent.
package snow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/snowbridge-io/snowbridge/internal/log"
	"github.com/snowbridge-io/snowbridge/internal/secrets"
	"github.com/snowbridge-io/snowbridge/internal/snow/transport"
)

// tableAPIPath is the REST table API root on the instance.
const tableAPIPath = "/api/now/table"

// Executor issues one logical request against the instance. Satisfied by
// *transport.HTTPTransport; tests substitute fakes.
type Executor interface {
	Execute(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// AuditEntry is one recorded operation outcome.
type AuditEntry struct {
	Time      time.Time
	Operation Operation
	Table     string
	SysID     string
	Success   bool
	ErrorType string
	RequestID string
	Duration  time.Duration
}

// Auditor records operation outcomes. Recording is best-effort: failures
// are logged, never surfaced to the caller.
type Auditor interface {
	Record(ctx context.Context, entry *AuditEntry) error
}

// ClientConfig configures the CRUD client.
type ClientConfig struct {
	// InstanceURL is the base instance address without a trailing slash.
	InstanceURL string

	// AllowList is the set of operable tables, required.
	AllowList *AllowList

	// MaxRecords caps records returned per read.
	MaxRecords int

	// Executor issues requests, required.
	Executor Executor

	// Logger receives operation logs (nil discards).
	Logger *slog.Logger

	// Auditor records outcomes (nil disables auditing).
	Auditor Auditor
}

// Client performs create, read, update and delete operations against
// allow-listed tables. Safe for concurrent use.
type Client struct {
	baseURL    string
	allow      *AllowList
	maxRecords int
	exec       Executor
	logger     *slog.Logger
	auditor    Auditor
	masker     *secrets.Masker
}

// NewClient creates a CRUD client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("client config is required")
	}
	if cfg.InstanceURL == "" {
		return nil, fmt.Errorf("instance URL is required")
	}
	if cfg.AllowList == nil {
		return nil, fmt.Errorf("table allow-list is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	maxRecords := cfg.MaxRecords
	if maxRecords <= 0 {
		maxRecords = 100
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.InstanceURL, "/"),
		allow:      cfg.AllowList,
		maxRecords: maxRecords,
		exec:       cfg.Executor,
		logger:     log.WithComponent(logger, "snow.client"),
		auditor:    cfg.Auditor,
		masker:     secrets.NewMasker(),
	}, nil
}

// Create inserts a record. The response carries the created record as
// returned by the instance, including its assigned sys_id; a non-empty
// fields list projects the returned record to those fields.
func (c *Client) Create(ctx context.Context, table string, data map[string]any, fields []string) (*CRUDResponse, error) {
	return c.Do(ctx, &CRUDRequest{Operation: OpCreate, Table: table, Data: data, Fields: fields})
}

// Read retrieves records matching the query, bounded by the configured
// record cap. A nil query retrieves the newest records unconditionally.
func (c *Client) Read(ctx context.Context, table string, query Query, fields []string, limit int) (*CRUDResponse, error) {
	return c.Do(ctx, &CRUDRequest{Operation: OpRead, Table: table, Query: query, Fields: fields, Limit: limit})
}

// Get retrieves a single record by sys_id.
func (c *Client) Get(ctx context.Context, table, sysID string) (*CRUDResponse, error) {
	return c.Do(ctx, &CRUDRequest{Operation: OpRead, Table: table, SysID: sysID})
}

// Update patches fields on an existing record. A non-empty fields list
// projects the returned record to those fields.
func (c *Client) Update(ctx context.Context, table, sysID string, data map[string]any, fields []string) (*CRUDResponse, error) {
	return c.Do(ctx, &CRUDRequest{Operation: OpUpdate, Table: table, SysID: sysID, Data: data, Fields: fields})
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, table, sysID string) (*CRUDResponse, error) {
	return c.Do(ctx, &CRUDRequest{Operation: OpDelete, Table: table, SysID: sysID})
}

// Do executes one CRUD request. The returned error is non-nil only for
// authentication failures; every other outcome, local or remote, is
// reported through the envelope with Success=false and a classified
// ErrorType. Callers holding credentials decide how to present auth
// failures; nothing in the returned error contains credential material.
func (c *Client) Do(ctx context.Context, req *CRUDRequest) (*CRUDResponse, error) {
	start := time.Now()

	resp, requestID, err := c.execute(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		// Auth failures propagate; the envelope equivalent is built by
		// the caller so credential handling stays in one place.
		recordRequest(req.Operation, req.Table, ErrTypeAuth)
		observeDuration(req.Operation, req.Table, elapsed.Seconds())
		c.audit(ctx, req, false, ErrTypeAuth, requestID, elapsed)
		return nil, err
	}

	outcome := "success"
	if !resp.Success {
		outcome = resp.ErrorType
	}
	recordRequest(req.Operation, req.Table, outcome)
	observeDuration(req.Operation, req.Table, elapsed.Seconds())
	c.audit(ctx, req, resp.Success, resp.ErrorType, requestID, elapsed)

	return resp, nil
}

func (c *Client) execute(ctx context.Context, req *CRUDRequest) (*CRUDResponse, string, error) {
	if err := req.Validate(); err != nil {
		return failure(req.Operation, req.Table, ErrTypeValidation, err.Error()), "", nil
	}
	if !ValidTableName(req.Table) {
		return failure(req.Operation, req.Table, ErrTypeValidation,
			fmt.Sprintf("invalid table name: %q", req.Table)), "", nil
	}
	if !c.allow.Allowed(req.Table) {
		c.logger.Warn("table not in allow-list",
			log.OperationKey, string(req.Operation),
			log.TableKey, req.Table)
		return failure(req.Operation, req.Table, ErrTypeValidation,
			fmt.Sprintf("Table '%s' is not in the allowed tables list", req.Table)), "", nil
	}

	treq, err := c.buildRequest(req)
	if err != nil {
		return failure(req.Operation, req.Table, ErrTypeValidation, err.Error()), "", nil
	}

	if len(req.Data) > 0 {
		// Field values may carry credentials (e.g. connection records);
		// only the redacted form is ever logged.
		c.logger.Debug("executing operation",
			log.OperationKey, string(req.Operation),
			log.TableKey, req.Table,
			"data", c.masker.RedactMap(req.Data))
	}

	tresp, err := c.exec.Execute(ctx, treq)
	if err != nil {
		if IsAuthError(err) {
			return nil, "", err
		}
		c.logger.Warn("operation failed",
			log.OperationKey, string(req.Operation),
			log.TableKey, req.Table,
			log.ErrorTypeKey, classifyError(err),
			log.Error(err))
		return failure(req.Operation, req.Table, classifyError(err), safeMessage(err)), "", nil
	}

	requestID, _ := tresp.Metadata[transport.MetadataRequestID].(string)

	resp, err := c.buildResponse(req, tresp)
	if err != nil {
		return failure(req.Operation, req.Table, ErrTypeUnknown, err.Error()), requestID, nil
	}

	c.logger.Info("operation completed",
		log.OperationKey, string(req.Operation),
		log.TableKey, req.Table,
		log.RequestIDKey, requestID)

	if n, ok := tresp.Metadata[transport.MetadataRetryCount].(int); ok {
		recordRetries(req.Operation, req.Table, n)
	}

	return resp, requestID, nil
}

// buildRequest maps a validated CRUD request onto the table API.
func (c *Client) buildRequest(req *CRUDRequest) (*transport.Request, error) {
	tableURL := c.baseURL + tableAPIPath + "/" + url.PathEscape(req.Table)
	sysID := toLowerASCII(req.SysID)

	switch req.Operation {
	case OpCreate:
		body, err := json.Marshal(req.Data)
		if err != nil {
			return nil, fmt.Errorf("encoding record data: %w", err)
		}
		params, err := fieldParams(req.Fields)
		if err != nil {
			return nil, err
		}
		return &transport.Request{Method: "POST", URL: tableURL, Query: params, Body: body}, nil

	case OpRead:
		if sysID != "" {
			return &transport.Request{Method: "GET", URL: tableURL + "/" + sysID}, nil
		}
		params := map[string]string{
			"sysparm_limit": strconv.Itoa(c.clampLimit(req.Limit)),
		}
		if len(req.Query) > 0 {
			encoded, err := BuildQuery(req.Query)
			if err != nil {
				return nil, err
			}
			params["sysparm_query"] = encoded
		}
		if len(req.Fields) > 0 {
			fields, err := joinFields(req.Fields)
			if err != nil {
				return nil, err
			}
			params["sysparm_fields"] = fields
		}
		return &transport.Request{Method: "GET", URL: tableURL, Query: params}, nil

	case OpUpdate:
		body, err := json.Marshal(req.Data)
		if err != nil {
			return nil, fmt.Errorf("encoding record data: %w", err)
		}
		params, err := fieldParams(req.Fields)
		if err != nil {
			return nil, err
		}
		return &transport.Request{Method: "PATCH", URL: tableURL + "/" + sysID, Query: params, Body: body}, nil

	case OpDelete:
		return &transport.Request{Method: "DELETE", URL: tableURL + "/" + sysID}, nil
	}

	return nil, fmt.Errorf("unreachable operation %q", req.Operation)
}

// buildResponse interprets a 2xx instance reply for the operation.
func (c *Client) buildResponse(req *CRUDRequest, tresp *transport.Response) (*CRUDResponse, error) {
	sysID := toLowerASCII(req.SysID)

	switch req.Operation {
	case OpCreate:
		record, err := parseRecord(tresp.Body)
		if err != nil {
			return nil, err
		}
		return &CRUDResponse{
			Success:   true,
			Operation: OpCreate,
			Table:     req.Table,
			Message:   fmt.Sprintf("Record created successfully in %s", req.Table),
			Data:      []map[string]any{record},
			Count:     countOf(1),
		}, nil

	case OpRead:
		var records []map[string]any
		var err error
		if sysID != "" {
			var record map[string]any
			record, err = parseRecord(tresp.Body)
			if record != nil {
				records = []map[string]any{record}
			}
		} else {
			records, err = parseRecordList(tresp.Body)
		}
		if err != nil {
			return nil, err
		}
		return &CRUDResponse{
			Success:   true,
			Operation: OpRead,
			Table:     req.Table,
			Message:   fmt.Sprintf("Retrieved %d record(s) from %s", len(records), req.Table),
			Data:      records,
			Count:     countOf(len(records)),
		}, nil

	case OpUpdate:
		record, err := parseRecord(tresp.Body)
		if err != nil {
			return nil, err
		}
		return &CRUDResponse{
			Success:   true,
			Operation: OpUpdate,
			Table:     req.Table,
			Message:   fmt.Sprintf("Record %s updated successfully in %s", sysID, req.Table),
			Data:      []map[string]any{record},
			Count:     countOf(1),
		}, nil

	case OpDelete:
		// 204 carries no body; some instances answer 200 with an empty one.
		return &CRUDResponse{
			Success:   true,
			Operation: OpDelete,
			Table:     req.Table,
			Message:   fmt.Sprintf("Record %s deleted successfully from %s", sysID, req.Table),
			Count:     countOf(1),
		}, nil
	}

	return nil, fmt.Errorf("unreachable operation %q", req.Operation)
}

// clampLimit bounds the requested record count to [1, maxRecords], with
// the cap as the default when unspecified.
func (c *Client) clampLimit(limit int) int {
	if limit <= 0 || limit > c.maxRecords {
		return c.maxRecords
	}
	return limit
}

func (c *Client) audit(ctx context.Context, req *CRUDRequest, success bool, errType, requestID string, elapsed time.Duration) {
	if c.auditor == nil {
		return
	}
	entry := &AuditEntry{
		Time:      time.Now().UTC(),
		Operation: req.Operation,
		Table:     req.Table,
		SysID:     toLowerASCII(req.SysID),
		Success:   success,
		ErrorType: errType,
		RequestID: requestID,
		Duration:  elapsed,
	}
	if err := c.auditor.Record(ctx, entry); err != nil {
		c.logger.Warn("audit record failed", log.Error(err))
	}
}

// joinFields validates projection field names and joins them for
// sysparm_fields.
func joinFields(fields []string) (string, error) {
	for _, f := range fields {
		if !validFieldName.MatchString(f) {
			return "", &ValidationError{Message: fmt.Sprintf("Invalid field name: %s", f)}
		}
	}
	return strings.Join(fields, ","), nil
}

// fieldParams renders a projection as sysparm_fields query parameters,
// or nil when no projection was asked for.
func fieldParams(fields []string) (map[string]string, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	joined, err := joinFields(fields)
	if err != nil {
		return nil, err
	}
	return map[string]string{"sysparm_fields": joined}, nil
}

// resultEnvelope is the instance's standard response wrapper.
type resultEnvelope struct {
	Result json.RawMessage `json:"result"`
}

func parseRecord(body []byte) (map[string]any, error) {
	var env resultEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(env.Result) == 0 {
		return nil, fmt.Errorf("response missing result")
	}
	var record map[string]any
	if err := json.Unmarshal(env.Result, &record); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return record, nil
}

func parseRecordList(body []byte) ([]map[string]any, error) {
	var env resultEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(env.Result) == 0 {
		return []map[string]any{}, nil
	}
	var records []map[string]any
	if err := json.Unmarshal(env.Result, &records); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}
	if records == nil {
		records = []map[string]any{}
	}
	return records, nil
}

// safeMessage extracts the loggable message from a transport error,
// falling back to the error string for local failures.
func safeMessage(err error) string {
	if terr, ok := err.(*transport.Error); ok {
		return terr.Message
	}
	return err.Error()
}
