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
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/snowbridge-io/snowbridge/internal/snow/transport"
)

// fakeExecutor records requests and plays back canned responses.
type fakeExecutor struct {
	calls    int
	lastReq  *transport.Request
	response *transport.Response
	err      error
}

func (f *fakeExecutor) Execute(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	f.calls++
	f.lastReq = req
	return f.response, f.err
}

func newTestClient(t *testing.T, exec Executor) *Client {
	t.Helper()
	client, err := NewClient(&ClientConfig{
		InstanceURL: "https://dev.example.com",
		AllowList:   NewAllowList([]string{"incident", "problem"}),
		MaxRecords:  100,
		Executor:    exec,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func okResponse(body string) *transport.Response {
	return &transport.Response{
		StatusCode: 200,
		Body:       []byte(body),
		Metadata:   map[string]interface{}{},
	}
}

func TestClient_DisallowedTableNeverReachesNetwork(t *testing.T) {
	exec := &fakeExecutor{}
	client := newTestClient(t, exec)

	resp, err := client.Read(context.Background(), "sys_user", nil, nil, 0)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if resp.Success {
		t.Error("Read() on disallowed table succeeded")
	}
	if resp.ErrorType != ErrTypeValidation {
		t.Errorf("ErrorType = %q, want %q", resp.ErrorType, ErrTypeValidation)
	}
	if !strings.Contains(resp.Error, "not in the allowed tables list") {
		t.Errorf("Error = %q", resp.Error)
	}
	if exec.calls != 0 {
		t.Errorf("executor called %d times, want 0", exec.calls)
	}
}

func TestClient_InvalidSysIDNeverReachesNetwork(t *testing.T) {
	exec := &fakeExecutor{}
	client := newTestClient(t, exec)

	resp, err := client.Delete(context.Background(), "incident", "not-a-sys-id")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if resp.Success || resp.ErrorType != ErrTypeValidation {
		t.Errorf("got success=%v errorType=%q, want validation failure", resp.Success, resp.ErrorType)
	}
	if exec.calls != 0 {
		t.Errorf("executor called %d times, want 0", exec.calls)
	}
}

func TestClient_AllowListIsCaseInsensitive(t *testing.T) {
	exec := &fakeExecutor{response: okResponse(`{"result": []}`)}
	client := newTestClient(t, exec)

	resp, err := client.Read(context.Background(), "INCIDENT", nil, nil, 0)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !resp.Success {
		t.Errorf("Read() failed: %s", resp.Error)
	}
}

func TestClient_Create(t *testing.T) {
	exec := &fakeExecutor{response: &transport.Response{
		StatusCode: 201,
		Body:       []byte(`{"result": {"sys_id": "` + testSysID + `", "number": "INC0010001"}}`),
		Metadata:   map[string]interface{}{},
	}}
	client := newTestClient(t, exec)

	resp, err := client.Create(context.Background(), "incident", map[string]any{"short_description": "Email down"}, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !resp.Success {
		t.Fatalf("Create() failed: %s", resp.Error)
	}
	if exec.lastReq.Method != "POST" {
		t.Errorf("method = %q, want POST", exec.lastReq.Method)
	}
	if want := "https://dev.example.com/api/now/table/incident"; exec.lastReq.URL != want {
		t.Errorf("URL = %q, want %q", exec.lastReq.URL, want)
	}
	if !strings.Contains(string(exec.lastReq.Body), "Email down") {
		t.Errorf("body = %s", exec.lastReq.Body)
	}
	if len(resp.Data) != 1 || resp.Data[0]["number"] != "INC0010001" {
		t.Errorf("data = %v", resp.Data)
	}
	if resp.Message != "Record created successfully in incident" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestClient_WriteFieldProjection(t *testing.T) {
	tests := []struct {
		name string
		do   func(c *Client) (*CRUDResponse, error)
	}{
		{"create", func(c *Client) (*CRUDResponse, error) {
			return c.Create(context.Background(), "incident",
				map[string]any{"short_description": "Email down"}, []string{"sys_id", "number"})
		}},
		{"update", func(c *Client) (*CRUDResponse, error) {
			return c.Update(context.Background(), "incident", testSysID,
				map[string]any{"state": "6"}, []string{"sys_id", "number"})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{response: &transport.Response{
				StatusCode: 201,
				Body:       []byte(`{"result": {"sys_id": "` + testSysID + `", "number": "INC0010001"}}`),
				Metadata:   map[string]interface{}{},
			}}
			client := newTestClient(t, exec)

			resp, err := tt.do(client)
			if err != nil {
				t.Fatalf("%s error = %v", tt.name, err)
			}
			if !resp.Success {
				t.Fatalf("%s failed: %s", tt.name, resp.Error)
			}
			if got, want := exec.lastReq.Query["sysparm_fields"], "sys_id,number"; got != want {
				t.Errorf("sysparm_fields = %q, want %q", got, want)
			}
		})
	}
}

func TestClient_WriteFieldProjectionRejectsBadName(t *testing.T) {
	exec := &fakeExecutor{response: okResponse(`{"result": {}}`)}
	client := newTestClient(t, exec)

	resp, err := client.Create(context.Background(), "incident",
		map[string]any{"state": "1"}, []string{"number", "bad;field"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if resp.Success {
		t.Fatal("Create() succeeded with an invalid projection field")
	}
	if resp.ErrorType != ErrTypeValidation {
		t.Errorf("error_type = %q, want %q", resp.ErrorType, ErrTypeValidation)
	}
	if exec.calls != 0 {
		t.Errorf("executor called %d times, want 0", exec.calls)
	}
}

func TestClient_ReadQueryParameters(t *testing.T) {
	exec := &fakeExecutor{response: okResponse(`{"result": [{"number": "INC1"}, {"number": "INC2"}]}`)}
	client := newTestClient(t, exec)

	query := Query{{Field: "state", Value: "1"}, {Field: "priority", Value: "<3"}}
	resp, err := client.Read(context.Background(), "incident", query, []string{"number", "state"}, 10)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !resp.Success {
		t.Fatalf("Read() failed: %s", resp.Error)
	}

	params := exec.lastReq.Query
	if got, want := params["sysparm_query"], "state=1^priority<3"; got != want {
		t.Errorf("sysparm_query = %q, want %q", got, want)
	}
	if got, want := params["sysparm_fields"], "number,state"; got != want {
		t.Errorf("sysparm_fields = %q, want %q", got, want)
	}
	if got, want := params["sysparm_limit"], "10"; got != want {
		t.Errorf("sysparm_limit = %q, want %q", got, want)
	}
	if resp.Count == nil || *resp.Count != 2 {
		t.Errorf("count = %v, want 2", resp.Count)
	}
	if resp.Message != "Retrieved 2 record(s) from incident" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestClient_ReadLimitClamped(t *testing.T) {
	exec := &fakeExecutor{response: okResponse(`{"result": []}`)}
	client := newTestClient(t, exec)

	tests := []struct {
		limit int
		want  string
	}{
		{0, "100"},    // default
		{50, "50"},    // within bounds
		{5000, "100"}, // clamped to cap
	}

	for _, tt := range tests {
		if _, err := client.Read(context.Background(), "incident", nil, nil, tt.limit); err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if got := exec.lastReq.Query["sysparm_limit"]; got != tt.want {
			t.Errorf("limit %d: sysparm_limit = %q, want %q", tt.limit, got, tt.want)
		}
	}
}

func TestClient_ReadBySysID(t *testing.T) {
	exec := &fakeExecutor{response: okResponse(`{"result": {"sys_id": "` + testSysID + `"}}`)}
	client := newTestClient(t, exec)

	resp, err := client.Get(context.Background(), "incident", strings.ToUpper(testSysID))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !resp.Success {
		t.Fatalf("Get() failed: %s", resp.Error)
	}
	if want := "https://dev.example.com/api/now/table/incident/" + testSysID; exec.lastReq.URL != want {
		t.Errorf("URL = %q, want %q", exec.lastReq.URL, want)
	}
	if len(resp.Data) != 1 {
		t.Errorf("data = %v, want single record", resp.Data)
	}
}

func TestClient_Update(t *testing.T) {
	exec := &fakeExecutor{response: okResponse(`{"result": {"sys_id": "` + testSysID + `", "state": "6"}}`)}
	client := newTestClient(t, exec)

	resp, err := client.Update(context.Background(), "incident", testSysID, map[string]any{"state": "6"}, nil)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !resp.Success {
		t.Fatalf("Update() failed: %s", resp.Error)
	}
	if exec.lastReq.Method != "PATCH" {
		t.Errorf("method = %q, want PATCH", exec.lastReq.Method)
	}
	if resp.Message != "Record "+testSysID+" updated successfully in incident" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestClient_Delete(t *testing.T) {
	exec := &fakeExecutor{response: &transport.Response{
		StatusCode: 204,
		Metadata:   map[string]interface{}{},
	}}
	client := newTestClient(t, exec)

	resp, err := client.Delete(context.Background(), "incident", testSysID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !resp.Success {
		t.Fatalf("Delete() failed: %s", resp.Error)
	}
	if exec.lastReq.Method != "DELETE" {
		t.Errorf("method = %q, want DELETE", exec.lastReq.Method)
	}
	if len(resp.Data) != 0 {
		t.Errorf("data = %v, want empty", resp.Data)
	}
	if resp.Count == nil || *resp.Count != 1 {
		t.Errorf("count = %v, want 1", resp.Count)
	}
}

func TestClient_AuthErrorPropagates(t *testing.T) {
	exec := &fakeExecutor{err: &transport.Error{
		Type:       transport.ErrorTypeAuth,
		StatusCode: 401,
		Message:    "authentication failed",
	}}
	client := newTestClient(t, exec)

	resp, err := client.Read(context.Background(), "incident", nil, nil, 0)
	if err == nil {
		t.Fatal("Read() error = nil, want authentication error")
	}
	if resp != nil {
		t.Errorf("Read() response = %v, want nil", resp)
	}
	if !IsAuthError(err) {
		t.Errorf("IsAuthError() = false for %v", err)
	}
}

func TestClient_TransportErrorsBecomeEnvelopes(t *testing.T) {
	tests := []struct {
		name     string
		err      *transport.Error
		wantType string
	}{
		{
			name:     "rate limit",
			err:      &transport.Error{Type: transport.ErrorTypeRateLimit, StatusCode: 429, Message: "rate limited", Retryable: true},
			wantType: ErrTypeRateLimit,
		},
		{
			name:     "timeout",
			err:      &transport.Error{Type: transport.ErrorTypeTimeout, Message: "request timed out", Retryable: true},
			wantType: ErrTypeTimeout,
		},
		{
			name:     "server error",
			err:      &transport.Error{Type: transport.ErrorTypeServer, StatusCode: 503, Message: "service unavailable", Retryable: true},
			wantType: ErrTypeServer,
		},
		{
			name:     "connection",
			err:      &transport.Error{Type: transport.ErrorTypeConnection, Message: "connection refused", Retryable: true},
			wantType: ErrTypeConnection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{err: tt.err}
			client := newTestClient(t, exec)

			resp, err := client.Read(context.Background(), "incident", nil, nil, 0)
			if err != nil {
				t.Fatalf("Read() error = %v, want envelope", err)
			}
			if resp.Success {
				t.Error("Read() succeeded, want failure envelope")
			}
			if resp.ErrorType != tt.wantType {
				t.Errorf("ErrorType = %q, want %q", resp.ErrorType, tt.wantType)
			}
		})
	}
}

func TestClient_UnknownErrorClassified(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("something odd")}
	client := newTestClient(t, exec)

	resp, err := client.Read(context.Background(), "incident", nil, nil, 0)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if resp.ErrorType != ErrTypeUnknown {
		t.Errorf("ErrorType = %q, want %q", resp.ErrorType, ErrTypeUnknown)
	}
}

func TestClient_InvalidFieldNameRejected(t *testing.T) {
	exec := &fakeExecutor{}
	client := newTestClient(t, exec)

	resp, err := client.Read(context.Background(), "incident", nil, []string{"number", "bad field"}, 0)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if resp.Success || resp.ErrorType != ErrTypeValidation {
		t.Errorf("got success=%v errorType=%q, want validation failure", resp.Success, resp.ErrorType)
	}
	if exec.calls != 0 {
		t.Errorf("executor called %d times, want 0", exec.calls)
	}
}

// recordingAuditor captures audit entries.
type recordingAuditor struct {
	entries []*AuditEntry
}

func (r *recordingAuditor) Record(ctx context.Context, entry *AuditEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func TestClient_AuditRecordsOutcome(t *testing.T) {
	auditor := &recordingAuditor{}
	client, err := NewClient(&ClientConfig{
		InstanceURL: "https://dev.example.com",
		AllowList:   NewAllowList([]string{"incident"}),
		Executor:    &fakeExecutor{response: okResponse(`{"result": []}`)},
		Auditor:     auditor,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if _, err := client.Read(context.Background(), "incident", nil, nil, 0); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if _, err := client.Read(context.Background(), "sys_user", nil, nil, 0); err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if len(auditor.entries) != 2 {
		t.Fatalf("recorded %d entries, want 2", len(auditor.entries))
	}
	if !auditor.entries[0].Success {
		t.Error("first entry not marked success")
	}
	if auditor.entries[1].Success || auditor.entries[1].ErrorType != ErrTypeValidation {
		t.Errorf("second entry = %+v, want validation failure", auditor.entries[1])
	}
}
