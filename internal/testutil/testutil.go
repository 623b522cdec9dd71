// Package testutil provides common test utilities and helpers for Tech Safi tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// TB is the subset of testing.TB the assertion helpers need.
type TB interface {
	Helper()
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// MockSession is a scripted remote AI session. It satisfies chatbot.Session.
type MockSession struct {
	mu    sync.Mutex
	Reply string
	Err   error
	// Delay makes Send wait before answering, honouring ctx cancellation.
	Delay time.Duration
	// IgnoreContext makes Send sleep through Delay even if ctx is cancelled.
	IgnoreContext bool
	calls         []string
}

// Send records text and returns the scripted reply or error.
func (m *MockSession) Send(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	reply, err, delay, ignore := m.Reply, m.Err, m.Delay, m.IgnoreContext
	m.mu.Unlock()

	if delay > 0 {
		if ignore {
			time.Sleep(delay)
		} else {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return reply, err
}

// Calls returns every utterance sent so far.
func (m *MockSession) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CallCount returns how many times Send was invoked.
func (m *MockSession) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONStatus decodes the JSON envelope and validates its status field.
func AssertJSONStatus(t TB, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
		return nil
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Errorf("response missing or invalid 'status' field")
	}

	return response
}

// CreateJSONRequest creates an HTTP request with a raw JSON body.
func CreateJSONRequest(t TB, method, url, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t TB, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}
