package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/http/httptrace"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jpalmerr/remotedata/resource"
)

// TestClient_ConnectionReuse verifies that sequential requests to the same
// host reuse pooled connections.
func TestClient_ConnectionReuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient()
	defer client.Close()

	var reusedCount int
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				reusedCount++
			}
		},
	}

	const numRequests = 5
	for i := 0; i < numRequests; i++ {
		ctx := httptrace.WithClientTrace(context.Background(), trace)
		resp := client.Fetch(ctx, "", server.URL, nil, 5*time.Second)
		if resp.Error != nil {
			t.Fatalf("request %d failed: %v", i, resp.Error)
		}
	}

	expectedMinReuse := numRequests - 2 // allow some tolerance
	if reusedCount < expectedMinReuse {
		t.Errorf("expected at least %d reused connections, got %d out of %d requests",
			expectedMinReuse, reusedCount, numRequests)
	}
}

func TestClient_FetchSendsHeadersAndMethod(t *testing.T) {
	var gotMethod, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient()
	defer client.Close()

	resp := client.Fetch(context.Background(), http.MethodHead, server.URL,
		map[string]string{"Authorization": "Bearer abc"}, time.Second)
	if resp.Error != nil {
		t.Fatalf("Fetch() error = %v", resp.Error)
	}
	if gotMethod != http.MethodHead {
		t.Errorf("method = %q, want HEAD", gotMethod)
	}
	if gotAuth != "Bearer abc" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer abc")
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("StatusCode = %d, want 204", resp.StatusCode)
	}
}

func TestClient_FetchTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient()
	defer client.Close()

	resp := client.Fetch(context.Background(), "", server.URL, nil, 50*time.Millisecond)
	if resp.Error == nil {
		t.Fatal("Fetch() error = nil, want timeout error")
	}
	if resp.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", resp.StatusCode)
	}
}

func TestClient_Close(t *testing.T) {
	client := NewClient()

	// calling Close multiple times should be safe (idempotent)
	client.Close()
	client.Close()
}

func TestClient_Close_NilClient(t *testing.T) {
	var client *Client
	client.Close()
}

func TestClient_QueryDecodesDataAndErrors(t *testing.T) {
	var gotReq GraphQLRequest
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {"treatments": [{"id": "1"}]},
			"errors": [{"message": "partial", "path": ["treatments", 1], "extensions": {"code": "UPSTREAM"}}]
		}`))
	}))
	defer server.Close()

	client := NewClient()
	defer client.Close()

	resp, err := client.Query(context.Background(), server.URL, GraphQLRequest{
		Query:     "query Treatments($q: String) { treatments(q: $q) { id } }",
		Variables: map[string]any{"q": "amox"},
	}, nil, time.Second)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if !strings.Contains(gotReq.Query, "treatments") || gotReq.Variables["q"] != "amox" {
		t.Errorf("server received %+v, want query and variables", gotReq)
	}

	if !strings.Contains(string(resp.Data), `"treatments"`) {
		t.Errorf("Data = %s, want treatments", resp.Data)
	}
	want := []resource.ErrorDescriptor{{
		Message:    "partial",
		Path:       []any{"treatments", float64(1)},
		Extensions: map[string]any{"code": "UPSTREAM"},
	}}
	if diff := cmp.Diff(want, resp.Errors); diff != "" {
		t.Errorf("Errors mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_QueryErrorEnvelopeOnBadRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors": [{"message": "syntax error"}]}`))
	}))
	defer server.Close()

	client := NewClient()
	defer client.Close()

	resp, err := client.Query(context.Background(), server.URL, GraphQLRequest{Query: "{"}, nil, time.Second)
	if err != nil {
		t.Fatalf("Query() error = %v, want envelope returned", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", resp.StatusCode)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Message != "syntax error" {
		t.Errorf("Errors = %+v, want syntax error", resp.Errors)
	}
}

func TestClient_QueryFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "server error without envelope", status: http.StatusBadGateway, body: "bad gateway", wantErr: "unexpected status 502"},
		{name: "not json", status: http.StatusOK, body: "<html>", wantErr: "failed to decode"},
		{name: "empty object", status: http.StatusOK, body: "{}", wantErr: "neither data nor errors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient()
			defer client.Close()

			_, err := client.Query(context.Background(), server.URL, GraphQLRequest{Query: "{ a }"}, nil, time.Second)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Query() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestClient_QueryUnreachable(t *testing.T) {
	client := NewClient()
	defer client.Close()

	_, err := client.Query(context.Background(), "http://127.0.0.1:1", GraphQLRequest{Query: "{ a }"}, nil, time.Second)
	if err == nil || !strings.Contains(err.Error(), "request failed") {
		t.Errorf("Query() error = %v, want request failed", err)
	}
}
