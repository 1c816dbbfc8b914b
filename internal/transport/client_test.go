package transport

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/evaldeck/evaldeck/pkg/errors"
)

// TestDoAppliesAuthAndHeaders tests that Do sets authentication and
// content negotiation headers.
func TestDoAppliesAuthAndHeaders(t *testing.T) {
	var gotAuth, gotAccept, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(&BearerAuth{}, "secret")
	resp, err := client.Post(context.Background(), server.URL, map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer secret" {
		t.Errorf("Expected Bearer auth, got '%s'", gotAuth)
	}
	if gotAccept != "application/json" {
		t.Errorf("Expected Accept application/json, got '%s'", gotAccept)
	}
	if gotContentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got '%s'", gotContentType)
	}
}

// TestDoSkipsAuthWithoutKey tests that an empty API key sends no
// authentication header.
func TestDoSkipsAuthWithoutKey(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(&BearerAuth{}, "")
	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	resp.Body.Close()

	if gotAuth != "" {
		t.Errorf("Expected no Authorization header, got '%s'", gotAuth)
	}
}

// TestPostNilBody tests that a nil body is sent as an empty JSON object.
func TestPostNilBody(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(nil, "")
	resp, err := client.Post(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	resp.Body.Close()

	if gotBody != "{}" {
		t.Errorf("Expected body '{}', got '%s'", gotBody)
	}
}

// TestDecodeResponse tests JSON decoding of successful responses.
func TestDecodeResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "golden"})
	}))
	defer server.Close()

	client := New(nil, "")
	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	var target struct {
		Name string `json:"name"`
	}
	if err := DecodeResponse(resp, &target); err != nil {
		t.Fatalf("DecodeResponse failed: %v", err)
	}
	if target.Name != "golden" {
		t.Errorf("Expected name 'golden', got '%s'", target.Name)
	}
}

// TestDecodeResponseErrorStatus tests that non-2xx responses become
// APIErrors carrying the status and body.
func TestDecodeResponseErrorStatus(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusNotFound, errors.ErrNotFound},
		{http.StatusTooManyRequests, errors.ErrRateLimited},
		{http.StatusUnauthorized, errors.ErrAPIKeyInvalid},
		{http.StatusInternalServerError, errors.ErrServiceUnavailable},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte("request failed"))
		}))

		client := New(nil, "")
		resp, err := client.Get(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		err = DecodeResponse(resp, nil)
		if err == nil {
			t.Fatalf("Expected error for status %d", tt.status)
		}

		var apiErr *errors.APIError
		if !stderrors.As(err, &apiErr) {
			t.Fatalf("Expected APIError for status %d, got %T", tt.status, err)
		}
		if apiErr.StatusCode != tt.status {
			t.Errorf("Expected status %d, got %d", tt.status, apiErr.StatusCode)
		}
		if !strings.Contains(apiErr.Message, "request failed") {
			t.Errorf("Expected body in message, got '%s'", apiErr.Message)
		}
		if !stderrors.Is(err, tt.sentinel) {
			t.Errorf("Expected status %d to match sentinel %v", tt.status, tt.sentinel)
		}

		server.Close()
	}
}

// TestDecodeResponseNilTarget tests that a nil target discards the body.
func TestDecodeResponseNilTarget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ignored": true}`))
	}))
	defer server.Close()

	client := New(nil, "")
	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if err := DecodeResponse(resp, nil); err != nil {
		t.Errorf("Expected nil error with nil target, got %v", err)
	}
}
