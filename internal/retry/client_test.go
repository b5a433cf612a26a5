package retry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient()

	if client.maxRetries != defaultMaxRetries {
		t.Errorf("expected maxRetries=%d, got %d", defaultMaxRetries, client.maxRetries)
	}
	if client.initialRetryDelay != defaultInitialRetryDelay {
		t.Errorf(
			"expected initialRetryDelay=%v, got %v",
			defaultInitialRetryDelay,
			client.initialRetryDelay,
		)
	}
	if client.maxRetryDelay != defaultMaxRetryDelay {
		t.Errorf("expected maxRetryDelay=%v, got %v", defaultMaxRetryDelay, client.maxRetryDelay)
	}
	if client.retryDelayMultiple != defaultRetryDelayMultiple {
		t.Errorf(
			"expected retryDelayMultiple=%f, got %f",
			defaultRetryDelayMultiple,
			client.retryDelayMultiple,
		)
	}
	if client.httpClient == nil {
		t.Error("expected httpClient to be set")
	}
}

func TestNewClient_WithOptions(t *testing.T) {
	httpClient := &http.Client{Timeout: 5 * time.Second}
	customChecker := func(err error, resp *http.Response) bool { return false }

	client := NewClient(
		WithMaxRetries(5),
		WithInitialRetryDelay(2*time.Second),
		WithMaxRetryDelay(20*time.Second),
		WithRetryDelayMultiple(3.0),
		WithHTTPClient(httpClient),
		WithRetryableChecker(customChecker),
	)

	if client.maxRetries != 5 {
		t.Errorf("expected maxRetries=5, got %d", client.maxRetries)
	}
	if client.initialRetryDelay != 2*time.Second {
		t.Errorf("expected initialRetryDelay=2s, got %v", client.initialRetryDelay)
	}
	if client.maxRetryDelay != 20*time.Second {
		t.Errorf("expected maxRetryDelay=20s, got %v", client.maxRetryDelay)
	}
	if client.retryDelayMultiple != 3.0 {
		t.Errorf("expected retryDelayMultiple=3.0, got %f", client.retryDelayMultiple)
	}
	if client.httpClient != httpClient {
		t.Error("expected custom httpClient to be set")
	}
}

func TestNewClient_InvalidOptions(t *testing.T) {
	client := NewClient(
		WithMaxRetries(-1),          // Invalid, should be ignored
		WithInitialRetryDelay(-1),   // Invalid, should be ignored
		WithMaxRetryDelay(-1),       // Invalid, should be ignored
		WithRetryDelayMultiple(0.5), // Invalid, should be ignored
	)

	// Should still have defaults
	if client.maxRetries != defaultMaxRetries {
		t.Errorf("expected default maxRetries=%d, got %d", defaultMaxRetries, client.maxRetries)
	}
	if client.initialRetryDelay != defaultInitialRetryDelay {
		t.Errorf(
			"expected default initialRetryDelay=%v, got %v",
			defaultInitialRetryDelay,
			client.initialRetryDelay,
		)
	}
}

func TestDefaultRetryableChecker(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		resp     *http.Response
		expected bool
	}{
		{
			name:     "network error",
			err:      errors.New("connection refused"),
			resp:     nil,
			expected: true,
		},
		{
			name:     "no error, 200 OK",
			err:      nil,
			resp:     &http.Response{StatusCode: http.StatusOK},
			expected: false,
		},
		{
			name:     "no error, 400 Bad Request",
			err:      nil,
			resp:     &http.Response{StatusCode: http.StatusBadRequest},
			expected: false,
		},
		{
			name:     "no error, 401 Unauthorized",
			err:      nil,
			resp:     &http.Response{StatusCode: http.StatusUnauthorized},
			expected: false,
		},
		{
			name:     "no error, 429 Too Many Requests",
			err:      nil,
			resp:     &http.Response{StatusCode: http.StatusTooManyRequests},
			expected: true,
		},
		{
			name:     "no error, 500 Internal Server Error",
			err:      nil,
			resp:     &http.Response{StatusCode: http.StatusInternalServerError},
			expected: true,
		},
		{
			name:     "no error, 503 Service Unavailable",
			err:      nil,
			resp:     &http.Response{StatusCode: http.StatusServiceUnavailable},
			expected: true,
		},
		{
			name:     "no error, nil response",
			err:      nil,
			resp:     nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultRetryableChecker(tt.err, tt.resp)
			if got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestClient_Do_SuccessFirstAttempt(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithInitialRetryDelay(time.Millisecond))
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestClient_Do_RetriesOnServerError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithMaxRetries(3), WithInitialRetryDelay(time.Millisecond))
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 after retries, got %d", resp.StatusCode)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestClient_Do_NoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(WithMaxRetries(3), WithInitialRetryDelay(time.Millisecond))
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt for 400, got %d", attempts.Load())
	}
}

func TestClient_Do_RewindsBodyOnRetry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != "grant_type=authorization_code" {
			t.Errorf("attempt %d got body %q", attempts.Load()+1, body)
		}
		if attempts.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithMaxRetries(2), WithInitialRetryDelay(time.Millisecond))
	req, err := http.NewRequest(
		http.MethodPost,
		server.URL,
		strings.NewReader("grant_type=authorization_code"),
	)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestClient_Do_ExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(WithMaxRetries(2), WithInitialRetryDelay(time.Millisecond))
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	// Last response is returned once retries are exhausted
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", attempts.Load())
	}
}

func TestClient_Do_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(WithMaxRetries(5), WithInitialRetryDelay(time.Second))
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Do(ctx, req)
	if err == nil {
		t.Fatal("expected error after context cancellation")
	}
}
