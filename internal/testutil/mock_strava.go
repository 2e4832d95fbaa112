// Package testutil provides testing utilities for the Strava client.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// MockResponse defines the behavior of a mock Strava endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockStrava is a configurable mock Strava API server for testing.
type MockStrava struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	RequestCount int
	LastRequest  *http.Request
	LastHeader   http.Header
}

// NewMockStrava creates a new mock Strava server.
func NewMockStrava() *MockStrava {
	mock := &MockStrava{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequest = r
		mock.LastHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockStrava) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockStrava) Close() {
	m.server.Close()
}

// Reset clears the tracking state.
func (m *MockStrava) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequest = nil
	m.LastHeader = nil
}

// SetHandler sets a custom handler for a path.
func (m *MockStrava) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockStrava) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests received.
func (m *MockStrava) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// defaultHandler answers with a generic healthy JSON response.
func (m *MockStrava) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-RateLimit-Limit", "600,30000")
	w.Header().Set("X-RateLimit-Usage", "1,12")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

// NewTokenResponse builds a token endpoint payload.
func NewTokenResponse(accessToken, refreshToken string, expiresAt int64) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body: `{"access_token": "` + accessToken + `", "refresh_token": "` + refreshToken +
			`", "expires_at": ` + strconv.FormatInt(expiresAt, 10) + `, "token_type": "Bearer"}`,
		Headers: map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewErrorResponse builds a Strava error payload with the given status.
func NewErrorResponse(status int, message string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       `{"message": "` + message + `", "errors": []}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
