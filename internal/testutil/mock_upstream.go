// Package testutil provides testing utilities for the EPG proxy.
package testutil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

// MockResponse defines the behavior for a mock upstream document response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration

	// Gzip compresses Body before sending it.
	Gzip bool

	// DeclaredLength overrides the Content-Length header when non-zero.
	DeclaredLength int64

	// Gate, when set, blocks the handler until the channel is closed.
	Gate <-chan struct{}
}

// MockUpstream is a configurable mock EPG document server for testing.
type MockUpstream struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	counts   map[string]int

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
}

// NewMockUpstream creates a new mock upstream server.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		handlers: make(map[string]http.HandlerFunc),
		counts:   make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.counts[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the mock server URL joined with path.
func (m *MockUpstream) URL(path string) string {
	return m.server.URL + path
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.counts = make(map[string]int)
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockUpstream) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a response for a path.
func (m *MockUpstream) SetResponse(path string, resp MockResponse) {
	body := []byte(resp.Body)
	if resp.Gzip {
		body = Gzip(resp.Body)
	}

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Gate != nil {
			select {
			case <-resp.Gate:
			case <-r.Context().Done():
				return
			}
		}
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if resp.DeclaredLength > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(resp.DeclaredLength, 10))
		}

		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		out := body
		if resp.DeclaredLength > 0 && resp.DeclaredLength < int64(len(out)) {
			out = out[:resp.DeclaredLength]
		}
		_, _ = w.Write(out)
	})
}

// SetDocument serves doc with status 200 at path.
func (m *MockUpstream) SetDocument(path, doc string) {
	m.SetResponse(path, NewDocumentResponse(doc))
}

// SetStatus makes path answer with a bare status code.
func (m *MockUpstream) SetStatus(path string, status int) {
	m.SetResponse(path, MockResponse{StatusCode: status, Body: http.StatusText(status)})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockUpstream) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// Count returns the number of requests made for path.
func (m *MockUpstream) Count(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[path]
}

// Gzip compresses s.
func Gzip(s string) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(s))
	_ = zw.Close()
	return buf.Bytes()
}

// NewDocumentResponse creates a standard 200 OK XML response.
func NewDocumentResponse(doc string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       doc,
		Headers: map[string]string{
			"Content-Type": "application/xml; charset=utf-8",
			"Vary":         "User-Agent",
			"Set-Cookie":   "session=abc",
		},
	}
}

// NewGzipDocumentResponse creates a 200 OK gzip response.
func NewGzipDocumentResponse(doc string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       doc,
		Gzip:       true,
		Headers: map[string]string{
			"Content-Type": "application/gzip",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "internal server error",
	}
}
