package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		expected   string
	}{
		{
			name:       "remote addr with port",
			remoteAddr: "192.168.1.1:12345",
			expected:   "192.168.1.1",
		},
		{
			name:       "ipv6 remote addr",
			remoteAddr: "[::1]:8080",
			expected:   "::1",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "192.168.1.1",
			expected:   "192.168.1.1",
		},
		{
			name:       "forwarded header ignored without trust",
			remoteAddr: "127.0.0.1:5000",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1"},
			expected:   "127.0.0.1",
		},
		{
			name:       "first forwarded address when trusted",
			remoteAddr: "127.0.0.1:5000",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1  ,  198.51.100.1"},
			trustProxy: true,
			expected:   "203.0.113.1",
		},
		{
			name:       "real ip when trusted",
			remoteAddr: "127.0.0.1:5000",
			headers:    map[string]string{"X-Real-IP": "203.0.113.7"},
			trustProxy: true,
			expected:   "203.0.113.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			require.Equal(t, tt.expected, ExtractClientIP(r, tt.trustProxy))
		})
	}
}

func TestClientIPMiddleware(t *testing.T) {
	var got string
	handler := ClientIPMiddleware(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIPFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "10.0.0.1", got)
}

func TestRequestIDMiddleware(t *testing.T) {
	var got string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequestIDFromContext(r.Context())
	}))

	t.Run("assigns an id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		_, err := uuid.Parse(got)
		require.NoError(t, err)
		assert.Equal(t, got, rec.Header().Get(RequestIDHeader))
	})

	t.Run("keeps a valid incoming id", func(t *testing.T) {
		incoming := uuid.NewString()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(RequestIDHeader, incoming)

		handler.ServeHTTP(httptest.NewRecorder(), r)
		assert.Equal(t, incoming, got)
	})

	t.Run("replaces a malformed incoming id", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(RequestIDHeader, "<script>")

		handler.ServeHTTP(httptest.NewRecorder(), r)
		assert.NotEqual(t, "<script>", got)
	})
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := AccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/studios", nil))

	assert.Contains(t, buf.String(), `"path":"/studios"`)
	assert.Contains(t, buf.String(), `"status":418`)
}
