package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/rosterfilter/internal/logging"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(logging.New(&buf, "debug", "text"))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLogger_RecordsRequest(t *testing.T) {
	logs := captureLogs(t)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(Logger)
	r.Get("/runs/{runID}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	out := logs.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "path=/runs/abc")
	assert.Contains(t, out, "route=/runs/{runID}")
	assert.Contains(t, out, "status=200")
	assert.Contains(t, out, "bytes=5")
	assert.Contains(t, out, "request_id=")
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusNotFound, "level=WARN"},
		{http.StatusInternalServerError, "level=ERROR"},
	}

	for _, tt := range tests {
		logs := captureLogs(t)
		h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

		line := strings.TrimSpace(logs.String())
		assert.Contains(t, line, tt.level, "status %d", tt.status)
	}
}

func TestResponseWriter_IgnoresSecondWriteHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	ww := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	ww.WriteHeader(http.StatusCreated)
	ww.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusCreated, ww.status)
	assert.Equal(t, rec, ww.Unwrap())
}
