package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/status-page-server/internal/api"
	"github.com/stacklok/status-page-server/internal/store/inmemory"
	"github.com/stacklok/status-page-server/internal/store/mocks"
)

type countingNotifier struct {
	n atomic.Int32
}

func (c *countingNotifier) Notify() { c.n.Add(1) }

func outputDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Status</h1>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "3.html"), []byte("<h1>Outage</h1>"), 0o600))
	return dir
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	// health does not touch the store
	server := api.NewServer(mocks.NewMockStore(ctrl), &countingNotifier{}, outputDir(t))

	rr := serve(server, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		pingErr        error
		expectedStatus int
		expectedBody   string
	}{
		{name: "store ready", expectedStatus: http.StatusOK, expectedBody: "ready"},
		{name: "store not ready", pingErr: errors.New("connection refused"),
			expectedStatus: http.StatusServiceUnavailable, expectedBody: "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			st := mocks.NewMockStore(ctrl)
			st.EXPECT().Ping(gomock.Any()).Return(tt.pingErr)

			rr := serve(api.NewServer(st, &countingNotifier{}, outputDir(t)), http.MethodGet, "/readiness", "")
			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
		})
	}
}

func TestServer_AdminMutationSignals(t *testing.T) {
	t.Parallel()

	notifier := &countingNotifier{}
	server := api.NewServer(inmemory.New(), notifier, outputDir(t))

	rr := serve(server, http.MethodPost, "/admin/services", `{"name":"Mail","url":"https://mail.example"}`)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, int32(1), notifier.n.Load())

	rr = serve(server, http.MethodPost, "/admin/regenerate", "")
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, int32(2), notifier.n.Load())
}

func TestServer_StaticSite(t *testing.T) {
	t.Parallel()

	server := api.NewServer(inmemory.New(), &countingNotifier{}, outputDir(t))

	tests := []struct {
		target string
		status int
		body   string
	}{
		{target: "/", status: http.StatusOK, body: "<h1>Status</h1>"},
		{target: "/3.html", status: http.StatusOK, body: "<h1>Outage</h1>"},
		{target: "/incidents/3", status: http.StatusOK, body: "<h1>Outage</h1>"},
		{target: "/incidents/4", status: http.StatusNotFound},
		{target: "/live", status: http.StatusNotFound},
		{target: "/metrics", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		rr := serve(server, http.MethodGet, tt.target, "")
		assert.Equal(t, tt.status, rr.Code, tt.target)
		if tt.body != "" {
			assert.Equal(t, tt.body, rr.Body.String(), tt.target)
		}
	}
}

func TestServer_OptionalHandlers(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("status_page_renders_total 1"))
	})
	live := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusSwitchingProtocols)
	})

	var seen atomic.Int32
	counting := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen.Add(1)
			next.ServeHTTP(w, r)
		})
	}

	server := api.NewServer(inmemory.New(), &countingNotifier{}, outputDir(t),
		api.WithMetricsHandler(metrics),
		api.WithLiveHub(live),
		api.WithRequestTimeout(time.Second),
		api.WithMiddlewares(middleware.RequestID, counting, api.LoggingMiddleware),
	)

	rr := serve(server, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "status_page_renders_total")

	rr = serve(server, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusSwitchingProtocols, rr.Code)

	assert.Equal(t, int32(2), seen.Load())
}

func TestServer_AdminMiddleware(t *testing.T) {
	t.Parallel()

	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	notifier := &countingNotifier{}
	server := api.NewServer(inmemory.New(), notifier, outputDir(t), api.WithAdminMiddleware(deny))

	rr := serve(server, http.MethodPost, "/admin/regenerate", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Zero(t, notifier.n.Load())

	// public routes stay open
	assert.Equal(t, http.StatusOK, serve(server, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(server, http.MethodGet, "/", "").Code)
}
