package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	httpadapter "github.com/couchcryptid/weather-monitor-service/internal/adapter/http"
	"github.com/couchcryptid/weather-monitor-service/internal/adapter/memstore"
	"github.com/couchcryptid/weather-monitor-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func serve(srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestProbeEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		readyErr   error
		wantStatus int
		wantBody   map[string]string
	}{
		{
			name:       "liveness",
			path:       "/healthz",
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"status": "healthy"},
		},
		{
			name:       "liveness ignores readiness",
			path:       "/healthz",
			readyErr:   errors.New("no reading has been stored yet"),
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"status": "healthy"},
		},
		{
			name:       "ready",
			path:       "/readyz",
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"status": "ready"},
		},
		{
			name:       "not ready",
			path:       "/readyz",
			readyErr:   errors.New("store unreachable: database is locked"),
			wantStatus: http.StatusServiceUnavailable,
			wantBody: map[string]string{
				"status": "not ready",
				"error":  "store unreachable: database is locked",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httpadapter.NewServer(":0", &mockReadiness{err: tt.readyErr}, nil, slog.Default())

			rec := serve(srv, tt.path)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			for k, v := range tt.wantBody {
				assert.Equal(t, v, body[k], k)
			}
		})
	}
}

func TestMetricsServesDefaultRegistry(t *testing.T) {
	srv := httpadapter.NewServer(":0", &mockReadiness{}, nil, slog.Default())

	rec := serve(srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAPIMountedOnlyWhenProvided(t *testing.T) {
	without := httpadapter.NewServer(":0", &mockReadiness{}, nil, slog.Default())
	assert.Equal(t, http.StatusNotFound, serve(without, "/api/v1/cities").Code)

	with := newAPIServer(t, memstore.New(), domain.Celsius)
	assert.Equal(t, http.StatusOK, serve(with, "/api/v1/cities").Code)
	assert.Equal(t, http.StatusOK, serve(with, "/healthz").Code, "probes stay mounted beside the API")
}
