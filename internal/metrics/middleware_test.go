package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/spanhygiene/internal/logging"
	"github.com/fyrsmithlabs/spanhygiene/internal/telemetry"
)

func TestHTTPMetrics_Middleware(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	m := NewHTTPMetrics(tt.Meter("metrics.http"), logging.NewNop())
	srv := newTestServer(t, tt.Registry(), WithHTTPMetrics(m))

	for _, path := range []string{"/health", "/metrics", "/nope"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	total, ok := tt.Int64Sum(t, "metrics.http.requests")
	require.True(t, ok)
	assert.Equal(t, int64(3), total)

	active, ok := tt.Int64Sum(t, "metrics.http.active_requests")
	require.True(t, ok)
	assert.Equal(t, int64(0), active)
}

func TestHTTPMetrics_PanicReleasesActiveRequest(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	m := NewHTTPMetrics(tt.Meter("metrics.http"), logging.NewNop())
	srv := newTestServer(t, tt.Registry(), WithHTTPMetrics(m))
	srv.echo.GET("/boom", func(echo.Context) error {
		panic("handler failed")
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	active, ok := tt.Int64Sum(t, "metrics.http.active_requests")
	require.True(t, ok)
	assert.Equal(t, int64(0), active)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/metrics", routeLabel("/metrics"))
	assert.Equal(t, "unmatched", routeLabel(""))
	assert.Equal(t, "unmatched", routeLabel("/*"))
}
