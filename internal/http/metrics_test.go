package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":                                "/",
		"/":                               "/",
		"/api/v1/profile":                 "/api/v1/profile",
		"/admin/tasks/42/run":             "/admin/tasks/:param/run",
		"/x/0190a5b2-7c1e-7d4f-9a3b-1c2d": "/x/:param",
		"/t/abcdefghijklmnopqrstuvwxyz_-": "/t/:param",
		"/healthz?verbose=1":              "/healthz",
	}
	for in, want := range cases {
		require.Equal(t, want, normalizePath(in), "input %q", in)
	}
}

func TestInstrument_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := newHTTPMetrics(MetricsConfig{Registry: reg})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(m.instrument)
	r.Post("/admin/tasks/{name}/run", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	for _, name := range []string{"generate", "purge"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/admin/tasks/"+name+"/run", nil))
	}
	require.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "/admin/tasks/{name}/run", "202")))

	// registrar dos veces sobre el mismo registry reutiliza los vectores
	m2, err := newHTTPMetrics(MetricsConfig{Registry: reg})
	require.NoError(t, err)
	require.Same(t, m.requests, m2.requests)
}
