package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveContactOp(t *testing.T) {
	before := testutil.ToFloat64(contactOps.WithLabelValues("create", "error"))
	ObserveContactOp("create", errors.New("boom"))
	after := testutil.ToFloat64(contactOps.WithLabelValues("create", "error"))
	assert.Equal(t, before+1, after)
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/churches/{churchID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", Handler())

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/churches/{churchID}", "418"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/churches/abc", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/churches/{churchID}", "418"))
	assert.Equal(t, before+1, after)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "shepherd_http_requests_total"))
}
