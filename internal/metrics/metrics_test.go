package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_LabelsByRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Middleware)
	r.HandleFunc("/api/guides/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}).Methods(http.MethodGet)

	before := testutil.ToFloat64(RequestsTotal.WithLabelValues(http.MethodGet, "/api/guides/{id}", "418"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/guides/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/guides/def", nil))
	after := testutil.ToFloat64(RequestsTotal.WithLabelValues(http.MethodGet, "/api/guides/{id}", "418"))

	assert.Equal(t, 2.0, after-before)
}

func TestAuth(t *testing.T) {
	before := testutil.ToFloat64(AuthEvents.WithLabelValues("login", "rejected"))
	Auth("login", "rejected")
	assert.Equal(t, 1.0, testutil.ToFloat64(AuthEvents.WithLabelValues("login", "rejected"))-before)
}

func TestHandler_ExposesMetrics(t *testing.T) {
	Auth("refresh", "ok")
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "guide_api_auth_events_total"))
}
