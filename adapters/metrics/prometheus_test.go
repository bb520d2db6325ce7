package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.ObserveLogin("manual")
	r.ObserveLogin("manual")
	r.ObserveLogout("revalidation")
	r.ObserveRestore("restored")
	r.ObserveCallback("needs_linking")
	r.ObserveRevalidation("invalid")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.LoginsTotal.WithLabelValues("manual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.LogoutsTotal.WithLabelValues("revalidation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RestoresTotal.WithLabelValues("restored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CallbacksTotal.WithLabelValues("needs_linking")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RevalidationsTotal.WithLabelValues("invalid")))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder(nil)
	r.ObserveLogin("secret")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `artcertify_session_logins_total{method="secret"} 1`)
}
