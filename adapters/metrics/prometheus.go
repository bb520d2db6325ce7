package metrics

import (
	"net/http"

	"github.com/ArtCertify/ArtCertify-sub001/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the session lifecycle counters
type Recorder struct {
	registry *prometheus.Registry

	LoginsTotal        *prometheus.CounterVec
	LogoutsTotal       *prometheus.CounterVec
	RestoresTotal      *prometheus.CounterVec
	CallbacksTotal     *prometheus.CounterVec
	RevalidationsTotal *prometheus.CounterVec
}

var _ ports.Metrics = (*Recorder)(nil)

// NewRecorder creates and registers all counters on registry.
// A nil registry gets a fresh one.
func NewRecorder(registry *prometheus.Registry) *Recorder {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	r := &Recorder{
		registry: registry,
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "artcertify_session_logins_total",
				Help: "Total number of logins by method",
			},
			[]string{"method"},
		),
		LogoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "artcertify_session_logouts_total",
				Help: "Total number of logout cleanups by reason",
			},
			[]string{"reason"},
		),
		RestoresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "artcertify_session_restores_total",
				Help: "Total number of startup restorations by outcome",
			},
			[]string{"outcome"},
		),
		CallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "artcertify_federation_callbacks_total",
				Help: "Total number of federated login callbacks by outcome",
			},
			[]string{"outcome"},
		),
		RevalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "artcertify_revalidations_total",
				Help: "Total number of credential revalidations by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		r.LoginsTotal,
		r.LogoutsTotal,
		r.RestoresTotal,
		r.CallbacksTotal,
		r.RevalidationsTotal,
	)

	return r
}

// Handler returns the HTTP handler exposing the registry
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveLogin counts a login by method
func (r *Recorder) ObserveLogin(method string) {
	r.LoginsTotal.WithLabelValues(method).Inc()
}

// ObserveLogout counts a logout by reason
func (r *Recorder) ObserveLogout(reason string) {
	r.LogoutsTotal.WithLabelValues(reason).Inc()
}

// ObserveRestore counts a restore by outcome
func (r *Recorder) ObserveRestore(outcome string) {
	r.RestoresTotal.WithLabelValues(outcome).Inc()
}

// ObserveCallback counts a federated callback by outcome
func (r *Recorder) ObserveCallback(outcome string) {
	r.CallbacksTotal.WithLabelValues(outcome).Inc()
}

// ObserveRevalidation counts a revalidation check by result
func (r *Recorder) ObserveRevalidation(result string) {
	r.RevalidationsTotal.WithLabelValues(result).Inc()
}
