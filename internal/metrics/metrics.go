package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes counters for the mutation path, the live subscription and
// public registrations. A nil *Recorder is valid and records nothing.
type Recorder struct {
	reg *prometheus.Registry

	mutations     *prometheus.CounterVec
	snapshots     prometheus.Counter
	mirrorGames   prometheus.Gauge
	subErrors     prometheus.Counter
	registrations *prometheus.CounterVec
	wsClients     prometheus.Gauge
}

// NewRecorder builds a Recorder on its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		reg: reg,
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizdesk",
			Name:      "mutations_total",
			Help:      "Writes sent through the mutation gateway, by operation and result.",
		}, []string{"op", "result"}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quizdesk",
			Name:      "mirror_snapshots_total",
			Help:      "Full snapshots applied to the local mirror.",
		}),
		mirrorGames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quizdesk",
			Name:      "mirror_games",
			Help:      "Games held by the local mirror.",
		}),
		subErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quizdesk",
			Name:      "subscription_errors_total",
			Help:      "Errors reported by the live games subscription.",
		}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizdesk",
			Name:      "registrations_total",
			Help:      "Public team registration attempts, by result.",
		}, []string{"result"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quizdesk",
			Name:      "dashboard_clients",
			Help:      "Connected dashboard websocket clients.",
		}),
	}
	reg.MustRegister(r.mutations, r.snapshots, r.mirrorGames, r.subErrors, r.registrations, r.wsClients)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests gather from it).
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordMutation counts one gateway write.
func (r *Recorder) RecordMutation(op string, err error) {
	if r == nil {
		return
	}
	r.mutations.WithLabelValues(op, result(err)).Inc()
}

// RecordSnapshot counts an applied snapshot of n games.
func (r *Recorder) RecordSnapshot(n int) {
	if r == nil {
		return
	}
	r.snapshots.Inc()
	r.mirrorGames.Set(float64(n))
}

// RecordSubscriptionError counts a subscription failure.
func (r *Recorder) RecordSubscriptionError() {
	if r == nil {
		return
	}
	r.subErrors.Inc()
}

// RecordRegistration counts a public registration by outcome
// ("ok", "invalid", "error").
func (r *Recorder) RecordRegistration(outcome string) {
	if r == nil {
		return
	}
	r.registrations.WithLabelValues(outcome).Inc()
}

// ClientConnected adjusts the connected dashboard client gauge by delta.
func (r *Recorder) ClientConnected(delta int) {
	if r == nil {
		return
	}
	r.wsClients.Add(float64(delta))
}
