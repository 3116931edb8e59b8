// Package metrics owns the Prometheus collectors for the HTTP layer and the
// business events emitted by the services.
//
// Collectors live on a private registry rather than the global default so
// that tests can build as many Metrics values as they like without
// duplicate-registration panics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "climate_crew"

// Metrics implements service.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	authRejections prometheus.Counter
	rateLimited    *prometheus.CounterVec

	tasksCompleted     prometheus.Counter
	pointsAwarded      prometheus.Counter
	tasksAssigned      prometheus.Counter
	submissionsCreated prometheus.Counter
	upvotes            prometheus.Counter
	usersRegistered    prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		authRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_rejections_total",
			Help:      "Requests rejected for missing or invalid credentials",
		}),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),

		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Tasks marked completed",
		}),
		pointsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Points credited for completed tasks",
		}),
		tasksAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_assigned_total",
			Help:      "Task texts assigned to users",
		}),
		submissionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_created_total",
			Help:      "Submissions stored",
		}),
		upvotes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upvotes_total",
			Help:      "Upvotes recorded",
		}),
		usersRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_registered_total",
			Help:      "Accounts registered",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.authRejections,
		m.rateLimited,
		m.tasksCompleted,
		m.pointsAwarded,
		m.tasksAssigned,
		m.submissionsCreated,
		m.upvotes,
		m.usersRegistered,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests and for callers that add their own collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRequest records one finished HTTP request. route is the chi route
// pattern, not the raw path, so IDs do not blow up label cardinality.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
	if status == http.StatusUnauthorized {
		m.authRejections.Inc()
	}
}

func (m *Metrics) RateLimited(route string) {
	m.rateLimited.WithLabelValues(route).Inc()
}

func (m *Metrics) TaskCompleted(points int) {
	m.tasksCompleted.Inc()
	m.pointsAwarded.Add(float64(points))
}

func (m *Metrics) TaskAssigned()      { m.tasksAssigned.Inc() }
func (m *Metrics) SubmissionCreated() { m.submissionsCreated.Inc() }
func (m *Metrics) SubmissionUpvoted() { m.upvotes.Inc() }
func (m *Metrics) UserRegistered()    { m.usersRegistered.Inc() }
