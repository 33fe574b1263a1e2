// Package metrics exposes Prometheus instruments for session operations.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authsession"

// Operation names used as the "operation" label.
const (
	OpLogin   = "login"
	OpRefresh = "refresh"
	OpSignOut = "sign_out"
	OpSweep   = "sweep"
)

// Recorder counts and times session operations.
type Recorder struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	swept      prometheus.Counter
}

// NewRecorder creates the instruments and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Session operations by outcome.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Session operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_refresh_tokens_total",
			Help:      "Refresh tokens removed by expiry sweeps.",
		}),
	}
	reg.MustRegister(r.operations, r.duration, r.swept)
	return r
}

// Observe records one operation that started at start and ended with err.
// A nil Recorder is a no-op.
func (r *Recorder) Observe(op string, start time.Time, err error) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(op, Result(err)).Inc()
	r.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Operations exposes the operation counter.
func (r *Recorder) Operations() *prometheus.CounterVec {
	return r.operations
}

// AddSwept adds n removed rows.
func (r *Recorder) AddSwept(n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.swept.Add(float64(n))
}

// Result maps an operation error to a low-cardinality label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, common.ErrMissingToken):
		return "missing_token"
	case errors.Is(err, common.ErrInvalidRefreshToken):
		return "invalid_refresh_token"
	case errors.Is(err, common.ErrInvalidUser):
		return "invalid_user"
	default:
		return "error"
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
