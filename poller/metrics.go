package poller

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fabriqs/wedding-pix/payment"
)

var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weddingpix",
		Subsystem: "poller",
		Name:      "checks_total",
		Help:      "Status checks issued by the payment poller",
	}, []string{"outcome"})

	checkDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "weddingpix",
		Subsystem: "poller",
		Name:      "check_duration_seconds",
		Help:      "Duration of payment status checks",
		Buckets:   prometheus.DefBuckets,
	})

	staleResults = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "weddingpix",
		Subsystem: "poller",
		Name:      "stale_results_total",
		Help:      "Status check results dropped because a newer check was issued",
	})
)

func observeCheck(status *payment.StatusResult, err error, took time.Duration) {
	checkDurationSeconds.Observe(took.Seconds())

	outcome := "error"
	if err == nil && status != nil {
		outcome = status.Status.String()
	}
	checksTotal.WithLabelValues(outcome).Inc()
}
