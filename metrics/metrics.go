// Package metrics exports Prometheus counters for issuance and self-service
// activity. Collectors are fed from the event bus.
package metrics

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/benefit-engine/events"
	"github.com/warp/benefit-engine/issuance"
	"github.com/warp/benefit-engine/selfservice"
)

// Voucher outcome labels. Issued-but-not-notified is its own label.
const (
	OutcomeIssued      = "issued"
	OutcomeNotNotified = "not_notified"
	OutcomeIssueFailed = "issue_failed"
)

type collectors struct {
	vouchers      *prometheus.CounterVec
	requests      *prometheus.CounterVec
	stageFailures *prometheus.CounterVec
	duration      prometheus.Histogram
	redeemed      prometheus.Counter
	expired       prometheus.Counter
	selfService   *prometheus.CounterVec
}

var collectorsSingleton = sync.OnceValue(func() *collectors {
	return &collectors{
		vouchers: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "benefits",
			Name:      "vouchers_total",
			Help:      "Voucher issuance attempts by outcome.",
		}, []string{"outcome"}),
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "benefits",
			Name:      "issuance_requests_total",
			Help:      "Issuance requests by overall status.",
		}, []string{"status"}),
		stageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "benefits",
			Name:      "issuance_stage_failures_total",
			Help:      "Per-item stage failures.",
		}, []string{"stage", "code"}),
		duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "benefits",
			Name:      "issuance_duration_seconds",
			Help:      "Time from first item to aggregated result.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		redeemed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "benefits",
			Name:      "vouchers_redeemed_total",
			Help:      "Vouchers redeemed.",
		}),
		expired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "benefits",
			Name:      "vouchers_expired_total",
			Help:      "Vouchers moved to expired by the sweep.",
		}),
		selfService: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "benefits",
			Name:      "selfservice_requests_total",
			Help:      "Self-service request lifecycle events.",
		}, []string{"event"}),
	}
})

func getCollectors() *collectors {
	return collectorsSingleton()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Attach subscribes the collectors to bus and returns a function that
// detaches them.
func Attach(bus *events.Bus) func() {
	m := getCollectors()

	unsubs := []func(){
		events.Subscribe(bus, func(_ context.Context, e issuance.VoucherIssued) {
			m.vouchers.WithLabelValues(OutcomeIssued).Inc()
		}),
		events.Subscribe(bus, func(_ context.Context, e issuance.VoucherNotNotified) {
			m.vouchers.WithLabelValues(OutcomeNotNotified).Inc()
		}),
		events.Subscribe(bus, func(_ context.Context, e issuance.VoucherIssueFailed) {
			m.vouchers.WithLabelValues(OutcomeIssueFailed).Inc()
		}),
		events.Subscribe(bus, func(_ context.Context, e issuance.IssuanceCompleted) {
			m.requests.WithLabelValues(string(e.Status)).Inc()
			if e.Result == nil {
				return
			}
			for _, o := range e.Result.Outcomes {
				for _, f := range o.Failures {
					m.stageFailures.WithLabelValues(string(f.Stage), f.Code).Inc()
				}
			}
			m.duration.Observe(e.Result.CompletedAt.Sub(e.Result.StartedAt).Seconds())
		}),
		events.Subscribe(bus, func(_ context.Context, e issuance.IssuanceRejected) {
			m.requests.WithLabelValues("rejected").Inc()
		}),
		events.Subscribe(bus, func(_ context.Context, e issuance.VoucherRedeemed) {
			m.redeemed.Inc()
		}),
		events.Subscribe(bus, func(_ context.Context, e issuance.VouchersExpired) {
			m.expired.Add(float64(e.Count))
		}),
		events.Subscribe(bus, func(_ context.Context, e selfservice.RequestSubmitted) {
			m.selfService.WithLabelValues("submitted").Inc()
		}),
		events.Subscribe(bus, func(_ context.Context, e selfservice.RequestReviewed) {
			m.selfService.WithLabelValues(string(e.Request.Status)).Inc()
		}),
	}

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
