package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Approval workflow metrics
	ApprovalTransitions *prometheus.CounterVec
	DispatchFailures    *prometheus.CounterVec

	// Subscription metrics
	ProvisioningTotal   *prometheus.CounterVec
	CheckoutVerifyTotal *prometheus.CounterVec

	// Notification metrics
	NotificationFailures prometheus.Counter

	initOnce sync.Once
)

// Init registers every collector under the given prefix. Safe to call more than once;
// only the first call registers.
func Init(prefix string) {
	initOnce.Do(func() {
		HTTPRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		)

		HTTPRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		)

		ApprovalTransitions = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_approval_transitions_total",
				Help: "Approval request state transitions",
			},
			[]string{"request_type", "action"},
		)

		DispatchFailures = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_approval_dispatch_failures_total",
				Help: "Approved requests whose side effect failed to apply",
			},
			[]string{"request_type"},
		)

		ProvisioningTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_tenant_provisioning_total",
				Help: "Tenant provisioning attempts by entry point and result",
			},
			[]string{"entry_point", "result"},
		)

		CheckoutVerifyTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_checkout_verifications_total",
				Help: "Checkout verification calls by result",
			},
			[]string{"result"},
		)

		NotificationFailures = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "_notification_failures_total",
				Help: "Notifications that could not be stored",
			},
		)
	})
}

// RecordApproval increments the transition counter. No-op before Init.
func RecordApproval(requestType, action string) {
	if ApprovalTransitions != nil {
		ApprovalTransitions.WithLabelValues(requestType, action).Inc()
	}
}

func RecordDispatchFailure(requestType string) {
	if DispatchFailures != nil {
		DispatchFailures.WithLabelValues(requestType).Inc()
	}
}

func RecordProvisioning(entryPoint, result string) {
	if ProvisioningTotal != nil {
		ProvisioningTotal.WithLabelValues(entryPoint, result).Inc()
	}
}

func RecordCheckoutVerify(result string) {
	if CheckoutVerifyTotal != nil {
		CheckoutVerifyTotal.WithLabelValues(result).Inc()
	}
}

func RecordNotificationFailure() {
	if NotificationFailures != nil {
		NotificationFailures.Inc()
	}
}
