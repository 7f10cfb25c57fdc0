// Package metrics exposes the Prometheus collectors for the back office.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aegis_bookings_created_total",
		Help: "Bookings accepted through the public form.",
	})

	bookingStatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_booking_status_transitions_total",
		Help: "Booking status transitions by target status.",
	}, []string{"to"})

	invoicesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aegis_invoices_created_total",
		Help: "Invoices created against the payment provider.",
	})

	paymentEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_payment_events_total",
		Help: "Verified webhook events by reconciliation outcome.",
	}, []string{"outcome"})

	invalidSignatures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aegis_webhook_invalid_signature_total",
		Help: "Webhook deliveries rejected for a bad signature.",
	})

	sweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aegis_sweep_duration_seconds",
		Help:    "Scheduler sweep duration by job.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aegis_http_request_duration_seconds",
		Help:    "HTTP request duration by route and status class.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func IncBookingCreated() { bookingsCreated.Inc() }

func IncBookingTransition(to string) { bookingStatusTransitions.WithLabelValues(to).Inc() }

func IncInvoiceCreated() { invoicesCreated.Inc() }

func IncPaymentEvent(outcome string) { paymentEvents.WithLabelValues(outcome).Inc() }

func IncInvalidSignature() { invalidSignatures.Inc() }

func ObserveSweepDuration(job string, d time.Duration) {
	sweepDuration.WithLabelValues(job).Observe(d.Seconds())
}

func ObserveHTTPRequest(method, route, status string, d time.Duration) {
	httpRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}
