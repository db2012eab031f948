package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CheckoutAttempts counts checkout requests by outcome
// (settled, rejected, error).
var CheckoutAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marketplace_checkout_attempts_total",
		Help: "Checkout attempts by outcome.",
	},
	[]string{"result"},
)

// PaymentVerificationFailures counts on-chain verification rejections
// by failure kind.
var PaymentVerificationFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marketplace_payment_verification_failures_total",
		Help: "Payment verification failures by kind.",
	},
	[]string{"reason"},
)

// MetricsHandler exposes the Prometheus registry for the /metrics route.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
