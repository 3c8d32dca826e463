// Package metrics collects and exposes Prometheus metrics for the gateway
// and the notification relay.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector registers and updates the authgate metric families.
type Collector struct {
	registry *prometheus.Registry

	gatewayRequests *prometheus.CounterVec
	signinThrottled prometheus.Counter
	relayAttempts   prometheus.Counter
	relayOutcomes   *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_gateway_requests_total",
			Help: "Gateway requests by route and response status.",
		}, []string{"route", "status"}),
		signinThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_signin_throttled_total",
			Help: "Sign-in requests rejected by the rate limiter.",
		}),
		relayAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_relay_attempts_total",
			Help: "Webhook delivery attempts.",
		}),
		relayOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_relay_deliveries_total",
			Help: "Webhook jobs by terminal outcome.",
		}, []string{"outcome"}),
	}

	c.registry.MustRegister(
		c.gatewayRequests,
		c.signinThrottled,
		c.relayAttempts,
		c.relayOutcomes,
	)

	return c
}

func (c *Collector) RecordGatewayRequest(route string, status int) {
	c.gatewayRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func (c *Collector) RecordSignInThrottled() {
	c.signinThrottled.Inc()
}

func (c *Collector) RecordRelayAttempt() {
	c.relayAttempts.Inc()
}

func (c *Collector) RecordRelayOutcome(outcome string) {
	c.relayOutcomes.WithLabelValues(outcome).Inc()
}

// Handler exposes the registry for the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
