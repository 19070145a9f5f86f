package auth

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts auth activity. It is an ActivitySink so it can be
// handed to the registry, the reset flow and registration directly.
type Metrics struct {
	EventsTotal   *prometheus.CounterVec
	RequestsTotal *prometheus.CounterVec
}

var _ ActivitySink = (*Metrics)(nil)

// NewMetrics creates and registers the auth metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_events_total",
				Help: "Total number of auth activity events by type",
			},
			[]string{"event"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_http_requests_total",
				Help: "Total number of auth HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
	}

	reg.MustRegister(m.EventsTotal)
	reg.MustRegister(m.RequestsTotal)

	return m
}

// Record implements ActivitySink
func (m *Metrics) Record(_ context.Context, event ActivityEvent) error {
	m.EventsTotal.WithLabelValues(string(event.EventType)).Inc()
	return nil
}

// Middleware counts requests by matched route pattern and status
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route := c.Route().Path
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		return err
	}
}
