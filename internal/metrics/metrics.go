// Package metrics exposes the client's Prometheus collectors. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Metrics owns a private registry so several clients can live in one process.
type Metrics struct {
	reg *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	rollbacks       *prometheus.CounterVec
	realtimeEvents  *prometheus.CounterVec
	toasts          *prometheus.CounterVec
	socketConnected prometheus.Gauge
	controlHandled  *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatline_http_requests_total",
				Help: "Backend HTTP requests by method and status class.",
			},
			[]string{"method", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatline_http_request_duration_seconds",
				Help:    "Backend HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatline_optimistic_rollbacks_total",
				Help: "Optimistic mutations reverted after a failed request.",
			},
			[]string{"command"},
		),
		realtimeEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatline_realtime_events_total",
				Help: "Server-pushed events received.",
			},
			[]string{"event"},
		),
		toasts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatline_toasts_total",
				Help: "Toasts raised by severity.",
			},
			[]string{"severity"},
		),
		socketConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatline_socket_connected",
			Help: "1 while the real-time channel is connected.",
		}),
		controlHandled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatline_control_handled_total",
				Help: "Control API calls by method and gRPC code.",
			},
			[]string{"method", "code"},
		),
	}
	m.reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.rollbacks,
		m.realtimeEvents,
		m.toasts,
		m.socketConnected,
		m.controlHandled,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// ObserveHTTP records one backend request. code 0 means the request never got
// a response.
func (m *Metrics) ObserveHTTP(method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, codeClass(code)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}

// Rollback counts a reverted optimistic command.
func (m *Metrics) Rollback(command string) {
	if m == nil {
		return
	}
	m.rollbacks.WithLabelValues(command).Inc()
}

// RealtimeEvent counts a received push event.
func (m *Metrics) RealtimeEvent(name string) {
	if m == nil {
		return
	}
	m.realtimeEvents.WithLabelValues(name).Inc()
}

// Toast counts a raised toast.
func (m *Metrics) Toast(severity string) {
	if m == nil {
		return
	}
	m.toasts.WithLabelValues(severity).Inc()
}

// SocketConnected sets the connection gauge.
func (m *Metrics) SocketConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.socketConnected.Set(1)
	} else {
		m.socketConnected.Set(0)
	}
}

// UnaryInterceptor counts control API calls.
func (m *Metrics) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if m != nil {
			m.controlHandled.WithLabelValues(methodName(info.FullMethod), status.Code(err).String()).Inc()
		}
		return resp, err
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func codeClass(code int) string {
	switch {
	case code <= 0:
		return "error"
	case code < 200 || code > 599:
		return "other"
	default:
		return string(rune('0'+code/100)) + "xx"
	}
}

func methodName(full string) string {
	if i := strings.LastIndex(full, "/"); i >= 0 {
		return full[i+1:]
	}
	return full
}
