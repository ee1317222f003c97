package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("GET", 200, time.Millisecond)
	m.Rollback("send")
	m.RealtimeEvent("newMessage")
	m.Toast("error")
	m.SocketConnected(true)
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", 200, time.Millisecond)
	m.ObserveHTTP("GET", 204, time.Millisecond)
	m.ObserveHTTP("POST", 401, time.Millisecond)
	m.ObserveHTTP("POST", 0, time.Millisecond)
	m.Rollback("send")
	m.Rollback("send")
	m.Toast("error")

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "2xx")); got != 2 {
		t.Errorf("GET 2xx = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "4xx")); got != 1 {
		t.Errorf("POST 4xx = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "error")); got != 1 {
		t.Errorf("POST error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.rollbacks.WithLabelValues("send")); got != 2 {
		t.Errorf("rollbacks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.toasts.WithLabelValues("error")); got != 1 {
		t.Errorf("toasts = %v, want 1", got)
	}
}

func TestCodeClass(t *testing.T) {
	tests := map[int]string{0: "error", -1: "error", 100: "other", 200: "2xx", 302: "3xx", 404: "4xx", 503: "5xx", 700: "other"}
	for code, want := range tests {
		if got := codeClass(code); got != want {
			t.Errorf("codeClass(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestMethodName(t *testing.T) {
	if got := methodName("/chatline.v1.Control/Send"); got != "Send" {
		t.Errorf("methodName = %q", got)
	}
}
