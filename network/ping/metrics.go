package ping

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "taskping"

// Metrics holds the Prometheus instruments shared by any number of
// sessions. Register once, then attach per-session observers.
type Metrics struct {
	echoes *prometheus.CounterVec
	rtt    *prometheus.HistogramVec
}

// NewMetrics registers the instruments with reg, or with the default
// registerer when nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		echoes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "echoes_total",
			Help:      "Echo requests by target and outcome.",
		}, []string{"target", "result"}),
		rtt: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "rtt_seconds",
			Help:      "Round-trip time of received echo replies.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"target"}),
	}
}

// Observer returns a progress observer exporting s's echo outcomes,
// forwarding callbacks to next (may be nil). It reads the session's
// accessors from inside OnReceive, which runs on the Run goroutine, so no
// extra synchronization is needed.
func (m *Metrics) Observer(s *Session, next Observer) Observer {
	return &metricsObserver{m: m, s: s, next: next}
}

type metricsObserver struct {
	m    *Metrics
	s    *Session
	next Observer
}

func (o *metricsObserver) OnReceive(bytes int) {
	// LastRTT is 0 exactly when the echo was lost; measured trips are
	// clamped to at least one microsecond.
	if last := o.s.LastRTT(); last > 0 {
		o.m.echoes.WithLabelValues(o.s.Target(), "received").Inc()
		o.m.rtt.WithLabelValues(o.s.Target()).Observe(last / 1000)
	} else {
		o.m.echoes.WithLabelValues(o.s.Target(), "lost").Inc()
	}
	if o.next != nil {
		o.next.OnReceive(bytes)
	}
}

func (o *metricsObserver) OnWait() {
	if o.next != nil {
		o.next.OnWait()
	}
}
