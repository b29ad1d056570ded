package gateway

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the gateway's Prometheus instruments.
type metrics struct {
	framesTotal     prometheus.Counter
	eventsTotal     *prometheus.CounterVec
	droppedFrames   prometheus.Counter
	reconnectsTotal prometheus.Counter
	connectionState prometheus.Gauge
}

var (
	globalMetrics     *metrics
	globalMetricsOnce sync.Once
)

// gatewayMetrics returns the process-wide metrics instance, registering
// it on first use.
func gatewayMetrics() *metrics {
	globalMetricsOnce.Do(func() {
		globalMetrics = &metrics{
			framesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "accord",
				Subsystem: "gateway",
				Name:      "frames_total",
				Help:      "Total number of frames received from the event stream",
			}),

			eventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "accord",
				Subsystem: "gateway",
				Name:      "events_total",
				Help:      "Total number of dispatched events by kind",
			}, []string{"event"}),

			droppedFrames: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "accord",
				Subsystem: "gateway",
				Name:      "dropped_frames_total",
				Help:      "Total number of frames dropped as malformed",
			}),

			reconnectsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "accord",
				Subsystem: "gateway",
				Name:      "reconnects_total",
				Help:      "Total number of backoff-scheduled reconnect attempts",
			}),

			connectionState: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: "accord",
				Subsystem: "gateway",
				Name:      "connection_state",
				Help:      "Current connection state (0=disconnected 1=connecting 2=awaiting_ready 3=ready 4=reconnecting)",
			}),
		}
	})
	return globalMetrics
}
