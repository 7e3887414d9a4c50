package receiver

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the per-receiver collectors. Pass a nil registerer to
// keep the collectors unregistered (they still count, nothing scrapes
// them), which is what tests do.
type Metrics struct {
	messagesBuffered prometheus.Counter
	eventsDelivered  prometheus.Counter
	flushes          *prometheus.CounterVec
	retries          prometheus.Counter
	opens            prometheus.Counter
	bufferOccupancy  prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer, partition string) *Metrics {
	labels := prometheus.Labels{"partition": partition}

	m := &Metrics{
		messagesBuffered: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "streamhub_receiver_messages_buffered_total",
			Help:        "Raw messages pushed into the receive buffer",
			ConstLabels: labels,
		}),
		eventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "streamhub_receiver_events_delivered_total",
			Help:        "Converted events handed to the caller's handler",
			ConstLabels: labels,
		}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "streamhub_receiver_flushes_total",
			Help:        "Deliveries to the handler, by mode",
			ConstLabels: labels,
		}, []string{"mode"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "streamhub_receiver_retries_total",
			Help:        "Retryable pull failures absorbed by the retry loop",
			ConstLabels: labels,
		}),
		opens: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "streamhub_receiver_handler_opens_total",
			Help:        "Handler constructions, including reopen after failure",
			ConstLabels: labels,
		}),
		bufferOccupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "streamhub_receiver_buffer_occupancy",
			Help:        "Messages buffered but not yet delivered",
			ConstLabels: labels,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.messagesBuffered,
			m.eventsDelivered,
			m.flushes,
			m.retries,
			m.opens,
			m.bufferOccupancy,
		)
	}

	return m
}
