// Package observability exposes the Prometheus metrics of the chat server.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chat"

// PresenceCounter is read on every scrape.
type PresenceCounter interface {
	Counts() (users, connections, addresses int)
}

type Metrics struct {
	registry          *prometheus.Registry
	EventsReceived    *prometheus.CounterVec
	EventsRejected    *prometheus.CounterVec
	MessagesSent      *prometheus.CounterVec
	BroadcastFailures prometheus.Counter
	ModerationHits    prometheus.Counter
	ChannelLength     *prometheus.GaugeVec
	ChannelCapacity   *prometheus.GaugeVec
	ProcessCPU        prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Inbound websocket events by name.",
		}, []string{"event"}),
		EventsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_rejected_total",
			Help:      "Inbound events answered with an error, by error kind.",
		}, []string{"kind"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Persisted messages by address class.",
		}, []string{"class"}),
		BroadcastFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_failures_total",
			Help:      "Events that could not be delivered to a sink.",
		}),
		ModerationHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_hits_total",
			Help:      "Censored words replaced in messages.",
		}),
		ChannelLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_length",
			Help:      "Buffered events waiting in an internal channel.",
		}, []string{"channel"}),
		ChannelCapacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_capacity",
			Help:      "Capacity of an internal channel.",
		}, []string{"channel"}),
		ProcessCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_cpu_percent",
			Help:      "CPU usage of the server process sampled by the heartbeat.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.EventsReceived, m.EventsRejected, m.MessagesSent,
		m.BroadcastFailures, m.ModerationHits,
		m.ChannelLength, m.ChannelCapacity, m.ProcessCPU,
	)
	return m
}

// WatchPresence registers gauges backed by the presence registry.
func (m *Metrics) WatchPresence(p PresenceCounter) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Users with at least one live connection.",
		}, func() float64 {
			users, _, _ := p.Counts()
			return float64(users)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Live websocket connections.",
		}, func() float64 {
			_, connections, _ := p.Counts()
			return float64(connections)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "joined_addresses",
			Help:      "Addresses with at least one joined connection.",
		}, func() float64 {
			_, _, addresses := p.Counts()
			return float64(addresses)
		}),
	)
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
