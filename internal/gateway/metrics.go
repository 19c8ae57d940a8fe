package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/temoto/loragate/internal/tele"
)

const namespace = "loragate"

// drop reasons
const (
	dropLineTooLong    = "line_too_long"
	dropUnknownCommand = "unknown_command"
	dropMalformed      = "malformed"
	dropUnknownNode    = "unknown_node"
	dropEncode         = "encode"
	dropTxTimeout      = "tx_timeout"
	dropTxError        = "tx_error"
)

type Metrics struct {
	Registry *prometheus.Registry

	commands *prometheus.CounterVec
	replies  *prometheus.CounterVec
	drops    *prometheus.CounterVec
	reading  *prometheus.GaugeVec
	reopens  prometheus.Counter
	rxBytes  prometheus.Counter
	txBytes  prometheus.Counter
	errors   prometheus.Counter
}

func NewMetrics() *Metrics {
	self := &Metrics{
		Registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "commands_total",
			Help:      "Parsed node commands by kind.",
		}, []string{"kind"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "replies_total",
			Help:      "Reply frames put on wire by kind.",
		}, []string{"kind"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "drops_total",
			Help:      "Lines or replies dropped without answer.",
		}, []string{"reason"}),
		reading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "reading",
			Help:      "Last accepted sensor value.",
		}, []string{"node", "sensor"}),
		reopens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "reopens_total",
			Help:      "Serial port reopen after read error.",
		}),
		rxBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "rx_bytes_total",
			Help:      "Bytes read from serial port.",
		}),
		txBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "tx_bytes_total",
			Help:      "Bytes written to serial port.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_errors_total",
			Help:      "Error level log messages.",
		}),
	}
	self.Registry.MustRegister(
		self.commands, self.replies, self.drops, self.reading, self.reopens,
		self.rxBytes, self.txBytes, self.errors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return self
}

// ErrorFunc is meant for log2.Log.SetErrorFunc.
func (self *Metrics) ErrorFunc(error) { self.errors.Inc() }

// WatchTele exports uplink queue counters.
func (self *Metrics) WatchTele(t tele.Teler) {
	counter := func(name, help string, f func(tele.Stat) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tele",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(f(t.Stat())) })
	}
	self.Registry.MustRegister(
		counter("queued_total", "Readings queued for uplink.", func(s tele.Stat) uint64 { return s.Queued }),
		counter("sent_total", "Readings delivered upstream.", func(s tele.Stat) uint64 { return s.Sent }),
		counter("retried_total", "Failed delivery attempts.", func(s tele.Stat) uint64 { return s.Retried }),
	)
}
