package emulation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the emulation Prometheus collectors.
type Metrics struct {
	Frames        *prometheus.CounterVec
	Signals       *prometheus.CounterVec
	DroppedEvents prometheus.Counter
	Active        prometheus.Gauge
	PayloadBytes  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Frames: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rfaccess_emulation_frames_total",
			Help: "Reader frames answered, by command and status word",
		}, []string{"command", "status"}),
		Signals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rfaccess_emulation_signals_total",
			Help: "Side signals raised by the dispatcher",
		}, []string{"signal"}),
		DroppedEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "rfaccess_emulation_dropped_events_total",
			Help: "Dispatcher events dropped because the notifier buffer was full",
		}),
		Active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rfaccess_emulation_active",
			Help: "1 when emulation is active",
		}),
		PayloadBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rfaccess_emulation_payload_bytes",
			Help: "Size of the loaded payload, 0 when none is loaded",
		}),
	}
}

func (m *Metrics) ObserveFrame(e Event) {
	cmd := e.Command.String()
	if e.Inactive {
		cmd = "inactive"
	}
	m.Frames.WithLabelValues(cmd, e.Status.Hex()).Inc()
}

func (m *Metrics) ObserveSignal(s Signal) {
	m.Signals.WithLabelValues(s.String()).Inc()
}

func (m *Metrics) IncDropped() {
	m.DroppedEvents.Inc()
}

// SetStatus mirrors a State status into the gauges.
func (m *Metrics) SetStatus(s Status) {
	active := 0.0
	if s.Active {
		active = 1
	}
	m.Active.Set(active)
	m.PayloadBytes.Set(float64(s.PayloadSize))
}
