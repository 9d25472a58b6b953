package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nfcgo/ncicore/pkg/nci"
)

// NCIMetrics exposes the controller's protocol lifecycle as Prometheus
// series. All methods are safe on a nil receiver.
type NCIMetrics struct {
	state             *prometheus.GaugeVec
	transitions       *prometheus.CounterVec
	commandTimeouts   prometheus.Counter
	activations       *prometheus.CounterVec
	connectionCredits *prometheus.GaugeVec
	dataPackets       *prometheus.CounterVec
	dataBytes         *prometheus.CounterVec
}

// NewNCIMetrics creates the NCI metric set on the process registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewNCIMetrics() *NCIMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &NCIMetrics{
		state: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nci_state",
				Help: "Current RF state of the controller (1 for the active state, 0 otherwise)",
			},
			[]string{"state"},
		),
		transitions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nci_transitions_total",
				Help: "Total number of confirmed state changes, by destination state",
			},
			[]string{"state"},
		),
		commandTimeouts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nci_command_timeouts_total",
				Help: "Total number of control commands that expired without a matching response",
			},
		),
		activations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nci_activations_total",
				Help: "Total number of successful target activations, by RF interface and protocol",
			},
			[]string{"rf_interface", "protocol"},
		),
		connectionCredits: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nci_connection_credits",
				Help: "Initial credits granted by the NFCC at the most recent activation, per logical connection",
			},
			[]string{"cid"},
		),
		dataPackets: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nci_data_packets_total",
				Help: "Total number of reassembled inbound data packets, per logical connection",
			},
			[]string{"cid"},
		),
		dataBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nci_data_bytes_total",
				Help: "Total inbound data payload bytes, per logical connection",
			},
			[]string{"cid"},
		),
	}
}

// RecordStateChange moves the state gauge to s and counts the transition.
func (m *NCIMetrics) RecordStateChange(s nci.State) {
	if m == nil {
		return
	}
	m.state.Reset()
	m.state.WithLabelValues(s.String()).Set(1)
	m.transitions.WithLabelValues(s.String()).Inc()
}

// RecordCommandTimeout counts one expired in-flight command.
func (m *NCIMetrics) RecordCommandTimeout() {
	if m == nil {
		return
	}
	m.commandTimeouts.Inc()
}

// RecordActivation counts one successful activation and records the initial
// credit grant for the static RF connection.
func (m *NCIMetrics) RecordActivation(ev nci.IntfActivatedEvent) {
	if m == nil {
		return
	}
	m.activations.WithLabelValues(
		fmt.Sprintf("0x%02x", uint8(ev.RFInterface)),
		fmt.Sprintf("0x%02x", uint8(ev.Protocol)),
	).Inc()
	m.connectionCredits.WithLabelValues("0").Set(float64(ev.NumCredits))
}

// RecordDataPacket counts one inbound data packet and its payload size.
func (m *NCIMetrics) RecordDataPacket(ev nci.DataPacketEvent) {
	if m == nil {
		return
	}
	cid := fmt.Sprintf("%d", ev.CID)
	m.dataPackets.WithLabelValues(cid).Inc()
	m.dataBytes.WithLabelValues(cid).Add(float64(len(ev.Payload)))
}

// Attach subscribes the metric set to core's event bus and returns a
// detach function. Attaching a nil receiver is a no-op.
func (m *NCIMetrics) Attach(core *nci.Core) (detach func()) {
	if m == nil {
		return func() {}
	}
	subs := []nci.SubscriptionID{
		core.SubscribeCurrentStateChanged(m.RecordStateChange),
		core.SubscribeIntfActivated(m.RecordActivation),
		core.SubscribeDataPacket(m.RecordDataPacket),
		core.SubscribeCommandTimeout(func(nci.CommandTimeoutEvent) { m.RecordCommandTimeout() }),
	}
	return func() {
		for _, id := range subs {
			core.Unsubscribe(id)
		}
	}
}
