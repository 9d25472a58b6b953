package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfcgo/ncicore/pkg/nci"
)

// The registry is process-global, so the whole metric lifecycle lives in
// one test: registering the same collectors twice would panic.
func TestNCIMetrics(t *testing.T) {
	assert.Nil(t, NewNCIMetrics(), "constructor must return nil before InitRegistry")

	InitRegistry()
	require.True(t, IsEnabled())
	require.NotNil(t, GetRegistry())
	InitRegistry() // second call is a no-op

	m := NewNCIMetrics()
	require.NotNil(t, m)

	t.Run("state gauge tracks only the active state", func(t *testing.T) {
		m.RecordStateChange(nci.StateIdle)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("RFST_IDLE")))

		m.RecordStateChange(nci.StateDiscovery)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("RFST_DISCOVERY")))
		assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("RFST_IDLE")))

		assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("RFST_IDLE")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("RFST_DISCOVERY")))
	})

	t.Run("command timeouts", func(t *testing.T) {
		m.RecordCommandTimeout()
		m.RecordCommandTimeout()
		assert.Equal(t, 2.0, testutil.ToFloat64(m.commandTimeouts))
	})

	t.Run("activation records interface, protocol and credits", func(t *testing.T) {
		m.RecordActivation(nci.IntfActivatedEvent{})
		assert.Equal(t, 1.0, testutil.ToFloat64(m.activations.WithLabelValues("0x00", "0x00")))
		assert.Equal(t, 0.0, testutil.ToFloat64(m.connectionCredits.WithLabelValues("0")))
	})

	t.Run("data packets count packets and bytes per cid", func(t *testing.T) {
		m.RecordDataPacket(nci.DataPacketEvent{CID: 0, Payload: []byte{1, 2, 3}})
		m.RecordDataPacket(nci.DataPacketEvent{CID: 0, Payload: []byte{4}})
		assert.Equal(t, 2.0, testutil.ToFloat64(m.dataPackets.WithLabelValues("0")))
		assert.Equal(t, 4.0, testutil.ToFloat64(m.dataBytes.WithLabelValues("0")))
	})

	t.Run("nil receiver is a no-op", func(t *testing.T) {
		var none *NCIMetrics
		assert.NotPanics(t, func() {
			none.RecordStateChange(nci.StateIdle)
			none.RecordCommandTimeout()
			none.RecordActivation(nci.IntfActivatedEvent{})
			none.RecordDataPacket(nci.DataPacketEvent{})
			none.Attach(nil)()
		})
	})
}
