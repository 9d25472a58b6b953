package nci

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nfcgo/ncicore/pkg/nci/codec"
	"github.com/nfcgo/ncicore/pkg/nci/hal/loopback"
)

// harness pairs a Core with a loopback HAL and exposes its outbound command
// frames as they're written, so a test can drive a full wire scenario by
// replying to each command in turn.
type harness struct {
	t    *testing.T
	hal  *loopback.HAL
	core *Core

	frames chan []byte
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := loopback.New()
	hn := &harness{t: t, hal: h, frames: make(chan []byte, 32)}
	h.WriteHook = func(chunks [][]byte) bool {
		var flat []byte
		for _, c := range chunks {
			flat = append(flat, c...)
		}
		hn.frames <- flat
		return true
	}

	core, err := New(h)
	require.NoError(t, err)
	hn.core = core
	return hn
}

// expectCommand waits for the next frame written to the HAL and asserts it
// is a command, returning its gid, oid and payload.
func (hn *harness) expectCommand() (gid, oid uint8, payload []byte) {
	hn.t.Helper()
	select {
	case frame := <-hn.frames:
		hdr, err := codec.DecodeHeader(frame)
		require.NoError(hn.t, err)
		require.Equal(hn.t, codec.MTCommand, hdr.MT)
		return hdr.GIDOrCID, hdr.OIDOrReserved, append([]byte(nil), frame[codec.HeaderSize:]...)
	case <-time.After(2 * time.Second):
		hn.t.Fatal("timed out waiting for outbound command")
		return 0, 0, nil
	}
}

// expectNoCommand asserts no further command is written within a short
// window (used to confirm a stall or timeout actually stopped the chain).
func (hn *harness) expectNoCommand() {
	hn.t.Helper()
	select {
	case frame := <-hn.frames:
		hn.t.Fatalf("unexpected outbound frame: %x", frame)
	case <-time.After(50 * time.Millisecond):
	}
}

func (hn *harness) respond(gid, oid uint8, payload []byte) {
	hn.t.Helper()
	frame, err := codec.EncodeControlFragment(codec.MTResponse, gid, oid, payload, true)
	require.NoError(hn.t, err)
	hn.hal.Inject(frame)
}

func (hn *harness) notify(gid, oid uint8, payload []byte) {
	hn.t.Helper()
	frame, err := codec.EncodeControlFragment(codec.MTNotification, gid, oid, payload, true)
	require.NoError(hn.t, err)
	hn.hal.Inject(frame)
}

// bootstrapV1 drives Restart through to RFST_IDLE using the NCI 1.x path
// (CORE_RESET_RSP carries version+status+config_status directly, no NTF).
func (hn *harness) bootstrapV1() {
	hn.t.Helper()
	require.NoError(hn.t, hn.core.Restart())

	gid, oid, _ := hn.expectCommand()
	require.Equal(hn.t, codec.GIDCore, gid)
	require.Equal(hn.t, codec.OIDCoreReset, oid)
	hn.respond(codec.GIDCore, codec.OIDCoreReset, []byte{0x00, 0x01, 0x20})

	gid, oid, _ = hn.expectCommand()
	require.Equal(hn.t, codec.GIDCore, gid)
	require.Equal(hn.t, codec.OIDCoreInit, oid)
	hn.respond(codec.GIDCore, codec.OIDCoreInit, minimalCoreInitRspV1())

	gid, oid, _ = hn.expectCommand()
	require.Equal(hn.t, codec.GIDCore, gid)
	require.Equal(hn.t, codec.OIDCoreGetConfig, oid)
	hn.respond(codec.GIDCore, codec.OIDCoreGetConfig, []byte{0x00})

	require.Eventually(hn.t, func() bool {
		return hn.core.CurrentState() == StateIdle
	}, time.Second, time.Millisecond)
}

// idleToDiscoveryV1 drives SetState(StateDiscovery) from RFST_IDLE, replying
// to RF_DISCOVER_MAP_CMD and RF_DISCOVER_CMD (no listen-routing probe: the
// v1 bootstrap above never advertises NCI 2.x).
func (hn *harness) idleToDiscoveryV1() {
	hn.t.Helper()
	ok, err := hn.core.SetState(StateDiscovery)
	require.NoError(hn.t, err)
	require.True(hn.t, ok)

	gid, oid, _ := hn.expectCommand()
	require.Equal(hn.t, codec.GIDRF, gid)
	require.Equal(hn.t, codec.OIDRFDiscoverMap, oid)
	hn.respond(codec.GIDRF, codec.OIDRFDiscoverMap, []byte{0x00})

	gid, oid, _ = hn.expectCommand()
	require.Equal(hn.t, codec.GIDRF, gid)
	require.Equal(hn.t, codec.OIDRFDiscover, oid)
	hn.respond(codec.GIDRF, codec.OIDRFDiscover, []byte{0x00})

	require.Eventually(hn.t, func() bool {
		return hn.core.CurrentState() == StateDiscovery
	}, time.Second, time.Millisecond)
}

func minimalCoreInitRspV1() []byte {
	return []byte{
		0x00,                   // status
		0x00, 0x00, 0x00, 0x00, // features
		0x01,       // n_rf_intf = 1
		0x02,       // rf_intf[0] = ISO-DEP
		0x01,       // max_logical_connections
		0xF0, 0x00, // max_routing_table_size
		0xFE,       // max_control_packet_size
		0x00, 0x01, // max_large_param_size
		0x04,                   // manufacturer id
		0x01, 0x02, 0x03, 0x04, // manufacturer info
	}
}

// fullActivationPayload builds an RF_INTF_ACTIVATED_NTF for ISO-DEP/Poll-A
// with both mode and activation params present.
func fullActivationPayload() []byte {
	modeParam := []byte{0x04, 0x00, 0x04, 0x01, 0x02, 0x03, 0x04, 0x01, 0x20}
	actParam := []byte{0x06, 0x78, 0x11, 0x22, 0x33, 0xAA, 0xBB} // T0=0x78: TA/TB/TC + 2 historical bytes, FSCI=8 -> FSC=256
	payload := []byte{
		0x01,                    // disc_id
		byte(codec.RFInterfaceISODep),
		byte(codec.ProtocolISODep),
		byte(codec.ModePassivePollA),
		0xFE, // max_data_packet_size
		0x01, // initial credits
		byte(len(modeParam)),
	}
	payload = append(payload, modeParam...)
	payload = append(payload,
		byte(codec.ModePassivePollA),
		byte(codec.BitRate106),
		byte(codec.BitRate106),
		byte(len(actParam)),
	)
	payload = append(payload, actParam...)
	return payload
}
