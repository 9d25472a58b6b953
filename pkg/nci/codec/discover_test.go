package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDiscoverMapCmd(t *testing.T) {
	got := EncodeDiscoverMapCmd([]DiscoverMapEntry{
		{Protocol: ProtocolT1T, Mode: DiscoverMapModePoll, RFInterface: RFInterfaceFrame},
		{Protocol: ProtocolISODep, Mode: DiscoverMapModePoll, RFInterface: RFInterfaceISODep},
	})
	assert.Equal(t, []byte{
		0x02,
		byte(ProtocolT1T), byte(DiscoverMapModePoll), byte(RFInterfaceFrame),
		byte(ProtocolISODep), byte(DiscoverMapModePoll), byte(RFInterfaceISODep),
	}, got)
}

func TestEncodeDiscoverCmd(t *testing.T) {
	got := EncodeDiscoverCmd([]DiscoverConfig{
		{TechAndMode: ModePassivePollA, Frequency: 1},
		{TechAndMode: ModePassivePollB, Frequency: 1},
		{TechAndMode: ModePassivePollF, Frequency: 1},
		{TechAndMode: ModePassivePoll15693, Frequency: 1},
	})
	assert.Equal(t, []byte{0x04, 0x00, 0x01, 0x01, 0x01, 0x02, 0x01, 0x06, 0x01}, got)
}

func TestEncodeGetConfigCmd(t *testing.T) {
	got := EncodeGetConfigCmd([]uint8{0x21, 0x32, 0x50, 0x00})
	assert.Equal(t, []byte{0x04, 0x21, 0x32, 0x50, 0x00}, got)
}

func TestEncodeSetListenModeRoutingCmd(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x00}, EncodeSetListenModeRoutingCmd())
}
