package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActivationParam(t *testing.T) {
	t.Run("ParsesISODepPollAWithNoOptionalBytes", func(t *testing.T) {
		// ats_len=1, T0=0x02 (FSCI=2 -> FSC=32, no TA/TB/TC)
		bytes := []byte{0x01, 0x02}
		ap, ok := ParseActivationParam(RFInterfaceISODep, ModePassivePollA, bytes)
		require.True(t, ok)
		assert.Equal(t, 32, ap.ISODepPollA.FSC)
		assert.Empty(t, ap.ISODepPollA.T1)
	})

	t.Run("ParsesISODepPollAWithHistoricalBytes", func(t *testing.T) {
		// ats_len=4, T0=0x02, historical bytes 0xAA,0xBB,0xCC
		bytes := []byte{0x04, 0x02, 0xAA, 0xBB, 0xCC}
		ap, ok := ParseActivationParam(RFInterfaceISODep, ModeActivePollA, bytes)
		require.True(t, ok)
		assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, ap.ISODepPollA.T1)
	})

	t.Run("TreatsTAOnlyAsAlsoTrippingTCBranch", func(t *testing.T) {
		// Source fidelity: t0&0x30 != 0 is true even when only TA (0x10) is
		// set, so the parser skips two bytes (TA and a phantom TC slot)
		// instead of one.
		bytes := []byte{0x04, 0x10, 0x77, 0x88, 0x99}
		ap, ok := ParseActivationParam(RFInterfaceISODep, ModePassivePollA, bytes)
		require.True(t, ok)
		assert.Equal(t, []byte{0x99}, ap.ISODepPollA.T1)
	})

	t.Run("ParsesFullAtsWithAllInterfaceBytes", func(t *testing.T) {
		// T0=0x78: TA+TB+TC present, FSCI=8 -> FSC=256; two historical bytes.
		bytes := []byte{0x06, 0x78, 0x11, 0x22, 0x33, 0xAA, 0xBB}
		ap, ok := ParseActivationParam(RFInterfaceISODep, ModePassivePollA, bytes)
		require.True(t, ok)
		assert.Equal(t, 256, ap.ISODepPollA.FSC)
		assert.Equal(t, []byte{0xAA, 0xBB}, ap.ISODepPollA.T1)
	})

	t.Run("RejectsUnsupportedMode", func(t *testing.T) {
		_, ok := ParseActivationParam(RFInterfaceISODep, ModePassivePollB, []byte{0x01, 0x00})
		assert.False(t, ok)
	})

	t.Run("RejectsFrameInterface", func(t *testing.T) {
		_, ok := ParseActivationParam(RFInterfaceFrame, ModePassivePollA, []byte{0x01, 0x00})
		assert.False(t, ok)
	})

	t.Run("RejectsShortAtsBuffer", func(t *testing.T) {
		_, ok := ParseActivationParam(RFInterfaceISODep, ModePassivePollA, []byte{0x05, 0x00})
		assert.False(t, ok)
	})
}

func TestFSCIToFSC(t *testing.T) {
	want := []int{16, 24, 32, 40, 48, 64, 96, 128, 256, 256, 256, 256, 256, 256, 256, 256}
	for fsci, fsc := range want {
		assert.Equal(t, fsc, FSCIToFSC(uint8(fsci)), "fsci=%d", fsci)
	}
}
