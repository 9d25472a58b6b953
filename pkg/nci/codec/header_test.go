package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Header Encode/Decode Tests
// ============================================================================

func TestHeaderRoundTrip(t *testing.T) {
	t.Run("EncodesAndDecodesCommand", func(t *testing.T) {
		h := Header{MT: MTCommand, GIDOrCID: GIDCore, OIDOrReserved: OIDCoreReset, PayloadLength: 1}
		buf := EncodeHeader(h)

		got, err := DecodeHeader(buf[:])
		require.NoError(t, err)
		assert.Equal(t, h, got)
	})

	t.Run("EncodesAndDecodesNotificationWithPBF", func(t *testing.T) {
		h := Header{MT: MTNotification, PBF: true, GIDOrCID: GIDRF, OIDOrReserved: OIDRFIntfActivated, PayloadLength: 255}
		buf := EncodeHeader(h)

		got, err := DecodeHeader(buf[:])
		require.NoError(t, err)
		assert.Equal(t, h, got)
		assert.True(t, got.PBF)
	})

	t.Run("RejectsShortBuffer", func(t *testing.T) {
		_, err := DecodeHeader([]byte{0x20, 0x00})
		assert.Error(t, err)
	})
}

func TestEncodeControlFragment(t *testing.T) {
	t.Run("SetsPBFWhenNotLast", func(t *testing.T) {
		buf, err := EncodeControlFragment(MTCommand, GIDCore, OIDCoreReset, []byte{0x01}, false)
		require.NoError(t, err)

		h, err := DecodeHeader(buf)
		require.NoError(t, err)
		assert.True(t, h.PBF)
		assert.Equal(t, uint8(1), h.PayloadLength)
	})

	t.Run("ClearsPBFWhenLast", func(t *testing.T) {
		buf, err := EncodeControlFragment(MTCommand, GIDCore, OIDCoreReset, []byte{0x01}, true)
		require.NoError(t, err)

		h, err := DecodeHeader(buf)
		require.NoError(t, err)
		assert.False(t, h.PBF)
	})

	t.Run("RejectsOversizedChunk", func(t *testing.T) {
		_, err := EncodeControlFragment(MTCommand, GIDCore, OIDCoreReset, make([]byte, 256), true)
		assert.Error(t, err)
	})
}

func TestEncodeDataFragment(t *testing.T) {
	t.Run("UsesDataMessageType", func(t *testing.T) {
		buf, err := EncodeDataFragment(0x01, []byte{0xAA, 0xBB}, true)
		require.NoError(t, err)

		h, err := DecodeHeader(buf)
		require.NoError(t, err)
		assert.Equal(t, MTData, h.MT)
		assert.Equal(t, uint8(0x01), h.GIDOrCID)
		assert.Equal(t, uint8(2), h.PayloadLength)
	})
}
