package codec

import "fmt"

// HeaderSize is the fixed 3-byte NCI packet header.
const HeaderSize = 3

// MaxPayloadLength is the largest payload a single fragment's one-octet
// length field can describe.
const MaxPayloadLength = 0xFF

// Header is the 3-byte NCI packet header: MT|PBF|(GID or CID), OID or
// reserved, payload length.
type Header struct {
	MT            MessageType
	PBF           bool // packet boundary flag: more fragments follow
	GIDOrCID      uint8
	OIDOrReserved uint8
	PayloadLength uint8
}

// EncodeHeader serializes a 3-byte NCI header.
func EncodeHeader(h Header) [HeaderSize]byte {
	var buf [HeaderSize]byte
	b0 := byte(h.MT) << 5
	if h.PBF {
		b0 |= 0x10
	}
	b0 |= h.GIDOrCID & 0x0F
	buf[0] = b0
	buf[1] = h.OIDOrReserved
	buf[2] = h.PayloadLength
	return buf
}

// DecodeHeader parses the first HeaderSize bytes of buf as an NCI header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("codec: short header: %d bytes", len(buf))
	}
	return Header{
		MT:            MessageType(buf[0] >> 5 & 0x07),
		PBF:           buf[0]&0x10 != 0,
		GIDOrCID:      buf[0] & 0x0F,
		OIDOrReserved: buf[1],
		PayloadLength: buf[2],
	}, nil
}

// Packet is a single, reassembled NCI message (header plus complete
// payload) ready for dispatch by the core, or ready for fragmentation by
// the SAR on the way out.
type Packet struct {
	MT      MessageType
	GID     uint8 // for Command/Response/Notification
	OID     uint8
	CID     uint8 // for Data
	Payload []byte
}

// EncodeControlFragment encodes one fragment of a command/response/
// notification packet. last controls the PBF bit (false => more fragments
// follow). chunk must be <= MaxPayloadLength bytes.
func EncodeControlFragment(mt MessageType, gid, oid uint8, chunk []byte, last bool) ([]byte, error) {
	if len(chunk) > MaxPayloadLength {
		return nil, fmt.Errorf("codec: fragment of %d bytes exceeds max payload %d", len(chunk), MaxPayloadLength)
	}
	h := EncodeHeader(Header{
		MT:            mt,
		PBF:           !last,
		GIDOrCID:      gid & 0x0F,
		OIDOrReserved: oid,
		PayloadLength: uint8(len(chunk)),
	})
	out := make([]byte, 0, HeaderSize+len(chunk))
	out = append(out, h[:]...)
	out = append(out, chunk...)
	return out, nil
}

// EncodeDataFragment encodes one fragment of a data packet addressed to cid.
func EncodeDataFragment(cid uint8, chunk []byte, last bool) ([]byte, error) {
	if len(chunk) > MaxPayloadLength {
		return nil, fmt.Errorf("codec: fragment of %d bytes exceeds max payload %d", len(chunk), MaxPayloadLength)
	}
	h := EncodeHeader(Header{
		MT:            MTData,
		PBF:           !last,
		GIDOrCID:      cid & 0x0F,
		OIDOrReserved: 0,
		PayloadLength: uint8(len(chunk)),
	})
	out := make([]byte, 0, HeaderSize+len(chunk))
	out = append(out, h[:]...)
	out = append(out, chunk...)
	return out, nil
}
