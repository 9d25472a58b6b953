package nci

import "github.com/nfcgo/ncicore/pkg/nci/codec"

// IntfActivatedEvent is published once per successful target activation,
// always after the CurrentStateChanged(RFST_POLL_ACTIVE) emission that
// accompanies it, so observers see the state change first.
type IntfActivatedEvent struct {
	codec.IntfActivatedNtf
}

// DataPacketEvent is published for every inbound data packet the SAR
// reassembles, regardless of which logical connection it arrived on.
type DataPacketEvent struct {
	CID     uint8
	Payload []byte
}

// CommandTimeoutEvent is published once per command whose timer expired
// before a matching response arrived.
type CommandTimeoutEvent struct {
	GID, OID uint8
}
