package codec

import "fmt"

// IntfActivatedNtf is Table 61: Notification for RF Interface activation.
type IntfActivatedNtf struct {
	DiscoveryID          uint8
	RFInterface          RFInterface
	Protocol             Protocol
	Mode                 Mode
	MaxDataPacketSize    uint8
	NumCredits           uint8
	ModeParamBytes       []byte
	ModeParam            *ModeParam // nil if undecoded for this mode
	DataExchangeMode     Mode
	TransmitRate         BitRate
	ReceiveRate          BitRate
	ActivationParamBytes []byte
	ActivationParam      *ActivationParam // nil if undecoded for this interface/mode
}

// ErrShortActivationFrame indicates an RF_INTF_ACTIVATED_NTF shorter than
// the fixed-field prefix requires; the caller deactivates back to discovery
// without ever seeing mode params.
var ErrShortActivationFrame = fmt.Errorf("codec: RF_INTF_ACTIVATED_NTF too short")

// ParseIntfActivatedNtf decodes Table 61:
//
//	0   1  RF Discovery ID
//	1   1  RF Interface
//	2   1  RF Protocol
//	3   1  Activation RF Technology and Mode
//	4   1  Max Data Packet Payload Size
//	5   1  Initial Number of Credits
//	6   1  Length of RF Technology Parameters (n)
//	7   n  RF Technology Specific Parameters
//	7+n 1  Data Exchange RF Technology and Mode
//	8+n 1  Data Exchange Transmit Bit Rate
//	9+n 1  Data Exchange Receive Bit Rate
//	10+n 1 Length of Activation Parameters (m)
//	11+n m Activation Parameters
//
// Minimum 11+n+m bytes; mode params are required to populate ModeParam —
// a packet with n==0 parses successfully (all fixed fields valid) but
// leaves ModeParam nil, signalling the caller to deactivate rather than
// complete activation.
func ParseIntfActivatedNtf(payload []byte) (IntfActivatedNtf, error) {
	if len(payload) <= 6 {
		return IntfActivatedNtf{}, ErrShortActivationFrame
	}

	n := int(payload[6])
	var m int
	if len(payload) > 10+n {
		m = int(payload[10+n])
	}
	if len(payload) < 11+n+m {
		return IntfActivatedNtf{}, ErrShortActivationFrame
	}

	ntf := IntfActivatedNtf{
		DiscoveryID:       payload[0],
		RFInterface:       RFInterface(payload[1]),
		Protocol:          Protocol(payload[2]),
		Mode:              Mode(payload[3]),
		MaxDataPacketSize: payload[4],
		NumCredits:        payload[5],
		DataExchangeMode:  Mode(payload[7+n]),
		TransmitRate:      BitRate(payload[8+n]),
		ReceiveRate:       BitRate(payload[9+n]),
	}

	if n > 0 {
		ntf.ModeParamBytes = append([]byte(nil), payload[7:7+n]...)
		ntf.ModeParam, _ = ParseModeParam(ntf.Mode, ntf.ModeParamBytes)
	}
	if m > 0 {
		ntf.ActivationParamBytes = append([]byte(nil), payload[11+n:11+n+m]...)
		ntf.ActivationParam, _ = ParseActivationParam(ntf.RFInterface, ntf.Mode, ntf.ActivationParamBytes)
	}

	return ntf, nil
}
