package codec

import (
	"encoding/binary"
	"fmt"
)

// Features are the CORE_INIT_RSP feature flags (4 bytes: bytes 0-2 are
// decoded into the discovery, routing and power flags below; all four bytes
// are also preserved in Raw, including any vendor-reserved bits).
type Features struct {
	DiscoveryFrequencyConfig bool
	RFConfigMerge            bool
	RoutingTechnologyBased   bool
	RoutingProtocolBased     bool
	RoutingAIDBased          bool
	PowerBatteryOff          bool
	PowerSwitchedOff         bool
	Raw [4]byte
}

func parseFeatures(b []byte) Features {
	var f Features
	copy(f.Raw[:], b)
	f.DiscoveryFrequencyConfig = b[0]&0x01 != 0
	f.RFConfigMerge = b[0]&0x02 != 0
	f.RoutingTechnologyBased = b[1]&0x01 != 0
	f.RoutingProtocolBased = b[1]&0x02 != 0
	f.RoutingAIDBased = b[1]&0x04 != 0
	f.PowerBatteryOff = b[2]&0x01 != 0
	f.PowerSwitchedOff = b[2]&0x02 != 0
	return f
}

// Capabilities is the NFCC capability snapshot populated by CORE_INIT_RSP.
type Capabilities struct {
	Version                  int // 1 or 2
	Status                   Status
	Features                 Features
	SupportedRFInterfaces    []RFInterface // v1: listed directly; v2: the interface byte of each extended pair
	MaxLogicalConnections    uint8
	MaxRoutingTableSize      uint16
	MaxControlPacketSize     uint8
	// v1 fields
	MaxLargeParamSize uint16
	ManufacturerID    uint8
	ManufacturerInfo  [4]byte
	// v2 fields
	MaxHCIPayload    uint8
	InitialHCICredits uint8
	MaxNFCVSize      uint16
}

// ParseCoreInitRspV1 decodes an NCI 1.x CORE_INIT_RSP:
// [status, feat(4), n_rf_intf, rf_intf[n], max_conns, max_rt(2 LE),
//
//	max_ctrl, max_large(2), mfg_id, mfg_info(4)]
//
// total length = 17 + n.
func ParseCoreInitRspV1(payload []byte) (Capabilities, error) {
	if len(payload) < 6 {
		return Capabilities{}, fmt.Errorf("codec: CORE_INIT_RSP v1 too short: %d bytes", len(payload))
	}
	n := int(payload[5])
	want := 17 + n
	if len(payload) != want {
		return Capabilities{}, fmt.Errorf("codec: CORE_INIT_RSP v1 length %d, want %d (n=%d)", len(payload), want, n)
	}

	intfs := make([]RFInterface, n)
	for i := 0; i < n; i++ {
		intfs[i] = RFInterface(payload[6+i])
	}

	off := 6 + n
	caps := Capabilities{
		Version:               1,
		Status:                Status(payload[0]),
		Features:              parseFeatures(payload[1:5]),
		SupportedRFInterfaces: intfs,
		MaxLogicalConnections: payload[off],
		MaxRoutingTableSize:   binary.LittleEndian.Uint16(payload[off+1 : off+3]),
		MaxControlPacketSize:  payload[off+3],
		MaxLargeParamSize:     binary.LittleEndian.Uint16(payload[off+4 : off+6]),
		ManufacturerID:        payload[off+6],
	}
	copy(caps.ManufacturerInfo[:], payload[off+7:off+11])
	return caps, nil
}

// ParseCoreInitRspV2 decodes an NCI 2.x CORE_INIT_RSP:
// [status, feat(4), max_conns, max_rt(2), max_ctrl, max_hci, hci_credits,
//
//	max_nfcv(2), n, rf_intf_ext[2n]]
//
// total length = 14 + 2n. Extended RF interface entries are 2 bytes each
// (interface, extension); only the interface byte is retained here since
// the core does not yet act on NCI 2.x interface extensions.
func ParseCoreInitRspV2(payload []byte) (Capabilities, error) {
	if len(payload) < 14 {
		return Capabilities{}, fmt.Errorf("codec: CORE_INIT_RSP v2 too short: %d bytes", len(payload))
	}
	n := int(payload[13])
	want := 14 + 2*n
	if len(payload) != want {
		return Capabilities{}, fmt.Errorf("codec: CORE_INIT_RSP v2 length %d, want %d (n=%d)", len(payload), want, n)
	}

	intfs := make([]RFInterface, n)
	for i := 0; i < n; i++ {
		intfs[i] = RFInterface(payload[14+2*i])
	}

	return Capabilities{
		Version:               2,
		Status:                Status(payload[0]),
		Features:              parseFeatures(payload[1:5]),
		SupportedRFInterfaces: intfs,
		MaxLogicalConnections: payload[5],
		MaxRoutingTableSize:   binary.LittleEndian.Uint16(payload[6:8]),
		MaxControlPacketSize:  payload[8],
		MaxHCIPayload:         payload[9],
		InitialHCICredits:     payload[10],
		MaxNFCVSize:           binary.LittleEndian.Uint16(payload[11:13]),
	}, nil
}
