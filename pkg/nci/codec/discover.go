package codec

// DiscoverMapMode is the Mode octet of an RF_DISCOVER_MAP_CMD entry
// (Table 41): which role(s) the mapping applies to.
type DiscoverMapMode uint8

const (
	DiscoverMapModePoll   DiscoverMapMode = 0x01
	DiscoverMapModeListen DiscoverMapMode = 0x02
)

// DiscoverMapEntry is one (protocol, mode, RF interface) mapping within
// RF_DISCOVER_MAP_CMD.
type DiscoverMapEntry struct {
	Protocol    Protocol
	Mode        DiscoverMapMode
	RFInterface RFInterface
}

// EncodeDiscoverMapCmd encodes RF_DISCOVER_MAP_CMD: [n, (protocol, mode,
// rf_interface)*n] (Table 41).
func EncodeDiscoverMapCmd(entries []DiscoverMapEntry) []byte {
	out := make([]byte, 0, 1+3*len(entries))
	out = append(out, uint8(len(entries)))
	for _, e := range entries {
		out = append(out, byte(e.Protocol), byte(e.Mode), byte(e.RFInterface))
	}
	return out
}

// DiscoverConfig is one (technology/mode, discovery frequency) pair within
// RF_DISCOVER_CMD (Table 39).
type DiscoverConfig struct {
	TechAndMode Mode
	Frequency   uint8
}

// EncodeDiscoverCmd encodes RF_DISCOVER_CMD: [n, (tech_mode, freq)*n].
func EncodeDiscoverCmd(configs []DiscoverConfig) []byte {
	out := make([]byte, 0, 1+2*len(configs))
	out = append(out, uint8(len(configs)))
	for _, cfg := range configs {
		out = append(out, byte(cfg.TechAndMode), cfg.Frequency)
	}
	return out
}

// EncodeSetListenModeRoutingCmd encodes a minimal RF_SET_LISTEN_MODE_ROUTING_CMD
// carrying zero routing entries: [more=0, num_entries=0]. The core issues
// this only to probe routing-table support on NCI 2.x NFCCs that advertise
// it; routing policy belongs to a layer above this one.
func EncodeSetListenModeRoutingCmd() []byte {
	return []byte{0x00, 0x00}
}

// EncodeGetConfigCmd encodes CORE_GET_CONFIG_CMD: [n, tag1..tagn]
// (Table 11).
func EncodeGetConfigCmd(tags []uint8) []byte {
	out := make([]byte, 0, 1+len(tags))
	out = append(out, uint8(len(tags)))
	out = append(out, tags...)
	return out
}
