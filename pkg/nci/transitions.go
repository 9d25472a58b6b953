package nci

import (
	"fmt"

	"github.com/nfcgo/ncicore/internal/logger"
	"github.com/nfcgo/ncicore/pkg/nci/codec"
)

// getConfigProbeTags are the fixed probe tags CORE_GET_CONFIG_CMD is issued
// with at the end of bootstrap. Their practical effect on some NFCCs is
// unclear, so a non-OK status is tolerated.
var getConfigProbeTags = []uint8{0x21, 0x32, 0x50, 0x00}

// bootstrapToIdle is "(init) -> RFST_IDLE": CORE_RESET_CMD,
// then (v1: parse CORE_RESET_RSP directly / v2: wait for CORE_RESET_NTF),
// CORE_INIT_CMD, CORE_GET_CONFIG_CMD probe.
var bootstrapToIdle = &transition{
	name:        "bootstrap->idle",
	destination: StateIdle,
	start:       func(c *Core) { c.bootstrapSendReset() },
	notify: func(c *Core, gid, oid uint8, payload []byte) bool {
		if c.awaitingResetNtf && gid == codec.GIDCore && oid == codec.OIDCoreReset {
			c.awaitingResetNtf = false
			c.bootstrapSendInit()
			return true
		}
		return handleCommonNotificationLocked(c, gid, oid, payload)
	},
}

func (c *Core) bootstrapSendReset() {
	c.sendCommandLocked(codec.GIDCore, codec.OIDCoreReset, codec.EncodeCoreResetCmd(codec.ResetKeepConfig), c.onResetResponse)
}

func (c *Core) onResetResponse(payload []byte) {
	rsp, err := codec.ParseCoreResetRsp(payload)
	if err != nil || !rsp.Status.OK() {
		logger.Error("nci: CORE_RESET_RSP failed, stalling", "error", err, "status", rsp.Status)
		c.stallLocked(true, fmt.Errorf("nci: CORE_RESET_RSP failed: status=%v err=%v", rsp.Status, err))
		return
	}
	c.nciVersion = rsp.Version
	if rsp.Version == 2 {
		// Feature negotiation is deferred to CORE_RESET_NTF on NCI 2.x.
		c.awaitingResetNtf = true
		return
	}
	c.bootstrapSendInit()
}

func (c *Core) bootstrapSendInit() {
	c.sendCommandLocked(codec.GIDCore, codec.OIDCoreInit, nil, c.onInitResponse)
}

func (c *Core) onInitResponse(payload []byte) {
	var caps codec.Capabilities
	var err error
	if c.nciVersion == 2 {
		caps, err = codec.ParseCoreInitRspV2(payload)
	} else {
		caps, err = codec.ParseCoreInitRspV1(payload)
	}
	if err != nil || !caps.Status.OK() {
		logger.Error("nci: CORE_INIT_RSP failed, stalling", "error", err, "status", caps.Status)
		c.stallLocked(true, fmt.Errorf("nci: CORE_INIT_RSP failed: status=%v err=%v", caps.Status, err))
		return
	}
	c.capabilities = caps
	c.sar.SetMaxControlPacketSize(int(caps.MaxControlPacketSize))
	c.sar.SetMaxLogicalConnections(int(caps.MaxLogicalConnections))
	c.bootstrapSendGetConfig()
}

func (c *Core) bootstrapSendGetConfig() {
	c.sendCommandLocked(codec.GIDCore, codec.OIDCoreGetConfig, codec.EncodeGetConfigCmd(getConfigProbeTags), c.onGetConfigResponse)
}

func (c *Core) onGetConfigResponse(payload []byte) {
	if status, err := parseStatusOnly(payload); err != nil || !status.OK() {
		logger.Warn("nci: CORE_GET_CONFIG_CMD probe returned non-OK status, tolerated", "error", err, "status", status)
	}
	c.finishTransitionLocked(StateIdle)
}

// routingSupported reports whether the NFCC (per CORE_INIT_RSP features)
// advertises any routing-table basis, gating the NCI 2.x listen-mode
// routing probe in idleToDiscovery.
func (c *Core) routingSupported() bool {
	f := c.capabilities.Features
	return f.RoutingTechnologyBased || f.RoutingProtocolBased || f.RoutingAIDBased
}

// idleToDiscovery is "RFST_IDLE -> RFST_DISCOVERY": (v2 + routing only)
// RF_SET_LISTEN_MODE_ROUTING_CMD (errors ignored), RF_DISCOVER_MAP_CMD,
// RF_DISCOVER_CMD.
var idleToDiscovery = &transition{
	name:        "idle->discovery",
	destination: StateDiscovery,
	start:       func(c *Core) { c.discoveryStart() },
	notify: func(c *Core, gid, oid uint8, payload []byte) bool {
		return handleCommonNotificationLocked(c, gid, oid, payload)
	},
}

func (c *Core) discoveryStart() {
	if c.nciVersion == 2 && c.routingSupported() {
		c.sendCommandLocked(codec.GIDRF, codec.OIDRFSetListenModeRouting, codec.EncodeSetListenModeRoutingCmd(), c.onListenRoutingResponse)
		return
	}
	c.discoverySendMap()
}

func (c *Core) onListenRoutingResponse(payload []byte) {
	if status, err := parseStatusOnly(payload); err != nil || !status.OK() {
		logger.Debug("nci: RF_SET_LISTEN_MODE_ROUTING_CMD non-OK, ignored", "error", err, "status", status)
	}
	c.discoverySendMap()
}

// discoverMapEntries is the fixed T1T/T2T/T3T/ISO-DEP/NFC-DEP mapping:
// the first three frame-based tag protocols map to the
// FRAME RF interface; ISO-DEP and NFC-DEP map to themselves.
var discoverMapEntries = []codec.DiscoverMapEntry{
	{Protocol: codec.ProtocolT1T, Mode: codec.DiscoverMapModePoll, RFInterface: codec.RFInterfaceFrame},
	{Protocol: codec.ProtocolT2T, Mode: codec.DiscoverMapModePoll, RFInterface: codec.RFInterfaceFrame},
	{Protocol: codec.ProtocolT3T, Mode: codec.DiscoverMapModePoll, RFInterface: codec.RFInterfaceFrame},
	{Protocol: codec.ProtocolISODep, Mode: codec.DiscoverMapModePoll, RFInterface: codec.RFInterfaceISODep},
	{Protocol: codec.ProtocolNFCDep, Mode: codec.DiscoverMapModePoll, RFInterface: codec.RFInterfaceNFCDep},
}

func (c *Core) discoverySendMap() {
	c.sendCommandLocked(codec.GIDRF, codec.OIDRFDiscoverMap, codec.EncodeDiscoverMapCmd(discoverMapEntries), c.onDiscoverMapResponse)
}

func (c *Core) onDiscoverMapResponse(payload []byte) {
	status, err := parseStatusOnly(payload)
	if err != nil || !status.OK() {
		logger.Error("nci: RF_DISCOVER_MAP_CMD failed, stalling", "error", err, "status", status)
		c.stallLocked(true, fmt.Errorf("nci: RF_DISCOVER_MAP_CMD failed: status=%v err=%v", status, err))
		return
	}
	c.discoverySendDiscover()
}

// discoverConfigs polls A/B/F/ISO15693, each at frequency 1.
var discoverConfigs = []codec.DiscoverConfig{
	{TechAndMode: codec.ModePassivePollA, Frequency: 1},
	{TechAndMode: codec.ModePassivePollB, Frequency: 1},
	{TechAndMode: codec.ModePassivePollF, Frequency: 1},
	{TechAndMode: codec.ModePassivePoll15693, Frequency: 1},
}

func (c *Core) discoverySendDiscover() {
	c.sendCommandLocked(codec.GIDRF, codec.OIDRFDiscover, codec.EncodeDiscoverCmd(discoverConfigs), c.onDiscoverResponse)
}

func (c *Core) onDiscoverResponse(payload []byte) {
	status, err := parseStatusOnly(payload)
	if err != nil || !status.OK() {
		logger.Error("nci: RF_DISCOVER_CMD failed, stalling", "error", err, "status", status)
		c.stallLocked(true, fmt.Errorf("nci: RF_DISCOVER_CMD failed: status=%v err=%v", status, err))
		return
	}
	c.finishTransitionLocked(StateDiscovery)
}

// discoveryToIdle is "RFST_DISCOVERY -> RFST_IDLE": RF_DEACTIVATE_CMD(Idle)
// -> await RF_DEACTIVATE_RSP(OK) only (no NTF wait: no target is active).
var discoveryToIdle = &transition{
	name:        "discovery->idle",
	destination: StateIdle,
	start: func(c *Core) {
		c.sendCommandLocked(codec.GIDRF, codec.OIDRFDeactivate, codec.EncodeDeactivateCmd(codec.DeactivateCmd{Type: codec.DeactivateIdle}), c.onDeactivateDiscoveryToIdleResponse)
	},
	notify: func(c *Core, gid, oid uint8, payload []byte) bool {
		return handleCommonNotificationLocked(c, gid, oid, payload)
	},
}

func (c *Core) onDeactivateDiscoveryToIdleResponse(payload []byte) {
	status, err := parseStatusOnly(payload)
	if err != nil || !status.OK() {
		logger.Error("nci: RF_DEACTIVATE_CMD(Idle) from discovery failed, stalling", "error", err, "status", status)
		c.stallLocked(true, fmt.Errorf("nci: RF_DEACTIVATE_CMD(Idle) from discovery failed: status=%v err=%v", status, err))
		return
	}
	c.finishTransitionLocked(StateIdle)
}

// deactivateNtfNotify is shared by every transition that, after its RSP,
// waits for RF_DEACTIVATE_NTF to supply the actual destination.
func deactivateNtfNotify(c *Core, gid, oid uint8, payload []byte) bool {
	if handleCommonNotificationLocked(c, gid, oid, payload) {
		return true
	}
	if gid != codec.GIDRF || oid != codec.OIDRFDeactivate {
		return false
	}
	ntf, err := codec.ParseDeactivateNtf(payload)
	if err != nil {
		logger.Error("nci: malformed RF_DEACTIVATE_NTF", "error", err)
		return false
	}
	dest, ok := mapDeactivateType(ntf.Type)
	if !ok {
		logger.Debug("nci: RF_DEACTIVATE_NTF with unmapped type, ignored", "type", ntf.Type)
		return false
	}
	c.finishTransitionLocked(dest)
	return true
}

func mapDeactivateType(t codec.DeactivateType) (State, bool) {
	switch t {
	case codec.DeactivateIdle:
		return StateIdle, true
	case codec.DeactivateSleep, codec.DeactivateSleepAF:
		return StateListenSleep, true
	case codec.DeactivateDiscovery:
		return StateDiscovery, true
	default:
		return StateInit, false
	}
}

// pollActiveToIdle is "RFST_POLL_ACTIVE -> RFST_IDLE": RF_DEACTIVATE_CMD
// (Idle) -> await RSP(OK) + RF_DEACTIVATE_NTF. This same descriptor is also
// reused as the fallback step of pollActiveToDiscovery.
var pollActiveToIdle = &transition{
	name:        "poll_active->idle",
	destination: StateIdle,
	start: func(c *Core) {
		c.sendCommandLocked(codec.GIDRF, codec.OIDRFDeactivate, codec.EncodeDeactivateCmd(codec.DeactivateCmd{Type: codec.DeactivateIdle}), c.onDeactivatePollActiveToIdleResponse)
	},
	notify: deactivateNtfNotify,
}

func (c *Core) onDeactivatePollActiveToIdleResponse(payload []byte) {
	status, err := parseStatusOnly(payload)
	if err != nil || !status.OK() {
		logger.Error("nci: RF_DEACTIVATE_CMD(Idle) from poll-active failed, stalling", "error", err, "status", status)
		c.stallLocked(true, fmt.Errorf("nci: RF_DEACTIVATE_CMD(Idle) from poll-active failed: status=%v err=%v", status, err))
		return
	}
	// current_state advances only when the matching RF_DEACTIVATE_NTF
	// arrives (deactivateNtfNotify); the RSP alone does not finish this
	// transition.
}

// pollActiveToDiscovery is "RFST_POLL_ACTIVE -> RFST_DISCOVERY":
// RF_DEACTIVATE_CMD(Discovery); on a non-OK response it falls back to
// RF_DEACTIVATE_CMD(Idle) (reusing pollActiveToIdle) and continues on to
// RFST_DISCOVERY via the IDLE->DISCOVERY path once idle is reached.
var pollActiveToDiscovery = &transition{
	name:        "poll_active->discovery",
	destination: StateDiscovery,
	start: func(c *Core) {
		c.sendCommandLocked(codec.GIDRF, codec.OIDRFDeactivate, codec.EncodeDeactivateCmd(codec.DeactivateCmd{Type: codec.DeactivateDiscovery}), c.onDeactivatePollActiveToDiscoveryResponse)
	},
	notify: deactivateNtfNotify,
}

func (c *Core) onDeactivatePollActiveToDiscoveryResponse(payload []byte) {
	status, err := parseStatusOnly(payload)
	if err != nil {
		logger.Error("nci: RF_DEACTIVATE_CMD(Discovery) response malformed, stalling", "error", err)
		c.stallLocked(true, fmt.Errorf("nci: RF_DEACTIVATE_CMD(Discovery) response malformed: %v", err))
		return
	}
	if !status.OK() {
		logger.Warn("nci: RF_DEACTIVATE_CMD(Discovery) failed, falling back via idle", "status", status)
		c.pendingQueue = append([]*transition{idleToDiscovery}, c.pendingQueue...)
		c.startTransitionLocked(pollActiveToIdle)
		return
	}
	// current_state advances only when the matching RF_DEACTIVATE_NTF
	// arrives (deactivateNtfNotify).
}

// pathBetween reports the ordered transition chain from one steady state to
// another. Only the states that can actually be SetState targets from one
// another have entries; everything else returns ok=false, per ErrNoPath.
func pathBetween(from, to State) ([]*transition, bool) {
	paths, ok := transitionPaths[from]
	if !ok {
		return nil, false
	}
	path, ok := paths[to]
	return path, ok
}

var transitionPaths = map[State]map[State][]*transition{
	StateIdle: {
		StateDiscovery: {idleToDiscovery},
	},
	StateDiscovery: {
		StateIdle: {discoveryToIdle},
	},
	StatePollActive: {
		StateIdle:      {pollActiveToIdle},
		StateDiscovery: {pollActiveToDiscovery},
	},
}
