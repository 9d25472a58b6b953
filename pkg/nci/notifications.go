package nci

import (
	"github.com/nfcgo/ncicore/internal/logger"
	"github.com/nfcgo/ncicore/pkg/nci/codec"
)

// handleCommonNotificationLocked handles the notifications every state and
// transition tolerates regardless of context: connection credit grants and
// generic (non-fatal) errors. Must be called with c.mu held.
func handleCommonNotificationLocked(c *Core, gid, oid uint8, payload []byte) bool {
	switch {
	case gid == codec.GIDCore && oid == codec.OIDCoreConnCredits:
		ntf, err := codec.ParseConnCreditsNtf(payload)
		if err != nil {
			logger.Error("nci: malformed CORE_CONN_CREDITS_NTF, dropped", "error", err)
			return true
		}
		for _, grant := range ntf.Credits {
			c.sar.AddCredits(grant.CID, int(grant.Credits))
		}
		return true
	case gid == codec.GIDCore && oid == codec.OIDCoreGenericError:
		logger.Warn("nci: CORE_GENERIC_ERROR_NTF received, tolerated", "payload", payload)
		return true
	default:
		return false
	}
}

// idleDescriptor is the steady-state notification handler for RFST_IDLE: no
// target is ever active here, so only the common notifications apply.
var idleDescriptor = &stateDescriptor{
	notify: func(c *Core, gid, oid uint8, payload []byte) {
		if handleCommonNotificationLocked(c, gid, oid, payload) {
			return
		}
		logger.Debug("nci: notification dropped in RFST_IDLE", "gid", gid, "oid", oid)
	},
	paths: transitionPaths[StateIdle],
}

// discoveryDescriptor is the steady-state notification handler for
// RFST_DISCOVERY: RF_INTF_ACTIVATED_NTF is the interesting case.
var discoveryDescriptor = &stateDescriptor{
	notify: func(c *Core, gid, oid uint8, payload []byte) {
		if gid == codec.GIDRF && oid == codec.OIDRFIntfActivated {
			c.handleIntfActivatedNtf(payload)
			return
		}
		if handleCommonNotificationLocked(c, gid, oid, payload) {
			return
		}
		logger.Debug("nci: notification dropped in RFST_DISCOVERY", "gid", gid, "oid", oid)
	},
	paths: transitionPaths[StateDiscovery],
}

// pollActiveDescriptor is the steady-state notification handler for
// RFST_POLL_ACTIVE: besides the common notifications, a spontaneous
// RF_DEACTIVATE_NTF (the NFCC deactivating without a prior DH request, e.g.
// the target was removed) moves current/next state directly since there is
// no active transition to finish.
var pollActiveDescriptor = &stateDescriptor{
	notify: func(c *Core, gid, oid uint8, payload []byte) {
		if handleCommonNotificationLocked(c, gid, oid, payload) {
			return
		}
		if gid == codec.GIDRF && oid == codec.OIDRFDeactivate {
			ntf, err := codec.ParseDeactivateNtf(payload)
			if err != nil {
				logger.Error("nci: malformed RF_DEACTIVATE_NTF in RFST_POLL_ACTIVE, dropped", "error", err)
				return
			}
			if dest, ok := mapDeactivateType(ntf.Type); ok {
				logger.Debug("nci: spontaneous RF_DEACTIVATE_NTF", "destination", dest)
				c.finishTransitionLocked(dest)
			}
			return
		}
		logger.Debug("nci: notification dropped in RFST_POLL_ACTIVE", "gid", gid, "oid", oid)
	},
	paths: transitionPaths[StatePollActive],
}

// stubDescriptor handles states the canonical paths never transition to
// (LISTEN_ACTIVE, LISTEN_SLEEP, W4_ALL_DISCOVERIES, W4_HOST_SELECT): the
// enum values and handler slots are kept for future extension but carry
// no paths and only the common notifications.
func stubDescriptor() *stateDescriptor {
	return &stateDescriptor{
		notify: func(c *Core, gid, oid uint8, payload []byte) {
			if handleCommonNotificationLocked(c, gid, oid, payload) {
				return
			}
			logger.Debug("nci: notification dropped in unreached state", "gid", gid, "oid", oid)
		},
	}
}

var stateDescriptors = map[State]*stateDescriptor{
	StateIdle:             idleDescriptor,
	StateDiscovery:        discoveryDescriptor,
	StatePollActive:       pollActiveDescriptor,
	StateW4AllDiscoveries: stubDescriptor(),
	StateW4HostSelect:     stubDescriptor(),
	StateListenActive:     stubDescriptor(),
	StateListenSleep:      stubDescriptor(),
}

// handleIntfActivatedNtf parses the activation. On any parse failure —
// short frame, bad inner lengths, or missing mode params — the engine
// still enters RFST_POLL_ACTIVE synthetically (the NFCC itself believes
// activation succeeded) and then requests a return to discovery to drop
// the malformed target. No failure shape ever emits IntfActivated.
func (c *Core) handleIntfActivatedNtf(payload []byte) {
	ntf, err := codec.ParseIntfActivatedNtf(payload)
	if err != nil {
		logger.Warn("nci: malformed RF_INTF_ACTIVATED_NTF, requesting re-discovery", "error", err)
		c.enterPollActiveLocked(codec.IntfActivatedNtf{}, false)
		c.setStateLocked(StateDiscovery)
		return
	}
	if len(ntf.ModeParamBytes) == 0 {
		logger.Warn("nci: RF_INTF_ACTIVATED_NTF missing mode params, requesting re-discovery")
		c.enterPollActiveLocked(ntf, false)
		c.setStateLocked(StateDiscovery)
		return
	}
	c.enterPollActiveLocked(ntf, true)
}

// enterPollActiveLocked seeds SAR credits for the static RF connection,
// enters RFST_POLL_ACTIVE, and (only for a fully decoded activation) emits
// IntfActivated synchronously right after the state-change flush so
// observers see the state change first.
func (c *Core) enterPollActiveLocked(ntf codec.IntfActivatedNtf, emitActivated bool) {
	c.discoveryID = ntf.DiscoveryID
	c.sar.SetInitialCredits(codec.StaticRFConnID, int(ntf.NumCredits))
	c.currentState = StatePollActive
	c.nextState = StatePollActive
	c.markLocked(sigCurrentState | sigNextState)

	if !emitActivated {
		return
	}
	c.flushLocked()
	c.mu.Unlock()
	c.events.intfActivated.emit(IntfActivatedEvent{IntfActivatedNtf: ntf})
	c.mu.Lock()
}
