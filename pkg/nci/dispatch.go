package nci

import "github.com/nfcgo/ncicore/internal/logger"

// onResponse is the SAR's Dispatcher.OnResponse: the single dispatch point
// for matched or mismatched command responses. A response dispatch clears
// the in-flight command atomically with the timeout cancellation.
func (c *Core) onResponse(gid, oid uint8, payload []byte) {
	c.mu.Lock()
	defer func() {
		c.flushLocked()
		c.mu.Unlock()
	}()

	if c.inFlight == nil || c.inFlight.gid != gid || c.inFlight.oid != oid {
		logger.Debug("nci: dropping unexpected response", "gid", gid, "oid", oid)
		return
	}

	cmd := c.inFlight
	c.inFlight = nil
	cmd.cancelTimer()

	handler := cmd.handler
	if handler != nil {
		handler(append([]byte(nil), payload...))
	}
}

// onNotification is the SAR's Dispatcher.OnNotification: routed to the
// active transition's handler if one is in flight, else to current_state's
// handler, else dropped at debug.
func (c *Core) onNotification(gid, oid uint8, payload []byte) {
	c.mu.Lock()
	defer func() {
		c.flushLocked()
		c.mu.Unlock()
	}()

	payload = append([]byte(nil), payload...)

	if c.activeTransition != nil {
		if c.activeTransition.notify(c, gid, oid, payload) {
			return
		}
		logger.Debug("nci: notification not consumed by active transition, dropped", "transition", c.activeTransition.name, "gid", gid, "oid", oid)
		return
	}

	desc, ok := stateDescriptors[c.currentState]
	if !ok {
		logger.Debug("nci: notification dropped, no handler for state", "state", c.currentState, "gid", gid, "oid", oid)
		return
	}
	desc.notify(c, gid, oid, payload)
}

// onData is the SAR's Dispatcher.OnData: every inbound data packet is
// republished as a DataPacketEvent regardless of current_state.
func (c *Core) onData(cid uint8, payload []byte) {
	c.events.dataPacket.emit(DataPacketEvent{CID: cid, Payload: append([]byte(nil), payload...)})
}
