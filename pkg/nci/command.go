package nci

import (
	"time"

	"github.com/nfcgo/ncicore/pkg/nci/sar"
)

// DefaultCmdTimeout is the per-command timeout applied unless the caller
// overrides Core.CmdTimeout before issuing any operation.
const DefaultCmdTimeout = 2000 * time.Millisecond

// responseHandler is invoked exactly once, with the matched response's
// status-bearing payload, when its (gid, oid) pair is seen on the control
// channel. It never fires after a timeout or a stall.
type responseHandler func(payload []byte)

// inFlightCommand is the single command awaiting its response; at most
// one may be outstanding.
type inFlightCommand struct {
	gid, oid uint8
	handler  responseHandler
	sendID   sar.SendID
	timer    *time.Timer
}

// cancelTimer stops the armed timeout. Safe to call once per command; the
// core always clears c.inFlight in the same critical section so this is
// never called twice for the same command.
func (c *inFlightCommand) cancelTimer() {
	if c.timer != nil {
		c.timer.Stop()
	}
}
