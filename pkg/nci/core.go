package nci

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nfcgo/ncicore/internal/logger"
	"github.com/nfcgo/ncicore/pkg/nci/codec"
	"github.com/nfcgo/ncicore/pkg/nci/hal"
	"github.com/nfcgo/ncicore/pkg/nci/sar"
)

// pendingSignal bits, coalesced between dispatch epilogues.
const (
	sigCurrentState uint8 = 1 << iota
	sigNextState
)

// transition is a chained command sequence from whatever state is active
// when it starts to destination. start issues the first command
// and installs its own response handler, chaining further sub-steps by
// calling Core.sendCommandLocked again from within each handler; the chain
// ends by calling Core.finishTransitionLocked. notify handles notifications arriving
// while this transition is the active one (e.g. RF_DEACTIVATE_NTF
// supplying the destination directly, bypassing the start chain).
type transition struct {
	name        string
	destination State
	start       func(c *Core)
	notify      func(c *Core, gid, oid uint8, payload []byte) bool // true if consumed
}

// stateDescriptor holds the notification handler used when no transition
// is active and current_state == this state, plus the path table used by
// SetState.
type stateDescriptor struct {
	notify func(c *Core, gid, oid uint8, payload []byte)
	paths  map[State][]*transition
}

// Core drives one NFCC through CORE_RESET/CORE_INIT bootstrap, RF
// discovery, target activation, and deactivation, per the NCI RF state
// model. A Core owns exactly one SAR bound to exactly one
// hal.IO; it is not safe to share across HAL instances.
type Core struct {
	// CmdTimeout bounds every in-flight command. Mutable only before
	// the first operation; changing it afterwards is not synchronized.
	CmdTimeout time.Duration

	mu sync.Mutex

	halIO hal.IO
	sar   *sar.SAR

	currentState State
	nextState    State

	activeTransition *transition
	pendingQueue     []*transition

	inFlight *inFlightCommand

	pending uint8 // coalesced signal bitset, emitted by flushLocked
	flushing bool // reentrancy guard: only the outermost dispatch flushes

	closed bool

	events eventBus

	discoveryID uint8 // RF discovery ID of the currently activated target, reported by ActiveDiscoveryID

	nciVersion      int               // 1 or 2, learned from CORE_RESET_RSP during bootstrap
	capabilities    codec.Capabilities // populated by CORE_INIT_RSP
	awaitingResetNtf bool              // bootstrap is waiting for CORE_RESET_NTF (NCI 2.x)

	lastErr error // reason for the most recent stall into StateError, if any
}

// Err reports the reason the core last stalled into StateError, or nil if
// it has not stalled into StateError since New or the last Restart. A
// later Stall(false) into StateStop leaves the reported reason unchanged.
func (c *Core) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Capabilities reports the NFCC capability snapshot populated by the last
// CORE_INIT_RSP. Zero value until bootstrap completes.
func (c *Core) Capabilities() codec.Capabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capabilities
}

// ActiveDiscoveryID reports the RF discovery ID of the currently activated
// target and true, or (0, false) outside RFST_POLL_ACTIVE. Event sinks can
// use this to correlate a data packet or deactivation back to the
// activation that produced it without threading the ID through every call.
func (c *Core) ActiveDiscoveryID() (uint8, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentState != StatePollActive {
		return 0, false
	}
	return c.discoveryID, true
}

// New constructs a Core bound to halIO and starts it delivering bytes to an
// internal SAR. The core begins in StateInit; call Restart (or SetState) to
// bootstrap it to RFST_IDLE.
func New(halIO hal.IO) (*Core, error) {
	c := &Core{
		CmdTimeout:   DefaultCmdTimeout,
		halIO:        halIO,
		currentState: StateInit,
		nextState:    StateInit,
	}
	c.sar = sar.New(halIO, sar.Dispatcher{
		OnResponse:     c.onResponse,
		OnNotification: c.onNotification,
		OnData:         c.onData,
		OnError:        c.onTransportError,
	})
	if err := halIO.Start(c.sar); err != nil {
		return nil, fmt.Errorf("nci: starting HAL: %w", err)
	}
	return c, nil
}

// Close releases the underlying HAL. The Core must not be used afterwards.
func (c *Core) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.halIO.Stop()
}

// CurrentState reports the state the core has confirmed it reached.
func (c *Core) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentState
}

// NextState reports the destination of the active transition, or
// CurrentState when idle.
func (c *Core) NextState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextState
}

// Restart cancels everything in flight, resets to StateInit, and starts the
// bootstrap transition to RFST_IDLE.
func (c *Core) Restart() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.cancelAllLocked()
	c.currentState = StateInit
	c.nextState = StateInit
	c.lastErr = nil
	c.markLocked(sigCurrentState | sigNextState)
	c.startTransitionLocked(bootstrapToIdle)
	c.flushLocked()
	c.mu.Unlock()
	return nil
}

// Stall forcibly terminates all in-flight work and moves to StateError (if
// error) or StateStop. Idempotent: a second call with the same argument is
// a no-op.
func (c *Core) Stall(errored bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var reason error
	if errored {
		reason = errors.New("nci: stalled by caller")
	}
	c.stallLocked(errored, reason)
	c.flushLocked()
}

func (c *Core) cancelAllLocked() {
	if c.inFlight != nil {
		c.inFlight.cancelTimer()
		c.inFlight = nil
	}
	c.activeTransition = nil
	c.pendingQueue = nil
}

// SetState requests a move to target. It returns false only if no
// transition path exists from wherever the core currently is (or is
// headed) to target.
func (c *Core) SetState(target State) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrClosed
	}
	if c.currentState.terminal() {
		return false, ErrStalled
	}

	ok := c.setStateLocked(target)
	c.flushLocked()
	if !ok {
		return false, ErrNoPath
	}
	return true, nil
}

func (c *Core) setStateLocked(target State) bool {
	if c.nextState == target {
		return true // already on the way, or already there
	}
	if c.activeTransition != nil {
		if c.activeTransition.destination == target {
			return true
		}
		path, ok := pathBetween(c.activeTransition.destination, target)
		if !ok {
			return false
		}
		c.pendingQueue = append(c.pendingQueue, path...)
		return true
	}
	if c.currentState == StateInit {
		// Uninitialised: bootstrap first, then the idle->target path.
		var path []*transition
		if target != StateIdle {
			p, ok := pathBetween(StateIdle, target)
			if !ok {
				return false
			}
			path = p
		}
		c.startTransitionLocked(bootstrapToIdle)
		c.pendingQueue = append(c.pendingQueue, path...)
		return true
	}
	path, ok := pathBetween(c.currentState, target)
	if !ok {
		return false
	}
	c.startTransitionLocked(path[0])
	c.pendingQueue = append(c.pendingQueue, path[1:]...)
	return true
}

// startTransitionLocked installs t as the active transition, sets
// next_state accordingly, and runs its start action.
func (c *Core) startTransitionLocked(t *transition) {
	c.activeTransition = t
	c.nextState = t.destination
	c.markLocked(sigNextState)
	logger.Debug("nci: starting transition", "transition", t.name, "destination", t.destination)
	t.start(c)
}

// finishTransitionLocked ends the active transition, advances current_state
// to destination, and either starts the next queued transition or clears
// the active pointer. Called by a transition's start
// chain on success, or by a notification handler that supplies the
// destination directly (e.g. RF_DEACTIVATE_NTF). Must be called with c.mu
// held; the caller's outer dispatch entrypoint flushes once at its own
// epilogue.
func (c *Core) finishTransitionLocked(destination State) {
	c.currentState = destination
	c.nextState = destination
	c.activeTransition = nil
	c.markLocked(sigCurrentState | sigNextState)

	if len(c.pendingQueue) > 0 {
		next := c.pendingQueue[0]
		c.pendingQueue = c.pendingQueue[1:]
		c.startTransitionLocked(next)
	}
}

// markLocked flags signals dirty; actual emission happens at flushLocked.
func (c *Core) markLocked(bits uint8) {
	c.pending |= bits
}

// flushLocked emits any coalesced state-change signals exactly once,
// at a safe yield point. The flushing guard means a
// reentrant call (e.g. SetState invoked from inside an observer this
// flush is calling) marks bits but defers emission to the outermost
// flush, never recursing into emission itself.
func (c *Core) flushLocked() {
	if c.flushing {
		return
	}
	c.flushing = true
	for c.pending != 0 {
		bits := c.pending
		c.pending = 0
		cur, next := c.currentState, c.nextState

		c.mu.Unlock()
		if bits&sigCurrentState != 0 {
			c.events.currentStateChanged.emit(cur)
		}
		if bits&sigNextState != 0 {
			c.events.nextStateChanged.emit(next)
		}
		c.mu.Lock()
	}
	c.flushing = false
}

// sendCommandLocked encodes, fragments, and transmits a control command,
// arming the per-command timeout and installing handler as the sole
// recipient of the matched response. Must be called with c.mu held;
// it releases the lock around the SAR call and the HAL write, matching the
// transient-unlock discipline used throughout onResponse/onNotification.
func (c *Core) sendCommandLocked(gid, oid uint8, payload []byte, handler responseHandler) {
	timeout := c.CmdTimeout
	if timeout <= 0 {
		timeout = DefaultCmdTimeout
	}

	cmd := &inFlightCommand{gid: gid, oid: oid, handler: handler}
	c.inFlight = cmd

	c.mu.Unlock()
	id, err := c.sar.SendCommand(gid, oid, payload, func(success bool) {
		if !success {
			c.onWriteFailure(gid, oid)
		}
	})
	c.mu.Lock()

	if err != nil {
		logger.Error("nci: failed to send command", "gid", gid, "oid", oid, "error", err)
		c.inFlight = nil
		c.stallLocked(true, fmt.Errorf("nci: sending gid=%d oid=%d: %w", gid, oid, err))
		return
	}
	cmd.sendID = id
	cmd.timer = time.AfterFunc(timeout, func() { c.onCmdTimeout(cmd) })
}

func (c *Core) onWriteFailure(gid, oid uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight == nil || c.inFlight.gid != gid || c.inFlight.oid != oid {
		return
	}
	logger.Error("nci: HAL write failed for in-flight command", "gid", gid, "oid", oid)
	c.stallLocked(true, fmt.Errorf("nci: HAL write failed for gid=%d oid=%d", gid, oid))
}

func (c *Core) onCmdTimeout(cmd *inFlightCommand) {
	c.mu.Lock()
	if c.inFlight != cmd {
		c.mu.Unlock()
		return // already answered or superseded
	}
	logger.Error("nci: command timed out", "gid", cmd.gid, "oid", cmd.oid, "timeout", c.CmdTimeout)
	c.stallLocked(true, fmt.Errorf("%w: gid=%d oid=%d", ErrTimeout, cmd.gid, cmd.oid))
	c.mu.Unlock()

	// Timeout observers run before the stall's state change is flushed.
	c.events.commandTimeout.emit(CommandTimeoutEvent{GID: cmd.gid, OID: cmd.oid})

	c.mu.Lock()
	c.flushLocked()
	c.mu.Unlock()
}

// stallLocked is Stall's body for callers that already hold c.mu (does not
// flush; callers are responsible for flushing once at their own epilogue).
// reason is recorded as lastErr when errored is true; it is ignored (and
// may be nil) otherwise.
func (c *Core) stallLocked(errored bool, reason error) {
	target := StateStop
	if errored {
		target = StateError
	}
	if c.currentState == target && c.nextState == target {
		return
	}
	c.cancelAllLocked()
	c.currentState = target
	c.nextState = target
	if errored {
		c.lastErr = reason
	}
	c.markLocked(sigCurrentState | sigNextState)
}

func (c *Core) onTransportError(err error) {
	logger.Error("nci: SAR transport error", "error", err)
	c.mu.Lock()
	c.stallLocked(true, fmt.Errorf("nci: transport error: %w", err))
	c.flushLocked()
	c.mu.Unlock()
}

// SendData submits payload on logical connection cid. It is queued behind
// credit availability and per-CID FIFO ordering by the SAR.
func (c *Core) SendData(cid uint8, payload []byte, onComplete func(success bool)) (sar.SendID, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	return c.sar.SendData(cid, payload, onComplete)
}

// Cancel best-effort aborts a send previously returned by SendData.
func (c *Core) Cancel(id sar.SendID) {
	c.sar.Cancel(id)
}

// SubscribeCurrentStateChanged registers fn to be called, in subscription
// order, whenever current_state changes.
func (c *Core) SubscribeCurrentStateChanged(fn func(State)) SubscriptionID {
	id := c.events.allocID()
	c.events.currentStateChanged.subscribe(id, fn)
	return id
}

// SubscribeNextStateChanged registers fn to be called whenever next_state
// changes.
func (c *Core) SubscribeNextStateChanged(fn func(State)) SubscriptionID {
	id := c.events.allocID()
	c.events.nextStateChanged.subscribe(id, fn)
	return id
}

// SubscribeIntfActivated registers fn to be called once per successful
// target activation.
func (c *Core) SubscribeIntfActivated(fn func(IntfActivatedEvent)) SubscriptionID {
	id := c.events.allocID()
	c.events.intfActivated.subscribe(id, fn)
	return id
}

// SubscribeDataPacket registers fn to be called once per inbound data
// packet, on any logical connection.
func (c *Core) SubscribeDataPacket(fn func(DataPacketEvent)) SubscriptionID {
	id := c.events.allocID()
	c.events.dataPacket.subscribe(id, fn)
	return id
}

// SubscribeCommandTimeout registers fn to be called once per command that
// expires without a matching response, just before the stall it causes is
// flushed. Metrics and tracing sinks use this as the one place a command's
// outcome is observable without threading a correlation ID through every
// sendCommandLocked caller.
func (c *Core) SubscribeCommandTimeout(fn func(CommandTimeoutEvent)) SubscriptionID {
	id := c.events.allocID()
	c.events.commandTimeout.subscribe(id, fn)
	return id
}

// Unsubscribe removes a previously registered observer. It is a no-op if
// id is unknown or already unsubscribed.
func (c *Core) Unsubscribe(id SubscriptionID) {
	if c.events.currentStateChanged.unsubscribe(id) {
		return
	}
	if c.events.nextStateChanged.unsubscribe(id) {
		return
	}
	if c.events.intfActivated.unsubscribe(id) {
		return
	}
	if c.events.dataPacket.unsubscribe(id) {
		return
	}
	c.events.commandTimeout.unsubscribe(id)
}

// parseStatusOnly extracts just the leading status byte most control
// responses carry; used by steps that only need to check OK/non-OK.
func parseStatusOnly(payload []byte) (codec.Status, error) {
	if len(payload) < 1 {
		return 0, fmt.Errorf("nci: response payload empty, want at least 1 status byte")
	}
	return codec.Status(payload[0]), nil
}
