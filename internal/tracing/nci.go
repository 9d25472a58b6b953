package tracing

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nfcgo/ncicore/pkg/nci"
)

// Attribute keys for NCI controller spans.
const (
	AttrState       = "nci.state"
	AttrTarget      = "nci.target_state"
	AttrCID         = "nci.cid"
	AttrRFInterface = "nci.rf_interface"
	AttrProtocol    = "nci.protocol"
	AttrDiscoveryID = "nci.discovery_id"
	AttrGID         = "nci.gid"
	AttrOID         = "nci.oid"
	AttrPayloadSize = "nci.payload_size"
)

// Span names.
const (
	SpanTransition = "nci.transition"
	SpanActivation = "nci.activation"
	SpanDataPacket = "nci.data_packet"
)

// StateAttr returns an attribute for a controller state.
func StateAttr(s nci.State) attribute.KeyValue {
	return attribute.String(AttrState, s.String())
}

// CIDAttr returns an attribute for a logical connection ID.
func CIDAttr(cid uint8) attribute.KeyValue {
	return attribute.Int(AttrCID, int(cid))
}

// Recorder translates the core's event stream into spans: one span per
// transition (opened when next_state moves away from current_state, closed
// when current_state catches up) plus instant spans for activations and
// inbound data. Command timeouts mark the open transition span as errored.
type Recorder struct {
	ctx context.Context

	mu       sync.Mutex
	current  nci.State
	span     trace.Span
	timedOut bool
}

// NewRecorder creates a Recorder rooted at ctx; spans it opens become
// children of whatever span ctx carries.
func NewRecorder(ctx context.Context) *Recorder {
	return &Recorder{ctx: ctx}
}

// Attach subscribes the recorder to core's event bus and returns a detach
// function that also ends any span still open.
func (r *Recorder) Attach(core *nci.Core) (detach func()) {
	subs := []nci.SubscriptionID{
		core.SubscribeNextStateChanged(r.onNextState),
		core.SubscribeCurrentStateChanged(r.onCurrentState),
		core.SubscribeIntfActivated(r.onActivated),
		core.SubscribeDataPacket(r.onData),
		core.SubscribeCommandTimeout(r.onTimeout),
	}
	return func() {
		for _, id := range subs {
			core.Unsubscribe(id)
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		r.endLocked(codes.Unset, "detached mid-transition")
	}
}

func (r *Recorder) onNextState(next nci.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if next == r.current || r.span != nil {
		return
	}
	_, r.span = StartSpan(r.ctx, SpanTransition, trace.WithAttributes(
		attribute.String(AttrState, r.current.String()),
		attribute.String(AttrTarget, next.String()),
	))
	r.timedOut = false
}

func (r *Recorder) onCurrentState(cur nci.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.current
	r.current = cur
	if r.span == nil {
		return
	}
	switch {
	case r.timedOut:
		r.endLocked(codes.Error, "command timed out")
	case cur == nci.StateError:
		r.endLocked(codes.Error, fmt.Sprintf("stalled from %s", prev))
	default:
		r.span.SetAttributes(attribute.String(AttrState, cur.String()))
		r.endLocked(codes.Ok, "")
	}
}

// endLocked closes the open transition span, if any.
func (r *Recorder) endLocked(code codes.Code, desc string) {
	if r.span == nil {
		return
	}
	if code != codes.Unset {
		r.span.SetStatus(code, desc)
	}
	r.span.End()
	r.span = nil
}

func (r *Recorder) onActivated(ev nci.IntfActivatedEvent) {
	_, span := StartSpan(r.ctx, SpanActivation, trace.WithAttributes(
		attribute.Int(AttrDiscoveryID, int(ev.DiscoveryID)),
		attribute.String(AttrRFInterface, fmt.Sprintf("0x%02x", uint8(ev.RFInterface))),
		attribute.String(AttrProtocol, fmt.Sprintf("0x%02x", uint8(ev.Protocol))),
	))
	span.End()
}

func (r *Recorder) onData(ev nci.DataPacketEvent) {
	_, span := StartSpan(r.ctx, SpanDataPacket, trace.WithAttributes(
		CIDAttr(ev.CID),
		attribute.Int(AttrPayloadSize, len(ev.Payload)),
	))
	span.End()
}

func (r *Recorder) onTimeout(ev nci.CommandTimeoutEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timedOut = true
	if r.span != nil {
		r.span.AddEvent("command timeout", trace.WithAttributes(
			attribute.Int(AttrGID, int(ev.GID)),
			attribute.Int(AttrOID, int(ev.OID)),
		))
	}
}
