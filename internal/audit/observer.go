package audit

import (
	"encoding/hex"
	"fmt"

	"github.com/nfcgo/ncicore/internal/logger"
	"github.com/nfcgo/ncicore/pkg/nci"
)

// Observer subscribes a Log to a core's event bus, tagging every record
// with the owning session ID so a CLI run's log lines and audit entries can
// be correlated.
type Observer struct {
	log     *Log
	session string
}

// NewObserver creates an observer writing to log under session.
func NewObserver(log *Log, session string) *Observer {
	return &Observer{log: log, session: session}
}

// Attach subscribes the observer to core and writes the session-start
// record. Returns a detach function.
func (o *Observer) Attach(core *nci.Core) (detach func()) {
	o.append(Record{Kind: KindSessionStart})

	subs := []nci.SubscriptionID{
		core.SubscribeCurrentStateChanged(func(s nci.State) {
			o.append(Record{Kind: KindStateChange, State: s.String()})
		}),
		core.SubscribeNextStateChanged(func(s nci.State) {
			o.append(Record{Kind: KindNextState, State: s.String()})
		}),
		core.SubscribeIntfActivated(func(ev nci.IntfActivatedEvent) {
			rec := Record{Kind: KindActivation, Detail: map[string]any{
				"discovery_id": ev.DiscoveryID,
				"rf_interface": fmt.Sprintf("0x%02x", uint8(ev.RFInterface)),
				"protocol":     fmt.Sprintf("0x%02x", uint8(ev.Protocol)),
				"mode":         fmt.Sprintf("0x%02x", uint8(ev.Mode)),
				"max_pkt":      ev.MaxDataPacketSize,
				"credits":      ev.NumCredits,
				"mode_params":  hex.EncodeToString(ev.ModeParamBytes),
			}}
			if ev.ModeParam != nil {
				rec.Detail["nfcid1"] = hex.EncodeToString(ev.ModeParam.PollA.NFCID1)
			}
			if ev.ActivationParam != nil {
				rec.Detail["fsc"] = ev.ActivationParam.ISODepPollA.FSC
				rec.Detail["historical"] = hex.EncodeToString(ev.ActivationParam.ISODepPollA.T1)
			}
			o.append(rec)
		}),
		core.SubscribeDataPacket(func(ev nci.DataPacketEvent) {
			o.append(Record{Kind: KindDataPacket, Detail: map[string]any{
				"cid":     ev.CID,
				"size":    len(ev.Payload),
				"payload": hex.EncodeToString(ev.Payload),
			}})
		}),
		core.SubscribeCommandTimeout(func(ev nci.CommandTimeoutEvent) {
			o.append(Record{Kind: KindCommandTimeout, Detail: map[string]any{
				"gid": ev.GID,
				"oid": ev.OID,
			}})
		}),
	}
	return func() {
		for _, id := range subs {
			core.Unsubscribe(id)
		}
	}
}

// append writes one record, logging (rather than propagating) failures:
// the audit trail must never take the controller down with it.
func (o *Observer) append(rec Record) {
	rec.Session = o.session
	if _, err := o.log.Append(rec); err != nil {
		logger.Warn("audit: failed to append record", "kind", rec.Kind, "error", err)
	}
}
