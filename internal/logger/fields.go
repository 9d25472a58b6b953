package logger

import "log/slog"

// Standard field keys for structured logging. Use these keys consistently
// across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Session & Transport
	// ========================================================================
	KeySessionID = "session_id" // CLI session UUID, correlates logs with audit records
	KeyPort      = "port"       // Serial device of the attached NFCC
	KeySendID    = "send_id"    // SAR send identifier

	// ========================================================================
	// Controller State
	// ========================================================================
	KeyState      = "state"      // Current controller state
	KeyNextState  = "next_state" // Destination of the active transition
	KeyTransition = "transition" // Transition name

	// ========================================================================
	// Control Packets
	// ========================================================================
	KeyGID         = "gid"          // Group identifier of a control packet
	KeyOID         = "oid"          // Opcode identifier of a control packet
	KeyStatus      = "status"       // NCI status code
	KeyPayloadSize = "payload_size" // Payload size in bytes

	// ========================================================================
	// Data Connections
	// ========================================================================
	KeyCID     = "cid"     // Logical connection ID
	KeyCredits = "credits" // Connection credit count

	// ========================================================================
	// Activation
	// ========================================================================
	KeyDiscoveryID = "discovery_id" // RF discovery ID of an activated target
	KeyRFInterface = "rf_interface" // RF interface of an activated target
	KeyProtocol    = "protocol"     // RF protocol of an activated target
	KeyMode        = "mode"         // RF technology and mode

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// SessionID returns a slog.Attr for the CLI session UUID
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// Port returns a slog.Attr for the serial device name
func Port(name string) slog.Attr {
	return slog.String(KeyPort, name)
}

// State returns a slog.Attr for a controller state name
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// GID returns a slog.Attr for a control packet group identifier
func GID(gid uint8) slog.Attr {
	return slog.Int(KeyGID, int(gid))
}

// OID returns a slog.Attr for a control packet opcode identifier
func OID(oid uint8) slog.Attr {
	return slog.Int(KeyOID, int(oid))
}

// CID returns a slog.Attr for a logical connection ID
func CID(cid uint8) slog.Attr {
	return slog.Int(KeyCID, int(cid))
}

// Credits returns a slog.Attr for a connection credit count
func Credits(n int) slog.Attr {
	return slog.Int(KeyCredits, n)
}

// DiscoveryID returns a slog.Attr for an RF discovery ID
func DiscoveryID(id uint8) slog.Attr {
	return slog.Int(KeyDiscoveryID, int(id))
}

// PayloadSize returns a slog.Attr for a payload size in bytes
func PayloadSize(n int) slog.Attr {
	return slog.Int(KeyPayloadSize, n)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
