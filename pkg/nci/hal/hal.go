// Package hal defines the byte-oriented transport boundary between the core
// and whatever physically carries NCI octets to the NFCC (UART, SPI bridge,
// loopback test fixture, ...). The core and SAR own no transport; every HAL
// implementation is injected by the caller of nci.New.
package hal

// Client receives inbound bytes from a HAL implementation. The SAR
// implements Client; a HAL calls Read exactly once per chunk of bytes it
// has available, in the order received, and never concurrently with itself.
type Client interface {
	Read(chunk []byte)
}

// IO is the four-operation contract a HAL implementation provides.
type IO interface {
	// Start begins delivering inbound bytes to client via Client.Read. It
	// must not block; failures surface through the first Write's
	// on_complete or through Stop.
	Start(client Client) error

	// Stop releases the transport. After Stop returns, Read is never
	// called again.
	Stop() error

	// Write concatenates chunks on the wire in order and invokes complete
	// exactly once with the outcome. Write must not block the caller
	// indefinitely; complete is always called, even on failure.
	Write(chunks [][]byte, complete func(success bool)) error

	// CancelWrite best-effort aborts the in-flight Write, if any. The
	// pending complete callback still fires, with success=false.
	CancelWrite()
}
