// Package loopback provides an in-memory hal.IO implementation for tests and
// for exercising the core without real hardware attached.
package loopback

import (
	"errors"
	"sync"

	"github.com/nfcgo/ncicore/pkg/nci/hal"
)

// HAL is a programmable in-memory transport. Writes are recorded; injected
// bytes are delivered to the bound client on Inject. Safe for concurrent use.
type HAL struct {
	mu      sync.Mutex
	client  hal.Client
	started bool
	writes  [][]byte

	// WriteHook, if set, is called synchronously from Write before the
	// completion callback fires, letting tests simulate failures or delays.
	WriteHook func(chunks [][]byte) (success bool)
}

var errNotStarted = errors.New("loopback: hal not started")

// New returns an unstarted loopback HAL.
func New() *HAL {
	return &HAL{}
}

func (h *HAL) Start(client hal.Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.client = client
	h.started = true
	return nil
}

func (h *HAL) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = false
	h.client = nil
	return nil
}

func (h *HAL) Write(chunks [][]byte, complete func(success bool)) error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		if complete != nil {
			complete(false)
		}
		return errNotStarted
	}
	flat := make([]byte, 0, len(chunks))
	for _, c := range chunks {
		flat = append(flat, c...)
	}
	h.writes = append(h.writes, flat)
	hook := h.WriteHook
	h.mu.Unlock()

	success := true
	if hook != nil {
		success = hook(chunks)
	}
	if complete != nil {
		complete(success)
	}
	return nil
}

func (h *HAL) CancelWrite() {
	// Writes complete synchronously in the loopback HAL; nothing in flight
	// to cancel.
}

// Writes returns a copy of every byte sequence passed to Write so far.
func (h *HAL) Writes() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][]byte, len(h.writes))
	copy(out, h.writes)
	return out
}

// Inject delivers bytes to the bound client as though received from the
// NFCC. It is a no-op if Start has not been called.
func (h *HAL) Inject(chunk []byte) {
	h.mu.Lock()
	client := h.client
	h.mu.Unlock()
	if client != nil {
		client.Read(chunk)
	}
}
