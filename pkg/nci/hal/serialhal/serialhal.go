// Package serialhal is a hal.IO backed by a UART, for driving a real NFCC
// attached over a serial bridge (the common case for NCI-over-UART chips).
package serialhal

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/nfcgo/ncicore/internal/logger"
	"github.com/nfcgo/ncicore/pkg/nci/hal"
)

// Config describes the serial port to open.
type Config struct {
	Name        string
	Baud        int
	ReadTimeout time.Duration
}

// HAL drives a tarm/serial port as an NCI transport: writes are synchronous
// against the port, and a background goroutine feeds inbound bytes to the
// bound client.
type HAL struct {
	cfg Config

	mu     sync.Mutex
	port   *serial.Port
	client hal.Client
	stopCh chan struct{}
	wg     sync.WaitGroup

	writeMu sync.Mutex // serializes Write against CancelWrite
}

// New returns a HAL that will open cfg.Name at cfg.Baud on Start.
func New(cfg Config) *HAL {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 100 * time.Millisecond
	}
	return &HAL{cfg: cfg}
}

func (h *HAL) Start(client hal.Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	port, err := serial.OpenPort(&serial.Config{
		Name:        h.cfg.Name,
		Baud:        h.cfg.Baud,
		ReadTimeout: h.cfg.ReadTimeout,
	})
	if err != nil {
		return fmt.Errorf("serialhal: open %s: %w", h.cfg.Name, err)
	}

	h.port = port
	h.client = client
	h.stopCh = make(chan struct{})
	h.wg.Add(1)
	go h.readLoop(port, h.stopCh)

	logger.Info("serial HAL started", "port", h.cfg.Name, "baud", h.cfg.Baud)
	return nil
}

func (h *HAL) readLoop(port *serial.Port, stop chan struct{}) {
	defer h.wg.Done()
	buf := make([]byte, 512)
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			h.mu.Lock()
			client := h.client
			h.mu.Unlock()
			if client != nil {
				client.Read(chunk)
			}
		}
		if err != nil && err != io.EOF {
			logger.Debug("serial HAL read error", "port", h.cfg.Name, "error", err)
		}
	}
}

func (h *HAL) Stop() error {
	h.mu.Lock()
	port := h.port
	stopCh := h.stopCh
	h.port = nil
	h.client = nil
	h.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}
	var err error
	if port != nil {
		err = port.Close()
	}
	h.wg.Wait()
	return err
}

func (h *HAL) Write(chunks [][]byte, complete func(success bool)) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	h.mu.Lock()
	port := h.port
	h.mu.Unlock()
	if port == nil {
		if complete != nil {
			complete(false)
		}
		return fmt.Errorf("serialhal: not started")
	}

	success := true
	for _, c := range chunks {
		if _, err := port.Write(c); err != nil {
			logger.Warn("serial HAL write error", "port", h.cfg.Name, "error", err)
			success = false
			break
		}
	}
	if complete != nil {
		complete(success)
	}
	if !success {
		return fmt.Errorf("serialhal: write to %s failed", h.cfg.Name)
	}
	return nil
}

func (h *HAL) CancelWrite() {
	// tarm/serial writes are synchronous on the calling goroutine; there is
	// nothing to cancel mid-flight short of closing the port, which Stop
	// already does.
}
