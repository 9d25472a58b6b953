// Package sar implements the NCI segmentation-and-reassembly layer: it
// frames outbound packets onto the HAL byte stream, reassembles inbound
// fragments, accounts per-connection credits, and demultiplexes complete
// packets to response/notification/data handlers.
package sar

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nfcgo/ncicore/internal/logger"
	"github.com/nfcgo/ncicore/pkg/bufpool"
	"github.com/nfcgo/ncicore/pkg/nci/codec"
)

// ErrTransport is surfaced via OnError when reassembly or a HAL write
// detects a framing violation or I/O failure. The SAR has no recovery of
// its own; the core decides how to react (typically: restart).
var ErrTransport = errors.New("sar: transport error")

// Writer is the subset of hal.IO the SAR drives. Defined locally (rather
// than imported) to keep this package importable without the hal package,
// and because the SAR only ever calls Write/CancelWrite.
type Writer interface {
	Write(chunks [][]byte, complete func(success bool)) error
	CancelWrite()
}

// SendID identifies one outbound send for later Cancel.
type SendID uint64

// Dispatcher receives fully reassembled, demultiplexed packets.
type Dispatcher struct {
	OnResponse     func(gid, oid uint8, payload []byte)
	OnNotification func(gid, oid uint8, payload []byte)
	OnData         func(cid uint8, payload []byte)
	OnError        func(err error)
}

type pendingSend struct {
	id       SendID
	cid      uint8 // valid only for data sends
	payload  []byte
	isData   bool
	gid      uint8
	oid      uint8
	offset   int // payload bytes already handed to the HAL (data sends only)
	done     func(success bool)
	canceled bool
}

type connection struct {
	cid            uint8
	credits        int
	maxPayloadSize int
	queue          []*pendingSend
}

// SAR is the segmentation/reassembly engine. One SAR is owned by exactly one
// core instance and one HAL; it is not safe to share across cores.
type SAR struct {
	mu sync.Mutex

	writer Writer
	disp   Dispatcher

	maxControlPacketSize int
	maxLogicalConns      int

	// Control sends are queued separately from data: a data send parked on
	// an empty credit pool must never delay a command.
	controlQueue []*pendingSend
	conns        map[uint8]*connection

	// reassembly state, one buffer per logical direction: control (command/
	// response/notification share a GID|OID identity) and one per CID for
	// data. A fragment whose header disagrees with the buffer in progress
	// terminates reassembly and reports ErrTransport.
	controlBuf *reassembly
	dataBufs   map[uint8]*reassembly

	nextSendID SendID
	writing    bool // a fragment write is currently outstanding
}

type reassembly struct {
	mt      codec.MessageType
	gid     uint8 // GIDOrCID for control, CID for data
	oid     uint8
	payload []byte // backed by a pooled buffer; returned to bufpool on dispatch
}

// New constructs a SAR bound to writer with sane defaults; the core
// narrows maxControlPacketSize / maxLogicalConns once CORE_INIT_RSP is
// parsed.
func New(writer Writer, disp Dispatcher) *SAR {
	return &SAR{
		writer:               writer,
		disp:                 disp,
		maxControlPacketSize: codec.MaxPayloadLength,
		maxLogicalConns:      1,
		conns:                map[uint8]*connection{codec.StaticRFConnID: {cid: codec.StaticRFConnID}},
		dataBufs:             make(map[uint8]*reassembly),
	}
}

// SetMaxControlPacketSize bounds subsequent command/response fragmentation,
// per CORE_INIT_RSP.
func (s *SAR) SetMaxControlPacketSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.maxControlPacketSize = n
	}
}

// SetMaxLogicalConnections records the NFCC's logical-connection limit from
// CORE_INIT_RSP. The SAR stores it but does not check CIDs against it.
func (s *SAR) SetMaxLogicalConnections(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.maxLogicalConns = n
	}
}

func (s *SAR) connLocked(cid uint8) *connection {
	c, ok := s.conns[cid]
	if !ok {
		c = &connection{cid: cid, maxPayloadSize: s.maxControlPacketSize}
		s.conns[cid] = c
	}
	return c
}

// SetInitialCredits seeds cid's credit count at activation.
func (s *SAR) SetInitialCredits(cid uint8, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.connLocked(cid)
	c.credits = n
	s.drainDataLocked(c)
}

// AddCredits applies a CORE_CONN_CREDITS_NTF delta to cid.
func (s *SAR) AddCredits(cid uint8, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.connLocked(cid)
	c.credits += delta
	if c.credits < 0 {
		c.credits = 0
	}
	s.drainDataLocked(c)
}

// Credits reports cid's current credit count.
func (s *SAR) Credits(cid uint8) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connLocked(cid).credits
}

// SendCommand encodes and transmits a control packet, fragmenting it if it
// exceeds maxControlPacketSize. done fires once the final fragment's HAL
// write completes (or immediately with success=false on encode failure).
func (s *SAR) SendCommand(gid, oid uint8, payload []byte, done func(success bool)) (SendID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID()
	ps := &pendingSend{id: id, gid: gid, oid: oid, payload: append([]byte(nil), payload...), done: done}
	s.controlQueue = append(s.controlQueue, ps)
	s.drainLocked()
	return id, nil
}

// SendData encodes and transmits a data packet on cid. Each wire fragment
// consumes one credit; when credits run out mid-payload the remainder is
// parked at the head of the CID's queue until AddCredits/SetInitialCredits
// makes more available. Strict per-CID FIFO ordering is preserved.
func (s *SAR) SendData(cid uint8, payload []byte, done func(success bool)) (SendID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.connLocked(cid)
	id := s.nextID()
	ps := &pendingSend{id: id, cid: cid, isData: true, payload: append([]byte(nil), payload...), done: done}
	c.queue = append(c.queue, ps)
	s.drainDataLocked(c)
	return id, nil
}

// Cancel removes a not-yet-written send from its queue. It is a no-op if
// the send already completed or is not found; a data send with fragments
// already on the wire keeps going (best-effort).
func (s *SAR) Cancel(id SendID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ps := range s.controlQueue {
		if ps.id == id {
			ps.canceled = true
		}
	}
	for _, c := range s.conns {
		for _, ps := range c.queue {
			if ps.id == id {
				ps.canceled = true
			}
		}
	}
}

func (s *SAR) nextID() SendID {
	s.nextSendID++
	return s.nextSendID
}

// drainLocked starts the next eligible write: control sends first (command
// ordering gates the whole state machine), then data per connection. Must
// be called with s.mu held.
func (s *SAR) drainLocked() {
	for !s.writing && len(s.controlQueue) > 0 {
		ps := s.controlQueue[0]
		s.controlQueue = s.controlQueue[1:]
		if ps.canceled {
			continue
		}
		s.writing = true
		go s.writeControl(ps)
		return
	}
	for _, c := range s.conns {
		if s.writing {
			return
		}
		s.drainDataLocked(c)
	}
}

// drainDataLocked writes as many fragments of c's head send as credits and
// the single-writer constraint allow. One credit is reserved per fragment
// before it is handed to the HAL; a payload that outruns the credit pool is
// left at the head of the queue, partially sent, with every written
// fragment carrying PBF=1. Must be called with s.mu held.
func (s *SAR) drainDataLocked(c *connection) {
	for !s.writing && len(c.queue) > 0 {
		ps := c.queue[0]
		if ps.canceled && ps.offset == 0 {
			c.queue = c.queue[1:]
			continue
		}
		if c.credits <= 0 {
			return // parked until credits arrive
		}

		maxSize := s.dataPayloadSizeLocked(c)
		total := fragmentsFor(len(ps.payload)-ps.offset, maxSize)
		n := total
		if n > c.credits {
			n = c.credits
		}
		c.credits -= n

		final := n == total
		start := ps.offset
		if final {
			c.queue = c.queue[1:]
		} else {
			// Non-final fragments are all full-size.
			ps.offset += n * maxSize
		}

		s.writing = true
		go s.writeData(ps, start, n, maxSize, final)
		return
	}
}

func (s *SAR) dataPayloadSizeLocked(c *connection) int {
	size := c.maxPayloadSize
	if size <= 0 {
		size = s.maxControlPacketSize
	}
	if size <= 0 || size > codec.MaxPayloadLength {
		size = codec.MaxPayloadLength
	}
	return size
}

// fragmentsFor reports how many wire fragments remaining payload bytes
// occupy; an empty payload still takes one (empty) fragment.
func fragmentsFor(remaining, maxSize int) int {
	if remaining <= 0 {
		return 1
	}
	return (remaining + maxSize - 1) / maxSize
}

// writeControl splits ps.payload into maxControlPacketSize chunks and
// writes them to the HAL in order, invoking ps.done once the write
// completes.
func (s *SAR) writeControl(ps *pendingSend) {
	s.mu.Lock()
	maxSize := s.maxControlPacketSize
	s.mu.Unlock()
	if maxSize <= 0 || maxSize > codec.MaxPayloadLength {
		maxSize = codec.MaxPayloadLength
	}

	total := fragmentsFor(len(ps.payload), maxSize)
	var encoded [][]byte
	for i := 0; i < total; i++ {
		chunk := fragmentAt(ps.payload, i*maxSize, maxSize)
		last := i == total-1
		frame, err := codec.EncodeControlFragment(codec.MTCommand, ps.gid, ps.oid, chunk, last)
		if err != nil {
			s.finishWrite(ps, false, true)
			return
		}
		encoded = append(encoded, frame)
	}

	s.submit(ps, encoded, true)
}

// writeData encodes n fragments of ps.payload starting at start. final
// marks whether this batch carries the payload's last fragment; when it
// does not, every fragment keeps PBF=1 and the send stays queued.
func (s *SAR) writeData(ps *pendingSend, start, n, maxSize int, final bool) {
	var encoded [][]byte
	for i := 0; i < n; i++ {
		chunk := fragmentAt(ps.payload, start+i*maxSize, maxSize)
		last := final && i == n-1
		frame, err := codec.EncodeDataFragment(ps.cid, chunk, last)
		if err != nil {
			s.finishWrite(ps, false, final)
			return
		}
		encoded = append(encoded, frame)
	}

	s.submit(ps, encoded, final)
}

func (s *SAR) submit(ps *pendingSend, encoded [][]byte, final bool) {
	// The writer calls complete exactly once, failures included, so an
	// error return needs no second finishWrite.
	err := s.writer.Write(encoded, func(success bool) {
		s.finishWrite(ps, success, final)
	})
	if err != nil {
		logger.Debug("sar: HAL write returned error", "error", err)
	}
}

// finishWrite clears the single-writer latch, resumes draining, and fires
// ps.done when the send has finished (successfully on its final batch, or
// with failure at any point). A failed partial send is removed from its
// queue rather than retried: the stream is already torn.
func (s *SAR) finishWrite(ps *pendingSend, success, final bool) {
	s.mu.Lock()
	s.writing = false
	if !success && !final {
		s.removeQueuedLocked(ps)
	}
	s.drainLocked()
	s.mu.Unlock()

	if (final || !success) && ps.done != nil {
		ps.done(success)
	}
	if !success && s.disp.OnError != nil {
		s.disp.OnError(fmt.Errorf("%w: write failed", ErrTransport))
	}
}

func (s *SAR) removeQueuedLocked(ps *pendingSend) {
	c, ok := s.conns[ps.cid]
	if !ok {
		return
	}
	for i, queued := range c.queue {
		if queued == ps {
			c.queue = append(c.queue[:i:i], c.queue[i+1:]...)
			return
		}
	}
}

// fragmentAt returns the payload slice for the fragment starting at off,
// at most maxSize bytes; nil past the end (an empty final fragment).
func fragmentAt(payload []byte, off, maxSize int) []byte {
	if off >= len(payload) {
		return nil
	}
	end := off + maxSize
	if end > len(payload) {
		end = len(payload)
	}
	return payload[off:end]
}

// Read implements hal.Client: it is called by the HAL with each chunk of
// inbound bytes, which may contain a partial header, a partial payload,
// multiple complete fragments, or any combination thereof.
func (s *SAR) Read(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := chunk
	for len(buf) >= codec.HeaderSize {
		h, err := codec.DecodeHeader(buf)
		if err != nil {
			s.reportTransportErrorLocked(err)
			return
		}
		total := codec.HeaderSize + int(h.PayloadLength)
		if len(buf) < total {
			// Read keeps no bytes across calls, so every fragment must
			// arrive whole within one chunk. A chunk that ends inside a
			// fragment is reported as a transport error and the rest of
			// the chunk is dropped.
			s.reportTransportErrorLocked(fmt.Errorf("%w: incomplete fragment in HAL chunk", ErrTransport))
			return
		}

		fragment := buf[codec.HeaderSize:total]
		s.handleFragmentLocked(h, fragment)
		buf = buf[total:]
	}
	if len(buf) != 0 {
		s.reportTransportErrorLocked(fmt.Errorf("%w: trailing partial header", ErrTransport))
	}
}

func (s *SAR) handleFragmentLocked(h codec.Header, fragment []byte) {
	if h.MT == codec.MTData {
		s.handleDataFragmentLocked(h, fragment)
		return
	}
	s.handleControlFragmentLocked(h, fragment)
}

func (s *SAR) handleControlFragmentLocked(h codec.Header, fragment []byte) {
	if s.controlBuf == nil {
		s.controlBuf = &reassembly{
			mt:      h.MT,
			gid:     h.GIDOrCID,
			oid:     h.OIDOrReserved,
			payload: bufpool.Get(s.maxControlPacketSize)[:0],
		}
	} else if s.controlBuf.mt != h.MT || s.controlBuf.gid != h.GIDOrCID || s.controlBuf.oid != h.OIDOrReserved {
		bufpool.Put(s.controlBuf.payload)
		s.controlBuf = nil
		s.reportTransportErrorLocked(fmt.Errorf("%w: mismatched control fragment header", ErrTransport))
		return
	}
	s.controlBuf.payload = append(s.controlBuf.payload, fragment...)

	if h.PBF {
		return // more fragments to come
	}

	complete := s.controlBuf
	s.controlBuf = nil
	s.dispatchControlLocked(complete)
}

func (s *SAR) dispatchControlLocked(r *reassembly) {
	defer bufpool.Put(r.payload)
	switch r.mt {
	case codec.MTResponse:
		if s.disp.OnResponse != nil {
			s.mu.Unlock()
			s.disp.OnResponse(r.gid, r.oid, r.payload)
			s.mu.Lock()
		}
	case codec.MTNotification:
		if s.disp.OnNotification != nil {
			s.mu.Unlock()
			s.disp.OnNotification(r.gid, r.oid, r.payload)
			s.mu.Lock()
		}
	default:
		logger.Debug("sar: dropping unexpected control message type", "mt", r.mt)
	}
}

func (s *SAR) handleDataFragmentLocked(h codec.Header, fragment []byte) {
	cid := h.GIDOrCID
	buf, ok := s.dataBufs[cid]
	if !ok {
		size := s.connLocked(cid).maxPayloadSize
		if size <= 0 {
			size = s.maxControlPacketSize
		}
		buf = &reassembly{mt: codec.MTData, gid: cid, payload: bufpool.Get(size)[:0]}
		s.dataBufs[cid] = buf
	}
	buf.payload = append(buf.payload, fragment...)

	if h.PBF {
		return
	}
	delete(s.dataBufs, cid)
	defer bufpool.Put(buf.payload)

	if s.disp.OnData != nil {
		s.mu.Unlock()
		s.disp.OnData(cid, buf.payload)
		s.mu.Lock()
	}
}

func (s *SAR) reportTransportErrorLocked(err error) {
	s.controlBuf = nil
	s.dataBufs = make(map[uint8]*reassembly)
	if s.disp.OnError != nil {
		s.mu.Unlock()
		s.disp.OnError(err)
		s.mu.Lock()
	}
}
