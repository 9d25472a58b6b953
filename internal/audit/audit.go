// Package audit is an embedded append-only event log for the NCI
// controller: state transitions, activations, timeouts and inbound data
// are persisted to a BadgerDB keyed by a monotonically increasing sequence
// number, so a target activation that scrolled past the live log stream can
// still be examined after the fact.
package audit

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Record kinds written by the controller observer.
const (
	KindSessionStart   = "session_start"
	KindStateChange    = "state_change"
	KindNextState      = "next_state"
	KindActivation     = "activation"
	KindDataPacket     = "data_packet"
	KindCommandTimeout = "command_timeout"
)

// Record is one audit entry. Seq is assigned by Append; everything else is
// provided by the caller.
type Record struct {
	Seq     uint64         `json:"seq"`
	Time    time.Time      `json:"time"`
	Session string         `json:"session"`
	Kind    string         `json:"kind"`
	State   string         `json:"state,omitempty"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// Options configures Open.
type Options struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the log in memory, for tests.
	InMemory bool
}

var recordPrefix = []byte("rec/")

// Log is an append-only audit log over a BadgerDB. Safe for concurrent use.
type Log struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens (creating if needed) the audit database at opts.Path.
func Open(opts Options) (*Log, error) {
	bopts := badger.DefaultOptions(opts.Path).
		WithInMemory(opts.InMemory).
		WithLogger(nil)
	if opts.InMemory {
		bopts.Dir = ""
		bopts.ValueDir = ""
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("audit: opening database at %q: %w", opts.Path, err)
	}

	seq, err := db.GetSequence([]byte("seq/records"), 128)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: acquiring sequence: %w", err)
	}

	return &Log{db: db, seq: seq}, nil
}

// Close releases the sequence and closes the database. Unused sequence
// numbers are returned so a reopened log continues close to where it left
// off.
func (l *Log) Close() error {
	if err := l.seq.Release(); err != nil {
		l.db.Close()
		return fmt.Errorf("audit: releasing sequence: %w", err)
	}
	return l.db.Close()
}

// Append assigns rec the next sequence number and persists it. The stored
// record (with Seq and, if unset, Time populated) is returned.
func (l *Log) Append(rec Record) (Record, error) {
	n, err := l.seq.Next()
	if err != nil {
		return Record{}, fmt.Errorf("audit: next sequence: %w", err)
	}
	rec.Seq = n
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}

	val, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("audit: encoding record: %w", err)
	}

	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(n), val)
	})
	if err != nil {
		return Record{}, fmt.Errorf("audit: writing record %d: %w", n, err)
	}
	return rec, nil
}

// Range calls fn for every record with from <= Seq < to, in sequence order.
// Iteration stops early if fn returns an error, which is returned.
func (l *Log) Range(from, to uint64, fn func(Record) error) error {
	return l.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.Prefix = recordPrefix
		it := txn.NewIterator(iopts)
		defer it.Close()

		for it.Seek(recordKey(from)); it.Valid(); it.Next() {
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("audit: decoding record at %x: %w", it.Item().Key(), err)
			}
			if rec.Seq >= to {
				return nil
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// All calls fn for every record in sequence order.
func (l *Log) All(fn func(Record) error) error {
	return l.Range(0, ^uint64(0), fn)
}

func recordKey(seq uint64) []byte {
	key := make([]byte, len(recordPrefix)+8)
	copy(key, recordPrefix)
	binary.BigEndian.PutUint64(key[len(recordPrefix):], seq)
	return key
}
