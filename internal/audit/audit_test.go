package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	log, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, log.Close()) })
	return log
}

func TestAppendAssignsSequence(t *testing.T) {
	log := openTestLog(t)

	first, err := log.Append(Record{Session: "s1", Kind: KindSessionStart})
	require.NoError(t, err)
	second, err := log.Append(Record{Session: "s1", Kind: KindStateChange, State: "RFST_IDLE"})
	require.NoError(t, err)

	assert.Greater(t, second.Seq, first.Seq)
	assert.False(t, first.Time.IsZero())
}

func TestAppendPreservesExplicitTime(t *testing.T) {
	log := openTestLog(t)

	ts := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	rec, err := log.Append(Record{Kind: KindStateChange, Time: ts})
	require.NoError(t, err)
	assert.Equal(t, ts, rec.Time)
}

func TestAllIteratesInSequenceOrder(t *testing.T) {
	log := openTestLog(t)

	kinds := []string{KindSessionStart, KindStateChange, KindActivation, KindDataPacket}
	for _, k := range kinds {
		_, err := log.Append(Record{Session: "s1", Kind: k})
		require.NoError(t, err)
	}

	var got []string
	var lastSeq uint64
	err := log.All(func(rec Record) error {
		got = append(got, rec.Kind)
		if len(got) > 1 {
			assert.Greater(t, rec.Seq, lastSeq)
		}
		lastSeq = rec.Seq
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, kinds, got)
}

func TestRangeBounds(t *testing.T) {
	log := openTestLog(t)

	var seqs []uint64
	for range 5 {
		rec, err := log.Append(Record{Kind: KindStateChange})
		require.NoError(t, err)
		seqs = append(seqs, rec.Seq)
	}

	var got []uint64
	err := log.Range(seqs[1], seqs[4], func(rec Record) error {
		got = append(got, rec.Seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, seqs[1:4], got)
}

func TestRangeStopsOnError(t *testing.T) {
	log := openTestLog(t)

	for range 3 {
		_, err := log.Append(Record{Kind: KindStateChange})
		require.NoError(t, err)
	}

	var count int
	err := log.All(func(Record) error {
		count++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, count)
}

func TestDetailRoundTrips(t *testing.T) {
	log := openTestLog(t)

	_, err := log.Append(Record{
		Session: "s1",
		Kind:    KindActivation,
		Detail:  map[string]any{"rf_interface": "0x02", "fsc": 256},
	})
	require.NoError(t, err)

	var got Record
	require.NoError(t, log.All(func(rec Record) error {
		got = rec
		return nil
	}))
	assert.Equal(t, "0x02", got.Detail["rf_interface"])
	// JSON numbers decode as float64.
	assert.Equal(t, float64(256), got.Detail["fsc"])
}
