package nci

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalSubscribeOrderAndUnsubscribe(t *testing.T) {
	var sig signal[int]
	var got []string

	idA := SubscriptionID(1)
	idB := SubscriptionID(2)
	idC := SubscriptionID(3)
	sig.subscribe(idA, func(int) { got = append(got, "a") })
	sig.subscribe(idB, func(int) { got = append(got, "b") })
	sig.subscribe(idC, func(int) { got = append(got, "c") })

	sig.emit(1)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	require.True(t, sig.unsubscribe(idB))
	require.False(t, sig.unsubscribe(idB)) // already gone

	got = nil
	sig.emit(2)
	assert.Equal(t, []string{"a", "c"}, got)
}

func TestSignalUnsubscribeDuringEmissionAffectsOnlyNextEmission(t *testing.T) {
	var sig signal[int]
	var got []string
	var idSelf SubscriptionID

	idSelf = SubscriptionID(2)
	sig.subscribe(SubscriptionID(1), func(int) { got = append(got, "a") })
	sig.subscribe(idSelf, func(int) {
		got = append(got, "b")
		sig.unsubscribe(idSelf)
	})
	sig.subscribe(SubscriptionID(3), func(int) { got = append(got, "c") })

	sig.emit(1)
	assert.Equal(t, []string{"a", "b", "c"}, got, "unsubscribe mid-emission must not skip siblings")

	got = nil
	sig.emit(2)
	assert.Equal(t, []string{"a", "c"}, got, "unsubscribe must be honored on the next emission")
}

func TestSignalEmitIsSafeForConcurrentSubscribe(t *testing.T) {
	var sig signal[int]
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sig.subscribe(SubscriptionID(i+1), func(int) {})
		}(i)
	}
	wg.Wait()
	sig.emit(1) // must not race or panic
}

func TestEventBusAllocIDIsUniqueAndMonotonic(t *testing.T) {
	var bus eventBus
	ids := make(map[SubscriptionID]bool)
	var last SubscriptionID
	for i := 0; i < 10; i++ {
		id := bus.allocID()
		assert.False(t, ids[id])
		ids[id] = true
		assert.Greater(t, id, last)
		last = id
	}
}
