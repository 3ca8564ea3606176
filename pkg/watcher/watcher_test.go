package watcher

import (
	"context"
	"testing"
	"time"

	"walletchat/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	addrA = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
	addrB = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"
)

func sample(addr string, v float64) models.BalanceSample {
	return models.BalanceSample{Address: addr, TotalValue: v, At: time.Unix(1700000000, 0)}
}

func TestNewWatcher(t *testing.T) {
	w := NewWatcher(0)
	assert.NotNil(t, w)
	assert.Equal(t, DefaultCapacity, w.capacity)
	assert.Nil(t, w.Values(addrA))
}

func TestSubscribeUnsubscribe(t *testing.T) {
	w := NewWatcher(10)
	sub := w.Subscribe()
	assert.NotNil(t, sub)

	w.mu.RLock()
	assert.Equal(t, 1, len(w.subscribers))
	w.mu.RUnlock()

	w.Unsubscribe(sub)
	w.mu.RLock()
	assert.Equal(t, 0, len(w.subscribers))
	w.mu.RUnlock()

	_, ok := <-sub
	assert.False(t, ok, "channel should be closed")
}

func TestRecord(t *testing.T) {
	w := NewWatcher(10)
	sub := w.Subscribe()
	defer w.Unsubscribe(sub)

	w.Record(sample(addrA, 100))
	w.Record(sample(addrA, 120.5))

	assert.Equal(t, []float64{100, 120.5}, w.Values(addrA))

	select {
	case event := <-sub:
		assert.Equal(t, EventBalanceRecorded, event.Type)
		s, ok := event.Data.(models.BalanceSample)
		require.True(t, ok)
		assert.Equal(t, 100.0, s.TotalValue)
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
	}
}

func TestRecord_AddressIsCaseInsensitive(t *testing.T) {
	w := NewWatcher(10)
	w.Record(sample(addrA, 1))
	assert.Equal(t, []float64{1}, w.Values(addrA))
	assert.Len(t, w.Samples("0xab5801a7d398351b8be11c439e05c5b3259aec9b"), 1)
}

func TestRecord_NewAddressResetsHistory(t *testing.T) {
	w := NewWatcher(10)
	sub := w.Subscribe()
	defer w.Unsubscribe(sub)

	w.Record(sample(addrA, 1))
	w.Record(sample(addrB, 2))

	assert.Nil(t, w.Values(addrA))
	assert.Equal(t, []float64{2}, w.Values(addrB))

	var types []EventType
	for i := 0; i < 3; i++ {
		types = append(types, (<-sub).Type)
	}
	assert.Equal(t, []EventType{EventBalanceRecorded, EventHistoryCleared, EventBalanceRecorded}, types)
}

func TestRecord_Capacity(t *testing.T) {
	w := NewWatcher(3)
	for i := 1; i <= 5; i++ {
		w.Record(sample(addrA, float64(i)))
	}
	assert.Equal(t, []float64{3, 4, 5}, w.Values(addrA))
}

func TestClear(t *testing.T) {
	w := NewWatcher(10)
	w.Record(sample(addrA, 1))
	w.Clear()
	assert.Nil(t, w.Values(addrA))

	sub := w.Subscribe()
	defer w.Unsubscribe(sub)
	w.Clear()
	select {
	case <-sub:
		t.Fatal("clearing an empty history should not notify")
	default:
	}
}

func TestRecordWhile(t *testing.T) {
	w := NewWatcher(10)
	ctx, cancel := context.WithCancel(context.Background())

	assert.True(t, w.RecordWhile(ctx, sample(addrA, 1)))
	cancel()
	assert.False(t, w.RecordWhile(ctx, sample(addrA, 2)))
	assert.Equal(t, []float64{1}, w.Values(addrA))

	w.Clear()
	assert.False(t, w.RecordWhile(ctx, sample(addrA, 3)))
	assert.Nil(t, w.Values(addrA), "a cancelled connection must not repopulate a cleared history")
}
