package watcher

import (
	"context"
	"strings"
	"sync"

	"walletchat/pkg/models"
)

// DefaultCapacity bounds the samples kept for one address.
const DefaultCapacity = 120

// Watcher keeps the portfolio totals fetched for the connected wallet during
// this session. History belongs to a single address and is dropped when a
// different address records a sample.
type Watcher struct {
	capacity int

	address string
	samples []models.BalanceSample

	subscribers []Subscriber
	mu          sync.RWMutex
}

// NewWatcher creates a Watcher. A capacity <= 0 uses DefaultCapacity.
func NewWatcher(capacity int) *Watcher {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Watcher{capacity: capacity}
}

// Record appends a sample, evicting the oldest when full.
func (w *Watcher) Record(sample models.BalanceSample) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recordLocked(sample)
}

// RecordWhile records sample only if ctx is still live when the lock is held.
// With ctx bound to a wallet connection, a sample either lands before the
// Clear that follows a disconnect or is dropped.
func (w *Watcher) RecordWhile(ctx context.Context, sample models.BalanceSample) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	w.recordLocked(sample)
	return true
}

func (w *Watcher) recordLocked(sample models.BalanceSample) {
	if !strings.EqualFold(w.address, sample.Address) {
		if len(w.samples) > 0 {
			w.notifyLocked(Event{Type: EventHistoryCleared, Data: w.address})
		}
		w.address = sample.Address
		w.samples = nil
	}
	w.samples = append(w.samples, sample)
	if len(w.samples) > w.capacity {
		w.samples = w.samples[len(w.samples)-w.capacity:]
	}
	w.notifyLocked(Event{Type: EventBalanceRecorded, Data: sample})
}

// Clear drops the history, e.g. on disconnect.
func (w *Watcher) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.address == "" && len(w.samples) == 0 {
		return
	}
	prev := w.address
	w.address = ""
	w.samples = nil
	w.notifyLocked(Event{Type: EventHistoryCleared, Data: prev})
}

// Samples returns a copy of the history of address, oldest first.
func (w *Watcher) Samples(address string) []models.BalanceSample {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !strings.EqualFold(w.address, address) {
		return nil
	}
	out := make([]models.BalanceSample, len(w.samples))
	copy(out, w.samples)
	return out
}

// Values returns just the totals of address, ready for plotting.
func (w *Watcher) Values(address string) []float64 {
	samples := w.Samples(address)
	if len(samples) == 0 {
		return nil
	}
	vals := make([]float64, len(samples))
	for i, s := range samples {
		vals[i] = s.TotalValue
	}
	return vals
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (w *Watcher) Subscribe() Subscriber {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(Subscriber, 100)
	w.subscribers = append(w.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (w *Watcher) Unsubscribe(ch Subscriber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, sub := range w.subscribers {
		if sub == ch {
			w.subscribers = append(w.subscribers[:i], w.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (w *Watcher) notifyLocked(event Event) {
	for _, sub := range w.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}
