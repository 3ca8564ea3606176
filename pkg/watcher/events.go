package watcher

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventBalanceRecorded EventType = "balance_recorded"
	EventHistoryCleared  EventType = "history_cleared"
)

// Event represents a balance history event.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
