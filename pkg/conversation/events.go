package conversation

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventTurnAppended EventType = "turn_appended"
	EventReset        EventType = "reset"
)

// Event carries a store change. Data is the appended models.ChatTurn for
// EventTurnAppended and nil for EventReset.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
