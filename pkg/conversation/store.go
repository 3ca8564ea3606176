package conversation

import (
	"sync"
	"time"

	"walletchat/pkg/models"

	"github.com/google/uuid"
)

const subscriberBuffer = 100

// Store is the append-only, ordered list of chat turns.
type Store struct {
	mu          sync.RWMutex
	turns       []models.ChatTurn
	subscribers []Subscriber
	now         func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

// Append records a new turn at the end of the conversation and notifies
// subscribers.
func (s *Store) Append(role models.Role, content string) models.ChatTurn {
	turn := models.ChatTurn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}

	// Events go out under the same lock so subscribers see store order.
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	s.notifyLocked(Event{Type: EventTurnAppended, Data: turn})
	return turn
}

// Turns returns a copy of the conversation in send order.
func (s *Store) Turns() []models.ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Last returns the most recent turn.
func (s *Store) Last() (models.ChatTurn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.turns) == 0 {
		return models.ChatTurn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

// Reset drops every turn. Only used on teardown.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.notifyLocked(Event{Type: EventReset})
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (s *Store) Subscribe() Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(Subscriber, subscriberBuffer)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Store) Unsubscribe(ch Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (s *Store) notifyLocked(event Event) {
	for _, sub := range s.subscribers {
		select {
		case sub <- event:
		default:
			// Slow subscribers miss events; Turns() is the source of truth.
		}
	}
}
