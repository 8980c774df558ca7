package audit

import (
	"context"
	"sync"

	"pollboard/pkg/domain"
)

// InMemorySink keeps events in memory, keyed by poll.
type InMemorySink struct {
	mu     sync.RWMutex
	events map[domain.PollID][]Event
}

func NewInMemorySink() *InMemorySink {
	return &InMemorySink{events: make(map[domain.PollID][]Event)}
}

func (s *InMemorySink) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.PollID] = append(s.events[event.PollID], event)
	return nil
}

// ListByPoll returns the recorded events for one poll.
func (s *InMemorySink) ListByPoll(_ context.Context, pollID domain.PollID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[pollID]...), nil
}
