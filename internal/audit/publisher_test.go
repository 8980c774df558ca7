package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollboard/pkg/domain"
	"pollboard/pkg/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEvent(pollID domain.PollID, action Action) Event {
	return Event{
		Action:    action,
		PollID:    pollID,
		ActorID:   testutil.NewUserID(),
		RequestID: "req-1",
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSyncEmitAppendsInline(t *testing.T) {
	sink := NewInMemorySink()
	publisher := NewPublisher(sink, discardLogger())
	pollID := domain.NewPollID()

	publisher.Emit(context.Background(), newEvent(pollID, ActionPollCreated))
	publisher.Emit(context.Background(), newEvent(pollID, ActionVoteCast))

	events, err := sink.ListByPoll(context.Background(), pollID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionPollCreated, events[0].Action)
	assert.Equal(t, ActionVoteCast, events[1].Action)
}

func TestSyncEmitSwallowsSinkErrors(t *testing.T) {
	publisher := NewPublisher(failingSink{}, discardLogger())

	// Must not panic or propagate.
	publisher.Emit(context.Background(), newEvent(domain.NewPollID(), ActionPollCreated))
}

func TestAsyncEmitDeliversThroughWorker(t *testing.T) {
	sink := NewInMemorySink()
	publisher := NewPublisher(sink, discardLogger(), WithAsyncBuffer(16))
	pollID := domain.NewPollID()

	for i := 0; i < 5; i++ {
		publisher.Emit(context.Background(), newEvent(pollID, ActionVoteCast))
	}
	publisher.Close()

	events, err := sink.ListByPoll(context.Background(), pollID)
	require.NoError(t, err)
	assert.Len(t, events, 5, "close drains the buffer before returning")
}

func TestAsyncEmitDropsWhenBufferIsFull(t *testing.T) {
	blocker := &blockingSink{release: make(chan struct{})}
	publisher := NewPublisher(blocker, discardLogger(), WithAsyncBuffer(1))
	pollID := domain.NewPollID()

	// First event occupies the worker, second fills the buffer, the rest drop.
	for i := 0; i < 10; i++ {
		publisher.Emit(context.Background(), newEvent(pollID, ActionVoteCast))
	}
	close(blocker.release)
	publisher.Close()

	assert.LessOrEqual(t, blocker.count(), 3)
	assert.GreaterOrEqual(t, blocker.count(), 1)
}

func TestCloseIsIdempotent(t *testing.T) {
	publisher := NewPublisher(NewInMemorySink(), discardLogger(), WithAsyncBuffer(4))
	publisher.Close()
	publisher.Close()
}

type failingSink struct{}

func (failingSink) Append(context.Context, Event) error {
	return errors.New("sink down")
}

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	n       int
}

func (s *blockingSink) Append(_ context.Context, _ Event) error {
	<-s.release
	s.mu.Lock()
	s.n++
	s.mu.Unlock()
	return nil
}

func (s *blockingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}
