package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	name   string
	err    error
	lock   sync.Mutex
	events []*Event
	closed bool
}

func (s *recordingSink) Name() string {
	return s.name
}

func (s *recordingSink) Deliver(_ context.Context, event *Event) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func TestDispatcher_FansOutToAllSinks(t *testing.T) {
	first := &recordingSink{name: "first"}
	failing := &recordingSink{name: "failing", err: errors.New("unreachable")}
	dispatcher := NewDispatcher(time.Second, first, failing)

	payload := map[string]interface{}{"slot": 100, "status": "minted"}
	dispatcher.Emit(context.Background(), NewBlock, ToPool("pool1abc"), payload)
	require.NoError(t, dispatcher.Close())

	require.Len(t, first.events, 1)
	require.Len(t, failing.events, 1)
	event := first.events[0]
	assert.Equal(t, NewBlock, event.Type)
	assert.Equal(t, []string{"pool1abc"}, event.Receivers.Pools)
	assert.NotEmpty(t, event.ID)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(event.Data, &data))
	assert.Equal(t, "minted", data["status"])
	assert.True(t, first.closed)
	assert.True(t, failing.closed)
}

func TestDispatcher_DropsEventsAfterClose(t *testing.T) {
	sink := &recordingSink{name: "sink"}
	dispatcher := NewDispatcher(time.Second, sink)
	require.NoError(t, dispatcher.Close())
	dispatcher.Emit(context.Background(), Alert, Receivers{Users: []string{"u1"}}, "late")
	assert.Empty(t, sink.events)
}

func TestDispatcher_IgnoresCanceledContext(t *testing.T) {
	sink := &recordingSink{name: "sink"}
	dispatcher := NewDispatcher(time.Second, sink)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dispatcher.Emit(ctx, NewEpoch, Receivers{}, map[string]int{"epoch": 362})
	require.NoError(t, dispatcher.Close())
	assert.Len(t, sink.events, 1)
}
