package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() *Event {
	return &Event{
		ID:        "5b0c6f5e-3f3c-4d5c-9f57-9a1f6a3c1f00",
		Type:      NewBlock,
		Receivers: ToPool("pool1abc"),
		Data:      json.RawMessage(`{"slot":100}`),
		CreatedAt: time.Date(2022, 7, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRedisQueue_Deliver(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	queue := NewRedisQueue(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "sp:")
	defer queue.Close()
	require.NoError(t, queue.Deliver(context.Background(), testEvent()))

	jobs, err := mr.List("sp:bot-notifications")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	var job Event
	require.NoError(t, json.Unmarshal([]byte(jobs[0]), &job))
	assert.Equal(t, NewBlock, job.Type)
	assert.Equal(t, []string{"pool1abc"}, job.Receivers.Pools)
	assert.JSONEq(t, `{"slot":100}`, string(job.Data))
}

func runNATSServer(t *testing.T) *server.Server {
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func TestNATSPublisher_Deliver(t *testing.T) {
	ns := runNATSServer(t)

	sub, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer sub.Close()
	messages := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe("stakepool.new_block", messages)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	publisher, err := ConnectNATS(ns.ClientURL(), "test", "stakepool")
	require.NoError(t, err)
	defer publisher.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, publisher.Deliver(ctx, testEvent()))

	select {
	case msg := <-messages:
		var event Event
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.Equal(t, testEvent().ID, event.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}
