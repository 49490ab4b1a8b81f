package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Dispatcher is an Emitter, which distributes every event over all its
// sinks. Each delivery runs in its own goroutine and is bounded by a
// timeout.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	wg      sync.WaitGroup
	lock    sync.Mutex
	closed  bool
}

// NewDispatcher creates a new dispatcher for the given sinks.
func NewDispatcher(timeout time.Duration, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		sinks:   sinks,
		timeout: timeout,
	}
}

func (d *Dispatcher) Emit(ctx context.Context, eventType EventType, receivers Receivers, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("encoding the payload of the %s notification failed: %s", eventType, err.Error())
		return
	}
	event := &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Receivers: receivers,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		log.Warnf("dropping the %s notification %s, the dispatcher is closed", eventType, event.ID)
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, sink := range d.sinks {
		d.wg.Add(1)
		go d.push(ctx, sink, event)
	}
}

// push is delivering the event to the given sink.
func (d *Dispatcher) push(ctx context.Context, sink Sink, event *Event) {
	defer d.wg.Done()
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := sink.Deliver(ctx, event)
	if err != nil {
		deliveryCounter.WithLabelValues(sink.Name(), "failure").Inc()
		log.Errorf("delivering the %s notification %s to %s failed: %s", event.Type, event.ID,
			sink.Name(), err.Error())
		return
	}
	deliveryCounter.WithLabelValues(sink.Name(), "success").Inc()
}

// Close waits for all pending deliveries and closes the sinks afterwards.
// Events emitted after closing are dropped.
func (d *Dispatcher) Close() error {
	d.lock.Lock()
	d.closed = true
	d.lock.Unlock()
	d.wg.Wait()
	var errs []error
	for _, sink := range d.sinks {
		errs = append(errs, sink.Close())
	}
	return errors.Join(errs...)
}
