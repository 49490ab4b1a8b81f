package notify

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// EventType refers to the kind of a notification.
type EventType string

const (
	// NewBlock is emitted, when an assigned slot got resolved.
	NewBlock EventType = "new_block"
	// Alert is a generic alert for the operators of a pool.
	Alert EventType = "alert"
	// NewEpoch is emitted, when the chain entered a new epoch.
	NewEpoch EventType = "new_epoch"
	// EpochSlotsUploaded is emitted, when a slot plan has been submitted.
	EpochSlotsUploaded EventType = "epoch_slots_uploaded"
)

// Receivers is the set of recipients of a notification.
type Receivers struct {
	Pools []string `json:"pools,omitempty"`
	Users []string `json:"users,omitempty"`
	Chats []string `json:"chats,omitempty"`
}

// ToPool returns the receivers consisting of the given pool.
func ToPool(poolIDBech32 string) Receivers {
	return Receivers{Pools: []string{poolIDBech32}}
}

// Event is a notification as it is handed to the sinks.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Receivers Receivers       `json:"receivers"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Emitter accepts typed notifications for fan-out delivery. Emitting is
// fire-and-forget, delivery failures aren't reported back to the caller.
type Emitter interface {
	Emit(ctx context.Context, eventType EventType, receivers Receivers, payload interface{})
}

// Sink delivers notifications to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event *Event) error
	Close() error
}

// Mailer sends operator mails. Sending is fire-and-forget.
type Mailer interface {
	SendMail(subject, htmlBody, source, metadata string)
}
