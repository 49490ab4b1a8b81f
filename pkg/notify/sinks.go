package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisQueue pushes notifications as jobs onto a redis list, which is
// consumed by the notification bot.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue creates a queue sink using the given client. The queue is
// named "{prefix}bot-notifications".
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	return &RedisQueue{
		client: client,
		key:    prefix + "bot-notifications",
	}
}

func (q *RedisQueue) Name() string {
	return "redis"
}

func (q *RedisQueue) Deliver(ctx context.Context, event *Event) error {
	job, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.key, job).Err()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// NATSPublisher publishes notifications on the subject
// "{prefix}.{eventType}".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// ConnectNATS connects to the NATS server with the given URL. An error will
// be returned, if the connection couldn't be established.
func ConnectNATS(url, name, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warnf("disconnected from nats: %s", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("reconnected to nats at %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s failed: %w", url, err)
	}
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

func (p *NATSPublisher) Name() string {
	return "nats"
}

// Subject returns the subject on which events of the given type are
// published.
func (p *NATSPublisher) Subject(eventType EventType) string {
	return p.prefix + "." + string(eventType)
}

func (p *NATSPublisher) Deliver(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = p.conn.Publish(p.Subject(event.Type), data)
	if err != nil {
		return err
	}
	return p.conn.FlushWithContext(ctx)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// LogSink writes notifications to the log.
type LogSink struct{}

func (LogSink) Name() string {
	return "log"
}

func (LogSink) Deliver(_ context.Context, event *Event) error {
	log.WithFields(log.Fields{
		"id":        event.ID,
		"type":      event.Type,
		"receivers": event.Receivers,
	}).Infof("notification: %s", string(event.Data))
	return nil
}

func (LogSink) Close() error {
	return nil
}
