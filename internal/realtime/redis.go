package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultChannel = "taskwise:realtime"

type envelope struct {
	UserID string          `json:"user_id"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// RedisBroadcaster relays events through a Redis pub/sub channel so that
// every instance behind a load balancer reaches its own connections.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
	local   *Hub
	log     logrus.FieldLogger
}

func NewRedisBroadcaster(client *redis.Client, channel string, local *Hub, log logrus.FieldLogger) *RedisBroadcaster {
	return &RedisBroadcaster{
		client:  client,
		channel: channel,
		local:   local,
		log:     log.WithField("component", "realtime-redis"),
	}
}

// Publish sends the event to the channel. When Redis is unreachable the
// event is still delivered to this instance's connections.
func (b *RedisBroadcaster) Publish(userID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.WithError(err).WithField("event", event).Error("Failed to marshal realtime payload")
		return
	}
	msg, err := json.Marshal(envelope{UserID: userID, Event: event, Data: data})
	if err != nil {
		b.log.WithError(err).Error("Failed to marshal realtime envelope")
		return
	}

	if err := b.client.Publish(context.Background(), b.channel, msg).Err(); err != nil {
		b.log.WithError(err).WithField("event", event).Warn("Redis publish failed, delivering locally")
		b.local.Publish(userID, event, json.RawMessage(data))
	}
}

// Run forwards channel messages to the local hub until ctx is cancelled
func (b *RedisBroadcaster) Run(ctx context.Context) error {
	return b.run(ctx, nil)
}

// NewRetryBackOff never gives up; the subscriber lives as long as the process.
func NewRetryBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}

// Serve keeps the subscription alive until ctx is cancelled. Every failure of
// Run, including Redis being down at start-up, is retried with bo, which is
// reset once a subscription succeeds.
func (b *RedisBroadcaster) Serve(ctx context.Context, bo backoff.BackOff) error {
	op := func() error {
		err := b.run(ctx, bo.Reset)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			err = errors.New("subscription closed")
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		b.log.WithError(err).WithField("retry_in", wait.String()).Warn("Realtime subscriber failed, retrying")
	}
	return backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify)
}

func (b *RedisBroadcaster) run(ctx context.Context, subscribed func()) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.log.WithField("channel", b.channel).Info("Subscribed to realtime channel")
	if subscribed != nil {
		subscribed()
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.WithError(err).Warn("Discarding malformed realtime message")
				continue
			}
			b.local.Publish(env.UserID, env.Event, env.Data)
		}
	}
}
