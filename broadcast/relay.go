package broadcast

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// DefaultChannel is the redis channel broadcasts travel on.
const DefaultChannel = "openclaw:broadcast"

const publishTimeout = 2 * time.Second

// RawBroadcaster accepts pre-encoded Message bytes.
type RawBroadcaster interface {
	BroadcastRaw(data []byte)
}

// Relay shares broadcasts between instances through redis pub/sub. Every
// instance publishes to the channel and Run forwards what arrives to the
// local hub, so each client sees each event once.
type Relay struct {
	rc      *redis.Client
	channel string
	local   RawBroadcaster
	logger  log.FieldLogger
}

func NewRelay(rc *redis.Client, channel string, local RawBroadcaster, logger log.FieldLogger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Relay{rc: rc, channel: channel, local: local, logger: logger}
}

// Broadcast publishes the event. If redis is unavailable it is delivered to
// local clients directly.
func (r *Relay) Broadcast(event string, payload any) {
	data, err := sonic.Marshal(Message{Event: event, Data: payload})
	if err != nil {
		r.logger.WithError(err).WithField("event", event).Error("encode broadcast")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.rc.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.WithError(err).WithField("event", event).Warn("publish broadcast failed, delivering locally")
		r.local.BroadcastRaw(data)
	}
}

// Run forwards channel messages to the local hub until ctx is cancelled,
// resubscribing whenever the subscription drops.
func (r *Relay) Run(ctx context.Context) {
	for {
		sub := r.rc.Subscribe(ctx, r.channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				r.local.BroadcastRaw([]byte(msg.Payload))
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("broadcast channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}
