package gateway

import (
	"context"
	"encoding/json"
	"log"

	goredis "github.com/go-redis/redis/v8"
)

// Channel is the Redis PubSub channel carrying watchlist updates.
const Channel = "watchlist:indicators"

// RedisPubSub is the subset of the Redis client used for fan-out.
type RedisPubSub interface {
	Publish(ctx context.Context, channel string, v any) error
	Subscribe(ctx context.Context, channel string) *goredis.PubSub
}

// PubSubRouter publishes updates to Redis and routes every update seen on
// the channel, including its own, to the hub. Processes sharing a Redis
// instance therefore push the same updates to all their clients.
type PubSubRouter struct {
	hub *Hub
	rdb RedisPubSub
}

// NewPubSubRouter creates a PubSubRouter feeding hub.
func NewPubSubRouter(hub *Hub, rdb RedisPubSub) *PubSubRouter {
	return &PubSubRouter{hub: hub, rdb: rdb}
}

// Publish sends u to the shared channel.
func (r *PubSubRouter) Publish(ctx context.Context, u Update) error {
	return r.rdb.Publish(ctx, Channel, u)
}

// Run subscribes to the channel and broadcasts each update. Blocks until
// ctx is cancelled.
func (r *PubSubRouter) Run(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, Channel)
	defer pubsub.Close()

	log.Printf("[gateway] subscribed to %s", Channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var u Update
			if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
				log.Printf("[gateway] bad payload on %s: %v", msg.Channel, err)
				continue
			}
			r.hub.Broadcaster.Broadcast(u)
		}
	}
}
