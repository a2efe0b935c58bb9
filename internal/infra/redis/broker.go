package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/infra/memory"
)

const eventChannelPattern = "battle:*:events"

// Broker publishes battle events on Redis pub/sub so every service instance
// sees them, and fans received events out to local listeners.
type Broker struct {
	client *redis.Client
	local  *memory.Broker

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

func NewBroker(client *redis.Client) *Broker {
	return &Broker{client: client, local: memory.NewBroker()}
}

func (b *Broker) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.client.Publish(ctx, eventChannel(event.BattleID), payload).Err()
}

func (b *Broker) Listen(battleID string) (<-chan domain.Event, func()) {
	return b.local.Listen(battleID)
}

// Start subscribes to all battle channels and forwards messages until ctx is
// done or Close is called. It returns once the subscription is confirmed.
func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return fmt.Errorf("broker already started")
	}

	pubsub := b.client.PSubscribe(ctx, eventChannelPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", eventChannelPattern, err)
	}
	b.pubsub = pubsub
	b.done = make(chan struct{})
	go b.forward(ctx, pubsub, b.done)
	return nil
}

// Close stops forwarding and waits for the forwarder to exit.
func (b *Broker) Close() error {
	b.mu.Lock()
	pubsub, done := b.pubsub, b.done
	b.pubsub = nil
	b.mu.Unlock()
	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}

func (b *Broker) forward(ctx context.Context, pubsub *redis.PubSub, done chan struct{}) {
	defer close(done)
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("drop malformed event on %s: %v", msg.Channel, err)
				continue
			}
			if event.BattleID == "" {
				event.BattleID = battleFromChannel(msg.Channel)
			}
			_ = b.local.Publish(ctx, event)
		}
	}
}

func eventChannel(battleID string) string {
	return "battle:" + battleID + ":events"
}

func battleFromChannel(channel string) string {
	return strings.TrimSuffix(strings.TrimPrefix(channel, "battle:"), ":events")
}
