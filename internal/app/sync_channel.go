package app

import (
	"context"
	"log"
	"sync"
	"time"

	"quiz-battle-service/internal/domain"
)

// Broker fans battle events out to listeners. Delivery is best-effort and
// unordered.
type Broker interface {
	Publish(ctx context.Context, event domain.Event) error
	// Listen returns a channel of events for the battle and a release function
	// that closes it. Release must be safe to call more than once.
	Listen(battleID string) (<-chan domain.Event, func())
}

// SnapshotFunc reads the authoritative state of a battle.
type SnapshotFunc func(ctx context.Context, battleID string) (domain.BattleSnapshot, error)

const defaultReconcileInterval = 5 * time.Second

// SyncChannel pairs push events with periodic reconciliation pulls. Pushed
// events only say "something changed"; the snapshot is the truth.
type SyncChannel struct {
	broker   Broker
	interval time.Duration
}

func NewSyncChannel(broker Broker, reconcileInterval time.Duration) *SyncChannel {
	if reconcileInterval <= 0 {
		reconcileInterval = defaultReconcileInterval
	}
	return &SyncChannel{broker: broker, interval: reconcileInterval}
}

// Publish broadcasts a state-change hint to the battle's subscribers.
func (c *SyncChannel) Publish(ctx context.Context, event domain.Event) error {
	return c.broker.Publish(ctx, event)
}

// Subscribe starts delivering events for battleID to onEvent. onReconcile is
// called with a fresh snapshot right away and then every reconcile interval.
// Callbacks run on a single goroutine owned by the subscription.
func (c *SyncChannel) Subscribe(ctx context.Context, battleID string, load SnapshotFunc, onEvent func(domain.Event), onReconcile func(domain.BattleSnapshot)) *Subscription {
	events, release := c.broker.Listen(battleID)
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		battleID: battleID,
		cancel:   cancel,
		release:  release,
		done:     make(chan struct{}),
	}
	go sub.run(ctx, events, load, onEvent, onReconcile, c.interval)
	return sub
}

// Subscription is a live registration on a battle feed.
type Subscription struct {
	battleID string
	cancel   context.CancelFunc
	release  func()
	once     sync.Once
	done     chan struct{}
}

// BattleID returns the battle this subscription follows.
func (s *Subscription) BattleID() string {
	return s.battleID
}

// Done is closed once the subscription has stopped delivering callbacks.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Unsubscribe stops the subscription and waits for in-flight callbacks. It is
// safe to call more than once but must not be called from inside a callback.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		s.release()
	})
	<-s.done
}

func (s *Subscription) run(ctx context.Context, events <-chan domain.Event, load SnapshotFunc, onEvent func(domain.Event), onReconcile func(domain.BattleSnapshot), interval time.Duration) {
	defer close(s.done)
	defer s.release()

	reconcile := func() {
		if onReconcile == nil {
			return
		}
		snapshot, err := load(ctx, s.battleID)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("reconcile battle %s: %v", s.battleID, err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		onReconcile(snapshot)
	}

	reconcile()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if onEvent != nil {
				onEvent(event)
			}
		case <-ticker.C:
			reconcile()
		}
	}
}
