package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quiz-battle-service/internal/domain"
)

type chanBroker struct {
	mu       sync.Mutex
	ch       chan domain.Event
	releases int
}

func newChanBroker() *chanBroker {
	return &chanBroker{ch: make(chan domain.Event, 4)}
}

func (b *chanBroker) Publish(_ context.Context, e domain.Event) error {
	b.ch <- e
	return nil
}

func (b *chanBroker) Listen(string) (<-chan domain.Event, func()) {
	var once sync.Once
	return b.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			b.releases++
			b.mu.Unlock()
		})
	}
}

func TestSubscriptionReconcilesPeriodically(t *testing.T) {
	broker := newChanBroker()
	channel := NewSyncChannel(broker, 10*time.Millisecond)

	var loads atomic.Int32
	load := func(context.Context, string) (domain.BattleSnapshot, error) {
		loads.Add(1)
		return domain.BattleSnapshot{Battle: domain.Battle{ID: "b1"}}, nil
	}
	reconciled := make(chan struct{}, 16)
	events := make(chan domain.Event, 1)
	sub := channel.Subscribe(context.Background(), "b1", load,
		func(e domain.Event) { events <- e },
		func(domain.BattleSnapshot) {
			select {
			case reconciled <- struct{}{}:
			default:
			}
		})

	for i := 0; i < 3; i++ {
		select {
		case <-reconciled:
		case <-time.After(time.Second):
			t.Fatalf("reconcile %d did not happen", i)
		}
	}

	if err := channel.Publish(context.Background(), domain.Event{Type: domain.EventScoreChanged, BattleID: "b1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case e := <-events:
		if e.Type != domain.EventScoreChanged {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered")
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
	select {
	case <-sub.Done():
	default:
		t.Fatalf("subscription still running")
	}
	if broker.releases != 1 {
		t.Fatalf("expected one release, got %d", broker.releases)
	}

	after := loads.Load()
	time.Sleep(30 * time.Millisecond)
	if loads.Load() != after {
		t.Fatalf("reconcile continued after unsubscribe")
	}
}

func TestSubscriptionStopsWithContext(t *testing.T) {
	broker := newChanBroker()
	channel := NewSyncChannel(broker, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	sub := channel.Subscribe(ctx, "b1", func(context.Context, string) (domain.BattleSnapshot, error) {
		return domain.BattleSnapshot{}, nil
	}, nil, nil)

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatalf("subscription did not stop")
	}
	if broker.releases != 1 {
		t.Fatalf("expected listener released, got %d", broker.releases)
	}
}
