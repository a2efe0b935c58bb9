package memory

import (
	"context"
	"sync"

	"quiz-battle-service/internal/domain"
)

const listenerBuffer = 8

// Broker fans battle events out to in-process listeners. A slow listener
// loses its oldest pending event rather than blocking the publisher.
type Broker struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string]map[int]chan domain.Event
}

func NewBroker() *Broker {
	return &Broker{listeners: make(map[string]map[int]chan domain.Event)}
}

func (b *Broker) Publish(_ context.Context, event domain.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.listeners[event.BattleID] {
		deliver(ch, event)
	}
	return nil
}

func (b *Broker) Listen(battleID string) (<-chan domain.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan domain.Event, listenerBuffer)
	if b.listeners[battleID] == nil {
		b.listeners[battleID] = make(map[int]chan domain.Event)
	}
	b.listeners[battleID][id] = ch

	var once sync.Once
	release := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners[battleID], id)
			if len(b.listeners[battleID]) == 0 {
				delete(b.listeners, battleID)
			}
			close(ch)
		})
	}
	return ch, release
}

// Listeners reports how many listeners follow battleID.
func (b *Broker) Listeners(battleID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[battleID])
}

// deliver must be called with the broker lock held, which keeps the channel
// open for the duration of the send.
func deliver(ch chan domain.Event, event domain.Event) {
	for {
		select {
		case ch <- event:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
