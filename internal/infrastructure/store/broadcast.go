package store

import (
	"context"
	"sync"
)

const subscriberBuffer = 64

// broadcaster fans changes out to in-process subscribers. A subscriber that
// falls behind by more than subscriberBuffer events loses the overflow.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[chan Change]struct{}
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan Change]struct{})}
}

func (b *broadcaster) subscribe(ctx context.Context) (<-chan Change, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	ch := make(chan Change, subscriberBuffer)
	b.subs[ch] = struct{}{}
	go func() {
		<-ctx.Done()
		b.remove(ch)
	}()
	return ch, nil
}

func (b *broadcaster) remove(ch chan Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

func (b *broadcaster) publish(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- Change{Key: key}:
		default:
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
