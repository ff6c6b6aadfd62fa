package state

import (
	"sort"
	"sync"
)

// broadcaster fans a value out to subscribers. Callbacks run on the
// publishing goroutine, in subscription order.
type broadcaster[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]func(T)
}

func (b *broadcaster[T]) subscribe(fn func(T)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[int]func(T))
	}
	id := b.next
	b.next++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *broadcaster[T]) publish(v T) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.subs[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
