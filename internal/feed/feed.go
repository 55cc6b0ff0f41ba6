// Package feed fans values out to subscribers without ever blocking the sender.
package feed

import "sync"

// Buffer is the per-subscriber channel capacity.
const Buffer = 16

type Feed[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
}

func New[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[int]chan T)}
}

// Subscribe returns a channel receiving every value sent from now on and a
// function closing it.
func (f *Feed[T]) Subscribe() (<-chan T, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan T, Buffer)
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs, id)
			close(ch)
		})
	}
}

// Send delivers v to every subscriber. A subscriber that fell Buffer values
// behind loses its oldest value. Returns the number of values dropped.
func (f *Feed[T]) Send(v T) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	dropped := 0
	for _, ch := range f.subs {
		for {
			select {
			case ch <- v:
			default:
				select {
				case <-ch:
					dropped++
				default:
				}
				continue
			}
			break
		}
	}
	return dropped
}
