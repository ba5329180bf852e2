package position

import (
	"slices"
	"sync"
)

type subscription[T any] struct {
	id int
	fn func(T)
}

// emitter dispatches values to subscribers in registration order. A
// panicking subscriber is reported through onPanic and the rest still run.
type emitter[T any] struct {
	mu      sync.Mutex
	nextID  int
	subs    []subscription[T]
	onPanic func(recovered any)
}

func (e *emitter[T]) subscribe(fn func(T)) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs = append(e.subs, subscription[T]{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.subs = slices.DeleteFunc(e.subs, func(s subscription[T]) bool { return s.id == id })
		})
	}
}

func (e *emitter[T]) emit(v T) {
	e.mu.Lock()
	snapshot := slices.Clone(e.subs)
	e.mu.Unlock()

	for _, s := range snapshot {
		e.call(s.fn, v)
	}
}

func (e *emitter[T]) call(fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil && e.onPanic != nil {
			e.onPanic(r)
		}
	}()
	fn(v)
}

func (e *emitter[T]) len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}
