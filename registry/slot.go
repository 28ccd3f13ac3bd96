package registry

import (
	"sync"
	"sync/atomic"
)

// Slot holds one lazily created resource (an execution queue, a library context, ...).
//
// The value is created at most once, by the first successful call to GetOrCreate. A failed creation
// leaves the Slot empty, so a later call can retry. Once set, the value is read without locking.
//
// The zero value is an empty Slot ready to use. It must not be copied after first use.
type Slot[T any] struct {
	mu    sync.Mutex
	ready atomic.Bool
	value T
}

// Get returns the value and true if the Slot was already initialized.
func (s *Slot[T]) Get() (value T, ok bool) {
	if !s.ready.Load() {
		return
	}
	return s.value, true
}

// GetOrCreate returns the value of the Slot, calling create to initialize it if needed.
//
// Concurrent callers on an empty Slot are serialized: create is called by only one of them, and all
// receive the same value. If create fails, its error is returned only to the caller that triggered it
// and the Slot stays empty.
func (s *Slot[T]) GetOrCreate(create func() (T, error)) (T, error) {
	if s.ready.Load() {
		return s.value, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready.Load() {
		return s.value, nil
	}
	value, err := create()
	if err != nil {
		var zero T
		return zero, err
	}
	s.value = value
	s.ready.Store(true)
	return value, nil
}

// release calls fn on the value, if the Slot is initialized. The Slot keeps the value: it is only
// used at teardown.
func (s *Slot[T]) release(fn func(T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready.Load() {
		return nil
	}
	return fn(s.value)
}
