package client

import "sync"

// Loader counts the network operations in progress.  It never goes negative: releases of
// operations started before a Reset are ignored.
type Loader struct {
	mu         sync.Mutex
	count      int
	generation uint64
	onChange   func(busy bool)
}

// NewLoader returns a loader calling onChange, when not nil, each time it turns busy or idle.
func NewLoader(onChange func(busy bool)) *Loader {
	return &Loader{onChange: onChange}
}

// Acquire counts one more operation and returns the func settling it.  Calling release more
// than once has no effect.
func (l *Loader) Acquire() (release func()) {
	l.mu.Lock()
	generation := l.generation
	l.count++
	if l.count == 1 {
		l.notify(true)
	}
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if generation != l.generation || l.count == 0 {
				return
			}
			l.count--
			if l.count == 0 {
				l.notify(false)
			}
		})
	}
}

// Reset forgets every operation in progress.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.generation++
	if l.count > 0 {
		l.count = 0
		l.notify(false)
	}
}

func (l *Loader) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

func (l *Loader) Busy() bool {
	return l.Count() > 0
}

func (l *Loader) notify(busy bool) {
	if l.onChange != nil {
		l.onChange(busy)
	}
}
