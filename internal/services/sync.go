package services

import (
	"context"
	"sync"
	"time"
)

// keyedMutex hands out one mutex per session id and forgets it once nobody
// holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*refMutex{}}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refMutex{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// debouncer tracks the latest fetch per session. Tokens come from one
// counter so a token is never reused after its key is forgotten.
type debouncer struct {
	mu     sync.Mutex
	next   uint64
	latest map[string]uint64
}

func newDebouncer() *debouncer {
	return &debouncer{latest: map[string]uint64{}}
}

// begin registers a new fetch for key, superseding any pending one.
func (d *debouncer) begin(key string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	d.latest[key] = d.next
	return d.next
}

func (d *debouncer) current(key string, token uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latest[key] == token
}

// wait blocks for the quiet period and reports whether token is still the
// latest afterwards.
func (d *debouncer) wait(ctx context.Context, key string, token uint64, quiet time.Duration) (bool, error) {
	if quiet > 0 {
		timer := time.NewTimer(quiet)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
	return d.current(key, token), nil
}

func (d *debouncer) finish(key string, token uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.latest[key] == token {
		delete(d.latest, key)
	}
}

// inflight is a set of session ids with a running save.
type inflight struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{ids: map[string]struct{}{}}
}

func (f *inflight) acquire(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.ids[id]; busy {
		return false
	}
	f.ids[id] = struct{}{}
	return true
}

func (f *inflight) busy(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.ids[id]
	return ok
}

func (f *inflight) release(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ids, id)
}
