package session

import "sync"

// UserQueue serializes event handling per user: two updates from the same
// user (a double tap) never interleave their session reads and writes, while
// different users proceed concurrently. This replaces the original design's
// unprotected shared state.
type UserQueue struct {
	mu    sync.Mutex
	lanes map[int64]*lane
}

type lane struct {
	pending []func()
	running bool
}

// NewUserQueue returns an empty queue.
func NewUserQueue() *UserQueue {
	return &UserQueue{lanes: make(map[int64]*lane)}
}

// Do runs fn after every previously enqueued function for the same user has
// finished, and blocks until fn itself returns.
func (q *UserQueue) Do(userID int64, fn func()) {
	done := make(chan struct{})

	q.mu.Lock()
	ln, ok := q.lanes[userID]
	if !ok {
		ln = &lane{}
		q.lanes[userID] = ln
	}
	ln.pending = append(ln.pending, func() {
		defer close(done)
		fn()
	})
	if !ln.running {
		ln.running = true
		go q.drain(userID, ln)
	}
	q.mu.Unlock()

	<-done
}

// drain executes queued functions in order until the lane is empty, then
// removes it.
func (q *UserQueue) drain(userID int64, ln *lane) {
	for {
		q.mu.Lock()
		if len(ln.pending) == 0 {
			ln.running = false
			delete(q.lanes, userID)
			q.mu.Unlock()
			return
		}
		next := ln.pending[0]
		ln.pending = ln.pending[1:]
		q.mu.Unlock()

		next()
	}
}
