package chat

import "sync"

// convLocks hands out one mutex per conversation id so concurrent chats
// on the same conversation serialize while unrelated conversations run
// freely. Entries are reference counted and dropped once unused, so the
// registry does not grow with conversation count.
type convLocks struct {
	mu    sync.Mutex
	locks map[string]*convLock
}

type convLock struct {
	mu   sync.Mutex
	refs int
}

func newConvLocks() *convLocks {
	return &convLocks{locks: make(map[string]*convLock)}
}

// acquire blocks until the conversation's lock is held and returns the
// release function.
func (c *convLocks) acquire(id string) func() {
	c.mu.Lock()
	entry, ok := c.locks[id]
	if !ok {
		entry = &convLock{}
		c.locks[id] = entry
	}
	entry.refs++
	c.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		c.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(c.locks, id)
		}
		c.mu.Unlock()
	}
}
