package routing

import "sync"

// CursorStore holds the persistent round-robin position per ring group id.
// It is the only shared mutable state in the decision core: entries are
// created on first use, advanced under the mutex exactly once per admitted
// routing attempt, and reset only by explicit operator action.
type CursorStore struct {
	mu      sync.Mutex
	cursors map[int64]int
}

// NewCursorStore creates an empty cursor store.
func NewCursorStore() *CursorStore {
	return &CursorStore{cursors: make(map[int64]int)}
}

// Next returns the current cursor value for the group and advances it by
// one. The fetch-and-increment is atomic under the mutex, so concurrent
// routing attempts to the same group observe pairwise distinct, consecutive
// values.
func (c *CursorStore) Next(groupID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.cursors[groupID]
	c.cursors[groupID] = v + 1
	return v
}

// Peek returns the current cursor value without advancing. Used for preview
// planning so that repeated plan generation does not skew rotation.
func (c *CursorStore) Peek(groupID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursors[groupID]
}

// Reset clears the cursor for a group. Exposed for operator action only.
func (c *CursorStore) Reset(groupID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cursors, groupID)
}

// Positions returns a copy of all cursor positions, for metrics.
func (c *CursorStore) Positions() map[int64]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int64]int, len(c.cursors))
	for id, v := range c.cursors {
		out[id] = v
	}
	return out
}
