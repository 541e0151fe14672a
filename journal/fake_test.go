package journal_test

import (
	"context"
	"sync"
	"time"

	"github.com/jacentio/quill/journal"
)

// memBackend is an in-memory journal.Backend honoring the same conditions
// the real backends enforce.
type memBackend struct {
	mu       sync.Mutex
	counters map[journal.Owner]journal.SequenceCounter
	entries  map[journal.Key]journal.Entry
	balances map[journal.Owner]int64

	// failInsert, when set, is returned by InsertEntry before any write.
	failInsert error
}

func newMemBackend() *memBackend {
	return &memBackend{
		counters: make(map[journal.Owner]journal.SequenceCounter),
		entries:  make(map[journal.Key]journal.Entry),
		balances: make(map[journal.Owner]int64),
	}
}

func (m *memBackend) PutCounter(_ context.Context, c *journal.SequenceCounter, rent int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.counters[c.Owner]; ok {
		return journal.ErrAlreadyExists
	}
	if m.balances[c.Owner] < rent {
		return journal.ErrAllocationFailed
	}
	m.balances[c.Owner] -= rent
	m.counters[c.Owner] = *c
	return nil
}

func (m *memBackend) GetCounter(_ context.Context, owner journal.Owner) (*journal.SequenceCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counters[owner]
	if !ok {
		return nil, journal.ErrCounterNotFound
	}
	return &c, nil
}

func (m *memBackend) InsertEntry(_ context.Context, prev uint64, e *journal.Entry, rent int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		return m.failInsert
	}
	c, ok := m.counters[e.Owner]
	if !ok || c.Count != prev {
		return journal.ErrConcurrentModification
	}
	if _, ok := m.entries[e.Key()]; ok {
		return journal.ErrAlreadyExists
	}
	if m.balances[e.Owner] < rent {
		return journal.ErrAllocationFailed
	}
	m.balances[e.Owner] -= rent
	c.Count = e.ID
	m.counters[e.Owner] = c
	stored := *e
	stored.Version = 1
	m.entries[e.Key()] = stored
	return nil
}

func (m *memBackend) GetEntry(_ context.Context, key journal.Key) (*journal.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, journal.ErrNotFound
	}
	return &e, nil
}

func (m *memBackend) UpdateEntry(_ context.Context, e *journal.Entry, expected uint64, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.entries[e.Key()]
	if !ok {
		return journal.ErrNotFound
	}
	if cur.Version != expected || cur.Owner != e.Owner {
		return journal.ErrConcurrentModification
	}
	if delta > 0 && m.balances[e.Owner] < delta {
		return journal.ErrAllocationFailed
	}
	m.balances[e.Owner] -= delta
	cur.Title = e.Title
	cur.Content = e.Content
	cur.UpdatedAt = e.UpdatedAt
	cur.Version = expected + 1
	m.entries[e.Key()] = cur
	return nil
}

func (m *memBackend) DeleteEntry(_ context.Context, key journal.Key, expected uint64, refund int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.entries[key]
	if !ok {
		return journal.ErrNotFound
	}
	if cur.Version != expected {
		return journal.ErrConcurrentModification
	}
	delete(m.entries, key)
	m.balances[key.Owner] += refund
	return nil
}

func (m *memBackend) Balance(_ context.Context, owner journal.Owner) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[owner], nil
}

func (m *memBackend) Deposit(_ context.Context, owner journal.Owner, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[owner] += amount
	return m.balances[owner], nil
}

// stepClock returns a fixed time that can be advanced.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
