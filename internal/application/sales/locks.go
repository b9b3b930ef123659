package sales

import (
	"sync"

	"github.com/google/uuid"
)

// billLocks serializes mutations of one bill. Entries are dropped once unused.
type billLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*billLock
}

type billLock struct {
	mu   sync.Mutex
	refs int
}

func newBillLocks() *billLocks {
	return &billLocks{locks: make(map[uuid.UUID]*billLock)}
}

// lock blocks until the bill is free and returns the unlock function
func (l *billLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	bl, ok := l.locks[id]
	if !ok {
		bl = &billLock{}
		l.locks[id] = bl
	}
	bl.refs++
	l.mu.Unlock()

	bl.mu.Lock()
	return func() {
		bl.mu.Unlock()
		l.mu.Lock()
		bl.refs--
		if bl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *billLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
