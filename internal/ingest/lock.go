package ingest

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrBusy indicates another ingest for the same project is already in
// progress.
var ErrBusy = errors.New("ingest already in progress for this project")

// projectLock provides non-blocking lock semantics using atomic
// operations.
type projectLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

func (l *projectLock) tryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

func (l *projectLock) release() {
	l.state.Store(0)
}

// lockTable hands out one lock per project ID.
type lockTable struct {
	mu    sync.Mutex
	locks map[int64]*projectLock
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[int64]*projectLock)}
}

// acquire takes the project's lock without blocking. It returns a
// release function, or ErrBusy when the project is already being
// ingested.
func (t *lockTable) acquire(projectID int64) (func(), error) {
	t.mu.Lock()
	l, ok := t.locks[projectID]
	if !ok {
		l = &projectLock{}
		t.locks[projectID] = l
	}
	t.mu.Unlock()

	if !l.tryAcquire() {
		return nil, ErrBusy
	}
	return l.release, nil
}
