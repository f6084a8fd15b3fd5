package keylock

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
)

// Map serializes work per key. Each key gets a weight-1 semaphore, so a
// conversation runs at most one turn at a time while unrelated conversations
// proceed in parallel.
type Map struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*entry
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

func NewMap() *Map {
	return &Map{locks: make(map[uuid.UUID]*entry)}
}

// TryAcquire takes the key's lock without blocking. It returns ErrSessionBusy
// when another holder is active. The returned release func is safe to call
// exactly once and must run on every exit path.
func (m *Map) TryAcquire(key uuid.UUID) (func(), error) {
	e := m.retain(key)
	if !e.sem.TryAcquire(1) {
		m.release(key)
		return nil, pkgerrors.ErrSessionBusy
	}
	return m.releaser(key, e), nil
}

// Acquire blocks until the key's lock is available or ctx is done.
func (m *Map) Acquire(ctx context.Context, key uuid.UUID) (func(), error) {
	e := m.retain(key)
	if err := e.sem.Acquire(ctx, 1); err != nil {
		m.release(key)
		return nil, err
	}
	return m.releaser(key, e), nil
}

func (m *Map) retain(key uuid.UUID) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		m.locks[key] = e
	}
	e.refs++
	return e
}

func (m *Map) release(key uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.locks[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(m.locks, key)
	}
}

func (m *Map) releaser(key uuid.UUID, e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			m.release(key)
		})
	}
}
