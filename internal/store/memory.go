package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/iliyamo/movie-tracker/internal/model"
)

// Op names a Collection operation for failure injection.
type Op string

const (
	OpAdd    Op = "add"
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpDelete Op = "delete"
)

// Memory is an in-process Collection.  Documents keep insertion order and
// receive uuid keys.  It backs tests and STORE_DRIVER=memory.
type Memory struct {
	mu    sync.Mutex
	order []string
	docs  map[string]model.Movie
	fail  map[Op]error
	calls map[Op]int
}

// NewMemory returns an empty Memory collection.
func NewMemory() *Memory {
	return &Memory{
		docs:  map[string]model.Movie{},
		fail:  map[Op]error{},
		calls: map[Op]int{},
	}
}

// FailOn makes every later call of op return err.  A nil err clears it.
func (m *Memory) FailOn(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, op)
		return
	}
	m.fail[op] = err
}

// Calls reports how many times op was invoked, failed calls included.
func (m *Memory) Calls(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *Memory) enter(ctx context.Context, op Op) error {
	m.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.fail[op]
}

func (m *Memory) Add(ctx context.Context, mv model.Movie) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, OpAdd); err != nil {
		return "", err
	}
	id := uuid.NewString()
	mv.ID = ""
	m.docs[id] = mv
	m.order = append(m.order, id)
	return id, nil
}

func (m *Memory) Get(ctx context.Context) ([]model.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, OpGet); err != nil {
		return nil, err
	}
	out := make([]model.Movie, 0, len(m.order))
	for _, id := range m.order {
		mv := m.docs[id]
		mv.ID = id
		out = append(out, mv)
	}
	return out, nil
}

func (m *Memory) Set(ctx context.Context, id string, mv model.Movie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, OpSet); err != nil {
		return err
	}
	if id == "" {
		return ErrInvalidID
	}
	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	mv.ID = ""
	m.docs[id] = mv
	return nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(ctx, OpDelete); err != nil {
		return err
	}
	if id == "" {
		return ErrInvalidID
	}
	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	delete(m.docs, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// MemoryBackend keeps one Memory collection per owner.
type MemoryBackend struct {
	mu   sync.Mutex
	cols map[uint64]*Memory
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{cols: map[uint64]*Memory{}}
}

func (b *MemoryBackend) ForOwner(ownerID uint64) Collection {
	return b.Memory(ownerID)
}

// Memory returns the concrete collection for ownerID, creating it.
func (b *MemoryBackend) Memory(ownerID uint64) *Memory {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.cols[ownerID]
	if !ok {
		c = NewMemory()
		b.cols[ownerID] = c
	}
	return c
}
