package resource

import (
	"errors"
	"sync"
)

// ErrClosed is returned when inserting into a closed table.
var ErrClosed = errors.New("resource table closed")

// localBackend is the slice-backed storage with a free list.
type localBackend struct {
	entries  []entry
	freeList []Handle
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value  any
	typeID uint32
	valid  bool
}

func newLocalBackend() *localBackend {
	return &localBackend{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

func (b *localBackend) create(typeID uint32, value any) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	e := entry{typeID: typeID, value: value, valid: true}

	if len(b.freeList) > 0 {
		handle := b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
		b.entries[handle-1] = e
		return handle, nil
	}

	b.entries = append(b.entries, e)
	return Handle(len(b.entries)), nil
}

func (b *localBackend) lookup(handle Handle) (entry, bool) {
	if handle == 0 {
		return entry{}, false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	idx := int(handle - 1)
	if idx >= len(b.entries) || !b.entries[idx].valid {
		return entry{}, false
	}
	return b.entries[idx], true
}

func (b *localBackend) drop(handle Handle) (entry, bool) {
	if handle == 0 {
		return entry{}, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	idx := int(handle - 1)
	if idx >= len(b.entries) || !b.entries[idx].valid {
		return entry{}, false
	}

	e := b.entries[idx]
	b.entries[idx] = entry{}
	b.freeList = append(b.freeList, handle)
	return e, true
}

func (b *localBackend) close() []any {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var live []any
	for i := range b.entries {
		if b.entries[i].valid {
			live = append(live, b.entries[i].value)
		}
	}
	b.entries = nil
	b.freeList = nil
	return live
}

func (b *localBackend) len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, e := range b.entries {
		if e.valid {
			count++
		}
	}
	return count
}
