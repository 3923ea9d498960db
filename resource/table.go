package resource

import (
	"sync"
)

// Table maps handles to Go values with type IDs and observers.
type Table struct {
	backend   *localBackend
	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{backend: newLocalBackend()}
}

// Insert adds a value and returns its handle, or 0 when the table is closed.
func (t *Table) Insert(typeID uint32, value any) Handle {
	handle, err := t.backend.create(typeID, value)
	if err != nil {
		return 0
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
	})
	return handle
}

// Get retrieves a value by handle.
func (t *Table) Get(handle Handle) (any, bool) {
	e, ok := t.backend.lookup(handle)
	return e.value, ok
}

// GetTyped retrieves a value only if it was inserted with typeID.
func (t *Table) GetTyped(handle Handle, typeID uint32) (any, bool) {
	e, ok := t.backend.lookup(handle)
	if !ok || e.typeID != typeID {
		return nil, false
	}
	return e.value, true
}

// Remove drops an entry, calling Drop on Dropper values.
func (t *Table) Remove(handle Handle) (any, bool) {
	e, ok := t.backend.drop(handle)
	if !ok {
		return nil, false
	}

	if d, ok := e.value.(Dropper); ok {
		d.Drop()
	}

	t.notify(Event{
		Type:   EventDropped,
		Handle: handle,
		TypeID: e.typeID,
		Value:  e.value,
	})
	return e.value, true
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	return t.backend.len()
}

// Close drops every live entry and rejects further inserts.
func (t *Table) Close() error {
	for _, v := range t.backend.close() {
		if d, ok := v.(Dropper); ok {
			d.Drop()
		}
	}
	return nil
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
