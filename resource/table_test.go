package resource

import (
	"testing"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

type dropCounter struct {
	drops int
}

func (d *dropCounter) Drop() { d.drops++ }

func TestTable_Basic(t *testing.T) {
	table := NewTable()

	h := table.Insert(1, "test")
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, ok := table.Get(h)
	if !ok || val != "test" {
		t.Fatalf("Get = %v, %v", val, ok)
	}

	if _, ok := table.GetTyped(h, 1); !ok {
		t.Fatal("GetTyped with correct type failed")
	}
	if _, ok := table.GetTyped(h, 2); ok {
		t.Fatal("GetTyped with wrong type should fail")
	}

	val, ok = table.Remove(h)
	if !ok || val != "test" {
		t.Fatalf("Remove = %v, %v", val, ok)
	}
	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}
	if _, ok := table.Remove(h); ok {
		t.Fatal("second Remove must fail")
	}
	if _, ok := table.Get(0); ok {
		t.Fatal("handle 0 is invalid")
	}
}

func TestTable_HandleReuse(t *testing.T) {
	table := NewTable()
	h1 := table.Insert(1, "a")
	table.Remove(h1)
	h2 := table.Insert(1, "b")
	if h2 != h1 {
		t.Errorf("expected freed handle %d to be reused, got %d", h1, h2)
	}
	if v, _ := table.Get(h2); v != "b" {
		t.Errorf("reused handle returned %v", v)
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	h := table.Insert(7, 42)
	table.Remove(h)

	if len(obs.events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(obs.events))
	}
	if obs.events[0].Type != EventCreated || obs.events[1].Type != EventDropped {
		t.Errorf("event order = %v", obs.events)
	}
	if obs.events[1].TypeID != 7 {
		t.Errorf("TypeID = %d", obs.events[1].TypeID)
	}
}

func TestTable_DropperAndClose(t *testing.T) {
	table := NewTable()
	a, b := &dropCounter{}, &dropCounter{}
	ha := table.Insert(1, a)
	table.Insert(1, b)

	table.Remove(ha)
	if a.drops != 1 {
		t.Fatalf("Remove should call Drop once, got %d", a.drops)
	}

	if err := table.Close(); err != nil {
		t.Fatal(err)
	}
	if b.drops != 1 {
		t.Fatalf("Close should drop live values, got %d", b.drops)
	}
	if table.Insert(1, "late") != 0 {
		t.Fatal("Insert after Close must return 0")
	}
}
