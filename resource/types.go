package resource

// Handle is an opaque reference to a value in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// EventType is a lifecycle notification kind.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

// Event is a lifecycle notification.
type Event struct {
	Value  any
	Handle Handle
	TypeID uint32
	Type   EventType
}

// Observer receives lifecycle notifications.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is optionally implemented by values that need cleanup when their
// last managed reference is collected.
type Dropper interface {
	Drop()
}
