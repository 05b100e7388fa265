package watcher

import "time"

// EventType is the kind of settled file system change.
type EventType int

const (
	// EventAdded is emitted when a new file has stopped changing.
	EventAdded EventType = iota
	// EventModified is emitted when an existing file has stopped changing.
	EventModified
	// EventRemoved is emitted when a file is deleted or renamed away.
	EventRemoved
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventModified:
		return "modified"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a file system change reported after the settle delay.
type Event struct {
	Type    EventType
	Path    string
	Size    int64     // zero for removals
	ModTime time.Time // zero for removals
}
