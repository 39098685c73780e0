package query

import "time"

// Status is the lifecycle state of a cache entry.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Entry is a read-only snapshot of a cache entry.
type Entry struct {
	Key       Key
	Status    Status
	Data      any
	Err       error
	UpdatedAt time.Time
	Stale     bool
	Fetching  bool
}

// EventType describes what happened to an entry.
type EventType string

const (
	EventUpdated     EventType = "updated"
	EventInvalidated EventType = "invalidated"
	EventRemoved     EventType = "removed"
)

// Event is delivered to subscribers on every entry state change.
type Event struct {
	Type     EventType
	Key      Key
	Status   Status
	Stale    bool
	Fetching bool
	Err      error
	At       time.Time
}

type entry struct {
	key       Key
	status    Status
	data      any
	err       error
	updatedAt time.Time
	stale     bool
	call      *call
	usedAt    time.Time
}

// state is the restorable part of an entry.
type state struct {
	status    Status
	data      any
	err       error
	updatedAt time.Time
	stale     bool
}

func (e *entry) state() state {
	return state{status: e.status, data: e.data, err: e.err, updatedAt: e.updatedAt, stale: e.stale}
}

func (e *entry) restore(s state) {
	e.status = s.status
	e.data = s.data
	e.err = s.err
	e.updatedAt = s.updatedAt
	e.stale = s.stale
}

func (e *entry) snapshot() Entry {
	return Entry{
		Key:       e.key.clone(),
		Status:    e.status,
		Data:      e.data,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
		Stale:     e.stale,
		Fetching:  e.call != nil,
	}
}
