package models

import "time"

// ChartAction names a chart mutation.
type ChartAction string

const (
	ChartCreated ChartAction = "created"
	ChartUpdated ChartAction = "updated"
	ChartDeleted ChartAction = "deleted"
)

// ChartEvent is published after a chart mutation succeeded.
// Source is the id of the dashboard instance that performed it.
type ChartEvent struct {
	ID      string      `json:"id"`
	Source  string      `json:"source"`
	Action  ChartAction `json:"action"`
	ChartID int         `json:"chartId,omitempty"`
	Title   string      `json:"title,omitempty"`
	At      time.Time   `json:"at"`
}

// ToastVariant selects how a notification is displayed.
type ToastVariant string

const (
	ToastDefault     ToastVariant = "default"
	ToastDestructive ToastVariant = "destructive"
)

// Toast is a transient user notification.
type Toast struct {
	Variant     ToastVariant `json:"variant"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
}
