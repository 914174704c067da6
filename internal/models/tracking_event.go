package models

import "time"

type EventStatus string

const (
	EventStatusPending    EventStatus = "pending"
	EventStatusInProgress EventStatus = "in_progress"
	EventStatusCompleted  EventStatus = "completed"
)

// Типы событий трекинга.
const (
	EventTypeMoveStarted = "move_started"
	EventTypePickup      = "pickup"
	EventTypeHook        = "hook"
	EventTypeDrop        = "drop"
	EventTypeDeliver     = "deliver"
	EventTypeReturn      = "return"
	// EventTypeStop is used when PortPro sends a stop without a type.
	EventTypeStop = "stop"
)

// EventSourcePortPro marks events regenerated by the sync. Only these are
// replaced on a sync pass.
const EventSourcePortPro = "portpro"

// TrackingEvent is either a move-start marker (StopNumber == 0) or a stop
// inside a move. Events are ordered by (MoveNumber, StopNumber).
type TrackingEvent struct {
	ID           uint64
	LoadID       uint64
	MoveNumber   int
	StopNumber   int
	EventType    string
	EventTypeRaw string
	Status       EventStatus
	Location     *string
	ArrivedAt    *time.Time
	DepartedAt   *time.Time
	Duration     *time.Duration
	Source       string
	CreatedAt    time.Time
}

func (e *TrackingEvent) IsMoveStart() bool {
	return e.StopNumber == 0
}
