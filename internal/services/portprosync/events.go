package portprosync

import (
	"strings"
	"time"

	"github.com/abakymuk/nsl-sub001/internal/integrations/portpro"
	"github.com/abakymuk/nsl-sub001/internal/models"
)

var stopTypes = map[string]string{
	"PULLCONTAINER":   models.EventTypePickup,
	"HOOKCONTAINER":   models.EventTypeHook,
	"DROPCONTAINER":   models.EventTypeDrop,
	"DELIVERLOAD":     models.EventTypeDeliver,
	"RETURNCONTAINER": models.EventTypeReturn,
}

var completedStatuses = map[string]struct{}{
	"COMPLETED": {},
	"COMPLETE":  {},
	"DONE":      {},
	"FINISHED":  {},
}

// FlattenEvents turns driver orders into the flat event timeline of a load:
// per order one move_started marker (stop 0) followed by its stops 1..N.
// An order without stops gets one stop built from the order itself.
func FlattenEvents(orders []portpro.DriverOrder) []models.TrackingEvent {
	var out []models.TrackingEvent
	for i, o := range orders {
		move := i + 1
		if o.MoveNumber != nil && *o.MoveNumber > 0 {
			move = *o.MoveNumber
		}

		start := eventFrom(o.Waypoint, move, 0)
		start.EventType = models.EventTypeMoveStarted
		out = append(out, start)

		stops := o.Stops
		if len(stops) == 0 {
			stops = []portpro.Waypoint{o.Waypoint}
		}
		for j, w := range stops {
			out = append(out, eventFrom(w, move, j+1))
		}
	}
	return out
}

func eventFrom(w portpro.Waypoint, move, stop int) models.TrackingEvent {
	return models.TrackingEvent{
		MoveNumber:   move,
		StopNumber:   stop,
		EventType:    MapStopType(w.Type),
		EventTypeRaw: w.Type,
		Status:       eventStatus(w),
		Location:     FormatLocation(w.Location),
		ArrivedAt:    w.Arrived,
		DepartedAt:   w.Departed,
		Duration:     stopDuration(w),
		Source:       models.EventSourcePortPro,
	}
}

// MapStopType maps PortPro stop codes to event types; unknown codes are
// lower-cased as is.
func MapStopType(raw string) string {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if key == "" {
		return models.EventTypeStop
	}
	if t, ok := stopTypes[key]; ok {
		return t
	}
	return strings.ToLower(key)
}

func eventStatus(w portpro.Waypoint) models.EventStatus {
	if w.Completed {
		return models.EventStatusCompleted
	}
	if _, ok := completedStatuses[strings.ToUpper(strings.TrimSpace(w.Status))]; ok {
		return models.EventStatusCompleted
	}
	if w.Arrived != nil {
		return models.EventStatusInProgress
	}
	return models.EventStatusPending
}

func stopDuration(w portpro.Waypoint) *time.Duration {
	if w.Arrived != nil && w.Departed != nil && !w.Departed.Before(*w.Arrived) {
		d := w.Departed.Sub(*w.Arrived)
		return &d
	}
	if w.DurationMinutes != nil && *w.DurationMinutes >= 0 {
		d := time.Duration(*w.DurationMinutes) * time.Minute
		return &d
	}
	return nil
}
