package messages

import "time"

// TopicLoadSynced carries one message per load written by a sync run.
const TopicLoadSynced = "load.synced"

type LoadSynced struct {
	RunID           string    `json:"run_id"`
	LoadID          uint64    `json:"load_id"`
	TrackingNumber  string    `json:"tracking_number"`
	ContainerNumber string    `json:"container_number"`
	Status          string    `json:"status"`
	Created         bool      `json:"created"`
	EventCount      int       `json:"event_count"`
	SyncedAt        time.Time `json:"synced_at"`
}
