package portprosync

import "time"

type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerCron   Trigger = "cron"
	TriggerPoller Trigger = "poller"
)

// Summary is the JSON body returned by the trigger routes and kept in Redis
// as the last run.
type Summary struct {
	Success      bool      `json:"success"`
	RunID        string    `json:"runId"`
	Trigger      Trigger   `json:"trigger"`
	Total        int       `json:"total"`
	Synced       int       `json:"synced"`
	Updated      int       `json:"updated"`
	Unchanged    int       `json:"unchanged"`
	Skipped      int       `json:"skipped"`
	Errors       int       `json:"errors"`
	ErrorDetails []string  `json:"errorDetails,omitempty"`
	Converted    int       `json:"quotesConverted,omitempty"`
	HasMore      bool      `json:"hasMore"`
	NextSkip     int       `json:"nextSkip"`
	Pages        int       `json:"pages"`
	StartedAt    time.Time `json:"startedAt"`
	DurationMs   int64     `json:"durationMs"`
	Error        string    `json:"error,omitempty"`
}

func (s *Summary) addError(msg string, limit int) {
	s.Errors++
	if len(s.ErrorDetails) < limit {
		s.ErrorDetails = append(s.ErrorDetails, msg)
	}
}
