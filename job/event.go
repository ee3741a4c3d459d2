package job

import "time"

// EventType tags a queue lifecycle event.
type EventType string

const (
	EventAdded      EventType = "job_added"
	EventProcessing EventType = "job_processing"
	EventCompleted  EventType = "job_completed"
	EventFailed     EventType = "job_failed"
	EventRetrying   EventType = "job_retrying"
)

// Event is delivered to subscribers on every job state transition.
// Exactly one EventAdded is emitted per successful enqueue; EventCompleted
// carries the confirmed transaction hash.
type Event struct {
	Type   EventType `json:"type"`
	JobID  string    `json:"job_id"`
	Job    *Job      `json:"job,omitempty"`
	TxHash string    `json:"tx_hash,omitempty"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}
