// Package job defines the queued unit of offline garden work and the
// lifecycle events the queue emits while replaying it on-chain.
package job

import (
	"encoding/json"
	"time"
)

// Kind identifies which processor handles a job.
type Kind string

const (
	// KindWork is a garden work submission awaiting attestation.
	KindWork Kind = "work"

	// KindApproval is an operator approval of a previously submitted work.
	KindApproval Kind = "approval"
)

// Status enumerates the lifecycle states persisted with a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusRetrying   Status = "retrying"
	StatusFailed     Status = "failed"
)

// Job is a durably queued user action taken while offline.
//
// ID is unique and stable for the job's lifetime. Attempts only ever
// increases. Synced flips false to true exactly once, on successful
// on-chain confirmation, and is terminal.
type Job struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Meta      map[string]any  `json:"meta,omitempty"`
	Sender    string          `json:"sender,omitempty"`
	ChainID   int64           `json:"chain_id,omitempty"`
	Status    Status          `json:"status"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error,omitempty"`
	Synced    bool            `json:"synced"`
	TxHash    string          `json:"tx_hash,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Terminal reports whether the job has reached a final state.
func (j Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Filter narrows Store.List results. Zero values match everything.
type Filter struct {
	Kind   Kind
	Status Status
	Sender string
	// Synced filters on the synced flag when non-nil.
	Synced *bool
}

// Matches reports whether the job satisfies every set field of the filter.
func (f Filter) Matches(j Job) bool {
	if f.Kind != "" && j.Kind != f.Kind {
		return false
	}
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	if f.Sender != "" && j.Sender != f.Sender {
		return false
	}
	if f.Synced != nil && j.Synced != *f.Synced {
		return false
	}
	return true
}

// Attachment is a binary blob (typically an image) associated with a job,
// addressable independently of the job record.
type Attachment struct {
	JobID       string `json:"job_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data,omitempty"`
}

// Stats is the read-only queue summary exposed to consumers.
type Stats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
	Synced  int `json:"synced"`
}

// Bool is a convenience for building Filter.Synced values.
func Bool(b bool) *bool { return &b }
