package model

import "time"

// JobKind selects the source adapter a job runs against.
type JobKind string

const (
	KindSEC  JobKind = "sec"
	KindFDIC JobKind = "fdic"
)

// JobState is a node in the job lifecycle state machine.
type JobState string

const (
	StateQueued     JobState = "queued"
	StateProcessing JobState = "processing"
	StateCompleted  JobState = "completed"
	StateFailed     JobState = "failed"
	StateCancelled  JobState = "cancelled"
)

// Terminal reports whether the state is final and immutable.
func (s JobState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// JobParams carries the entity selection for a job. Ticker is set for SEC
// jobs, Certs for FDIC jobs.
type JobParams struct {
	Ticker string   `json:"ticker,omitempty"`
	Certs  []string `json:"certs,omitempty"`
}

// Artifact is an immutable serialized workbook plus its download filename.
// The byte slice is never mutated after creation; concurrent readers share it.
type Artifact struct {
	Data     []byte
	Filename string
}

// JobStatus is the consistent snapshot a poller observes: state, progress,
// and the terminal error cause are always read together.
type JobStatus struct {
	ID        string    `json:"id"`
	Kind      JobKind   `json:"kind"`
	State     JobState  `json:"state"`
	Progress  string    `json:"progress,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
