package core

import (
	"context"
	"io"
)

type JobSource string

const (
	SourceRemote JobSource = "remote"
	SourceLocal  JobSource = "local"
)

// Job is one print request. Payloads arrive as loose JSON from two
// different sources; everything downstream works on this struct only.
type Job struct {
	ID         string    `json:"id"`
	RemoteID   string    `json:"remote_id,omitempty"`
	Label      string    `json:"label"`
	Body       string    `json:"body,omitempty"`
	ImageData  string    `json:"image_data,omitempty"`
	RetryCount int       `json:"retry_count"`
	Source     JobSource `json:"source,omitempty"`
}

type OutcomeStatus string

const (
	OutcomeDelivered OutcomeStatus = "delivered"
	OutcomeQueued    OutcomeStatus = "queued"
	OutcomeDiscarded OutcomeStatus = "discarded"
)

type Outcome struct {
	Status OutcomeStatus
	Err    error
}

// Device is an open connection to the physical printer. Closing it
// flushes any spooled output, so a failed Close means the job did not
// reach paper.
type Device interface {
	io.Writer
	Close() error
}

type DeviceOpener interface {
	Open() (Device, error)
}

// Renderer transmits a job to an already-open device handle.
type Renderer interface {
	Render(dev Device, job *Job) error
}

// Acker marks a remote record as completed after a successful render.
type Acker interface {
	MarkCompleted(ctx context.Context, id string) error
}

// JobQueue is the durable retry queue. The executor is its only writer.
type JobQueue interface {
	Load() ([]Job, error)
	Upsert(job Job) error
	RemoveByID(id string) error
}

// History records terminal job outcomes for the status endpoint.
type History interface {
	RecordCompleted(job Job) error
	RecordDiscarded(job Job, reason string) error
}
