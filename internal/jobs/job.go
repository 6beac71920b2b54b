package jobs

import "time"

// Status is the lifecycle state of a job
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"

	// StatusNotFound is only ever reported for ids that were never registered
	StatusNotFound Status = "not_found"
)

// Progress checkpoints written by the worker, in order
const (
	ProgressQueued      = 0
	ProgressStarted     = 10
	ProgressTranscribed = 60
	ProgressMerged      = 90
	ProgressDone        = 100
)

// Job is the status record of one transcription request
type Job struct {
	ID             string    `json:"-"`
	Status         Status    `json:"status"`
	Progress       int       `json:"progress"`
	ResultFilename string    `json:"result_filename,omitempty"`
	Text           string    `json:"text,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"-"`
}

// IsTerminal reports whether no further transitions are allowed
func (j Job) IsTerminal() bool {
	return j.Status == StatusDone || j.Status == StatusError
}

// NotFound is the sentinel record returned for unknown ids
func NotFound(id string) Job {
	return Job{ID: id, Status: StatusNotFound, Progress: 0}
}
