// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"time"

	"github.com/google/uuid"
)

// JobKind identifies the background operation a job tracks.
type JobKind string

const (
	JobImportBib   JobKind = "import_bib"
	JobFindPDF     JobKind = "find_pdf"
	JobDownloadPDF JobKind = "download_pdf"
	JobExtractText JobKind = "extract_text"
	JobSummarize   JobKind = "summarize"
	JobBuildGraph  JobKind = "build_graph"
)

// ParseJobKind validates a stored kind string.
func ParseJobKind(s string) (JobKind, bool) {
	switch JobKind(s) {
	case JobImportBib, JobFindPDF, JobDownloadPDF, JobExtractText, JobSummarize, JobBuildGraph:
		return JobKind(s), true
	}
	return "", false
}

// JobStatus is the job state machine:
// pending -> running -> {completed, failed, cancelled}.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are valid.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Job is one tracked background operation. Timestamps are monotone:
// CreatedAt <= StartedAt <= FinishedAt, each of the latter set at most once.
type Job struct {
	ID         string     `json:"id"`
	Kind       JobKind    `json:"kind"`
	Citekey    string     `json:"citekey,omitempty"`
	Status     JobStatus  `json:"status"`
	Progress   int        `json:"progress"`
	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewJob returns a pending job with a fresh id.
func NewJob(kind JobKind, citekey string) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Citekey:   citekey,
		Status:    JobPending,
		CreatedAt: time.Now().UTC(),
	}
}

// JobUpdate is the progress notification emitted to the consumer layer on
// every state transition and progress change.
type JobUpdate struct {
	JobID    string    `json:"id"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	Source   string    `json:"source,omitempty"`
	Message  string    `json:"message,omitempty"`
	Error    string    `json:"error,omitempty"`
}
