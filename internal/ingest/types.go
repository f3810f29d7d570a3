package ingest

import (
	"bytes"
	"io"

	"github.com/google/uuid"

	"github.com/your-org/eventlens/internal/models"
	"github.com/your-org/eventlens/internal/roster"
)

// Stage is a step of the per-photo pipeline.
type Stage string

const (
	StagePending     Stage = "pending"
	StageReading     Stage = "reading"
	StageUploading   Stage = "uploading"
	StageRecognizing Stage = "recognizing"
	StagePersisting  Stage = "persisting"
	StageAssociating Stage = "associating"
	StageNotifying   Stage = "notifying"
	StageDone        Stage = "done"
)

const (
	MsgSuccess           = "Photo uploaded and processed successfully."
	MsgReadFailed        = "Failed to read photo."
	MsgUploadFailed      = "Failed to upload photo to storage."
	MsgRecognitionFailed = "Face recognition failed."
	MsgPersistFailed     = "Failed to persist photo record."
	MsgCancelled         = "Upload cancelled before this photo was processed."
)

// Job is one submitted photo. Open is called once, by the worker that
// processes the photo.
type Job struct {
	Filename    string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// BytesJob wraps an in-memory photo.
func BytesJob(filename, contentType string, data []byte) Job {
	return Job{
		Filename:    filename,
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Status is the outcome of one photo. Stage is StageDone on success and the
// failing stage otherwise.
type Status struct {
	Filename string
	Success  bool
	Message  string
	Stage    Stage
	PhotoID  *uuid.UUID
	URL      string
	Matched  int
}

func failed(filename string, stage Stage, msg string) Status {
	return Status{Filename: filename, Stage: stage, Message: msg}
}

// Scope is the batch-wide, read-only input shared by every pipeline run.
type Scope struct {
	Event          *models.Event
	PhotographerID uuid.UUID
	Roster         *roster.Roster
}

// Observer is told about every finished photo. It is called from worker
// goroutines and must be safe for concurrent use.
type Observer func(index int, st Status)

type Batch struct {
	EventID        *uuid.UUID
	PhotographerID uuid.UUID
	Photos         []Job
	Observer       Observer
}

// Result holds one status per submitted photo, in submission order.
type Result struct {
	Event    *models.Event
	Statuses []Status
}

func (r *Result) Succeeded() int {
	n := 0
	for _, st := range r.Statuses {
		if st.Success {
			n++
		}
	}
	return n
}
