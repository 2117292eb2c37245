// Package task holds the browse listing record for an indexed upload.
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/domain/modality"
)

// Status is the indexing state reported by the backend.
type Status string

// Known statuses. The backend may report others; they are kept verbatim.
const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Fields are the raw inputs to New.
type Fields struct {
	TaskID       string
	FileName     string
	TaskName     string
	Modality     modality.Modality
	Status       Status
	RequestedAt  time.Time
	FileURL      string
	ThumbnailURL string
}

// Task is an indexed upload as shown in browse mode. It carries no distance.
type Task struct {
	id           string
	fileName     string
	name         string
	modality     modality.Modality
	status       Status
	requestedAt  time.Time
	fileURL      string
	thumbnailURL string
}

// New validates and creates a Task.
func New(f Fields) (Task, error) {
	id := strings.TrimSpace(f.TaskID)
	if id == "" {
		return Task{}, fmt.Errorf("%w: task id is required", domain.ErrInvalidInput)
	}
	if !f.Modality.IsValid() {
		return Task{}, fmt.Errorf("%w: %q", domain.ErrInvalidModality, f.Modality)
	}
	return Task{
		id:           id,
		fileName:     f.FileName,
		name:         f.TaskName,
		modality:     f.Modality,
		status:       Status(strings.ToLower(string(f.Status))),
		requestedAt:  f.RequestedAt,
		fileURL:      f.FileURL,
		thumbnailURL: f.ThumbnailURL,
	}, nil
}

// ID returns the task id.
func (t Task) ID() string { return t.id }

// FileName returns the uploaded file name.
func (t Task) FileName() string { return t.fileName }

// Name returns the task display name, falling back to the file name.
func (t Task) Name() string {
	if t.name == "" {
		return t.fileName
	}
	return t.name
}

// Modality returns the upload modality.
func (t Task) Modality() modality.Modality { return t.modality }

// Status returns the indexing status.
func (t Task) Status() Status { return t.status }

// RequestedAt returns when the upload was requested.
func (t Task) RequestedAt() time.Time { return t.requestedAt }

// FileURL returns the media URL.
func (t Task) FileURL() string { return t.fileURL }

// ThumbnailURL returns the preview URL.
func (t Task) ThumbnailURL() string { return t.thumbnailURL }
