package task

import (
	"encoding/json"
	"time"

	"github.com/kailas-cloud/mmdex/internal/domain/modality"
)

type record struct {
	TaskID       string            `json:"task_id"`
	FileName     string            `json:"file_name,omitempty"`
	TaskName     string            `json:"task_name,omitempty"`
	Modality     modality.Modality `json:"modality"`
	Status       Status            `json:"status,omitempty"`
	RequestedAt  time.Time         `json:"requested_at"`
	FileURL      string            `json:"file_url,omitempty"`
	ThumbnailURL string            `json:"thumbnail_url,omitempty"`
}

// MarshalJSON encodes the task for session persistence.
func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(record{
		TaskID:       t.id,
		FileName:     t.fileName,
		TaskName:     t.name,
		Modality:     t.modality,
		Status:       t.status,
		RequestedAt:  t.requestedAt,
		FileURL:      t.fileURL,
		ThumbnailURL: t.thumbnailURL,
	})
}

// UnmarshalJSON decodes and revalidates a persisted task.
func (t *Task) UnmarshalJSON(data []byte) error {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	tk, err := New(Fields(rec))
	if err != nil {
		return err
	}
	*t = tk
	return nil
}
