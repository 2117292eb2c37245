package hit

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
	"github.com/kailas-cloud/mmdex/internal/domain/search/task"
)

type record struct {
	Source Source         `json:"source"`
	Task   *task.Task     `json:"task,omitempty"`
	Result *result.Result `json:"result,omitempty"`
}

// MarshalJSON encodes the hit with its source tag.
func (h Hit) MarshalJSON() ([]byte, error) {
	rec := record{Source: h.source}
	switch h.source {
	case Listing:
		rec.Task = &h.task
	case Vector:
		rec.Result = &h.result
	}
	return json.Marshal(rec)
}

// UnmarshalJSON decodes a tagged hit. The payload must match the tag.
func (h *Hit) UnmarshalJSON(data []byte) error {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	switch {
	case rec.Source == Listing && rec.Task != nil:
		*h = FromTask(*rec.Task)
	case rec.Source == Vector && rec.Result != nil:
		*h = FromResult(*rec.Result)
	default:
		return fmt.Errorf("hit source %q without matching payload", rec.Source)
	}
	return nil
}
