package result

import (
	"encoding/json"
	"fmt"
)

type record struct {
	Fields
	Category Category `json:"category,omitempty"`
}

// MarshalJSON encodes the result with its category for session persistence.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(record{Fields: r.Fields(), Category: r.category})
}

// UnmarshalJSON decodes and revalidates a persisted result.
func (r *Result) UnmarshalJSON(data []byte) error {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	if rec.Category.Rank() == 3 && rec.Category != Unclustered {
		return fmt.Errorf("unknown category %q", rec.Category)
	}
	res, err := New(rec.Fields)
	if err != nil {
		return err
	}
	*r = res.WithCategory(rec.Category)
	return nil
}
