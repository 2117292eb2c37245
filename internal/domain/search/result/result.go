package result

import (
	"fmt"
	"math"
	"strconv"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/domain/modality"
)

// Category is the confidence tier of a result within one clustered result set.
// Smaller distances map to High.
type Category string

// Category constants.
const (
	// Unclustered marks a result that has not been through the clustering engine.
	Unclustered Category = ""
	High        Category = "high"
	Medium      Category = "medium"
	Low         Category = "low"
)

// Rank orders categories from best (0) to worst. Unclustered ranks last.
func (c Category) Rank() int {
	switch c {
	case High:
		return 0
	case Medium:
		return 1
	case Low:
		return 2
	default:
		return 3
	}
}

// Span locates a fragment inside its source file.
// Video and audio use seconds; text uses character offsets and a segment index.
type Span struct {
	StartSec     float64 `json:"start_sec,omitempty"`
	EndSec       float64 `json:"end_sec,omitempty"`
	StartChar    int     `json:"start_char,omitempty"`
	EndChar      int     `json:"end_char,omitempty"`
	SegmentIndex int     `json:"segment_index,omitempty"`
}

// Fields holds the raw attributes of a scored fragment as received from the backend.
type Fields struct {
	TaskID          string            `json:"task_id"`
	Modality        modality.Modality `json:"modality"`
	Distance        float64           `json:"distance"`
	FileURL         string            `json:"file_url,omitempty"`
	TaskName        string            `json:"task_name,omitempty"`
	EmbeddingOption string            `json:"embedding_option,omitempty"`
	Citation        string            `json:"citation,omitempty"`
	Span            Span              `json:"span"`
}

// Result is a single distance-scored fragment. It is immutable once built.
type Result struct {
	taskID          string
	modality        modality.Modality
	distance        float64
	category        Category
	fileURL         string
	taskName        string
	embeddingOption string
	citation        string
	span            Span
}

// New validates raw fields and creates an unclustered result.
func New(f Fields) (Result, error) {
	if math.IsNaN(f.Distance) || math.IsInf(f.Distance, 0) || f.Distance < 0 {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrInvalidDistance, f.Distance)
	}
	if !f.Modality.IsValid() {
		return Result{}, fmt.Errorf("%w: %q", domain.ErrInvalidModality, f.Modality)
	}
	return Result{
		taskID:          f.TaskID,
		modality:        f.Modality,
		distance:        f.Distance,
		fileURL:         f.FileURL,
		taskName:        f.TaskName,
		embeddingOption: f.EmbeddingOption,
		citation:        f.Citation,
		span:            f.Span,
	}, nil
}

// WithCategory returns an annotated copy; the receiver is left unchanged.
func (r Result) WithCategory(c Category) Result {
	r.category = c
	return r
}

// WithDistance returns a copy carrying a different distance and no category.
func (r Result) WithDistance(d float64) Result {
	r.distance = d
	r.category = Unclustered
	return r
}

// TaskID returns the backend task identifier.
func (r Result) TaskID() string { return r.taskID }

// Modality returns the fragment content type.
func (r Result) Modality() modality.Modality { return r.modality }

// Distance returns the raw distance (lower is more similar).
func (r Result) Distance() float64 { return r.distance }

// Category returns the derived confidence tier.
func (r Result) Category() Category { return r.category }

// FileURL returns the source file URL.
func (r Result) FileURL() string { return r.fileURL }

// TaskName returns the display name of the source task.
func (r Result) TaskName() string { return r.taskName }

// EmbeddingOption returns the embedding type that matched (e.g. "audio-video").
func (r Result) EmbeddingOption() string { return r.embeddingOption }

// Citation returns the text excerpt for text fragments.
func (r Result) Citation() string { return r.citation }

// Span returns the fragment location.
func (r Result) Span() Span { return r.span }

// Fields returns the raw attributes the result was built from.
func (r Result) Fields() Fields {
	return Fields{
		TaskID:          r.taskID,
		Modality:        r.modality,
		Distance:        r.distance,
		FileURL:         r.fileURL,
		TaskName:        r.taskName,
		EmbeddingOption: r.embeddingOption,
		Citation:        r.citation,
		Span:            r.span,
	}
}

// Key identifies the fragment independently of its distance. Text fragments
// also carry their segment index, since a missing start offset reads as zero.
func (r Result) Key() string {
	var start string
	if r.modality == modality.Text {
		start = strconv.Itoa(r.span.StartChar) + "#" + strconv.Itoa(r.span.SegmentIndex)
	} else {
		start = strconv.FormatFloat(r.span.StartSec, 'f', -1, 64)
	}
	return r.taskID + "|" + r.embeddingOption + "|" + start
}

// TimeRange formats the temporal span for video and audio; empty otherwise.
func (r Result) TimeRange() string {
	if !r.modality.IsTemporal() {
		return ""
	}
	return FormatTimestamp(r.span.StartSec) + " - " + FormatTimestamp(r.span.EndSec)
}
