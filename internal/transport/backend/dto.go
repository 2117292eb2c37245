package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/mmdex/internal/domain/modality"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
	"github.com/kailas-cloud/mmdex/internal/domain/search/task"
)

// number decodes a JSON number, a numeric string or null.
// Unparseable strings decode as NaN so validation downstream rejects them.
type number struct {
	value float64
	set   bool
}

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = number{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = number{}
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			v = math.NaN()
		}
		*n = number{value: v, set: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode number: %w", err)
	}
	*n = number{value: v, set: true}
	return nil
}

func (n number) float() float64 { return n.value }

func (n number) int() int {
	if !n.set || math.IsNaN(n.value) || math.IsInf(n.value, 0) {
		return 0
	}
	return int(n.value)
}

// --- Requests ---

type listTasksRequest struct {
	SearchText string `json:"SearchText"`
	RequestBy  string `json:"RequestBy"`
	PageSize   int    `json:"PageSize"`
	FromIndex  int    `json:"FromIndex"`
	TaskType   string `json:"TaskType"`
}

type embeddingRequestDTO struct {
	ModelID        string `json:"ModelId"`
	Modality       string `json:"Modality"`
	EmbedMode      string `json:"EmbedMode,omitempty"`
	DurationS      int    `json:"DurationS,omitempty"`
	DetailLevel    string `json:"DetailLevel,omitempty"`
	TruncateMode   string `json:"TruncateMode,omitempty"`
	MaxLengthChars int    `json:"MaxLengthChars,omitempty"`
}

type searchVectorRequest struct {
	SearchText       string              `json:"SearchText"`
	Source           string              `json:"Source"`
	InputType        string              `json:"InputType"`
	InputBytes       string              `json:"InputBytes"`
	InputFormat      string              `json:"InputFormat"`
	RequestBy        string              `json:"RequestBy"`
	PageSize         int                 `json:"PageSize"`
	FromIndex        int                 `json:"FromIndex"`
	EmbeddingOptions []string            `json:"EmbeddingOptions"`
	EmbeddingRequest embeddingRequestDTO `json:"EmbeddingRequest"`
}

type deleteTaskRequest struct {
	TaskID string `json:"TaskId"`
}

type chatContentDTO struct {
	Text string `json:"text"`
}

type chatMessageDTO struct {
	Role    string           `json:"role"`
	Content []chatContentDTO `json:"content"`
}

type chatRequest struct {
	ChatHistory   []chatMessageDTO `json:"ChatHistory"`
	TopK          int              `json:"TopK"`
	AudioDuration int              `json:"AudioDuration"`
}

// --- Responses ---

type taskDTO struct {
	TaskID         string `json:"TaskId"`
	FileName       string `json:"FileName"`
	TaskName       string `json:"TaskName"`
	Name           string `json:"Name"`
	Modality       string `json:"Modality"`
	Status         string `json:"Status"`
	RequestTs      string `json:"RequestTs"`
	FileURL        string `json:"FileUrl"`
	ThumbnailURL   string `json:"ThumbnailUrl"`
	S3Bucket       string `json:"S3Bucket"`
	S3Key          string `json:"S3Key"`
	S3KeyThumbnail string `json:"S3KeyThumbnail"`
}

func (d taskDTO) toDomain() (task.Task, error) {
	m, err := modality.Parse(d.Modality)
	if err != nil {
		return task.Task{}, err
	}
	name := d.TaskName
	if name == "" {
		name = d.Name
	}
	fileURL := d.FileURL
	if fileURL == "" {
		fileURL = s3URL(d.S3Bucket, d.S3Key)
	}
	thumb := d.ThumbnailURL
	if thumb == "" {
		thumb = s3URL(d.S3Bucket, d.S3KeyThumbnail)
	}
	return task.New(task.Fields{
		TaskID:       d.TaskID,
		FileName:     d.FileName,
		TaskName:     name,
		Modality:     m,
		Status:       task.Status(d.Status),
		RequestedAt:  parseTimestamp(d.RequestTs),
		FileURL:      fileURL,
		ThumbnailURL: thumb,
	})
}

type vectorResultDTO struct {
	TaskID            string `json:"TaskId"`
	TaskName          string `json:"TaskName"`
	FileName          string `json:"FileName"`
	Modality          string `json:"Modality"`
	EmbeddingOption   string `json:"EmbeddingOption"`
	Distance          number `json:"Distance"`
	FileURL           string `json:"FileUrl"`
	StartSec          number `json:"StartSec"`
	EndSec            number `json:"EndSec"`
	StartCharPosition number `json:"StartCharPosition"`
	EndCharPosition   number `json:"EndCharPosition"`
	Index             number `json:"Index"`
	Citation          string `json:"Citation"`
}

func (d vectorResultDTO) toDomain() (result.Result, error) {
	m, err := modality.Parse(d.Modality)
	if err != nil {
		return result.Result{}, err
	}
	if !d.Distance.set {
		return result.Result{}, fmt.Errorf("distance missing")
	}
	name := d.TaskName
	if name == "" {
		name = d.FileName
	}
	return result.New(result.Fields{
		TaskID:          d.TaskID,
		Modality:        m,
		Distance:        d.Distance.float(),
		FileURL:         d.FileURL,
		TaskName:        name,
		EmbeddingOption: d.EmbeddingOption,
		Citation:        d.Citation,
		Span:            span(m, d.StartSec, d.EndSec, d.StartCharPosition, d.EndCharPosition, d.Index),
	})
}

type chatCitationDTO struct {
	Modality          string `json:"Modality"`
	Distance          number `json:"Distance"`
	TaskName          string `json:"TaskName"`
	TextCitation      string `json:"TextCitation"`
	TextIndex         number `json:"TextIndex"`
	StartCharPosition number `json:"StartCharPosition"`
	EndCharPosition   number `json:"EndCharPosition"`
	StartSec          number `json:"StartSec"`
	EndSec            number `json:"EndSec"`
	FileURL           string `json:"FileUrl"`
}

func (d chatCitationDTO) toDomain() (result.Result, error) {
	m, err := modality.Parse(d.Modality)
	if err != nil {
		return result.Result{}, err
	}
	if !d.Distance.set {
		return result.Result{}, fmt.Errorf("distance missing")
	}
	return result.New(result.Fields{
		Modality: m,
		Distance: d.Distance.float(),
		FileURL:  d.FileURL,
		TaskName: d.TaskName,
		Citation: d.TextCitation,
		Span:     span(m, d.StartSec, d.EndSec, d.StartCharPosition, d.EndCharPosition, d.TextIndex),
	})
}

type chatResponse struct {
	Reply     string            `json:"reply"`
	Citations []json.RawMessage `json:"citations"`
}

func span(m modality.Modality, startSec, endSec, startChar, endChar, index number) result.Span {
	if m == modality.Text {
		return result.Span{StartChar: startChar.int(), EndChar: endChar.int(), SegmentIndex: index.int()}
	}
	if m.IsTemporal() {
		return result.Span{StartSec: finite(startSec), EndSec: finite(endSec)}
	}
	return result.Span{}
}

func finite(n number) float64 {
	if !n.set || math.IsNaN(n.value) || math.IsInf(n.value, 0) {
		return 0
	}
	return n.value
}

func s3URL(bucket, key string) string {
	if bucket == "" || key == "" {
		return ""
	}
	return "s3://" + bucket + "/" + strings.TrimPrefix(key, "/")
}

// parseTimestamp accepts RFC 3339 and the ISO forms the backend emits
// without a zone. Unknown formats yield the zero time.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999Z07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
