package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/domain/search/query"
	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
	"github.com/kailas-cloud/mmdex/internal/domain/search/task"
	"github.com/kailas-cloud/mmdex/internal/metrics"
	"github.com/kailas-cloud/mmdex/internal/usecase/retrieval"
)

// ListTasks returns the user's indexed uploads for browse mode.
func (c *Client) ListTasks(ctx context.Context, q query.Query) ([]task.Task, error) {
	data, err := c.post(ctx, EndpointSearchTask, listTasksRequest{
		SearchText: q.Text(),
		RequestBy:  c.requestBy,
		PageSize:   q.PageSize(),
		TaskType:   c.taskType,
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	records := c.records(EndpointSearchTask, data)
	tasks := make([]task.Task, 0, len(records))
	for i, raw := range records {
		var dto taskDTO
		if err := json.Unmarshal(raw, &dto); err != nil {
			c.skip(EndpointSearchTask, i, err)
			continue
		}
		t, err := dto.toDomain()
		if err != nil {
			c.skip(EndpointSearchTask, i, err)
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// SearchVector runs a similarity search. Results come back unclustered.
func (c *Client) SearchVector(ctx context.Context, q query.Query) ([]result.Result, error) {
	body := searchVectorRequest{
		SearchText:       q.Text(),
		InputType:        q.Mode().InputType(),
		RequestBy:        c.requestBy,
		PageSize:         q.PageSize(),
		EmbeddingOptions: q.Option().Values(),
		EmbeddingRequest: embeddingRequest(q.Embedding()),
	}
	if img := q.Image(); !img.IsEmpty() {
		body.SearchText = ""
		body.InputBytes = img.Base64()
		body.InputFormat = img.Format
	}

	data, err := c.post(ctx, EndpointSearchVector, body)
	if err != nil {
		return nil, fmt.Errorf("search vector: %w", err)
	}

	records := c.records(EndpointSearchVector, data)
	results := make([]result.Result, 0, len(records))
	for i, raw := range records {
		var dto vectorResultDTO
		if err := json.Unmarshal(raw, &dto); err != nil {
			c.skip(EndpointSearchVector, i, err)
			continue
		}
		r, err := dto.toDomain()
		if err != nil {
			c.skip(EndpointSearchVector, i, err)
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

// DeleteTask removes an indexed upload.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return domain.ErrNothingSelected
	}
	if _, err := c.post(ctx, EndpointDeleteTask, deleteTaskRequest{TaskID: taskID}); err != nil {
		return fmt.Errorf("delete task %s: %w", taskID, err)
	}
	return nil
}

func embeddingRequest(r request.Request) embeddingRequestDTO {
	dto := embeddingRequestDTO{
		ModelID:  r.ModelID(),
		Modality: strings.ToUpper(string(r.Modality())),
	}
	if v, ok := r.Video(); ok {
		dto.EmbedMode = string(v.EmbedMode)
		dto.DurationS = v.DurationSeconds
	}
	if a, ok := r.Audio(); ok {
		dto.DurationS = a.DurationSeconds
	}
	if img, ok := r.Image(); ok {
		dto.DetailLevel = string(img.DetailLevel)
	}
	if t, ok := r.Text(); ok {
		dto.TruncateMode = string(t.TruncateMode)
		dto.MaxLengthChars = t.MaxLengthChars
	}
	return dto
}

// records splits a list payload into raw items. Anything that is not a list
// (or a JSON string holding one) is treated as an empty result set.
func (c *Client) records(endpoint string, data json.RawMessage) []json.RawMessage {
	if isNull(data) {
		return nil
	}
	data = unquote(data)
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		c.logger.Warn("malformed backend list", zap.String("endpoint", endpoint), zap.Error(err))
		return nil
	}
	return items
}

func (c *Client) skip(endpoint string, index int, err error) {
	metrics.BackendSkippedRecordsTotal.WithLabelValues(strings.TrimPrefix(endpoint, "/nova/embedding/")).Inc()
	c.logger.Warn("skipping backend record",
		zap.String("endpoint", endpoint), zap.Int("index", index), zap.Error(err))
}

// unquote unwraps a payload that was double encoded as a JSON string.
func unquote(data json.RawMessage) json.RawMessage {
	var s string
	if json.Unmarshal(data, &s) == nil {
		return json.RawMessage(s)
	}
	return data
}

var _ retrieval.Backend = (*Client)(nil)
