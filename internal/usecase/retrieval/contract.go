package retrieval

import (
	"context"

	"github.com/kailas-cloud/mmdex/internal/domain/search/query"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
	"github.com/kailas-cloud/mmdex/internal/domain/search/task"
)

// Backend is the remote retrieval service.
type Backend interface {
	ListTasks(ctx context.Context, q query.Query) ([]task.Task, error)
	SearchVector(ctx context.Context, q query.Query) ([]result.Result, error)
	DeleteTask(ctx context.Context, taskID string) error
}

// StateStore persists per-session search state.
type StateStore interface {
	Create(ctx context.Context, id string, initial State) error
	Get(ctx context.Context, id string) (State, error)
	Update(ctx context.Context, id string, fn func(*State) error) (State, error)
}

// Observer records aggregation outcomes. May be nil.
type Observer interface {
	StaleResponse(op string)
	Clustered(counts map[result.Category]int)
}
