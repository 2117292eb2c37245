package conversation

import (
	"context"

	"github.com/kailas-cloud/mmdex/internal/domain/chat"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
)

// ChatRequest is one retrieval-augmented chat call.
type ChatRequest struct {
	History       []chat.Message
	TopK          int
	AudioDuration int
}

// Reply is the backend answer with its raw, unclustered citations.
type Reply struct {
	Text      string
	Citations []result.Result
}

// Backend is the remote chat endpoint.
type Backend interface {
	Chat(ctx context.Context, req ChatRequest) (Reply, error)
}

// StateStore persists per-session conversation state.
type StateStore interface {
	Create(ctx context.Context, id string, initial State) error
	Get(ctx context.Context, id string) (State, error)
	Update(ctx context.Context, id string, fn func(*State) error) (State, error)
}

// Observer records controller outcomes. May be nil.
type Observer interface {
	StaleResponse(op string)
	Clustered(counts map[result.Category]int)
}
