package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
	"github.com/kailas-cloud/mmdex/internal/usecase/conversation"
)

// Chat sends the outgoing history and returns the reply with raw citations.
func (c *Client) Chat(ctx context.Context, req conversation.ChatRequest) (conversation.Reply, error) {
	body := chatRequest{
		ChatHistory:   make([]chatMessageDTO, 0, len(req.History)),
		TopK:          req.TopK,
		AudioDuration: req.AudioDuration,
	}
	for _, m := range req.History {
		body.ChatHistory = append(body.ChatHistory, chatMessageDTO{
			Role:    string(m.Role()),
			Content: []chatContentDTO{{Text: m.Text()}},
		})
	}

	data, err := c.post(ctx, EndpointChat, body)
	if err != nil {
		return conversation.Reply{}, fmt.Errorf("chat: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(unquote(data), &resp); err != nil {
		return conversation.Reply{}, fmt.Errorf("chat: %w",
			domain.NewBackendError(http.StatusOK, "malformed chat response"))
	}

	citations := make([]result.Result, 0, len(resp.Citations))
	for i, raw := range resp.Citations {
		var dto chatCitationDTO
		if err := json.Unmarshal(raw, &dto); err != nil {
			c.skip(EndpointChat, i, err)
			continue
		}
		r, err := dto.toDomain()
		if err != nil {
			c.skip(EndpointChat, i, err)
			continue
		}
		citations = append(citations, r)
	}
	return conversation.Reply{Text: resp.Reply, Citations: citations}, nil
}

var _ conversation.Backend = (*Client)(nil)
