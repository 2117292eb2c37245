package session

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kailas-cloud/mmdex/internal/domain"
)

// NewID returns a fresh session id.
func NewID() string { return uuid.NewString() }

// ParseID validates a client-supplied session id.
func ParseID(s string) (string, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: session id: %w", domain.ErrInvalidInput, err)
	}
	return id.String(), nil
}
