// Package query describes one search action: what the user typed or uploaded,
// the mode derived from it and the page being requested.
package query

import (
	"strings"

	"github.com/kailas-cloud/mmdex/internal/domain/modality"
	"github.com/kailas-cloud/mmdex/internal/domain/search/filter"
	"github.com/kailas-cloud/mmdex/internal/domain/search/mode"
	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
)

// Paging defaults.
const (
	DefaultPageSize      = 9
	DefaultPageIncrement = 6
)

// Query is a search action ready to send to the backend.
type Query struct {
	mode      mode.Mode
	text      string
	image     Image
	option    filter.Option
	pageSize  int
	embedding request.Request
}

// New builds a query. The mode is derived from the inputs, and the embedding
// request is normalized for the input modality.
func New(text string, img Image, opt filter.Option, pageSize int, s request.Settings) Query {
	text = strings.TrimSpace(text)
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if !opt.IsValid() {
		opt = filter.All
	}
	m := mode.Select(text, img.Bytes)

	inputModality := modality.Text
	if m == mode.VectorImage {
		inputModality = modality.Image
	}
	return Query{
		mode:      m,
		text:      text,
		image:     img,
		option:    opt,
		pageSize:  pageSize,
		embedding: request.Build(inputModality, s),
	}
}

// WithPageSize returns a copy asking for a different page size.
func (q Query) WithPageSize(n int) Query {
	if n > 0 {
		q.pageSize = n
	}
	return q
}

// Mode returns the search strategy.
func (q Query) Mode() mode.Mode { return q.mode }

// Text returns the trimmed search text.
func (q Query) Text() string { return q.text }

// Image returns the query image, empty for text and browse queries.
func (q Query) Image() Image { return q.image }

// Option returns the embedding option filter.
func (q Query) Option() filter.Option { return q.option }

// PageSize returns the number of results requested.
func (q Query) PageSize() int { return q.pageSize }

// Embedding returns the normalized embedding request for the query input.
func (q Query) Embedding() request.Request { return q.embedding }
