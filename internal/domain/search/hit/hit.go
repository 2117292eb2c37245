// Package hit unifies browse listings and scored vector results in one list.
package hit

import (
	"github.com/kailas-cloud/mmdex/internal/domain/modality"
	"github.com/kailas-cloud/mmdex/internal/domain/search/result"
	"github.com/kailas-cloud/mmdex/internal/domain/search/task"
)

// Source tags where a hit came from.
type Source string

// Hit sources.
const (
	Listing Source = "listing"
	Vector  Source = "vector"
)

// Hit holds exactly one of a task or a scored result.
type Hit struct {
	source Source
	task   task.Task
	result result.Result
}

// FromTask wraps a browse listing.
func FromTask(t task.Task) Hit { return Hit{source: Listing, task: t} }

// FromResult wraps a scored vector result.
func FromResult(r result.Result) Hit { return Hit{source: Vector, result: r} }

// FromTasks wraps a browse page.
func FromTasks(ts []task.Task) []Hit {
	out := make([]Hit, len(ts))
	for i, t := range ts {
		out[i] = FromTask(t)
	}
	return out
}

// FromResults wraps a clustered vector page.
func FromResults(rs []result.Result) []Hit {
	out := make([]Hit, len(rs))
	for i, r := range rs {
		out[i] = FromResult(r)
	}
	return out
}

// Source returns the hit origin.
func (h Hit) Source() Source { return h.source }

// Task returns the listing; ok is false for vector hits.
func (h Hit) Task() (task.Task, bool) { return h.task, h.source == Listing }

// Result returns the scored result; ok is false for listing hits.
func (h Hit) Result() (result.Result, bool) { return h.result, h.source == Vector }

// TaskID returns the task id regardless of source.
func (h Hit) TaskID() string {
	if h.source == Vector {
		return h.result.TaskID()
	}
	return h.task.ID()
}

// Modality returns the content modality regardless of source.
func (h Hit) Modality() modality.Modality {
	if h.source == Vector {
		return h.result.Modality()
	}
	return h.task.Modality()
}
