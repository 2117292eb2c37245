package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/domain/search/cluster"
	"github.com/kailas-cloud/mmdex/internal/domain/search/filter"
	"github.com/kailas-cloud/mmdex/internal/domain/search/hit"
	"github.com/kailas-cloud/mmdex/internal/domain/search/mode"
	"github.com/kailas-cloud/mmdex/internal/domain/search/query"
	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
)

// Config holds paging parameters and the embedding model used when the user
// does not pick one.
type Config struct {
	InitialPageSize int
	PageIncrement   int
	ModelID         string
}

// SearchInput is what the user submitted in the search box.
type SearchInput struct {
	Text     string
	Image    query.Image
	Option   filter.Option
	Settings request.Settings
}

// Service aggregates browse listings and scored vector results per session.
type Service struct {
	backend Backend
	states  StateStore
	obs     Observer
	logger  *zap.Logger
	cfg     Config
}

// New creates a retrieval service. obs can be nil.
func New(backend Backend, states StateStore, obs Observer, logger *zap.Logger, cfg Config) *Service {
	if cfg.InitialPageSize <= 0 {
		cfg.InitialPageSize = query.DefaultPageSize
	}
	if cfg.PageIncrement <= 0 {
		cfg.PageIncrement = query.DefaultPageIncrement
	}
	return &Service{backend: backend, states: states, obs: obs, logger: logger, cfg: cfg}
}

// Open creates the search state for a new session.
func (s *Service) Open(ctx context.Context, sessionID string) (View, error) {
	initial := Initial(s.cfg.InitialPageSize)
	if err := s.states.Create(ctx, sessionID, initial); err != nil {
		return View{}, fmt.Errorf("open search state: %w", err)
	}
	return viewOf(initial), nil
}

// View returns the current search state.
func (s *Service) View(ctx context.Context, sessionID string) (View, error) {
	st, err := s.states.Get(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	return viewOf(st), nil
}

// Search runs a new search from the first page. Browse, text and image modes are
// chosen from the input.
func (s *Service) Search(ctx context.Context, sessionID string, in SearchInput) (View, error) {
	if strings.TrimSpace(in.Settings.ModelID) == "" {
		in.Settings.ModelID = s.cfg.ModelID
	}
	q := query.New(in.Text, in.Image, in.Option, s.cfg.InitialPageSize, in.Settings)
	return s.run(ctx, sessionID, "search", func(st *State) query.Query {
		begin(st, q, in.Settings)
		return q
	})
}

// ShowMore reissues the search behind the current list with a larger page. The
// response replaces the list.
func (s *Service) ShowMore(ctx context.Context, sessionID string) (View, error) {
	return s.run(ctx, sessionID, "show_more", func(st *State) query.Query {
		q := nextPage(*st, s.cfg.PageIncrement)
		begin(st, q, st.Settings)
		return q
	})
}

// Clear resets the search inputs and reloads the browse listing.
func (s *Service) Clear(ctx context.Context, sessionID string) (View, error) {
	return s.run(ctx, sessionID, "clear", func(st *State) query.Query {
		q := cleared(*st, s.cfg.InitialPageSize)
		begin(st, q, st.Settings)
		return q
	})
}

// Delete removes a task in the backend and then drops its hits from the list.
// The list is not re-queried, and a search in flight cannot restore the task.
func (s *Service) Delete(ctx context.Context, sessionID, taskID string) (View, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return View{}, domain.ErrNothingSelected
	}
	if _, err := s.states.Get(ctx, sessionID); err != nil {
		return View{}, err
	}

	delErr := s.backend.DeleteTask(ctx, taskID)

	st, err := s.states.Update(context.WithoutCancel(ctx), sessionID, func(st *State) error {
		if delErr != nil {
			st.Alert = domain.AlertMessage(delErr)
			return nil
		}
		removed := removeTask(st, taskID)
		s.logger.Debug("task removed from results",
			zap.String("task_id", taskID), zap.Int("hits_removed", removed))
		return nil
	})
	if err != nil {
		return View{}, err
	}
	if delErr != nil {
		return viewOf(st), fmt.Errorf("delete task %s: %w", taskID, delErr)
	}
	return viewOf(st), nil
}

// DismissAlert clears the current alert.
func (s *Service) DismissAlert(ctx context.Context, sessionID string) (View, error) {
	st, err := s.states.Update(ctx, sessionID, func(st *State) error {
		dismissAlert(st)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return viewOf(st), nil
}

// run executes one generation-tagged action: prepare under the session lock,
// call the backend without it, then apply the outcome if still current.
func (s *Service) run(
	ctx context.Context, sessionID, op string, prepare func(*State) query.Query,
) (View, error) {
	var (
		q   query.Query
		gen uint64
	)
	if _, err := s.states.Update(ctx, sessionID, func(st *State) error {
		q = prepare(st)
		gen = st.Generation
		return nil
	}); err != nil {
		return View{}, err
	}

	hits, fetchErr := s.fetch(ctx, q)

	st, err := s.states.Update(context.WithoutCancel(ctx), sessionID, func(st *State) error {
		if fetchErr != nil {
			return fail(st, gen, fetchErr)
		}
		return complete(st, gen, hits)
	})
	if errors.Is(err, domain.ErrStaleResponse) {
		if s.obs != nil {
			s.obs.StaleResponse(op)
		}
		s.logger.Debug("discarding superseded response",
			zap.String("op", op), zap.Uint64("generation", gen))
		return View{}, fmt.Errorf("%s: %w", op, err)
	}
	if err != nil {
		return View{}, err
	}
	if fetchErr != nil {
		return viewOf(st), fmt.Errorf("%s: %w", op, fetchErr)
	}
	return viewOf(st), nil
}

func (s *Service) fetch(ctx context.Context, q query.Query) ([]hit.Hit, error) {
	if q.Mode() == mode.Browse {
		tasks, err := s.backend.ListTasks(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		return hit.FromTasks(tasks), nil
	}

	results, err := s.backend.SearchVector(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	clustered := cluster.Cluster(dedupe(results))
	if s.obs != nil && len(clustered) > 0 {
		s.obs.Clustered(cluster.Counts(clustered))
	}
	return hit.FromResults(clustered), nil
}
