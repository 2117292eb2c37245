package health

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the backend is unreachable but sessions still work.
	Degraded Status = "degraded"
	// Unhealthy indicates the session store is down; no console action can succeed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Check names.
const (
	CheckSessions = "sessions"
	CheckBackend  = "backend"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	sessions SessionPinger
	backend  BackendChecker
}

// New creates a Service. backend can be nil.
func New(sessions SessionPinger, backend BackendChecker) *Service {
	return &Service{sessions: sessions, backend: backend}
}

// Check runs both probes concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		sessionsErr, backendErr error
		g                       errgroup.Group
	)
	// Each probe reports through its own variable; neither cancels the other.
	g.Go(func() error {
		sessionsErr = s.sessions.Ping(ctx)
		return nil
	})
	if s.backend != nil {
		g.Go(func() error {
			backendErr = s.backend.HealthCheck(ctx)
			return nil
		})
	}
	_ = g.Wait()

	checks := map[string]CheckResult{CheckSessions: result(sessionsErr)}
	if s.backend != nil {
		checks[CheckBackend] = result(backendErr)
	}

	status := Healthy
	switch {
	case sessionsErr != nil:
		status = Unhealthy
	case backendErr != nil:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
