package health

import "context"

// SessionPinger checks session store availability.
type SessionPinger interface {
	Ping(ctx context.Context) error
}

// BackendChecker checks retrieval backend reachability.
type BackendChecker interface {
	HealthCheck(ctx context.Context) error
}
