// Package backend is the HTTP client for the managed multi-modal retrieval service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/metrics"
)

// Endpoints.
const (
	EndpointSearchTask   = "/nova/embedding/search-task"
	EndpointSearchVector = "/nova/embedding/search-task-vector"
	EndpointChat         = "/nova/embedding/search-task-vector-chat"
	EndpointDeleteTask   = "/nova/embedding/delete-task"
)

// DefaultTaskType is the listing task type sent with browse requests.
const DefaultTaskType = "tlabsmmembed"

const maxResponseBytes = 16 << 20

// Config holds backend client settings.
type Config struct {
	BaseURL   string
	APIKey    string
	RequestBy string
	TaskType  string
	Timeout   time.Duration
	// Rate is the steady request rate per second; zero disables throttling.
	Rate  float64
	Burst int
	// Transport overrides the base round tripper (tests).
	Transport http.RoundTripper
	Logger    *zap.Logger
}

// Client calls the retrieval backend. Non-2xx answers become *domain.BackendError.
type Client struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	requestBy string
	taskType  string
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// New creates a backend client.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend base_url %q", cfg.BaseURL)
	}
	if cfg.TaskType == "" {
		cfg.TaskType = DefaultTaskType
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(base),
		},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		requestBy: cfg.RequestBy,
		taskType:  cfg.TaskType,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    cfg.Logger,
	}, nil
}

// HealthCheck verifies the backend host answers HTTP. Any status counts as reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

// post sends body as JSON and returns the unwrapped response payload.
func (c *Client) post(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	label := strings.TrimPrefix(endpoint, "/nova/embedding/")

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.BackendErrorsTotal.WithLabelValues(label, "rate_limited").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", label, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", label, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(label, "error").Inc()
		metrics.BackendErrorsTotal.WithLabelValues(label, "transport").Inc()
		return nil, domain.NewBackendError(0, transportMessage(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	metrics.BackendRequestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(label, "error").Inc()
		metrics.BackendErrorsTotal.WithLabelValues(label, "read").Inc()
		return nil, domain.NewBackendError(resp.StatusCode, "failed to read response: "+err.Error())
	}

	status, data := unwrapEnvelope(resp.StatusCode, raw)
	if status < 200 || status > 299 {
		metrics.BackendRequestsTotal.WithLabelValues(label, "error").Inc()
		metrics.BackendErrorsTotal.WithLabelValues(label, "status_"+statusClass(status)).Inc()
		c.logger.Warn("backend request failed",
			zap.String("endpoint", endpoint), zap.Int("status", status))
		return nil, domain.NewBackendError(status, errorText(data))
	}

	metrics.BackendRequestsTotal.WithLabelValues(label, "success").Inc()
	return data, nil
}

// unwrapEnvelope handles gateways that answer HTTP 200 with
// {"statusCode": N, "body": ...}. Other payloads pass through unchanged.
func unwrapEnvelope(httpStatus int, raw []byte) (int, json.RawMessage) {
	var env struct {
		StatusCode int             `json:"statusCode"`
		Body       json.RawMessage `json:"body"`
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return httpStatus, trimmed
	}
	if err := json.Unmarshal(trimmed, &env); err != nil || env.StatusCode == 0 {
		return httpStatus, trimmed
	}
	return env.StatusCode, env.Body
}

// errorText extracts the user-facing message from an error payload.
func errorText(data json.RawMessage) string {
	var s string
	if json.Unmarshal(data, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(data, &obj) == nil {
		for _, v := range []string{obj.Message, obj.Error, obj.Detail} {
			if v != "" {
				return v
			}
		}
	}
	return string(data)
}

func transportMessage(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if uerr.Timeout() {
			return "backend request timed out"
		}
		return uerr.Err.Error()
	}
	return err.Error()
}

func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}

// isNull reports an absent or JSON null payload.
func isNull(data json.RawMessage) bool {
	t := bytes.TrimSpace(data)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
