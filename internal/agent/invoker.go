// Package agent invokes remote agent controllers and normalises their
// synchronous or streamed responses into one Result.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"campaignhub/internal/credential"
	apperrors "campaignhub/internal/errors"
	"campaignhub/internal/httpclient"
	"campaignhub/internal/logging"
	"campaignhub/internal/observability"
	"campaignhub/internal/stream"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultFastTimeout   = 45 * time.Second
	defaultStreamTimeout = 60 * time.Second
	maxFastBody          = 16 << 20
)

// Config configures the controller endpoint and per-path timeouts.
type Config struct {
	BaseURL       string
	FastTimeout   time.Duration
	StreamTimeout time.Duration
	MaxLineBytes  int
}

// Request identifies one invocation. The payload is encoded once and the same
// bytes are sent on both paths.
type Request struct {
	AgentID string
	Payload map[string]any
}

// Result is the normalised agent response.
type Result struct {
	// Outputs is Raw["outputs"] when that value is an object, otherwise nil.
	Outputs map[string]any
	Raw     map[string]any
	// Path is observability.PathFast or observability.PathStream.
	Path string
	// Matched reports whether a stream policy's stop predicate fired.
	Matched bool
}

func newResult(raw map[string]any, path string, matched bool) *Result {
	res := &Result{Raw: raw, Path: path, Matched: matched}
	if outputs, ok := raw["outputs"].(map[string]any); ok {
		res.Outputs = outputs
	}
	return res
}

// invalidator is implemented by credential sources that reuse tokens.
type invalidator interface {
	Invalidate()
}

// Invoker calls agent controllers.
type Invoker struct {
	cfg          Config
	creds        credential.Source
	registry     *Registry
	fastClient   *http.Client
	streamClient *http.Client
	logger       logging.Logger
	metrics      *observability.Metrics
	tracer       *observability.TracerProvider
	now          func() time.Time
}

// Option customises an Invoker.
type Option func(*Invoker)

// WithRegistry sets the agent name registry.
func WithRegistry(r *Registry) Option {
	return func(i *Invoker) {
		if r != nil {
			i.registry = r
		}
	}
}

// WithHTTPClients replaces the fast and stream clients.
func WithHTTPClients(fast, streaming *http.Client) Option {
	return func(i *Invoker) {
		if fast != nil {
			i.fastClient = fast
		}
		if streaming != nil {
			i.streamClient = streaming
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(i *Invoker) {
		i.logger = logging.OrNop(logger)
	}
}

// WithMetrics records invocations on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(i *Invoker) {
		i.metrics = m
	}
}

// WithTracer traces invocations with tp.
func WithTracer(tp *observability.TracerProvider) Option {
	return func(i *Invoker) {
		i.tracer = tp
	}
}

// New builds an Invoker that authenticates through creds.
func New(cfg Config, creds credential.Source, opts ...Option) *Invoker {
	if cfg.FastTimeout <= 0 {
		cfg.FastTimeout = defaultFastTimeout
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = defaultStreamTimeout
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	i := &Invoker{
		cfg:      cfg,
		creds:    creds,
		registry: NewRegistry(nil),
		logger:   logging.NewComponentLogger("agent"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.fastClient == nil {
		i.fastClient = httpclient.New(cfg.FastTimeout, i.logger)
	}
	if i.streamClient == nil {
		i.streamClient = httpclient.New(cfg.StreamTimeout, i.logger)
	}
	return i
}

// Registry exposes the name registry.
func (i *Invoker) Registry() *Registry {
	return i.registry
}

// Invoke calls agentID with payload using the take-last stream policy.
// A nil Result with a nil error means the agent produced nothing.
func (i *Invoker) Invoke(ctx context.Context, agentID string, payload map[string]any) (*Result, error) {
	return i.InvokeWithPolicy(ctx, agentID, payload, stream.TakeLast())
}

// InvokeWithPolicy is Invoke with a caller-chosen stream policy. The policy
// applies to the stream path only; a usable synchronous response is returned as is.
//
// Errors are returned only for credential failures, caller contract
// violations and fatal request construction problems.
func (i *Invoker) InvokeWithPolicy(ctx context.Context, agentID string, payload map[string]any, policy stream.Policy) (*Result, error) {
	start := i.now()
	controllerID, err := i.registry.Resolve(agentID)
	if err != nil {
		return nil, err
	}
	req := Request{AgentID: controllerID, Payload: payload}
	logger := logging.FromContext(ctx, i.logger)

	ctx, span := i.tracer.StartSpan(ctx, observability.SpanAgentInvoke, observability.AgentAttrs(controllerID)...)
	defer span.End()

	res, path, err := i.invoke(ctx, logger, req, policy)
	outcome := observability.OutcomeResult
	switch {
	case err != nil:
		outcome = observability.OutcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case res == nil:
		outcome = observability.OutcomeAbsent
	}
	span.SetAttributes(
		attribute.String(observability.AttrAgentPath, path),
		attribute.String(observability.AttrOutcome, outcome),
	)
	elapsed := i.now().Sub(start)
	i.metrics.RecordInvocation(controllerID, path, outcome, elapsed)
	logger.Info("agent %s (%s) finished: path=%s outcome=%s elapsed=%s", agentID, controllerID, path, outcome, elapsed.Round(time.Millisecond))
	return res, err
}

func (i *Invoker) invoke(ctx context.Context, logger logging.Logger, req Request, policy stream.Policy) (*Result, string, error) {
	if i.creds == nil {
		return nil, observability.PathFast, fmt.Errorf("credential source is not configured: %w", apperrors.ErrInvalidRequest)
	}
	cred, err := i.creds.Acquire(ctx)
	if err != nil {
		return nil, observability.PathFast, fmt.Errorf("acquire credential for agent %s: %w", req.AgentID, err)
	}

	endpoint, err := i.endpoint(req.AgentID)
	if err != nil {
		return nil, observability.PathFast, err
	}
	payload := req.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, observability.PathFast, fmt.Errorf("encode payload for agent %s: %v: %w", req.AgentID, err, apperrors.ErrInvalidRequest)
	}

	attempt := i.fastPath(ctx, endpoint, body, cred.Token)
	switch attempt.Kind {
	case AttemptSuccess:
		return newResult(attempt.Body, observability.PathFast, false), observability.PathFast, nil
	case AttemptFatal:
		return nil, observability.PathFast, fmt.Errorf("agent %s: %s: %w", req.AgentID, attempt.Reason, attempt.Err)
	}
	logger.Debug("agent %s fast path unusable (%s), falling back to stream", req.AgentID, attempt.Reason)

	outcome, ok := i.streamPath(ctx, logger, endpoint, body, cred.Token, policy)
	if !ok || outcome.Absent() {
		return nil, observability.PathStream, nil
	}
	return newResult(outcome.Object, observability.PathStream, outcome.Matched), observability.PathStream, nil
}

func (i *Invoker) endpoint(controllerID string) (string, error) {
	if i.cfg.BaseURL == "" {
		return "", fmt.Errorf("agent base url is not configured: %w", apperrors.ErrInvalidRequest)
	}
	return fmt.Sprintf("%s/api/%s/agent-controller/trigger-agent", i.cfg.BaseURL, url.PathEscape(controllerID)), nil
}

func (i *Invoker) newRequest(ctx context.Context, endpoint string, body []byte, token string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// fastPath issues the synchronous request and classifies the response.
func (i *Invoker) fastPath(ctx context.Context, endpoint string, body []byte, token string) Attempt {
	if err := ctx.Err(); err != nil {
		return fatal("request canceled", err)
	}
	req, err := i.newRequest(ctx, endpoint, body, token)
	if err != nil {
		return fatal("build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := i.fastClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
			return fatal("request canceled", ctxErr)
		}
		return retryable("transport error", &apperrors.TransportError{Op: "POST", URL: endpoint, Err: err})
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		i.dropRejectedCredential(resp.StatusCode)
		return retryable(fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	data, err := httpclient.ReadAllWithLimit(resp.Body, maxFastBody)
	if err != nil {
		return retryable("read body", &apperrors.TransportError{Op: "read", URL: endpoint, Err: err})
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return retryable("body is not json", err)
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return retryable("body is not a json object", nil)
	}
	return success(obj)
}

// streamPath re-issues the request as an event stream and folds the body.
// It reports false when the stream could not be used at all.
func (i *Invoker) streamPath(ctx context.Context, logger logging.Logger, endpoint string, body []byte, token string, policy stream.Policy) (stream.Outcome, bool) {
	req, err := i.newRequest(ctx, endpoint, body, token)
	if err != nil {
		logger.Warn("stream request build failed: %v", err)
		return stream.Outcome{}, false
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := i.streamClient.Do(req)
	if err != nil {
		transportErr := &apperrors.TransportError{Op: "POST", URL: endpoint, Err: err}
		if transportErr.Timeout() {
			logger.Warn("stream call timed out after %s", i.cfg.StreamTimeout)
		} else {
			logger.Warn("stream call error: %v", transportErr)
		}
		return stream.Outcome{}, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		i.dropRejectedCredential(resp.StatusCode)
		logger.Warn("stream responded with status %d, reading body anyway", resp.StatusCode)
	}

	if policy.MaxLineBytes <= 0 {
		policy.MaxLineBytes = i.cfg.MaxLineBytes
	}
	outcome, err := stream.Reconcile(resp.Body, policy)
	i.metrics.RecordStreamLines(outcome.Parsed, outcome.Discarded)
	if err != nil {
		if apperrors.IsStreamClosed(err) {
			logger.Info("stream ended (server closed connection) after %d lines", outcome.Lines)
			return outcome, true
		}
		logger.Warn("stream read error after %d lines: %v", outcome.Lines, err)
		return stream.Outcome{}, false
	}
	logger.Debug("stream finished: lines=%d parsed=%d discarded=%d matched=%t", outcome.Lines, outcome.Parsed, outcome.Discarded, outcome.Matched)
	return outcome, true
}

// dropRejectedCredential forgets a reused token once the controller refuses it,
// so the next invocation acquires a new one.
func (i *Invoker) dropRejectedCredential(status int) {
	if status != http.StatusUnauthorized {
		return
	}
	if inv, ok := i.creds.(invalidator); ok {
		inv.Invalidate()
	}
}
