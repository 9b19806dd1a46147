package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/t77yq/roma-console/internal/model"
	"github.com/t77yq/roma-console/internal/transport"
)

const (
	// DefaultOffset is the first page offset
	DefaultOffset = 0
	// DefaultLimit is the page size used by the console
	DefaultLimit = 20

	apiPrefix = "/api/v1"
)

// Doer performs one backend call; *transport.Transport satisfies it
type Doer interface {
	Do(ctx context.Context, req transport.Request, out interface{}) error
}

// ListOptions selects one page of executions
type ListOptions struct {
	Offset int
	Limit  int
}

// Client exposes typed operations over the ROMA backend resources.
// It never retries; callers decide what to do with an error.
type Client struct {
	logger *zap.Logger
	doer   Doer
}

// New creates a client on top of a transport
func New(doer Doer, logger *zap.Logger) *Client {
	return &Client{
		logger: logger.Named("client"),
		doer:   doer,
	}
}

func requireID(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidArgument, name)
	}
	return nil
}

func escape(id string) string {
	return url.PathEscape(strings.TrimSpace(id))
}

// GetHealth returns the backend health snapshot
func (c *Client) GetHealth(ctx context.Context) (*model.Health, error) {
	var health model.Health
	if err := c.doer.Do(ctx, transport.Request{Method: http.MethodGet, Path: "/health"}, &health); err != nil {
		return nil, err
	}
	if health.Status == "" {
		health.Status = model.HealthStatusUnknown
	}
	return &health, nil
}

// ListExecutions returns one page of executions
func (c *Client) ListExecutions(ctx context.Context, opts ListOptions) (*model.ExecutionPage, error) {
	if opts.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must be >= 0, got %d", ErrInvalidArgument, opts.Offset)
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must be > 0, got %d", ErrInvalidArgument, opts.Limit)
	}
	if opts.Limit == 0 {
		opts.Limit = DefaultLimit
	}

	query := url.Values{}
	query.Set("offset", strconv.Itoa(opts.Offset))
	query.Set("limit", strconv.Itoa(opts.Limit))

	var page model.ExecutionPage
	err := c.doer.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   apiPrefix + "/executions",
		Query:  query,
	}, &page)
	if err != nil {
		return nil, err
	}
	if page.Limit == 0 {
		page.Offset = opts.Offset
		page.Limit = opts.Limit
	}
	return &page, nil
}

// GetExecution returns a single execution
func (c *Client) GetExecution(ctx context.Context, executionID string) (*model.Execution, error) {
	if err := requireID("execution id", executionID); err != nil {
		return nil, err
	}
	var exec model.Execution
	err := c.doer.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   apiPrefix + "/executions/" + escape(executionID),
	}, &exec)
	if err != nil {
		return nil, err
	}
	return &exec, nil
}

// GetStatus returns the live status projection of an execution
func (c *Client) GetStatus(ctx context.Context, executionID string) (*model.StatusSnapshot, error) {
	if err := requireID("execution id", executionID); err != nil {
		return nil, err
	}
	var status model.StatusSnapshot
	err := c.doer.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   apiPrefix + "/executions/" + escape(executionID) + "/status",
	}, &status)
	if err != nil {
		return nil, err
	}
	if status.ExecutionID == "" {
		status.ExecutionID = executionID
	}
	return &status, nil
}

// GetMetrics returns LM usage metrics of an execution
func (c *Client) GetMetrics(ctx context.Context, executionID string) (*model.ExecutionMetrics, error) {
	if err := requireID("execution id", executionID); err != nil {
		return nil, err
	}
	var metrics model.ExecutionMetrics
	err := c.doer.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   apiPrefix + "/executions/" + escape(executionID) + "/metrics",
	}, &metrics)
	if err != nil {
		return nil, err
	}
	return &metrics, nil
}

// GetExecutionData returns an execution together with its traces
func (c *Client) GetExecutionData(ctx context.Context, executionID string) (*model.ExecutionData, error) {
	if err := requireID("execution id", executionID); err != nil {
		return nil, err
	}
	var data model.ExecutionData
	err := c.doer.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   apiPrefix + "/executions/" + escape(executionID) + "/data",
	}, &data)
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// CreateExecution starts a new execution. A zero MaxDepth is sent as DefaultMaxDepth.
func (c *Client) CreateExecution(ctx context.Context, req model.CreateExecutionRequest) (*model.Execution, error) {
	req.Goal = strings.TrimSpace(req.Goal)
	if req.Goal == "" {
		return nil, fmt.Errorf("%w: goal must not be empty", ErrInvalidArgument)
	}
	if req.MaxDepth < 0 {
		return nil, fmt.Errorf("%w: max depth must be positive, got %d", ErrInvalidArgument, req.MaxDepth)
	}
	if req.MaxDepth == 0 {
		req.MaxDepth = model.DefaultMaxDepth
	}

	var exec model.Execution
	err := c.doer.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		Path:    apiPrefix + "/executions",
		Body:    req,
		Success: "Execution created",
	}, &exec)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Execution created",
		zap.String("execution_id", exec.ExecutionID),
		zap.Int("max_depth", req.MaxDepth))
	return &exec, nil
}

// DeleteExecution removes an execution
func (c *Client) DeleteExecution(ctx context.Context, executionID string) error {
	if err := requireID("execution id", executionID); err != nil {
		return err
	}
	return c.doer.Do(ctx, transport.Request{
		Method:  http.MethodDelete,
		Path:    apiPrefix + "/executions/" + escape(executionID),
		Success: "Execution deleted",
	}, nil)
}

// ListCheckpoints returns the checkpoints of an execution
func (c *Client) ListCheckpoints(ctx context.Context, executionID string) ([]model.Checkpoint, error) {
	if err := requireID("execution id", executionID); err != nil {
		return nil, err
	}
	list := listResponse[model.Checkpoint]{key: "checkpoints"}
	err := c.doer.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   apiPrefix + "/checkpoints",
		Query:  url.Values{"execution_id": {strings.TrimSpace(executionID)}},
	}, &list)
	if err != nil {
		return nil, err
	}
	return list.result(), nil
}

// GetCheckpoint returns a single checkpoint
func (c *Client) GetCheckpoint(ctx context.Context, checkpointID string) (*model.Checkpoint, error) {
	if err := requireID("checkpoint id", checkpointID); err != nil {
		return nil, err
	}
	var checkpoint model.Checkpoint
	err := c.doer.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   apiPrefix + "/checkpoints/" + escape(checkpointID),
	}, &checkpoint)
	if err != nil {
		return nil, err
	}
	return &checkpoint, nil
}

// RestoreCheckpoint asks the backend to restore an execution from a checkpoint
func (c *Client) RestoreCheckpoint(ctx context.Context, checkpointID string, resume bool) (*model.RestoreResult, error) {
	if err := requireID("checkpoint id", checkpointID); err != nil {
		return nil, err
	}
	var result model.RestoreResult
	err := c.doer.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		Path:    apiPrefix + "/checkpoints/" + escape(checkpointID) + "/restore",
		Body:    model.RestoreRequest{Resume: resume},
		Success: "Checkpoint restored",
	}, &result)
	if err != nil {
		return nil, err
	}
	if result.CheckpointID == "" {
		result.CheckpointID = checkpointID
	}

	c.logger.Info("Checkpoint restored",
		zap.String("checkpoint_id", checkpointID),
		zap.String("execution_id", result.ExecutionID),
		zap.Bool("resume", resume))
	return &result, nil
}

// ListTaskTraces returns the task traces of an execution
func (c *Client) ListTaskTraces(ctx context.Context, executionID string) ([]model.TaskTrace, error) {
	if err := requireID("execution id", executionID); err != nil {
		return nil, err
	}
	list := listResponse[model.TaskTrace]{key: "traces"}
	err := c.doer.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   apiPrefix + "/traces/tasks",
		Query:  url.Values{"execution_id": {strings.TrimSpace(executionID)}},
	}, &list)
	if err != nil {
		return nil, err
	}
	return list.result(), nil
}

// ListLMTraces returns the language-model call traces of an execution
func (c *Client) ListLMTraces(ctx context.Context, executionID string) ([]model.LMTrace, error) {
	if err := requireID("execution id", executionID); err != nil {
		return nil, err
	}
	list := listResponse[model.LMTrace]{key: "traces"}
	err := c.doer.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   apiPrefix + "/traces/lm",
		Query:  url.Values{"execution_id": {strings.TrimSpace(executionID)}},
	}, &list)
	if err != nil {
		return nil, err
	}
	return list.result(), nil
}

// UpdateConfig forwards a profile and/or override map to the backend as-is
func (c *Client) UpdateConfig(ctx context.Context, update model.ConfigUpdate) (*model.ConfigUpdateResult, error) {
	var result model.ConfigUpdateResult
	err := c.doer.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		Path:    apiPrefix + "/config/update",
		Body:    update,
		Success: "Configuration updated",
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListProfiles returns the available configuration profiles
func (c *Client) ListProfiles(ctx context.Context) ([]model.ConfigProfile, error) {
	var list profileList
	err := c.doer.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   apiPrefix + "/config/profiles",
	}, &list)
	if err != nil {
		return nil, err
	}
	return list.profiles(), nil
}

// GetProfile returns one configuration profile
func (c *Client) GetProfile(ctx context.Context, name string) (*model.ConfigProfile, error) {
	if err := requireID("profile name", name); err != nil {
		return nil, err
	}
	var profile model.ConfigProfile
	err := c.doer.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   apiPrefix + "/config/profiles/" + escape(name),
	}, &profile)
	if err != nil {
		return nil, err
	}
	if profile.Name == "" {
		profile.Name = name
	}
	return &profile, nil
}

// listResponse decodes a list endpoint body while the transport unmarshals it,
// so a shape mismatch surfaces as a malformed response
type listResponse[T any] struct {
	key   string
	items []T
}

func (l *listResponse[T]) UnmarshalJSON(data []byte) error {
	items, err := decodeList[T](data, l.key)
	if err != nil {
		return err
	}
	l.items = items
	return nil
}

func (l *listResponse[T]) result() []T {
	if l.items == nil {
		return []T{}
	}
	return l.items
}

// profileList holds either full profiles or bare profile names
type profileList struct {
	items []model.ConfigProfile
}

func (l *profileList) UnmarshalJSON(data []byte) error {
	items, err := decodeProfiles(data)
	if err != nil {
		return err
	}
	l.items = items
	return nil
}

func (l *profileList) profiles() []model.ConfigProfile {
	if l.items == nil {
		return []model.ConfigProfile{}
	}
	return l.items
}

// decodeList accepts either a bare array or an object holding the array under key
func decodeList[T any](raw json.RawMessage, key string) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}

	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", key, err)
		}
		return items, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode %s envelope: %w", key, err)
	}
	inner, ok := envelope[key]
	if !ok {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(inner, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// decodeProfiles also accepts a plain list of profile names
func decodeProfiles(raw json.RawMessage) ([]model.ConfigProfile, error) {
	if profiles, err := decodeList[model.ConfigProfile](raw, "profiles"); err == nil {
		return profiles, nil
	}

	names, err := decodeList[string](raw, "profiles")
	if err == nil {
		profiles := make([]model.ConfigProfile, 0, len(names))
		for _, name := range names {
			profiles = append(profiles, model.ConfigProfile{Name: name})
		}
		return profiles, nil
	}

	return nil, fmt.Errorf("failed to decode profiles: %w", err)
}
