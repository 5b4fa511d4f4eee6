// Package taskapi provides an HTTP client for the taskdeck REST API.
package taskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	cfotel "github.com/Strob0t/taskdeck/internal/adapter/otel"
	"github.com/Strob0t/taskdeck/internal/config"
	"github.com/Strob0t/taskdeck/internal/domain/task"
	"github.com/Strob0t/taskdeck/internal/resilience"
	"github.com/Strob0t/taskdeck/internal/service"
)

const apiPrefix = "/api/v1"

// ErrSuperseded is returned by List when a newer List call cancelled it.
var ErrSuperseded = errors.New("taskapi: superseded by a newer list request")

// Client talks to the taskdeck API. Reads are retried with exponential
// backoff; mutations are attempted exactly once.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      resilience.RetryPolicy
	breaker    *resilience.Breaker

	mu         sync.Mutex
	listSeq    uint64
	listCancel context.CancelCauseFunc
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// WithRetry sets the read retry policy.
func WithRetry(p resilience.RetryPolicy) Option { return func(c *Client) { c.retry = p } }

// WithBreaker attaches a circuit breaker to all outgoing HTTP calls.
func WithBreaker(b *resilience.Breaker) Option { return func(c *Client) { c.breaker = b } }

// NewClient creates a task API client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: cfotel.Transport(http.DefaultTransport),
		},
		retry: resilience.RetryPolicy{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewClientFromConfig builds a Client with retry and breaker settings from cfg.
func NewClientFromConfig(cfg config.Client, br config.Breaker) *Client {
	breaker := resilience.NewBreaker(br.MaxFailures, br.Timeout).
		Named("taskapi").
		CountIf(IsServerFault)
	return NewClient(cfg.BaseURL,
		WithHTTPClient(&http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfotel.Transport(http.DefaultTransport),
		}),
		WithRetry(resilience.RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryDelay, MaxDelay: 30 * time.Second}),
		WithBreaker(breaker),
	)
}

// BaseURL returns the API origin the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// List fetches one page of tasks. Starting a List cancels any List still in
// flight on the same Client; the cancelled call returns ErrSuperseded.
func (c *Client) List(ctx context.Context, q task.ListQuery) (*task.ListResult, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	c.mu.Lock()
	if c.listCancel != nil {
		c.listCancel(ErrSuperseded)
	}
	c.listSeq++
	seq := c.listSeq
	c.listCancel = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.listSeq == seq {
			c.listCancel = nil
		}
		c.mu.Unlock()
		cancel(nil)
	}()

	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	if q.Project != "" {
		v.Set("project", q.Project)
	}
	path := apiPrefix + "/tasks"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	var out task.ListResult
	err := c.read(ctx, path, &out)
	if errors.Is(context.Cause(ctx), ErrSuperseded) {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return &out, nil
}

// ListAll walks every page and returns the concatenated tasks.
func (c *Client) ListAll(ctx context.Context, q task.ListQuery) ([]task.Task, error) {
	q.Page = 1
	if q.Limit <= 0 {
		q.Limit = task.MaxPageLimit
	}
	var all []task.Task
	for {
		res, err := c.List(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, res.Tasks...)
		if !res.Pagination.HasNextPage {
			return all, nil
		}
		q.Page++
	}
}

// Get fetches one task.
func (c *Client) Get(ctx context.Context, id string) (*task.Task, error) {
	var out struct {
		Task *task.Task `json:"task"`
	}
	if err := c.read(ctx, apiPrefix+"/tasks/"+url.PathEscape(id), &out); err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return out.Task, nil
}

// Stats fetches file metadata for a task.
func (c *Client) Stats(ctx context.Context, id string) (*task.Stats, error) {
	var out struct {
		Stats *task.Stats `json:"stats"`
	}
	if err := c.read(ctx, apiPrefix+"/tasks/"+url.PathEscape(id)+"/stats", &out); err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	return out.Stats, nil
}

// Create creates a task. A non-empty idempotencyKey is sent as the
// Idempotency-Key header so a repeated submit replays the first response.
func (c *Client) Create(ctx context.Context, req task.CreateRequest, idempotencyKey string) (*task.Task, error) {
	var out struct {
		Task *task.Task `json:"task"`
	}
	hdr := http.Header{}
	if idempotencyKey != "" {
		hdr.Set("Idempotency-Key", idempotencyKey)
	}
	if err := c.write(ctx, http.MethodPost, apiPrefix+"/tasks", hdr, req, &out); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return out.Task, nil
}

// Update patches a task.
func (c *Client) Update(ctx context.Context, id string, req task.UpdateRequest) (*task.Task, error) {
	var out struct {
		Task *task.Task `json:"task"`
	}
	if err := c.write(ctx, http.MethodPatch, apiPrefix+"/tasks/"+url.PathEscape(id), nil, req, &out); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return out.Task, nil
}

// Delete removes a task.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.write(ctx, http.MethodDelete, apiPrefix+"/tasks/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// Command runs a natural-language command on the server.
func (c *Client) Command(ctx context.Context, message string) (*service.CommandResult, error) {
	var out struct {
		Result *service.CommandResult `json:"result"`
	}
	body := map[string]string{"message": message}
	if err := c.write(ctx, http.MethodPost, apiPrefix+"/commands", nil, body, &out); err != nil {
		return nil, fmt.Errorf("run command: %w", err)
	}
	return out.Result, nil
}

// Health checks if the server is up.
func (c *Client) Health(ctx context.Context) (bool, error) {
	var out map[string]any
	err := c.read(ctx, "/health", &out)
	return err == nil, err
}

// read issues a GET with retries. 4xx answers and an open breaker end the
// retry loop immediately.
func (c *Client) read(ctx context.Context, path string, out any) error {
	_, err := resilience.Retry(ctx, c.retry, func(ctx context.Context) (struct{}, error) {
		err := c.doRequest(ctx, http.MethodGet, path, nil, nil, out)
		if err != nil && !retryable(err) {
			return struct{}{}, resilience.Permanent(err)
		}
		return struct{}{}, err
	})
	return err
}

func (c *Client) write(ctx context.Context, method, path string, hdr http.Header, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}
	return c.doRequest(ctx, method, path, hdr, body, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, hdr http.Header, body []byte, out any) error {
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		for k, vs := range hdr {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return decodeAPIError(resp.StatusCode, data)
		}
		if out != nil && len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}

	if c.breaker != nil {
		return c.breaker.Execute(call)
	}
	return call()
}

func retryable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status >= 500 || ae.Status == http.StatusTooManyRequests
	}
	return true
}
