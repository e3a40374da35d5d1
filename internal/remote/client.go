// Package remote talks to the task store's HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"taskdeck/internal/logger"
	"taskdeck/internal/metrics"
	"taskdeck/internal/model"
)

const maxResponseBytes = 4 << 20

// Client is a thin wrapper over the store API. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
	store   CredentialStore
	metrics *metrics.Metrics
}

type Option func(*clientOptions)

type clientOptions struct {
	timeout time.Duration
	base    http.RoundTripper
	metrics *metrics.Metrics
}

// WithTimeout bounds every request, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithTransport replaces the underlying round tripper (the bearer header is still added).
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) { o.base = rt }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *clientOptions) { o.metrics = m }
}

// New builds a client for baseURL (e.g. http://localhost:5000/api). The bearer token is read
// from store on every request and the store is invalidated when the server answers 401.
func New(baseURL string, store CredentialStore, opts ...Option) *Client {
	o := clientOptions{timeout: 15 * time.Second, base: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: o.timeout,
			Transport: &oauth2.Transport{
				Source: NewTokenSource(store),
				Base:   o.base,
			},
		},
		store:   store,
		metrics: o.metrics,
	}
}

// List fetches the complete task set.
func (c *Client) List(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.do(ctx, "list", http.MethodGet, "/todos", nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// Create sends a new task and returns it with the id the server assigned.
func (c *Client) Create(ctx context.Context, fields model.TaskFields) (model.Task, error) {
	var task model.Task
	if err := c.do(ctx, "create", http.MethodPost, "/todos", fields, &task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// Update sends the touched fields of patch. The server only acknowledges, the caller refreshes.
func (c *Client) Update(ctx context.Context, id model.TaskID, patch model.TaskPatch) error {
	return c.do(ctx, "update", http.MethodPut, "/todos/"+id.String(), patch, nil)
}

func (c *Client) Delete(ctx context.Context, id model.TaskID) error {
	return c.do(ctx, "delete", http.MethodDelete, "/todos/"+id.String(), nil, nil)
}

// BulkDelete removes several tasks in one request.
func (c *Client) BulkDelete(ctx context.Context, ids []model.TaskID) error {
	body := struct {
		IDs []model.TaskID `json:"ids"`
	}{IDs: ids}
	return c.do(ctx, "bulk_delete", http.MethodDelete, "/todos/bulk", body, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRemote(op, "error", time.Since(start).Seconds())
		return c.transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.metrics.ObserveRemote(op, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.expire(ctx)
		return ErrSessionExpired
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return rejected(resp.StatusCode, data)
	case readErr != nil:
		return fmt.Errorf("%s: read response: %w", op, ErrNetworkUnavailable)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) transportError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, errNoCredential):
		return ErrSessionExpired
	case ctx.Err() != nil:
		return ctx.Err()
	}
	logger.Debug(ctx, "remote request failed", "op", op, "err", err)
	return fmt.Errorf("%s: %w", op, ErrNetworkUnavailable)
}

func (c *Client) expire(ctx context.Context) {
	if err := c.store.Invalidate(context.WithoutCancel(ctx)); err != nil {
		logger.Error(ctx, err, "invalidate session after 401")
	}
	logger.Warn(ctx, "remote store rejected the credential")
}

func rejected(status int, body []byte) error {
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)
	return &RemoteRejectedError{
		Status:  status,
		Message: strings.TrimSpace(payload.Message),
		Body:    body,
	}
}
