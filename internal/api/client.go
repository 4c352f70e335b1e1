package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

// StatusError is a non-2xx reply from a projection server.
type StatusError struct {
	StatusCode int
	ResponseError
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets callers test 400 replies against ErrInvalidRequest.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusBadRequest {
		return ErrInvalidRequest
	}
	return nil
}

// Client calls a remote projection server.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)
	return &Client{http: c}
}

func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, http.MethodGet, "/v1/health", nil, &out)
	return out, err
}

func (c *Client) Project(ctx context.Context, req ProjectRequest) (ProjectResponse, error) {
	var out ProjectResponse
	err := c.do(ctx, http.MethodPost, "/v1/project", req, &out)
	return out, err
}

func (c *Client) ProjectGrad(ctx context.Context, req GradRequest) (GradResponse, error) {
	var out GradResponse
	err := c.do(ctx, http.MethodPost, "/v1/project/grad", req, &out)
	return out, err
}

func (c *Client) Batch(ctx context.Context, reqs []ProjectRequest) ([]ProjectResponse, error) {
	var out BatchResponse
	if err := c.do(ctx, http.MethodPost, "/v1/project/batch", BatchRequest{Requests: reqs}, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) Get(ctx context.Context, id string) (ProjectResponse, error) {
	var out ProjectResponse
	err := c.do(ctx, http.MethodGet, "/v1/project/"+id, nil, &out)
	return out, err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	var out DeleteResponse
	return c.do(ctx, http.MethodDelete, "/v1/project/"+id, nil, &out)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var apiErr ErrorResponse
	r := c.http.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&apiErr)
	if body != nil {
		r.SetBody(body)
	}
	resp, err := r.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return &StatusError{StatusCode: resp.StatusCode(), ResponseError: apiErr.Error}
	}
	return nil
}
