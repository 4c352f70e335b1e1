package api

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestClientRoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newTestEcho())
	defer srv.Close()
	c := NewClient(srv.URL, 5*time.Second)
	ctx := context.Background()

	health, err := c.Health(ctx)
	if err != nil || health.Status != "ok" {
		t.Fatalf("health: %+v %v", health, err)
	}

	req := ProjectRequest{
		Boundaries:    []int{0, 3, 4},
		Width:         2,
		Features:      [][]float32{{1, 2}, {3, 4}, {5, 6}, {7, 8}},
		ContextStart:  -1,
		ContextLength: 3,
	}
	resp, err := c.Project(ctx, req)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if diff := cmp.Diff([]float32{0, 0, 7, 8, 0, 0}, resp.Output[3]); diff != "" {
		t.Fatalf("last row mismatch (-want +got):\n%s", diff)
	}

	got, err := c.Get(ctx, resp.ID)
	if err != nil || got.ID != resp.ID {
		t.Fatalf("get: %+v %v", got, err)
	}
	if err := c.Delete(ctx, resp.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var se *StatusError
	if _, err := c.Get(ctx, resp.ID); !errors.As(err, &se) || se.StatusCode != 404 {
		t.Fatalf("get deleted: %v", err)
	}

	grad, err := c.ProjectGrad(ctx, GradRequest{
		ProjectRequest: req,
		OutputGrad:     [][]float32{{1, 1, 1, 1, 1, 1}, {1, 1, 1, 1, 1, 1}, {1, 1, 1, 1, 1, 1}, {1, 1, 1, 1, 1, 1}},
	})
	if err != nil {
		t.Fatalf("grad: %v", err)
	}
	if diff := cmp.Diff([][]float32{{2, 2}, {3, 3}, {2, 2}, {1, 1}}, grad.InputGrad); diff != "" {
		t.Fatalf("input gradient mismatch (-want +got):\n%s", diff)
	}

	batch, err := c.Batch(ctx, []ProjectRequest{req, req})
	if err != nil || len(batch) != 2 {
		t.Fatalf("batch: %d %v", len(batch), err)
	}
}

func TestClientInvalidRequest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newTestEcho())
	defer srv.Close()
	c := NewClient(srv.URL, 5*time.Second)

	_, err := c.Project(context.Background(), ProjectRequest{Boundaries: []int{0}, Width: 1})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("got %v, want invalid request", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Param != "context_length" {
		t.Fatalf("unexpected status error %#v", err)
	}
}
