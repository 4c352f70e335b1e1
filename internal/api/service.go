package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/seqwin/internal/compute"
	"github.com/samcharles93/seqwin/internal/lod"
	"github.com/samcharles93/seqwin/internal/logger"
	"github.com/samcharles93/seqwin/internal/seqop"
	"github.com/samcharles93/seqwin/internal/tensor"
	"github.com/samcharles93/seqwin/pkg/seqfile"
)

// MaxBatchRequests bounds the number of projections in one batch call.
const MaxBatchRequests = 64

// Service runs projection requests on a shared compute context.
type Service struct {
	compute compute.Context
	log     logger.Logger
	clock   func() time.Time
}

func NewService(cctx compute.Context, log logger.Logger) *Service {
	if cctx == nil {
		cctx = compute.Serial()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		compute: cctx,
		log:     log,
		clock:   time.Now,
	}
}

func (s *Service) Backend() string { return s.compute.Name() }
func (s *Service) Workers() int    { return s.compute.Workers() }

type prepared struct {
	op    *seqop.Op
	batch seqfile.Batch
}

func (s *Service) prepare(req ProjectRequest) (prepared, error) {
	attrs := seqop.NewAttrs(req.ContextStart, req.ContextLength, req.PaddingTrainable)
	op, err := seqop.New(attrs, s.log)
	if err != nil {
		return prepared{}, newInvalidRequest(attrParam(err), err.Error())
	}
	b, err := seqfile.JSONBatch{
		Boundaries: req.Boundaries,
		Width:      req.Width,
		Features:   req.Features,
		Padding:    req.Padding,
	}.Batch()
	if err != nil {
		param := "features"
		switch {
		case errors.Is(err, lod.ErrEmptyLayout), errors.Is(err, lod.ErrBadStart),
			errors.Is(err, lod.ErrNonMonotonic), errors.Is(err, lod.ErrRowMismatch),
			errors.Is(err, seqfile.ErrMissingSection):
			param = "boundaries"
		case strings.HasPrefix(err.Error(), "padding"):
			param = "padding"
		}
		return prepared{}, newInvalidRequest(param, err.Error())
	}
	if _, _, err := seqop.InferShape(b.Features.R, b.Features.C, attrs); err != nil {
		return prepared{}, newInvalidRequest("context_length", err.Error())
	}
	if want := op.Window().PadRows(); req.PaddingTrainable && b.Padding.R != want {
		return prepared{}, newInvalidRequest("padding", fmt.Sprintf("trainable padding needs %d rows, got %d", want, b.Padding.R))
	}
	return prepared{op: op, batch: b}, nil
}

// Project runs the forward projection for one request.
func (s *Service) Project(ctx context.Context, req ProjectRequest) (ProjectResponse, error) {
	if err := ctx.Err(); err != nil {
		return ProjectResponse{}, err
	}
	p, err := s.prepare(req)
	if err != nil {
		return ProjectResponse{}, err
	}
	b := p.batch
	col, err := p.op.Forward(s.compute, b.Features, b.Layout, b.Padding)
	if err != nil {
		return ProjectResponse{}, opError(err)
	}
	resp := ProjectResponse{
		ID:      newProjectionID(),
		Object:  "projection",
		Created: s.clock().Unix(),
		Backend: s.compute.Name(),
		Rows:    col.R,
		Width:   col.C,
		Output:  rowsOrEmpty(col),
	}
	s.log.Info("projected",
		"id", resp.ID,
		"sequences", b.Layout.NumSeq(),
		"rows", col.R,
		"cols", col.C,
	)
	return resp, nil
}

// Grad returns the gradients of a projection.  Input and padding gradients
// default to requested.
func (s *Service) Grad(ctx context.Context, req GradRequest) (GradResponse, error) {
	if err := ctx.Err(); err != nil {
		return GradResponse{}, err
	}
	p, err := s.prepare(req.ProjectRequest)
	if err != nil {
		return GradResponse{}, err
	}
	b := p.batch
	outGrad, err := seqfile.MatFromRows(req.OutputGrad, p.op.Window().Cols(req.Width))
	if err != nil {
		return GradResponse{}, newInvalidRequest("output_grad", err.Error())
	}
	needInput := boolOr(req.InputGrad, true)
	needPad := boolOr(req.PaddingGrad, true)
	g, err := p.op.Backward(s.compute, b.Features, b.Layout, outGrad, needInput, needPad)
	if err != nil {
		return GradResponse{}, opError(err)
	}
	resp := GradResponse{
		ID:      newProjectionID(),
		Object:  "projection.grad",
		Created: s.clock().Unix(),
	}
	if needInput {
		resp.InputGrad = rowsOrEmpty(g.Input)
	}
	if g.Padding.R > 0 {
		resp.PaddingGrad = seqfile.MatRows(g.Padding)
	}
	s.log.Info("projected gradient",
		"id", resp.ID,
		"sequences", b.Layout.NumSeq(),
		"input_grad", needInput,
		"padding_grad", g.Padding.R > 0,
	)
	return resp, nil
}

// Batch runs independent projections concurrently, keeping request order.
// The first failure cancels the rest.
func (s *Service) Batch(ctx context.Context, reqs []ProjectRequest) ([]ProjectResponse, error) {
	if len(reqs) == 0 {
		return nil, newInvalidRequest("requests", "at least one request is required")
	}
	if len(reqs) > MaxBatchRequests {
		return nil, newInvalidRequest("requests", fmt.Sprintf("at most %d requests per batch, got %d", MaxBatchRequests, len(reqs)))
	}
	out := make([]ProjectResponse, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.compute.Workers()))
	for i, req := range reqs {
		g.Go(func() error {
			resp, err := s.Project(gctx, req)
			if err != nil {
				return fmt.Errorf("requests[%d]: %w", i, err)
			}
			out[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func opError(err error) error {
	switch {
	case errors.Is(err, seqop.ErrShapeMismatch), errors.Is(err, seqop.ErrMissingInput), errors.Is(err, seqop.ErrInvalidAttr):
		return newInvalidRequest("", err.Error())
	default:
		return err
	}
}

func attrParam(err error) string {
	if strings.Contains(err.Error(), "context_start") {
		return "context_start"
	}
	return "context_length"
}

func rowsOrEmpty(m tensor.Mat) [][]float32 {
	rows := seqfile.MatRows(m)
	if rows == nil {
		return [][]float32{}
	}
	return rows
}
