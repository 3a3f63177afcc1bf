package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/queue"
	"github.com/maxg/didit-sub000/internal/types"
	"github.com/maxg/didit-sub000/internal/validator"
	"github.com/maxg/didit-sub000/internal/vcs"
)

// Resolves a ref of a student repository to a revision
type Resolver interface {
	Revision(ctx context.Context, spec types.Spec, ref string) (string, error)
}

type intakeHandler struct {
	coordinator *Coordinator
	resolver    Resolver
	validator   validator.CustomValidator
	branch      string
}

func (h *intakeHandler) Handle(ctx context.Context, message []byte) error {
	var request types.BuildRequest
	if err := json.Unmarshal(message, &request); err != nil {
		return queue.WrapPoisonError(fmt.Errorf("malformed build request: %w", err))
	}
	if err := h.validator.Validate(request); err != nil {
		return queue.WrapPoisonError(fmt.Errorf("invalid build request: %w", err))
	}

	spec := request.Spec
	if spec.Rev == "" {
		ref := request.Ref
		if ref == "" {
			ref = h.branch
		}
		rev, err := h.resolver.Revision(ctx, spec, ref)
		if errors.Is(err, vcs.ErrNoRepository) || errors.Is(err, vcs.ErrNoRevision) {
			return queue.WrapPoisonError(err)
		}
		if err != nil {
			return err
		}
		spec = spec.At(rev)
	}

	monitor, err := h.coordinator.StartBuild(ctx, spec)
	if err != nil {
		return err
	}
	// nobody waits on queued requests
	monitor.Cancel()
	logger.Logger.InfoContext(ctx, "accepted build request", "spec", spec.String())
	return nil
}

// Starts builds for requests from `q` until ctx ends or the coordinator closes. Malformed
// requests are dropped.
func (c *Coordinator) Intake(ctx context.Context, q queue.Queuer, resolver Resolver, branch string) error {
	handler := &intakeHandler{coordinator: c, resolver: resolver, validator: validator.Create(), branch: branch}
	for {
		select {
		case <-c.closing:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := q.Dequeue(ctx, c.opts.IntakeTimeout, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Logger.WarnContext(ctx, "build request intake failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.closing:
				return nil
			case <-time.After(c.opts.ErrorBackoff):
			}
		}
	}
}
