package vcs

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/types"
)

// Shallow clone depth that still reaches a revision `behind` commits back from the branch head.
// The revision itself is one more commit.
func CloneDepth(behind, slack int) int {
	return max(behind, 0) + 1 + max(slack, 0)
}

// Clones the student repository into `dir` and checks out `spec.Rev`.
//
// The clone is only as deep as needed: commits between the revision and the branch head are
// counted first so the checkout never falls off the end of the shallow history.
func (r *Repos) Clone(ctx context.Context, spec types.Spec, dir string) (*types.CommitInfo, error) {
	ctx, span := tracer.Start(ctx, "Repos.Clone", trace.WithAttributes(
		attribute.String("spec", spec.String()),
		attribute.String("dir", dir),
	))
	defer span.End()

	path := r.StudentPath(spec)
	if !exists(path) {
		err := fmt.Errorf("%w: %s", ErrNoRepository, path)
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository missing")
		return nil, err
	}

	if spec.Rev == "" {
		err := fmt.Errorf("%w: no revision given for %s", ErrNoRevision, spec)
		span.RecordError(err)
		span.SetStatus(codes.Error, "no revision")
		return nil, err
	}

	if _, err := r.git(ctx, path, nil, "cat-file", "-e", spec.Rev+"^{commit}"); err != nil {
		err = fmt.Errorf("%w: %s", ErrNoRevision, spec.Rev)
		span.RecordError(err)
		span.SetStatus(codes.Error, "revision missing")
		return nil, err
	}

	newer, err := r.Log(ctx, path, Between(spec.Rev, r.opts.Branch))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to count commits")
		return nil, err
	}

	depth := CloneDepth(len(newer), r.opts.CloneSlack)
	span.SetAttributes(attribute.Int("depth", depth))
	logger.Logger.DebugContext(ctx, "cloning", "spec", spec.String(), "depth", depth)

	_, err = r.git(ctx, "", nil,
		"clone", "--quiet", "--no-checkout",
		"--depth", fmt.Sprint(depth),
		"--branch", r.opts.Branch,
		"file://"+path, dir,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to clone")
		return nil, err
	}

	if _, err := r.git(ctx, dir, nil, "checkout", "--quiet", spec.Rev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to checkout")
		return nil, err
	}

	commits, err := r.Log(ctx, dir, Single(spec.Rev))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read commit")
		return nil, err
	}
	if len(commits) != 1 {
		err := fmt.Errorf("%w: %s", ErrNoRevision, spec.Rev)
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit missing after checkout")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "cloned")
	return &commits[0], nil
}
