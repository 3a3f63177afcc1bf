package vcs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/types"
)

func open(path string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%w: %s", ErrNoRepository, path)
	}
	return repo, err
}

func resolve(repo *git.Repository, ref string) (*plumbing.Hash, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoRevision, ref, err)
	}
	return hash, nil
}

// Current revision of `ref` in the student repository named by `spec`
func (r *Repos) Revision(ctx context.Context, spec types.Spec, ref string) (string, error) {
	_, span := tracer.Start(ctx, "Repos.Revision", trace.WithAttributes(
		attribute.String("spec", spec.String()),
		attribute.String("ref", ref),
	))
	defer span.End()

	repo, err := open(r.StudentPath(spec))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open repository")
		return "", err
	}

	hash, err := resolve(repo, ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve ref")
		return "", err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "resolved ref")
	return hash.String(), nil
}

// Short hash of the current staff head
func (r *Repos) StaffRevision(ctx context.Context) (string, error) {
	_, span := tracer.Start(ctx, "Repos.StaffRevision")
	defer span.End()

	repo, err := open(r.opts.StaffRepo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open staff repository")
		return "", err
	}

	hash, err := resolve(repo, r.opts.Branch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve staff head")
		return "", err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "resolved staff head")
	return short(hash.String()), nil
}

// Most recent commit on the branch whose commit time is not after `when`
func (r *Repos) RevisionAsOf(ctx context.Context, spec types.Spec, when time.Time) (string, error) {
	_, span := tracer.Start(ctx, "Repos.RevisionAsOf", trace.WithAttributes(
		attribute.String("spec", spec.String()),
		attribute.String("when", when.Format(time.RFC3339)),
	))
	defer span.End()

	repo, err := open(r.StudentPath(spec))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open repository")
		return "", err
	}

	head, err := repo.ResolveRevision(plumbing.Revision(r.opts.Branch))
	if err != nil {
		// an empty repository has no branch yet
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "repository has no commits")
		return "", fmt.Errorf("%w: %s", ErrPrehistoric, spec)
	}

	iter, err := repo.Log(&git.LogOptions{From: *head, Until: &when})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to walk log")
		return "", err
	}
	defer iter.Close()

	var best *object.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if best == nil || c.Committer.When.After(best.Committer.When) {
			best = c
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to walk log")
		return "", err
	}

	if best == nil {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "no commit before requested time")
		return "", fmt.Errorf("%w: %s at %s", ErrPrehistoric, spec, when.Format(time.RFC3339))
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "resolved revision")
	return best.Hash.String(), nil
}
