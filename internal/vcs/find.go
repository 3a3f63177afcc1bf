package vcs

import (
	"context"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/types"
)

// Empty fields match everything
type RepoQuery struct {
	Kind string
	Proj string
}

func orAny(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

// Student repositories on disk matching `q`, in path order
func (r *Repos) FindRepos(ctx context.Context, q RepoQuery) ([]types.Spec, error) {
	_, span := tracer.Start(ctx, "Repos.FindRepos", trace.WithAttributes(
		attribute.String("kind", q.Kind),
		attribute.String("proj", q.Proj),
	))
	defer span.End()

	pattern := filepath.Join(
		r.opts.StudentRoot,
		r.opts.Semester,
		orAny(q.Kind),
		orAny(q.Proj),
		"*.git",
	)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad repository pattern")
		return nil, err
	}

	specs := make([]types.Spec, 0, len(matches))
	for _, m := range matches {
		users := strings.TrimSuffix(filepath.Base(m), ".git")
		proj := filepath.Dir(m)
		kind := filepath.Dir(proj)
		specs = append(specs, types.Spec{
			Kind:  filepath.Base(kind),
			Proj:  filepath.Base(proj),
			Users: strings.Split(users, "-"),
		})
	}

	span.SetAttributes(attribute.Int("found", len(specs)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "found repositories")
	return specs, nil
}
