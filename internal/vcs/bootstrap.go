package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/otiai10/copy"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/types"
)

// Files git init leaves behind that have no business in a served repository
var templateFiles = []string{"description", "hooks/*.sample", "info/exclude"}

// Creates the starting repository for kind/proj from the staff `starting` materials, committed
// as `requester`. Returns the staff revision the materials came from.
func (r *Repos) CreateStartingRepo(ctx context.Context, kind, proj, requester string) (string, error) {
	ctx, span := tracer.Start(ctx, "Repos.CreateStartingRepo", trace.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("proj", proj),
		attribute.String("requester", requester),
	))
	defer span.End()

	bare := r.StartingPath(kind, proj)
	if exists(bare) {
		err := fmt.Errorf("%w: %s", ErrExists, bare)
		span.RecordError(err)
		span.SetStatus(codes.Error, "starting repository exists")
		return "", err
	}

	if r.opts.StagingDir != "" {
		if err := os.MkdirAll(r.opts.StagingDir, 0o755); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to make staging root")
			return "", err
		}
	}
	staging, err := os.MkdirTemp(r.opts.StagingDir, fmt.Sprintf("starting-%s-%s-", kind, proj))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make staging dir")
		return "", err
	}
	grace := r.opts.GracePeriod
	defer time.AfterFunc(grace, func() {
		if err := os.RemoveAll(staging); err != nil {
			logger.Logger.Warn("failed to remove staging dir", "dir", staging, "error", err)
		}
	})

	rev, err := r.export(ctx, kind+"/"+proj+"/starting", staging)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to export starting materials")
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(bare), 0o755); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make repository parent")
		return "", err
	}

	identity := []string{
		"GIT_AUTHOR_NAME=" + requester,
		"GIT_AUTHOR_EMAIL=" + requester + "@didit",
		"GIT_COMMITTER_NAME=" + requester,
		"GIT_COMMITTER_EMAIL=" + requester + "@didit",
	}
	steps := []struct {
		dir  string
		args []string
	}{
		{"", []string{"init", "--quiet", "--bare", "--initial-branch=" + r.opts.Branch, bare}},
		{bare, []string{"config", "receive.denyNonFastForwards", "true"}},
		{staging, []string{"init", "--quiet", "--initial-branch=" + r.opts.Branch}},
		{staging, []string{"add", "--all"}},
		{staging, []string{
			"commit", "--quiet", "--allow-empty",
			"-m", fmt.Sprintf("Starting code for %s/%s (staff %s)", kind, proj, rev),
		}},
		{staging, []string{"push", "--quiet", bare, "HEAD:refs/heads/" + r.opts.Branch}},
	}
	for _, step := range steps {
		if _, err := r.git(ctx, step.dir, identity, step.args...); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to build starting repository")
			return "", err
		}
	}

	if err := stripTemplates(bare); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to strip template files")
		return "", err
	}

	if err := r.perms.StaffOnly(ctx, bare); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to set permissions")
		return "", err
	}

	logger.Logger.InfoContext(ctx, "created starting repository", "path", bare, "staff_rev", rev)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "created starting repository")
	return rev, nil
}

func stripTemplates(bare string) error {
	for _, pattern := range templateFiles {
		matches, err := filepath.Glob(filepath.Join(bare, pattern))
		if err != nil {
			return err
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil {
				return err
			}
		}
	}
	return nil
}

// Creates the student repository named by `spec` as a copy of its starting repository
func (r *Repos) CreateStudentRepo(ctx context.Context, spec types.Spec) (string, error) {
	ctx, span := tracer.Start(ctx, "Repos.CreateStudentRepo", trace.WithAttributes(
		attribute.String("spec", spec.String()),
	))
	defer span.End()

	src := r.StartingPath(spec.Kind, spec.Proj)
	if !exists(src) {
		err := fmt.Errorf("%w: %s", ErrNoRepository, src)
		span.RecordError(err)
		span.SetStatus(codes.Error, "starting repository missing")
		return "", err
	}

	dst := r.StudentPath(spec)
	if exists(dst) {
		err := fmt.Errorf("%w: %s", ErrExists, dst)
		span.RecordError(err)
		span.SetStatus(codes.Error, "student repository exists")
		return "", err
	}

	if err := copy.Copy(src, dst); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to copy starting repository")
		return "", err
	}

	if r.opts.HookTemplate != "" {
		if err := r.installHook(spec, dst); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to install hook")
			return "", err
		}
	}

	if err := r.perms.Writable(ctx, dst, spec.Users); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to set permissions")
		return "", err
	}

	logger.Logger.InfoContext(ctx, "created student repository", "path", dst)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "created student repository")
	return dst, nil
}

func (r *Repos) installHook(spec types.Spec, repo string) error {
	tmpl, err := template.ParseFiles(r.opts.HookTemplate)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		types.Spec
		Semester string
		Users    string
	}{Spec: spec, Semester: r.opts.Semester, Users: spec.UsersJoined()})
	if err != nil {
		return err
	}

	hooks := filepath.Join(repo, "hooks")
	if err := os.MkdirAll(hooks, 0o755); err != nil {
		return err
	}
	//nolint:gosec // G306: hooks must be executable
	return os.WriteFile(filepath.Join(hooks, "post-receive"), buf.Bytes(), 0o755)
}
