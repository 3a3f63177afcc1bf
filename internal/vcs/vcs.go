package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/maxg/didit-sub000/internal/command"
	"github.com/maxg/didit-sub000/internal/types"
)

var tracer = otel.Tracer("github.com/maxg/didit-sub000/internal/vcs")

var (
	ErrNoRepository = errors.New("repository does not exist")
	ErrNoRevision   = errors.New("revision does not exist")
	ErrPrehistoric  = errors.New("no revision at or before the requested time")
	ErrExists       = errors.New("repository already exists")
	ErrExport       = errors.New("staff export failed")
)

// Delegated directory permissioning
type Permissioner interface {
	// Only staff may read or write `dir`
	StaffOnly(ctx context.Context, dir string) error
	// Only `users` (and staff) may write `dir`
	Writable(ctx context.Context, dir string, users []string) error
}

type Options struct {
	Semester     string
	StudentRoot  string
	StaffRepo    string
	StartingRoot string
	Branch       string
	// Staging trees for starting repositories live under here, os.TempDir() if empty
	StagingDir string
	// Template for student post-receive hooks, none installed if empty
	HookTemplate string
	// Extra commits fetched beyond the computed clone depth
	CloneSlack int
	// Delay before removing staging trees
	GracePeriod time.Duration
}

// Source control operations over the student, staff and starting repositories
type Repos struct {
	runner command.Runner
	perms  Permissioner
	opts   Options
}

func New(runner command.Runner, perms Permissioner, opts Options) *Repos {
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	return &Repos{runner: runner, perms: perms, opts: opts}
}

func (r *Repos) Branch() string {
	return r.opts.Branch
}

func (r *Repos) StudentPath(spec types.Spec) string {
	return filepath.Join(
		r.opts.StudentRoot,
		r.opts.Semester,
		spec.Kind,
		spec.Proj,
		spec.UsersJoined()+".git",
	)
}

func (r *Repos) StartingPath(kind, proj string) string {
	return filepath.Join(r.opts.StartingRoot, r.opts.Semester, kind, proj+".git")
}

// Runs git and turns a non-zero exit into an error
func (r *Repos) git(ctx context.Context, dir string, env []string, args ...string) (*command.Result, error) {
	cmd := command.New("git", args...).In(dir).WithEnv(env...)
	result, err := r.runner.Execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := result.Check(); err != nil {
		return result, fmt.Errorf("git %s: %w", args[0], err)
	}
	return result, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func short(rev string) string {
	rev = strings.TrimSpace(rev)
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}
