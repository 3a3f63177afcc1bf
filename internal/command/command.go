package command

import (
	"context"
	"io"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/maxg/didit-sub000/internal/diditerrors"
)

var tracer = otel.Tracer("github.com/maxg/didit-sub000/internal/command")

type Result struct {
	Cmd      []string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Turns a non-zero exit into an error carrying the process' stderr as its message
func (r *Result) Check() error {
	if r.ExitCode == 0 {
		return nil
	}

	msg := strings.TrimSpace(string(r.Stderr))
	if msg == "" {
		msg = strings.Join(r.Cmd, " ")
	}
	return diditerrors.ExitError{Code: r.ExitCode, Message: msg}
}

type Command struct {
	Stdin io.Reader
	// When set, stdout streams here instead of being captured
	Stdout  io.Writer
	Program string
	// Working directory, current directory if empty
	Dir string
	// Added to the parent environment
	Env  []string
	Args []string
	// Start only: expose a writable stdin on the process
	PipeStdin bool
}

func New(program string, args ...string) *Command {
	return &Command{
		Program: program,
		Args:    args,
	}
}

// Sets the working directory
func (c *Command) In(dir string) *Command {
	c.Dir = dir
	return c
}

// Adds `KEY=value` environment entries
func (c *Command) WithEnv(env ...string) *Command {
	c.Env = append(c.Env, env...)
	return c
}

func (c *Command) argv() []string {
	executed := make([]string, 0, len(c.Args)+1)
	executed = append(executed, c.Program)
	executed = append(executed, c.Args...)
	return executed
}

//go:generate mockgen -destination ./mock/mock.go -package mock . Executor

// Runs a command to completion
type Executor interface {
	Execute(ctx context.Context, cmd *Command) (*Result, error)
}

// Starts a command without waiting for it, for streaming pipelines
type Starter interface {
	Start(ctx context.Context, cmd *Command) (*Process, error)
}

type Runner interface {
	Executor
	Starter
}
