package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// A started process. Callers write Stdin (when piped) and must call Wait exactly once.
type Process struct {
	// Nil unless the command asked for PipeStdin
	Stdin io.WriteCloser

	cmd     *exec.Cmd
	command *Command
	span    trace.Span
	ctx     context.Context
	stdout  bytes.Buffer
	stderr  bytes.Buffer
}

func (e *ShellExecutor) Start(ctx context.Context, command *Command) (*Process, error) {
	ctx, span := tracer.Start(ctx, "ShellExecutor.Start", trace.WithAttributes(
		attribute.String("program", command.Program),
		attribute.StringSlice("args", command.Args),
		attribute.String("dir", command.Dir),
	))

	p := &Process{command: command, span: span, ctx: ctx}
	p.cmd = e.build(ctx, command)
	p.cmd.Stdin = command.Stdin
	p.cmd.Stdout = &p.stdout
	if command.Stdout != nil {
		p.cmd.Stdout = command.Stdout
	}
	p.cmd.Stderr = &p.stderr

	if command.PipeStdin {
		stdin, err := p.cmd.StdinPipe()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to pipe stdin")
			span.End()
			return nil, err
		}
		p.Stdin = stdin
	}

	if err := p.cmd.Start(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start command")
		span.End()
		return nil, err
	}

	span.AddEvent("started", trace.WithAttributes(attribute.Int("pid", p.cmd.Process.Pid)))
	return p, nil
}

// Waits for exit. A non-zero exit is reported in the result, not as an error.
func (p *Process) Wait() (*Result, error) {
	defer p.span.End()

	err := p.cmd.Wait()
	if err != nil {
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			p.span.RecordError(err)
			p.span.SetStatus(codes.Error, "failed to wait for command")
			return nil, err
		}
	}

	logLines(p.ctx, "stdout", p.stdout.Bytes())
	logLines(p.ctx, "stderr", p.stderr.Bytes())

	p.span.AddEvent("exited", trace.WithAttributes(
		attribute.Int("exitCode", p.cmd.ProcessState.ExitCode()),
	))
	p.span.RecordError(nil)
	p.span.SetStatus(codes.Ok, "process exited")
	return &Result{
		Cmd:      p.command.argv(),
		Stdout:   p.stdout.Bytes(),
		Stderr:   p.stderr.Bytes(),
		ExitCode: p.cmd.ProcessState.ExitCode(),
	}, nil
}
