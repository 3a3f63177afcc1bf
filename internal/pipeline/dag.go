package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrUpstreamFailed = errors.New("upstream step failed")

type State int

const (
	Pending State = iota
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// Resolution of one step: a value when Done, an error when Failed
type Outcome struct {
	Value any
	Err   error
	State State
}

func done(v any) Outcome {
	return Outcome{State: Done, Value: v}
}

func failed(err error) Outcome {
	return Outcome{State: Failed, Err: err}
}

// Outcomes by step name
type Outcomes map[string]Outcome

// Value of a Done step, or the zero value
func Value[T any](o Outcomes, name string) T {
	var zero T
	out, ok := o[name]
	if !ok || out.State != Done {
		return zero
	}
	v, ok := out.Value.(T)
	if !ok {
		return zero
	}
	return v
}

type Step struct {
	// Receives the outcomes of every declared dependency
	Run  func(ctx context.Context, in Outcomes) (any, error)
	Name string
	// Must be Done before this step runs
	Hard []string
	// Must be resolved, either way, before this step runs
	Soft []string
}

// Fixed set of steps. Dependencies may only name earlier steps, so the graph is acyclic.
type Graph struct {
	index map[string]int
	steps []Step
}

func NewGraph(steps ...Step) (*Graph, error) {
	g := &Graph{steps: steps, index: make(map[string]int, len(steps))}
	for i, s := range steps {
		if s.Run == nil {
			return nil, fmt.Errorf("step %q has no body", s.Name)
		}
		if _, dup := g.index[s.Name]; dup {
			return nil, fmt.Errorf("duplicate step %q", s.Name)
		}
		for _, d := range append(append([]string(nil), s.Hard...), s.Soft...) {
			if _, ok := g.index[d]; !ok {
				return nil, fmt.Errorf("step %q depends on %q which is not declared before it", s.Name, d)
			}
		}
		g.index[s.Name] = i
	}
	return g, nil
}

// Step names in declaration order
func (g *Graph) Names() []string {
	names := make([]string, len(g.steps))
	for i, s := range g.steps {
		names[i] = s.Name
	}
	return names
}

// Runs every step on its own goroutine as soon as its dependencies resolve and returns once
// all steps have resolved. A step whose hard dependency did not finish Done fails with
// ErrUpstreamFailed without running.
func (g *Graph) Execute(ctx context.Context) Outcomes {
	outcomes := make([]Outcome, len(g.steps))
	resolved := make([]chan struct{}, len(g.steps))
	for i := range resolved {
		resolved[i] = make(chan struct{})
	}

	var wg sync.WaitGroup
	for i, step := range g.steps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// outcomes[i] is written before the close and only read after it
			defer close(resolved[i])

			in := make(Outcomes, len(step.Hard)+len(step.Soft))
			var upstream []string
			for _, d := range step.Hard {
				j := g.index[d]
				<-resolved[j]
				in[d] = outcomes[j]
				if outcomes[j].State != Done {
					upstream = append(upstream, d)
				}
			}
			for _, d := range step.Soft {
				j := g.index[d]
				<-resolved[j]
				in[d] = outcomes[j]
			}

			switch {
			case len(upstream) > 0:
				outcomes[i] = failed(fmt.Errorf("%w: %s", ErrUpstreamFailed, strings.Join(upstream, ", ")))
			case ctx.Err() != nil:
				outcomes[i] = failed(ctx.Err())
			default:
				outcomes[i] = run(ctx, step, in)
			}
		}()
	}
	wg.Wait()

	all := make(Outcomes, len(g.steps))
	for i, s := range g.steps {
		all[s.Name] = outcomes[i]
	}
	return all
}

func run(ctx context.Context, step Step, in Outcomes) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failed(fmt.Errorf("step %s panicked: %v", step.Name, r))
		}
	}()

	v, err := step.Run(ctx, in)
	if err != nil {
		return failed(err)
	}
	return done(v)
}
