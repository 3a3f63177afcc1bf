package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxg/didit-sub000/internal/pipeline"
)

func constant(v any) func(context.Context, pipeline.Outcomes) (any, error) {
	return func(context.Context, pipeline.Outcomes) (any, error) {
		return v, nil
	}
}

func failing(err error) func(context.Context, pipeline.Outcomes) (any, error) {
	return func(context.Context, pipeline.Outcomes) (any, error) {
		return nil, err
	}
}

func TestNewGraph(t *testing.T) {
	t.Run("ForwardReference", func(t *testing.T) {
		_, err := pipeline.NewGraph(
			pipeline.Step{Name: "a", Hard: []string{"b"}, Run: constant(1)},
			pipeline.Step{Name: "b", Run: constant(2)},
		)
		require.Error(t, err)
	})

	t.Run("Duplicate", func(t *testing.T) {
		_, err := pipeline.NewGraph(
			pipeline.Step{Name: "a", Run: constant(1)},
			pipeline.Step{Name: "a", Run: constant(2)},
		)
		require.Error(t, err)
	})

	t.Run("NoBody", func(t *testing.T) {
		_, err := pipeline.NewGraph(pipeline.Step{Name: "a"})
		require.Error(t, err)
	})
}

func TestExecute(t *testing.T) {
	t.Run("PassesValues", func(t *testing.T) {
		g, err := pipeline.NewGraph(
			pipeline.Step{Name: "a", Run: constant(2)},
			pipeline.Step{Name: "b", Run: constant(3)},
			pipeline.Step{Name: "sum", Hard: []string{"a", "b"}, Run: func(_ context.Context, in pipeline.Outcomes) (any, error) {
				return pipeline.Value[int](in, "a") + pipeline.Value[int](in, "b"), nil
			}},
		)
		require.NoError(t, err)

		out := g.Execute(context.Background())
		assert.Equal(t, pipeline.Done, out["sum"].State)
		assert.Equal(t, 5, pipeline.Value[int](out, "sum"))
	})

	t.Run("HardFailureShortCircuitsDownstreamOnly", func(t *testing.T) {
		ran := map[string]bool{}
		var mu sync.Mutex
		mark := func(name string) func(context.Context, pipeline.Outcomes) (any, error) {
			return func(context.Context, pipeline.Outcomes) (any, error) {
				mu.Lock()
				defer mu.Unlock()
				ran[name] = true
				return name, nil
			}
		}

		g, err := pipeline.NewGraph(
			pipeline.Step{Name: "root", Run: failing(errors.New("boom"))},
			pipeline.Step{Name: "child", Hard: []string{"root"}, Run: mark("child")},
			pipeline.Step{Name: "grandchild", Hard: []string{"child"}, Run: mark("grandchild")},
			pipeline.Step{Name: "unrelated", Run: mark("unrelated")},
			pipeline.Step{Name: "soft", Soft: []string{"root"}, Run: mark("soft")},
		)
		require.NoError(t, err)

		out := g.Execute(context.Background())
		assert.Equal(t, pipeline.Failed, out["root"].State)
		assert.EqualError(t, out["root"].Err, "boom")
		assert.ErrorIs(t, out["child"].Err, pipeline.ErrUpstreamFailed)
		assert.ErrorIs(t, out["grandchild"].Err, pipeline.ErrUpstreamFailed)
		assert.Equal(t, pipeline.Done, out["unrelated"].State)
		assert.Equal(t, pipeline.Done, out["soft"].State)
		assert.Equal(t, map[string]bool{"unrelated": true, "soft": true}, ran)
	})

	t.Run("SoftDependencyOrders", func(t *testing.T) {
		var mu sync.Mutex
		var order []string
		record := func(name string) func(context.Context, pipeline.Outcomes) (any, error) {
			return func(context.Context, pipeline.Outcomes) (any, error) {
				mu.Lock()
				defer mu.Unlock()
				order = append(order, name)
				return nil, nil
			}
		}

		for range 20 {
			order = nil
			g, err := pipeline.NewGraph(
				pipeline.Step{Name: "first", Run: record("first")},
				pipeline.Step{Name: "second", Soft: []string{"first"}, Run: record("second")},
			)
			require.NoError(t, err)
			g.Execute(context.Background())
			assert.Equal(t, []string{"first", "second"}, order)
		}
	})

	t.Run("Panic", func(t *testing.T) {
		g, err := pipeline.NewGraph(
			pipeline.Step{Name: "a", Run: func(context.Context, pipeline.Outcomes) (any, error) {
				panic("oops")
			}},
		)
		require.NoError(t, err)

		out := g.Execute(context.Background())
		assert.Equal(t, pipeline.Failed, out["a"].State)
		assert.ErrorContains(t, out["a"].Err, "oops")
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		g, err := pipeline.NewGraph(pipeline.Step{Name: "a", Run: constant(1)})
		require.NoError(t, err)

		out := g.Execute(ctx)
		assert.ErrorIs(t, out["a"].Err, context.Canceled)
	})

	t.Run("ValueOfFailedStep", func(t *testing.T) {
		out := pipeline.Outcomes{"a": {State: pipeline.Failed, Err: errors.New("x")}}
		assert.Equal(t, "", pipeline.Value[string](out, "a"))
		assert.Equal(t, "", pipeline.Value[string](out, "missing"))
	})
}
