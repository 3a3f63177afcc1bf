package workerpool_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/maxg/didit-sub000/internal/coordinator"
	"github.com/maxg/didit-sub000/internal/types"
	"github.com/maxg/didit-sub000/internal/workerpool"
	"github.com/maxg/didit-sub000/internal/workflow"
	mockworkflow "github.com/maxg/didit-sub000/internal/workflow/mock"
)

// Records concurrency and blocks each build until released
type fakeBuilder struct {
	release chan struct{}
	started chan types.Spec
	running int
	peak    int
	mu      sync.Mutex
}

func newFakeBuilder(blocking bool) *fakeBuilder {
	b := &fakeBuilder{started: make(chan types.Spec, 10)}
	if blocking {
		b.release = make(chan struct{})
	}
	return b
}

func (b *fakeBuilder) Run(_ context.Context, spec types.Spec, onProgress func(types.Progress)) *types.BuildRecord {
	b.mu.Lock()
	b.running++
	b.peak = max(b.peak, b.running)
	b.mu.Unlock()

	b.started <- spec
	onProgress(types.Progress{Message: "Checked out " + spec.Rev, Rev: spec.Rev})
	if b.release != nil {
		<-b.release
	}

	b.mu.Lock()
	b.running--
	b.mu.Unlock()
	return &types.BuildRecord{Spec: spec, CompileSucceeded: true}
}

func (b *fakeBuilder) Peak() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peak
}

func spec(user, rev string) types.Spec {
	return types.Spec{Kind: "labs", Proj: "lab1", Users: []string{user}, Rev: rev}
}

// Coordinator and pool sharing an in-memory workflow service
func harness(t *testing.T, builder workerpool.Builder, concurrency int64) (*coordinator.Coordinator, *workerpool.Pool) {
	t.Helper()
	ctx := context.Background()
	svc := workflow.NewMemory(workflow.Options{PollTimeout: 100 * time.Millisecond})

	c, err := coordinator.New(svc, coordinator.Options{Identity: "coordinator"})
	require.NoError(t, err)
	require.NoError(t, c.Register(ctx))
	go func() { _ = c.Run(ctx) }()
	t.Cleanup(func() {
		c.Close()
		<-c.Done()
	})

	pool, err := workerpool.New(svc, builder, workerpool.Options{Concurrency: concurrency, Identity: "worker-1"})
	require.NoError(t, err)
	go func() { _ = pool.Run(ctx) }()
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = pool.Shutdown(shutdownCtx)
	})
	return c, pool
}

func TestPool(t *testing.T) {
	t.Run("Builds", func(t *testing.T) {
		ctx := context.Background()
		builder := newFakeBuilder(false)
		c, _ := harness(t, builder, 2)

		monitor, err := c.StartBuild(ctx, spec("alice", "aaaa123"))
		require.NoError(t, err)
		defer monitor.Cancel()

		waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		ev, err := monitor.Wait(waitCtx)
		require.NoError(t, err)
		assert.Equal(t, types.BuildEventDone, ev.Type)
		assert.Equal(t, spec("alice", "aaaa123"), ev.Record.Spec)
		assert.True(t, ev.Record.CompileSucceeded)
	})

	t.Run("BoundedConcurrency", func(t *testing.T) {
		ctx := context.Background()
		builder := newFakeBuilder(true)
		c, _ := harness(t, builder, 1)

		var monitors []*coordinator.Monitor
		for _, s := range []types.Spec{spec("alice", "aaaa123"), spec("bob", "bbbb456")} {
			m, err := c.StartBuild(ctx, s)
			require.NoError(t, err)
			defer m.Cancel()
			monitors = append(monitors, m)
		}

		<-builder.started
		select {
		case <-builder.started:
			t.Fatal("second build started while the only slot was busy")
		case <-time.After(300 * time.Millisecond):
		}

		close(builder.release)
		<-builder.started

		waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		for _, m := range monitors {
			ev, err := m.Wait(waitCtx)
			require.NoError(t, err)
			assert.Equal(t, types.BuildEventDone, ev.Type)
		}
		assert.Equal(t, 1, builder.Peak())
	})

	t.Run("ShutdownWaitsForBuilds", func(t *testing.T) {
		ctx := context.Background()
		builder := newFakeBuilder(true)
		c, pool := harness(t, builder, 2)

		m, err := c.StartBuild(ctx, spec("alice", "aaaa123"))
		require.NoError(t, err)
		defer m.Cancel()
		<-builder.started

		short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		require.Error(t, pool.Shutdown(short))

		close(builder.release)
		long, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		require.NoError(t, pool.Shutdown(long))
	})
}

func TestHandle(t *testing.T) {
	// Serves `task` once, then nothing
	serve := func(svc *mockworkflow.MockService, task *workflow.ActivityTask) {
		first := svc.EXPECT().
			PollForActivityTask(gomock.Any(), coordinator.BuildTaskList, "worker-1").
			Return(task, nil)
		svc.EXPECT().
			PollForActivityTask(gomock.Any(), coordinator.BuildTaskList, "worker-1").
			DoAndReturn(func(context.Context, string, string) (*workflow.ActivityTask, error) {
				time.Sleep(10 * time.Millisecond)
				return nil, nil
			}).
			After(first).
			AnyTimes()
	}

	run := func(t *testing.T, svc workflow.Service, builder workerpool.Builder, done <-chan struct{}) {
		t.Helper()
		pool, err := workerpool.New(svc, builder, workerpool.Options{Identity: "worker-1"})
		require.NoError(t, err)
		go func() { _ = pool.Run(context.Background()) }()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("task was not answered")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, pool.Shutdown(ctx))
	}

	t.Run("MalformedInput", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mockworkflow.NewMockService(ctrl)
		serve(svc, &workflow.ActivityTask{Token: "tok", WorkflowID: "w1", Input: "nope"})

		done := make(chan struct{})
		svc.EXPECT().
			RespondActivityTaskFailed(gomock.Any(), "tok", "malformed build input", gomock.Any()).
			DoAndReturn(func(context.Context, string, string, string) error {
				close(done)
				return nil
			})

		run(t, svc, newFakeBuilder(false), done)
	})

	t.Run("SignalFailureIsNotFatal", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mockworkflow.NewMockService(ctrl)
		serve(svc, &workflow.ActivityTask{
			Token:      "tok",
			WorkflowID: "w1",
			Input:      `{"kind":"labs","proj":"lab1","users":["alice"],"rev":"aaaa123"}`,
		})

		svc.EXPECT().
			SignalWorkflow(gomock.Any(), "w1", coordinator.ProgressSignal, gomock.Any()).
			Return(errors.New("unavailable"))

		done := make(chan struct{})
		svc.EXPECT().
			RespondActivityTaskCompleted(gomock.Any(), "tok", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, result string) error {
				assert.Contains(t, result, `"compile":true`)
				close(done)
				return nil
			})

		run(t, svc, newFakeBuilder(false), done)
	})
}

func TestIdentity(t *testing.T) {
	assert.NotEmpty(t, workerpool.Identity())
}
