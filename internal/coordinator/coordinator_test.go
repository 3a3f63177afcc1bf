package coordinator_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/maxg/didit-sub000/internal/coordinator"
	"github.com/maxg/didit-sub000/internal/queue"
	mockqueue "github.com/maxg/didit-sub000/internal/queue/mock"
	"github.com/maxg/didit-sub000/internal/types"
	"github.com/maxg/didit-sub000/internal/vcs"
	"github.com/maxg/didit-sub000/internal/workflow"
	mockworkflow "github.com/maxg/didit-sub000/internal/workflow/mock"
)

func newCoordinator(t *testing.T, svc workflow.Service) *coordinator.Coordinator {
	t.Helper()
	c, err := coordinator.New(svc, coordinator.Options{
		Identity:      "test",
		ErrorBackoff:  10 * time.Millisecond,
		StatsInterval: time.Hour,
		StatsWindow:   time.Hour,
	})
	require.NoError(t, err)
	require.NoError(t, c.Register(context.Background()))
	return c
}

func memoryService() workflow.Service {
	return workflow.NewMemory(workflow.Options{PollTimeout: 100 * time.Millisecond})
}

// Plays a worker: takes one build task, reports progress, completes it with `record`
func work(t *testing.T, svc workflow.Service, record types.BuildRecord) {
	ctx := context.Background()

	var task *workflow.ActivityTask
	for task == nil {
		var err error
		task, err = svc.PollForActivityTask(ctx, coordinator.BuildTaskList, "worker")
		if !assert.NoError(t, err) {
			return
		}
	}

	var spec types.Spec
	assert.NoError(t, json.Unmarshal([]byte(task.Input), &spec))
	assert.Equal(t, record.Spec, spec)

	progress, _ := json.Marshal(types.Progress{Message: "Checked out " + spec.Rev})
	assert.NoError(t, svc.SignalWorkflow(ctx, task.WorkflowID, coordinator.ProgressSignal, string(progress)))

	result, _ := json.Marshal(record)
	assert.NoError(t, svc.RespondActivityTaskCompleted(ctx, task.Token, string(result)))
}

func TestCoordinator(t *testing.T) {
	t.Run("BuildLifecycle", func(t *testing.T) {
		ctx := context.Background()
		svc := memoryService()
		c := newCoordinator(t, svc)
		go func() { _ = c.Run(ctx) }()
		defer func() {
			c.Close()
			<-c.Done()
		}()

		monitor, err := c.StartBuild(ctx, alice)
		require.NoError(t, err)
		defer monitor.Cancel()
		assert.Equal(t, types.NewBuildID(alice), monitor.BuildID())

		observer, err := c.StartBuild(ctx, alice)
		require.NoError(t, err, "a second request observes the running build")
		defer observer.Cancel()

		go work(t, svc, types.BuildRecord{Spec: alice, CompileSucceeded: true})

		var seen []types.BuildEventType
		timeout := time.After(10 * time.Second)
		for {
			select {
			case ev := <-monitor.Events():
				seen = append(seen, ev.Type)
				if !ev.Terminal() {
					continue
				}
				require.NotNil(t, ev.Record)
				assert.True(t, ev.Record.CompileSucceeded)
				// progress may be folded into the completion's decision task
				assert.Equal(t, types.BuildEventStart, seen[0])
				assert.Equal(t, types.BuildEventDone, seen[len(seen)-1])

				waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				ev, err := observer.Wait(waitCtx)
				require.NoError(t, err)
				assert.Equal(t, types.BuildEventDone, ev.Type)
				return
			case <-timeout:
				t.Fatalf("no terminal event, saw %v", seen)
			}
		}
	})

	t.Run("BacksOffOnPollError", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)
		svc := mockworkflow.NewMockService(ctrl)
		svc.EXPECT().RegisterWorkflowType(gomock.Any(), coordinator.BuildWorkflow).Return(nil)
		svc.EXPECT().RegisterActivityType(gomock.Any(), coordinator.BuildActivity).Return(nil)

		c := newCoordinator(t, svc)
		polls := make(chan struct{}, 10)
		svc.EXPECT().
			PollForDecisionTask(gomock.Any(), coordinator.DecisionTaskList, "test").
			DoAndReturn(func(context.Context, string, string) (*workflow.DecisionTask, error) {
				select {
				case polls <- struct{}{}:
				default:
				}
				return nil, errors.New("connection refused")
			}).
			MinTimes(2)

		go func() { _ = c.Run(ctx) }()
		<-polls
		<-polls
		c.Close()

		select {
		case <-c.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("coordinator did not stop")
		}
	})

	t.Run("ContextCanceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		c := newCoordinator(t, memoryService())
		errs := make(chan error, 1)
		go func() { errs <- c.Run(ctx) }()
		cancel()
		assert.ErrorIs(t, <-errs, context.Canceled)
	})
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	svc := mockworkflow.NewMockService(ctrl)
	svc.EXPECT().RegisterWorkflowType(gomock.Any(), gomock.Any()).Return(nil)
	svc.EXPECT().RegisterActivityType(gomock.Any(), gomock.Any()).Return(nil)
	c := newCoordinator(t, svc)

	assert.Nil(t, c.Stats())

	svc.EXPECT().CountOpenWorkflows(gomock.Any(), gomock.Any()).Return(2, nil)
	svc.EXPECT().
		CountClosedWorkflows(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, f workflow.Filter) (int, error) {
			assert.False(t, f.Since.IsZero())
			switch {
			case len(f.Statuses) == 0:
				return 10, nil
			case f.Statuses[0] == workflow.StatusCompleted:
				return 7, nil
			default:
				return 3, nil
			}
		}).
		Times(3)

	require.NoError(t, c.RefreshStats(ctx))
	stats := c.Stats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Open)
	assert.Equal(t, 10, stats.Closed)
	assert.Equal(t, 7, stats.Completed)
	assert.Equal(t, 3, stats.Failed)
	assert.Equal(t, time.Hour, stats.Until.Sub(stats.Since))

	svc.EXPECT().CountOpenWorkflows(gomock.Any(), gomock.Any()).Return(0, errors.New("unavailable"))
	require.Error(t, c.RefreshStats(ctx))
	assert.Equal(t, 2, c.Stats().Open, "failed refresh keeps the previous sample")
}

type fakeResolver struct {
	revs map[string]string
}

func (f fakeResolver) Revision(_ context.Context, spec types.Spec, ref string) (string, error) {
	rev, ok := f.revs[spec.UsersJoined()]
	if !ok {
		return "", vcs.ErrNoRepository
	}
	return rev, nil
}

func TestIntake(t *testing.T) {
	resolver := fakeResolver{revs: map[string]string{"alice": "aaaa123"}}

	// Dequeue hands `message` to the handler once and reports what it returned
	handle := func(t *testing.T, message string) (workflow.Service, error) {
		t.Helper()
		ctx := context.Background()
		ctrl := gomock.NewController(t)
		q := mockqueue.NewMockQueuer(ctrl)
		svc := memoryService()
		c := newCoordinator(t, svc)

		result := make(chan error, 1)
		q.EXPECT().
			Dequeue(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ time.Duration, h queue.MessageHandler) error {
				result <- h.Handle(ctx, []byte(message))
				c.Close()
				return nil
			}).
			Times(1)

		require.NoError(t, c.Intake(ctx, q, resolver, "main"))
		return svc, <-result
	}

	t.Run("StartsBuild", func(t *testing.T) {
		svc, err := handle(t, `{"spec":{"kind":"labs","proj":"lab1","users":["alice"]}}`)
		require.NoError(t, err)

		open, err := svc.CountOpenWorkflows(context.Background(), workflow.Filter{})
		require.NoError(t, err)
		assert.Equal(t, 1, open)
	})

	t.Run("PinnedRevision", func(t *testing.T) {
		_, err := handle(t, `{"spec":{"kind":"labs","proj":"lab1","users":["bob"],"rev":"bbbb456"}}`)
		require.NoError(t, err)
	})

	for name, message := range map[string]string{
		"Malformed":   `{"spec":`,
		"Invalid":     `{"spec":{"kind":"labs","proj":"lab1","users":["Not A User"]}}`,
		"NoUsers":     `{"spec":{"kind":"labs","proj":"lab1","users":[]}}`,
		"UnknownRepo": `{"spec":{"kind":"labs","proj":"lab1","users":["carol"]}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := handle(t, message)
			var pe *queue.PoisonError
			assert.True(t, errors.As(err, &pe), "expected poisoned message, got %v", err)
		})
	}
}
