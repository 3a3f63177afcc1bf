package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/maxg/didit-sub000/internal/workflow"
)

type RedisServiceTestSuite struct {
	suite.Suite

	container testcontainers.Container
	client    *redis.Client
	svc       workflow.Service
}

func (s *RedisServiceTestSuite) SetupSuite() {
	ct, err := testcontainers.GenericContainer(s.T().Context(), testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	s.Require().NoError(err)
	s.container = ct

	endpoint, err := ct.Endpoint(s.T().Context(), "")
	s.Require().NoError(err)
	s.client = redis.NewClient(&redis.Options{Addr: endpoint})
}

func (s *RedisServiceTestSuite) SetupTest() {
	s.svc = workflow.NewRedis(s.client, workflow.Options{
		Domain:      uuid.NewString(),
		PollTimeout: 2 * time.Second,
	})
	s.Require().NoError(s.svc.RegisterWorkflowType(s.T().Context(), buildType))
	s.Require().NoError(s.svc.RegisterActivityType(s.T().Context(), runType))
}

func (s *RedisServiceTestSuite) TearDownSuite() {
	s.Require().NoError(s.client.Close())
	s.Require().NoError(testcontainers.TerminateContainer(s.container))
}

func (s *RedisServiceTestSuite) start(id string) {
	_, err := s.svc.StartWorkflow(s.T().Context(), workflow.StartRequest{ID: id, Type: buildType, TaskList: "decide"})
	s.Require().NoError(err)
}

func (s *RedisServiceTestSuite) TestRoundTrip() {
	ctx := s.T().Context()
	s.start("w1")

	_, err := s.svc.StartWorkflow(ctx, workflow.StartRequest{ID: "w1", Type: buildType, TaskList: "decide"})
	s.Require().True(errors.Is(err, workflow.ErrAlreadyStarted))

	task, err := s.svc.PollForDecisionTask(ctx, "decide", "coordinator")
	s.Require().NoError(err)
	s.Require().NotNil(task)
	s.Equal(workflow.WorkflowExecutionStarted, task.Events[0].Type)
	s.Require().NoError(s.svc.RespondDecisionTaskCompleted(ctx, task.Token, []workflow.Decision{scheduleRun("a1")}))

	activity, err := s.svc.PollForActivityTask(ctx, "work", "worker")
	s.Require().NoError(err)
	s.Require().NotNil(activity)
	s.Equal("payload", activity.Input)
	s.Require().NoError(s.svc.RespondActivityTaskCompleted(ctx, activity.Token, "done"))

	task, err = s.svc.PollForDecisionTask(ctx, "decide", "coordinator")
	s.Require().NoError(err)
	s.Require().NotNil(task)
	s.Equal(workflow.ActivityTaskCompleted, task.Events[0].Type)
	s.Equal("done", task.Events[0].Input)
	s.Require().NoError(s.svc.RespondDecisionTaskCompleted(ctx, task.Token, []workflow.Decision{{Type: workflow.CompleteWorkflowExecution}}))

	completed, err := s.svc.CountClosedWorkflows(ctx, workflow.Filter{Statuses: []workflow.CloseStatus{workflow.StatusCompleted}})
	s.Require().NoError(err)
	s.Equal(1, completed)
}

func (s *RedisServiceTestSuite) TestPollTimesOut() {
	task, err := s.svc.PollForDecisionTask(s.T().Context(), "decide", "coordinator")
	s.Require().NoError(err)
	s.Nil(task)
}

func (s *RedisServiceTestSuite) TestConcurrentSignals() {
	ctx := s.T().Context()
	s.start("w1")

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.svc.SignalWorkflow(context.Background(), "w1", "progress", "tick"))
		}()
	}
	wg.Wait()

	task, err := s.svc.PollForDecisionTask(ctx, "decide", "coordinator")
	s.Require().NoError(err)
	s.Require().NotNil(task)

	signals := 0
	for _, ev := range task.Events {
		if ev.Type == workflow.WorkflowExecutionSignaled {
			signals++
		}
	}
	s.Equal(10, signals)
}

func TestRedisServiceTestSuite(t *testing.T) {
	suite.Run(t, new(RedisServiceTestSuite))
}
