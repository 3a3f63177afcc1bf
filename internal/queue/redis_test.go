package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/mock/gomock"

	"github.com/maxg/didit-sub000/internal/queue"
	mockqueue "github.com/maxg/didit-sub000/internal/queue/mock"
	"github.com/maxg/didit-sub000/internal/types"
)

type RedisQueuerTestSuite struct {
	suite.Suite

	container testcontainers.Container
	client    *redis.Client
	queuer    *queue.RedisQueuer
}

func (s *RedisQueuerTestSuite) SetupSuite() {
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

func (s *RedisQueuerTestSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(s.T().Context()).Err())
	s.queuer = queue.NewRedisQueuer(s.client, "didit:requests")
}

func (s *RedisQueuerTestSuite) TearDownSuite() {
	s.Require().NoError(s.client.Close())
	s.Require().NoError(testcontainers.TerminateContainer(s.container))
}

func (s *RedisQueuerTestSuite) TestRoundTrip() {
	ctx := s.T().Context()
	ctrl := gomock.NewController(s.T())
	handler := mockqueue.NewMockMessageHandler(ctrl)

	request := types.BuildRequest{Spec: types.Spec{Kind: "labs", Proj: "lab1", Users: []string{"alice"}}}
	s.Require().NoError(s.queuer.Enqueue(ctx, request))

	handler.EXPECT().
		Handle(gomock.Any(), gomock.Eq([]byte(`{"spec":{"kind":"labs","proj":"lab1","users":["alice"]}}`))).
		Return(nil).
		Times(1)
	s.Require().NoError(s.queuer.Dequeue(ctx, time.Minute, handler))

	s.Equal(int64(0), s.client.LLen(ctx, "didit:requests").Val())
	s.Equal(int64(0), s.client.LLen(ctx, "didit:requests:processing").Val())
}

func (s *RedisQueuerTestSuite) TestFailureRequeues() {
	ctx := s.T().Context()
	s.Require().NoError(s.queuer.Enqueue(ctx, "retry me"))

	handler := queue.HandlerFunc(func(context.Context, []byte) error { return errors.New("busy") })
	s.Require().NoError(s.queuer.Dequeue(ctx, time.Minute, handler))

	s.Equal(int64(1), s.client.LLen(ctx, "didit:requests").Val())
	s.Equal(int64(0), s.client.LLen(ctx, "didit:requests:processing").Val())
}

func (s *RedisQueuerTestSuite) TestPoisonDropped() {
	ctx := s.T().Context()
	s.Require().NoError(s.queuer.Enqueue(ctx, "garbage"))

	handler := queue.HandlerFunc(func(context.Context, []byte) error {
		return queue.WrapPoisonError(errors.New("malformed"))
	})
	s.Require().NoError(s.queuer.Dequeue(ctx, time.Minute, handler))

	s.Equal(int64(0), s.client.LLen(ctx, "didit:requests").Val())
}

func (s *RedisQueuerTestSuite) TestRequeue() {
	ctx := s.T().Context()
	s.Require().NoError(s.client.RPush(ctx, "didit:requests:processing", "a", "b").Err())

	moved, err := s.queuer.Requeue(ctx)
	s.Require().NoError(err)
	s.Equal(2, moved)
	s.Equal([]string{"a", "b"}, s.client.LRange(ctx, "didit:requests", 0, -1).Val())
}

func (s *RedisQueuerTestSuite) TestCanceled() {
	ctx, cancel := context.WithTimeout(s.T().Context(), time.Second)
	defer cancel()

	handler := queue.HandlerFunc(func(context.Context, []byte) error {
		s.Fail("handler should not run")
		return nil
	})
	s.Require().Error(s.queuer.Dequeue(ctx, time.Minute, handler))
}

func TestRedisQueuerTestSuite(t *testing.T) {
	suite.Run(t, new(RedisQueuerTestSuite))
}
