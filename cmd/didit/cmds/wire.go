package cmds

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/maxg/didit-sub000/internal/buildtool"
	"github.com/maxg/didit-sub000/internal/command"
	"github.com/maxg/didit-sub000/internal/config"
	"github.com/maxg/didit-sub000/internal/coordinator"
	"github.com/maxg/didit-sub000/internal/permissions"
	"github.com/maxg/didit-sub000/internal/pipeline"
	"github.com/maxg/didit-sub000/internal/store"
	"github.com/maxg/didit-sub000/internal/sweep"
	"github.com/maxg/didit-sub000/internal/upload"
	"github.com/maxg/didit-sub000/internal/vcs"
	"github.com/maxg/didit-sub000/internal/workerpool"
	"github.com/maxg/didit-sub000/internal/workflow"
)

var errNeedsSharedBackend = errors.New("the memory workflow backend only serves the coordinator process")

// Shared by the workflow backend and the redis intake queue, nil when neither uses redis
func redisClient(c *config.Config) *redis.Client {
	if c.Workflow.Redis == nil {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Workflow.Redis.Address,
		Password: c.Workflow.Redis.Password,
		DB:       c.Workflow.Redis.DB,
	})
}

func workflowService(c *config.Config, client *redis.Client) (workflow.Service, error) {
	opts := workflow.Options{
		Domain:           c.Workflow.Domain,
		PollTimeout:      c.Workflow.PollTimeout,
		ActivityTimeout:  c.Workflow.ActivityTimeout,
		ExecutionTimeout: c.Workflow.ExecutionTimeout,
	}
	switch c.Workflow.Backend {
	case config.WorkflowMemory:
		return workflow.NewMemory(opts), nil
	case config.WorkflowRedis:
		return workflow.NewRedis(client, opts), nil
	default:
		return nil, fmt.Errorf("unknown workflow backend %q", c.Workflow.Backend)
	}
}

func newRepos(c *config.Config, runner command.Runner) *vcs.Repos {
	var perms vcs.Permissioner = permissions.Noop{}
	if c.Permissions != nil && c.Permissions.Program != "" {
		perms = permissions.NewProgram(runner, c.Permissions.Program, c.StaffUsers)
	}
	return vcs.New(runner, perms, vcs.Options{
		Semester:     c.Semester,
		StudentRoot:  c.Repos.Student,
		StaffRepo:    c.Repos.Staff,
		StartingRoot: c.Repos.Starting,
		Branch:       c.Repos.Branch,
		StagingDir:   c.Build.Dir,
		HookTemplate: c.Repos.PostReceiveHook,
		CloneSlack:   c.Repos.CloneSlack,
		GracePeriod:  c.Build.GracePeriod,
	})
}

func newStore(c *config.Config) (*store.Store, error) {
	archive, err := upload.FromConfig(c.Archive)
	if err != nil {
		return nil, fmt.Errorf("failed to construct archive uploader: %w", err)
	}
	var opts []store.Option
	if archive != nil {
		opts = append(opts, store.WithArchive(archive))
	}
	return store.NewOnDisk(c.Build.Results, c.Semester, opts...)
}

func newPipeline(c *config.Config, repos *vcs.Repos, results *store.Store, executor command.Executor) *pipeline.Pipeline {
	settings := buildtool.DefaultSettings()
	settings.Program = c.Build.Tool.Program
	if len(c.Build.Tool.Args) > 0 {
		settings.Args = c.Build.Tool.Args
	}
	settings.ReportDir = c.Build.Tool.Reports
	settings.Targets = buildtool.Targets{
		Compile: c.Build.Tool.Compile,
		Public:  c.Build.Tool.Public,
		Hidden:  c.Build.Tool.Hidden,
	}

	return pipeline.New(repos, buildtool.New(executor, settings), results, pipeline.Options{
		WorkRoot:    c.Build.Dir,
		Rubric:      c.Build.Rubric,
		GracePeriod: c.Build.GracePeriod,
	})
}

func newCoordinator(c *config.Config, service workflow.Service) (*coordinator.Coordinator, error) {
	return coordinator.New(service, coordinator.Options{
		Identity:      workerpool.Identity(),
		ErrorBackoff:  c.Workflow.ErrorBackoff,
		StatsInterval: c.Workflow.StatsInterval,
		StatsWindow:   c.Workflow.StatsWindow,
		IntakeTimeout: c.Intake.Timeout,
	})
}

func newPool(c *config.Config, service workflow.Service, builder workerpool.Builder) (*workerpool.Pool, error) {
	return workerpool.New(service, builder, workerpool.Options{
		Concurrency:  c.Worker.Concurrency,
		ErrorBackoff: c.Workflow.ErrorBackoff,
	})
}

func newScheduler(c *config.Config, repos sweep.Repos, results sweep.Results, builds sweep.Builds) *sweep.Scheduler {
	return sweep.New(repos, results, builds, sweep.Options{
		IsStaff:     c.IsStaff,
		Horizon:     c.Sweep.Horizon,
		Concurrency: c.Sweep.Concurrency,
	})
}
