package permissions_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/maxg/didit-sub000/internal/command"
	mockcommand "github.com/maxg/didit-sub000/internal/command/mock"
	"github.com/maxg/didit-sub000/internal/permissions"
)

func TestProgram(t *testing.T) {
	t.Run("Writable", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)
		executor := mockcommand.NewMockExecutor(ctrl)

		executor.EXPECT().
			Execute(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, cmd *command.Command) (*command.Result, error) {
				assert.Equal(t, "/usr/local/bin/didit-acl", cmd.Program)
				assert.Equal(t, []string{"writable", "/repos/a.git", "alice", "bob"}, cmd.Args)
				return &command.Result{ExitCode: 0}, nil
			}).
			Times(1)

		p := permissions.NewProgram(executor, "/usr/local/bin/didit-acl", []string{"zeus"})
		require.NoError(t, p.Writable(ctx, "/repos/a.git", []string{"alice", "bob"}))
	})

	t.Run("StaffOnly", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)
		executor := mockcommand.NewMockExecutor(ctrl)

		executor.EXPECT().
			Execute(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, cmd *command.Command) (*command.Result, error) {
				assert.Equal(t, []string{"staff", "/repos/start.git", "zeus"}, cmd.Args)
				return &command.Result{ExitCode: 0}, nil
			}).
			Times(1)

		p := permissions.NewProgram(executor, "didit-acl", []string{"zeus"})
		require.NoError(t, p.StaffOnly(ctx, "/repos/start.git"))
	})

	t.Run("Failure", func(t *testing.T) {
		ctx := context.Background()
		ctrl := gomock.NewController(t)
		executor := mockcommand.NewMockExecutor(ctrl)

		executor.EXPECT().
			Execute(gomock.Any(), gomock.Any()).
			Return(&command.Result{ExitCode: 1, Stderr: []byte("no such user")}, nil).
			Times(1)

		p := permissions.NewProgram(executor, "didit-acl", nil)
		err := p.Writable(ctx, "/repos/a.git", []string{"mallory"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no such user")
	})
}
