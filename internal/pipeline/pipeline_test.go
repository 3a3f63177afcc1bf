package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxg/didit-sub000/internal/buildtool"
	"github.com/maxg/didit-sub000/internal/pipeline"
	"github.com/maxg/didit-sub000/internal/store"
	"github.com/maxg/didit-sub000/internal/types"
	"github.com/maxg/didit-sub000/internal/vcs"
)

var alice = types.Spec{Kind: "labs", Proj: "lab1", Users: []string{"alice"}, Rev: "aaaa123"}

type fakeSource struct {
	cloneErr error
	staffErr error
	// staff rubric exported as grading.csv
	rubric string
	// committed by the student
	student map[string]string
	// shipped with the staff materials
	staff map[string]string
}

func writeFiles(dir string, files map[string]string) error {
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSource) Clone(_ context.Context, spec types.Spec, dir string) (*types.CommitInfo, error) {
	if f.cloneErr != nil {
		return nil, f.cloneErr
	}
	if err := writeFiles(dir, f.student); err != nil {
		return nil, err
	}
	return &types.CommitInfo{Rev: spec.Rev + "0000", Author: "Alice"}, nil
}

func (f *fakeSource) ExportStaff(_ context.Context, _, _, dest string) (string, error) {
	if f.staffErr != nil {
		return "", f.staffErr
	}
	if err := writeFiles(dest, f.staff); err != nil {
		return "", err
	}
	if f.rubric != "" {
		if err := writeFiles(dest, map[string]string{"grading.csv": f.rubric}); err != nil {
			return "", err
		}
	}
	return "5ca1ab1", nil
}

type fakeTool struct {
	// didit.yaml in the tree when compile ran, empty if there was none
	settings string
	compErr  error
	public  *types.TestResult
	hidden  *types.TestResult
	calls   []string
	mu      sync.Mutex
	compile bool
}

func (f *fakeTool) Compile(_ context.Context, dir string) (*types.CompileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "compile")
	if raw, err := os.ReadFile(filepath.Join(dir, buildtool.SettingsFile)); err == nil {
		f.settings = string(raw)
	}
	if f.compErr != nil {
		return nil, f.compErr
	}
	return &types.CompileResult{Success: f.compile, Log: "javac"}, nil
}

func (f *fakeTool) Test(_ context.Context, _ string, target buildtool.Target) (*types.TestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, string(target))
	if target == buildtool.TargetHidden {
		return f.hidden, nil
	}
	return f.public, nil
}

func passing(pkg, name string, tests ...string) types.TestSuite {
	suite := types.TestSuite{Package: pkg, Name: name}
	for _, test := range tests {
		suite.TestCases = append(suite.TestCases, types.TestCase{Name: test, Outcome: types.OutcomePass})
	}
	return suite
}

func newTool() *fakeTool {
	return &fakeTool{
		compile: true,
		public:  &types.TestResult{Success: true, Log: "public", Suites: []types.TestSuite{passing("lab1", "MainTest", "testAdd")}},
		hidden:  &types.TestResult{Success: true, Log: "hidden", Suites: []types.TestSuite{}},
	}
}

func newPipeline(t *testing.T, source pipeline.Source, tool pipeline.Tool) (*pipeline.Pipeline, *store.Store, string) {
	work := t.TempDir()
	results := store.New(afero.NewMemMapFs(), "f24")
	return pipeline.New(source, tool, results, pipeline.Options{
		WorkRoot:    work,
		Rubric:      "grading.csv",
		GracePeriod: 10 * time.Millisecond,
	}), results, work
}

func entries(t *testing.T, dir string) int {
	e, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(e)
}

func TestRun(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		tool := newTool()
		p, results, work := newPipeline(t, &fakeSource{}, tool)

		var progress []types.Progress
		record := p.Run(ctx, alice, func(pr types.Progress) { progress = append(progress, pr) })

		assert.Empty(t, record.Error)
		assert.True(t, record.CompileSucceeded)
		assert.True(t, record.PublicSucceeded)
		assert.True(t, record.HiddenSucceeded)
		assert.Equal(t, "5ca1ab1", record.StaffRevision)
		assert.Equal(t, "aaaa1230000", record.Source.Rev)
		assert.Nil(t, record.Grade, "no rubric means no grade")
		assert.False(t, record.Finished.Before(record.Started))

		require.Len(t, progress, 1)
		assert.Equal(t, "aaaa1230000", progress[0].Rev)

		saved, err := results.LoadBuildDetail(ctx, alice)
		require.NoError(t, err)
		assert.True(t, saved.PublicSucceeded)
		require.NotNil(t, saved.Detail.Grade)
		assert.Empty(t, saved.Detail.Grade.TestSuites)

		assert.Eventually(t, func() bool { return entries(t, work) == 0 }, time.Second, 10*time.Millisecond)
	})

	t.Run("Graded", func(t *testing.T) {
		ctx := context.Background()
		p, _, _ := newPipeline(t, &fakeSource{rubric: "@test,lab1,MainTest,testAdd,3\n@test,lab1,MainTest,testSub,2\n"}, newTool())

		record := p.Run(ctx, alice, nil)
		require.NotNil(t, record.Grade)
		assert.Equal(t, types.Score{Score: 3, OutOf: 5}, *record.Grade)
	})

	t.Run("CompileFailureStillTests", func(t *testing.T) {
		ctx := context.Background()
		tool := newTool()
		tool.compile = false
		tool.public = &types.TestResult{Success: false, Suites: []types.TestSuite{}}
		p, _, _ := newPipeline(t, &fakeSource{rubric: "@test,lab1,MainTest,testAdd,3\n"}, tool)

		var progress []types.Progress
		record := p.Run(ctx, alice, func(pr types.Progress) { progress = append(progress, pr) })

		assert.Empty(t, record.Error)
		assert.False(t, record.CompileSucceeded)
		assert.False(t, record.PublicSucceeded)
		require.NotNil(t, record.Grade)
		assert.Equal(t, types.Score{Score: 0, OutOf: 3}, *record.Grade)
		assert.Contains(t, tool.calls, "hidden")
		require.Len(t, progress, 2)
		assert.Equal(t, "Compilation failed", progress[1].Message)
	})

	t.Run("HiddenAfterPublic", func(t *testing.T) {
		ctx := context.Background()
		tool := newTool()
		p, _, _ := newPipeline(t, &fakeSource{}, tool)

		p.Run(ctx, alice, nil)
		assert.Equal(t, []string{"compile", "public", "hidden"}, tool.calls)
	})

	t.Run("CloneFailure", func(t *testing.T) {
		ctx := context.Background()
		tool := newTool()
		p, results, work := newPipeline(t, &fakeSource{cloneErr: vcs.ErrNoRevision}, tool)

		record := p.Run(ctx, alice, nil)
		assert.Equal(t, "Error fetching student code", record.Error)
		assert.True(t, record.Failed())
		assert.Nil(t, record.Grade)
		assert.Empty(t, tool.calls)
		assert.False(t, record.Started.IsZero())
		assert.False(t, record.Finished.IsZero())

		saved, err := results.LoadBuild(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, "Error fetching student code", saved.Error)

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, entries(t, work), "failed builds keep their working directory")
	})

	t.Run("StaffFailure", func(t *testing.T) {
		ctx := context.Background()
		p, _, _ := newPipeline(t, &fakeSource{staffErr: errors.New("tar: exit 2")}, newTool())

		record := p.Run(ctx, alice, nil)
		assert.Equal(t, "Error fetching staff code", record.Error)
		assert.NotNil(t, record.Source)
	})

	t.Run("ToolFailure", func(t *testing.T) {
		ctx := context.Background()
		tool := newTool()
		tool.compErr = errors.New("exec: ant: not found")
		p, _, _ := newPipeline(t, &fakeSource{}, tool)

		record := p.Run(ctx, alice, nil)
		assert.Equal(t, "Error running compiler", record.Error)
		assert.Equal(t, []string{"compile"}, tool.calls)
	})

	t.Run("MalformedRubric", func(t *testing.T) {
		ctx := context.Background()
		p, _, _ := newPipeline(t, &fakeSource{rubric: "@test,lab1,MainTest,testAdd,many\n"}, newTool())

		record := p.Run(ctx, alice, nil)
		assert.Equal(t, "Error grading", record.Error)
		assert.True(t, record.PublicSucceeded)
		assert.Nil(t, record.Grade)
	})

	t.Run("NonFiniteRubricStillSaves", func(t *testing.T) {
		ctx := context.Background()
		p, results, _ := newPipeline(t, &fakeSource{rubric: "@test,lab1,MainTest,testAdd,NaN\n"}, newTool())

		record := p.Run(ctx, alice, nil)
		assert.Equal(t, "Error grading", record.Error)

		saved, err := results.LoadBuild(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, "Error grading", saved.Error)
		assert.Nil(t, saved.Grade)
	})

	t.Run("StudentCannotSupplyStaffFiles", func(t *testing.T) {
		ctx := context.Background()
		tool := newTool()
		source := &fakeSource{
			student: map[string]string{
				buildtool.SettingsFile: "program: sh\nargs: [-c, 'echo pass > {report}']\n",
				"grading.csv":          "@test,lab1,MainTest,testAdd,100\n",
			},
		}
		p, _, _ := newPipeline(t, source, tool)

		record := p.Run(ctx, alice, nil)
		assert.Empty(t, record.Error)
		assert.Empty(t, tool.settings, "student settings must not reach the build tool")
		assert.Nil(t, record.Grade, "student rubric must not grade the build")
	})

	t.Run("StaffSettingsWin", func(t *testing.T) {
		ctx := context.Background()
		tool := newTool()
		source := &fakeSource{
			student: map[string]string{buildtool.SettingsFile: "program: sh\n"},
			staff:   map[string]string{buildtool.SettingsFile: "program: make\n"},
		}
		p, _, _ := newPipeline(t, source, tool)

		p.Run(ctx, alice, nil)
		assert.Equal(t, "program: make\n", tool.settings)
	})
}
