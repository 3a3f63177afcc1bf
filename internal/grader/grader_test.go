package grader_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxg/didit-sub000/internal/grader"
	"github.com/maxg/didit-sub000/internal/types"
)

const rubricCSV = `package,class,test,points
# public tests
@test,lab1,MainTest,testAdd,2
@test,lab1,MainTest,testSub,3
@test,lab1,HiddenTest,testDiv,5
@test,lab1,MainTest,testStyle,
notes,anything,goes,here
@test,lab1,GoneTest,testAnything,1
`

var alice = types.Spec{Kind: "labs", Proj: "lab1", Users: []string{"alice"}, Rev: "aaaa123"}

func suites() []types.TestSuite {
	return []types.TestSuite{
		{
			Package:    "lab1",
			Name:       "MainTest",
			Properties: map[string]string{"seed": "1"},
			TestCases: []types.TestCase{
				{Name: "testAdd", ClassName: "lab1.MainTest", Outcome: types.OutcomePass},
				{Name: "testSub", ClassName: "lab1.MainTest", Outcome: types.OutcomeFailure, Message: "expected 1"},
				{Name: "testStyle", ClassName: "lab1.MainTest", Outcome: types.OutcomePass},
			},
		},
		{
			Package:   "lab1",
			Name:      "HiddenTest",
			TestCases: []types.TestCase{{Name: "testDiv", ClassName: "lab1.HiddenTest", Outcome: types.OutcomePass}},
		},
		{
			Package:   "lab1",
			Name:      "ExtraTest",
			TestCases: []types.TestCase{{Name: "testExtra", Outcome: types.OutcomePass}},
		},
	}
}

func TestParseRubric(t *testing.T) {
	t.Run("Rows", func(t *testing.T) {
		rubric, err := grader.ParseRubric(strings.NewReader(rubricCSV))
		require.NoError(t, err)
		require.Len(t, rubric.Rows, 5)

		assert.Equal(t, "lab1", rubric.Rows[0].Package)
		assert.Equal(t, "MainTest", rubric.Rows[0].Class)
		assert.Equal(t, "testAdd", rubric.Rows[0].Test)
		require.NotNil(t, rubric.Rows[0].Points)
		assert.Equal(t, 2.0, *rubric.Rows[0].Points)
		assert.False(t, rubric.Rows[3].Graded())
	})

	t.Run("Empty", func(t *testing.T) {
		rubric, err := grader.ParseRubric(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, rubric.Rows)
	})

	t.Run("BadPoints", func(t *testing.T) {
		_, err := grader.ParseRubric(strings.NewReader("@test,lab1,MainTest,testAdd,lots\n"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, grader.ErrMalformedRubric))
	})

	for _, points := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf", "-1"} {
		t.Run("NonFinitePoints/"+points, func(t *testing.T) {
			_, err := grader.ParseRubric(strings.NewReader("@test,lab1,MainTest,testAdd," + points + "\n"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, grader.ErrMalformedRubric))
		})
	}

	t.Run("ShortRow", func(t *testing.T) {
		_, err := grader.ParseRubric(strings.NewReader("@test,lab1\n"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, grader.ErrMalformedRubric))
	})
}

func TestGrade(t *testing.T) {
	rubric, err := grader.ParseRubric(strings.NewReader(rubricCSV))
	require.NoError(t, err)

	t.Run("Scores", func(t *testing.T) {
		report := grader.Grade(alice, rubric, suites())

		assert.Equal(t, alice, report.Spec)
		assert.Equal(t, 7.0, report.Score)
		assert.Equal(t, 11.0, report.OutOf)

		require.Len(t, report.TestSuites, 3)
		assert.Equal(t, "MainTest", report.TestSuites[0].Name)
		assert.Equal(t, "HiddenTest", report.TestSuites[1].Name)
		assert.Equal(t, "GoneTest", report.TestSuites[2].Name)

		main := report.TestSuites[0]
		assert.Equal(t, map[string]string{"seed": "1"}, main.Properties)
		require.Len(t, main.TestCases, 2)
		assert.Equal(t, types.CaseGrade{Pass: true, Score: 2, OutOf: 2}, main.TestCases[0].Grade)
		assert.Equal(t, types.CaseGrade{Pass: false, Score: 0, OutOf: 3}, main.TestCases[1].Grade)
		assert.Equal(t, "expected 1", main.TestCases[1].Message)
	})

	t.Run("MissingSuite", func(t *testing.T) {
		report := grader.Grade(alice, rubric, suites())
		gone := report.TestSuites[2]
		assert.True(t, gone.Missing)
		require.Len(t, gone.TestCases, 1)
		assert.Equal(t, types.OutcomeMissing, gone.TestCases[0].Outcome)
		assert.Equal(t, "lab1.GoneTest", gone.TestCases[0].ClassName)
		assert.Equal(t, types.CaseGrade{Pass: false, Score: 0, OutOf: 1}, gone.TestCases[0].Grade)
	})

	t.Run("Ungraded", func(t *testing.T) {
		report := grader.Grade(alice, rubric, suites())
		require.Len(t, report.Ungraded, 1)
		require.Len(t, report.Ungraded[0].TestCases, 1)
		assert.Equal(t, "testStyle", report.Ungraded[0].TestCases[0].Name)
		assert.Equal(t, types.CaseGrade{Pass: true}, report.Ungraded[0].TestCases[0].Grade)
	})

	t.Run("NoSuites", func(t *testing.T) {
		report := grader.Grade(alice, rubric, nil)
		assert.Equal(t, 0.0, report.Score)
		assert.Equal(t, 11.0, report.OutOf)
		for _, s := range report.TestSuites {
			assert.True(t, s.Missing)
		}
	})

	t.Run("NoRubric", func(t *testing.T) {
		report := grader.Grade(alice, nil, suites())
		assert.Empty(t, report.TestSuites)
		assert.Empty(t, report.Ungraded)
		assert.Equal(t, 0.0, report.OutOf)
	})

	t.Run("Idempotent", func(t *testing.T) {
		first := grader.Grade(alice, rubric, suites())
		second := grader.Grade(alice, rubric, suites())
		assert.Equal(t, first, second)
	})

	t.Run("ScoreBounded", func(t *testing.T) {
		for _, outcome := range []types.Outcome{types.OutcomePass, types.OutcomeFailure, types.OutcomeError, types.OutcomeMissing} {
			in := suites()
			for i := range in {
				for j := range in[i].TestCases {
					in[i].TestCases[j].Outcome = outcome
				}
			}
			report := grader.Grade(alice, rubric, in)
			assert.LessOrEqual(t, report.Score, report.OutOf)
			assert.Equal(t, 11.0, report.OutOf)
		}
	})
}
