package grader

import (
	"maps"

	"github.com/maxg/didit-sub000/internal/types"
)

type suiteKey struct {
	pkg  string
	name string
}

// Groups rows by suite, in order of first appearance
func group(rows []Row) ([]suiteKey, map[suiteKey][]Row) {
	order := []suiteKey{}
	byKey := map[suiteKey][]Row{}
	for _, r := range rows {
		k := suiteKey{pkg: r.Package, name: r.Class}
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], r)
	}
	return order, byKey
}

func gradeSuite(k suiteKey, rows []Row, suites map[suiteKey]types.TestSuite) types.GradedSuite {
	graded := types.GradedSuite{
		Package:   k.pkg,
		Name:      k.name,
		TestCases: make([]types.GradedCase, 0, len(rows)),
	}

	suite, found := suites[k]
	if found {
		graded.Properties = maps.Clone(suite.Properties)
	} else {
		graded.Missing = true
	}

	cases := map[string]types.TestCase{}
	for _, c := range suite.TestCases {
		if _, dup := cases[c.Name]; !dup {
			cases[c.Name] = c
		}
	}

	for _, r := range rows {
		tc, ok := cases[r.Test]
		if !ok {
			tc = types.TestCase{Name: r.Test, ClassName: qualified(k), Outcome: types.OutcomeMissing}
		}

		grade := types.CaseGrade{Pass: tc.Outcome == types.OutcomePass}
		if r.Points != nil {
			grade.OutOf = *r.Points
			if grade.Pass {
				grade.Score = *r.Points
			}
		}
		graded.TestCases = append(graded.TestCases, types.GradedCase{TestCase: tc, Grade: grade})
	}
	return graded
}

func qualified(k suiteKey) string {
	if k.pkg == "" {
		return k.name
	}
	return k.pkg + "." + k.name
}

// Scores `suites` against `rubric`. Graded and ungraded suites follow rubric order;
// a nil rubric gives an empty report.
func Grade(spec types.Spec, rubric *Rubric, suites []types.TestSuite) *types.GradeReport {
	report := &types.GradeReport{
		Spec:       spec,
		TestSuites: []types.GradedSuite{},
		Ungraded:   []types.GradedSuite{},
	}
	if rubric == nil {
		return report
	}

	bySuite := make(map[suiteKey]types.TestSuite, len(suites))
	for _, s := range suites {
		k := suiteKey{pkg: s.Package, name: s.Name}
		if _, dup := bySuite[k]; !dup {
			bySuite[k] = s
		}
	}

	var graded, ungraded []Row
	for _, r := range rubric.Rows {
		if r.Graded() {
			graded = append(graded, r)
		} else {
			ungraded = append(ungraded, r)
		}
	}

	order, rows := group(graded)
	for _, k := range order {
		gs := gradeSuite(k, rows[k], bySuite)
		for _, c := range gs.TestCases {
			report.Score += c.Grade.Score
			report.OutOf += c.Grade.OutOf
		}
		report.TestSuites = append(report.TestSuites, gs)
	}

	order, rows = group(ungraded)
	for _, k := range order {
		report.Ungraded = append(report.Ungraded, gradeSuite(k, rows[k], bySuite))
	}

	return report
}
