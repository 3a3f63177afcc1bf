package types

type (
	CaseGrade struct {
		Pass  bool    `json:"pass"`
		Score float64 `json:"score"`
		OutOf float64 `json:"outof"`
	}

	GradedCase struct {
		TestCase
		Grade CaseGrade `json:"grade"`
	}

	GradedSuite struct {
		Properties map[string]string `json:"properties"`
		Package    string            `json:"package"`
		Name       string            `json:"name"`
		TestCases  []GradedCase      `json:"testcases"`
		// Set when the rubric names a suite the build did not produce
		Missing bool `json:"missing,omitempty"`
	}

	GradeReport struct {
		Spec       Spec          `json:"spec"`
		TestSuites []GradedSuite `json:"testsuites"`
		Ungraded   []GradedSuite `json:"ungraded"`
		Score      float64       `json:"score"`
		OutOf      float64       `json:"outof"`
	}
)
