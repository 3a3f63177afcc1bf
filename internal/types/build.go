package types

import (
	"time"
)

type Outcome string

const (
	OutcomePass    Outcome = "pass"
	OutcomeFailure Outcome = "failure"
	OutcomeError   Outcome = "error"
	OutcomeMissing Outcome = "missing"
)

type (
	// Structured record of one commit
	CommitInfo struct {
		AuthorTime     time.Time `json:"authortime"`
		CommitterTime  time.Time `json:"committertime"`
		Rev            string    `json:"rev"`
		Author         string    `json:"author"`
		AuthorEmail    string    `json:"authoremail"`
		Committer      string    `json:"committer"`
		CommitterEmail string    `json:"committeremail"`
		Subject        string    `json:"subject"`
	}

	Payload struct {
		ContentType string `json:"contenttype"`
		Data        []byte `json:"data"`
	}

	TestCase struct {
		Payload   *Payload `json:"payload,omitempty"`
		Name      string   `json:"name"`
		ClassName string   `json:"classname"`
		Outcome   Outcome  `json:"outcome"`
		Message   string   `json:"message,omitempty"`
	}

	TestSuite struct {
		Properties map[string]string `json:"properties"`
		Package    string            `json:"package"`
		Name       string            `json:"name"`
		TestCases  []TestCase        `json:"testcases"`
	}

	CompileResult struct {
		Log     string `json:"log"`
		Success bool   `json:"success"`
	}

	TestResult struct {
		Log     string      `json:"log"`
		Suites  []TestSuite `json:"testsuites"`
		Success bool        `json:"success"`
	}

	Score struct {
		Score float64 `json:"score"`
		OutOf float64 `json:"outof"`
	}

	// Full per-stage output, persisted as separate artifacts next to the record
	BuildDetail struct {
		Compile *CompileResult `json:"compile,omitempty"`
		Public  *TestResult    `json:"public,omitempty"`
		Hidden  *TestResult    `json:"hidden,omitempty"`
		Grade   *GradeReport   `json:"grade,omitempty"`
	}

	// Persisted result of one build of one (Spec, rev)
	BuildRecord struct {
		Started          time.Time    `json:"started"`
		Finished         time.Time    `json:"finished"`
		Source           *CommitInfo  `json:"source,omitempty"`
		Grade            *Score       `json:"grade,omitempty"`
		Detail           *BuildDetail `json:"-"`
		StaffRevision    string       `json:"staffrev,omitempty"`
		Error            string       `json:"error,omitempty"`
		Spec             Spec         `json:"spec"`
		CompileSucceeded bool         `json:"compile"`
		PublicSucceeded  bool         `json:"public"`
		HiddenSucceeded  bool         `json:"hidden"`
	}

	// Progress reported by a running pipeline
	Progress struct {
		Message string `json:"message"`
		Rev     string `json:"rev,omitempty"`
		Stage   string `json:"stage,omitempty"`
	}
)

func (r *BuildRecord) Failed() bool {
	return r.Error != ""
}
