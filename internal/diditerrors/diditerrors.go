package diditerrors

import (
	"fmt"
)

// Carries an exit code along with an error so the app can exit correctly
type ExitError struct {
	Err  error
	Code int
	// Human readable summary, usually the trimmed stderr of a process
	Message string
}

func (e ExitError) Error() string {
	switch {
	case e.Err == nil && e.Message == "":
		return fmt.Sprintf("exit %d", e.Code)
	case e.Err == nil:
		return fmt.Sprintf("exit %d: %s", e.Code, e.Message)
	default:
		return fmt.Sprintf("exit %d: %s", e.Code, e.Err.Error())
	}
}

func (e ExitError) Unwrap() error {
	return e.Err
}

// Wrap an error with an exit code
func ExitErrorWrap(code int, err error) error {
	return ExitError{Code: code, Err: err}
}

// Attaches the build and pipeline stage an error happened in
type StageError struct {
	Err     error
	BuildID string
	Stage   string
}

func (e StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failed", e.BuildID, e.Stage)
	}
	return fmt.Sprintf("%s: %s: %s", e.BuildID, e.Stage, e.Err.Error())
}

func (e StageError) Unwrap() error {
	return e.Err
}

func StageErrorWrap(buildID, stage string, err error) error {
	return StageError{BuildID: buildID, Stage: stage, Err: err}
}
