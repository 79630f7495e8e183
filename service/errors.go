package service

import "errors"

// Stage and store errors returned synchronously to callers. Remote-call
// failures are never surfaced this way; they are persisted on the
// process as a status/error-kind pair instead.
var (
	// ErrProcessNotFound means the referenced process does not exist.
	ErrProcessNotFound = errors.New("process not found")

	// ErrAlreadyInProgress means a stage-start precondition failed
	// because the process has left the expected status. The caller
	// should back off; no remote call was dispatched.
	ErrAlreadyInProgress = errors.New("stage already started")

	// ErrTriageMissing means report generation was requested before any
	// triage decisions were saved.
	ErrTriageMissing = errors.New("no significant changes saved for this process")

	// ErrDiffResultSet guards the set-once diff artifact.
	ErrDiffResultSet = errors.New("diff result already set")

	// ErrReportResultSet guards the set-at-most-once report artifact.
	ErrReportResultSet = errors.New("report result already set")

	// ErrNotResettable means an operator reset was requested on a
	// process that is not in ERROR.
	ErrNotResettable = errors.New("process is not in an error state")

	// ErrDraftNotReady means a report draft was saved before the report
	// stage completed.
	ErrDraftNotReady = errors.New("report has not been generated yet")
)

// Analysis gateway outcome kinds. Wrapped by the concrete call errors so
// callers classify with errors.Is.
var (
	// ErrRemoteTimeout: the call exceeded its bound, no response.
	ErrRemoteTimeout = errors.New("analysis call timed out")

	// ErrRemoteMalformed: transport succeeded but the payload is missing
	// expected fields.
	ErrRemoteMalformed = errors.New("analysis response is malformed")

	// ErrRemoteFailed: the service answered with a failure.
	ErrRemoteFailed = errors.New("analysis call failed")
)

// ValidationError rejects a triage submission without mutating state.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// AsValidationError reports whether err is a triage validation failure.
func AsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
