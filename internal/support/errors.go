package support

import "errors"

// Submission errors.
var (
	// ErrSubmissionFailed means the record could not be created in the
	// content source. The payload has been kept for manual follow-up.
	ErrSubmissionFailed = errors.New("submission could not be recorded")
	ErrInvalidInput     = errors.New("invalid input")
)
