package format

import "errors"

// ErrReported marks an error a formatter already printed.
var ErrReported = errors.New("error reported")

type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }
func (e *reportedError) Is(target error) bool { return target == ErrReported }

// Reported wraps err so callers up the stack skip printing it again.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}
