package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput rejects a submission before any job is created.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownTenant means no signing secret is on file.
	ErrUnknownTenant = errors.New("unknown tenant")
	// ErrUnknownJob means the registry has no record of the id.
	ErrUnknownJob = errors.New("unknown job")
	// ErrJobFinished rejects any mutation of a job in a terminal state.
	ErrJobFinished = errors.New("job already finished")
	// ErrInvalidProgress rejects progress reports outside [0,100].
	ErrInvalidProgress = errors.New("progress out of range")
)

// TransformError is a failure reported by a work function together with
// a stable machine-readable code. Failure callbacks carry it as
// error.code / error.message.
type TransformError struct {
	Code    string
	Message string
}

func (e *TransformError) Error() string {
	return e.Code + ": " + e.Message
}

// Failuref builds a TransformError with a formatted message.
func Failuref(code, format string, args ...any) *TransformError {
	return &TransformError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// FailureDetail maps a work function error to the code and message
// serialized into a failure callback. Errors without a TransformError
// in their chain get the generic TRANSFORM_ERROR code.
func FailureDetail(err error) ErrorDetail {
	var terr *TransformError
	if errors.As(err, &terr) {
		return ErrorDetail{Code: terr.Code, Message: terr.Message}
	}
	return ErrorDetail{Code: "TRANSFORM_ERROR", Message: err.Error()}
}
