// CLAUDE:SUMMARY Structured ingestion errors: stage-tagged codes, classification, and recovery recommendations.
// Package faults defines the structured error taxonomy for the ingestion
// pipeline. Every stage failure is expressed as a *faults.Error carrying a
// stable code and the stage that produced it, so callers never see a raw
// collaborator error.
package faults

import (
	"errors"
	"fmt"
)

// Code identifies a stable error category.
type Code string

const (
	CodeUnsupportedType  Code = "UNSUPPORTED_TYPE"
	CodeFetchFailed      Code = "FETCH_FAILED"
	CodeTimeout          Code = "TIMEOUT"
	CodeAccessDenied     Code = "ACCESS_DENIED"
	CodeRateLimited      Code = "RATE_LIMITED"
	CodeProcessingFailed Code = "PROCESSING_FAILED"
	CodeStorageFailed    Code = "STORAGE_FAILED"
	CodeDuplicateContent Code = "DUPLICATE_CONTENT"
	CodeDatabaseError    Code = "DATABASE_ERROR"
	CodeUnknown          Code = "UNKNOWN_ERROR"
)

// Stage names one step of the ingestion pipeline.
type Stage string

const (
	StageDetect  Stage = "detect"
	StageFetch   Stage = "fetch"
	StageProcess Stage = "process"
	StageStore   Stage = "store"
	StageIndex   Stage = "index"
)

// Error is a stage-tagged, coded ingestion error.
type Error struct {
	Code    Code
	Stage   Stage
	Message string
	Details map[string]any
	Err     error // wrapped cause, nil for synthesized errors
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// New builds a synthesized error with no underlying cause.
func New(code Code, stage Stage, msg string) *Error {
	return &Error{Code: code, Stage: stage, Message: msg}
}

// Wrap tags an underlying error with a code and stage. The raw error stays
// reachable through Unwrap but its message is absorbed into Message.
func Wrap(code Code, stage Stage, err error) *Error {
	return &Error{Code: code, Stage: stage, Message: err.Error(), Err: err}
}

// WithDetail attaches a key-value detail and returns the same error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 2)
	}
	e.Details[key] = value
	return e
}

// AsError extracts a *faults.Error from err, or wraps it as UNKNOWN_ERROR.
func AsError(err error, stage Stage) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return Wrap(CodeUnknown, stage, err)
}

// Database wraps a relational-store failure. Initialization failures are
// fatal to the caller; query failures propagate with the same code.
func Database(err error) *Error {
	return &Error{Code: CodeDatabaseError, Message: err.Error(), Err: err}
}
