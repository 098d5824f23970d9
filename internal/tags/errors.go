package tags

import "fmt"

// Code identifies a tag-catalog error category. This family is separate from
// the pipeline error taxonomy on purpose: tag operations are caller-facing
// CRUD, not stage failures.
type Code string

const (
	CodeTagExists         Code = "TAG_EXISTS"
	CodeTagNotFound       Code = "TAG_NOT_FOUND"
	CodeParentNotFound    Code = "PARENT_NOT_FOUND"
	CodeCircularReference Code = "CIRCULAR_REFERENCE"
	CodePathTooDeep       Code = "TAG_PATH_TOO_DEEP"
)

// Error is a coded tag-catalog error.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func coded(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err is a tag error with the given code.
func IsCode(err error, code Code) bool {
	te, ok := err.(*Error)
	return ok && te.Code == code
}
