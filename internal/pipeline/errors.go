package pipeline

import (
	"errors"
	"fmt"
)

const (
	CodeFetch     = "fetch"
	CodeStoreInit = "store_init"
	CodeExtract   = "extract"
	CodeStore     = "store"
	CodeReport    = "report"
)

// Error tags a failed run with the stage that failed. Err is the cause and
// stays reachable through errors.Is and errors.As.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func NewFetchError(url string, err error) error {
	return newError(CodeFetch, "download "+url, err)
}

func NewStoreInitError(err error) error {
	return newError(CodeStoreInit, "prepare incident store", err)
}

func NewExtractError(path string, err error) error {
	return newError(CodeExtract, "extract text from "+path, err)
}

func NewStoreError(message string, err error) error {
	return newError(CodeStore, message, err)
}

func NewReportError(message string, err error) error {
	return newError(CodeReport, message, err)
}

// IsCode reports whether err is, or wraps, a pipeline error with code.
func IsCode(err error, code string) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == code
}
