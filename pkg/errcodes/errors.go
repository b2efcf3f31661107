package errcodes

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	CodeUnsupportedFormat = "unsupported_format"
	CodeArchiveIO         = "archive_io_error"
	CodeIndexOutOfRange   = "index_out_of_range"
	CodeComicIO           = "comic_io_error"
	CodeSecurityViolation = "security_violation"
	CodeNotFound          = "not_found"
	CodeValidation        = "validation_error"
)

type Error struct {
	Code    string
	Message string
	Cause   error
}

func (err *Error) Error() string {
	if err.Cause != nil {
		return err.Message + ": " + err.Cause.Error()
	}
	return err.Message
}

func (err *Error) Unwrap() error {
	return err.Cause
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.Code = err.Code
	te.Message = err.Message
	te.Cause = err.Cause
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Code == err.Code && te.Message == err.Message
}

// UnsupportedFormat is returned when a file matches none of the ZIP, RAR or PDF
// signatures.
func UnsupportedFormat(path string) error {
	return &Error{
		Code:    CodeUnsupportedFormat,
		Message: fmt.Sprintf("unsupported comic format: %s", path),
	}
}

// ArchiveIO is returned when extracting or rebuilding a container fails.
func ArchiveIO(path string, cause error) error {
	return &Error{
		Code:    CodeArchiveIO,
		Message: fmt.Sprintf("archive processing failed for %s", path),
		Cause:   cause,
	}
}

// IndexOutOfRange names the valid bound so callers can surface it as is.
func IndexOutOfRange(index, count int) error {
	return &Error{
		Code:    CodeIndexOutOfRange,
		Message: fmt.Sprintf("page index %d out of range [0, %d)", index, count),
	}
}

// ComicIO is returned when a comic file could not be moved to its intended
// destination.
func ComicIO(path string, cause error) error {
	return &Error{
		Code:    CodeComicIO,
		Message: fmt.Sprintf("failed to move comic file %s", path),
		Cause:   cause,
	}
}

// SecurityViolation is returned when a computed path would escape dir.
func SecurityViolation(path, dir string) error {
	return &Error{
		Code:    CodeSecurityViolation,
		Message: fmt.Sprintf("path %q resolves outside of %s", path, dir),
	}
}

// NotFound returns an error indicating the given resource doesn't exist.
func NotFound(resource string) error {
	return &Error{
		Code:    CodeNotFound,
		Message: resource + " not found.",
	}
}

func ValidationError(msg string) error {
	return &Error{
		Code:    CodeValidation,
		Message: msg,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsUnsupportedFormat(err error) bool { return CodeOf(err) == CodeUnsupportedFormat }
func IsArchiveIO(err error) bool         { return CodeOf(err) == CodeArchiveIO }
func IsIndexOutOfRange(err error) bool   { return CodeOf(err) == CodeIndexOutOfRange }
func IsComicIO(err error) bool           { return CodeOf(err) == CodeComicIO }
func IsSecurityViolation(err error) bool { return CodeOf(err) == CodeSecurityViolation }
func IsNotFound(err error) bool          { return CodeOf(err) == CodeNotFound }
func IsValidation(err error) bool        { return CodeOf(err) == CodeValidation }
