package loader

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Error codes for loading failures.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No spec files found
	ErrCodeParseFailed = "E004" // YAML or CUE syntax/type error
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeFormat      = "E006" // Unknown file extension
	ErrCodeInvalid     = "E101" // Structurally invalid record
	ErrCodeTerm        = "E102" // Unparseable binding term
	ErrCodeBackend     = "E103" // Invalid backend configuration
)

// LoadError reports a file that could not be turned into records.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Pos     token.Pos // CUE position if available
	Err     error
}

func (e *LoadError) Error() string {
	var msg string
	switch {
	case e.Pos.IsValid():
		msg = fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	case e.Path != "":
		msg = fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	default:
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError checks if err is a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// fromCUE converts a CUE error, keeping the first position it reports.
func fromCUE(path string, err error) *LoadError {
	le := &LoadError{Code: ErrCodeParseFailed, Path: path, Message: "invalid CUE"}
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		le.Pos = errs[0].Position()
		le.Message = errs[0].Error()
		return le
	}
	le.Err = err
	return le
}
