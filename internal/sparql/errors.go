package sparql

import (
	"errors"
	"fmt"
)

// SyntaxError reports malformed query text.
type SyntaxError struct {
	Offset  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("sparql syntax error at offset %d: %s", e.Offset, e.Message)
}

// UnsupportedError reports well-formed SPARQL that this package does not
// evaluate.
type UnsupportedError struct {
	Feature string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("sparql feature not supported: %s", e.Feature)
}

// IsSyntaxError checks if err is a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// IsUnsupportedError checks if err is an UnsupportedError.
func IsUnsupportedError(err error) bool {
	var ue *UnsupportedError
	return errors.As(err, &ue)
}
