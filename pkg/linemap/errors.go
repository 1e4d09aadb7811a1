package linemap

import (
	"errors"
	"fmt"
)

// Sentinel errors. Construction errors come from Scanner and NewTree,
// ErrOutOfRange from queries.
var (
	// ErrMalformedDirective indicates a directive whose declared line is not a non-negative integer.
	ErrMalformedDirective = errors.New("malformed line directive")
	// ErrEmptySource indicates the input text has no lines.
	ErrEmptySource = errors.New("empty source")
	// ErrUnresolvedIncludeName indicates a directive without a filename while no file is active.
	ErrUnresolvedIncludeName = errors.New("directive has no filename and no file is active")
	// ErrOutOfRange indicates a query line outside the flattened text.
	ErrOutOfRange = errors.New("line out of range")
	// ErrInvalidPattern indicates the directive pattern cannot be compiled or has no capture group.
	ErrInvalidPattern = errors.New("invalid directive pattern")
	// ErrInvalidRecords indicates a record list that cannot cover the flattened text.
	ErrInvalidRecords = errors.New("invalid directive records")
)

// DirectiveError reports a scanner failure at a specific flattened line.
type DirectiveError struct {
	Err  error
	Text string
	Line int
}

// Error implements error.
func (e *DirectiveError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

// Unwrap returns the sentinel error.
func (e *DirectiveError) Unwrap() error {
	return e.Err
}
