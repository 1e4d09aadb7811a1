// Package linemap maps lines of flattened, preprocessed source text back to the
// original files they came from. The flattened text carries line-marker
// directives (`# 12 "foo.f90"`, `#line 12 "foo.f90"`) that describe the include
// history. A Scanner folds those directives into ordered Records, a Tree indexes
// the records for O(log n) lookup, and a Mapper composes both.
package linemap

import (
	"fmt"
	"strings"
)

// Position is a location in one original source file.
type Position struct {
	File string `json:"file" yaml:"file"`
	Line int    `json:"line" yaml:"line"`
}

// String renders the position as file:line.
func (p Position) String() string {
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

// Stack is the live inclusion chain at a point in the flattened text.
// The outermost (root) file comes first, the active file last.
type Stack []Position

// Last returns the innermost frame. It returns the zero Position for an empty stack.
func (s Stack) Last() Position {
	if len(s) == 0 {
		return Position{}
	}

	return s[len(s)-1]
}

// Depth returns the include depth, i.e. the number of frames.
func (s Stack) Depth() int {
	return len(s)
}

// Clone returns a copy that shares no memory with s.
func (s Stack) Clone() Stack {
	if s == nil {
		return nil
	}

	out := make(Stack, len(s))
	copy(out, s)

	return out
}

// Equal reports whether both stacks hold the same frames in the same order.
func (s Stack) Equal(other Stack) bool {
	if len(s) != len(other) {
		return false
	}

	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}

	return true
}

// String renders the stack innermost first, e.g. "b.f90:3 <- a.f90:1".
func (s Stack) String() string {
	parts := make([]string, 0, len(s))
	for i := len(s) - 1; i >= 0; i-- {
		parts = append(parts, s[i].String())
	}

	return strings.Join(parts, " <- ")
}

// Record states that starting at flattened line Line the active inclusion chain
// is Stack. The innermost frame carries the line number declared by the directive.
type Record struct {
	Line  int   `json:"line"  yaml:"line"`
	Stack Stack `json:"stack" yaml:"stack"`
}

// At returns the flattened line where the record starts to apply.
func (r Record) At() int {
	return r.Line
}

// Compare orders the record against a flattened line number.
// It returns -1, 0 or +1 when the record starts before, at or after line.
func (r Record) Compare(line int) int {
	switch {
	case r.Line < line:
		return -1
	case r.Line > line:
		return 1
	default:
		return 0
	}
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	return Record{Line: r.Line, Stack: r.Stack.Clone()}
}

// resolve computes the stack for a flattened line governed by r.
// A directive declares the line number of the line right after it, hence the -1.
func (r Record) resolve(line int) Stack {
	out := r.Stack.Clone()
	if len(out) == 0 {
		return out
	}

	last := &out[len(out)-1]
	last.Line = last.Line + (line - r.Line) - 1

	return out
}

// cloneRecords deep-copies a record slice.
func cloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}

	return out
}
