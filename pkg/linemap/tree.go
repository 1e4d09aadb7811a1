package linemap

import "fmt"

// leafNone marks an internal node in node.record.
const leafNone = -1

// node is either internal (record == leafNone) covering [start, end) split at
// pivot with start < pivot <= end, or a leaf pointing at one record.
type node struct {
	left, right *node
	pivot       int
	start       int
	end         int
	record      int
}

// Tree is a balanced binary search tree over directive boundaries. It answers
// "which record governs flattened line L" in O(log n) of the record count,
// independent of the text length. A Tree is read-only after NewTree and safe for
// concurrent use.
type Tree struct {
	root    *node
	records []Record
	height  int
}

// NewTree builds a tree over records covering [0, totalLines). Records must be
// non-empty, start at line 0, be strictly increasing, and end before totalLines.
// The tree keeps its own deep copy of records.
func NewTree(records []Record, totalLines int) (*Tree, error) {
	err := validateRecords(records, totalLines)
	if err != nil {
		return nil, err
	}

	tree := &Tree{records: cloneRecords(records)}
	tree.root, tree.height = tree.build(0, len(tree.records), 0, totalLines)

	return tree, nil
}

func validateRecords(records []Record, totalLines int) error {
	if len(records) == 0 {
		return fmt.Errorf("%w: no records", ErrInvalidRecords)
	}

	if records[0].Line != 0 {
		return fmt.Errorf("%w: first record starts at line %d, want 0", ErrInvalidRecords, records[0].Line)
	}

	for i, rec := range records {
		if len(rec.Stack) == 0 {
			return fmt.Errorf("%w: record %d has an empty stack", ErrInvalidRecords, i)
		}

		if i > 0 && rec.Line <= records[i-1].Line {
			return fmt.Errorf("%w: record %d at line %d does not follow line %d",
				ErrInvalidRecords, i, rec.Line, records[i-1].Line)
		}
	}

	last := records[len(records)-1].Line
	if last >= totalLines {
		return fmt.Errorf("%w: record at line %d outside %d lines", ErrInvalidRecords, last, totalLines)
	}

	return nil
}

// build creates the subtree for records[lo:hi) spanning [start, end) and
// returns it with its height. Only index ranges are passed down.
func (t *Tree) build(lo, hi, start, end int) (*node, int) {
	if hi-lo == 1 {
		return &node{start: start, end: end, record: lo}, 1
	}

	mid := lo + (hi-lo)/2
	pivot := t.records[mid].Line

	left, leftHeight := t.build(lo, mid, start, pivot)
	right, rightHeight := t.build(mid, hi, pivot, end)

	return &node{
		left:   left,
		right:  right,
		pivot:  pivot,
		start:  start,
		end:    end,
		record: leafNone,
	}, 1 + max(leftHeight, rightHeight)
}

// find returns the index of the record governing line.
func (t *Tree) find(line int) (int, error) {
	if line < t.root.start || line >= t.root.end {
		return 0, fmt.Errorf("%w: %d not in [%d, %d)", ErrOutOfRange, line, t.root.start, t.root.end)
	}

	current := t.root
	for current.record == leafNone {
		if line < current.pivot {
			current = current.left
		} else {
			current = current.right
		}
	}

	return current.record, nil
}

// Map returns the inclusion chain for a flattened line. Outer frames are the
// include call sites as declared; the innermost frame's line is the declared
// line offset by the distance from the directive, minus one.
func (t *Tree) Map(line int) (Stack, error) {
	idx, err := t.find(line)
	if err != nil {
		return nil, err
	}

	return t.records[idx].resolve(line), nil
}

// Record returns a copy of the record governing line.
func (t *Tree) Record(line int) (Record, error) {
	idx, err := t.find(line)
	if err != nil {
		return Record{}, err
	}

	return t.records[idx].Clone(), nil
}

// Len returns the number of records.
func (t *Tree) Len() int {
	return len(t.records)
}

// Span returns the covered range [start, end).
func (t *Tree) Span() (start, end int) {
	return t.root.start, t.root.end
}

// Height returns the number of nodes on the longest root-to-leaf path.
func (t *Tree) Height() int {
	return t.height
}
