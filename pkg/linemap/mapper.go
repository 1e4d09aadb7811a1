package linemap

import "fmt"

// Mapper translates flattened line numbers (0-based) into inclusion chains.
// It is built once and is safe for concurrent queries.
type Mapper struct {
	tree   *Tree
	source string
	lines  int
}

// Build splits text into lines and builds a mapper for it.
func Build(text, topLevel string, opts ...ScannerOption) (*Mapper, error) {
	return BuildLines(SplitLines(text), topLevel, opts...)
}

// BuildLines scans lines for directives and indexes the resulting records.
func BuildLines(lines []string, topLevel string, opts ...ScannerOption) (*Mapper, error) {
	scanner, err := NewScanner(opts...)
	if err != nil {
		return nil, err
	}

	return scanner.Build(lines, topLevel)
}

// Build scans lines with s and indexes the resulting records.
func (s *Scanner) Build(lines []string, topLevel string) (*Mapper, error) {
	records, err := s.Scan(lines, topLevel)
	if err != nil {
		return nil, err
	}

	return newMapper(records, len(lines), topLevel)
}

// FromRecords rebuilds a mapper from previously scanned records, e.g. a
// persisted index. Records are copied.
func FromRecords(records []Record, totalLines int, topLevel string) (*Mapper, error) {
	return newMapper(records, totalLines, topLevel)
}

func newMapper(records []Record, totalLines int, topLevel string) (*Mapper, error) {
	if topLevel == "" {
		topLevel = DefaultTopLevel
	}

	tree, err := NewTree(records, totalLines)
	if err != nil {
		return nil, err
	}

	return &Mapper{tree: tree, source: topLevel, lines: totalLines}, nil
}

// MapLine returns the inclusion chain for a flattened line: the active file and
// its line last, the include call sites before it.
func (m *Mapper) MapLine(line int) (Stack, error) {
	if line < 0 {
		return nil, fmt.Errorf("%w: negative line %d", ErrOutOfRange, line)
	}

	return m.tree.Map(line)
}

// DepthAt returns the include depth active at line.
func (m *Mapper) DepthAt(line int) (int, error) {
	rec, err := m.tree.Record(line)
	if err != nil {
		return 0, err
	}

	return rec.Stack.Depth(), nil
}

// Lines returns the number of flattened lines covered.
func (m *Mapper) Lines() int {
	return m.lines
}

// Source returns the top-level file name.
func (m *Mapper) Source() string {
	return m.source
}

// Records returns a deep copy of the directive records.
func (m *Mapper) Records() []Record {
	return cloneRecords(m.tree.records)
}

// Tree exposes the underlying lookup tree.
func (m *Mapper) Tree() *Tree {
	return m.tree
}
