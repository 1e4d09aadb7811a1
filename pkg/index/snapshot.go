// Package index persists scanned directive records so a flattened file does
// not have to be rescanned for every query.
//
// A snapshot is a JSON document. On disk it is either plain JSON or the
// 4-byte magic "LMIX" followed by an LZ4 frame holding the JSON.
package index

import (
	"slices"

	"github.com/Sumatoshi-tech/linemap/pkg/linemap"
)

// CurrentVersion is the snapshot format version written by this package.
const CurrentVersion = 1

// RecordDoc is the persisted form of a linemap.Record.
type RecordDoc struct {
	Line  int                `json:"line"`
	Stack []linemap.Position `json:"stack"`
}

// Snapshot is the persisted form of a Mapper.
type Snapshot struct {
	Version    int         `json:"version"`
	Source     string      `json:"source"`
	Pattern    string      `json:"pattern,omitempty"`
	TotalLines int         `json:"total_lines"`
	Records    []RecordDoc `json:"records"`

	// Compressed reports whether the snapshot was read from an LZ4 payload.
	Compressed bool `json:"-"`
}

// FromMapper captures m. pattern is recorded for reference only.
func FromMapper(m *linemap.Mapper, pattern string) *Snapshot {
	records := m.Records()
	docs := make([]RecordDoc, len(records))

	for i, rec := range records {
		docs[i] = RecordDoc{Line: rec.Line, Stack: rec.Stack}
	}

	return &Snapshot{
		Version:    CurrentVersion,
		Source:     m.Source(),
		Pattern:    pattern,
		TotalLines: m.Lines(),
		Records:    docs,
	}
}

// Mapper rebuilds a mapper from the snapshot.
func (s *Snapshot) Mapper() (*linemap.Mapper, error) {
	records := make([]linemap.Record, len(s.Records))
	for i, doc := range s.Records {
		records[i] = linemap.Record{Line: doc.Line, Stack: doc.Stack}
	}

	return linemap.FromRecords(records, s.TotalLines, s.Source)
}

// Files lists the distinct files named by any record, sorted.
func (s *Snapshot) Files() []string {
	seen := make(map[string]struct{})

	for _, doc := range s.Records {
		for _, pos := range doc.Stack {
			seen[pos.File] = struct{}{}
		}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}

	slices.Sort(files)

	return files
}

// MaxDepth is the deepest include chain in the snapshot.
func (s *Snapshot) MaxDepth() int {
	depth := 0
	for _, doc := range s.Records {
		depth = max(depth, len(doc.Stack))
	}

	return depth
}
