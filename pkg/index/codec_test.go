package index_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/linemap/pkg/index"
	"github.com/Sumatoshi-tech/linemap/pkg/linemap"
)

const flattened = `# 1 "a.f90"
program a
# 1 "b.f90"
  call b()
  call b2()
# 3 "a.f90"
end program
`

func buildSnapshot(t *testing.T) (*linemap.Mapper, *index.Snapshot) {
	t.Helper()

	m, err := linemap.Build(flattened, "a.f90")
	require.NoError(t, err)

	return m, index.FromMapper(m, linemap.DefaultPattern)
}

func TestWriteRead_RoundTripsMapper(t *testing.T) {
	t.Parallel()

	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "plain", true: "lz4"}[compress], func(t *testing.T) {
			t.Parallel()

			orig, snap := buildSnapshot(t)

			var buf bytes.Buffer

			require.NoError(t, index.Write(&buf, snap, compress))
			assert.Equal(t, compress, strings.HasPrefix(buf.String(), index.Magic))

			got, err := index.Read(&buf)
			require.NoError(t, err)
			assert.Equal(t, compress, got.Compressed)
			assert.Equal(t, index.CurrentVersion, got.Version)
			assert.Equal(t, linemap.DefaultPattern, got.Pattern)

			rebuilt, err := got.Mapper()
			require.NoError(t, err)
			assert.Equal(t, orig.Records(), rebuilt.Records())
			assert.Equal(t, orig.Lines(), rebuilt.Lines())
			assert.Equal(t, orig.Source(), rebuilt.Source())

			for line := range orig.Lines() {
				want, err := orig.MapLine(line)
				require.NoError(t, err)

				have, err := rebuilt.MapLine(line)
				require.NoError(t, err)
				assert.Equal(t, want, have, "line %d", line)
			}
		})
	}
}

func TestRead_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "missing records", doc: `{"version":1,"source":"a","total_lines":3}`},
		{name: "empty records", doc: `{"version":1,"source":"a","total_lines":3,"records":[]}`},
		{name: "empty stack", doc: `{"version":1,"source":"a","total_lines":3,"records":[{"line":0,"stack":[]}]}`},
		{name: "negative line", doc: `{"version":1,"source":"a","total_lines":3,"records":[{"line":-1,"stack":[{"file":"a","line":1}]}]}`},
		{name: "string line", doc: `{"version":1,"source":"a","total_lines":3,"records":[{"line":"0","stack":[{"file":"a","line":1}]}]}`},
		{name: "empty file", doc: `{"version":1,"source":"a","total_lines":3,"records":[{"line":0,"stack":[{"file":"","line":1}]}]}`},
		{name: "zero lines", doc: `{"version":1,"source":"a","total_lines":0,"records":[{"line":0,"stack":[{"file":"a","line":1}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := index.Read(strings.NewReader(tt.doc))
			require.ErrorIs(t, err, index.ErrSchemaViolation)
		})
	}
}

func TestRead_UnsupportedVersion(t *testing.T) {
	t.Parallel()

	_, err := index.Read(strings.NewReader(`{"version":2,"source":"a","total_lines":1,"records":[]}`))
	require.ErrorIs(t, err, index.ErrUnsupportedVersion)
}

func TestRead_Garbage(t *testing.T) {
	t.Parallel()

	_, err := index.Read(strings.NewReader("not json"))
	require.Error(t, err)

	_, err = index.Read(strings.NewReader(index.Magic + "not lz4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decompress snapshot")
}

func TestSnapshot_MapperRejectsUnorderedRecords(t *testing.T) {
	t.Parallel()

	doc := `{"version":1,"source":"a","total_lines":5,"records":[
		{"line":0,"stack":[{"file":"a","line":1}]},
		{"line":3,"stack":[{"file":"b","line":1}]},
		{"line":2,"stack":[{"file":"a","line":3}]}]}`

	snap, err := index.Read(strings.NewReader(doc))
	require.NoError(t, err)

	_, err = snap.Mapper()
	require.ErrorIs(t, err, linemap.ErrInvalidRecords)
}

func TestSnapshot_FilesAndDepth(t *testing.T) {
	t.Parallel()

	_, snap := buildSnapshot(t)

	assert.Equal(t, []string{"a.f90", "b.f90"}, snap.Files())
	assert.Equal(t, 2, snap.MaxDepth())
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	orig, snap := buildSnapshot(t)
	path := filepath.Join(t.TempDir(), "a"+index.Extension)

	require.NoError(t, index.Save(path, snap, true))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte(index.Magic)))

	loaded, err := index.Load(path)
	require.NoError(t, err)

	rebuilt, err := loaded.Mapper()
	require.NoError(t, err)
	assert.Equal(t, orig.Records(), rebuilt.Records())
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := index.Load(filepath.Join(t.TempDir(), "missing.lmix"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load index")
}
