package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveFile_LoadFile_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, codec := range []Codec{NewJSONCodec(), NewLZ4Codec(NewJSONCodec())} {
		t.Run(codec.Extension(), func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "state"+codec.Extension())
			original := sampleState()

			require.NoError(t, SaveFile(path, codec, original))

			var loaded frameState

			require.NoError(t, LoadFile(path, codec, &loaded))
			assert.Equal(t, original, loaded)
		})
	}
}

func TestSaveFile_LeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	require.NoError(t, SaveFile(filepath.Join(dir, "state.json"), NewJSONCodec(), sampleState()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestSaveFile_EncodeErrorKeepsPreviousFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	require.NoError(t, SaveFile(path, NewJSONCodec(), sampleState()))

	err := SaveFile(path, NewJSONCodec(), make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode state")

	var loaded frameState

	require.NoError(t, LoadFile(path, NewJSONCodec(), &loaded))
	assert.Equal(t, sampleState(), loaded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadFile_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	var state frameState

	err := LoadFile(filepath.Join(dir, "missing.json"), NewJSONCodec(), &state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open state file")

	path := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte("not json{{{"), 0o600))

	err = LoadFile(path, NewJSONCodec(), &state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode state")
}

func TestSaveFile_MissingDirectory(t *testing.T) {
	t.Parallel()

	err := SaveFile("/nonexistent/path/that/does/not/exist/state.json", NewJSONCodec(), sampleState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create state file")
}
