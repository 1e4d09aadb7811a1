package persist

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frameState mimics a persisted include frame list.
type frameState struct {
	Source string         `json:"source"`
	Lines  int            `json:"lines"`
	Starts map[string]int `json:"starts"`
}

func sampleState() frameState {
	return frameState{
		Source: "a.f90",
		Lines:  42,
		Starts: map[string]int{"a.f90": 0, "b.f90": 3},
	}
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := NewJSONCodec()
	original := sampleState()

	var buf bytes.Buffer

	require.NoError(t, codec.Encode(&buf, original))

	var decoded frameState

	require.NoError(t, codec.Decode(&buf, &decoded))
	assert.Equal(t, original, decoded)
}

func TestJSONCodec_Indent(t *testing.T) {
	t.Parallel()

	var pretty, compact bytes.Buffer

	require.NoError(t, NewJSONCodec().Encode(&pretty, sampleState()))
	require.NoError(t, (&JSONCodec{}).Encode(&compact, sampleState()))

	assert.Contains(t, pretty.String(), defaultIndent)
	assert.LessOrEqual(t, strings.Count(compact.String(), "\n"), 1)
	assert.Equal(t, ".json", NewJSONCodec().Extension())
}

func TestJSONCodec_Errors(t *testing.T) {
	t.Parallel()

	codec := NewJSONCodec()

	var buf bytes.Buffer

	err := codec.Encode(&buf, make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json encode")

	var decoded frameState

	err = codec.Decode(strings.NewReader("not valid json{{{"), &decoded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json decode")
}

func TestLZ4Codec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := NewLZ4Codec(&JSONCodec{})
	original := sampleState()
	original.Source = strings.Repeat("# 1 \"inc.f90\"\n", 200)

	var buf bytes.Buffer

	require.NoError(t, codec.Encode(&buf, original))
	assert.Less(t, buf.Len(), len(original.Source))

	var decoded frameState

	require.NoError(t, codec.Decode(&buf, &decoded))
	assert.Equal(t, original, decoded)
}

func TestLZ4Codec_WritesLZ4Frame(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, NewLZ4Codec(&JSONCodec{}).Encode(&buf, sampleState()))

	plain := new(bytes.Buffer)
	_, err := plain.ReadFrom(lz4.NewReader(&buf))
	require.NoError(t, err)
	assert.Contains(t, plain.String(), `"source":"a.f90"`)
}

func TestLZ4Codec_Extension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".json.lz4", NewLZ4Codec(NewJSONCodec()).Extension())
	assert.Equal(t, ".lz4", (&LZ4Codec{}).Extension())
}

func TestLZ4Codec_NoInner(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.ErrorIs(t, (&LZ4Codec{}).Encode(&buf, sampleState()), ErrNoInnerCodec)
	require.ErrorIs(t, (&LZ4Codec{}).Decode(&buf, &frameState{}), ErrNoInnerCodec)
}

func TestLZ4Codec_DecodeGarbage(t *testing.T) {
	t.Parallel()

	var decoded frameState

	err := NewLZ4Codec(NewJSONCodec()).Decode(strings.NewReader("not an lz4 frame"), &decoded)
	require.Error(t, err)
}
