// Package persist provides codec-based file persistence for arbitrary state types.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// File extensions for supported codecs.
const (
	jsonExtension = ".json"
	lz4Extension  = ".lz4"
)

// Default indentation for pretty-printed JSON.
const defaultIndent = "  "

// ErrNoInnerCodec is returned by an LZ4Codec without an inner codec.
var ErrNoInnerCodec = errors.New("lz4 codec: no inner codec")

// Codec defines how state is serialized and deserialized.
type Codec interface {
	// Encode writes the state to the writer.
	Encode(w io.Writer, state any) error
	// Decode reads the state from the reader.
	Decode(r io.Reader, state any) error
	// Extension returns the file extension for this codec (e.g., ".json").
	Extension() string
}

// JSONCodec implements Codec using JSON encoding with optional indentation.
type JSONCodec struct {
	// Indent specifies the indentation string. Empty string means compact JSON.
	Indent string
}

// NewJSONCodec creates a JSON codec with pretty-printing (2-space indent).
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{Indent: defaultIndent}
}

// Encode implements Codec.Encode using JSON encoding.
func (c *JSONCodec) Encode(w io.Writer, state any) error {
	encoder := json.NewEncoder(w)
	if c.Indent != "" {
		encoder.SetIndent("", c.Indent)
	}

	err := encoder.Encode(state)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode using JSON decoding.
func (c *JSONCodec) Decode(r io.Reader, state any) error {
	err := json.NewDecoder(r).Decode(state)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	return nil
}

// Extension implements Codec.Extension for JSON files.
func (c *JSONCodec) Extension() string {
	return jsonExtension
}

// LZ4Codec wraps the output of an inner codec in an LZ4 frame.
type LZ4Codec struct {
	Inner Codec
	Level lz4.CompressionLevel
}

// NewLZ4Codec creates an LZ4 codec around inner using the fast compression level.
func NewLZ4Codec(inner Codec) *LZ4Codec {
	return &LZ4Codec{Inner: inner, Level: lz4.Fast}
}

// Encode implements Codec.Encode. The frame is closed before returning.
func (c *LZ4Codec) Encode(w io.Writer, state any) error {
	if c.Inner == nil {
		return ErrNoInnerCodec
	}

	zw := lz4.NewWriter(w)

	err := zw.Apply(lz4.CompressionLevelOption(c.Level))
	if err != nil {
		return fmt.Errorf("lz4 options: %w", err)
	}

	err = c.Inner.Encode(zw, state)
	if err != nil {
		return errors.Join(err, zw.Close())
	}

	err = zw.Close()
	if err != nil {
		return fmt.Errorf("lz4 close: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode.
func (c *LZ4Codec) Decode(r io.Reader, state any) error {
	if c.Inner == nil {
		return ErrNoInnerCodec
	}

	return c.Inner.Decode(lz4.NewReader(r), state)
}

// Extension implements Codec.Extension, appending ".lz4" to the inner extension.
func (c *LZ4Codec) Extension() string {
	if c.Inner == nil {
		return lz4Extension
	}

	return c.Inner.Extension() + lz4Extension
}
