package index

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/linemap/pkg/persist"
)

// Magic prefixes a compressed snapshot.
const Magic = "LMIX"

// Extension is the conventional snapshot file extension.
const Extension = ".lmix"

// Sentinel errors.
var (
	ErrSchemaViolation    = errors.New("snapshot violates schema")
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
	ErrNotSnapshot        = errors.New("state is not a *index.Snapshot")
)

//go:embed schema.json
var schemaJSON []byte

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
})

// Write encodes snap to w, LZ4-compressed behind Magic when compress is set.
func Write(w io.Writer, snap *Snapshot, compress bool) error {
	if !compress {
		return persist.NewJSONCodec().Encode(w, snap)
	}

	_, err := io.WriteString(w, Magic)
	if err != nil {
		return fmt.Errorf("write magic: %w", err)
	}

	return persist.NewLZ4Codec(&persist.JSONCodec{}).Encode(w, snap)
}

// Read decodes a snapshot written by Write. The document is checked against
// the embedded JSON schema before it is accepted.
func Read(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	raw, compressed, err := payload(data)
	if err != nil {
		return nil, err
	}

	err = checkVersion(raw)
	if err != nil {
		return nil, err
	}

	err = validate(raw)
	if err != nil {
		return nil, err
	}

	var snap Snapshot

	err = json.Unmarshal(raw, &snap)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	snap.Compressed = compressed

	return &snap, nil
}

func payload(data []byte) (json.RawMessage, bool, error) {
	rest, found := bytes.CutPrefix(data, []byte(Magic))
	if !found {
		return data, false, nil
	}

	var raw json.RawMessage

	err := persist.NewLZ4Codec(&persist.JSONCodec{}).Decode(bytes.NewReader(rest), &raw)
	if err != nil {
		return nil, true, fmt.Errorf("decompress snapshot: %w", err)
	}

	return raw, true, nil
}

func checkVersion(raw json.RawMessage) error {
	var head struct {
		Version *int `json:"version"`
	}

	err := json.Unmarshal(raw, &head)
	if err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	if head.Version != nil && *head.Version != CurrentVersion {
		return fmt.Errorf("%w: %d (want %d)", ErrUnsupportedVersion, *head.Version, CurrentVersion)
	}

	return nil
}

func validate(raw json.RawMessage) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validate snapshot: %w", err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}

	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(msgs, "; "))
}

// snapshotCodec adapts Write and Read to persist.Codec.
type snapshotCodec struct {
	compress bool
}

func (c snapshotCodec) Encode(w io.Writer, state any) error {
	snap, ok := state.(*Snapshot)
	if !ok {
		return ErrNotSnapshot
	}

	return Write(w, snap, c.compress)
}

func (c snapshotCodec) Decode(r io.Reader, state any) error {
	dst, ok := state.(*Snapshot)
	if !ok {
		return ErrNotSnapshot
	}

	snap, err := Read(r)
	if err != nil {
		return err
	}

	*dst = *snap

	return nil
}

func (c snapshotCodec) Extension() string {
	return Extension
}

// Save writes snap to path atomically.
func Save(path string, snap *Snapshot, compress bool) error {
	err := persist.SaveFile(path, snapshotCodec{compress: compress}, snap)
	if err != nil {
		return fmt.Errorf("save index: %w", err)
	}

	return nil
}

// Load reads and validates the snapshot at path.
func Load(path string) (*Snapshot, error) {
	var snap Snapshot

	err := persist.LoadFile(path, snapshotCodec{}, &snap)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	return &snap, nil
}
