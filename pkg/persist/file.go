package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// stateFilePerm is the permission of files written by SaveFile.
const stateFilePerm = 0o644

// SaveFile encodes state into path. The file is written to a temporary
// sibling first and renamed into place, so readers never see a partial file.
func SaveFile(path string, codec Codec, state any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create state file: %w", err)
	}

	tmpName := tmp.Name()

	err = codec.Encode(tmp, state)
	if err != nil {
		return errors.Join(fmt.Errorf("encode state: %w", err), tmp.Close(), os.Remove(tmpName))
	}

	err = tmp.Close()
	if err != nil {
		return errors.Join(fmt.Errorf("close state file: %w", err), os.Remove(tmpName))
	}

	err = os.Chmod(tmpName, stateFilePerm)
	if err != nil {
		return errors.Join(fmt.Errorf("chmod state file: %w", err), os.Remove(tmpName))
	}

	err = os.Rename(tmpName, path)
	if err != nil {
		return errors.Join(fmt.Errorf("rename state file: %w", err), os.Remove(tmpName))
	}

	return nil
}

// LoadFile decodes the file at path into state, which must be a pointer.
func LoadFile(path string, codec Codec, state any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	err = codec.Decode(file, state)
	if err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	return nil
}
