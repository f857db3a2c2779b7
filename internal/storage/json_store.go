package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONFile persists a snapshot value as an indented JSON document. Writes go
// to a temp file which is synced and renamed over the target, so readers
// never observe a half-written snapshot.
type JSONFile struct {
	mu   sync.Mutex
	path string
}

// NewJSONFile prepares dataDir and returns a snapshot file inside it.
func NewJSONFile(dataDir, filename string) (*JSONFile, error) {
	const op = "storage/NewJSONFile"

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &JSONFile{path: filepath.Join(dataDir, filename)}, nil
}

func (f *JSONFile) Path() string { return f.path }

// Load decodes the snapshot into v. A missing file leaves v untouched.
func (f *JSONFile) Load(v any) error {
	const op = "storage/JSONFile.Load"

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(v); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Save replaces the snapshot with v.
func (f *JSONFile) Save(v any) error {
	const op = "storage/JSONFile.Save"

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp := f.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
