package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// fileSchemaVersion is written into every single-file state document.
const fileSchemaVersion = 1

// fileDocument is the on-disk shape of FileStore state.
type fileDocument struct {
	Version int                        `json:"version"`
	Log     map[string]*QuestionRecord `json:"log"`
	Queue   map[string]string          `json:"queue"`
}

// FileStore keeps the attempt log and review queue together in one JSON
// document, so a save is a single atomic rename and the two maps can never
// be observed out of step with each other.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store. The file is not touched until Load or Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the state file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the state document. A missing file yields an empty snapshot;
// anything that is not a state document is reported as ErrCorrupt.
func (f *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	data, ok, err := readIfExists(f.path)
	if err != nil || !ok {
		return NewSnapshot(), err
	}

	// Unknown keys mean some other JSON document, e.g. a legacy attempt log.
	var doc fileDocument
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return NewSnapshot(), fmt.Errorf("%w: %s: %v", ErrCorrupt, f.path, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return NewSnapshot(), fmt.Errorf("%w: %s: trailing data after state document", ErrCorrupt, f.path)
	}
	if doc.Version > fileSchemaVersion {
		return NewSnapshot(), fmt.Errorf("%w: %s: unsupported version %d", ErrCorrupt, f.path, doc.Version)
	}

	snap := &Snapshot{Log: doc.Log, Queue: doc.Queue}
	return snap.normalize(), nil
}

// Save writes the whole state with an atomic replace.
func (f *FileStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		snap = NewSnapshot()
	}
	doc := fileDocument{
		Version: fileSchemaVersion,
		Log:     snap.Log,
		Queue:   snap.Queue,
	}
	if doc.Log == nil {
		doc.Log = map[string]*QuestionRecord{}
	}
	if doc.Queue == nil {
		doc.Queue = map[string]string{}
	}
	return writeJSONAtomic(f.path, doc)
}

// Close is a no-op; FileStore holds no open handles between calls.
func (f *FileStore) Close() error {
	return nil
}

// readIfExists returns the file content and whether the file exists.
// Only "does not exist" is folded into ok=false; other failures are returned.
func readIfExists(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, true, nil
}

// writeJSONAtomic pretty-prints v into a temp file next to path, syncs it
// and renames it over path.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	committed = true
	return nil
}
