package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	extPrimary = ".json"
	extTemp    = ".json.temp"
	extBackup  = ".json.bak"
)

// Store durably persists one value of type T under an id within a directory.
type Store[T any] struct {
	// Value is the in-memory copy. Mutate it freely, then call Save.
	Value T

	path  string
	codec Codec[T]
}

// Open loads the store <dir>/<id>.json using the JSON codec.
// See OpenWithCodec for recovery semantics.
func Open[T any](id, dir string, def T) (*Store[T], error) {
	return OpenWithCodec[T](id, dir, def, JSONCodec[T]{})
}

// OpenWithCodec loads the store <dir>/<id>.json.
//
// Candidates are tried in order: primary, temp, bak. The first that decodes
// wins. When the winner is not the primary it is renamed over the primary.
// In every case the remaining candidates are deleted. When nothing decodes
// def is used and nothing is written until the first Save.
//
// The id may contain path separators; the file then lives in a
// subdirectory of dir.
//
// Returns:
//   - *Store[T]: the loaded store
//   - error: ErrInvalidID, or ErrRecoveryFailed if a recovered file could not
//     be promoted. Corrupt data is never an error.
func OpenWithCodec[T any](id, dir string, def T, codec Codec[T]) (*Store[T], error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	s := &Store[T]{
		path:  filepath.Join(dir, id+extPrimary),
		codec: codec,
	}
	primary, temp, backup := s.path, s.tempPath(), s.backupPath()

	if v, err := s.readFile(primary); err == nil {
		removeQuietly(temp)
		removeQuietly(backup)
		s.Value = v
		return s, nil
	}

	for _, candidate := range []string{temp, backup} {
		v, err := s.readFile(candidate)
		if err != nil {
			continue
		}
		if err := os.Rename(candidate, primary); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrRecoveryFailed, candidate, err)
		}
		removeQuietly(temp)
		removeQuietly(backup)
		s.Value = v
		return s, nil
	}

	s.Value = def
	return s, nil
}

// Path returns the primary file path.
func (s *Store[T]) Path() string {
	return s.path
}

// Save writes Value to disk.
//
// Sequence:
//  1. encode and write <id>.json.temp under an exclusive lock, fsync
//  2. rename an existing primary to <id>.json.bak
//  3. rename temp to primary and fsync the directory
//  4. delete bak
//
// A crash between any two steps leaves a valid generation on disk.
func (s *Store[T]) Save() error {
	data, err := s.codec.Encode(s.Value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	temp, backup := s.tempPath(), s.backupPath()
	if err := writeDurable(temp, data); err != nil {
		return err
	}

	if _, err := os.Stat(s.path); err == nil {
		if err := os.Rename(s.path, backup); err != nil {
			return fmt.Errorf("backing up %s: %w", s.path, err)
		}
	}

	if err := os.Rename(temp, s.path); err != nil {
		return fmt.Errorf("promoting %s: %w", temp, err)
	}
	// The backup stays until the promotion itself is durable.
	if err := syncDir(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("syncing %s: %w", filepath.Dir(s.path), err)
	}

	removeQuietly(backup)
	return nil
}

// Delete removes the primary file and any recovery artifacts.
func (s *Store[T]) Delete() error {
	removeQuietly(s.tempPath())
	removeQuietly(s.backupPath())
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w", s.path, err)
	}
	return nil
}

func (s *Store[T]) tempPath() string {
	return s.path[:len(s.path)-len(extPrimary)] + extTemp
}

func (s *Store[T]) backupPath() string {
	return s.path[:len(s.path)-len(extPrimary)] + extBackup
}

func (s *Store[T]) readFile(path string) (T, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is built from the store directory
	if err != nil {
		var zero T
		return zero, err
	}
	return s.codec.Decode(data, path)
}

// writeDurable truncates path, writes data under an exclusive lock and
// fsyncs before releasing it.
func writeDurable(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644) //nolint:gosec // path is built from the store directory
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	if err := lockExclusive(f); err != nil {
		return fmt.Errorf("%w: %w", ErrLock, err)
	}
	defer unlock(f) //nolint:errcheck // released on close regardless

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	return nil
}

func removeQuietly(path string) {
	_ = os.Remove(path)
}
