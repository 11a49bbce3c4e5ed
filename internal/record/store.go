// Package record persists one deployment record per network.
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/compose-network/token-manager/internal/failure"
	"github.com/compose-network/token-manager/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/flock"
	"github.com/moby/sys/atomicwriter"
)

const (
	// DirName is the directory, relative to the store root, holding one
	// subdirectory per network.
	DirName = "deployments"

	fileName     = "deploy-info.json"
	lockFileName = ".deploy.lock"
)

// Store reads and writes deployments/<network>/deploy-info.json under a root
// directory.
type Store struct {
	rootDir  string
	validate *validator.Validate
	logger   *slog.Logger
}

// NewStore creates a store rooted at rootDir.
func NewStore(rootDir string) *Store {
	return &Store{
		rootDir:  rootDir,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.Named("record_store"),
	}
}

// Path returns the record file path for a network.
func (s *Store) Path(networkID string) string {
	return filepath.Join(s.rootDir, DirName, networkID, fileName)
}

// Load returns the record for networkID. The boolean is false when no record
// has been saved yet. A file that exists but does not decode into a valid
// record yields failure.ErrCorruptRecord.
func (s *Store) Load(networkID string) (Record, bool, error) {
	path := s.Path(networkID)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var rec Record
	if err := decoder.Decode(&rec); err != nil {
		return Record{}, false, fmt.Errorf("%w: %s: %w", failure.ErrCorruptRecord, path, err)
	}
	if decoder.More() {
		return Record{}, false, fmt.Errorf("%w: %s: trailing data after record", failure.ErrCorruptRecord, path)
	}

	if err := s.check(networkID, rec); err != nil {
		return Record{}, false, fmt.Errorf("%w: %s: %w", failure.ErrCorruptRecord, path, err)
	}

	return rec, true, nil
}

// Save replaces the record for rec.Network. The write goes through a
// temporary file and a rename so readers never see a partial record.
func (s *Store) Save(rec Record) error {
	if err := s.check(rec.Network, rec); err != nil {
		return fmt.Errorf("refusing to save invalid record: %w", err)
	}

	path := s.Path(rec.Network)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	content, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := atomicwriter.WriteFile(path, append(content, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.logger.With("network", rec.Network, "path", path).Debug("deployment record saved")

	return nil
}

// Lock takes an exclusive advisory lock on the network's record slot. The
// returned function releases it.
func (s *Store) Lock(networkID string) (func(), error) {
	dir := filepath.Dir(s.Path(networkID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	fileLock := flock.New(filepath.Join(dir, lockFileName))
	if err := fileLock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to lock deployment record for %s: %w", networkID, err)
	}

	return func() {
		if err := fileLock.Unlock(); err != nil {
			s.logger.With("network", networkID, "err", err.Error()).Warn("failed to release record lock")
		}
	}, nil
}

func (s *Store) check(networkID string, rec Record) error {
	if err := s.validate.Struct(rec); err != nil {
		return err
	}
	if rec.Network != networkID {
		return fmt.Errorf("record belongs to network %q, expected %q", rec.Network, networkID)
	}
	return nil
}
