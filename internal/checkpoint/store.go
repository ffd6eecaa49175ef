package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

// Entry describes one checkpoint file from its name alone, without opening
// the file.
type Entry struct {
	Name     string `json:"name"`
	Sequence int    `json:"sequence"`
	Year     int    `json:"year"`
	Type     Type   `json:"type"`
}

// Store persists checkpoint files in a single directory. Writes go to a temp
// file in the same directory, are synced, then renamed into place, so a
// crash mid-write never leaves a partial checkpoint visible.
type Store struct {
	dir string

	mu  sync.Mutex
	seq int
}

// NewStore opens the checkpoint directory, creating it if needed, and scans
// existing file names so the sequence continues across process restarts.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, types.WrapError(types.CHECKPOINT_WRITE_FAILED,
			fmt.Sprintf("failed to create checkpoint directory %s", dir), err)
	}

	s := &Store{dir: dir}

	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Sequence > s.seq {
			s.seq = e.Sequence
		}
	}

	return s, nil
}

// Dir returns the checkpoint directory path.
func (s *Store) Dir() string { return s.dir }

// NextSequence reserves and returns the next sequence number.
func (s *Store) NextSequence() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// List returns an entry for every well-formed checkpoint file name, sorted
// by sequence. Stray files in the directory are ignored.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, types.WrapError(types.CHECKPOINT_READ_FAILED,
			fmt.Sprintf("failed to read checkpoint directory %s", s.dir), err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		seq, year, typ, err := ParseFilename(de.Name())
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Name: de.Name(), Sequence: seq, Year: year, Type: typ})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Sequence < entries[j].Sequence })
	return entries, nil
}

// Write atomically persists a checkpoint under its encoded file name.
func (s *Store) Write(cp *Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return types.WrapError(types.CHECKPOINT_WRITE_FAILED,
			fmt.Sprintf("failed to encode checkpoint %s", cp.ID), err)
	}

	// Temp file in the same directory so the rename is atomic
	tmp, err := os.CreateTemp(s.dir, ".cp.tmp.*")
	if err != nil {
		return types.WrapError(types.CHECKPOINT_WRITE_FAILED,
			"failed to create temp checkpoint file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return types.WrapError(types.CHECKPOINT_WRITE_FAILED,
			fmt.Sprintf("failed to write checkpoint %s", cp.ID), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return types.WrapError(types.CHECKPOINT_WRITE_FAILED,
			fmt.Sprintf("failed to sync checkpoint %s", cp.ID), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return types.WrapError(types.CHECKPOINT_WRITE_FAILED,
			fmt.Sprintf("failed to close temp checkpoint file for %s", cp.ID), err)
	}

	final := filepath.Join(s.dir, Filename(cp.Sequence, cp.Year, cp.Type))
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return types.WrapError(types.CHECKPOINT_WRITE_FAILED,
			fmt.Sprintf("failed to place checkpoint file %s", final), err)
	}

	return nil
}

// Read loads and integrity-checks one checkpoint file by name.
func (s *Store) Read(name string) (*Checkpoint, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, types.WrapError(types.CHECKPOINT_READ_FAILED,
			fmt.Sprintf("failed to read checkpoint file %s", name), err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, types.WrapError(types.CHECKPOINT_CORRUPT,
			fmt.Sprintf("checkpoint file %s is not valid JSON", name), err)
	}

	if err := ValidateChecksum(&cp); err != nil {
		return nil, types.WrapError(types.CHECKPOINT_CORRUPT,
			fmt.Sprintf("checkpoint file %s failed integrity validation", name), err)
	}

	return &cp, nil
}

// Remove deletes one checkpoint file by name.
func (s *Store) Remove(name string) error {
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		return types.WrapError(types.CHECKPOINT_WRITE_FAILED,
			fmt.Sprintf("failed to remove checkpoint file %s", name), err)
	}
	return nil
}
