package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

// MetadataConfigDigest is the metadata key recording the digest of the
// configuration the run was started with. Resume compares it and warns on
// drift.
const MetadataConfigDigest = "config_digest"

// verifyWorkers bounds VerifyAll's concurrent file reads.
const verifyWorkers = 8

// Manager creates checkpoints at run boundaries and answers resume queries.
// Safe for concurrent use: a monitoring path may call Summary while a run
// is writing.
type Manager struct {
	store  *Store
	logger *slog.Logger
}

// NewManager opens a manager over the given checkpoint directory.
func NewManager(dir string, logger *slog.Logger) (*Manager, error) {
	store, err := NewStore(dir)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}, nil
}

// Dir returns the checkpoint directory path.
func (m *Manager) Dir() string { return m.store.Dir() }

// Create builds, checksums, and atomically persists a checkpoint. Creation
// proceeds even under a cancelled context: boundary checkpoints must land so
// a cancelled run stays resumable.
func (m *Manager) Create(ctx context.Context, typ Type, year int, state map[string]any, metadata map[string]string) (*Checkpoint, error) {
	cp := &Checkpoint{
		ID:        uuid.NewString(),
		Sequence:  m.store.NextSequence(),
		Type:      typ,
		Year:      year,
		State:     state,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	checksum, err := ComputeChecksum(cp)
	if err != nil {
		return nil, types.WrapError(types.CHECKPOINT_WRITE_FAILED,
			fmt.Sprintf("failed to checksum checkpoint %s", cp.ID), err)
	}
	cp.Checksum = checksum

	if err := m.store.Write(cp); err != nil {
		return nil, err
	}

	m.logger.Debug("checkpoint created",
		slog.String("checkpoint_id", cp.ID),
		slog.Int("sequence", cp.Sequence),
		slog.String("type", string(cp.Type)),
		slog.Int("year", cp.Year))

	return cp, nil
}

// ResumeCheckpoint returns the latest valid resume point whose year falls
// within [startYear, endYear]. Only YEAR_COMPLETE and RUN_COMPLETE
// checkpoints qualify. Corrupt candidates are skipped with a warning,
// falling back to the next older one. Returns (0, nil, nil) when no
// eligible checkpoint exists.
func (m *Manager) ResumeCheckpoint(ctx context.Context, startYear, endYear int) (int, *Checkpoint, error) {
	entries, err := m.store.List()
	if err != nil {
		return 0, nil, err
	}

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if !e.Type.Resumable() {
			continue
		}
		if e.Year < startYear || e.Year > endYear {
			continue
		}

		cp, err := m.store.Read(e.Name)
		if err != nil {
			m.logger.Warn("skipping unusable checkpoint",
				slog.String("file", e.Name),
				slog.String("error", err.Error()))
			continue
		}
		return cp.Year, cp, nil
	}

	return 0, nil, nil
}

// List returns the checkpoint directory's entries in sequence order, read
// from filenames alone.
func (m *Manager) List(ctx context.Context) ([]Entry, error) {
	return m.store.List()
}

// Summary condenses checkpoint directory state for status displays.
type Summary struct {
	Dir    string       `json:"dir"`
	Count  int          `json:"count"`
	ByType map[Type]int `json:"by_type,omitempty"`
	Latest *Checkpoint  `json:"latest,omitempty"`
}

// Summary reports checkpoint counts by type and the newest checkpoint that
// still reads clean.
func (m *Manager) Summary(ctx context.Context) (*Summary, error) {
	entries, err := m.store.List()
	if err != nil {
		return nil, err
	}

	sum := &Summary{Dir: m.store.Dir(), Count: len(entries), ByType: make(map[Type]int)}
	for _, e := range entries {
		sum.ByType[e.Type]++
	}

	for i := len(entries) - 1; i >= 0; i-- {
		cp, err := m.store.Read(entries[i].Name)
		if err != nil {
			continue
		}
		sum.Latest = cp
		break
	}

	return sum, nil
}

// VerifyResult reports one checkpoint file's integrity state.
type VerifyResult struct {
	Name  string `json:"name"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// VerifyAll integrity-checks every checkpoint file, fanning reads out over a
// bounded worker pool. Results come back in sequence order.
func (m *Manager) VerifyAll(ctx context.Context) ([]VerifyResult, error) {
	entries, err := m.store.List()
	if err != nil {
		return nil, err
	}

	results := make([]VerifyResult, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(verifyWorkers)

	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := m.store.Read(e.Name); err != nil {
				results[i] = VerifyResult{Name: e.Name, Error: err.Error()}
				return nil
			}
			results[i] = VerifyResult{Name: e.Name, Valid: true}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// PruneResult reports what Prune removed and kept.
type PruneResult struct {
	Removed []string `json:"removed,omitempty"`
	Kept    int      `json:"kept"`
}

// Prune removes checkpoint files older than maxAge by modification time,
// always keeping the latest resume-eligible checkpoint regardless of age.
// maxAge <= 0 disables pruning.
func (m *Manager) Prune(ctx context.Context, maxAge time.Duration) (*PruneResult, error) {
	entries, err := m.store.List()
	if err != nil {
		return nil, err
	}

	res := &PruneResult{Kept: len(entries)}
	if maxAge <= 0 {
		return res, nil
	}

	// Protect the checkpoint a resume would select
	protected := ""
	for i := len(entries) - 1; i >= 0; i-- {
		if !entries[i].Type.Resumable() {
			continue
		}
		if _, err := m.store.Read(entries[i].Name); err != nil {
			continue
		}
		protected = entries[i].Name
		break
	}

	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.Name == protected {
			continue
		}
		info, err := os.Stat(filepath.Join(m.store.Dir(), e.Name))
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := m.store.Remove(e.Name); err != nil {
			return res, err
		}
		res.Removed = append(res.Removed, e.Name)
		res.Kept--
	}

	if len(res.Removed) > 0 {
		m.logger.Info("pruned checkpoints",
			slog.Int("removed", len(res.Removed)),
			slog.Int("kept", res.Kept))
	}

	return res, nil
}
