// Package checkpoint persists immutable snapshots of simulation progress and
// selects resume points after a crash or cancellation. One JSON file per
// checkpoint; integrity is a SHA-256 checksum over the canonical encoding.
package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type classifies the run boundary a checkpoint records.
type Type string

const (
	TypeRunStart     Type = "RUN_START"
	TypeYearStart    Type = "YEAR_START"
	TypeStepComplete Type = "STEP_COMPLETE"
	TypeYearComplete Type = "YEAR_COMPLETE"
	TypeRunComplete  Type = "RUN_COMPLETE"
	TypeError        Type = "ERROR"
)

// Valid reports whether t is a known checkpoint type.
func (t Type) Valid() bool {
	switch t {
	case TypeRunStart, TypeYearStart, TypeStepComplete, TypeYearComplete, TypeRunComplete, TypeError:
		return true
	}
	return false
}

// Resumable reports whether a checkpoint of this type can serve as a resume
// point. Only clean year or run boundaries qualify; mid-stage and error
// checkpoints record context but are never resumed from directly.
func (t Type) Resumable() bool {
	return t == TypeYearComplete || t == TypeRunComplete
}

// Checkpoint is an immutable snapshot of progress. Created at defined
// boundaries, never mutated; later checkpoints supersede earlier ones.
type Checkpoint struct {
	ID        string            `json:"checkpoint_id"`
	Sequence  int               `json:"sequence"`
	Type      Type              `json:"type"`
	Year      int               `json:"simulation_year"`
	State     map[string]any    `json:"state,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Checksum  string            `json:"checksum"`
	CreatedAt time.Time         `json:"created_at"`
}

// ComputeChecksum returns the SHA-256 hex digest of the checkpoint's JSON
// encoding with the checksum field empty.
func ComputeChecksum(cp *Checkpoint) (string, error) {
	clone := *cp
	clone.Checksum = ""

	data, err := json.Marshal(&clone)
	if err != nil {
		return "", fmt.Errorf("failed to marshal checkpoint for checksum: %w", err)
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// ValidateChecksum recomputes the checkpoint's checksum and compares it to
// the stored value. A checkpoint that fails validation must not be trusted
// as a resume point.
func ValidateChecksum(cp *Checkpoint) error {
	if cp.Checksum == "" {
		return fmt.Errorf("checkpoint %s has no checksum", cp.ID)
	}

	computed, err := ComputeChecksum(cp)
	if err != nil {
		return fmt.Errorf("failed to compute checksum: %w", err)
	}

	if computed != cp.Checksum {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", cp.Checksum, computed)
	}

	return nil
}

// Filename returns the file name encoding sequence, year, and type, chosen
// so a lexical sort of the directory matches sequence order.
func Filename(seq, year int, typ Type) string {
	return fmt.Sprintf("cp-%06d-%04d-%s.json", seq, year, typ)
}

// ParseFilename extracts sequence, year, and type from a checkpoint file
// name. Files that do not match the naming scheme are rejected so stray
// files in the directory are ignored rather than misread.
func ParseFilename(name string) (seq, year int, typ Type, err error) {
	base, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return 0, 0, "", fmt.Errorf("not a checkpoint file: %s", name)
	}
	base, ok = strings.CutPrefix(base, "cp-")
	if !ok {
		return 0, 0, "", fmt.Errorf("not a checkpoint file: %s", name)
	}

	parts := strings.SplitN(base, "-", 3)
	if len(parts) != 3 {
		return 0, 0, "", fmt.Errorf("malformed checkpoint file name: %s", name)
	}

	seq, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, "", fmt.Errorf("malformed checkpoint sequence in %s: %w", name, err)
	}
	year, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, "", fmt.Errorf("malformed checkpoint year in %s: %w", name, err)
	}

	typ = Type(parts[2])
	if !typ.Valid() {
		return 0, 0, "", fmt.Errorf("unknown checkpoint type in %s: %s", name, parts[2])
	}

	return seq, year, typ, nil
}
