package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeValid(t *testing.T) {
	for _, typ := range []Type{TypeRunStart, TypeYearStart, TypeStepComplete, TypeYearComplete, TypeRunComplete, TypeError} {
		assert.True(t, typ.Valid(), "expected %s to be valid", typ)
	}
	assert.False(t, Type("SNAPSHOT").Valid())
	assert.False(t, Type("").Valid())
}

func TestTypeResumable(t *testing.T) {
	assert.True(t, TypeYearComplete.Resumable())
	assert.True(t, TypeRunComplete.Resumable())

	assert.False(t, TypeRunStart.Resumable())
	assert.False(t, TypeYearStart.Resumable())
	assert.False(t, TypeStepComplete.Resumable())
	assert.False(t, TypeError.Resumable())
}

func TestChecksumRoundTrip(t *testing.T) {
	cp := &Checkpoint{
		ID:        "8f14e45f-ceea-4e17-a9b4-0242ac120002",
		Sequence:  7,
		Type:      TypeYearComplete,
		Year:      2026,
		State:     map[string]any{"completed_stages": []any{"FOUNDATION", "EVENT_GENERATION"}},
		Metadata:  map[string]string{MetadataConfigDigest: "abc123"},
		CreatedAt: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
	}

	sum, err := ComputeChecksum(cp)
	require.NoError(t, err)
	require.Len(t, sum, 64)

	// Deterministic for identical content
	again, err := ComputeChecksum(cp)
	require.NoError(t, err)
	assert.Equal(t, sum, again)

	cp.Checksum = sum
	require.NoError(t, ValidateChecksum(cp))

	// The stored checksum itself must not feed the hash
	unchanged, err := ComputeChecksum(cp)
	require.NoError(t, err)
	assert.Equal(t, sum, unchanged)
}

func TestChecksumDetectsTamper(t *testing.T) {
	cp := &Checkpoint{
		ID:        "cp-test",
		Sequence:  1,
		Type:      TypeYearComplete,
		Year:      2025,
		CreatedAt: time.Now().UTC(),
	}

	sum, err := ComputeChecksum(cp)
	require.NoError(t, err)
	cp.Checksum = sum

	cp.Year = 2030
	err = ValidateChecksum(cp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestChecksumMissing(t *testing.T) {
	cp := &Checkpoint{ID: "cp-test", Type: TypeRunStart, Year: 2025}
	err := ValidateChecksum(cp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no checksum")
}

func TestFilenameEncoding(t *testing.T) {
	assert.Equal(t, "cp-000012-2025-YEAR_START.json", Filename(12, 2025, TypeYearStart))
	assert.Equal(t, "cp-000001-2029-RUN_COMPLETE.json", Filename(1, 2029, TypeRunComplete))

	// Zero-padded sequence keeps lexical order equal to numeric order
	assert.Less(t, Filename(9, 2025, TypeError), Filename(10, 2025, TypeRunStart))
	assert.Less(t, Filename(99, 2030, TypeYearComplete), Filename(100, 2025, TypeYearStart))
}

func TestParseFilename(t *testing.T) {
	seq, year, typ, err := ParseFilename("cp-000042-2027-STEP_COMPLETE.json")
	require.NoError(t, err)
	assert.Equal(t, 42, seq)
	assert.Equal(t, 2027, year)
	assert.Equal(t, TypeStepComplete, typ)

	rejected := []string{
		"README.md",
		"cp-000001-2025-YEAR_START",
		"checkpoint-000001-2025-YEAR_START.json",
		"cp-abc-2025-YEAR_START.json",
		"cp-000001-twenty-YEAR_START.json",
		"cp-000001-2025-SNAPSHOT.json",
		"cp-000001.json",
		".cp.tmp.123456",
	}
	for _, name := range rejected {
		_, _, _, err := ParseFilename(name)
		assert.Error(t, err, "expected %s to be rejected", name)
	}
}

func TestParseFilenameRoundTrip(t *testing.T) {
	for _, typ := range []Type{TypeRunStart, TypeYearStart, TypeStepComplete, TypeYearComplete, TypeRunComplete, TypeError} {
		name := Filename(314, 2031, typ)
		seq, year, parsed, err := ParseFilename(name)
		require.NoError(t, err)
		assert.Equal(t, 314, seq)
		assert.Equal(t, 2031, year)
		assert.Equal(t, typ, parsed)
	}
}
