package bootstrap

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

func TestDirLockAcquireRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireDirLock(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "init.lock"), lock.Path())

	require.NoError(t, lock.Release())

	// Release is idempotent
	require.NoError(t, lock.Release())
}

func TestDirLockContention(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireDirLock(dir)
	require.NoError(t, err)
	defer first.Release()

	_, err = AcquireDirLock(dir)
	require.Error(t, err)

	code, ok := types.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, types.INIT_LOCKED, code)

	// The holder of a live lock is named in the error
	assert.Contains(t, err.Error(), strconv.Itoa(os.Getpid()))
}

func TestDirLockReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireDirLock(dir)
	require.NoError(t, err)
	require.NoError(t, first.Release())

	second, err := AcquireDirLock(dir)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestDirLockCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	lock, err := AcquireDirLock(dir)
	require.NoError(t, err)
	defer lock.Release()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestDirLockFileSurvivesRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireDirLock(dir)
	require.NoError(t, err)
	require.NoError(t, lock.Release())

	// The lock file itself stays behind; only the flock is released
	_, err = os.Stat(filepath.Join(dir, lockFileName))
	require.NoError(t, err)
}
