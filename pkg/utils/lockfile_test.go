package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndReleaseLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")

	release, err := AcquireLock(path)
	require.NoError(t, err)

	// A second instance is refused while the lock is held.
	_, err = AcquireLock(path)
	assert.Error(t, err)

	release()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// And succeeds again after release.
	release2, err := AcquireLock(path)
	require.NoError(t, err)
	release2()
}

func TestAcquireLockReclaimsStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")
	// Garbage content counts as stale.
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid\n"), 0644))

	release, err := AcquireLock(path)
	require.NoError(t, err)
	release()
}

func TestAcquireLockReclaimsDeadPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")
	// Pids wrap well below this on every supported platform.
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("%d\n", 1<<22+12345)), 0644))

	release, err := AcquireLock(path)
	require.NoError(t, err)
	release()
}
