package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// AcquireLock takes a pid-stamped lock file so only one daemon instance runs
// at a time. A lock left behind by a dead process is reclaimed. The returned
// release function removes the lock.
func AcquireLock(path string) (func(), error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}
		if !lockIsStale(path) {
			return nil, fmt.Errorf("another instance is already running (lock %s)", path)
		}
		os.Remove(path)
	}
	return nil, fmt.Errorf("failed to reclaim stale lock %s", path)
}

func lockIsStale(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return true
	}
	return !pidAlive(pid)
}
