package agentruntime

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/meshcore/mesh/internal/atomicfile"
)

// WritePID records the current process PID at path.
func WritePID(path string) error {
	return atomicfile.Write(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

// ReadPID returns the PID recorded at path.
func ReadPID(path string) (int, error) {
	data, err := atomicfile.ReadIfExists(path)
	if err != nil {
		return 0, err
	}
	if data == nil {
		return 0, fmt.Errorf("agentruntime: no pid file at %s", path)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("agentruntime: malformed pid file %s: %w", path, err)
	}
	return pid, nil
}

// RemovePID deletes the pid file at path, ignoring a missing file.
func RemovePID(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("agentruntime: remove pid file %s: %w", path, err)
	}
	return nil
}
