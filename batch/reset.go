package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Reset deletes each path that exists, files and directories alike, and
// returns the ones it removed.
func Reset(paths ...string) ([]string, error) {
	var deleted []string
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return deleted, fmt.Errorf("stat %q: %w", path, err)
		}
		if err := os.RemoveAll(path); err != nil {
			return deleted, fmt.Errorf("remove %q: %w", path, err)
		}
		deleted = append(deleted, path)
	}
	return deleted, nil
}
