package batch

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadItems reads newline-delimited work items from path. Surrounding space
// is trimmed and blank lines are skipped.
func LoadItems(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open items %q: %w", path, err)
	}
	defer file.Close()

	var items []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		items = append(items, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read items %q: %w", path, err)
	}
	return items, nil
}
