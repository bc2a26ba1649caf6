package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// CheckpointStore persists the index of the first item not yet processed.
type CheckpointStore interface {
	Load() (int, error)
	Save(index int) error
}

type checkpointFile struct {
	LastIndex int `toml:"last_index"`
}

// FileCheckpoint keeps the cursor in a small TOML file.
type FileCheckpoint struct {
	Path string
}

// NewFileCheckpoint returns a checkpoint stored at path.
func NewFileCheckpoint(path string) *FileCheckpoint {
	return &FileCheckpoint{Path: path}
}

// Load returns the stored cursor, or zero when no checkpoint exists yet.
func (c *FileCheckpoint) Load() (int, error) {
	data, err := os.ReadFile(c.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read checkpoint %q: %w", c.Path, err)
	}

	var state checkpointFile
	if err := toml.Unmarshal(data, &state); err != nil {
		return 0, fmt.Errorf("parse checkpoint %q: %w", c.Path, err)
	}
	if state.LastIndex < 0 {
		return 0, fmt.Errorf("checkpoint %q holds negative index %d", c.Path, state.LastIndex)
	}
	return state.LastIndex, nil
}

// Save replaces the stored cursor. The file is swapped in with a rename so a
// crash never leaves a truncated checkpoint behind.
func (c *FileCheckpoint) Save(index int) error {
	data, err := toml.Marshal(checkpointFile{LastIndex: index})
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(c.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.Path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}
