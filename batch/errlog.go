package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aluiziolira/go-scrape-apps/models"
)

// ErrorSink records the failures of one item.
type ErrorSink interface {
	Append(item string, errs models.ErrorLog) error
}

// FileErrorLog appends failures to a plain text file, one block per item:
//
//	Failed to scrape <item>
//		<message>
//		<message>
type FileErrorLog struct {
	Path string
}

// NewFileErrorLog returns an error log writing to path.
func NewFileErrorLog(path string) *FileErrorLog {
	return &FileErrorLog{Path: path}
}

func (l *FileErrorLog) Append(item string, errs models.ErrorLog) error {
	if len(errs) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return fmt.Errorf("create error log dir: %w", err)
	}

	file, err := os.OpenFile(l.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open error log: %w", err)
	}
	defer file.Close()

	var b strings.Builder
	b.WriteString("Failed to scrape " + item + "\n")
	for _, msg := range errs {
		b.WriteString("\t" + msg + "\n")
	}
	if _, err := file.WriteString(b.String()); err != nil {
		return fmt.Errorf("write error log: %w", err)
	}
	return nil
}
