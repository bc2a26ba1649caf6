package pipeline

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-apps/models"
)

// MultiWriter fans every batch out to several writers in order. A write stops
// at the first failing writer; Close and Validate visit all of them.
type MultiWriter struct {
	writers []namedWriter
}

type namedWriter struct {
	name string
	OutputWriter
}

// NewDualWriter writes CSV and JSONL side by side. The JSONL copy keeps the
// review texts the CSV drops.
func NewDualWriter(csvFilename, jsonFilename string) (*MultiWriter, error) {
	return openAll(
		func() (string, OutputWriter, error) {
			w, err := NewCSVWriter(csvFilename)
			return "CSV", w, err
		},
		func() (string, OutputWriter, error) {
			w, err := NewJSONWriter(jsonFilename)
			return "JSON", w, err
		},
	)
}

// NewArchiveWriter adds the badger store to the dual output.
func NewArchiveWriter(csvFilename, jsonFilename, storePath string) (*MultiWriter, error) {
	return openAll(
		func() (string, OutputWriter, error) {
			w, err := NewCSVWriter(csvFilename)
			return "CSV", w, err
		},
		func() (string, OutputWriter, error) {
			w, err := NewJSONWriter(jsonFilename)
			return "JSON", w, err
		},
		func() (string, OutputWriter, error) {
			w, err := NewBadgerWriter(storePath)
			return "badger", w, err
		},
	)
}

func openAll(openers ...func() (string, OutputWriter, error)) (*MultiWriter, error) {
	mw := &MultiWriter{}
	for _, open := range openers {
		name, w, err := open()
		if err != nil {
			_ = mw.Close()
			return nil, fmt.Errorf("failed to create %s writer: %w", name, err)
		}
		mw.writers = append(mw.writers, namedWriter{name: name, OutputWriter: w})
	}
	return mw, nil
}

func (mw *MultiWriter) Write(apps []*models.App) error {
	for _, w := range mw.writers {
		if err := w.Write(apps); err != nil {
			return fmt.Errorf("%s write failed: %w", w.name, err)
		}
	}
	return nil
}

func (mw *MultiWriter) Close() error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s close failed: %w", w.name, err))
		}
	}
	return errors.Join(errs...)
}

func (mw *MultiWriter) Validate() error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s validation failed: %w", w.name, err))
		}
	}
	return errors.Join(errs...)
}
