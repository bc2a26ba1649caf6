package pipeline

import (
	"fmt"
	"os"
	"sync"

	"github.com/aluiziolira/go-scrape-apps/models"
	"github.com/timshannon/badgerhold/v4"
)

// BadgerWriter stores apps in an embedded badger database keyed by URL, so a
// re-scraped app replaces its earlier record.
type BadgerWriter struct {
	store *badgerhold.Store
	mu    sync.Mutex
}

// NewBadgerWriter opens or creates the database directory at path.
func NewBadgerWriter(path string) (*BadgerWriter, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create badger directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerWriter{store: store}, nil
}

// Write upserts apps.
func (bw *BadgerWriter) Write(apps []*models.App) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	for _, app := range apps {
		if err := bw.store.Upsert(app.URL, *app); err != nil {
			return fmt.Errorf("upsert app %s: %w", app.URL, err)
		}
	}
	return nil
}

// Get loads the app stored under url.
func (bw *BadgerWriter) Get(url string) (*models.App, error) {
	var app models.App
	if err := bw.store.Get(url, &app); err != nil {
		return nil, fmt.Errorf("get app %s: %w", url, err)
	}
	return &app, nil
}

// Count returns the number of stored apps.
func (bw *BadgerWriter) Count() (uint64, error) {
	n, err := bw.store.Count(&models.App{}, nil)
	if err != nil {
		return 0, fmt.Errorf("count apps: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (bw *BadgerWriter) Close() error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.store.Close()
}

// Validate ensures at least one app was stored.
func (bw *BadgerWriter) Validate() error {
	n, err := bw.Count()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("badger store is empty")
	}
	return nil
}
