// Package pipeline checks finished App records and writes them to the
// configured outputs.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aluiziolira/go-scrape-apps/models"
	"github.com/aluiziolira/go-scrape-apps/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after Close.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(apps []*models.App) error
	Close() error
	Validate() error
}

// Pipeline normalizes records and writes them synchronously, so a record is
// on disk before its work item is checkpointed.
type Pipeline struct {
	writer OutputWriter
	logger *slog.Logger

	mu     sync.Mutex
	seen   map[string]struct{}
	closed bool

	metrics metrics
}

// NewPipeline builds a pipeline in front of writer.
func NewPipeline(writer OutputWriter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		writer:  writer,
		logger:  logger,
		seen:    make(map[string]struct{}),
		metrics: newMetrics(),
	}
}

// Process writes apps. Incomplete records and repeated URLs are still written,
// since the error log already explains them, but they are counted.
func (p *Pipeline) Process(apps []*models.App) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPipelineClosed
	}

	batch := make([]*models.App, 0, len(apps))
	for _, app := range apps {
		if app == nil {
			continue
		}
		batch = append(batch, p.prepare(app))
	}
	if len(batch) == 0 {
		return nil
	}

	if err := p.writer.Write(batch); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	p.metrics.addProcessed(len(batch))
	return nil
}

// Close prevents more submissions and closes the writer.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

func (p *Pipeline) prepare(app *models.App) *models.App {
	if err := parser.ValidateApp(app); err != nil {
		p.metrics.addValidation("incomplete_record")
		p.logger.Debug("writing incomplete app", slog.String("url", app.URL), slog.Any("error", err))
	}

	if _, ok := p.seen[app.URL]; ok {
		p.metrics.addValidation("duplicate_url")
	}
	p.seen[app.URL] = struct{}{}
	return app
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) addProcessed(n int) {
	m.mu.Lock()
	m.processed += int64(n)
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_apps":    m.processed,
		"validation_errors": copyValidation,
	}
}
