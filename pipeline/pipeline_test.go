package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-apps/models"
)

type mockWriter struct {
	mu          sync.Mutex
	batches     [][]*models.App
	closed      bool
	writeErr    error
	validateErr error
}

func (mw *mockWriter) Write(apps []*models.App) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.writeErr != nil {
		return mw.writeErr
	}
	copyBatch := make([]*models.App, len(apps))
	copy(copyBatch, apps)
	mw.batches = append(mw.batches, copyBatch)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	mw.closed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Validate() error {
	return mw.validateErr
}

func (mw *mockWriter) totalWritten() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	total := 0
	for _, batch := range mw.batches {
		total += len(batch)
	}
	return total
}

func sampleApp(url, title string) *models.App {
	app := models.NewApp(url)
	app.Title = title
	app.ScrapedAt = time.Now()
	return app
}

func TestPipelineProcessCountsButKeepsEveryRecord(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer, nil)

	valid := sampleApp("https://apps.example.test/inbox", "  Shopify   Inbox ")
	incomplete := sampleApp("https://apps.example.test/broken", "")
	duplicate := sampleApp("https://apps.example.test/inbox", "Shopify Inbox")

	if err := p.Process([]*models.App{valid, incomplete, nil, duplicate}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.totalWritten(); got != 3 {
		t.Fatalf("written apps = %d, want 3", got)
	}
	if !writer.closed {
		t.Fatalf("expected writer to be closed")
	}
	if valid.Title != "  Shopify   Inbox " {
		t.Fatalf("title rewritten by the pipeline: %q", valid.Title)
	}

	metrics := p.GetMetrics()
	if processed := metrics["processed_apps"].(int64); processed != 3 {
		t.Fatalf("processed = %d, want 3", processed)
	}
	validation, ok := metrics["validation_errors"].(map[string]int)
	if !ok {
		t.Fatalf("expected validation errors map")
	}
	if validation["incomplete_record"] != 1 {
		t.Fatalf("incomplete_record = %d, want 1", validation["incomplete_record"])
	}
	if validation["duplicate_url"] != 1 {
		t.Fatalf("duplicate_url = %d, want 1", validation["duplicate_url"])
	}
}

func TestPipelineProcessAfterClose(t *testing.T) {
	p := NewPipeline(&mockWriter{}, nil)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	err := p.Process([]*models.App{sampleApp("https://apps.example.test/a", "A")})
	if !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("expected ErrPipelineClosed, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
}

func TestPipelinePropagatesWriterError(t *testing.T) {
	boom := errors.New("disk full")
	p := NewPipeline(&mockWriter{writeErr: boom}, nil)

	err := p.Process([]*models.App{sampleApp("https://apps.example.test/a", "A")})
	if !errors.Is(err, boom) {
		t.Fatalf("expected writer error, got %v", err)
	}
	if processed := p.GetMetrics()["processed_apps"].(int64); processed != 0 {
		t.Fatalf("processed = %d, want 0", processed)
	}
}

func TestPipelineEmptyBatchSkipsWriter(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer, nil)
	if err := p.Process(nil); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(writer.batches) != 0 {
		t.Fatalf("expected no writes, got %d", len(writer.batches))
	}
}
