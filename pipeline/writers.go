package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-apps/models"
)

var csvHeader = []string{
	"url", "title", "image_url", "rating", "review_count",
	"developer_name", "developer_link", "date_launched", "categories", "price_plans",
	"reviews_5_star", "reviews_4_star", "reviews_3_star", "reviews_2_star", "reviews_1_star",
	"reviews_scraped", "scraped_at",
}

// CSVWriter appends flattened records to a CSV file. Review texts are not
// written, only the per-bucket counts.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter opens filename for appending and writes the header row when
// the file is new.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	f, err := openAppend(filename)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := writer.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("flush csv header: %w", err)
		}
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends apps to the CSV output.
func (cw *CSVWriter) Write(apps []*models.App) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, app := range apps {
		if err := cw.writer.Write(csvRecord(app)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

func csvRecord(app *models.App) []string {
	rating := ""
	if app.Rating != nil {
		rating = strconv.FormatFloat(*app.Rating, 'f', -1, 64)
	}
	reviewCount := ""
	if app.ReviewCount != nil {
		reviewCount = strconv.Itoa(*app.ReviewCount)
	}

	record := []string{
		app.URL,
		app.Title,
		app.ImageURL,
		rating,
		reviewCount,
		app.DeveloperName,
		app.DeveloperLink,
		app.DateLaunched,
		strings.Join(app.Categories, "; "),
		strings.Join(app.PricePlans, "; "),
	}
	for _, key := range models.RatingBuckets {
		record = append(record, strconv.Itoa(app.Reviews[key].Count))
	}
	return append(record, strconv.Itoa(app.ReviewsScraped()), app.ScrapedAt.Format(time.RFC3339))
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter appends newline-delimited JSON records, so a resumed run keeps
// the records of earlier runs.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter opens filename for appending.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	f, err := openAppend(filename)
	if err != nil {
		return nil, fmt.Errorf("open json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends apps in JSONL format.
func (jw *JSONWriter) Write(apps []*models.App) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, app := range apps {
		if err := jw.encoder.Encode(app); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

// LineWriter appends plain lines to a text file. It backs the search term
// and app link lists.
type LineWriter struct {
	file *os.File
	mu   sync.Mutex
}

// NewLineWriter opens filename for appending.
func NewLineWriter(filename string) (*LineWriter, error) {
	f, err := openAppend(filename)
	if err != nil {
		return nil, fmt.Errorf("open line file: %w", err)
	}
	return &LineWriter{file: f}, nil
}

// WriteLines appends each line followed by a newline.
func (lw *LineWriter) WriteLines(lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	lw.mu.Lock()
	defer lw.mu.Unlock()

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if _, err := lw.file.WriteString(b.String()); err != nil {
		return fmt.Errorf("write lines: %w", err)
	}
	return nil
}

// Close closes the file.
func (lw *LineWriter) Close() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.file.Close()
}

func openAppend(filename string) (*os.File, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	return os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
