// Package export writes listed entries to CSV and JSONL files.
package export

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

	"github.com/aluiziolira/go-scrape-kym/models"
)

// Supported formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatDual = "dual"
)

var csvHeader = []string{"rank", "title", "url", "thumbnail_url", "timestamp"}

// Writer appends entries to an output file.
type Writer interface {
	Write(entries []models.Entry) error
	Close() error
}

// NewWriter opens a writer for format at path. The dual format writes path with .csv and
// .jsonl extensions side by side.
func NewWriter(format, path string) (Writer, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("export path is empty")
	}
	switch format {
	case FormatCSV:
		return NewCSVWriter(path)
	case FormatJSON, "":
		return NewJSONWriter(path)
	case FormatDual:
		stem := strings.TrimSuffix(path, filepath.Ext(path))
		return NewDualWriter(stem+".csv", stem+".jsonl")
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// CSVWriter writes entries as CSV rows under a fixed header.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates filename and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	f, err := create(filename)
	if err != nil {
		return nil, err
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}
	return &CSVWriter{file: f, writer: writer}, nil
}

func (cw *CSVWriter) Write(entries []models.Entry) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, e := range entries {
		record := []string{strconv.Itoa(e.Rank), e.Title, e.URL, e.ThumbnailURL, e.Timestamp}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.file.Close()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// JSONWriter writes one JSON object per line.
type JSONWriter struct {
	file    *os.File
	buf     *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter creates filename for JSONL output.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	f, err := create(filename)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)
	return &JSONWriter{file: f, buf: buf, encoder: json.NewEncoder(buf)}, nil
}

func (jw *JSONWriter) Write(entries []models.Entry) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, e := range entries {
		if err := jw.encoder.Encode(e); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	if err := jw.buf.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.buf.Flush(); err != nil {
		jw.file.Close()
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

func create(filename string) (*os.File, error) {
	if dir := filepath.Dir(filename); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", filename, err)
	}
	return f, nil
}
