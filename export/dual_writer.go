package export

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-kym/models"
)

// DualWriter sends every batch to a CSV and a JSONL file.
type DualWriter struct {
	csv  *CSVWriter
	json *JSONWriter
}

// NewDualWriter opens both files. If the second cannot be created the first is closed.
func NewDualWriter(csvFilename, jsonFilename string) (*DualWriter, error) {
	cw, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, err
	}
	jw, err := NewJSONWriter(jsonFilename)
	if err != nil {
		cw.Close()
		return nil, err
	}
	return &DualWriter{csv: cw, json: jw}, nil
}

func (dw *DualWriter) Write(entries []models.Entry) error {
	if err := dw.csv.Write(entries); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	if err := dw.json.Write(entries); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

func (dw *DualWriter) Close() error {
	var errs []error
	if err := dw.csv.Close(); err != nil {
		errs = append(errs, fmt.Errorf("csv: %w", err))
	}
	if err := dw.json.Close(); err != nil {
		errs = append(errs, fmt.Errorf("json: %w", err))
	}
	return errors.Join(errs...)
}
