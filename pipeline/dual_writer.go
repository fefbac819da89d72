package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// output is one destination of a DualWriter, labelled by the file it writes.
type output struct {
	path   string
	writer OutputWriter
}

// DualWriter sends every batch to a CSV file and a JSON Lines file. Rows reach both
// files in the same order; a failed output is reported by path.
type DualWriter struct {
	outputs []output
	mu      sync.Mutex
}

// NewDualWriter opens csvFilename and jsonFilename. If the second cannot be opened
// the first is closed again.
func NewDualWriter(csvFilename, jsonFilename string) (*DualWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, err
	}
	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, err
	}

	return &DualWriter{outputs: []output{
		{path: csvFilename, writer: csvWriter},
		{path: jsonFilename, writer: jsonWriter},
	}}, nil
}

// Write stops at the first output that fails, so a batch is never in the JSON file
// without also being in the CSV file.
func (dw *DualWriter) Write(records []*models.Record) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	for _, out := range dw.outputs {
		if err := out.writer.Write(records); err != nil {
			return fmt.Errorf("%s: %d records: %w", out.path, len(records), err)
		}
	}
	return nil
}

func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.each(OutputWriter.Close)
}

// Validate checks every output and names each file that failed.
func (dw *DualWriter) Validate() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.each(OutputWriter.Validate)
}

func (dw *DualWriter) each(fn func(OutputWriter) error) error {
	var errs []error
	for _, out := range dw.outputs {
		if err := fn(out.writer); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", out.path, err))
		}
	}
	return errors.Join(errs...)
}
