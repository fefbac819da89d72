package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

func sampleRecord() *models.Record {
	return &models.Record{
		Title:        "Test Book",
		Price:        "£10.00",
		Rating:       models.RatingUnknown,
		Availability: "In stock",
		URL:          "http://example.test/book/1",
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return records
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out", "books.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	if err := writer.Write([]*models.Record{sampleRecord()}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	records := readCSV(t, path)
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	want := []string{"title", "price", "rating", "availability", "url"}
	for i, col := range want {
		if records[0][i] != col {
			t.Fatalf("unexpected header: %v", records[0])
		}
	}
	if records[1][1] != "£10.00" || records[1][2] != "unknown" {
		t.Fatalf("unexpected row: %v", records[1])
	}
}

func TestCSVWriterOverwritesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.csv")
	if err := os.WriteFile(path, []byte("stale,data\n1,2\n3,4\n5,6\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	records := readCSV(t, path)
	if len(records) != 1 || records[0][0] != "title" {
		t.Fatalf("expected header only, got %v", records)
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "books.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}

	if err := writer.Write([]*models.Record{sampleRecord()}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		var decoded map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		if decoded["rating"] != "unknown" {
			t.Fatalf("rating = %v, want unknown", decoded["rating"])
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if count != 1 {
		t.Fatalf("json lines=%d, want 1", count)
	}
}

func TestNewWriterDual(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "books.csv")
	jsonPath := filepath.Join(dir, "books.jsonl")

	writer, err := NewWriter("dual", csvPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}
	if _, ok := writer.(*DualWriter); !ok {
		t.Fatalf("writer type = %T, want *DualWriter", writer)
	}

	if err := writer.Write([]*models.Record{sampleRecord()}); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("csv file missing or empty")
	}
	if info, err := os.Stat(jsonPath); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}

type failingOutput struct {
	writeErr    error
	validateErr error
	writes      int
}

func (f *failingOutput) Write([]*models.Record) error {
	f.writes++
	return f.writeErr
}

func (f *failingOutput) Close() error { return nil }
func (f *failingOutput) Validate() error { return f.validateErr }

func TestDualWriterReportsFailingOutput(t *testing.T) {
	diskFull := errors.New("no space left on device")
	csvOut := &failingOutput{writeErr: diskFull, validateErr: errors.New("csv file is empty")}
	jsonOut := &failingOutput{}
	dw := &DualWriter{outputs: []output{
		{path: "out/books.csv", writer: csvOut},
		{path: "out/books.jsonl", writer: jsonOut},
	}}

	err := dw.Write([]*models.Record{sampleRecord(), sampleRecord()})
	if !errors.Is(err, diskFull) {
		t.Fatalf("write error = %v, want %v", err, diskFull)
	}
	if !strings.Contains(err.Error(), "out/books.csv: 2 records") {
		t.Fatalf("write error %q does not name the csv output", err)
	}
	if jsonOut.writes != 0 {
		t.Fatalf("json output written after csv failure")
	}

	err = dw.Validate()
	if err == nil || !strings.Contains(err.Error(), "out/books.csv") || strings.Contains(err.Error(), "books.jsonl") {
		t.Fatalf("validate error = %v, want only the csv output named", err)
	}
}

func TestNewWriterUnsupported(t *testing.T) {
	if _, err := NewWriter("xml", filepath.Join(t.TempDir(), "out.xml")); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}
