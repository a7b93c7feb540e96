package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/go-scrape-kym/models"
)

var sampleEntries = []models.Entry{
	{Title: "Distracted Boyfriend", URL: "https://knowyourmeme.com/memes/distracted-boyfriend", ThumbnailURL: "https://i.kym-cdn.com/db.jpg", Rank: 1, Timestamp: "2026-10-14T09:12:00Z"},
	{Title: "Doge", URL: "https://knowyourmeme.com/memes/doge", Rank: 2},
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

func readJSONL(t *testing.T, path string) []models.Entry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open jsonl: %v", err)
	}
	defer f.Close()

	var out []models.Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e models.Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan jsonl: %v", err)
	}
	return out
}

func TestCSVWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "entries.csv")

	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := w.Write(sampleEntries); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	records := readCSV(t, path)
	if len(records) != 3 {
		t.Fatalf("records=%d, want 3", len(records))
	}
	if records[0][0] != "rank" || records[0][1] != "title" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[1][1] != "Distracted Boyfriend" || records[1][4] != "2026-10-14T09:12:00Z" {
		t.Fatalf("unexpected first row: %v", records[1])
	}
	if records[2][0] != "2" || records[2][3] != "" {
		t.Fatalf("unexpected second row: %v", records[2])
	}
}

func TestJSONWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.jsonl")

	w, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	if err := w.Write(sampleEntries); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	got := readJSONL(t, path)
	if len(got) != len(sampleEntries) {
		t.Fatalf("json lines=%d, want %d", len(got), len(sampleEntries))
	}
	for i := range got {
		if got[i] != sampleEntries[i] {
			t.Fatalf("line %d = %+v, want %+v", i, got[i], sampleEntries[i])
		}
	}
}

func TestNewWriterDual(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(FormatDual, filepath.Join(dir, "entries.json"))
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}
	if err := w.Write(sampleEntries); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	if records := readCSV(t, filepath.Join(dir, "entries.csv")); len(records) != 3 {
		t.Fatalf("csv records=%d, want 3", len(records))
	}
	if lines := readJSONL(t, filepath.Join(dir, "entries.jsonl")); len(lines) != 2 {
		t.Fatalf("json lines=%d, want 2", len(lines))
	}
}

func TestNewWriterRejectsBadInput(t *testing.T) {
	if _, err := NewWriter("xml", filepath.Join(t.TempDir(), "x.xml")); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if _, err := NewWriter(FormatCSV, " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
