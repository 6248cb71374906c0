package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeXLSX(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save xlsx: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close xlsx: %v", err)
	}
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qa.csv")
	writeFile(t, path, "\ufeffQuestion, Answer\n"+
		"\"Capital of   Vietnam?\",Hanoi\n"+
		"Largest planet?,\n"+
		"\"Who wrote \"\"Truyen Kieu\"\"?\",Nguyen Du\n")

	batch, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if batch.Source != "qa.csv" || batch.Skipped != 1 || len(batch.Questions) != 2 {
		t.Fatalf("unexpected batch: %+v", batch)
	}
	if batch.Questions[0].Prompt != "Capital of Vietnam?" || batch.Questions[0].ExpectedAnswer != "Hanoi" {
		t.Fatalf("unexpected first question: %+v", batch.Questions[0])
	}
	if batch.Questions[1].Prompt != `Who wrote "Truyen Kieu"?` {
		t.Fatalf("unexpected quoted prompt: %q", batch.Questions[1].Prompt)
	}
}

func TestLoadCSVMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	writeFile(t, path, "question,notes\nA,B\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected missing column error")
	}
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qa.xlsx")
	writeXLSX(t, path, [][]any{
		{"prompt", "expected_answer"},
		{"Largest planet?", "Jupiter"},
		{"", "orphan"},
	})

	batch, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(batch.Questions) != 1 || batch.Skipped != 1 {
		t.Fatalf("unexpected batch: %+v", batch)
	}
	if batch.Questions[0].ExpectedAnswer != "Jupiter" {
		t.Fatalf("unexpected question: %+v", batch.Questions[0])
	}
}

func TestLoadUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qa.txt")
	writeFile(t, path, "question,answer\n")
	if _, err := LoadFile(path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExpandAndLoadFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.csv"), "question,answer\nQ2,A2\n")
	writeFile(t, filepath.Join(dir, "a.csv"), "question,answer\nQ1,A1\n")
	writeFile(t, filepath.Join(dir, "notes.md"), "ignored")
	writeXLSX(t, filepath.Join(dir, "c.xlsx"), [][]any{{"question", "answer"}, {"Q3", "A3"}})

	files, err := Expand([]string{dir})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(files) != 3 || filepath.Base(files[0]) != "a.csv" || filepath.Base(files[2]) != "c.xlsx" {
		t.Fatalf("unexpected files: %v", files)
	}

	batches, err := LoadFiles(context.Background(), files, 2)
	if err != nil {
		t.Fatalf("load files: %v", err)
	}
	for i, want := range []string{"Q1", "Q2", "Q3"} {
		if batches[i].Questions[0].Prompt != want {
			t.Fatalf("batch %d: expected %s, got %+v", i, want, batches[i])
		}
	}
}

func TestLoadFilesStopsOnError(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.csv")
	bad := filepath.Join(dir, "bad.csv")
	writeFile(t, good, "question,answer\nQ,A\n")
	writeFile(t, bad, "nothing,useful\n")
	if _, err := LoadFiles(context.Background(), []string{good, bad}, 1); err == nil {
		t.Fatalf("expected error from bad file")
	}
}

func TestExpandEmptyDir(t *testing.T) {
	if _, err := Expand([]string{t.TempDir()}); err == nil {
		t.Fatalf("expected error for directory without inputs")
	}
}
