// Package importer reads question/answer pairs from CSV and XLSX files.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/phanngoc/olympia/internal/model"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var (
	promptColumns = []string{"question", "prompt"}
	answerColumns = []string{"answer", "expected_answer"}
)

// Batch holds the questions read from one file.
type Batch struct {
	Source    string
	Questions []model.Question
	Skipped   int
}

// LoadFile reads one CSV or XLSX file.
func LoadFile(path string) (Batch, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		return Batch{}, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	if err != nil {
		return Batch{}, fmt.Errorf("%s: %w", path, err)
	}
	questions, skipped, err := parseRows(rows)
	if err != nil {
		return Batch{}, fmt.Errorf("%s: %w", path, err)
	}
	return Batch{Source: filepath.Base(path), Questions: questions, Skipped: skipped}, nil
}

// Expand replaces directories in paths with the CSV and XLSX files they contain.
func Expand(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(entry.Name())) {
			case ".csv", ".xlsx":
				found = append(found, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no csv or xlsx files found in %s", strings.Join(paths, ", "))
	}
	return files, nil
}

// LoadFiles reads files concurrently, at most workers at a time, and returns
// one batch per file in input order.
func LoadFiles(ctx context.Context, files []string, workers int) ([]Batch, error) {
	if workers <= 0 {
		workers = 4
	}
	batches := make([]Batch, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			batch, err := LoadFile(file)
			if err != nil {
				return err
			}
			batches[i] = batch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}

// parseRows turns a header row plus data rows into questions. Rows missing a
// prompt or an answer are counted as skipped.
func parseRows(rows [][]string) ([]model.Question, int, error) {
	if len(rows) == 0 {
		return nil, 0, errors.New("file is empty")
	}
	header := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		name = strings.TrimPrefix(name, "\ufeff")
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	promptIdx, ok := lookupColumn(header, promptColumns)
	if !ok {
		return nil, 0, errors.New("missing required column: question")
	}
	answerIdx, ok := lookupColumn(header, answerColumns)
	if !ok {
		return nil, 0, errors.New("missing required column: answer")
	}

	var questions []model.Question
	skipped := 0
	for _, row := range rows[1:] {
		prompt := normalize(cell(row, promptIdx))
		answer := normalize(cell(row, answerIdx))
		if prompt == "" || answer == "" {
			skipped++
			continue
		}
		questions = append(questions, model.Question{Prompt: prompt, ExpectedAnswer: answer})
	}
	return questions, skipped, nil
}

func lookupColumn(header map[string]int, names []string) (int, bool) {
	for _, name := range names {
		if idx, ok := header[name]; ok {
			return idx, true
		}
	}
	return 0, false
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}

// normalize trims and collapses internal whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
