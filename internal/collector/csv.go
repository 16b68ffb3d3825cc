package collector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"HiLoBacktester/internal/model"
)

const csvTimeLayout = "2006-01-02 15:04:05-07:00"

var csvDateLayouts = []string{
	csvTimeLayout,
	time.RFC3339,
	time.DateTime,
	time.DateOnly,
}

// CSVFetcher reads bars from CSV files in the yfinance export layout. With File
// set it always reads that file; otherwise it looks up the cache file for the
// requested symbol and range under Dir.
type CSVFetcher struct {
	Dir  string
	File string
}

func (f *CSVFetcher) Name() string { return "csv" }

// CachePath returns the file used for a symbol and date range.
func CachePath(dir, symbol string, start, end time.Time) string {
	name := fmt.Sprintf("%s_%s_%s.csv", symbol, dateKey(start), dateKey(end))
	return filepath.Join(dir, name)
}

func dateKey(t time.Time) string {
	if t.IsZero() {
		return "max"
	}
	return t.Format(time.DateOnly)
}

func (f *CSVFetcher) FetchDailyBars(_ context.Context, symbol string, start, end time.Time) (*model.RawFrame, error) {
	path := f.File
	if path == "" {
		path = CachePath(f.Dir, symbol, start, end)
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("csv %s: %w", path, model.ErrNoData)
		}
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	frame, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	frame.Symbol = symbol
	return frame, nil
}

// ReadCSV parses a bar export. The first row holds the field names; further
// rows before the data that do not start with a date add header levels (the
// "Ticker" row of a multi-ticker download); a row that is just an index label
// ("Date,,,") is skipped.
func ReadCSV(r io.Reader) (*model.RawFrame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 || len(records[0]) < 2 {
		return nil, model.ErrNoData
	}

	width := len(records[0]) - 1
	frame := &model.RawFrame{Columns: make([]model.ColumnKey, width)}
	for j := 0; j < width; j++ {
		frame.Columns[j] = model.ColumnKey{strings.TrimSpace(records[0][j+1])}
	}

	inHeader := true
	for n, rec := range records[1:] {
		if len(rec) == 0 {
			continue
		}
		ts, dateErr := parseCSVDate(rec[0])
		if inHeader && dateErr != nil {
			if isLabelRow(rec) {
				continue
			}
			for j := 0; j < width && j+1 < len(rec); j++ {
				frame.Columns[j] = append(frame.Columns[j], strings.TrimSpace(rec[j+1]))
			}
			continue
		}
		inHeader = false
		if dateErr != nil {
			return nil, fmt.Errorf("line %d: %w", n+2, dateErr)
		}
		row := make([]float64, width)
		for j := 0; j < width; j++ {
			row[j] = math.NaN()
			if j+1 >= len(rec) {
				continue
			}
			cell := strings.TrimSpace(rec[j+1])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", n+2, j+2, err)
			}
			row[j] = v
		}
		frame.Index = append(frame.Index, ts)
		frame.Rows = append(frame.Rows, row)
	}
	return frame, nil
}

func isLabelRow(rec []string) bool {
	for _, cell := range rec[1:] {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseCSVDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// WriteCSV stores a frame in the layout ReadCSV understands.
func WriteCSV(path string, frame *model.RawFrame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	w := csv.NewWriter(file)

	levels := 1
	for _, key := range frame.Columns {
		levels = max(levels, len(key))
	}
	labels := []string{"Price", "Ticker"}
	for lvl := 0; lvl < levels; lvl++ {
		label := "Date"
		if levels > 1 {
			label = ""
			if lvl < len(labels) {
				label = labels[lvl]
			}
		}
		rec := []string{label}
		for _, key := range frame.Columns {
			cell := ""
			if lvl < len(key) {
				cell = key[lvl]
			}
			rec = append(rec, cell)
		}
		if err := w.Write(rec); err != nil {
			file.Close()
			return err
		}
	}
	if levels > 1 {
		if err := w.Write(append([]string{"Date"}, make([]string, len(frame.Columns))...)); err != nil {
			file.Close()
			return err
		}
	}

	for i, ts := range frame.Index {
		rec := []string{ts.Format(csvTimeLayout)}
		for _, v := range frame.Rows[i] {
			cell := ""
			if !math.IsNaN(v) {
				cell = strconv.FormatFloat(v, 'g', -1, 64)
			}
			rec = append(rec, cell)
		}
		if err := w.Write(rec); err != nil {
			file.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
