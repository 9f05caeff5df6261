// Package disk encodes and decodes the pipeline's persisted configuration:
// mode parameters, alias resolutions, filter sets and filter graphs.
//
// The codec functions are pure: Load* consumes parsed rows and returns
// structures, Save* produces rows from structures, so the actual file format
// and I/O are substitutable. Loads validate the whole input before returning
// anything; a single malformed row fails the entire load with no partial
// result, and the caller applies the result to live state only on success.
//
// ReadFile and WriteFile are thin helpers over the row codecs using a
// comma-delimited text format. Writes go to a temporary file that is renamed
// over the target only after a complete, successful write.
package disk

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// ReadFile parses a delimited settings file into rows. Blank lines are
// dropped; rows may have varying field counts.
func ReadFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// WriteFile writes rows to the given path atomically: the data goes to
// <path>.temporary first and is renamed over the target only once fully
// written.
func WriteFile(path string, rows [][]string) error {
	tmp := path + ".temporary"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temporary settings file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write settings rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to flush settings rows: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close temporary settings file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace settings file: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "WriteFile",
		"path":     path,
		"rows":     len(rows),
	}).Info("Settings file saved")

	return nil
}

// brace wraps a string value the way the original file format does, so
// free-form values are visually delimited in the file.
func brace(s string) string {
	return "{" + s + "}"
}

// unbrace strips the optional {...} wrapping from a persisted string value.
func unbrace(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return s[1 : len(s)-1]
	}
	return s
}

// wantField validates the leading field of a row against the expected name.
func wantField(rows [][]string, i int, name string) error {
	if i >= len(rows) {
		return fmt.Errorf("unexpected end of data: expected a %q row", name)
	}
	if len(rows[i]) == 0 || rows[i][0] != name {
		got := "(empty row)"
		if len(rows[i]) > 0 {
			got = rows[i][0]
		}
		return fmt.Errorf("row %d: expected %q but got %q", i, name, got)
	}
	return nil
}

// uintField parses an unsigned integer field.
func uintField(row []string, i int) (uint32, error) {
	if i >= len(row) {
		return 0, fmt.Errorf("row is missing field %d", i)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(row[i]), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("field %d is not an unsigned integer: %q", i, row[i])
	}
	return uint32(v), nil
}

// intField parses a signed integer field.
func intField(row []string, i int) (int, error) {
	if i >= len(row) {
		return 0, fmt.Errorf("row is missing field %d", i)
	}
	v, err := strconv.Atoi(strings.TrimSpace(row[i]))
	if err != nil {
		return 0, fmt.Errorf("field %d is not an integer: %q", i, row[i])
	}
	return v, nil
}
