// Package export writes scraped records to delimited text files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ibeckermayer/searchscroll/internal/types"
)

// Columns is the fixed column order of every output line. No header row is written.
var Columns = []string{
	"created_at", "author_id", "author_handle", "author_name",
	"text", "replies", "retweets", "likes",
}

// Row formats a record in Columns order. Absent values become empty fields.
func Row(r types.Record) []string {
	var createdAt, text string
	if r.CreatedAt != nil {
		createdAt = FormatFloat(*r.CreatedAt)
	}
	if r.Text != nil {
		text = *r.Text
	}
	return []string{
		createdAt,
		r.AuthorID,
		r.AuthorHandle,
		r.AuthorName,
		text,
		strconv.Itoa(r.Replies),
		strconv.Itoa(r.Retweets),
		strconv.Itoa(r.Likes),
	}
}

// FormatFloat renders f with the shortest exact digits and always a
// fractional part ("1577836800000.0"). Magnitudes outside [1e-4, 1e16)
// use exponent form.
func FormatFloat(f float64) string {
	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// WriteRecords writes one line per record with non-empty text, in order,
// and returns the number of lines written.
func WriteRecords(w io.Writer, records []types.Record) (int, error) {
	writer := csv.NewWriter(w)

	written := 0
	for _, r := range records {
		if !r.HasText() {
			continue
		}
		if err := writer.Write(Row(r)); err != nil {
			return written, fmt.Errorf("failed to write record %s: %w", r.ExternalID, err)
		}
		written++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return written, fmt.Errorf("failed to flush records: %w", err)
	}
	return written, nil
}

// WriteFile creates or truncates path and writes records to it. The file is
// created even when no record has text.
func WriteFile(path string, records []types.Record) (int, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create output dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	written, err := WriteRecords(f, records)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close file: %w", closeErr)
	}
	return written, err
}
