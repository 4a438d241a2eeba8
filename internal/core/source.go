package core

import (
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"
)

// missingTokens are cell values read as null. This is the usual set of
// spreadsheet and dataframe spellings of "no value".
var missingTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsMissingToken reports whether a raw cell value means "no value".
func IsMissingToken(s string) bool {
	_, ok := missingTokens[s]
	return ok
}

// ReadSource reads a CSV file into a Table of text cells.
//
// Column identifiers are the header tokens as written; a repeated header is
// disambiguated with a ".1", ".2", ... suffix. Values keep their original
// text except missing-value tokens, which become null.
func ReadSource(path string) (*Table, error) {
	return ReadSourceWithProgress(path, nil)
}

// progressStep is the percentage between two progress reports.
const progressStep = 10

// ReadSourceWithProgress is ReadSource with read progress reporting. report,
// if not nil, is called with the percentage of the file consumed each time
// another progressStep percent has been read, and with 100 once the whole
// file has been parsed.
func ReadSourceWithProgress(path string, report func(percent int)) (*Table, error) {
	const op = "read source"

	f, err := os.Open(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, E(KindSourceNotFound, op, err)
		case errors.Is(err, fs.ErrPermission):
			return nil, Errorf(KindMalformedSource, op, "%s is not readable: %v", path, err)
		default:
			return nil, E(KindMalformedSource, op, err)
		}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, E(KindMalformedSource, op, err)
	}
	if info.IsDir() {
		return nil, Errorf(KindMalformedSource, op, "%s is a directory", path)
	}

	cr := WrapForStreaming(f, info.Size())

	var onRecord func()
	if report != nil {
		reported := 0
		onRecord = func() {
			if p := cr.Progress(); p >= reported+progressStep && p < 100 {
				reported = p - p%progressStep
				report(reported)
			}
		}
	}

	t, err := parseSource(cr, onRecord)
	if err != nil {
		return nil, err
	}
	if report != nil {
		report(100)
	}
	return t, nil
}

// ParseSource parses CSV from r into a Table. See ReadSource.
func ParseSource(r io.Reader) (*Table, error) {
	return parseSource(r, nil)
}

// parseSource calls onRecord, if set, after every data record.
func parseSource(r io.Reader, onRecord func()) (*Table, error) {
	const op = "read source"

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0 // header fixes the column count

	header, err := cr.Read()
	if err == io.EOF {
		return nil, Errorf(KindMalformedSource, op, "file is empty")
	}
	if err != nil {
		return nil, E(KindMalformedSource, op, err)
	}

	t := NewTable(dedupeHeader(header)...)

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, E(KindMalformedSource, op, err)
		}

		row := make(Row, len(record))
		for i, v := range record {
			if IsMissingToken(v) {
				row[i] = pgtype.Text{}
				continue
			}
			row[i] = ToPgText(v)
		}
		t.Rows = append(t.Rows, row)

		if onRecord != nil {
			onRecord()
		}
	}

	return t, nil
}

// dedupeHeader suffixes repeated header tokens so every column is addressable.
func dedupeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	taken := make(map[string]bool, len(header))
	for _, h := range header {
		taken[h] = true
	}

	for i, h := range header {
		n, dup := seen[h]
		seen[h] = n + 1
		if !dup {
			out[i] = h
			continue
		}
		name := h + "." + strconv.Itoa(n)
		for taken[name] {
			n++
			name = h + "." + strconv.Itoa(n)
		}
		seen[h] = n + 1
		taken[name] = true
		out[i] = name
	}
	return out
}
