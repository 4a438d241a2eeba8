package core

import (
	"bufio"
	"encoding/csv"
	"os"
	"path/filepath"
)

// WriteSnapshot writes t to path as CSV, header first, replacing any
// existing file. There is no index column. Nulls are written as empty
// fields.
//
// The file is written to a temporary sibling and renamed into place so a
// failed write never leaves a truncated snapshot behind.
func WriteSnapshot(t *Table, path string) (err error) {
	const op = "write snapshot"

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return E(KindWriteFailure, op, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return E(KindWriteFailure, op, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriterSize(tmp, 64*1024)
	w := csv.NewWriter(bw)

	if err := w.Write(t.Columns); err != nil {
		return E(KindWriteFailure, op, err)
	}

	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = FormatCell(v)
		}
		if err := w.Write(record); err != nil {
			return E(KindWriteFailure, op, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return E(KindWriteFailure, op, err)
	}
	if err := bw.Flush(); err != nil {
		return E(KindWriteFailure, op, err)
	}
	if err := tmp.Close(); err != nil {
		return E(KindWriteFailure, op, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return E(KindWriteFailure, op, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return E(KindWriteFailure, op, err)
	}
	return nil
}
