package core

import (
	"bytes"
	"encoding/binary"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/spaolacci/murmur3"
)

// SanitizeStats counts what the sanitizer removed.
type SanitizeStats struct {
	Input      int
	Duplicates int
	Incomplete int
	Output     int
}

// Sanitize removes exact duplicate rows, then rows containing any null.
// Duplicates are computed first; there is no imputation between the steps.
// An empty result is valid.
func Sanitize(t *Table) SanitizeStats {
	stats := SanitizeStats{Input: t.Len()}
	stats.Duplicates = DropDuplicates(t)
	stats.Incomplete = DropIncomplete(t)
	stats.Output = t.Len()
	return stats
}

// DropDuplicates removes rows identical to an earlier row across all
// columns. The first occurrence wins and the order of the remaining rows is
// preserved. Nulls compare equal to nulls. Returns the number removed.
func DropDuplicates(t *Table) int {
	seen := make(map[[2]uint64][][]byte, t.Len())
	kept := make([]Row, 0, t.Len())

	for _, row := range t.Rows {
		key := rowKey(row)
		h1, h2 := murmur3.Sum128(key)
		fp := [2]uint64{h1, h2}

		dup := false
		for _, prior := range seen[fp] {
			if bytes.Equal(prior, key) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}

		seen[fp] = append(seen[fp], key)
		kept = append(kept, row)
	}

	removed := t.Len() - len(kept)
	t.Rows = kept
	return removed
}

// DropIncomplete removes every row that has a null in any column.
// Returns the number removed.
func DropIncomplete(t *Table) int {
	kept := make([]Row, 0, t.Len())

outer:
	for _, row := range t.Rows {
		for _, v := range row {
			if IsNull(v) {
				continue outer
			}
		}
		kept = append(kept, row)
	}

	removed := t.Len() - len(kept)
	t.Rows = kept
	return removed
}

// rowKey serializes a row so equal rows produce equal keys. Each cell is a
// type tag followed by its length-prefixed rendering; a null is a single
// zero byte regardless of its type.
func rowKey(row Row) []byte {
	var b []byte
	for _, v := range row {
		if IsNull(v) {
			b = append(b, 0)
			continue
		}
		s := FormatCell(v)
		b = append(b, cellTag(v))
		b = binary.AppendUvarint(b, uint64(len(s)))
		b = append(b, s...)
	}
	return b
}

func cellTag(v any) byte {
	switch v.(type) {
	case pgtype.Text, string:
		return 1
	case pgtype.Int8, int64:
		return 2
	case pgtype.Numeric:
		return 3
	case pgtype.Timestamp:
		return 4
	case pgtype.UUID:
		return 5
	case pgtype.Float8:
		return 6
	case pgtype.Bool:
		return 7
	default:
		return 0xff
	}
}
