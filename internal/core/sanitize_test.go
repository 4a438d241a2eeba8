package core

import (
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func textRow(vals ...string) Row {
	row := make(Row, len(vals))
	for i, v := range vals {
		if v == "" {
			row[i] = pgtype.Text{}
			continue
		}
		row[i] = ToPgText(v)
	}
	return row
}

func TestSanitize_IdenticalRowsCollapse(t *testing.T) {
	tbl := NewTable("transaction_id", "transaction_amount")
	tbl.Rows = []Row{
		textRow("a", "10.5"),
		textRow("a", "10.5"),
	}

	stats := Sanitize(tbl)

	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, SanitizeStats{Input: 2, Duplicates: 1, Incomplete: 0, Output: 1}, stats)
}

func TestDropDuplicates_FirstOccurrenceWinsAndOrderKept(t *testing.T) {
	tbl := NewTable("id", "v")
	tbl.Rows = []Row{
		textRow("b", "1"),
		textRow("a", "1"),
		textRow("b", "1"),
		textRow("c", "2"),
		textRow("a", "1"),
	}
	first := tbl.Rows[0]

	removed := DropDuplicates(tbl)

	assert.Equal(t, 2, removed)
	assert.Equal(t, []Row{textRow("b", "1"), textRow("a", "1"), textRow("c", "2")}, tbl.Rows)
	assert.Same(t, &first[0], &tbl.Rows[0][0], "kept row is the first occurrence")
}

func TestDropDuplicates_NullsCompareEqual(t *testing.T) {
	tbl := NewTable("id", "v")
	tbl.Rows = []Row{
		textRow("a", ""),
		textRow("a", ""),
		textRow("a", "x"),
	}

	assert.Equal(t, 1, DropDuplicates(tbl))
	assert.Equal(t, 2, tbl.Len())
}

func TestDropDuplicates_NoFieldBleed(t *testing.T) {
	// Concatenating cells naively would make these two rows equal.
	tbl := NewTable("a", "b")
	tbl.Rows = []Row{
		textRow("ab", "c"),
		textRow("a", "bc"),
	}

	assert.Equal(t, 0, DropDuplicates(tbl))
	assert.Equal(t, 2, tbl.Len())
}

func TestSanitize_DuplicatesBeforeNulls(t *testing.T) {
	tbl := NewTable("id", "v")
	tbl.Rows = []Row{
		textRow("a", ""),
		textRow("a", ""),
		textRow("b", "1"),
	}

	stats := Sanitize(tbl)

	assert.Equal(t, SanitizeStats{Input: 3, Duplicates: 1, Incomplete: 1, Output: 1}, stats)
	assert.Equal(t, []Row{textRow("b", "1")}, tbl.Rows)
}

func TestSanitize_EmptyResultIsValid(t *testing.T) {
	tbl := NewTable("id", "v")
	tbl.Rows = []Row{textRow("a", ""), textRow("", "b")}

	stats := Sanitize(tbl)

	assert.Equal(t, 0, tbl.Len())
	assert.Equal(t, 0, stats.Output)
	assert.Equal(t, 2, stats.Incomplete)
}

func TestDropIncomplete(t *testing.T) {
	tbl := NewTable("id", "v", "w")
	tbl.Rows = []Row{
		textRow("a", "1", "x"),
		textRow("b", "", "x"),
		{ToPgText("c"), nil, ToPgText("x")},
		textRow("d", "1", "x"),
	}

	assert.Equal(t, 2, DropIncomplete(tbl))
	assert.Equal(t, []Row{textRow("a", "1", "x"), textRow("d", "1", "x")}, tbl.Rows)
}

// genTable builds tables over a small alphabet so duplicates and nulls are
// common.
func genTable() gopter.Gen {
	alphabet := []string{"", "a", "b", "c"}
	cell := gen.IntRange(0, len(alphabet)-1).Map(func(i int) string { return alphabet[i] })
	row := gen.SliceOfN(3, cell)
	return gen.SliceOf(row).Map(func(rows [][]string) *Table {
		tbl := NewTable("x", "y", "z")
		for _, r := range rows {
			tbl.Rows = append(tbl.Rows, textRow(r...))
		}
		return tbl
	})
}

func TestProperty_SanitizeOutput(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("no duplicates and no nulls remain", prop.ForAll(
		func(tbl *Table) bool {
			Sanitize(tbl)
			seen := map[string]bool{}
			for _, row := range tbl.Rows {
				key := string(rowKey(row))
				if seen[key] {
					return false
				}
				seen[key] = true
				for _, v := range row {
					if IsNull(v) {
						return false
					}
				}
			}
			return true
		},
		genTable(),
	))

	properties.Property("sanitizing is idempotent", prop.ForAll(
		func(tbl *Table) bool {
			Sanitize(tbl)
			before := append([]Row(nil), tbl.Rows...)
			stats := Sanitize(tbl)
			if stats.Duplicates != 0 || stats.Incomplete != 0 {
				return false
			}
			for i := range before {
				if string(rowKey(before[i])) != string(rowKey(tbl.Rows[i])) {
					return false
				}
			}
			return len(before) == tbl.Len()
		},
		genTable(),
	))

	properties.Property("stats add up", prop.ForAll(
		func(tbl *Table) bool {
			stats := Sanitize(tbl)
			return stats.Input-stats.Duplicates-stats.Incomplete == stats.Output &&
				stats.Output == tbl.Len()
		},
		genTable(),
	))

	properties.TestingRun(t)
}
