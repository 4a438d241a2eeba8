package core

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var coerceColumns = []string{
	"transaction_id", "transaction_amount", "transaction_date", "quantity",
	"is_fraudulent", "account_age_days", "transaction_hour",
}

func coerceTable(rows ...[]string) *Table {
	tbl := NewTable(coerceColumns...)
	for _, r := range rows {
		tbl.Rows = append(tbl.Rows, textRow(r...))
	}
	return tbl
}

func cell(t *testing.T, tbl *Table, row int, col string) any {
	t.Helper()
	i := tbl.ColumnIndex(col)
	require.GreaterOrEqual(t, i, 0, "column %s", col)
	return tbl.Rows[row][i]
}

func TestCoerce_ValidRow(t *testing.T) {
	tbl := coerceTable([]string{"id-1", "58.09", "2024-03-24 23:42:43", "1", "0", "30", "23"})

	stats, err := Coerce(tbl, TransactionCoercions)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Rows)
	assert.Empty(t, stats.Nulled)
	assert.Empty(t, stats.Missing)

	assert.Equal(t, ToPgText("id-1"), cell(t, tbl, 0, "transaction_id"), "uncoerced column untouched")
	assert.Equal(t, "58.09", FormatCell(cell(t, tbl, 0, "transaction_amount")))
	assert.Equal(t,
		pgtype.Timestamp{Time: time.Date(2024, 3, 24, 23, 42, 43, 0, time.UTC), Valid: true},
		cell(t, tbl, 0, "transaction_date"))
	assert.Equal(t, pgtype.Int8{Int64: 1, Valid: true}, cell(t, tbl, 0, "quantity"))
	assert.Equal(t, pgtype.Int8{Int64: 0, Valid: true}, cell(t, tbl, 0, "is_fraudulent"))
	assert.Equal(t, "30", FormatCell(cell(t, tbl, 0, "account_age_days")))
	assert.Equal(t, pgtype.Int8{Int64: 23, Valid: true}, cell(t, tbl, 0, "transaction_hour"))
}

func TestCoerce_AmountNotANumberBecomesNull(t *testing.T) {
	tbl := coerceTable([]string{"id-1", "abc", "2024-03-24 23:42:43", "1", "0", "30", "23"})

	stats, err := Coerce(tbl, TransactionCoercions)
	require.NoError(t, err)

	assert.Equal(t, 1, tbl.Len(), "row retained")
	assert.True(t, IsNull(cell(t, tbl, 0, "transaction_amount")))
	assert.Equal(t, 1, stats.Nulled["transaction_amount"])
	assert.Equal(t, pgtype.Int8{Int64: 1, Valid: true}, cell(t, tbl, 0, "quantity"), "other columns unaffected")
}

func TestCoerce_InvalidDateSurvivesSanitizeThenNulls(t *testing.T) {
	tbl := coerceTable(
		[]string{"id-1", "10", "2024-99-99", "1", "1", "30", "4"},
		[]string{"id-2", "12", "2024-01-01 00:00:00", "2", "0", "31", "5"},
	)

	stats := Sanitize(tbl)
	require.Equal(t, 2, stats.Output, "invalid date is still text during sanitizing")

	_, err := Coerce(tbl, TransactionCoercions)
	require.NoError(t, err)

	assert.Equal(t, pgtype.Timestamp{}, cell(t, tbl, 0, "transaction_date"))
	assert.True(t, cell(t, tbl, 1, "transaction_date").(pgtype.Timestamp).Valid)
}

func TestCoerce_NullableIntegers(t *testing.T) {
	tbl := coerceTable(
		[]string{"id-1", "10", "2024-01-01", "2.0", "0", "7", "x"},
		[]string{"id-2", "10", "2024-01-01", "2.5", "0", "7.25", "3"},
	)

	stats, err := Coerce(tbl, TransactionCoercions)
	require.NoError(t, err)

	assert.Equal(t, pgtype.Int8{Int64: 2, Valid: true}, cell(t, tbl, 0, "quantity"))
	assert.True(t, IsNull(cell(t, tbl, 1, "quantity")), "fractional quantity is null")
	assert.True(t, IsNull(cell(t, tbl, 0, "transaction_hour")))
	assert.Equal(t, "7.25", FormatCell(cell(t, tbl, 1, "account_age_days")))
	assert.Equal(t, 1, stats.Nulled["quantity"])
	assert.Equal(t, 1, stats.Nulled["transaction_hour"])
}

func TestCoerce_StrictFlagAborts(t *testing.T) {
	tbl := coerceTable(
		[]string{"id-1", "10", "2024-01-01", "1", "true", "7", "1"},
		[]string{"id-2", "10", "2024-01-01", "1", "maybe", "7", "1"},
	)

	_, err := Coerce(tbl, TransactionCoercions)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedSource)
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), "is_fraudulent")
}

func TestCoerce_FlagOutOfRangeAborts(t *testing.T) {
	tests := []string{"2", "-7", "0.5"}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			tbl := coerceTable(
				[]string{"id-1", "10", "2024-01-01", "1", "0", "7", "1"},
				[]string{"id-2", "10", "2024-01-01", "1", raw, "7", "1"},
			)

			_, err := Coerce(tbl, TransactionCoercions)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedSource)
			assert.Contains(t, err.Error(), "row 2")
			assert.Contains(t, err.Error(), "is_fraudulent")
		})
	}
}

func TestCoerce_NullCellsStayNullAndUncounted(t *testing.T) {
	tbl := NewTable("quantity")
	tbl.Rows = []Row{{pgtype.Text{}}}

	stats, err := Coerce(tbl, []CoercionRule{{Column: "quantity", Type: FieldInteger}})
	require.NoError(t, err)

	assert.Equal(t, pgtype.Int8{}, tbl.Rows[0][0])
	assert.Zero(t, stats.Nulled["quantity"])
}

func TestCoerce_MissingColumnSkipped(t *testing.T) {
	tbl := NewTable("transaction_amount")
	tbl.Rows = []Row{textRow("5")}

	stats, err := Coerce(tbl, TransactionCoercions)
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"transaction_date", "is_fraudulent", "transaction_hour", "account_age_days", "quantity"},
		stats.Missing)
	assert.Equal(t, "5", FormatCell(tbl.Rows[0][0]))
}

func TestCoerce_SecondPassIsNoop(t *testing.T) {
	tbl := coerceTable([]string{"id-1", "58.09", "2024-03-24 23:42:43", "1", "0", "30", "23"})

	_, err := Coerce(tbl, TransactionCoercions)
	require.NoError(t, err)
	before := append(Row(nil), tbl.Rows[0]...)

	stats, err := Coerce(tbl, TransactionCoercions)
	require.NoError(t, err)

	assert.Equal(t, before, tbl.Rows[0])
	assert.Empty(t, stats.Nulled)
}

func TestProperty_CoerceKeepsEveryRow(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	lenient := []CoercionRule{
		{Column: "transaction_amount", Type: FieldNumeric},
		{Column: "transaction_date", Type: FieldTimestamp},
		{Column: "quantity", Type: FieldInteger},
	}

	properties.Property("len(output) == len(input)", prop.ForAll(
		func(amounts, dates, quantities []string) bool {
			n := min(len(amounts), len(dates), len(quantities))
			tbl := NewTable("transaction_amount", "transaction_date", "quantity")
			for i := 0; i < n; i++ {
				tbl.Append(ToPgText(amounts[i]), ToPgText(dates[i]), ToPgText(quantities[i]))
			}

			_, err := Coerce(tbl, lenient)
			return err == nil && tbl.Len() == n
		},
		gen.SliceOf(gen.AnyString()),
		gen.SliceOf(gen.AnyString()),
		gen.SliceOf(gen.NumString()),
	))

	properties.TestingRun(t)
}
