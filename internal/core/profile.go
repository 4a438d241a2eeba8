package core

import (
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// Snapshot is a read-only summary of a table at one stage of the run.
type Snapshot struct {
	Stage   string
	Rows    int
	Columns []ColumnSummary
	Head    [][]string
}

// ColumnSummary describes one column.
type ColumnSummary struct {
	Name    string
	Count   int // Non-null cells
	Nulls   int
	Unique  int
	Top     string // Most frequent value, earliest wins on ties
	TopFreq int

	// Numeric is set when the column holds typed numbers.
	Numeric *ColumnAggregation
}

// ColumnAggregation holds numeric statistics for a column.
// Std is the sample standard deviation and is nil below two values.
// Quartiles use linear interpolation between the closest ranks.
type ColumnAggregation struct {
	Count int64
	Sum   *float64
	Avg   *float64
	Std   *float64
	Min   *float64
	P25   *float64
	P50   *float64
	P75   *float64
	Max   *float64
}

// Profile summarizes t without modifying it. head is the number of leading
// rows to include verbatim.
func Profile(t *Table, stage string, head int) Snapshot {
	s := Snapshot{
		Stage:   stage,
		Rows:    t.Len(),
		Columns: make([]ColumnSummary, len(t.Columns)),
	}

	for c, name := range t.Columns {
		s.Columns[c] = summarizeColumn(t, c, name)
	}

	if head > t.Len() {
		head = t.Len()
	}
	for _, row := range t.Rows[:max(head, 0)] {
		rendered := make([]string, len(row))
		for i, v := range row {
			rendered[i] = FormatCell(v)
		}
		s.Head = append(s.Head, rendered)
	}

	return s
}

func summarizeColumn(t *Table, c int, name string) ColumnSummary {
	cs := ColumnSummary{Name: name}
	freq := make(map[string]int)
	var agg ColumnAggregation
	var values []float64

	for _, row := range t.Rows {
		v := row[c]
		if IsNull(v) {
			cs.Nulls++
			continue
		}
		cs.Count++

		key := FormatCell(v)
		freq[key]++
		if n := freq[key]; n > cs.TopFreq {
			cs.Top, cs.TopFreq = key, n
		}

		if f, ok := cellFloat(v); ok {
			values = append(values, f)
		}
	}

	cs.Unique = len(freq)
	if len(values) > 0 {
		agg = aggregate(values)
		cs.Numeric = &agg
	}
	return cs
}

// aggregate computes the statistics of a non-empty sample. values is
// sorted in place.
func aggregate(values []float64) ColumnAggregation {
	slices.Sort(values)
	n := float64(len(values))

	var sum float64
	for _, v := range values {
		sum += v
	}
	avg := sum / n

	agg := ColumnAggregation{
		Count: int64(len(values)),
		Sum:   &sum,
		Avg:   &avg,
		Min:   &values[0],
		Max:   &values[len(values)-1],
	}

	if len(values) > 1 {
		var sq float64
		for _, v := range values {
			sq += (v - avg) * (v - avg)
		}
		std := math.Sqrt(sq / (n - 1))
		agg.Std = &std
	}

	p25, p50, p75 := quantile(values, 0.25), quantile(values, 0.5), quantile(values, 0.75)
	agg.P25, agg.P50, agg.P75 = &p25, &p50, &p75
	return agg
}

// quantile returns the q-th quantile of sorted.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// cellFloat returns the numeric value of a typed numeric cell.
// Text cells are not numbers here, even when they look like one.
func cellFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case pgtype.Int8:
		return float64(x.Int64), x.Valid
	case pgtype.Float8:
		return x.Float64, x.Valid
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return 0, false
		}
		return f.Float64, true
	default:
		return 0, false
	}
}

// Log writes the snapshot to logger: one summary entry, one entry per head
// row at debug level, and one entry per column.
func (s Snapshot) Log(logger *slog.Logger) {
	logger.Info("table snapshot",
		"stage", s.Stage,
		"rows", s.Rows,
		"columns", len(s.Columns),
	)

	for i, row := range s.Head {
		logger.Debug("head row", "stage", s.Stage, "index", i, "values", strings.Join(row, ", "))
	}

	for _, c := range s.Columns {
		attrs := []any{
			"stage", s.Stage,
			"column", c.Name,
			"count", c.Count,
			"nulls", c.Nulls,
			"unique", c.Unique,
			"top", c.Top,
			"freq", c.TopFreq,
		}
		if n := c.Numeric; n != nil {
			attrs = append(attrs, "mean", *n.Avg)
			if n.Std != nil {
				attrs = append(attrs, "std", *n.Std)
			}
			attrs = append(attrs,
				"min", *n.Min,
				"p25", *n.P25,
				"p50", *n.P50,
				"p75", *n.P75,
				"max", *n.Max,
			)
		}
		logger.Info("column summary", attrs...)
	}
}
