package sink

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/JonMunkholm/fraudload/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
)

// plan maps table columns onto the declared fields.
type plan struct {
	columns []string         // Column names in insert order
	fields  []core.FieldSpec // Field for each column
	index   []int            // Table column index for each column
}

// newPlan matches t's columns to fields. Every table column must be a
// declared field; declared fields missing from t are left to the column
// default.
func newPlan(t *core.Table, fields []core.FieldSpec) (*plan, error) {
	p := &plan{}
	for i, name := range t.Columns {
		f, ok := core.LookupField(fields, name)
		if !ok {
			return nil, core.Errorf(core.KindSchemaConflict, "append",
				"column %q is not part of the table schema", name)
		}
		p.columns = append(p.columns, name)
		p.fields = append(p.fields, f)
		p.index = append(p.index, i)
	}
	if len(p.columns) == 0 {
		return nil, core.Errorf(core.KindSchemaConflict, "append", "table has no columns")
	}
	return p, nil
}

// encodeRow converts row into values ready to send. rowNum is 1-based and
// only used for error messages.
func (p *plan) encodeRow(row core.Row, rowNum int) ([]any, error) {
	out := make([]any, len(p.columns))
	for i, f := range p.fields {
		v, err := encodeCell(f, row[p.index[i]])
		if err != nil {
			return nil, core.Errorf(core.KindWriteFailure, "append",
				"row %d: column %s: %v", rowNum, f.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

// encodeCell converts a cell to the pgtype value matching the field's
// column type. Nulls encode as the typed null.
func encodeCell(f core.FieldSpec, v any) (any, error) {
	switch f.Type {
	case core.FieldUUID:
		return encodeUUID(v)
	case core.FieldNumeric:
		return encodeNumeric(v)
	case core.FieldInteger, core.FieldFlag:
		return encodeInt(v)
	case core.FieldTimestamp:
		return encodeTimestamp(v)
	default:
		return encodeText(v, f.MaxLen)
	}
}

func encodeUUID(v any) (pgtype.UUID, error) {
	if core.IsNull(v) {
		return pgtype.UUID{}, nil
	}
	if u, ok := v.(pgtype.UUID); ok {
		return u, nil
	}
	s, _ := core.CellText(v)
	u := core.ToPgUUID(s)
	if !u.Valid {
		return u, fmt.Errorf("%q is not a valid UUID", s)
	}
	return u, nil
}

func encodeNumeric(v any) (pgtype.Numeric, error) {
	switch x := v.(type) {
	case pgtype.Numeric:
		return x, nil
	case pgtype.Int8:
		if !x.Valid {
			return pgtype.Numeric{}, nil
		}
		return core.NumericFromInt(x.Int64), nil
	}
	if core.IsNull(v) {
		return pgtype.Numeric{}, nil
	}
	s, _ := core.CellText(v)
	n := core.ParseDecimal(s)
	if !n.Valid {
		return n, fmt.Errorf("%q is not a number", s)
	}
	return n, nil
}

func encodeInt(v any) (pgtype.Int4, error) {
	if core.IsNull(v) {
		return pgtype.Int4{}, nil
	}

	var i int64
	switch x := v.(type) {
	case pgtype.Int8:
		i = x.Int64
	case pgtype.Numeric:
		n, err := x.Int64Value()
		if err != nil {
			return pgtype.Int4{}, fmt.Errorf("%s is not an integer", core.FormatCell(x))
		}
		i = n.Int64
	default:
		s, _ := core.CellText(v)
		n := core.ParseInteger(s)
		if !n.Valid {
			return pgtype.Int4{}, fmt.Errorf("%q is not an integer", s)
		}
		i = n.Int64
	}

	if i < math.MinInt32 || i > math.MaxInt32 {
		return pgtype.Int4{}, fmt.Errorf("%d is out of range for INT", i)
	}
	return pgtype.Int4{Int32: int32(i), Valid: true}, nil
}

func encodeTimestamp(v any) (pgtype.Timestamp, error) {
	if core.IsNull(v) {
		return pgtype.Timestamp{}, nil
	}
	if ts, ok := v.(pgtype.Timestamp); ok {
		return ts, nil
	}
	s, _ := core.CellText(v)
	ts := core.ParseTimestamp(s)
	if !ts.Valid {
		return ts, fmt.Errorf("%q is not a timestamp", s)
	}
	return ts, nil
}

func encodeText(v any, maxLen int) (pgtype.Text, error) {
	if core.IsNull(v) {
		return pgtype.Text{}, nil
	}
	s, ok := core.CellText(v)
	if !ok {
		s = core.FormatCell(v)
	}
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		return pgtype.Text{}, fmt.Errorf("value of %d characters exceeds VARCHAR(%d)",
			utf8.RuneCountInString(s), maxLen)
	}
	return pgtype.Text{String: s, Valid: true}, nil
}
