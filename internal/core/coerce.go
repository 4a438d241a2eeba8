package core

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// CoercionRule reinterprets one textual column under a semantic type.
type CoercionRule struct {
	Column string
	Type   FieldType

	// Strict rules abort the run on a value that does not parse instead of
	// nulling it.
	Strict bool
}

// TransactionCoercions is the fixed rules table for the fraud dataset.
// is_fraudulent is strict: a value that is not boolean-like means the file
// is not the dataset we expect.
var TransactionCoercions = []CoercionRule{
	{Column: "transaction_date", Type: FieldTimestamp},
	{Column: "is_fraudulent", Type: FieldFlag, Strict: true},
	{Column: "transaction_hour", Type: FieldInteger},
	{Column: "account_age_days", Type: FieldNumeric},
	{Column: "transaction_amount", Type: FieldNumeric},
	{Column: "quantity", Type: FieldInteger},
}

// CoerceStats reports what coercion did.
type CoerceStats struct {
	Rows    int
	Nulled  map[string]int // Values per column that failed to parse
	Missing []string       // Rule columns absent from the table
}

// Coerce converts the rule columns of t in place. Each column is handled
// independently and no row is ever removed. A value that fails to parse
// becomes null unless its rule is strict, in which case Coerce returns a
// MalformedSource error and t is left partially converted.
//
// Cells that are already null stay null and are not counted as failures.
func Coerce(t *Table, rules []CoercionRule) (CoerceStats, error) {
	stats := CoerceStats{Rows: t.Len(), Nulled: make(map[string]int)}

	for _, rule := range rules {
		col := t.ColumnIndex(rule.Column)
		if col < 0 {
			stats.Missing = append(stats.Missing, rule.Column)
			continue
		}

		for i, row := range t.Rows {
			v, ok, err := coerceCell(row[col], rule.Type)
			if err != nil {
				return stats, err
			}
			if !ok {
				if rule.Strict {
					raw, _ := CellText(row[col])
					return stats, Errorf(KindMalformedSource, "coerce",
						"row %d: column %s: cannot convert %q to %s", i+1, rule.Column, raw, rule.Type)
				}
				stats.Nulled[rule.Column]++
			}
			row[col] = v
		}
	}

	return stats, nil
}

// coerceCell converts one cell. ok is false when a non-null value failed to
// parse; the returned value is then the typed null.
func coerceCell(v any, typ FieldType) (out any, ok bool, err error) {
	raw, isText := CellText(v)
	if IsNull(v) {
		return nullOf(typ), true, nil
	}
	if !isText {
		// Already typed by an earlier pass.
		return v, true, nil
	}

	switch typ {
	case FieldTimestamp:
		ts := ParseTimestamp(raw)
		return ts, ts.Valid, nil
	case FieldInteger:
		n := ParseInteger(raw)
		return n, n.Valid, nil
	case FieldNumeric:
		n := ParseDecimal(raw)
		return n, n.Valid, nil
	case FieldFlag:
		f, valid := ParseFlag(raw)
		return f, valid, nil
	case FieldUUID:
		u := ToPgUUID(raw)
		return u, u.Valid, nil
	case FieldText:
		return v, true, nil
	default:
		return nil, false, fmt.Errorf("coerce: unsupported field type %s", typ)
	}
}

func nullOf(typ FieldType) any {
	switch typ {
	case FieldTimestamp:
		return pgtype.Timestamp{}
	case FieldInteger, FieldFlag:
		return pgtype.Int8{}
	case FieldNumeric:
		return pgtype.Numeric{}
	case FieldUUID:
		return pgtype.UUID{}
	default:
		return pgtype.Text{}
	}
}
