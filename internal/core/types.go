package core

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Row is one record. Cells line up with Table.Columns.
type Row []any

// Table is an ordered collection of rows sharing one column set. It is built
// once by ReadSource and mutated in place by the cleaning stages.
type Table struct {
	Columns []string
	Rows    []Row
}

// NewTable returns an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a column, or -1 if absent.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Append adds a row. The row must have one cell per column.
func (t *Table) Append(cells ...any) {
	t.Rows = append(t.Rows, Row(cells))
}

// FieldType represents the semantic type of a column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldUUID
	FieldNumeric
	FieldInteger
	FieldTimestamp
	FieldFlag
)

func (f FieldType) String() string {
	switch f {
	case FieldText:
		return "text"
	case FieldUUID:
		return "uuid"
	case FieldNumeric:
		return "numeric"
	case FieldInteger:
		return "integer"
	case FieldTimestamp:
		return "timestamp"
	case FieldFlag:
		return "flag"
	default:
		return "unknown"
	}
}

// FieldSpec describes one column of the destination table.
type FieldSpec struct {
	Name       string    // Normalized column name
	Type       FieldType // Semantic type used when encoding for the database
	MaxLen     int       // Rune limit for bounded text (0 = unbounded)
	PrimaryKey bool
}

// Sink is a relational destination for a cleaned table.
//
// EnsureSchema and Append are separate operations: if a run stops between
// them the table exists but is empty.
type Sink interface {
	// EnsureSchema creates the destination table if it does not exist and
	// leaves an existing table untouched.
	EnsureSchema(ctx context.Context) error

	// Append inserts every row of t.
	Append(ctx context.Context, t *Table) (AppendResult, error)
}

// AppendResult reports what a Sink did with the rows it was given.
type AppendResult struct {
	Inserted int64
	Skipped  int64 // Rows ignored because their key was already loaded
}

// Mirror copies a local file to remote storage and returns its URI.
type Mirror interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// IsNull reports whether a cell holds no value.
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case pgtype.Text:
		return !x.Valid
	case pgtype.Int8:
		return !x.Valid
	case pgtype.Numeric:
		return !x.Valid
	case pgtype.Timestamp:
		return !x.Valid
	case pgtype.UUID:
		return !x.Valid
	case pgtype.Float8:
		return !x.Valid
	case pgtype.Bool:
		return !x.Valid
	default:
		return false
	}
}
