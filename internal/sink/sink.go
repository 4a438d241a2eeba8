// Package sink loads a cleaned core.Table into a relational table.
//
// Two engines are supported: PostgreSQL through pgx (the production target)
// and SQLite through database/sql (a disposable local database). Both create
// the table if it is absent and never alter an existing one. Failures are
// reported as *core.Error with Kind ConnectionUnavailable, SchemaConflict or
// WriteFailure.
package sink

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JonMunkholm/fraudload/internal/core"
)

// ConflictPolicy decides what happens to a row whose primary key is already
// in the table.
type ConflictPolicy string

const (
	// ConflictFail rejects the whole append. A rerun against a loaded table
	// fails with WriteFailure.
	ConflictFail ConflictPolicy = "fail"

	// ConflictSkip leaves the stored row untouched and counts the incoming
	// one as skipped.
	ConflictSkip ConflictPolicy = "skip"
)

// ParseConflictPolicy converts a config value to a ConflictPolicy.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch p := ConflictPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ConflictFail, ConflictSkip:
		return p, nil
	case "":
		return ConflictFail, nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q (want fail or skip)", s)
	}
}

var tableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Options configures a sink.
type Options struct {
	Table      string
	Fields     []core.FieldSpec
	OnConflict ConflictPolicy
	BatchSize  int
}

// DefaultOptions returns options for the transactions table.
func DefaultOptions() Options {
	return Options{
		Table:      "transactions",
		Fields:     core.TransactionFields,
		OnConflict: ConflictFail,
		BatchSize:  1000,
	}
}

func (o Options) validate() error {
	if !tableNameRegex.MatchString(o.Table) {
		return fmt.Errorf("invalid table name %q", o.Table)
	}
	if len(o.Fields) == 0 {
		return fmt.Errorf("no fields declared for table %s", o.Table)
	}
	if o.OnConflict != ConflictFail && o.OnConflict != ConflictSkip {
		return fmt.Errorf("unknown conflict policy %q", o.OnConflict)
	}
	if o.OnConflict == ConflictSkip && core.PrimaryKey(o.Fields) == "" {
		return fmt.Errorf("conflict policy skip needs a primary key on %s", o.Table)
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", o.BatchSize)
	}
	return nil
}

// columnTypes maps a field to its column type for one engine.
type columnTypes func(core.FieldSpec) string

func postgresType(f core.FieldSpec) string {
	switch f.Type {
	case core.FieldUUID:
		return "UUID"
	case core.FieldNumeric:
		return "NUMERIC"
	case core.FieldInteger, core.FieldFlag:
		return "INT"
	case core.FieldTimestamp:
		return "TIMESTAMP"
	default:
		if f.MaxLen > 0 {
			return fmt.Sprintf("VARCHAR(%d)", f.MaxLen)
		}
		return "TEXT"
	}
}

func sqliteType(f core.FieldSpec) string {
	switch f.Type {
	case core.FieldUUID:
		return "TEXT"
	case core.FieldInteger, core.FieldFlag:
		return "INTEGER"
	default:
		return postgresType(f)
	}
}

// createTableSQL renders CREATE TABLE IF NOT EXISTS for fields. quote must
// return a safely quoted identifier.
func createTableSQL(table string, fields []core.FieldSpec, typ columnTypes, quote func(string) string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(quote(table))
	b.WriteString(" (\n")
	for i, f := range fields {
		b.WriteString("\t")
		b.WriteString(quote(f.Name))
		b.WriteString(" ")
		b.WriteString(typ(f))
		if f.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
		}
		if i < len(fields)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}

// insertSQL renders a parameterized INSERT for columns. placeholder returns
// the marker for the 1-based parameter n. With skip, rows whose key already
// exists are ignored.
func insertSQL(table string, columns []string, pk string, skip bool, quote func(string) string, placeholder func(n int) string) string {
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quote(c)
		params[i] = placeholder(i + 1)
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(table), strings.Join(quoted, ", "), strings.Join(params, ", "))
	if skip {
		q += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", quote(pk))
	}
	return q
}

// quoteIdent double-quotes an identifier, doubling embedded quotes. Both
// engines accept this form.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
