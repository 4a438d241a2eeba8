// Package core provides the cleaning and loading logic for the fraudulent
// e-commerce transaction dataset.
//
// The package has no transport or driver dependencies beyond pgx's value
// types, so every stage can be exercised directly from tests.
//
// # Pipeline
//
// A load is a strictly linear sequence of stages that hand a *[Table] from
// one to the next:
//
//  1. [ReadSource] streams the raw CSV (BOM skipped, invalid UTF-8 replaced)
//     into a Table of text cells, turning missing-value tokens into nulls.
//  2. [NormalizeColumns] lower-cases the header and replaces whitespace
//     with underscores.
//  3. [Sanitize] drops exact duplicate rows, then rows with any null cell.
//  4. [Coerce] reinterprets the columns named in [TransactionCoercions];
//     values that fail to parse become null and the row is kept.
//  5. [WriteSnapshot] writes the cleaned CSV, and a [Sink] creates the
//     destination table if needed and appends every row.
//
// [Pipeline.Run] wires the stages together and logs a [Profile] of the table
// before and after cleaning.
//
// # Cells
//
// Cells are pgtype values: pgtype.Text straight out of the reader, then
// pgtype.Timestamp, pgtype.Int8 and pgtype.Numeric after coercion. A null is
// a value whose Valid field is false; see [IsNull].
//
// # Error Handling
//
// Hard failures are returned as *[Error] with a [Kind]
// ([KindSourceNotFound], [KindMalformedSource], [KindConnectionUnavailable],
// [KindSchemaConflict], [KindWriteFailure], [KindDownloadFailure]) and abort
// the run. [FormatUserError] turns any of them into a support-friendly line
// with a code. Per-value parse failures during coercion are never errors.
package core
