package core

// convert.go turns raw CSV text into pgtype values.
//
// Every Parse* function returns a value with Valid=false when the input is
// empty or does not parse, so callers can store the result directly as a
// null cell.

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex matches integers, decimals and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// maxExponent caps scientific notation so "1e999999" cannot allocate a
// gigantic big.Int.
const maxExponent = 308

// timestampLayouts are tried in order. ISO forms come first since that is
// what the dataset uses; the rest cover common US/EU exports.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006", "1-2-2006", "1.2.2006",
	"2006/01/02", "2006.01.02",
	"Jan 2, 2006", "2 Jan 2006",
	"20060102",
}

// TimestampLayout is the layout used when writing timestamps back out.
const TimestampLayout = "2006-01-02 15:04:05"

// ToPgText converts a string to pgtype.Text without trimming it.
func ToPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: true}
}

// ParseDecimal converts a string to pgtype.Numeric.
// Accepts an optional sign, digits with an optional fraction and an optional
// exponent. Surrounding whitespace is ignored; anything else is invalid.
func ParseDecimal(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if s == "" || !numericRegex.MatchString(s) {
		return pgtype.Numeric{}
	}

	mantissa, exp := s, int64(0)
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		e, err := strconv.ParseInt(s[i+1:], 10, 32)
		if err != nil || e > maxExponent || e < -maxExponent {
			return pgtype.Numeric{}
		}
		mantissa, exp = s[:i], e
	}
	mantissa = strings.TrimPrefix(mantissa, "+")

	var n pgtype.Numeric
	if err := n.Scan(mantissa); err != nil || !n.Valid {
		return pgtype.Numeric{}
	}
	n.Exp += int32(exp)

	return n
}

// ParseInteger converts a string to pgtype.Int8.
// Integral decimals such as "3.0" or "2e1" are accepted; fractional values
// and anything outside the int64 range are invalid.
func ParseInteger(s string) pgtype.Int8 {
	if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return pgtype.Int8{Int64: i, Valid: true}
	}

	n := ParseDecimal(s)
	if !n.Valid {
		return pgtype.Int8{}
	}
	i, err := n.Int64Value()
	if err != nil {
		return pgtype.Int8{}
	}
	return i
}

// ParseTimestamp converts a string to pgtype.Timestamp.
// Values with a zone offset are converted to UTC before the zone is dropped.
// Calendar-invalid input such as "2024-99-99" is invalid.
func ParseTimestamp(s string) pgtype.Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Timestamp{}
	}

	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return pgtype.Timestamp{Time: t.UTC(), Valid: true}
		}
	}

	return pgtype.Timestamp{}
}

// ParseFlag converts a boolean-like string to a 0/1 pgtype.Int8.
// Accepts true/false, t/f, yes/no, y/n and numbers equal to 0 or 1 ("1.0"
// included). The second return value is false when the input is not
// boolean-like.
func ParseFlag(s string) (pgtype.Int8, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y":
		return pgtype.Int8{Int64: 1, Valid: true}, true
	case "false", "f", "no", "n":
		return pgtype.Int8{Int64: 0, Valid: true}, true
	}

	i := ParseInteger(s)
	if !i.Valid || (i.Int64 != 0 && i.Int64 != 1) {
		return pgtype.Int8{}, false
	}
	return i, true
}

// ToPgUUID converts a string to pgtype.UUID.
// Returns invalid if the string is empty or not a valid UUID.
func ToPgUUID(s string) pgtype.UUID {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.UUID{}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// NumericFromInt converts an int64 to pgtype.Numeric.
func NumericFromInt(i int64) pgtype.Numeric {
	return pgtype.Numeric{Int: big.NewInt(i), Valid: true}
}

// FormatCell renders a cell the way the snapshot CSV stores it.
// Nulls render as "".
func FormatCell(v any) string {
	if IsNull(v) {
		return ""
	}

	switch x := v.(type) {
	case pgtype.Text:
		return x.String
	case pgtype.Int8:
		return strconv.FormatInt(x.Int64, 10)
	case pgtype.Numeric:
		dv, err := x.Value()
		if err != nil {
			return ""
		}
		s, _ := dv.(string)
		return s
	case pgtype.Timestamp:
		return x.Time.Format(TimestampLayout)
	case pgtype.UUID:
		return uuid.UUID(x.Bytes).String()
	case pgtype.Float8:
		return strconv.FormatFloat(x.Float64, 'f', -1, 64)
	case pgtype.Bool:
		return strconv.FormatBool(x.Bool)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return ""
	}
}

// CellText returns the textual content of a cell and whether it is text.
func CellText(v any) (string, bool) {
	switch x := v.(type) {
	case pgtype.Text:
		return x.String, x.Valid
	case string:
		return x, true
	default:
		return "", false
	}
}
