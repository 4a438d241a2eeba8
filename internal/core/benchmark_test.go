package core

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

// ============================================================================
// Conversion Function Benchmarks
// ============================================================================

// BenchmarkParseDecimal benchmarks numeric string conversion.
// Runs once per row for transaction_amount and account_age_days.
func BenchmarkParseDecimal(b *testing.B) {
	testCases := []string{
		"58.09",
		"-456.78",
		"1.5e3",
		"  999.99  ",
		"abc",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ParseDecimal(tc)
		}
	}
}

// BenchmarkParseTimestamp_Dataset benchmarks the layout the dataset uses.
func BenchmarkParseTimestamp_Dataset(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ParseTimestamp("2024-03-24 23:42:43")
	}
}

// BenchmarkParseTimestamp_Invalid benchmarks the worst case: every layout
// is tried before giving up.
func BenchmarkParseTimestamp_Invalid(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ParseTimestamp("2024-99-99")
	}
}

// ============================================================================
// Stage Benchmarks
// ============================================================================

// benchCSV generates n rows in the dataset's shape, every tenth row a
// duplicate of the row before it.
func benchCSV(n int) []byte {
	var buf bytes.Buffer
	buf.WriteString("Transaction ID,Customer ID,Transaction Amount,Transaction Date,Payment Method," +
		"Quantity,Is Fraudulent,Account Age Days,Transaction Hour\n")
	for i := 0; i < n; i++ {
		id := i
		if i%10 == 9 {
			id = i - 1
		}
		fmt.Fprintf(&buf, "%08x-0000-4000-8000-000000000000,cust-%d,%d.%02d,2024-03-%02d 10:00:00,PayPal,%d,%d,%d,%d\n",
			id, id%500, id%1000, id%100, id%28+1, id%5+1, id%2, id%365, id%24)
	}
	return buf.Bytes()
}

func BenchmarkParseSource(b *testing.B) {
	data := benchCSV(10000)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ParseSource(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSanitize(b *testing.B) {
	data := benchCSV(10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		tbl, err := ParseSource(bytes.NewReader(data))
		if err != nil {
			b.Fatal(err)
		}
		b.StartTimer()

		Sanitize(tbl)
	}
}

func BenchmarkCoerce(b *testing.B) {
	data := benchCSV(10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		tbl, err := ParseSource(bytes.NewReader(data))
		if err != nil {
			b.Fatal(err)
		}
		if err := NormalizeColumns(tbl); err != nil {
			b.Fatal(err)
		}
		b.StartTimer()

		if _, err := Coerce(tbl, TransactionCoercions); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkUTF8Sanitizer measures the overhead of the sanitizing reader on
// clean input.
func BenchmarkUTF8Sanitizer(b *testing.B) {
	data := strings.Repeat("c12e07a0,58.09,2024-03-24 23:42:43,PayPal\n", 2000)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r := NewUTF8Sanitizer(strings.NewReader(data))
		buf := make([]byte, 4096)
		for {
			if _, err := r.Read(buf); err != nil {
				break
			}
		}
	}
}
