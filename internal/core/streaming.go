package core

// streaming.go provides the reader chain used by ReadSource:
//
//   - BOMSkippingReader drops a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - UTF8Sanitizer replaces invalid UTF-8 bytes with '?'
//   - CountingReader tracks bytes consumed for progress logging
//
// Use WrapForStreaming to apply them in the right order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader skips a UTF-8 BOM at the start of the stream.
type BOMSkippingReader struct {
	br      *bufio.Reader
	checked bool
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{br: bufio.NewReader(r)}
}

// Read implements io.Reader.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		if head, _ := r.br.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
			_, _ = r.br.Discard(len(utf8BOM))
		}
	}
	return r.br.Read(p)
}

// UTF8Sanitizer replaces each invalid UTF-8 byte with '?'. Valid multi-byte
// sequences split across reads are passed through intact.
type UTF8Sanitizer struct {
	br      *bufio.Reader
	pending []byte // Encoded bytes that did not fit in the caller's buffer
	err     error  // Deferred read error
}

// NewUTF8Sanitizer creates a new sanitizing reader.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{br: bufio.NewReader(r)}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]

	for n < len(p) {
		if s.err != nil {
			break
		}
		// Return what we have rather than block on the underlying reader.
		if n > 0 && s.br.Buffered() == 0 {
			break
		}

		r, size, err := s.br.ReadRune()
		if err != nil {
			s.err = err
			break
		}

		var enc [utf8.UTFMax]byte
		w := 1
		if r == utf8.RuneError && size == 1 {
			enc[0] = '?'
		} else {
			w = utf8.EncodeRune(enc[:], r)
		}

		c := copy(p[n:], enc[:w])
		n += c
		if c < w {
			s.pending = append([]byte(nil), enc[c:w]...)
		}
	}

	if n > 0 {
		return n, nil
	}
	return 0, s.err
}

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // 0 if unknown
}

// NewCountingReader creates a counting reader with an optional total size.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{reader: r, Total: total}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if the total is unknown. Replacement characters can make
// BytesRead overshoot Total, so the result is capped at 100.
func (r *CountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return min(int(r.BytesRead*100/r.Total), 100)
}

// WrapForStreaming applies BOM skipping, then UTF-8 sanitization, then byte
// counting. The BOM must go first: it is valid UTF-8 and would otherwise
// survive into the first header token.
func WrapForStreaming(r io.Reader, totalSize int64) *CountingReader {
	return NewCountingReader(NewUTF8Sanitizer(NewBOMSkippingReader(r)), totalSize)
}
