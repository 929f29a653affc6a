package core

// streaming.go provides reader wrappers applied to CSV input before parsing:
//
//   - BOMSkippingReader: Removes the UTF-8 BOM (0xEF 0xBB 0xBF) added by Excel
//   - UTF8Validator: Fails on the first invalid UTF-8 sequence
//   - CountingReader: Tracks bytes read for the run summary
//
// Use WrapCSVInput to apply all of them in the correct order.

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned by UTF8Validator when the input is not UTF-8.
var ErrInvalidUTF8 = errors.New("encoding error: input is not valid UTF-8")

// UTF8Validator wraps an io.Reader and returns ErrInvalidUTF8 as soon as an
// invalid byte sequence is seen. Multi-byte runes split across reads are
// held back until complete.
type UTF8Validator struct {
	reader  io.Reader
	pending []byte
	offset  int64
}

// NewUTF8Validator creates a validating reader.
func NewUTF8Validator(r io.Reader) *UTF8Validator {
	return &UTF8Validator{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (v *UTF8Validator) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n := copy(p, v.pending)
	v.pending = append(v.pending[:0], v.pending[n:]...)

	m, err := v.reader.Read(p[n:])
	n += m
	atEOF := errors.Is(err, io.EOF)

	good, bad := scanUTF8(p[:n], atEOF && len(v.pending) == 0)
	if bad {
		return 0, fmt.Errorf("%w (byte offset %d)", ErrInvalidUTF8, v.offset+int64(good))
	}
	if good < n {
		// Incomplete rune at the end; keep it for the next read.
		v.pending = append(v.pending, p[good:n]...)
		if atEOF {
			err = nil
		}
	}

	v.offset += int64(good)
	return good, err
}

// scanUTF8 returns the length of the valid prefix of data. bad is true when
// data holds an invalid sequence; a rune cut off at the end of data is only
// invalid when atEOF is set.
func scanUTF8(data []byte, atEOF bool) (good int, bad bool) {
	for good < len(data) {
		if data[good] < utf8.RuneSelf {
			good++
			continue
		}
		r, size := utf8.DecodeRune(data[good:])
		if r == utf8.RuneError && size == 1 {
			if !atEOF && !utf8.FullRune(data[good:]) {
				return good, false
			}
			return good, true
		}
		good += size
	}
	return good, false
}

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
type BOMSkippingReader struct {
	reader     io.Reader
	bomChecked bool
	buf        [3]byte
	bufData    []byte // Bytes read during the BOM check that were not a BOM
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader. On the first read, it checks for and skips the BOM.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.bomChecked {
		r.bomChecked = true

		n, err := io.ReadFull(r.reader, r.buf[:])
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}

		if !(n == 3 && r.buf[0] == 0xEF && r.buf[1] == 0xBB && r.buf[2] == 0xBF) {
			r.bufData = r.buf[:n]
		}
		if errors.Is(err, io.EOF) && len(r.bufData) == 0 {
			return 0, io.EOF
		}
	}

	if len(r.bufData) > 0 {
		copied := copy(p, r.bufData)
		r.bufData = r.bufData[copied:]
		return copied, nil
	}

	return r.reader.Read(p)
}

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader creates a counting reader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// WrapCSVInput wraps a reader with BOM skipping, UTF-8 validation, and byte
// counting.
//
// The order matters:
// 1. BOM must be stripped first (before any processing)
// 2. UTF-8 validation happens next
// 3. Counting wraps everything
func WrapCSVInput(r io.Reader) *CountingReader {
	return NewCountingReader(NewUTF8Validator(NewBOMSkippingReader(r)))
}
