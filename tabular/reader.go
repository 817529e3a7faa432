// Package tabular reads CSV-family input under a resolved dialect: it
// extracts embedded metadata from headers, iterates logical rows, and
// interprets cells against column descriptions, producing the annotated
// model consumed by RDF and JSON emitters.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/ianaindex"

	"go.jacobcolvin.com/csvw/metadata"
)

// Sentinel errors for tabular processing.
var (
	// ErrRead indicates a failure in the underlying reader.
	ErrRead = errors.New("tabular read")
	// ErrEncoding indicates an unknown or undecodable input encoding.
	ErrEncoding = errors.New("tabular encoding")
)

// RowWidthError reports a data row with fewer fields than the schema's
// non-virtual columns. Shape errors are fatal, unlike cell errors.
type RowWidthError struct {
	SourceNumber int
	Got          int
	Want         int
}

// Error implements the error interface.
func (e *RowWidthError) Error() string {
	return fmt.Sprintf("row %d has %d fields, expected %d", e.SourceNumber, e.Got, e.Want)
}

// newCSVReader opens an encoding/csv reader configured from the dialect.
// Line terminators beyond CRLF/LF and non-UTF-8 encodings are translated
// before the CSV layer sees the bytes.
func newCSVReader(r io.Reader, d metadata.Dialect) (*csv.Reader, error) {
	decoded, err := decodeEncoding(r, d.Encoding)
	if err != nil {
		return nil, err
	}

	if needsTerminatorTranslation(d.LineTerminators) {
		decoded = newTerminatorReader(decoded, d.LineTerminators)
	}

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = !d.DoubleQuote

	if d.Delimiter != "" {
		cr.Comma = []rune(d.Delimiter)[0]
	}

	return cr, nil
}

// decodeEncoding wraps r with a decoder for the named IANA charset.
// UTF-8 passes through.
func decodeEncoding(r io.Reader, name string) (io.Reader, error) {
	switch name {
	case "", "utf-8", "UTF-8", "utf8":
		return r, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %q", ErrEncoding, name)
	}

	return enc.NewDecoder().Reader(r), nil
}

func needsTerminatorTranslation(terminators []string) bool {
	for _, t := range terminators {
		if t != "\n" && t != "\r\n" {
			return true
		}
	}

	return false
}

// terminatorReader rewrites custom line terminators to LF so the CSV layer
// only sees standard line endings.
type terminatorReader struct {
	src         io.Reader
	terminators [][]byte
	maxLen      int
	buf         bytes.Buffer
	tail        []byte
	done        bool
}

func newTerminatorReader(src io.Reader, terminators []string) io.Reader {
	tr := &terminatorReader{src: src}

	for _, t := range terminators {
		tr.terminators = append(tr.terminators, []byte(t))

		if len(t) > tr.maxLen {
			tr.maxLen = len(t)
		}
	}

	return tr
}

// Read implements io.Reader.
func (t *terminatorReader) Read(p []byte) (int, error) {
	for t.buf.Len() == 0 && !t.done {
		chunk := make([]byte, 4096)

		n, err := t.src.Read(chunk)
		if n > 0 {
			t.translate(append(t.tail, chunk[:n]...), false)
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				return 0, err
			}

			t.translate(t.tail, true)
			t.tail = nil
			t.done = true
		}
	}

	if t.buf.Len() == 0 && t.done {
		return 0, io.EOF
	}

	return t.buf.Read(p)
}

// translate rewrites terminators in data, holding back a tail that could
// begin a terminator split across chunks unless final is set.
func (t *terminatorReader) translate(data []byte, final bool) {
	hold := 0
	if !final {
		hold = t.maxLen - 1
	}

	i := 0

	for i < len(data) {
		if !final && i >= len(data)-hold {
			break
		}

		matched := false

		for _, term := range t.terminators {
			if bytes.HasPrefix(data[i:], term) {
				t.buf.WriteByte('\n')
				i += len(term)
				matched = true

				break
			}
		}

		if !matched {
			t.buf.WriteByte(data[i])
			i++
		}
	}

	t.tail = append([]byte(nil), data[i:]...)
}
