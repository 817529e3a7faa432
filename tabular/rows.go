package tabular

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"go.jacobcolvin.com/csvw/metadata"
)

// Sink receives the events of one iteration pass: logical rows and comment
// annotations. Rows are owned by the sink only for the duration of the
// call.
type Sink interface {
	Row(*Row) error
	Comment(text string) error
}

// SinkFuncs adapts plain functions to [Sink]. Nil members discard their
// events.
type SinkFuncs struct {
	OnRow     func(*Row) error
	OnComment func(string) error
}

// Row implements [Sink].
func (s SinkFuncs) Row(r *Row) error {
	if s.OnRow == nil {
		return nil
	}

	return s.OnRow(r)
}

// Comment implements [Sink].
func (s SinkFuncs) Comment(text string) error {
	if s.OnComment == nil {
		return nil
	}

	return s.OnComment(text)
}

// Row is one logical data row.
type Row struct {
	// Table is the arena index of the table the row belongs to.
	Table int
	// Number is the 1-based logical row number, skipped rows excluded.
	Number int
	// SourceNumber is the 1-based physical row number in the file.
	SourceNumber int
	// Cells are the interpreted cells, one per schema column.
	Cells []*Cell
}

// Fragment returns the RFC 7111 fragment identifier of the row.
func (r *Row) Fragment() string {
	return fmt.Sprintf("row=%d", r.SourceNumber)
}

// EachRow drives a CSV reader over input with the table's dialect, feeding
// the sink one event per comment annotation or logical row. Shape errors
// ([RowWidthError]) abort the pass; datatype problems are collected on the
// cells instead. The reader is drained only as far as the sink pulls.
func EachRow(input io.Reader, g *metadata.Graph, table int, sink Sink) error {
	dialect := g.DialectFor(table)

	cr, err := newCSVReader(input, dialect)
	if err != nil {
		return err
	}

	columns := g.ResolveColumns(table)
	interp := newInterpreter(g, table, columns, dialect)

	number := 0
	consumed := 0

	// skipRows rows are discarded outright; header rows follow. Comment-
	// prefixed rows in either region surface as annotations, and a comment
	// does not count against the header rows.
	skipRows := dialect.SkipRows
	headerRows := dialect.HeaderRowCount

	for {
		fields, readErr := cr.Read()
		if errors.Is(readErr, io.EOF) {
			return nil
		}

		if readErr != nil {
			return fmt.Errorf("%w: %w", ErrRead, readErr)
		}

		// The physical line the record starts on; blank lines the CSV
		// layer absorbs still advance it.
		sourceNumber, _ := cr.FieldPos(0)

		consumed++

		text, isComment := commentText(fields, dialect)

		switch {
		case consumed <= skipRows:
			if isComment {
				err = sink.Comment(text)
				if err != nil {
					return err
				}
			}

		case isComment:
			err = sink.Comment(text)
			if err != nil {
				return err
			}

		case headerRows > 0:
			headerRows--

		case dialect.SkipBlankRows && blankRow(fields, dialect):

		default:
			number++

			row, rowErr := buildRow(g, table, columns, dialect, interp, fields, number, sourceNumber)
			if rowErr != nil {
				return rowErr
			}

			err = sink.Row(row)
			if err != nil {
				return err
			}
		}
	}
}

// commentText reports whether the physical row is a comment under the
// dialect, returning the trimmed text after the prefix.
func commentText(fields []string, d metadata.Dialect) (string, bool) {
	if d.CommentPrefix == "" || len(fields) == 0 {
		return "", false
	}

	if !strings.HasPrefix(fields[0], d.CommentPrefix) {
		return "", false
	}

	joined := strings.Join(fields, d.Delimiter)
	text := strings.TrimPrefix(joined, d.CommentPrefix)

	return strings.TrimSpace(text), true
}

func blankRow(fields []string, d metadata.Dialect) bool {
	for _, f := range fields {
		if strings.TrimSpace(trimCell(f, d.Trim)) != "" {
			return false
		}
	}

	return true
}

// trimCell applies the dialect trim rule.
func trimCell(s string, mode metadata.TrimMode) string {
	switch mode {
	case metadata.TrimBoth:
		return strings.TrimSpace(s)
	case metadata.TrimStart:
		return strings.TrimLeft(s, " \t")
	case metadata.TrimEnd:
		return strings.TrimRight(s, " \t")
	}

	return s
}

// buildRow assembles the interpreted cells of one logical row.
func buildRow(
	g *metadata.Graph,
	table int,
	columns []*metadata.ResolvedColumn,
	dialect metadata.Dialect,
	interp *interpreter,
	fields []string,
	number, sourceNumber int,
) (*Row, error) {
	if dialect.SkipColumns > 0 {
		if dialect.SkipColumns >= len(fields) {
			fields = nil
		} else {
			fields = fields[dialect.SkipColumns:]
		}
	}

	if len(columns) == 0 {
		columns = anonymousColumns(len(fields), dialect)
		interp.columns = columns
	}

	nonVirtual := 0

	for _, col := range columns {
		if !col.Virtual {
			nonVirtual++
		}
	}

	if len(fields) < nonVirtual {
		return nil, &RowWidthError{SourceNumber: sourceNumber, Got: len(fields), Want: nonVirtual}
	}

	row := &Row{
		Table:        table,
		Number:       number,
		SourceNumber: sourceNumber,
	}

	for i, col := range columns {
		raw := ""

		if !col.Virtual && i < len(fields) {
			raw = fields[i]
		}

		row.Cells = append(row.Cells, interp.cell(col, raw, row))
	}

	interp.expandTemplates(row)

	return row, nil
}

// anonymousColumns synthesizes string-typed columns for a table without a
// declared schema.
func anonymousColumns(n int, d metadata.Dialect) []*metadata.ResolvedColumn {
	cols := make([]*metadata.ResolvedColumn, 0, n)

	for i := range n {
		cols = append(cols, &metadata.ResolvedColumn{
			Number:       i + 1,
			SourceNumber: i + 1 + d.SkipColumns,
			Name:         fmt.Sprintf("_col.%d", i+1),
			Lang:         "und",
			Null:         []string{""},
			TextDir:      "ltr",
			Datatype:     metadata.ResolvedDatatype{Base: "string"},
		})
	}

	return cols
}
