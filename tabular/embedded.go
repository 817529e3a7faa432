package tabular

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"go.jacobcolvin.com/csvw/metadata"
)

// EmbeddedMetadata reads the head of a tabular input under the dialect and
// builds the Table metadata it embeds: column titles from header rows, and
// comment annotations from comment-prefixed skip rows. Malformed header
// shapes never fail; degenerate columns stay empty.
func EmbeddedMetadata(input io.Reader, d metadata.Dialect, url string, opts ...metadata.Option) (*metadata.Graph, error) {
	cr, err := newCSVReader(input, d)
	if err != nil {
		return nil, err
	}

	var comments []string

	read := func() ([]string, bool) {
		fields, readErr := cr.Read()
		if readErr != nil {
			return nil, false
		}

		return fields, true
	}

	// Discarded rows may still carry comment annotations.
	for range d.SkipRows {
		fields, ok := read()
		if !ok {
			break
		}

		if text, isComment := commentText(fields, d); isComment {
			comments = append(comments, text)
		}
	}

	var columns []map[string]any

	ensureColumn := func(i int) map[string]any {
		for len(columns) <= i {
			columns = append(columns, map[string]any{"titles": map[string]any{"und": []any{}}})
		}

		return columns[i]
	}

	headerRows := 0

	for headerRows < d.HeaderRowCount {
		fields, ok := read()
		if !ok {
			break
		}

		if text, isComment := commentText(fields, d); isComment {
			comments = append(comments, text)

			continue
		}

		headerRows++

		for i, field := range fields {
			if i < d.SkipColumns {
				continue
			}

			title := strings.TrimSpace(trimCell(field, d.Trim))
			if title == "" {
				ensureColumn(i - d.SkipColumns)

				continue
			}

			col := ensureColumn(i - d.SkipColumns)
			titles := col["titles"].(map[string]any)
			titles["und"] = append(titles["und"].([]any), title)
		}
	}

	table := map[string]any{
		"@type": "Table",
		"url":   url,
	}

	if len(columns) > 0 {
		cols := make([]any, 0, len(columns))
		for _, col := range columns {
			cols = append(cols, col)
		}

		table["tableSchema"] = map[string]any{"columns": cols}
	}

	if len(comments) > 0 {
		notes := make([]any, 0, len(comments))
		for _, comment := range comments {
			notes = append(notes, comment)
		}

		table["rdfs:comment"] = notes
	}

	g, err := metadata.Parse(table, append(opts, metadata.WithTypeHint(metadata.KindTable))...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errEmbedded, err)
	}

	return g, nil
}

var errEmbedded = errors.New("embedded metadata")
