package tabular

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/yosida95/uritemplate/v3"

	"go.jacobcolvin.com/csvw/metadata"
	"go.jacobcolvin.com/csvw/vocab"
)

// Literal is a typed or language-tagged literal value.
type Literal struct {
	// Value is the lexical form, canonicalized where the datatype defines
	// a canonical form.
	Value string
	// Type is the datatype IRI; empty for plain and language literals.
	Type string
	// Language is the BCP47 tag of a language literal.
	Language string
}

// Cell is one interpreted cell. Cells live only for the duration of an
// iteration pass.
type Cell struct {
	Column *metadata.ResolvedColumn
	Row    *Row
	// StringValue is the raw source string before any processing.
	StringValue string
	// Value is the typed value: a scalar, a []any with nulls preserved for
	// separator columns, or nil for a null cell. Scalars are string, bool,
	// int64, float64, [decimal.Decimal], or [Literal].
	Value any
	// Expanded URI templates; empty when the column carries none.
	AboutURL    string
	PropertyURL string
	ValueURL    string
	// Errors collects datatype, format, and facet failures. They never
	// abort iteration; the cell falls back to a plain literal.
	Errors []string
}

// Fragment returns the RFC 7111 fragment identifier of the cell.
func (c *Cell) Fragment() string {
	return fmt.Sprintf("cell=%d,%d", c.Row.SourceNumber, c.Column.SourceNumber)
}

// interpreter carries the per-table state of cell interpretation.
type interpreter struct {
	tableURL string
	columns  []*metadata.ResolvedColumn
	dialect  metadata.Dialect
}

func newInterpreter(g *metadata.Graph, table int, columns []*metadata.ResolvedColumn, dialect metadata.Dialect) *interpreter {
	return &interpreter{
		tableURL: g.TableURL(table),
		columns:  columns,
		dialect:  dialect,
	}
}

// cell interprets one raw cell string against its column.
func (in *interpreter) cell(col *metadata.ResolvedColumn, raw string, row *Row) *Cell {
	c := &Cell{
		Column:      col,
		Row:         row,
		StringValue: raw,
	}

	base := col.Datatype.Base

	s := raw

	if !vocab.IsStringFamily(base) {
		s = strings.Map(func(r rune) rune {
			if r == '\r' || r == '\t' || r == '\a' {
				return ' '
			}

			return r
		}, s)
	}

	if !vocab.RetainsWhitespace(base) {
		s = strings.Join(strings.Fields(s), " ")
	}

	if s == "" {
		s = col.Default
	}

	var items []string
	if col.HasSeparator {
		items = strings.Split(s, col.Separator)
	} else {
		items = []string{s}
	}

	values := make([]any, 0, len(items))

	for _, item := range items {
		value := in.item(col, item, c)
		values = append(values, value)
	}

	if col.HasSeparator {
		c.Value = values
	} else {
		c.Value = values[0]
	}

	if col.Required && c.Value == nil {
		c.Errors = append(c.Errors, "required value is missing")
	}

	return c
}

// item processes a single list item (or the sole value) of a cell.
func (in *interpreter) item(col *metadata.ResolvedColumn, item string, c *Cell) any {
	base := col.Datatype.Base

	if base != "string" && base != "anyAtomicType" && base != "any" {
		item = strings.TrimSpace(item)
		if item == "" {
			item = col.Default
		}
	}

	if slices.Contains(col.Null, item) {
		return nil
	}

	if vocab.IsStringFamily(base) || base == "normalizedString" {
		item = trimCell(item, in.dialect.Trim)
	} else {
		item = strings.TrimSpace(item)
	}

	value, lexical, errs := parseValue(col, item)

	errs = append(errs, checkFacets(col.Datatype, item, lexical)...)

	if len(errs) > 0 {
		c.Errors = append(c.Errors, errs...)

		// Fall back to a plain literal carrying the raw item.
		return Literal{Value: item, Language: languageOrEmpty(col.Lang)}
	}

	return value
}

func languageOrEmpty(lang string) string {
	if lang == "und" {
		return ""
	}

	return lang
}

// parseValue dispatches on the datatype base and returns the typed value
// plus its canonical lexical form.
func parseValue(col *metadata.ResolvedColumn, item string) (any, string, []string) {
	dt := col.Datatype
	base := dt.Base

	switch {
	case vocab.IsNumericType(base):
		return parseNumeric(base, dt.Format, item)

	case base == "boolean":
		return parseBoolean(dt.Format, item)

	case vocab.IsDateTimeType(base):
		return parseDateTime(base, dt.Format, item)

	case vocab.IsDurationType(base):
		return parseDuration(base, item)

	case vocab.IsUnsupportedXSD(base):
		return nil, item, []string{fmt.Sprintf("unsupported datatype %q", base)}

	case base == "string" || base == "normalizedString" ||
		base == "token" || base == "language" ||
		base == "Name" || base == "NMTOKEN" || base == "NCName" ||
		base == "xml" || base == "html" || base == "json" ||
		base == "anyAtomicType" || base == "any":
		if errs := checkFormatMatch(dt.Format, item); len(errs) > 0 {
			return nil, item, errs
		}

		if base == "string" || base == "anyAtomicType" || base == "any" {
			return item, item, nil
		}

		iri, _ := vocab.DatatypeIRI(base)

		return Literal{Value: item, Type: iri}, item, nil

	case vocab.IsBuiltinDatatype(base):
		if errs := checkFormatMatch(dt.Format, item); len(errs) > 0 {
			return nil, item, errs
		}

		iri, _ := vocab.DatatypeIRI(base)

		return Literal{Value: item, Type: iri}, item, nil
	}

	// Derived datatype named by an absolute IRI.
	if errs := checkFormatMatch(dt.Format, item); len(errs) > 0 {
		return nil, item, errs
	}

	return Literal{Value: item, Type: base}, item, nil
}

// checkFormatMatch applies a regular-expression format to non-numeric,
// non-temporal types. An uncompilable format is ignored.
func checkFormatMatch(format any, item string) []string {
	pattern, ok := format.(string)
	if !ok || pattern == "" {
		return nil
	}

	rx, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil
	}

	if !rx.MatchString(item) {
		return []string{fmt.Sprintf("%q does not match format %q", item, pattern)}
	}

	return nil
}

// checkFacets validates length-family facets against the pre-datatype
// lexical form and value bounds against the canonical form.
func checkFacets(dt metadata.ResolvedDatatype, item, lexical string) []string {
	var errs []string

	runes := utf8.RuneCountInString(item)

	if dt.Length != nil && runes != *dt.Length {
		errs = append(errs, fmt.Sprintf("%q has length %d, expected %d", item, runes, *dt.Length))
	}

	if dt.MinLength != nil && runes < *dt.MinLength {
		errs = append(errs, fmt.Sprintf("%q has length %d, below minLength %d", item, runes, *dt.MinLength))
	}

	if dt.MaxLength != nil && runes > *dt.MaxLength {
		errs = append(errs, fmt.Sprintf("%q has length %d, above maxLength %d", item, runes, *dt.MaxLength))
	}

	if !vocab.IsOrderedType(dt.Base) {
		return errs
	}

	check := func(bound *string, op string) {
		if bound == nil {
			return
		}

		cmp, err := compareValues(dt.Base, lexical, *bound)
		if err != nil {
			return
		}

		switch op {
		case "minInclusive":
			if cmp < 0 {
				errs = append(errs, fmt.Sprintf("%q is below the minimum %s", lexical, *bound))
			}
		case "maxInclusive":
			if cmp > 0 {
				errs = append(errs, fmt.Sprintf("%q is above the maximum %s", lexical, *bound))
			}
		case "minExclusive":
			if cmp <= 0 {
				errs = append(errs, fmt.Sprintf("%q is not above the exclusive minimum %s", lexical, *bound))
			}
		case "maxExclusive":
			if cmp >= 0 {
				errs = append(errs, fmt.Sprintf("%q is not below the exclusive maximum %s", lexical, *bound))
			}
		}
	}

	check(dt.MinInclusive, "minInclusive")
	check(dt.MaxInclusive, "maxInclusive")
	check(dt.MinExclusive, "minExclusive")
	check(dt.MaxExclusive, "maxExclusive")

	return errs
}

// expandTemplates expands aboutUrl, propertyUrl, and valueUrl for every
// cell of the row, resolving the results against the table URL.
func (in *interpreter) expandTemplates(row *Row) {
	vars := uritemplate.Values{}

	vars.Set("_row", uritemplate.String(strconv.Itoa(row.Number)))
	vars.Set("_sourceRow", uritemplate.String(strconv.Itoa(row.SourceNumber)))

	for i, col := range in.columns {
		if i >= len(row.Cells) {
			break
		}

		name := decodedName(col.Name)
		vars.Set(name, uritemplate.String(cellLexical(row.Cells[i], col)))
	}

	for i, cell := range row.Cells {
		col := in.columns[i]

		cellVars := uritemplate.Values{}
		for k, v := range vars {
			cellVars.Set(k, v)
		}

		cellVars.Set("_name", uritemplate.String(decodedName(col.Name)))
		cellVars.Set("_column", uritemplate.String(strconv.Itoa(col.Number)))
		cellVars.Set("_sourceColumn", uritemplate.String(strconv.Itoa(col.SourceNumber)))

		cell.AboutURL = in.expand(col.AboutURL, cellVars)
		cell.PropertyURL = in.expand(col.PropertyURL, cellVars)

		if cell.Value != nil || col.Virtual {
			cell.ValueURL = in.expand(col.ValueURL, cellVars)
		}
	}
}

// expand expands a single template and resolves it against the table URL.
func (in *interpreter) expand(tmpl string, vars uritemplate.Values) string {
	if tmpl == "" {
		return ""
	}

	t, err := uritemplate.New(tmpl)
	if err != nil {
		return ""
	}

	expanded, err := t.Expand(vars)
	if err != nil {
		return ""
	}

	base, err := url.Parse(in.tableURL)
	if err != nil || in.tableURL == "" {
		return expanded
	}

	ref, err := url.Parse(expanded)
	if err != nil {
		return expanded
	}

	return base.ResolveReference(ref).String()
}

// cellLexical renders a cell's post-processed string for URI template
// variables. List values join on the column separator; nulls render empty.
func cellLexical(c *Cell, col *metadata.ResolvedColumn) string {
	render := func(v any) string {
		switch t := v.(type) {
		case nil:
			return ""
		case string:
			return t
		case Literal:
			return t.Value
		case bool:
			return strconv.FormatBool(t)
		case int64:
			return strconv.FormatInt(t, 10)
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		}

		return fmt.Sprintf("%v", v)
	}

	if list, ok := c.Value.([]any); ok {
		parts := make([]string, 0, len(list))
		for _, v := range list {
			parts = append(parts, render(v))
		}

		return strings.Join(parts, col.Separator)
	}

	return render(c.Value)
}

func decodedName(name string) string {
	decoded, err := url.QueryUnescape(name)
	if err != nil {
		return name
	}

	return decoded
}
