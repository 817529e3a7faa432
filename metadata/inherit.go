package metadata

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

// Inherited resolves an inherited property for the node at idx by walking
// child to parent; a child's explicit value overrides. When no ancestor
// carries the property the documented default is returned (nil when the
// property has none).
func (g *Graph) Inherited(idx int, key string) any {
	spec, ok := inheritedProps[key]
	if !ok {
		return nil
	}

	for at := idx; at != noParent; at = g.node(at).parent {
		if !inheritable[g.node(at).kind] {
			continue
		}

		if value, set := g.node(at).slots[key]; set {
			return value
		}
	}

	return spec.def
}

// TrimMode is a dialect trim rule.
type TrimMode string

// Trim rules.
const (
	TrimBoth  TrimMode = "true"
	TrimNone  TrimMode = "false"
	TrimStart TrimMode = "start"
	TrimEnd   TrimMode = "end"
)

// Dialect is the resolved CSV-parsing parameter set for one table, with
// every default applied.
type Dialect struct {
	CommentPrefix    string
	Delimiter        string
	DoubleQuote      bool
	Encoding         string
	Header           bool
	HeaderRowCount   int
	LineTerminators  []string
	QuoteChar        string
	SkipBlankRows    bool
	SkipColumns      int
	SkipInitialSpace bool
	SkipRows         int
	Trim             TrimMode
}

// DefaultDialect returns the dialect with all CSVW defaults.
func DefaultDialect() Dialect {
	return Dialect{
		CommentPrefix:   "#",
		Delimiter:       ",",
		DoubleQuote:     true,
		Encoding:        "utf-8",
		Header:          true,
		HeaderRowCount:  1,
		LineTerminators: []string{"\r\n", "\n"},
		QuoteChar:       `"`,
		Trim:            TrimBoth,
	}
}

// DialectFor resolves the effective dialect for a table: the table's own
// dialect, else the group's, else pure defaults. headerRowCount derives
// from header when unset, and trim derives from skipInitialSpace.
func (g *Graph) DialectFor(table int) Dialect {
	d := DefaultDialect()

	node := noParent

	for at := table; at != noParent; at = g.node(at).parent {
		if child, ok := g.node(at).slots["dialect"].(int); ok {
			node = child

			break
		}
	}

	if node == noParent {
		return d
	}

	slots := g.node(node).slots

	if v, ok := slots["commentPrefix"].(string); ok {
		d.CommentPrefix = v
	}

	if v, ok := slots["delimiter"].(string); ok {
		d.Delimiter = v
	}

	if v, ok := slots["doubleQuote"].(bool); ok {
		d.DoubleQuote = v
	}

	if v, ok := slots["encoding"].(string); ok {
		d.Encoding = v
	}

	if v, ok := slots["header"].(bool); ok {
		d.Header = v
	}

	if v, ok := slots["lineTerminators"].([]string); ok {
		d.LineTerminators = v
	}

	if v, ok := slots["quoteChar"].(string); ok {
		d.QuoteChar = v
	}

	if v, ok := slots["skipBlankRows"].(bool); ok {
		d.SkipBlankRows = v
	}

	if v, ok := slots["skipColumns"].(int); ok {
		d.SkipColumns = v
	}

	if v, ok := slots["skipInitialSpace"].(bool); ok {
		d.SkipInitialSpace = v
	}

	if v, ok := slots["skipRows"].(int); ok {
		d.SkipRows = v
	}

	// headerRowCount defaults to 1 when header, else 0.
	if v, ok := slots["headerRowCount"].(int); ok {
		d.HeaderRowCount = v
	} else if !d.Header {
		d.HeaderRowCount = 0
	}

	// trim derives from skipInitialSpace when unset.
	if v, ok := slots["trim"].(string); ok {
		d.Trim = TrimMode(v)
	} else if d.SkipInitialSpace {
		d.Trim = TrimStart
	}

	return d
}

// ResolvedDatatype is a column datatype with facets in lexical form,
// ready for the cell interpreter.
type ResolvedDatatype struct {
	// Base is the built-in name, or an absolute IRI for derived types.
	Base string
	// Format is the raw format annotation: a string, or a structured map
	// for numeric and boolean types.
	Format any
	// Length-family facets; nil when absent.
	Length    *int
	MinLength *int
	MaxLength *int
	// Value bounds in lexical form; nil when absent. minimum/maximum are
	// folded into the inclusive pair.
	MinInclusive *string
	MaxInclusive *string
	MinExclusive *string
	MaxExclusive *string
}

// ResolvedColumn is a column with every inherited property resolved, as the
// cell interpreter consumes it.
type ResolvedColumn struct {
	// Number is the 1-based position among the schema's columns.
	Number int
	// SourceNumber is the 1-based position in the source file, offset by
	// skipColumns.
	SourceNumber int
	Name         string
	Titles       map[string][]string
	Virtual      bool
	SuppressOut  bool
	Required     bool
	Ordered      bool
	Separator    string
	HasSeparator bool
	Default      string
	Lang         string
	Null         []string
	TextDir      string
	AboutURL     string
	PropertyURL  string
	ValueURL     string
	Datatype     ResolvedDatatype
}

// Fragment returns the RFC 7111 fragment identifier of the column.
func (c *ResolvedColumn) Fragment() string {
	return fmt.Sprintf("col=%d", c.SourceNumber)
}

// ResolveColumns builds the resolved view of a table's columns. Column
// names default to the first "und" title (percent-encoded), then to
// "_col.N".
func (g *Graph) ResolveColumns(table int) []*ResolvedColumn {
	dialect := g.DialectFor(table)
	cols := g.ColumnsOf(table)
	out := make([]*ResolvedColumn, 0, len(cols))

	for i, colIdx := range cols {
		node := g.node(colIdx)
		col := &ResolvedColumn{
			Number:       i + 1,
			SourceNumber: i + 1 + dialect.SkipColumns,
		}

		if titles, ok := node.slots["titles"].(map[string][]string); ok {
			col.Titles = titles
		}

		if v, ok := node.slots["virtual"].(bool); ok {
			col.Virtual = v
		}

		if v, ok := node.slots["suppressOutput"].(bool); ok {
			col.SuppressOut = v
		}

		col.Name = g.columnName(colIdx, col.Number)

		col.Required, _ = g.Inherited(colIdx, "required").(bool)
		col.Ordered, _ = g.Inherited(colIdx, "ordered").(bool)
		col.Default, _ = g.Inherited(colIdx, "default").(string)
		col.Lang, _ = g.Inherited(colIdx, "lang").(string)
		col.TextDir, _ = g.Inherited(colIdx, "textDirection").(string)
		col.Null, _ = g.Inherited(colIdx, "null").([]string)

		if sep, ok := g.Inherited(colIdx, "separator").(string); ok {
			col.Separator = sep
			col.HasSeparator = true
		}

		col.AboutURL, _ = g.Inherited(colIdx, "aboutUrl").(string)
		col.PropertyURL, _ = g.Inherited(colIdx, "propertyUrl").(string)
		col.ValueURL, _ = g.Inherited(colIdx, "valueUrl").(string)

		col.Datatype = g.resolveDatatype(colIdx)

		out = append(out, col)
	}

	return out
}

// columnName resolves a column's name: explicit name, first title under
// "und" or any language (percent-encoded), else the reserved _col form.
func (g *Graph) columnName(colIdx, number int) string {
	node := g.node(colIdx)

	if name, ok := node.slots["name"].(string); ok {
		return name
	}

	titles, _ := node.slots["titles"].(map[string][]string)
	if len(titles) > 0 {
		langs := make([]string, 0, len(titles))
		for lang := range titles {
			langs = append(langs, lang)
		}

		sort.Strings(langs)

		// und first.
		for _, lang := range langs {
			if lang == "und" && len(titles[lang]) > 0 {
				return url.QueryEscape(titles[lang][0])
			}
		}

		for _, lang := range langs {
			if len(titles[lang]) > 0 {
				return url.QueryEscape(titles[lang][0])
			}
		}
	}

	return fmt.Sprintf("_col.%d", number)
}

// resolveDatatype materializes the inherited datatype of a column,
// defaulting to {base: "string"}.
func (g *Graph) resolveDatatype(colIdx int) ResolvedDatatype {
	dt := ResolvedDatatype{Base: "string"}

	node, ok := g.Inherited(colIdx, "datatype").(int)
	if !ok {
		return dt
	}

	slots := g.node(node).slots

	if base, has := slots["base"].(string); has {
		dt.Base = base
	}

	dt.Format = slots["format"]

	intFacet := func(key string) *int {
		if n, has := slots[key].(int); has {
			return &n
		}

		return nil
	}

	dt.Length = intFacet("length")
	dt.MinLength = intFacet("minLength")
	dt.MaxLength = intFacet("maxLength")

	bound := func(keys ...string) *string {
		for _, key := range keys {
			if v, has := slots[key]; has {
				s := boundLexical(v)

				return &s
			}
		}

		return nil
	}

	dt.MinInclusive = bound("minInclusive", "minimum")
	dt.MaxInclusive = bound("maxInclusive", "maximum")
	dt.MinExclusive = bound("minExclusive")
	dt.MaxExclusive = bound("maxExclusive")

	return dt
}

// boundLexical renders a bound facet value in lexical form.
func boundLexical(v any) string {
	switch b := v.(type) {
	case string:
		return b
	case int:
		return fmt.Sprintf("%d", b)
	case int64:
		return fmt.Sprintf("%d", b)
	case float64:
		return strconv.FormatFloat(b, 'f', -1, 64)
	}

	return fmt.Sprintf("%v", v)
}
