// Package metadata implements the CSVW metadata object graph: typed
// TableGroup, Table, Schema, Column, Dialect, Transformation, and Datatype
// nodes with inherited properties, defaults, normalization, validation, and
// merge semantics.
//
// All nodes live in a single [Graph] arena. Parents hold child indices and
// children hold a parent index, so inheritance lookup walks indices rather
// than reference cycles. Graphs are mutated during the parse, merge, and
// normalize phase and treated as immutable during row iteration.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.jacobcolvin.com/csvw/jsonld"
)

// Sentinel errors for metadata processing.
var (
	// ErrMetadataType indicates an unknown or unresolvable node type.
	ErrMetadataType = errors.New("metadata type")
	// ErrValidation indicates one or more validation rule failures.
	ErrValidation = errors.New("metadata validation")
	// ErrMerge indicates incompatible metadata during merge or
	// compatibility verification.
	ErrMerge = errors.New("metadata merge")
	// ErrParse indicates malformed metadata input.
	ErrParse = errors.New("metadata parse")
)

// Kind identifies the type of a metadata node.
type Kind int

// Node kinds, in detection-priority order.
const (
	// KindUnknown is the no-hint sentinel passed to the factory.
	KindUnknown Kind = iota - 1
	// KindTableGroup is a group of tables.
	KindTableGroup
	// KindTable is a single annotated table.
	KindTable
	// KindTransformation is a transformation definition.
	KindTransformation
	// KindSchema is a table schema.
	KindSchema
	// KindColumn is a column description.
	KindColumn
	// KindDialect is a CSV dialect description.
	KindDialect
	// KindDatatype is a derived datatype description.
	KindDatatype
)

var kindNames = map[Kind]string{
	KindTableGroup:     "TableGroup",
	KindTable:          "Table",
	KindTransformation: "Template",
	KindSchema:         "Schema",
	KindColumn:         "Column",
	KindDialect:        "Dialect",
	KindDatatype:       "Datatype",
}

// String returns the CSVW @type name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "Unknown"
}

const noParent = -1

// Node is a single metadata node: a kind plus a property bag. Array and
// object category slots hold arena indices ([]int and int respectively).
type Node struct {
	kind   Kind
	parent int
	slots  map[string]any
}

// Kind returns the node's kind.
func (n *Node) Kind() Kind {
	return n.kind
}

// Graph is the arena holding a parsed metadata document.
type Graph struct {
	nodes  []*Node
	root   int
	ctx    *jsonld.Context
	diags  *Diagnostics
	loader Loader
}

// Option configures parsing.
type Option func(*parseConfig)

type parseConfig struct {
	base   string
	ctx    *jsonld.Context
	diags  *Diagnostics
	hint   Kind
	loader Loader
}

// WithBase sets the base URL links resolve against.
func WithBase(base string) Option {
	return func(c *parseConfig) {
		c.base = base
	}
}

// WithContext supplies a pre-built value context, overriding any @context in
// the document.
func WithContext(ctx *jsonld.Context) Option {
	return func(c *parseConfig) {
		c.ctx = ctx
	}
}

// WithDiagnostics routes construction warnings to d.
func WithDiagnostics(d *Diagnostics) Option {
	return func(c *parseConfig) {
		c.diags = d
	}
}

// WithTypeHint forces the root node's kind instead of detecting it.
func WithTypeHint(k Kind) Option {
	return func(c *parseConfig) {
		c.hint = k
	}
}

// WithLoader sets the loader used to retrieve object properties given as
// URL strings and linked metadata documents.
func WithLoader(l Loader) Option {
	return func(c *parseConfig) {
		c.loader = l
	}
}

// Parse builds a metadata graph from a decoded JSON value. Recoverable
// problems are downgraded to warnings on the Diagnostics collector; only an
// unresolvable node type or a malformed document shape is an error.
func Parse(raw any, opts ...Option) (*Graph, error) {
	cfg := parseConfig{hint: KindUnknown}
	for _, opt := range opts {
		opt(&cfg)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: document is %T, want object", ErrParse, raw)
	}

	g := &Graph{
		root:   noParent,
		diags:  cfg.diags,
		loader: cfg.loader,
	}

	if g.diags == nil {
		g.diags = NewDiagnostics(nil)
	}

	ctx := cfg.ctx

	if ctx == nil {
		var err error

		ctx, err = jsonld.Parse(obj["@context"], cfg.base, func(w string) {
			g.diags.Warnf("@context: %s", w)
		})
		if err != nil {
			return nil, err
		}
	}

	g.ctx = ctx

	root, err := g.addNode(obj, noParent, cfg.hint)
	if err != nil {
		return nil, err
	}

	g.root = root

	return g, nil
}

// ParseBytes decodes JSON and parses the resulting document.
func ParseBytes(data []byte, opts ...Option) (*Graph, error) {
	var raw any

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	return Parse(raw, opts...)
}

// addNode creates a node for obj, recursively creating children, and
// returns its arena index.
func (g *Graph) addNode(obj map[string]any, parent int, hint Kind) (int, error) {
	kind, err := detectKind(obj, hint)
	if err != nil {
		return 0, err
	}

	idx := len(g.nodes)
	g.nodes = append(g.nodes, &Node{
		kind:   kind,
		parent: parent,
		slots:  map[string]any{},
	})

	// Deterministic slot processing order.
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		if key == "@context" {
			// Handled by Parse; recorded for the canonical collapsed form.
			g.nodes[idx].slots["@context"] = obj[key]

			continue
		}

		setErr := g.setProperty(idx, key, obj[key])
		if setErr != nil {
			return 0, setErr
		}
	}

	return idx, nil
}

// node returns the node at idx.
func (g *Graph) node(idx int) *Node {
	return g.nodes[idx]
}

// Root returns the arena index of the document root.
func (g *Graph) Root() int {
	return g.root
}

// Kind returns the kind of the node at idx.
func (g *Graph) Kind(idx int) Kind {
	return g.nodes[idx].kind
}

// Context returns the value context the graph was parsed in.
func (g *Graph) Context() *jsonld.Context {
	return g.ctx
}

// Diagnostics returns the warning collector attached to the graph.
func (g *Graph) Diagnostics() *Diagnostics {
	return g.diags
}

// Tables returns the arena indices of the group's tables. A graph rooted at
// a single Table yields that table.
func (g *Graph) Tables() []int {
	root := g.node(g.root)

	switch root.kind {
	case KindTable:
		return []int{g.root}
	case KindTableGroup:
		if idxs, ok := root.slots["tables"].([]int); ok {
			return idxs
		}
	}

	return nil
}

// TableURL returns the url slot of a table node, or "".
func (g *Graph) TableURL(table int) string {
	s, _ := g.node(table).slots["url"].(string)

	return s
}

// SuppressOutput reports whether output is suppressed for the node at idx.
func (g *Graph) SuppressOutput(idx int) bool {
	b, _ := g.node(idx).slots["suppressOutput"].(bool)

	return b
}

// SchemaOf returns the schema node index for a table (own or group-level),
// or -1 when none is declared.
func (g *Graph) SchemaOf(table int) int {
	for idx := table; idx != noParent; idx = g.node(idx).parent {
		if schema, ok := g.node(idx).slots["tableSchema"].(int); ok {
			return schema
		}
	}

	return noParent
}

// ColumnsOf returns the column node indices of a table's schema.
func (g *Graph) ColumnsOf(table int) []int {
	schema := g.SchemaOf(table)
	if schema == noParent {
		return nil
	}

	cols, _ := g.node(schema).slots["columns"].([]int)

	return cols
}

// Notes returns the notes slot of the node at idx.
func (g *Graph) Notes(idx int) []any {
	notes, _ := g.node(idx).slots["notes"].([]any)

	return notes
}

// AppendNote appends a comment annotation to the node's notes. Used by the
// dialect extractor and row iterator to route comment rows.
func (g *Graph) AppendNote(idx int, comment string) {
	notes, _ := g.node(idx).slots["notes"].([]any)
	g.node(idx).slots["notes"] = append(notes, comment)
}

// ID returns the @id slot of the node at idx, or "".
func (g *Graph) ID(idx int) string {
	s, _ := g.node(idx).slots["@id"].(string)

	return s
}

// detectKind picks a node kind by explicit hint, @type, or key heuristic,
// in that order.
func detectKind(obj map[string]any, hint Kind) (Kind, error) {
	if hint != KindUnknown {
		return hint, nil
	}

	if typ, ok := obj["@type"].(string); ok {
		for kind, name := range kindNames {
			if typ == name {
				return kind, nil
			}
		}

		if typ == "Transformation" {
			return KindTransformation, nil
		}

		return 0, fmt.Errorf("%w: unknown @type %q", ErrMetadataType, typ)
	}

	has := func(keys ...string) bool {
		for _, key := range keys {
			if _, ok := obj[key]; ok {
				return true
			}
		}

		return false
	}

	switch {
	case has("tables"):
		return KindTableGroup, nil
	case has("dialect", "tableSchema", "transformations"):
		return KindTable, nil
	case has("targetFormat", "scriptFormat", "source"):
		return KindTransformation, nil
	case has("columns", "primaryKey", "foreignKeys", "rowTitles"):
		return KindSchema, nil
	case has("name", "virtual", "titles"):
		return KindColumn, nil
	case has("commentPrefix", "delimiter", "doubleQuote", "encoding", "header",
		"headerRowCount", "lineTerminators", "quoteChar", "skipBlankRows",
		"skipColumns", "skipInitialSpace", "skipRows", "trim"):
		return KindDialect, nil
	case has("base", "format", "length", "minLength", "maxLength",
		"minimum", "maximum"):
		return KindDatatype, nil
	case has("url"):
		return KindTable, nil
	}

	return 0, fmt.Errorf("%w: cannot infer node type from keys", ErrMetadataType)
}
