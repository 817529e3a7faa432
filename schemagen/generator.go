// Package schemagen generates JSON Schema (Draft 7) from CSVW table
// schemas, so JSON documents emitted for a table's rows can be validated
// downstream.
package schemagen

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"

	"go.jacobcolvin.com/csvw/metadata"
	"go.jacobcolvin.com/csvw/vocab"
)

// ErrNoTable indicates the metadata graph carries no table to generate for.
var ErrNoTable = errors.New("no table")

// JSON Schema type constants.
const (
	typeBoolean = "boolean"
	typeInteger = "integer"
	typeNumber  = "number"
	typeString  = "string"
	typeArray   = "array"
	typeObject  = "object"
)

// Generator produces JSON Schema from CSVW metadata.
type Generator struct {
	title       string
	description string
	id          string
	strict      bool
}

// Option configures a Generator.
type Option func(*Generator)

// NewGenerator creates a Generator with the given options.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// WithTitle sets the schema title.
func WithTitle(title string) Option {
	return func(g *Generator) {
		g.title = title
	}
}

// WithDescription sets the schema description.
func WithDescription(desc string) Option {
	return func(g *Generator) {
		g.description = desc
	}
}

// WithID sets the schema $id.
func WithID(id string) Option {
	return func(g *Generator) {
		g.id = id
	}
}

// WithStrict sets additionalProperties to false on row objects.
func WithStrict(strict bool) Option {
	return func(g *Generator) {
		g.strict = strict
	}
}

// Generate produces a schema for the whole metadata document: a single
// table yields its array-of-rows schema directly, and several tables yield
// an object keyed by table URL.
func (g *Generator) Generate(meta *metadata.Graph) (*jsonschema.Schema, error) {
	tables := meta.Tables()
	if len(tables) == 0 {
		return nil, ErrNoTable
	}

	var result *jsonschema.Schema

	if len(tables) == 1 {
		result = g.tableSchema(meta, tables[0])
	} else {
		result = &jsonschema.Schema{
			Type:       typeObject,
			Properties: map[string]*jsonschema.Schema{},
		}

		var order []string

		for _, table := range tables {
			url := meta.TableURL(table)
			result.Properties[url] = g.tableSchema(meta, table)
			order = append(order, url)
		}

		result.PropertyOrder = order
	}

	result.Schema = "http://json-schema.org/draft-07/schema#"

	if g.title != "" {
		result.Title = g.title
	}

	if g.description != "" {
		result.Description = g.description
	}

	if g.id != "" {
		result.ID = g.id
	}

	return result, nil
}

// tableSchema builds the array-of-rows schema for one table.
func (g *Generator) tableSchema(meta *metadata.Graph, table int) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:  typeArray,
		Items: g.rowSchema(meta, table),
	}
}

// rowSchema builds the object schema of one emitted row.
func (g *Generator) rowSchema(meta *metadata.Graph, table int) *jsonschema.Schema {
	row := &jsonschema.Schema{
		Type:       typeObject,
		Properties: map[string]*jsonschema.Schema{},
	}

	if g.strict {
		row.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}
	}

	var order []string

	for _, col := range meta.ResolveColumns(table) {
		if col.SuppressOut {
			continue
		}

		prop := g.columnSchema(col)
		row.Properties[col.Name] = prop
		order = append(order, col.Name)

		if col.Required {
			row.Required = append(row.Required, col.Name)
		}
	}

	row.PropertyOrder = order

	if len(row.Properties) == 0 {
		row.Properties = nil
		row.PropertyOrder = nil
	}

	return row
}

// columnSchema maps one column description to a property schema.
func (g *Generator) columnSchema(col *metadata.ResolvedColumn) *jsonschema.Schema {
	s := g.datatypeSchema(col.Datatype)

	if title := firstTitle(col.Titles); title != "" && title != col.Name {
		s.Description = title
	}

	if col.HasSeparator {
		return &jsonschema.Schema{
			Type:  typeArray,
			Items: s,
		}
	}

	return s
}

// datatypeSchema maps a CSVW datatype (base plus facets) to JSON Schema
// constraints.
func (g *Generator) datatypeSchema(dt metadata.ResolvedDatatype) *jsonschema.Schema {
	s := &jsonschema.Schema{Type: jsonType(dt.Base)}

	if s.Type == typeString {
		if pattern, ok := dt.Format.(string); ok && pattern != "" && !vocab.IsDateTimeType(dt.Base) {
			s.Pattern = pattern
		}

		if dt.Length != nil {
			s.MinLength = jsonschema.Ptr(*dt.Length)
			s.MaxLength = jsonschema.Ptr(*dt.Length)
		}

		if dt.MinLength != nil {
			s.MinLength = jsonschema.Ptr(*dt.MinLength)
		}

		if dt.MaxLength != nil {
			s.MaxLength = jsonschema.Ptr(*dt.MaxLength)
		}
	}

	if s.Type == typeInteger || s.Type == typeNumber {
		if f, ok := boundFloat(dt.MinInclusive); ok {
			s.Minimum = jsonschema.Ptr(f)
		}

		if f, ok := boundFloat(dt.MaxInclusive); ok {
			s.Maximum = jsonschema.Ptr(f)
		}

		if f, ok := boundFloat(dt.MinExclusive); ok {
			s.ExclusiveMinimum = jsonschema.Ptr(f)
		}

		if f, ok := boundFloat(dt.MaxExclusive); ok {
			s.ExclusiveMaximum = jsonschema.Ptr(f)
		}
	}

	if vocab.IsDateTimeType(dt.Base) {
		switch dt.Base {
		case "date":
			s.Format = "date"
		case "time":
			s.Format = "time"
		default:
			s.Format = "date-time"
		}
	}

	return s
}

// jsonType maps a CSVW datatype base to its JSON Schema type.
func jsonType(base string) string {
	switch {
	case base == "boolean":
		return typeBoolean
	case base == "double" || base == "float" || base == "number" || base == "decimal":
		return typeNumber
	case vocab.IsNumericType(base):
		return typeInteger
	}

	return typeString
}

func boundFloat(bound *string) (float64, bool) {
	if bound == nil {
		return 0, false
	}

	f, err := strconv.ParseFloat(*bound, 64)
	if err != nil {
		return 0, false
	}

	return f, true
}

// firstTitle returns a column's first title, preferring the und language.
func firstTitle(titles map[string][]string) string {
	if len(titles) == 0 {
		return ""
	}

	if und, ok := titles["und"]; ok && len(und) > 0 {
		return und[0]
	}

	for _, vals := range titles {
		if len(vals) > 0 {
			return vals[0]
		}
	}

	return ""
}

// Describe renders a one-line summary of the generated schema shape, used
// by the CLI in verbose output.
func Describe(s *jsonschema.Schema) string {
	if s == nil {
		return "empty schema"
	}

	if s.Items != nil && s.Items.Properties != nil {
		return fmt.Sprintf("array of objects with %d properties", len(s.Items.Properties))
	}

	return s.Type
}
