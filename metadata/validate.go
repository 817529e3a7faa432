package metadata

import (
	"fmt"
	"strings"

	"go.jacobcolvin.com/csvw/jsonld"
	"go.jacobcolvin.com/csvw/vocab"
)

// Validate checks every validation rule and returns the error messages.
// An empty result means the graph is valid.
func (g *Graph) Validate() []string {
	var errs []string

	report := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	for idx, node := range g.nodes {
		g.validateNode(idx, node, report)
	}

	return errs
}

// Check runs Validate and surfaces failures as one grouped error wrapping
// [ErrValidation].
func (g *Graph) Check() error {
	errs := g.Validate()
	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("%w:\n%s", ErrValidation, strings.Join(errs, "\n"))
}

func (g *Graph) validateNode(idx int, node *Node, report func(string, ...any)) {
	if id, ok := node.slots["@id"].(string); ok && strings.HasPrefix(id, "_:") {
		report("%s: @id must not begin with _:", node.kind)
	}

	switch node.kind {
	case KindTableGroup:
		tables, _ := node.slots["tables"].([]int)
		if len(tables) == 0 {
			report("TableGroup: at least one table is required")
		}

		seen := map[string]int{}
		for _, table := range tables {
			url := g.TableURL(table)
			seen[url]++
		}

		for url, n := range seen {
			if n > 1 {
				report("TableGroup: table url %q appears %d times", url, n)
			}
		}

	case KindTable:
		if _, ok := node.slots["url"].(string); !ok {
			report("Table: required property url is missing")
		}

	case KindTransformation:
		for _, required := range []string{"url", "targetFormat", "scriptFormat"} {
			if _, ok := node.slots[required].(string); !ok {
				report("Template: required property %s is missing", required)
			}
		}

	case KindSchema:
		g.validateSchema(idx, node, report)

	case KindDatatype:
		g.validateDatatype(node, report)
	}
}

func (g *Graph) validateSchema(idx int, node *Node, report func(string, ...any)) {
	cols, _ := node.slots["columns"].([]int)

	names := map[string]bool{}
	sawVirtual := false

	for _, colIdx := range cols {
		colNode := g.node(colIdx)

		if name, ok := colNode.slots["name"].(string); ok {
			if names[name] {
				report("Schema: duplicate column name %q", name)
			}

			names[name] = true

			if strings.HasPrefix(name, "_col") {
				report("Schema: column name %q uses the reserved _col prefix", name)
			}
		}

		virtual, _ := colNode.slots["virtual"].(bool)
		if virtual {
			sawVirtual = true
		} else if sawVirtual {
			report("Schema: non-virtual column after a virtual column")
		}
	}

	if refs, ok := node.slots["primaryKey"].([]string); ok {
		for _, ref := range refs {
			if !g.columnExists(idx, ref) {
				report("invalid property 'primaryKey': column %q not found", ref)
			}
		}
	}

	if keys, ok := node.slots["foreignKeys"].([]map[string]any); ok {
		for _, fk := range keys {
			g.validateForeignKey(idx, fk, report)
		}
	}
}

func (g *Graph) validateForeignKey(schema int, fk map[string]any, report func(string, ...any)) {
	for key := range fk {
		if key != "columnReference" && key != "reference" {
			report("invalid property 'foreignKeys': unexpected key %q", key)
		}
	}

	refs, ok := columnReference(fk["columnReference"])
	if !ok {
		report("invalid property 'foreignKeys': columnReference is required")
	}

	for _, ref := range refs {
		if !g.columnExists(schema, ref) {
			report("invalid property 'foreignKeys': column %q not found", ref)
		}
	}

	reference, ok := fk["reference"].(map[string]any)
	if !ok {
		report("invalid property 'foreignKeys': reference is required")

		return
	}

	resource, hasResource := reference["resource"].(string)
	schemaRef, hasSchemaRef := reference["schemaReference"].(string)

	switch {
	case hasResource && hasSchemaRef:
		report("invalid property 'foreignKeys': reference carries both resource and schemaReference")

	case hasResource:
		target := g.findTableByURL(resource)
		if target == noParent {
			report("invalid property 'foreignKeys': table referenced by %s not found",
				g.resolveAgainstBase(resource))
		} else if targetRefs, ok := columnReference(reference["columnReference"]); ok {
			targetSchema := g.SchemaOf(target)

			for _, ref := range targetRefs {
				if targetSchema == noParent || !g.columnExists(targetSchema, ref) {
					report("invalid property 'foreignKeys': referenced column %q not found", ref)
				}
			}
		}

	case hasSchemaRef:
		if g.findSchemaByID(schemaRef) == noParent {
			report("invalid property 'foreignKeys': schema referenced by %s not found",
				g.resolveAgainstBase(schemaRef))
		}

	default:
		report("invalid property 'foreignKeys': reference needs resource or schemaReference")
	}
}

func (g *Graph) validateDatatype(node *Node, report func(string, ...any)) {
	base, hasBase := node.slots["base"].(string)
	if hasBase && !vocab.IsBuiltinDatatype(base) && !jsonld.IsAbsolute(base) {
		if vocab.IsUnsupportedXSD(base) {
			// Recognized but unsupported; surfaced per cell, not fatal.
			return
		}

		report("Datatype: base %q is neither built-in nor an absolute IRI", base)
	}

	length, hasLength := node.slots["length"].(int)
	if hasLength {
		if minLen, ok := node.slots["minLength"].(int); ok && minLen != length {
			report("Datatype: length %d conflicts with minLength %d", length, minLen)
		}

		if maxLen, ok := node.slots["maxLength"].(int); ok && maxLen != length {
			report("Datatype: length %d conflicts with maxLength %d", length, maxLen)
		}
	}

	if minLen, okMin := node.slots["minLength"].(int); okMin {
		if maxLen, okMax := node.slots["maxLength"].(int); okMax && minLen > maxLen {
			report("Datatype: minLength %d exceeds maxLength %d", minLen, maxLen)
		}
	}

	if hasBase && !vocab.IsOrderedType(base) {
		for _, key := range []string{
			"minimum", "maximum",
			"minInclusive", "maxInclusive", "minExclusive", "maxExclusive",
		} {
			if _, set := node.slots[key]; set {
				report("Datatype: %s does not apply to base %q", key, base)
			}
		}
	}
}

// columnExists reports whether the schema at idx declares a column whose
// name (or derived name) equals ref.
func (g *Graph) columnExists(schema int, ref string) bool {
	cols, _ := g.node(schema).slots["columns"].([]int)

	for i, colIdx := range cols {
		if g.columnName(colIdx, i+1) == ref {
			return true
		}
	}

	return false
}

// findTableByURL locates the single table in the group whose URL matches
// the resource link (resolved against the base). Returns noParent unless
// exactly one matches.
func (g *Graph) findTableByURL(resource string) int {
	target := g.resolveAgainstBase(resource)

	found := noParent
	count := 0

	for _, table := range g.Tables() {
		if g.TableURL(table) == target || g.TableURL(table) == resource {
			found = table
			count++
		}
	}

	if count != 1 {
		return noParent
	}

	return found
}

// findSchemaByID locates the single table schema whose @id matches.
func (g *Graph) findSchemaByID(ref string) int {
	target := g.resolveAgainstBase(ref)

	found := noParent
	count := 0

	for _, table := range g.Tables() {
		schema := g.SchemaOf(table)
		if schema == noParent {
			continue
		}

		id := g.ID(schema)
		if id != "" && (id == target || id == ref) {
			found = schema
			count++
		}
	}

	if count != 1 {
		return noParent
	}

	return found
}

func (g *Graph) resolveAgainstBase(link string) string {
	if g.ctx == nil {
		return link
	}

	return g.ctx.ResolveURL(link)
}
