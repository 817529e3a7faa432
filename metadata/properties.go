package metadata

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/yosida95/uritemplate/v3"

	"go.jacobcolvin.com/csvw/jsonld"
	"go.jacobcolvin.com/csvw/vocab"
)

// category classifies a property for validation and storage.
type category int

const (
	catLink category = iota
	catAtomic
	catArray
	catObject
	catNaturalLanguage
	catColumnReference
	catURITemplate
)

// atom refines catAtomic with a per-property value rule.
type atom int

const (
	atomAny atom = iota
	atomBool
	atomString
	atomNonNegInt
	atomChar
	atomLanguage
	atomDirection
	atomTrim
	atomNullList
	atomSeparator
	atomSource
	atomDatatypeBase
	atomBound
	atomTerminators
	atomForeignKeys
	atomNotes
	atomColumnName
	atomID
	atomType
)

// propSpec is one entry of a node kind's static property schema.
type propSpec struct {
	category category
	atom     atom
	def      any
	child    Kind
}

// inheritedProps are resolvable on any ancestor, child overriding parent.
var inheritedProps = map[string]propSpec{
	"aboutUrl":      {category: catURITemplate},
	"propertyUrl":   {category: catURITemplate},
	"valueUrl":      {category: catURITemplate},
	"datatype":      {category: catObject, child: KindDatatype},
	"default":       {category: catAtomic, atom: atomString, def: ""},
	"lang":          {category: catAtomic, atom: atomLanguage, def: "und"},
	"null":          {category: catAtomic, atom: atomNullList, def: []string{""}},
	"ordered":       {category: catAtomic, atom: atomBool, def: false},
	"required":      {category: catAtomic, atom: atomBool, def: false},
	"separator":     {category: catAtomic, atom: atomSeparator},
	"textDirection": {category: catAtomic, atom: atomDirection, def: "ltr"},
}

var commonProps = map[string]propSpec{
	"@id":   {category: catAtomic, atom: atomID},
	"@type": {category: catAtomic, atom: atomType},
}

var tableGroupProps = map[string]propSpec{
	"tables":          {category: catArray, child: KindTable},
	"dialect":         {category: catObject, child: KindDialect},
	"tableSchema":     {category: catObject, child: KindSchema},
	"transformations": {category: catArray, child: KindTransformation},
	"tableDirection":  {category: catAtomic, atom: atomDirection, def: "default"},
	"notes":           {category: catAtomic, atom: atomNotes},
}

var tableProps = map[string]propSpec{
	"url":             {category: catLink},
	"dialect":         {category: catObject, child: KindDialect},
	"tableSchema":     {category: catObject, child: KindSchema},
	"transformations": {category: catArray, child: KindTransformation},
	"tableDirection":  {category: catAtomic, atom: atomDirection, def: "default"},
	"suppressOutput":  {category: catAtomic, atom: atomBool, def: false},
	"notes":           {category: catAtomic, atom: atomNotes},
}

var schemaProps = map[string]propSpec{
	"columns":     {category: catArray, child: KindColumn},
	"primaryKey":  {category: catColumnReference},
	"rowTitles":   {category: catColumnReference},
	"foreignKeys": {category: catAtomic, atom: atomForeignKeys},
}

var columnProps = map[string]propSpec{
	"name":           {category: catAtomic, atom: atomColumnName},
	"titles":         {category: catNaturalLanguage},
	"virtual":        {category: catAtomic, atom: atomBool, def: false},
	"suppressOutput": {category: catAtomic, atom: atomBool, def: false},
}

var dialectProps = map[string]propSpec{
	"commentPrefix":    {category: catAtomic, atom: atomChar, def: "#"},
	"delimiter":        {category: catAtomic, atom: atomChar, def: ","},
	"doubleQuote":      {category: catAtomic, atom: atomBool, def: true},
	"encoding":         {category: catAtomic, atom: atomString, def: "utf-8"},
	"header":           {category: catAtomic, atom: atomBool, def: true},
	"headerRowCount":   {category: catAtomic, atom: atomNonNegInt},
	"lineTerminators":  {category: catAtomic, atom: atomTerminators},
	"quoteChar":        {category: catAtomic, atom: atomChar, def: `"`},
	"skipBlankRows":    {category: catAtomic, atom: atomBool, def: false},
	"skipColumns":      {category: catAtomic, atom: atomNonNegInt, def: 0},
	"skipInitialSpace": {category: catAtomic, atom: atomBool, def: false},
	"skipRows":         {category: catAtomic, atom: atomNonNegInt, def: 0},
	"trim":             {category: catAtomic, atom: atomTrim},
}

var transformationProps = map[string]propSpec{
	"url":          {category: catLink},
	"targetFormat": {category: catLink},
	"scriptFormat": {category: catLink},
	"titles":       {category: catNaturalLanguage},
	"source":       {category: catAtomic, atom: atomSource},
}

var datatypeProps = map[string]propSpec{
	"base":         {category: catAtomic, atom: atomDatatypeBase, def: "string"},
	"format":       {category: catAtomic, atom: atomAny},
	"length":       {category: catAtomic, atom: atomNonNegInt},
	"minLength":    {category: catAtomic, atom: atomNonNegInt},
	"maxLength":    {category: catAtomic, atom: atomNonNegInt},
	"minimum":      {category: catAtomic, atom: atomBound},
	"maximum":      {category: catAtomic, atom: atomBound},
	"minInclusive": {category: catAtomic, atom: atomBound},
	"maxInclusive": {category: catAtomic, atom: atomBound},
	"minExclusive": {category: catAtomic, atom: atomBound},
	"maxExclusive": {category: catAtomic, atom: atomBound},
}

var kindProps = map[Kind]map[string]propSpec{
	KindTableGroup:     tableGroupProps,
	KindTable:          tableProps,
	KindSchema:         schemaProps,
	KindColumn:         columnProps,
	KindDialect:        dialectProps,
	KindTransformation: transformationProps,
	KindDatatype:       datatypeProps,
}

// inheritable kinds carry the inherited-property set in addition to their
// own schema.
var inheritable = map[Kind]bool{
	KindTableGroup: true,
	KindTable:      true,
	KindSchema:     true,
	KindColumn:     true,
}

// columnNameRx is the CSVW restriction on column names.
var columnNameRx = regexp.MustCompile(`^(_col|[A-Za-z0-9]|%[0-9A-Fa-f]{2})([A-Za-z0-9._]|%[0-9A-Fa-f]{2})*$`)

// propFor resolves the property spec for key on a node of the given kind.
func propFor(kind Kind, key string) (propSpec, bool) {
	if spec, ok := commonProps[key]; ok {
		return spec, true
	}

	if spec, ok := kindProps[kind][key]; ok {
		return spec, true
	}

	if inheritable[kind] {
		if spec, ok := inheritedProps[key]; ok {
			return spec, true
		}
	}

	return propSpec{}, false
}

// setProperty validates and stores one property on the node at idx.
// Invalid values are downgraded to a warning; the slot reverts to the
// documented default if one exists, else is dropped.
func (g *Graph) setProperty(idx int, key string, value any) error {
	node := g.node(idx)

	spec, known := propFor(node.kind, key)
	if !known {
		if strings.Contains(key, ":") {
			// JSON-LD annotation; kept raw and normalized later.
			node.slots[key] = value

			return nil
		}

		g.diags.Warnf("%s: unknown property %q dropped", node.kind, key)

		return nil
	}

	switch spec.category {
	case catLink:
		s, ok := value.(string)
		if !ok || strings.HasPrefix(s, "_:") {
			g.revert(idx, key, spec, fmt.Sprintf("invalid link %v", value))

			return nil
		}

		node.slots[key] = s

	case catAtomic:
		canonical, ok := g.validateAtom(spec.atom, value)
		if !ok {
			g.revert(idx, key, spec, fmt.Sprintf("invalid value %v", value))

			return nil
		}

		node.slots[key] = canonical

	case catArray:
		items, ok := value.([]any)
		if !ok {
			g.revert(idx, key, spec, fmt.Sprintf("invalid value %v, want array", value))

			return nil
		}

		idxs := make([]int, 0, len(items))

		for i, item := range items {
			obj, isObj := item.(map[string]any)
			if !isObj {
				g.diags.Warnf("%s.%s[%d]: not an object, dropped", node.kind, key, i)

				continue
			}

			child, err := g.addNode(obj, idx, spec.child)
			if err != nil {
				return err
			}

			idxs = append(idxs, child)
		}

		node.slots[key] = idxs

	case catObject:
		// Datatype shorthand lifts to an object with the string as base.
		if key == "datatype" {
			if s, ok := value.(string); ok {
				value = map[string]any{"base": s}
			}
		}

		child, ok := g.objectChild(idx, key, value, spec.child)
		if !ok {
			return nil
		}

		node.slots[key] = child

	case catNaturalLanguage:
		node.slots[key] = g.naturalLanguage(value)

	case catColumnReference:
		refs, ok := columnReference(value)
		if !ok {
			g.revert(idx, key, spec, fmt.Sprintf("invalid column reference %v", value))

			return nil
		}

		node.slots[key] = refs

	case catURITemplate:
		s, ok := value.(string)
		if !ok {
			g.revert(idx, key, spec, fmt.Sprintf("invalid uri template %v", value))

			return nil
		}

		_, err := uritemplate.New(s)
		if err != nil {
			g.revert(idx, key, spec, fmt.Sprintf("invalid uri template %q: %v", s, err))

			return nil
		}

		node.slots[key] = s
	}

	return nil
}

// revert records a warning and restores the documented default, dropping
// the slot when none exists.
func (g *Graph) revert(idx int, key string, spec propSpec, msg string) {
	node := g.node(idx)
	g.diags.Warnf("%s.%s: %s", node.kind, key, msg)

	if spec.def != nil {
		node.slots[key] = spec.def
	} else {
		delete(node.slots, key)
	}
}

// objectChild parses an object-category value: either an inline object or a
// string URL to a sub-document retrieved via the loader. The returned value
// is an arena index, or the original string when retrieval is unavailable.
func (g *Graph) objectChild(idx int, key string, value any, child Kind) (any, bool) {
	switch v := value.(type) {
	case string:
		if g.loader == nil {
			return v, true
		}

		obj, err := g.loadObject(v)
		if err != nil {
			g.diags.Warnf("%s.%s: loading %q: %v", g.node(idx).kind, key, v, err)

			return v, true
		}

		node, err := g.addNode(obj, idx, child)
		if err != nil {
			g.diags.Warnf("%s.%s: %v", g.node(idx).kind, key, err)

			return nil, false
		}

		return node, true

	case map[string]any:
		node, err := g.addNode(v, idx, child)
		if err != nil {
			g.diags.Warnf("%s.%s: %v", g.node(idx).kind, key, err)

			return nil, false
		}

		return node, true
	}

	g.diags.Warnf("%s.%s: invalid value %v", g.node(idx).kind, key, value)

	return nil, false
}

// naturalLanguage canonicalizes a natural-language value to language-tag →
// values map form. Strings and arrays land under the context default
// language; invalid language tags fall back to "und".
func (g *Graph) naturalLanguage(value any) map[string][]string {
	out := map[string][]string{}

	lang := "und"
	if g.ctx != nil {
		lang = g.ctx.Language()
	}

	add := func(tag string, v any) {
		if !jsonld.ValidLanguage(tag) {
			tag = "und"
		}

		switch s := v.(type) {
		case string:
			out[tag] = append(out[tag], s)
		case []any:
			for _, item := range s {
				if str, ok := item.(string); ok {
					out[tag] = append(out[tag], str)
				} else {
					g.diags.Warnf("titles[%s]: non-string value %v dropped", tag, item)
				}
			}
		default:
			g.diags.Warnf("titles[%s]: invalid value %v dropped", tag, v)
		}
	}

	switch v := value.(type) {
	case string, []any:
		add(lang, v)
	case map[string]any:
		for tag, vals := range v {
			add(tag, vals)
		}
	default:
		g.diags.Warnf("invalid natural-language value %v", value)
	}

	return out
}

// columnReference canonicalizes a column reference to a string slice.
func columnReference(value any) ([]string, bool) {
	switch v := value.(type) {
	case string:
		return []string{v}, true
	case []any:
		refs := make([]string, 0, len(v))

		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}

			refs = append(refs, s)
		}

		if len(refs) == 0 {
			return nil, false
		}

		return refs, true
	}

	return nil, false
}

// validateAtom canonicalizes an atomic value per its rule.
func (g *Graph) validateAtom(a atom, value any) (any, bool) {
	switch a {
	case atomAny:
		return value, true

	case atomBool:
		switch v := value.(type) {
		case bool:
			return v, true
		case string:
			// Normalization parses atomic booleans from strings.
			switch v {
			case "true", "1":
				return true, true
			case "false", "0":
				return false, true
			}
		}

	case atomString:
		if s, ok := value.(string); ok {
			return s, true
		}

	case atomNonNegInt:
		n, ok := asInt(value)
		if ok && n >= 0 {
			return n, true
		}

	case atomChar:
		if s, ok := value.(string); ok && len([]rune(s)) == 1 {
			return s, true
		}

	case atomLanguage:
		if s, ok := value.(string); ok && jsonld.ValidLanguage(s) {
			return s, true
		}

	case atomDirection:
		if s, ok := value.(string); ok {
			switch s {
			case "rtl", "ltr", "default":
				return s, true
			}
		}

	case atomTrim:
		switch v := value.(type) {
		case bool:
			if v {
				return "true", true
			}

			return "false", true
		case string:
			switch v {
			case "true", "false", "start", "end":
				return v, true
			}
		}

	case atomNullList:
		switch v := value.(type) {
		case string:
			return []string{v}, true
		case []any:
			nulls := make([]string, 0, len(v))

			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, false
				}

				nulls = append(nulls, s)
			}

			return nulls, true
		}

	case atomSeparator:
		if s, ok := value.(string); ok && s != "" {
			return s, true
		}

	case atomSource:
		if s, ok := value.(string); ok {
			switch s {
			case "json", "rdf":
				return s, true
			}
		}

	case atomDatatypeBase:
		if s, ok := value.(string); ok {
			if vocab.IsBuiltinDatatype(s) || vocab.IsUnsupportedXSD(s) || jsonld.IsAbsolute(s) {
				return s, true
			}
		}

	case atomBound:
		switch v := value.(type) {
		case string:
			return v, true
		case float64, int, int64:
			return value, true
		}

	case atomTerminators:
		switch v := value.(type) {
		case string:
			return []string{v}, true
		case []any:
			terms := make([]string, 0, len(v))

			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, false
				}

				terms = append(terms, s)
			}

			if len(terms) > 0 {
				return terms, true
			}
		}

	case atomForeignKeys:
		items, ok := value.([]any)
		if !ok {
			return nil, false
		}

		keys := make([]map[string]any, 0, len(items))

		for _, item := range items {
			obj, isObj := item.(map[string]any)
			if !isObj {
				return nil, false
			}

			// Tolerated input alias for columnReference.
			if cols, has := obj["columns"]; has {
				if _, canonical := obj["columnReference"]; !canonical {
					obj["columnReference"] = cols
				}

				delete(obj, "columns")
			}

			keys = append(keys, obj)
		}

		return keys, true

	case atomNotes:
		if items, ok := value.([]any); ok {
			return items, true
		}

	case atomColumnName:
		if s, ok := value.(string); ok && columnNameRx.MatchString(s) {
			return s, true
		}

	case atomID:
		// Blank-node @id values are kept so validation can flag them.
		if s, ok := value.(string); ok {
			return s, true
		}

	case atomType:
		if s, ok := value.(string); ok {
			return s, true
		}
	}

	return nil, false
}

// asInt coerces JSON numbers (and numeric strings) to int.
func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	case string:
		var n int

		_, err := fmt.Sscanf(v, "%d", &n)
		if err == nil {
			return n, true
		}
	}

	return 0, false
}
