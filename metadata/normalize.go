package metadata

import (
	"strings"

	"go.jacobcolvin.com/csvw/jsonld"
	"go.jacobcolvin.com/csvw/vocab"
)

// Normalize canonicalizes every slot to its storage form: links become
// absolute URL strings, the @context collapses to the CSVW namespace, and
// JSON-LD annotation values (any key containing ":", plus notes) are
// normalized recursively. Normalize is idempotent and returns the receiver.
func (g *Graph) Normalize() *Graph {
	if root := g.node(g.root); root.slots["@context"] != nil {
		root.slots["@context"] = vocab.ContextIRI
	}

	for idx := range g.nodes {
		g.normalizeNode(idx)
	}

	return g
}

func (g *Graph) normalizeNode(idx int) {
	node := g.node(idx)

	for key, value := range node.slots {
		spec, known := propFor(node.kind, key)

		switch {
		case key == "@id":
			if s, ok := value.(string); ok && g.ctx != nil {
				node.slots[key] = g.ctx.ResolveURL(s)
			}

		case key == "notes":
			if items, ok := value.([]any); ok {
				for i, item := range items {
					items[i] = g.normalizeJSONLD(item)
				}
			}

		case known && spec.category == catLink:
			if s, ok := value.(string); ok && g.ctx != nil {
				node.slots[key] = g.ctx.ResolveURL(s)
			}

		case !known && strings.Contains(key, ":"):
			node.slots[key] = g.normalizeJSONLD(value)
		}
	}
}

// normalizeJSONLD normalizes a JSON-LD annotation value: strings gain a
// language wrapper when the context carries a default language, @id values
// resolve against the base, and @type values expand against the vocabulary.
// Value objects mixing @type with @language, or carrying an invalid
// language, lose the offending member with a warning.
func (g *Graph) normalizeJSONLD(value any) any {
	switch v := value.(type) {
	case string:
		if g.ctx != nil && g.ctx.Language() != "und" {
			return map[string]any{"@value": v, "@language": g.ctx.Language()}
		}

		return v

	case []any:
		for i, item := range v {
			v[i] = g.normalizeJSONLD(item)
		}

		return v

	case map[string]any:
		if _, isValue := v["@value"]; isValue {
			return g.normalizeValueObject(v)
		}

		for key, item := range v {
			switch key {
			case "@id":
				if s, ok := item.(string); ok && g.ctx != nil {
					v[key] = g.ctx.ResolveURL(s)
				}
			case "@type":
				v[key] = g.expandTypes(item)
			default:
				v[key] = g.normalizeJSONLD(item)
			}
		}

		return v
	}

	return value
}

func (g *Graph) normalizeValueObject(v map[string]any) map[string]any {
	_, hasType := v["@type"]
	lang, hasLang := v["@language"]

	if hasType && hasLang {
		g.diags.Warnf("value object mixes @type and @language; @language dropped")
		delete(v, "@language")

		return v
	}

	if hasLang {
		s, ok := lang.(string)
		if !ok || !jsonld.ValidLanguage(s) {
			g.diags.Warnf("value object has invalid @language %v; dropped", lang)
			delete(v, "@language")
		}
	}

	return v
}

func (g *Graph) expandTypes(value any) any {
	expand := func(item any) any {
		s, ok := item.(string)
		if !ok || g.ctx == nil {
			return item
		}

		iri, err := g.ctx.ExpandIRI(s, true)
		if err != nil {
			return item
		}

		return iri
	}

	if items, ok := value.([]any); ok {
		for i, item := range items {
			items[i] = expand(item)
		}

		return items
	}

	return expand(value)
}
