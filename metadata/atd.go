package metadata

import (
	"bytes"
	"encoding/json"
	"sort"
)

// OrderedMap is a JSON object with stable key order, used for annotated
// table descriptors where @id and @type lead and collections trail.
type OrderedMap struct {
	keys   []string
	values map[string]any
}

// NewOrderedMap creates an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: map[string]any{}}
}

// Set stores a key, appending to the order on first assignment. Nil values,
// empty strings, empty arrays, and empty nested maps are dropped.
func (m *OrderedMap) Set(key string, value any) {
	if value == nil {
		return
	}

	switch v := value.(type) {
	case []any:
		if len(v) == 0 {
			return
		}
	case string:
		if v == "" {
			return
		}
	case *OrderedMap:
		if v == nil || v.Len() == 0 {
			return
		}
	}

	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}

	m.values[key] = value
}

// Get returns the value for key.
func (m *OrderedMap) Get(key string) (any, bool) {
	v, ok := m.values[key]

	return v, ok
}

// Len returns the number of keys.
func (m *OrderedMap) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []string {
	return m.keys
}

// MarshalJSON writes the object with keys in insertion order.
func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, key := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}

		buf.Write(k)
		buf.WriteByte(':')

		v, err := json.Marshal(m.values[key])
		if err != nil {
			return nil, err
		}

		buf.Write(v)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// ATD produces the annotated-table-descriptor form of the whole document:
// @id and @type first, own properties next, nested collections last. Nulls
// and empty arrays are dropped.
func (g *Graph) ATD() *OrderedMap {
	return g.nodeATD(g.root)
}

// TableATD produces the descriptor for a single table node.
func (g *Graph) TableATD(table int) *OrderedMap {
	return g.nodeATD(table)
}

func (g *Graph) nodeATD(idx int) *OrderedMap {
	node := g.node(idx)
	out := NewOrderedMap()

	out.Set("@id", node.slots["@id"])
	out.Set("@type", node.kind.String())

	scalarKeys := make([]string, 0, len(node.slots))
	collectionKeys := make([]string, 0, 4)

	for key := range node.slots {
		if key == "@id" || key == "@type" || key == "@context" {
			continue
		}

		spec, known := propFor(node.kind, key)
		if known && (spec.category == catArray || spec.category == catObject) {
			collectionKeys = append(collectionKeys, key)

			continue
		}

		scalarKeys = append(scalarKeys, key)
	}

	sort.Strings(scalarKeys)
	sort.Strings(collectionKeys)

	for _, key := range scalarKeys {
		out.Set(key, node.slots[key])
	}

	for _, key := range collectionKeys {
		switch v := node.slots[key].(type) {
		case int:
			out.Set(key, g.nodeATD(v))
		case []int:
			items := make([]any, 0, len(v))
			for _, child := range v {
				items = append(items, g.nodeATD(child))
			}

			out.Set(key, items)
		default:
			// Object property left as a URL string.
			out.Set(key, v)
		}
	}

	return out
}
