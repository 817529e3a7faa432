package metadata

import (
	"fmt"
	"sort"
	"strings"
)

// Merge combines the receiver with other, where other arrived later (for
// example embedded metadata merged on top of user metadata). The receiver
// is modified in place: scalars on the receiver win, arrays merge by their
// documented keys, and natural-language maps concatenate per language.
func (g *Graph) Merge(other *Graph) error {
	a := g.node(g.root)
	b := other.node(other.root)

	switch {
	case a.kind == b.kind:
		return g.mergeNodes(g.root, other, other.root)

	case a.kind == KindTableGroup && b.kind == KindTable:
		url := other.TableURL(other.root)
		for _, table := range g.Tables() {
			if g.TableURL(table) == url {
				return g.mergeNodes(table, other, other.root)
			}
		}

		tables, _ := a.slots["tables"].([]int)
		a.slots["tables"] = append(tables, g.copyNode(other, other.root, g.root))

		return nil
	}

	return fmt.Errorf("%w: cannot merge %s into %s", ErrMerge, b.kind, a.kind)
}

func (g *Graph) mergeNodes(aIdx int, other *Graph, bIdx int) error {
	a := g.node(aIdx)
	b := other.node(bIdx)

	if a.kind != b.kind {
		return fmt.Errorf("%w: cannot merge %s into %s", ErrMerge, b.kind, a.kind)
	}

	keys := make([]string, 0, len(b.slots))
	for key := range b.slots {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		if key == "@context" {
			continue
		}

		err := g.mergeSlot(aIdx, other, bIdx, key)
		if err != nil {
			return err
		}
	}

	return nil
}

func (g *Graph) mergeSlot(aIdx int, other *Graph, bIdx int, key string) error {
	a := g.node(aIdx)
	value := other.node(bIdx).slots[key]

	spec, known := propFor(a.kind, key)
	if !known {
		// JSON-LD annotations: first definition wins.
		if _, set := a.slots[key]; !set {
			a.slots[key] = deepCopyValue(value)
		}

		return nil
	}

	switch {
	case key == "notes":
		aNotes, _ := a.slots["notes"].([]any)
		bNotes, _ := value.([]any)
		a.slots["notes"] = append(aNotes, deepCopyValue(bNotes).([]any)...)

		return nil

	case spec.category == catArray:
		return g.mergeArray(aIdx, other, bIdx, key)

	case spec.category == catObject:
		return g.mergeObject(aIdx, other, bIdx, key)

	case spec.category == catNaturalLanguage:
		bMap, _ := value.(map[string][]string)
		aMap, _ := a.slots[key].(map[string][]string)
		a.slots[key] = mergeNaturalLanguage(aMap, bMap)

		return nil
	}

	// Scalars, links, templates, column references: A wins unless absent.
	if _, set := a.slots[key]; !set {
		a.slots[key] = deepCopyValue(value)
	}

	return nil
}

func (g *Graph) mergeArray(aIdx int, other *Graph, bIdx int, key string) error {
	a := g.node(aIdx)
	aItems, _ := a.slots[key].([]int)
	bItems, _ := other.node(bIdx).slots[key].([]int)

	switch key {
	case "tables":
		for _, bTable := range bItems {
			url := other.TableURL(bTable)
			merged := false

			for _, aTable := range aItems {
				if g.TableURL(aTable) == url {
					err := g.mergeNodes(aTable, other, bTable)
					if err != nil {
						return err
					}

					merged = true

					break
				}
			}

			if !merged {
				aItems = append(aItems, g.copyNode(other, bTable, aIdx))
			}
		}

		a.slots[key] = aItems

		return nil

	case "transformations":
		formatKey := func(src *Graph, idx int) string {
			target, _ := src.node(idx).slots["targetFormat"].(string)
			script, _ := src.node(idx).slots["scriptFormat"].(string)

			return target + "\x00" + script
		}

		for _, bT := range bItems {
			merged := false

			for _, aT := range aItems {
				if formatKey(g, aT) == formatKey(other, bT) {
					err := g.mergeNodes(aT, other, bT)
					if err != nil {
						return err
					}

					merged = true

					break
				}
			}

			if !merged {
				aItems = append(aItems, g.copyNode(other, bT, aIdx))
			}
		}

		a.slots[key] = aItems

		return nil

	case "columns":
		return g.mergeColumns(aIdx, other, bIdx, aItems, bItems)
	}

	// Other arrays concatenate.
	for _, bItem := range bItems {
		aItems = append(aItems, g.copyNode(other, bItem, aIdx))
	}

	a.slots[key] = aItems

	return nil
}

// mergeObject merges a single-child object slot (datatype, dialect,
// tableSchema): a side that still holds a URL string wins (the receiver's
// when both do); if only the other side has the slot, its value or subtree
// is copied in; if both sides hold nodes, their subtrees are merged
// recursively.
func (g *Graph) mergeObject(aIdx int, other *Graph, bIdx int, key string) error {
	a := g.node(aIdx)

	bValue, hasB := other.node(bIdx).slots[key]
	if !hasB {
		return nil
	}

	aValue, hasA := a.slots[key]
	if _, aIsString := aValue.(string); aIsString {
		return nil
	}

	bChild, bIsNode := bValue.(int)
	if !bIsNode {
		a.slots[key] = deepCopyValue(bValue)

		return nil
	}

	aChild, aIsNode := aValue.(int)
	if !hasA || !aIsNode {
		a.slots[key] = g.copyNode(other, bChild, aIdx)

		return nil
	}

	return g.mergeNodes(aChild, other, bChild)
}

// mergeColumns merges column arrays per index. Columns align when their
// names match or their title sets intersect; a mismatched index where
// either side is virtual appends instead, and any other mismatch fails.
func (g *Graph) mergeColumns(aIdx int, other *Graph, bIdx int, aItems, bItems []int) error {
	a := g.node(aIdx)

	for i, bCol := range bItems {
		if i >= len(aItems) {
			aItems = append(aItems, g.copyNode(other, bCol, aIdx))

			continue
		}

		aCol := aItems[i]

		if columnsAlign(g, aCol, other, bCol) {
			err := g.mergeNodes(aCol, other, bCol)
			if err != nil {
				return err
			}

			continue
		}

		aVirtual, _ := g.node(aCol).slots["virtual"].(bool)
		bVirtual, _ := other.node(bCol).slots["virtual"].(bool)

		if aVirtual || bVirtual {
			aItems = append(aItems, g.copyNode(other, bCol, aIdx))

			continue
		}

		return fmt.Errorf("%w: columns at index %d cannot be aligned", ErrMerge, i)
	}

	a.slots["columns"] = aItems

	return nil
}

// columnsAlign reports whether two columns refer to the same source column:
// equal names, intersecting titles, or one side lacking both.
func columnsAlign(ga *Graph, aCol int, gb *Graph, bCol int) bool {
	aName, aHasName := ga.node(aCol).slots["name"].(string)
	bName, bHasName := gb.node(bCol).slots["name"].(string)

	if aHasName && bHasName {
		return aName == bName
	}

	aTitles, aHasTitles := ga.node(aCol).slots["titles"].(map[string][]string)
	bTitles, bHasTitles := gb.node(bCol).slots["titles"].(map[string][]string)

	if aHasTitles && bHasTitles {
		if titlesIntersect(aTitles, bTitles) {
			return true
		}

		// A name on one side may match a title on the other.
	}

	if aHasName && bHasTitles {
		return nameMatchesTitles(aName, bTitles)
	}

	if bHasName && aHasTitles {
		return nameMatchesTitles(bName, aTitles)
	}

	if !aHasName && !aHasTitles {
		return true
	}

	if !bHasName && !bHasTitles {
		return true
	}

	return false
}

// titlesIntersect reports a case-insensitive intersection between two
// language maps, treating "und" as matching any language.
func titlesIntersect(a, b map[string][]string) bool {
	for aLang, aVals := range a {
		for bLang, bVals := range b {
			if !languagesComparable(aLang, bLang) {
				continue
			}

			for _, av := range aVals {
				for _, bv := range bVals {
					if strings.EqualFold(av, bv) {
						return true
					}
				}
			}
		}
	}

	return false
}

func languagesComparable(a, b string) bool {
	return a == "und" || b == "und" || strings.EqualFold(a, b)
}

func nameMatchesTitles(name string, titles map[string][]string) bool {
	for _, vals := range titles {
		for _, v := range vals {
			if strings.EqualFold(name, v) {
				return true
			}
		}
	}

	return false
}

// mergeNaturalLanguage concatenates per-language values, skipping values
// already present, then drops "und" values that also appear under a
// concrete language.
func mergeNaturalLanguage(a, b map[string][]string) map[string][]string {
	if a == nil {
		a = map[string][]string{}
	}

	for lang, bVals := range b {
		have := map[string]bool{}
		for _, v := range a[lang] {
			have[v] = true
		}

		for _, v := range bVals {
			if !have[v] {
				a[lang] = append(a[lang], v)
				have[v] = true
			}
		}
	}

	// und values duplicated under any other language are dropped.
	if undVals, ok := a["und"]; ok {
		kept := undVals[:0]

		for _, v := range undVals {
			duplicated := false

			for lang, vals := range a {
				if lang == "und" {
					continue
				}

				for _, lv := range vals {
					if lv == v {
						duplicated = true

						break
					}
				}
			}

			if !duplicated {
				kept = append(kept, v)
			}
		}

		if len(kept) == 0 {
			delete(a, "und")
		} else {
			a["und"] = kept
		}
	}

	return a
}

// copyNode deep-copies a node (and its subtree) from another graph's arena
// into this one, returning the new index.
func (g *Graph) copyNode(other *Graph, srcIdx, parent int) int {
	src := other.node(srcIdx)

	idx := len(g.nodes)
	g.nodes = append(g.nodes, &Node{
		kind:   src.kind,
		parent: parent,
		slots:  map[string]any{},
	})

	for key, value := range src.slots {
		spec, known := propFor(src.kind, key)

		switch {
		case known && spec.category == catArray:
			if children, ok := value.([]int); ok {
				copied := make([]int, 0, len(children))
				for _, child := range children {
					copied = append(copied, g.copyNode(other, child, idx))
				}

				g.nodes[idx].slots[key] = copied
			}

		case known && spec.category == catObject:
			if child, ok := value.(int); ok {
				g.nodes[idx].slots[key] = g.copyNode(other, child, idx)
			} else {
				g.nodes[idx].slots[key] = deepCopyValue(value)
			}

		default:
			g.nodes[idx].slots[key] = deepCopyValue(value)
		}
	}

	return idx
}

// deepCopyValue copies plain JSON-shaped values so merged graphs share no
// mutable state.
func deepCopyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = deepCopyValue(item)
		}

		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = deepCopyValue(item)
		}

		return out
	case map[string][]string:
		out := make(map[string][]string, len(v))
		for key, items := range v {
			out[key] = append([]string(nil), items...)
		}

		return out
	case []string:
		return append([]string(nil), v...)
	case []map[string]any:
		out := make([]map[string]any, len(v))
		for i, item := range v {
			out[i] = deepCopyValue(item).(map[string]any)
		}

		return out
	}

	return value
}

// VerifyCompatible checks embedded metadata extracted from a CSV header
// against the receiver's user-supplied metadata: table URLs must match, the
// receiver's non-virtual column count must equal the embedded column count
// when both sides declare columns, and each column pair must share a name or
// title. A side without columns is compatible with any column count.
func (g *Graph) VerifyCompatible(embedded *Graph) error {
	for _, bTable := range embedded.Tables() {
		url := embedded.TableURL(bTable)

		aTable := noParent

		for _, t := range g.Tables() {
			if g.TableURL(t) == url {
				aTable = t

				break
			}
		}

		if aTable == noParent {
			return fmt.Errorf("%w: no table with url %q", ErrMerge, url)
		}

		var nonVirtual []int

		for _, colIdx := range g.ColumnsOf(aTable) {
			if virtual, _ := g.node(colIdx).slots["virtual"].(bool); !virtual {
				nonVirtual = append(nonVirtual, colIdx)
			}
		}

		bCols := embedded.ColumnsOf(bTable)

		if len(nonVirtual) > 0 && len(bCols) > 0 && len(nonVirtual) != len(bCols) {
			return fmt.Errorf("%w: table %q has %d columns, embedded metadata has %d",
				ErrMerge, url, len(nonVirtual), len(bCols))
		}

		for i := range min(len(nonVirtual), len(bCols)) {
			if !columnsAlign(g, nonVirtual[i], embedded, bCols[i]) {
				return fmt.Errorf("%w: table %q column %d does not match embedded titles",
					ErrMerge, url, i+1)
			}
		}
	}

	return nil
}
