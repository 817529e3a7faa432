package metadata_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/csvw/metadata"
)

func mustParse(t *testing.T, doc string, opts ...metadata.Option) *metadata.Graph {
	t.Helper()

	g, err := metadata.ParseBytes([]byte(doc), opts...)
	require.NoError(t, err)

	return g
}

func TestParseDetectsKinds(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		doc  string
		want metadata.Kind
	}{
		"table group by tables": {
			doc:  `{"@context":"http://www.w3.org/ns/csvw","tables":[{"url":"t.csv"}]}`,
			want: metadata.KindTableGroup,
		},
		"table by tableSchema": {
			doc:  `{"url":"t.csv","tableSchema":{"columns":[]}}`,
			want: metadata.KindTable,
		},
		"table by bare url": {
			doc:  `{"url":"t.csv"}`,
			want: metadata.KindTable,
		},
		"table by explicit type": {
			doc:  `{"@type":"Table","url":"t.csv"}`,
			want: metadata.KindTable,
		},
		"schema by columns": {
			doc:  `{"columns":[{"name":"a"}]}`,
			want: metadata.KindSchema,
		},
		"column by titles": {
			doc:  `{"titles":"Age"}`,
			want: metadata.KindColumn,
		},
		"dialect by delimiter": {
			doc:  `{"delimiter":";"}`,
			want: metadata.KindDialect,
		},
		"transformation by targetFormat": {
			doc:  `{"url":"x.xsl","targetFormat":"http://example.org/f","scriptFormat":"http://example.org/s"}`,
			want: metadata.KindTransformation,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			g := mustParse(t, tc.doc)
			assert.Equal(t, tc.want, g.Kind(g.Root()))
		})
	}
}

func TestParseRejectsUnknownType(t *testing.T) {
	t.Parallel()

	_, err := metadata.ParseBytes([]byte(`{"@type":"Frobnicator"}`))
	require.ErrorIs(t, err, metadata.ErrMetadataType)

	_, err = metadata.ParseBytes([]byte(`{"wholly":"unknown"}`))
	require.ErrorIs(t, err, metadata.ErrMetadataType)

	_, err = metadata.ParseBytes([]byte(`[1,2]`))
	require.ErrorIs(t, err, metadata.ErrParse)
}

func TestInvalidValuesRevertWithWarning(t *testing.T) {
	t.Parallel()

	diags := metadata.NewDiagnostics(nil)
	g := mustParse(t,
		`{"tables":[{"url":"t.csv","suppressOutput":"maybe","tableDirection":"up"}],"dialect":{"delimiter":";;"}}`,
		metadata.WithDiagnostics(diags))

	table := g.Tables()[0]

	// suppressOutput reverts to its default false; tableDirection to
	// "default"; the dialect delimiter to ",".
	assert.False(t, g.SuppressOutput(table))
	assert.Equal(t, ",", g.DialectFor(table).Delimiter)
	assert.Len(t, diags.Warnings(), 3)
}

func TestUnknownPropertyDroppedWithWarning(t *testing.T) {
	t.Parallel()

	diags := metadata.NewDiagnostics(nil)
	g := mustParse(t, `{"tables":[{"url":"t.csv","frobnicate":true}]}`,
		metadata.WithDiagnostics(diags))

	require.NotNil(t, g)
	require.Len(t, diags.Warnings(), 1)
	assert.Contains(t, diags.Warnings()[0], "frobnicate")
}

func TestNormalizeResolvesLinks(t *testing.T) {
	t.Parallel()

	g := mustParse(t, `{"tables":[{"url":"t.csv"}]}`,
		metadata.WithBase("http://example.org/meta.json"))
	g.Normalize()

	assert.Equal(t, "http://example.org/t.csv", g.TableURL(g.Tables()[0]))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	doc := `{
		"@context": ["http://www.w3.org/ns/csvw", {"@language": "en"}],
		"tables": [{
			"url": "t.csv",
			"dc:title": "treaties",
			"notes": ["first note"],
			"tableSchema": {"columns": [{"name": "a", "titles": "A", "datatype": "integer"}]}
		}]
	}`

	once := mustParse(t, doc, metadata.WithBase("http://example.org/meta.json")).Normalize()
	twice := mustParse(t, doc, metadata.WithBase("http://example.org/meta.json")).Normalize().Normalize()

	a, err := json.Marshal(once.ATD())
	require.NoError(t, err)

	b, err := json.Marshal(twice.ATD())
	require.NoError(t, err)

	assert.JSONEq(t, string(a), string(b))
}

func TestDatatypeShorthandLifts(t *testing.T) {
	t.Parallel()

	g := mustParse(t, `{"url":"t.csv","tableSchema":{"columns":[{"name":"age","datatype":"integer"}]}}`)

	cols := g.ResolveColumns(g.Tables()[0])
	require.Len(t, cols, 1)
	assert.Equal(t, "integer", cols[0].Datatype.Base)
}

func TestInheritedProperties(t *testing.T) {
	t.Parallel()

	doc := `{
		"tables": [{
			"url": "t.csv",
			"lang": "en",
			"tableSchema": {
				"columns": [
					{"name": "a"},
					{"name": "b", "lang": "de", "required": true}
				]
			}
		}]
	}`

	g := mustParse(t, doc)
	cols := g.ResolveColumns(g.Tables()[0])
	require.Len(t, cols, 2)

	// Unset on the child yields the ancestor value.
	assert.Equal(t, "en", cols[0].Lang)
	// Set on the child overrides.
	assert.Equal(t, "de", cols[1].Lang)
	assert.True(t, cols[1].Required)

	// Unset everywhere yields the documented defaults.
	assert.False(t, cols[0].Required)
	assert.False(t, cols[0].Ordered)
	assert.Equal(t, "", cols[0].Default)
	assert.Equal(t, []string{""}, cols[0].Null)
	assert.Equal(t, "ltr", cols[0].TextDir)
	assert.False(t, cols[0].HasSeparator)
}

func TestColumnNameDefaults(t *testing.T) {
	t.Parallel()

	doc := `{"url":"t.csv","tableSchema":{"columns":[
		{"titles":"Given Name"},
		{}
	]}}`

	g := mustParse(t, doc)
	cols := g.ResolveColumns(g.Tables()[0])
	require.Len(t, cols, 2)

	assert.Equal(t, "Given+Name", cols[0].Name)
	assert.Equal(t, "_col.2", cols[1].Name)
	assert.Equal(t, "col=2", cols[1].Fragment())
}

func TestDialectDefaults(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		doc   string
		check func(*testing.T, metadata.Dialect)
	}{
		"all defaults": {
			doc: `{"url":"t.csv"}`,
			check: func(t *testing.T, d metadata.Dialect) {
				t.Helper()

				assert.Equal(t, ",", d.Delimiter)
				assert.Equal(t, `"`, d.QuoteChar)
				assert.Equal(t, "#", d.CommentPrefix)
				assert.True(t, d.Header)
				assert.Equal(t, 1, d.HeaderRowCount)
				assert.Equal(t, metadata.TrimBoth, d.Trim)
			},
		},
		"headerRowCount follows header": {
			doc: `{"url":"t.csv","dialect":{"header":false}}`,
			check: func(t *testing.T, d metadata.Dialect) {
				t.Helper()

				assert.Equal(t, 0, d.HeaderRowCount)
			},
		},
		"trim follows skipInitialSpace": {
			doc: `{"url":"t.csv","dialect":{"skipInitialSpace":true}}`,
			check: func(t *testing.T, d metadata.Dialect) {
				t.Helper()

				assert.Equal(t, metadata.TrimStart, d.Trim)
			},
		},
		"explicit trim false": {
			doc: `{"url":"t.csv","dialect":{"trim":false}}`,
			check: func(t *testing.T, d metadata.Dialect) {
				t.Helper()

				assert.Equal(t, metadata.TrimNone, d.Trim)
			},
		},
		"group dialect inherited by table": {
			doc: `{"tables":[{"url":"t.csv"}],"dialect":{"delimiter":"\t"}}`,
			check: func(t *testing.T, d metadata.Dialect) {
				t.Helper()

				assert.Equal(t, "\t", d.Delimiter)
			},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			g := mustParse(t, tc.doc)
			tc.check(t, g.DialectFor(g.Tables()[0]))
		})
	}
}

func TestATDOrdering(t *testing.T) {
	t.Parallel()

	g := mustParse(t, `{"@id":"http://example.org/g","tables":[{"url":"t.csv"}]}`)

	atd := g.ATD()
	keys := atd.Keys()
	require.NotEmpty(t, keys)

	assert.Equal(t, "@id", keys[0])
	assert.Equal(t, "@type", keys[1])
	assert.Equal(t, "tables", keys[len(keys)-1])

	data, err := json.Marshal(atd)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"@id":"http://example.org/g","@type":"TableGroup","tables":[{"@type":"Table","url":"t.csv"}]}`,
		string(data))
}
