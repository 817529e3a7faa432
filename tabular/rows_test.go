package tabular_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/csvw/csvtest"
	"go.jacobcolvin.com/csvw/metadata"
	"go.jacobcolvin.com/csvw/tabular"
)

// collector gathers the events of one iteration pass.
type collector struct {
	rows     []*tabular.Row
	comments []string
}

func (c *collector) sink() tabular.SinkFuncs {
	return tabular.SinkFuncs{
		OnRow: func(r *tabular.Row) error {
			c.rows = append(c.rows, r)

			return nil
		},
		OnComment: func(text string) error {
			c.comments = append(c.comments, text)

			return nil
		},
	}
}

func parseGroup(t *testing.T, doc string) *metadata.Graph {
	t.Helper()

	g, err := metadata.ParseBytes([]byte(doc))
	require.NoError(t, err)

	return g
}

func iterate(t *testing.T, doc, input string) *collector {
	t.Helper()

	g := parseGroup(t, doc)

	c := &collector{}
	err := tabular.EachRow(strings.NewReader(input), g, g.Tables()[0], c.sink())
	require.NoError(t, err)

	return c
}

const minimalGroup = `{"@context":"http://www.w3.org/ns/csvw","tables":[{"url":"t.csv"}]}`

func TestEachRowMinimalGroup(t *testing.T) {
	t.Parallel()

	c := iterate(t, minimalGroup, csvtest.JoinLF(
		"name,age",
		"Alice,30",
		"Bob,25",
	))

	require.Len(t, c.rows, 2)

	alice := c.rows[0]
	assert.Equal(t, 1, alice.Number)
	assert.Equal(t, 2, alice.SourceNumber)
	require.Len(t, alice.Cells, 2)
	assert.Equal(t, "Alice", alice.Cells[0].StringValue)
	assert.Equal(t, "Alice", alice.Cells[0].Value)
	assert.Equal(t, "30", alice.Cells[1].Value)

	bob := c.rows[1]
	assert.Equal(t, 2, bob.Number)
	assert.Equal(t, 3, bob.SourceNumber)
	assert.Equal(t, "Bob", bob.Cells[0].Value)
}

func TestEachRowTypedColumn(t *testing.T) {
	t.Parallel()

	doc := `{"tables":[{"url":"t.csv","tableSchema":{"columns":[
		{"name":"name"},
		{"name":"age","datatype":"integer"}
	]}}]}`

	c := iterate(t, doc, csvtest.JoinLF("name,age", "Alice,30"))

	require.Len(t, c.rows, 1)
	assert.Equal(t, int64(30), c.rows[0].Cells[1].Value)
	assert.Empty(t, c.rows[0].Cells[1].Errors)
}

func TestEachRowCommentRows(t *testing.T) {
	t.Parallel()

	doc := `{"tables":[{"url":"t.csv","dialect":{"commentPrefix":"#"}}]}`

	c := iterate(t, doc, csvtest.JoinLF("#hello", "name", "Alice"))

	assert.Equal(t, []string{"hello"}, c.comments)
	require.Len(t, c.rows, 1)
	assert.Equal(t, 1, c.rows[0].Number)
	assert.Equal(t, 3, c.rows[0].SourceNumber)
	assert.Equal(t, "Alice", c.rows[0].Cells[0].Value)
}

func TestEachRowSkipRowsCollectComments(t *testing.T) {
	t.Parallel()

	doc := `{"tables":[{"url":"t.csv","dialect":{"skipRows":2,"header":false}}]}`

	c := iterate(t, doc, csvtest.JoinLF("# preamble", "junk", "Alice"))

	assert.Equal(t, []string{"preamble"}, c.comments)
	require.Len(t, c.rows, 1)
	assert.Equal(t, 1, c.rows[0].Number)
	assert.Equal(t, 3, c.rows[0].SourceNumber)
}

func TestEachRowSkipBlankRows(t *testing.T) {
	t.Parallel()

	doc := `{"tables":[{"url":"t.csv","dialect":{"skipBlankRows":true}}]}`

	c := iterate(t, doc, csvtest.JoinLF("name", "Alice", " ", "Bob"))

	require.Len(t, c.rows, 2)
	assert.Equal(t, 1, c.rows[0].Number)
	assert.Equal(t, 2, c.rows[0].SourceNumber)
	assert.Equal(t, 2, c.rows[1].Number)
	assert.Equal(t, 4, c.rows[1].SourceNumber)
}

func TestRowNumberingIsStrictlyIncreasing(t *testing.T) {
	t.Parallel()

	doc := `{"tables":[{"url":"t.csv","dialect":{"commentPrefix":"#","skipBlankRows":true}}]}`

	c := iterate(t, doc, csvtest.JoinLF(
		"name",
		"a",
		"# note",
		"b",
		" ",
		"c",
	))

	require.Len(t, c.rows, 3)

	for i, row := range c.rows {
		assert.Equal(t, i+1, row.Number)

		skipped := row.SourceNumber - row.Number
		assert.GreaterOrEqual(t, skipped, 1)

		if i > 0 {
			assert.Greater(t, row.SourceNumber, c.rows[i-1].SourceNumber)
		}
	}

	assert.Equal(t, 4, c.rows[1].SourceNumber)
	assert.Equal(t, 6, c.rows[2].SourceNumber)
}

func TestEachRowWidthError(t *testing.T) {
	t.Parallel()

	doc := `{"tables":[{"url":"t.csv","tableSchema":{"columns":[{"name":"a"},{"name":"b"}]}}]}`
	g := parseGroup(t, doc)

	c := &collector{}
	err := tabular.EachRow(strings.NewReader(csvtest.JoinLF("a,b", "only")), g, g.Tables()[0], c.sink())

	var widthErr *tabular.RowWidthError

	require.ErrorAs(t, err, &widthErr)
	assert.Equal(t, 2, widthErr.SourceNumber)
	assert.Equal(t, 1, widthErr.Got)
	assert.Equal(t, 2, widthErr.Want)
}

func TestEachRowVirtualColumns(t *testing.T) {
	t.Parallel()

	doc := `{"tables":[{"url":"http://example.org/t.csv","tableSchema":{"columns":[
		{"name":"real"},
		{"name":"type","virtual":true,"valueUrl":"http://example.org/Thing"}
	]}}]}`

	c := iterate(t, doc, csvtest.JoinLF("real", "alpha"))

	require.Len(t, c.rows, 1)
	require.Len(t, c.rows[0].Cells, 2)

	virtual := c.rows[0].Cells[1]
	assert.Nil(t, virtual.Value)
	assert.Equal(t, "http://example.org/Thing", virtual.ValueURL)
}

func TestEachRowSkipColumns(t *testing.T) {
	t.Parallel()

	doc := `{"tables":[{"url":"t.csv","dialect":{"skipColumns":1}}]}`

	c := iterate(t, doc, csvtest.JoinLF("id,name", "1,Alice"))

	require.Len(t, c.rows, 1)
	require.Len(t, c.rows[0].Cells, 1)
	assert.Equal(t, "Alice", c.rows[0].Cells[0].Value)
	assert.Equal(t, 2, c.rows[0].Cells[0].Column.SourceNumber)
}

func TestEachRowCRLFInput(t *testing.T) {
	t.Parallel()

	c := iterate(t, minimalGroup, csvtest.JoinCRLF("name", "Alice", "Bob"))

	require.Len(t, c.rows, 2)
	assert.Equal(t, "Alice", c.rows[0].Cells[0].Value)
}

func TestEachRowCustomTerminator(t *testing.T) {
	t.Parallel()

	doc := `{"tables":[{"url":"t.csv","dialect":{"lineTerminators":";"}}]}`

	c := iterate(t, doc, "name;Alice;Bob;")

	require.Len(t, c.rows, 2)
	assert.Equal(t, "Alice", c.rows[0].Cells[0].Value)
	assert.Equal(t, "Bob", c.rows[1].Cells[0].Value)
}

func TestEachRowTabDelimiter(t *testing.T) {
	t.Parallel()

	doc := `{"tables":[{"url":"t.csv","dialect":{"delimiter":"\t","header":false}}]}`

	c := iterate(t, doc, csvtest.JoinLF("a\tb"))

	require.Len(t, c.rows, 1)
	require.Len(t, c.rows[0].Cells, 2)
}

func TestEachRowSinkErrorStopsIteration(t *testing.T) {
	t.Parallel()

	g := parseGroup(t, minimalGroup)

	calls := 0
	err := tabular.EachRow(strings.NewReader(csvtest.JoinLF("h", "a", "b")), g, g.Tables()[0],
		tabular.SinkFuncs{OnRow: func(*tabular.Row) error {
			calls++

			return assert.AnError
		}})

	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestRowFragments(t *testing.T) {
	t.Parallel()

	c := iterate(t, minimalGroup, csvtest.JoinLF("name", "Alice"))

	require.Len(t, c.rows, 1)
	assert.Equal(t, "row=2", c.rows[0].Fragment())
	assert.Equal(t, "cell=2,1", c.rows[0].Cells[0].Fragment())
}
