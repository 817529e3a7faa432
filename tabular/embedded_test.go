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

func TestEmbeddedMetadata(t *testing.T) {
	t.Parallel()

	input := csvtest.JoinLF(
		"# treaty data",
		"country,year",
		"ad,1601",
	)

	d := metadata.DefaultDialect()
	d.SkipRows = 1

	g, err := tabular.EmbeddedMetadata(strings.NewReader(input), d, "http://example.org/t.csv")
	require.NoError(t, err)

	require.Equal(t, metadata.KindTable, g.Kind(g.Root()))
	assert.Equal(t, "http://example.org/t.csv", g.TableURL(g.Root()))

	cols := g.ResolveColumns(g.Root())
	require.Len(t, cols, 2)
	assert.Equal(t, []string{"country"}, cols[0].Titles["und"])
	assert.Equal(t, []string{"year"}, cols[1].Titles["und"])
}

func TestEmbeddedMetadataCommentBeforeHeader(t *testing.T) {
	t.Parallel()

	input := csvtest.JoinLF("#hello", "name", "Alice")

	g, err := tabular.EmbeddedMetadata(strings.NewReader(input), metadata.DefaultDialect(), "t.csv")
	require.NoError(t, err)

	cols := g.ResolveColumns(g.Root())
	require.Len(t, cols, 1)
	assert.Equal(t, []string{"name"}, cols[0].Titles["und"])
}

func TestEmbeddedMetadataMultipleHeaderRows(t *testing.T) {
	t.Parallel()

	input := csvtest.JoinLF("name,age", "Name,Years", "Alice,30")

	d := metadata.DefaultDialect()
	d.HeaderRowCount = 2

	g, err := tabular.EmbeddedMetadata(strings.NewReader(input), d, "t.csv")
	require.NoError(t, err)

	cols := g.ResolveColumns(g.Root())
	require.Len(t, cols, 2)
	assert.Equal(t, []string{"name", "Name"}, cols[0].Titles["und"])
	assert.Equal(t, []string{"age", "Years"}, cols[1].Titles["und"])
}

func TestEmbeddedMetadataSkipColumns(t *testing.T) {
	t.Parallel()

	d := metadata.DefaultDialect()
	d.SkipColumns = 1

	g, err := tabular.EmbeddedMetadata(strings.NewReader(csvtest.JoinLF("id,name", "1,Alice")), d, "t.csv")
	require.NoError(t, err)

	cols := g.ResolveColumns(g.Root())
	require.Len(t, cols, 1)
	assert.Equal(t, []string{"name"}, cols[0].Titles["und"])
}

func TestEmbeddedMetadataDegenerateHeader(t *testing.T) {
	t.Parallel()

	// Empty header cells leave degenerate columns without titles.
	g, err := tabular.EmbeddedMetadata(strings.NewReader(csvtest.JoinLF("name,,age")), metadata.DefaultDialect(), "t.csv")
	require.NoError(t, err)

	cols := g.ResolveColumns(g.Root())
	require.Len(t, cols, 3)
	assert.Empty(t, cols[1].Titles)
}

func TestEmbeddedMetadataNoHeader(t *testing.T) {
	t.Parallel()

	d := metadata.DefaultDialect()
	d.Header = false
	d.HeaderRowCount = 0

	g, err := tabular.EmbeddedMetadata(strings.NewReader(csvtest.JoinLF("a,b")), d, "t.csv")
	require.NoError(t, err)

	assert.Empty(t, g.ColumnsOf(g.Root()))
}

// TestEmbeddedMergeFlow exercises the full pipeline: extract embedded
// metadata, verify it against user metadata, merge, and iterate.
func TestEmbeddedMergeFlow(t *testing.T) {
	t.Parallel()

	user := parseGroup(t, `{"tables":[{"url":"t.csv","tableSchema":{"columns":[
		{"name":"name","titles":"name"},
		{"name":"age","titles":"age","datatype":"integer"}
	]}}]}`)

	input := csvtest.JoinLF("name,age", "Alice,30")

	embedded, err := tabular.EmbeddedMetadata(strings.NewReader(input),
		user.DialectFor(user.Tables()[0]), "t.csv")
	require.NoError(t, err)

	require.NoError(t, user.VerifyCompatible(embedded))
	require.NoError(t, user.Merge(embedded))

	c := &collector{}
	require.NoError(t, tabular.EachRow(strings.NewReader(input), user, user.Tables()[0], c.sink()))

	require.Len(t, c.rows, 1)
	assert.Equal(t, "Alice", c.rows[0].Cells[0].Value)
	assert.Equal(t, int64(30), c.rows[0].Cells[1].Value)
}
