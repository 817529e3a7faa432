package metadata_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/csvw/metadata"
)

// mapLoader serves canned documents by URL.
type mapLoader struct {
	docs map[string]string
}

func (l *mapLoader) Load(_ context.Context, url string) (*metadata.Resource, error) {
	doc, ok := l.docs[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s", metadata.ErrLoad, url)
	}

	return &metadata.Resource{URL: url, Body: []byte(doc)}, nil
}

func TestOpenHTTP(t *testing.T) {
	t.Parallel()

	var gotAccept string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(`{"@context":"http://www.w3.org/ns/csvw","tables":[{"url":"t.csv"}]}`))
	}))
	defer srv.Close()

	g, err := metadata.Open(context.Background(), srv.URL+"/meta.json")
	require.NoError(t, err)

	assert.Equal(t, "application/ld+json, application/json", gotAccept)

	g.Normalize()
	assert.Equal(t, srv.URL+"/t.csv", g.TableURL(g.Tables()[0]))
}

func TestForInputDiscovery(t *testing.T) {
	t.Parallel()

	group := `{"@context":"http://www.w3.org/ns/csvw","tables":[{"url":"http://example.org/t.csv"}]}`

	tcs := map[string]struct {
		input *metadata.Resource
		docs  map[string]string
		// wantTables is nil when the synthesized fallback is expected.
		wantTables []string
	}{
		"describedby link wins": {
			input: &metadata.Resource{
				URL:   "http://example.org/t.csv",
				Links: map[string]string{"describedby": "linked.json"},
			},
			docs: map[string]string{
				"http://example.org/linked.json": group,
			},
			wantTables: []string{"http://example.org/t.csv"},
		},
		"base-metadata second": {
			input: &metadata.Resource{URL: "http://example.org/t.csv"},
			docs: map[string]string{
				"http://example.org/t-metadata.json": group,
			},
			wantTables: []string{"http://example.org/t.csv"},
		},
		"sibling metadata third": {
			input: &metadata.Resource{URL: "http://example.org/t.csv"},
			docs: map[string]string{
				"http://example.org/metadata.json": group,
			},
			wantTables: []string{"http://example.org/t.csv"},
		},
		"unparseable candidates swallowed": {
			input: &metadata.Resource{URL: "http://example.org/t.csv"},
			docs: map[string]string{
				"http://example.org/t-metadata.json": `not json`,
			},
		},
		"nothing found synthesizes group": {
			input: &metadata.Resource{URL: "http://example.org/t.csv"},
			docs:  map[string]string{},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			g, err := metadata.ForInput(context.Background(), tc.input,
				metadata.WithLoader(&mapLoader{docs: tc.docs}))
			require.NoError(t, err)

			require.Equal(t, metadata.KindTableGroup, g.Kind(g.Root()))

			urls := tableURLs(g)
			if tc.wantTables == nil {
				assert.Equal(t, []string{"http://example.org/t.csv"}, urls)

				return
			}

			assert.Equal(t, tc.wantTables, urls)
		})
	}
}

func TestObjectPropertyLoadedFromURL(t *testing.T) {
	t.Parallel()

	loader := &mapLoader{docs: map[string]string{
		"http://example.org/schema.json": `{"columns":[{"name":"a"}]}`,
	}}

	g := mustParse(t, `{"url":"t.csv","tableSchema":"schema.json"}`,
		metadata.WithBase("http://example.org/meta.json"),
		metadata.WithLoader(loader))

	cols := g.ResolveColumns(g.Tables()[0])
	require.Len(t, cols, 1)
	assert.Equal(t, "a", cols[0].Name)
}

func TestObjectPropertyKeptAsStringWithoutLoader(t *testing.T) {
	t.Parallel()

	g := mustParse(t, `{"url":"t.csv","tableSchema":"schema.json"}`)

	assert.Empty(t, g.ColumnsOf(g.Tables()[0]))
}
