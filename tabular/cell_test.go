package tabular_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/csvw/csvtest"
	"go.jacobcolvin.com/csvw/tabular"
	"go.jacobcolvin.com/csvw/vocab"
)

// oneColumnDoc builds a single-table document with one column description.
func oneColumnDoc(column string) string {
	return `{"tables":[{"url":"t.csv","dialect":{"header":false},"tableSchema":{"columns":[` + column + `]}}]}`
}

func firstCell(t *testing.T, doc, input string) *tabular.Cell {
	t.Helper()

	c := iterate(t, doc, input)
	require.NotEmpty(t, c.rows)
	require.NotEmpty(t, c.rows[0].Cells)

	return c.rows[0].Cells[0]
}

func TestCellNumericFormats(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		column    string
		input     string
		want      any
		wantDec   string
		wantError string
	}{
		"decimal with group and decimal chars": {
			column:  `{"name":"n","datatype":{"base":"decimal","format":{"decimalChar":",","groupChar":"."}}}`,
			input:   `"1.234,50"`,
			wantDec: "1234.50",
		},
		"repeating group char": {
			column:    `{"name":"n","datatype":{"base":"decimal","format":{"decimalChar":",","groupChar":"."}}}`,
			input:     `"1..234,50"`,
			wantError: `repeating "."`,
		},
		"plain integer": {
			column: `{"name":"n","datatype":"integer"}`,
			input:  "42",
			want:   int64(42),
		},
		"integer rejects fraction": {
			column:    `{"name":"n","datatype":"integer"}`,
			input:     "4.2",
			wantError: `"4.2" is not a valid integer`,
		},
		"byte range": {
			column:    `{"name":"n","datatype":"byte"}`,
			input:     "300",
			wantError: `"300" is not a valid byte`,
		},
		"nonNegativeInteger rejects negative": {
			column:    `{"name":"n","datatype":"nonNegativeInteger"}`,
			input:     "-1",
			wantError: "not a valid nonNegativeInteger",
		},
		"percent scales": {
			column: `{"name":"n","datatype":"number"}`,
			input:  "50%",
			want:   0.5,
		},
		"permille scales": {
			column: `{"name":"n","datatype":"number"}`,
			input:  "50‰",
			want:   0.05,
		},
		"double special values": {
			column: `{"name":"n","datatype":"double"}`,
			input:  "-INF",
		},
		"pattern mismatch": {
			column:    `{"name":"n","datatype":{"base":"integer","format":"000"}}`,
			input:     "1234",
			wantError: "does not match pattern",
		},
		"pattern match": {
			column: `{"name":"n","datatype":{"base":"integer","format":"000"}}`,
			input:  "123",
			want:   int64(123),
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cell := firstCell(t, oneColumnDoc(tc.column), csvtest.JoinLF(tc.input))

			if tc.wantError != "" {
				require.NotEmpty(t, cell.Errors)
				assert.Contains(t, cell.Errors[0], tc.wantError)

				// The cell still carries a fallback literal.
				_, isLiteral := cell.Value.(tabular.Literal)
				assert.True(t, isLiteral)

				return
			}

			require.Empty(t, cell.Errors)

			if tc.wantDec != "" {
				d, ok := cell.Value.(decimal.Decimal)
				require.True(t, ok)

				want, err := decimal.NewFromString(tc.wantDec)
				require.NoError(t, err)
				assert.True(t, want.Equal(d), "got %s", d)

				return
			}

			if tc.want != nil {
				assert.Equal(t, tc.want, cell.Value)
			}
		})
	}
}

func TestCellBooleanFormats(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		column  string
		input   string
		want    any
		wantErr bool
	}{
		"T maps true":       {column: `{"name":"b","datatype":{"base":"boolean","format":"T|F"}}`, input: "T", want: true},
		"F maps false":      {column: `{"name":"b","datatype":{"base":"boolean","format":"T|F"}}`, input: "F", want: false},
		"format rejects Y":  {column: `{"name":"b","datatype":{"base":"boolean","format":"T|F"}}`, input: "Y", wantErr: true},
		"default true":      {column: `{"name":"b","datatype":"boolean"}`, input: "true", want: true},
		"default 1":         {column: `{"name":"b","datatype":"boolean"}`, input: "1", want: true},
		"default FALSE":     {column: `{"name":"b","datatype":"boolean"}`, input: "FALSE", want: false},
		"default 0":         {column: `{"name":"b","datatype":"boolean"}`, input: "0", want: false},
		"default rejects 2": {column: `{"name":"b","datatype":"boolean"}`, input: "2", wantErr: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cell := firstCell(t, oneColumnDoc(tc.column), csvtest.JoinLF(tc.input))

			if tc.wantErr {
				assert.NotEmpty(t, cell.Errors)

				return
			}

			require.Empty(t, cell.Errors)
			assert.Equal(t, tc.want, cell.Value)
		})
	}
}

func TestCellDateFormats(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		column  string
		input   string
		want    string
		wantErr bool
	}{
		"dd/MM/yyyy": {
			column: `{"name":"d","datatype":{"base":"date","format":"dd/MM/yyyy"}}`,
			input:  "04/07/1776",
			want:   "1776-07-04",
		},
		"M-d-yyyy": {
			column: `{"name":"d","datatype":{"base":"date","format":"M-d-yyyy"}}`,
			input:  "7-4-1776",
			want:   "1776-07-04",
		},
		"iso date default": {
			column: `{"name":"d","datatype":"date"}`,
			input:  "2015-04-01",
			want:   "2015-04-01",
		},
		"datetime with zone": {
			column: `{"name":"d","datatype":{"base":"dateTime","format":"yyyy-MM-dd HH:mm:ss xxx"}}`,
			input:  "2015-04-01 10:20:30 +01:00",
			want:   "2015-04-01T10:20:30+01:00",
		},
		"time": {
			column: `{"name":"d","datatype":"time"}`,
			input:  "10:20:30",
			want:   "10:20:30",
		},
		"compact time pattern": {
			column: `{"name":"d","datatype":{"base":"time","format":"HHmm"}}`,
			input:  "1020",
			want:   "10:20:00",
		},
		"invalid date": {
			column:  `{"name":"d","datatype":"date"}`,
			input:   "April Fools",
			wantErr: true,
		},
		"wrong pattern": {
			column:  `{"name":"d","datatype":{"base":"date","format":"dd/MM/yyyy"}}`,
			input:   "1776-07-04",
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cell := firstCell(t, oneColumnDoc(tc.column), csvtest.JoinLF(tc.input))

			if tc.wantErr {
				assert.NotEmpty(t, cell.Errors)

				return
			}

			require.Empty(t, cell.Errors)

			lit, ok := cell.Value.(tabular.Literal)
			require.True(t, ok)
			assert.Equal(t, tc.want, lit.Value)
		})
	}
}

func TestCellDurations(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		base    string
		input   string
		wantErr bool
	}{
		"full duration":           {base: "duration", input: "P1Y2M3DT4H5M6S"},
		"negative duration":       {base: "duration", input: "-P1D"},
		"dayTime valid":           {base: "dayTimeDuration", input: "P1DT2H"},
		"dayTime rejects years":   {base: "dayTimeDuration", input: "P1Y", wantErr: true},
		"yearMonth valid":         {base: "yearMonthDuration", input: "P1Y2M"},
		"yearMonth rejects days":  {base: "yearMonthDuration", input: "P1D", wantErr: true},
		"bare P invalid":          {base: "duration", input: "P", wantErr: true},
		"trailing T invalid":      {base: "duration", input: "P1DT", wantErr: true},
		"not a duration at all":   {base: "duration", input: "tomorrow", wantErr: true},
		"seconds with fraction":   {base: "duration", input: "PT0.5S"},
		"unsupported xsd ENTITY":  {base: "ENTITY", input: "x", wantErr: true},
		"unsupported xsd anyType": {base: "anyType", input: "x", wantErr: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			column := `{"name":"d","datatype":{"base":"` + tc.base + `"}}`
			cell := firstCell(t, oneColumnDoc(column), csvtest.JoinLF(tc.input))

			if tc.wantErr {
				assert.NotEmpty(t, cell.Errors)

				return
			}

			require.Empty(t, cell.Errors)

			lit, ok := cell.Value.(tabular.Literal)
			require.True(t, ok)
			assert.Equal(t, tc.input, lit.Value)
		})
	}
}

func TestCellNullMapping(t *testing.T) {
	t.Parallel()

	column := `{"name":"c","null":"NA","valueUrl":"http://example.org/v/{c}"}`
	cell := firstCell(t, oneColumnDoc(column), csvtest.JoinLF("NA"))

	assert.Nil(t, cell.Value)
	assert.Empty(t, cell.ValueURL)
	assert.Empty(t, cell.Errors)
}

func TestCellRequiredNull(t *testing.T) {
	t.Parallel()

	column := `{"name":"c","null":"NA","required":true}`
	cell := firstCell(t, oneColumnDoc(column), csvtest.JoinLF("NA"))

	assert.Nil(t, cell.Value)
	require.NotEmpty(t, cell.Errors)
	assert.Contains(t, cell.Errors[0], "required")
}

func TestCellSeparator(t *testing.T) {
	t.Parallel()

	column := `{"name":"c","separator":"|","null":"NA"}`
	cell := firstCell(t, oneColumnDoc(column), csvtest.JoinLF("a||c"))

	assert.Equal(t, []any{"a", "", "c"}, cell.Value)
}

func TestCellSeparatorPreservesNulls(t *testing.T) {
	t.Parallel()

	column := `{"name":"c","separator":"|","null":"NA","datatype":"integer"}`
	cell := firstCell(t, oneColumnDoc(column), csvtest.JoinLF("1|NA|3"))

	assert.Equal(t, []any{int64(1), nil, int64(3)}, cell.Value)
}

func TestCellDefaultSubstitution(t *testing.T) {
	t.Parallel()

	column := `{"name":"c","default":"unknown","null":"NA"}`
	cell := firstCell(t, oneColumnDoc(column), csvtest.JoinLF(`""`))

	assert.Equal(t, "unknown", cell.Value)
}

func TestCellWhitespaceNormalization(t *testing.T) {
	t.Parallel()

	// Non-string datatypes collapse internal whitespace and strip.
	column := `{"name":"c","datatype":"integer"}`
	cell := firstCell(t, oneColumnDoc(column), csvtest.JoinLF(`"  42  "`))

	assert.Equal(t, int64(42), cell.Value)
	assert.Equal(t, "  42  ", cell.StringValue)
}

func TestCellFacets(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		column    string
		input     string
		wantError string
	}{
		"length ok": {
			column: `{"name":"c","datatype":{"base":"string","length":3}}`,
			input:  "abc",
		},
		"length mismatch": {
			column:    `{"name":"c","datatype":{"base":"string","length":3}}`,
			input:     "abcd",
			wantError: "length 4, expected 3",
		},
		"length counts runes": {
			column: `{"name":"c","datatype":{"base":"string","length":3}}`,
			input:  "日本語",
		},
		"minLength": {
			column:    `{"name":"c","datatype":{"base":"string","minLength":5}}`,
			input:     "abc",
			wantError: "below minLength 5",
		},
		"minimum violated": {
			column:    `{"name":"c","datatype":{"base":"integer","minimum":0}}`,
			input:     "-5",
			wantError: "below the minimum",
		},
		"maximum ok": {
			column: `{"name":"c","datatype":{"base":"integer","maximum":100}}`,
			input:  "99",
		},
		"exclusive maximum violated": {
			column:    `{"name":"c","datatype":{"base":"integer","maxExclusive":100}}`,
			input:     "100",
			wantError: "not below the exclusive maximum",
		},
		"date minimum": {
			column:    `{"name":"c","datatype":{"base":"date","minInclusive":"2000-01-01"}}`,
			input:     "1999-12-31",
			wantError: "below the minimum",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cell := firstCell(t, oneColumnDoc(tc.column), csvtest.JoinLF(tc.input))

			if tc.wantError == "" {
				assert.Empty(t, cell.Errors)

				return
			}

			require.NotEmpty(t, cell.Errors)
			assert.Contains(t, cell.Errors[0], tc.wantError)
		})
	}
}

func TestCellStringFormatRegexp(t *testing.T) {
	t.Parallel()

	column := `{"name":"c","datatype":{"base":"string","format":"[A-Z]{2}[0-9]{2}"}}`

	ok := firstCell(t, oneColumnDoc(column), csvtest.JoinLF("AB12"))
	assert.Empty(t, ok.Errors)

	bad := firstCell(t, oneColumnDoc(column), csvtest.JoinLF("nope"))
	require.NotEmpty(t, bad.Errors)
	assert.Contains(t, bad.Errors[0], "does not match format")
}

func TestCellLanguageLiteralFallback(t *testing.T) {
	t.Parallel()

	column := `{"name":"c","lang":"en","datatype":"integer"}`
	cell := firstCell(t, oneColumnDoc(column), csvtest.JoinLF("nope"))

	require.NotEmpty(t, cell.Errors)

	lit, ok := cell.Value.(tabular.Literal)
	require.True(t, ok)
	assert.Equal(t, "nope", lit.Value)
	assert.Equal(t, "en", lit.Language)
}

func TestCellURITemplates(t *testing.T) {
	t.Parallel()

	doc := `{"tables":[{"url":"http://example.org/t.csv","dialect":{"header":false},"tableSchema":{"columns":[
		{"name":"id","aboutUrl":"http://ex/p/{id}"},
		{"name":"age","propertyUrl":"http://ex/{_name}","valueUrl":"ages/{age}"}
	]}}]}`

	c := iterate(t, doc, csvtest.JoinLF("7,30"))

	require.Len(t, c.rows, 1)
	require.Len(t, c.rows[0].Cells, 2)

	id := c.rows[0].Cells[0]
	age := c.rows[0].Cells[1]

	assert.Equal(t, "http://ex/p/7", id.AboutURL)
	assert.Equal(t, "http://ex/age", age.PropertyURL)
	// Relative expansions resolve against the table URL.
	assert.Equal(t, "http://example.org/ages/30", age.ValueURL)
}

func TestCellPositionalTemplateVariables(t *testing.T) {
	t.Parallel()

	doc := `{"tables":[{"url":"http://example.org/t.csv","tableSchema":{"columns":[
		{"name":"c","aboutUrl":"http://ex/r/{_row}/{_sourceRow}/{_column}/{_sourceColumn}"}
	]}}]}`

	c := iterate(t, doc, csvtest.JoinLF("c", "x"))

	require.Len(t, c.rows, 1)
	assert.Equal(t, "http://ex/r/1/2/1/1", c.rows[0].Cells[0].AboutURL)
}

func TestLiteralDatatypeIRIs(t *testing.T) {
	t.Parallel()

	column := `{"name":"c","datatype":"date"}`
	cell := firstCell(t, oneColumnDoc(column), csvtest.JoinLF("2015-04-01"))

	lit, ok := cell.Value.(tabular.Literal)
	require.True(t, ok)
	assert.Equal(t, vocab.XSD("date"), lit.Type)
}

func TestCellAnyURIKeepsLexicalForm(t *testing.T) {
	t.Parallel()

	column := `{"name":"c","datatype":"anyURI"}`
	cell := firstCell(t, oneColumnDoc(column), csvtest.JoinLF("http://example.org/x"))

	require.Empty(t, cell.Errors)

	lit, ok := cell.Value.(tabular.Literal)
	require.True(t, ok)
	assert.Equal(t, "http://example.org/x", lit.Value)
	assert.Equal(t, vocab.XSD("anyURI"), lit.Type)
}
