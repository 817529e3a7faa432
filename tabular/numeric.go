package tabular

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"go.jacobcolvin.com/csvw/vocab"
)

// numberFormat is the structured format annotation of a numeric datatype.
type numberFormat struct {
	pattern     string
	decimalChar string
	groupChar   string
}

func newNumberFormat(format any) numberFormat {
	nf := numberFormat{decimalChar: "."}

	switch f := format.(type) {
	case string:
		nf.pattern = f
	case map[string]any:
		if p, ok := f["pattern"].(string); ok {
			nf.pattern = p
		}

		if d, ok := f["decimalChar"].(string); ok && d != "" {
			nf.decimalChar = d
		}

		if g, ok := f["groupChar"].(string); ok {
			nf.groupChar = g
		}
	}

	return nf
}

// integerRanges bounds the fixed-width integer types.
var integerRanges = map[string][2]int64{
	"long":          {math.MinInt64, math.MaxInt64},
	"int":           {math.MinInt32, math.MaxInt32},
	"short":         {math.MinInt16, math.MaxInt16},
	"byte":          {math.MinInt8, math.MaxInt8},
	"unsignedLong":  {0, math.MaxInt64},
	"unsignedInt":   {0, math.MaxUint32},
	"unsignedShort": {0, math.MaxUint16},
	"unsignedByte":  {0, math.MaxUint8},
}

// parseNumeric interprets a numeric cell item: pattern check, group and
// decimal character rewriting, percent and permille scaling, then a typed
// value. Integer-family values become int64, decimal becomes
// [decimal.Decimal], and double, float, and number become float64.
func parseNumeric(base string, format any, item string) (any, string, []string) {
	nf := newNumberFormat(format)

	invalid := func() (any, string, []string) {
		return nil, item, []string{fmt.Sprintf("%q is not a valid %s", item, base)}
	}

	if nf.pattern != "" {
		rx, err := numberPatternRegexp(nf.pattern, nf.decimalChar, nf.groupChar)
		if err == nil && !rx.MatchString(item) {
			return nil, item, []string{fmt.Sprintf("%q does not match pattern %q", item, nf.pattern)}
		}
	}

	s := item

	if nf.groupChar != "" {
		if strings.Contains(s, nf.groupChar+nf.groupChar) {
			return nil, item, []string{fmt.Sprintf("repeating %q in %q", nf.groupChar, item)}
		}

		s = strings.ReplaceAll(s, nf.groupChar, "")
	}

	if nf.decimalChar != "." {
		s = strings.ReplaceAll(s, nf.decimalChar, ".")
	}

	divisor := int64(1)

	switch {
	case strings.HasSuffix(s, "%"):
		s = strings.TrimSuffix(s, "%")
		divisor = 100
	case strings.HasSuffix(s, "‰"):
		s = strings.TrimSuffix(s, "‰")
		divisor = 1000
	}

	switch base {
	case "double", "float", "number":
		f, err := parseFloatLexical(s)
		if err != nil {
			return invalid()
		}

		f /= float64(divisor)

		return f, strconv.FormatFloat(f, 'g', -1, 64), nil

	case "decimal":
		d, err := decimal.NewFromString(s)
		if err != nil {
			return invalid()
		}

		if divisor > 1 {
			d = d.Div(decimal.NewFromInt(divisor))
		}

		return d, d.String(), nil
	}

	// Integer family.
	d, err := decimal.NewFromString(s)
	if err != nil {
		return invalid()
	}

	if divisor > 1 {
		d = d.Div(decimal.NewFromInt(divisor))
	}

	if !d.IsInteger() {
		return invalid()
	}

	n := d.IntPart()

	if !integerInRange(base, n) {
		return invalid()
	}

	return n, strconv.FormatInt(n, 10), nil
}

func integerInRange(base string, n int64) bool {
	switch base {
	case "nonNegativeInteger":
		return n >= 0
	case "positiveInteger":
		return n > 0
	case "nonPositiveInteger":
		return n <= 0
	case "negativeInteger":
		return n < 0
	}

	if bounds, ok := integerRanges[base]; ok {
		return n >= bounds[0] && n <= bounds[1]
	}

	return true
}

// parseFloatLexical accepts the XSD float lexical space, including the
// INF/NaN names.
func parseFloatLexical(s string) (float64, error) {
	switch s {
	case "INF", "+INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	case "NaN":
		return math.NaN(), nil
	}

	return strconv.ParseFloat(s, 64)
}

// numberPatternRegexp compiles a UTS #35 style number pattern into a
// regular expression over the unrewritten lexical form. Only the digit,
// group, decimal, sign, exponent, percent, and permille pattern characters
// are interpreted.
func numberPatternRegexp(pattern, decimalChar, groupChar string) (*regexp.Regexp, error) {
	var sb strings.Builder

	sb.WriteString(`^[+-]?`)

	for _, r := range pattern {
		switch r {
		case '0':
			sb.WriteString(`\d`)
		case '#':
			sb.WriteString(`\d?`)
		case ',':
			if groupChar != "" {
				sb.WriteString(regexp.QuoteMeta(groupChar))
			} else {
				sb.WriteString(`,`)
			}
		case '.':
			sb.WriteString(regexp.QuoteMeta(decimalChar))
		case '+', '-':
			sb.WriteString(`[+-]`)
		case 'E', 'e':
			sb.WriteString(`[Ee]`)
		case '%':
			sb.WriteString(`%`)
		case '‰':
			sb.WriteString(`‰`)
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}

	sb.WriteString(`$`)

	return regexp.Compile(sb.String())
}

// parseBoolean interprets a boolean cell item. A "T|F" style format names
// the true and false lexical forms; otherwise the XSD forms apply.
func parseBoolean(format any, item string) (any, string, []string) {
	if pattern, ok := format.(string); ok && strings.Contains(pattern, "|") {
		parts := strings.SplitN(pattern, "|", 2)

		switch item {
		case parts[0]:
			return true, "true", nil
		case parts[1]:
			return false, "false", nil
		}

		return nil, item, []string{fmt.Sprintf("%q is not a valid boolean for format %q", item, pattern)}
	}

	switch strings.ToLower(item) {
	case "true", "1":
		return true, "true", nil
	case "false", "0":
		return false, "false", nil
	}

	return nil, item, []string{fmt.Sprintf("%q is not a valid boolean", item)}
}

// compareValues compares a canonical lexical value against a bound facet
// for an ordered datatype. Numeric types compare as decimals; temporal
// types compare by canonical form.
func compareValues(base, lexical, bound string) (int, error) {
	if vocab.IsNumericType(base) {
		a, err := decimal.NewFromString(lexical)
		if err != nil {
			return 0, err
		}

		b, err := decimal.NewFromString(bound)
		if err != nil {
			return 0, err
		}

		return a.Cmp(b), nil
	}

	// Canonical temporal and duration forms of equal shape order
	// lexicographically.
	return strings.Compare(lexical, bound), nil
}
