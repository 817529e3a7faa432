package tabular

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.jacobcolvin.com/csvw/vocab"
)

// dateTimeTokens maps the supported pattern tokens to Go reference-time
// layouts, longest token first.
var dateTimeTokens = []struct {
	token  string
	layout string
}{
	{"yyyy", "2006"},
	{"MM", "01"},
	{"dd", "02"},
	{"M", "1"},
	{"d", "2"},
	{"HH", "15"},
	{"mm", "04"},
	{"ss", "05"},
	{"S", "9"},
	{"xxxxx", "-07:00"},
	{"xxxx", "-0700"},
	{"xxx", "-07:00"},
	{"xx", "-0700"},
	{"x", "-07"},
	{"XXX", "Z07:00"},
	{"XX", "Z0700"},
	{"X", "Z07"},
}

// defaultLayouts are tried when a temporal datatype carries no format.
var defaultLayouts = map[string][]string{
	"date": {"2006-01-02"},
	"time": {"15:04:05", "15:04:05Z07:00", "15:04"},
	"dateTime": {
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	},
	"datetime": {
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	},
	"dateTimeStamp": {"2006-01-02T15:04:05Z07:00"},
	"gDay":          {"---02"},
	"gMonth":        {"--01"},
	"gMonthDay":     {"--01-02"},
	"gYear":         {"2006"},
	"gYearMonth":    {"2006-01"},
}

// canonicalLayouts render parsed temporal values back out.
var canonicalLayouts = map[string]string{
	"date":          "2006-01-02",
	"time":          "15:04:05",
	"dateTime":      "2006-01-02T15:04:05",
	"datetime":      "2006-01-02T15:04:05",
	"dateTimeStamp": "2006-01-02T15:04:05",
	"gDay":          "---02",
	"gMonth":        "--01",
	"gMonthDay":     "--01-02",
	"gYear":         "2006",
	"gYearMonth":    "2006-01",
}

// translateTemporalFormat converts a yyyy-MM-dd style pattern to a Go
// layout, reporting whether the pattern carries a zone offset.
func translateTemporalFormat(pattern string) (string, bool) {
	var sb strings.Builder

	hasZone := false

	for i := 0; i < len(pattern); {
		matched := false

		for _, tok := range dateTimeTokens {
			if strings.HasPrefix(pattern[i:], tok.token) {
				sb.WriteString(tok.layout)
				i += len(tok.token)
				matched = true

				if strings.HasPrefix(tok.token, "x") || strings.HasPrefix(tok.token, "X") {
					hasZone = true
				}

				break
			}
		}

		if !matched {
			sb.WriteByte(pattern[i])
			i++
		}
	}

	return sb.String(), hasZone
}

// parseDateTime interprets a temporal cell item and composes the canonical
// form, keeping a zone suffix when the input carried one.
func parseDateTime(base string, format any, item string) (any, string, []string) {
	invalid := func() (any, string, []string) {
		return nil, item, []string{fmt.Sprintf("%q is not a valid %s", item, base)}
	}

	var layouts []string

	zoned := false

	if pattern, ok := format.(string); ok && pattern != "" {
		layout, hasZone := translateTemporalFormat(pattern)
		layouts = []string{layout}
		zoned = hasZone
	} else {
		layouts = defaultLayouts[base]
	}

	if len(layouts) == 0 {
		return invalid()
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, item)
		if err != nil {
			continue
		}

		canonical := t.Format(canonicalLayouts[base])

		hasZone := zoned || strings.ContainsAny(layout, "Z") || strings.Contains(layout, "-07")
		if hasZone && temporalWithTime(base) {
			canonical += t.Format("Z07:00")
		}

		iri, _ := vocab.DatatypeIRI(base)

		return Literal{Value: canonical, Type: iri}, canonical, nil
	}

	return invalid()
}

func temporalWithTime(base string) bool {
	switch base {
	case "dateTime", "datetime", "dateTimeStamp", "time":
		return true
	}

	return false
}

// Duration lexical forms per XSD.
var (
	durationRx          = regexp.MustCompile(`^-?P(?:\d+Y)?(?:\d+M)?(?:\d+D)?(?:T(?:\d+H)?(?:\d+M)?(?:\d+(?:\.\d+)?S)?)?$`)
	dayTimeDurationRx   = regexp.MustCompile(`^-?P(?:\d+D)?(?:T(?:\d+H)?(?:\d+M)?(?:\d+(?:\.\d+)?S)?)?$`)
	yearMonthDurationRx = regexp.MustCompile(`^-?P(?:\d+Y)?(?:\d+M)?$`)
)

// parseDuration validates a duration lexical form and passes it through.
func parseDuration(base, item string) (any, string, []string) {
	rx := durationRx

	switch base {
	case "dayTimeDuration":
		rx = dayTimeDurationRx
	case "yearMonthDuration":
		rx = yearMonthDurationRx
	}

	// "P" alone, or a "T" with no components, is not a duration.
	if !rx.MatchString(item) || strings.TrimLeft(item, "-P") == "" || strings.HasSuffix(item, "T") {
		return nil, item, []string{fmt.Sprintf("%q is not a valid %s", item, base)}
	}

	iri, _ := vocab.DatatypeIRI(base)

	return Literal{Value: item, Type: iri}, item, nil
}
