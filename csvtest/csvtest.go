// Package csvtest provides helpers for constructing CSV fixtures in tests:
// explicit line-ending joins (dialects distinguish LF from CRLF input) and
// metadata fixture decoding.
package csvtest

import (
	"encoding/json"
	"strings"
	"testing"
)

// JoinLF joins rows with LF line endings and a trailing newline, matching
// a Unix CSV file.
//
// Example:
//
//	input := csvtest.JoinLF(
//		"name,age",
//		"Alice,30",
//	) // -> "name,age\nAlice,30\n"
func JoinLF(rows ...string) string {
	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(row)
		sb.WriteByte('\n')
	}

	return sb.String()
}

// JoinCRLF joins rows with CRLF line endings and a trailing CRLF, matching
// the RFC 4180 wire form.
func JoinCRLF(rows ...string) string {
	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(row)
		sb.WriteByte('\r')
		sb.WriteByte('\n')
	}

	return sb.String()
}

// MustJSON decodes a JSON metadata fixture, failing the test on malformed
// input.
func MustJSON(t *testing.T, doc string) any {
	t.Helper()

	var v any

	err := json.Unmarshal([]byte(doc), &v)
	if err != nil {
		t.Fatalf("decoding fixture: %v", err)
	}

	return v
}
