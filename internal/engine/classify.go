package engine

import (
	"strings"
	"unicode"
)

// IsRowProducing reports whether a statement is expected to return rows.
//
// This is a textual heuristic, not a parse: after trimming whitespace the
// statement must start with SELECT, case-insensitively. A CTE (WITH ... SELECT)
// or a statement preceded by a comment is classified as not row-producing.
func IsRowProducing(statement string) bool {
	s := strings.TrimLeftFunc(statement, unicode.IsSpace)
	const kw = "select"
	return len(s) >= len(kw) && strings.EqualFold(s[:len(kw)], kw)
}
