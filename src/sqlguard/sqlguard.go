// Package sqlguard decides whether a statement is a single read-only query.
package sqlguard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrEmptyQuery         = errors.New("query is empty")
	ErrUnsafeQuery        = errors.New("query is not allowed")
	ErrMultipleStatements = errors.New("only a single statement is allowed")
)

var forbidden = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "DROP": true, "ALTER": true,
	"TRUNCATE": true, "CREATE": true, "ATTACH": true, "DETACH": true,
	"PRAGMA": true, "VACUUM": true, "REINDEX": true, "GRANT": true, "REVOKE": true,
	"MERGE": true, "UPSERT": true, "COPY": true, "CALL": true, "EXEC": true,
	// SELECT ... INTO creates tables (postgres) or writes server files (mysql).
	"INTO": true, "OUTFILE": true, "DUMPFILE": true,
}

var (
	fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	wordRe  = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
)

// Clean strips markdown code fences, surrounding whitespace and trailing semicolons.
func Clean(query string) string {
	q := strings.TrimSpace(query)
	if m := fenceRe.FindStringSubmatch(q); m != nil {
		q = m[1]
	}
	q = strings.TrimSpace(q)
	for strings.HasSuffix(q, ";") {
		q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	}
	return q
}

// Validate cleans query and checks that it is one SELECT (optionally led by
// WITH) without data-modifying keywords outside literals and comments. The
// cleaned statement is returned.
func Validate(query string) (string, error) {
	q := Clean(query)
	if q == "" {
		return "", ErrEmptyQuery
	}

	code := stripLiterals(q)
	if strings.Contains(code, ";") {
		return "", ErrMultipleStatements
	}

	locs := wordRe.FindAllStringIndex(code, -1)
	words := make([]string, len(locs))
	for i, loc := range locs {
		words[i] = code[loc[0]:loc[1]]
	}
	if len(words) == 0 {
		return "", fmt.Errorf("%w: no statement found", ErrUnsafeQuery)
	}

	first := strings.ToUpper(words[0])
	if first != "SELECT" && first != "WITH" {
		return "", fmt.Errorf("%w: only SELECT statements are allowed", ErrUnsafeQuery)
	}

	hasSelect := false
	for i, w := range words {
		upper := strings.ToUpper(w)
		if forbidden[upper] || (upper == "REPLACE" && !isCall(code, locs[i][1])) {
			return "", fmt.Errorf("%w: contains disallowed keyword %s", ErrUnsafeQuery, upper)
		}
		if upper == "SELECT" {
			hasSelect = true
		}
	}
	if !hasSelect {
		return "", fmt.Errorf("%w: only SELECT statements are allowed", ErrUnsafeQuery)
	}

	return q, nil
}

// isCall reports whether the word ending at end is applied as a function,
// e.g. the string function REPLACE(x, 'a', 'b').
func isCall(code string, end int) bool {
	return strings.HasPrefix(strings.TrimLeft(code[end:], " \t\r\n"), "(")
}

// stripLiterals blanks quoted strings, quoted identifiers and comments so
// that keyword and separator checks only see SQL code.
func stripLiterals(q string) string {
	var b strings.Builder
	b.Grow(len(q))

	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			j := i + 1
			for j < len(q) {
				if q[j] == c {
					// doubled quote is an escaped quote
					if j+1 < len(q) && q[j+1] == c {
						j += 2
						continue
					}
					break
				}
				j++
			}
			b.WriteString(" ")
			i = j
		case c == '-' && i+1 < len(q) && q[i+1] == '-':
			for i < len(q) && q[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
		case c == '/' && i+1 < len(q) && q[i+1] == '*':
			end := strings.Index(q[i+2:], "*/")
			if end < 0 {
				i = len(q)
			} else {
				i += end + 3
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
