// Package deps parses compiler-generated dependency files (Makefile-rule
// and D-language record formats) and interns their dependency tokens as
// Input/Actual artifacts in a graph.Store.
package deps

import (
	"os"
	"strings"

	"forge/internal/graph"
	"forge/internal/logging"
)

// Format selects which dependency-file grammar to parse.
type Format int

const (
	Make Format = iota
	D
)

// ParseMake extracts the union of dependency tokens across every
// "targets : deps" stanza in a Make-format dependency file, honoring
// backslash-space and backslash-newline (line continuation) escaping.
func ParseMake(data string) []string {
	joined := unescapeContinuations(stripComments(data))

	seen := make(map[string]bool)
	var order []string
	for _, line := range strings.Split(joined, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		rhs := line[idx+1:]
		for _, tok := range splitEscapedSpaces(rhs) {
			if tok == "" {
				continue
			}
			if !seen[tok] {
				seen[tok] = true
				order = append(order, tok)
			}
		}
	}
	return order
}

// ParseD extracts the set of dep-source values from a D-format dependency
// file, one record per line of shape "target (dep-path) : (dep-source)".
func ParseD(data string) []string {
	seen := make(map[string]bool)
	var order []string
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		rhs := strings.TrimSpace(line[idx+1:])
		rhs = strings.Trim(rhs, "()")
		if rhs == "" || seen[rhs] {
			continue
		}
		seen[rhs] = true
		order = append(order, rhs)
	}
	return order
}

// unescapeContinuations joins backslash-newline continued lines into one
// logical line, the way make's own dependency reader does.
func unescapeContinuations(data string) string {
	return strings.ReplaceAll(strings.ReplaceAll(data, "\\\r\n", " "), "\\\n", " ")
}

// stripComments drops everything from an unescaped '#' to the end of each
// physical line, matching make's own "# starts a comment" rule. A
// backslash-escaped '#' is treated as a literal character, not a comment
// marker, so filenames containing '#' still round-trip.
func stripComments(data string) string {
	lines := strings.Split(data, "\n")
	for i, line := range lines {
		runes := []rune(line)
		for j := 0; j < len(runes); j++ {
			if runes[j] == '#' && (j == 0 || runes[j-1] != '\\') {
				lines[i] = string(runes[:j])
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

// splitEscapedSpaces splits on whitespace while treating a backslash-space
// as a literal space inside a single token, so paths containing spaces
// survive intact. A backslash-'#' likewise becomes a literal '#'.
func splitEscapedSpaces(s string) []string {
	var toks []string
	var cur strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\\' && i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '#') {
			cur.WriteRune(runes[i+1])
			i++
			continue
		}
		if r == ' ' || r == '\t' {
			if cur.Len() > 0 {
				toks = append(toks, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		toks = append(toks, cur.String())
	}
	return toks
}

// ReadDeps reads a dependency file at path, parses it per format, passes
// each token through filter (used to drop the primary source from its own
// dependency list), and interns every survivor as an Input/Actual artifact
// in store. It returns only the newly-relevant artifacts, in file order.
func ReadDeps(store *graph.Store, path string, format Format, filter func(string) bool) ([]*graph.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		logging.Get(logging.CategoryGraph).Error("reading dependency file %s: %v", path, err)
		return nil, err
	}

	var tokens []string
	switch format {
	case D:
		tokens = ParseD(string(data))
	default:
		tokens = ParseMake(string(data))
	}

	var out []*graph.Artifact
	for _, tok := range tokens {
		if filter != nil && !filter(tok) {
			continue
		}
		a, err := store.Intern(tok, graph.Actual, graph.Input)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	logging.GraphDebug("read %d dependencies from %s", len(out), path)
	return out, nil
}
