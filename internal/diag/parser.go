package diag

import (
	"regexp"
	"strconv"
	"strings"
)

// diagLine matches "FILE:LINE:COLUMN: SEVERITY: MESSAGE", the shape shared
// by GCC <=6, GCC >=7 and Clang >=5.
var diagLine = regexp.MustCompile(`^([^:\r\n]+):(\d+):(\d+):\s*([^:\r\n]+?):\s*(.*)$`)

// fixitLine matches `fix-it:"FILE":{L1:C1-L2:C2}:"REPLACEMENT"`.
var fixitLine = regexp.MustCompile(`^fix-it:"((?:[^"\\]|\\.)*)":\{(\d+):(\d+)-(\d+):(\d+)\}:"((?:[^"\\]|\\.)*)"$`)

// underlineLine matches a caret/tilde annotation line following a
// diagnostic, e.g. "       |         ^~~". The echoed source line above it
// ("    42 |     foo(bar);") does not match and is dropped by Parse's
// fall-through.
var underlineLine = regexp.MustCompile(`^\s*(?:\d+\s*)?\|\s*[ ~^]+\s*$`)

// Parse parses GCC/Clang-style stderr text into a Diagnostics bundle.
// Unrecognised lines (banners, underline/caret annotations, blank lines)
// are skipped. A fix-it line attaches to the most recently parsed
// diagnostic.
func Parse(text string) Diagnostics {
	var out Diagnostics
	var current *Diagnostic

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}

		if m := fixitLine.FindStringSubmatch(line); m != nil {
			fix := FixingSuggestion{
				File: unescape(m[1]),
				Span: TextSpan{
					Start: TextPoint{Line: mustU32(m[2]), Column: mustU32(m[3])},
					End:   TextPoint{Line: mustU32(m[4]), Column: mustU32(m[5])},
				},
				Text: unescape(m[6]),
			}
			if current != nil {
				current.FixIts = append(current.FixIts, fix)
			}
			continue
		}

		if m := diagLine.FindStringSubmatch(line); m != nil {
			d := Diagnostic{
				Severity: ParseSeverity(m[4]),
				Message:  strings.TrimSpace(m[5]),
				Locations: []Location{{
					File:  m[1],
					Point: &TextPoint{Line: mustU32(m[2]), Column: mustU32(m[3])},
				}},
			}
			out = append(out, d)
			current = &out[len(out)-1]
			continue
		}

		if underlineLine.MatchString(line) {
			continue
		}
		// Anything else (continuation text, banners) is dropped; the
		// structured record already captured file/line/column/message.
	}
	return out
}

func mustU32(s string) uint32 {
	v, _ := strconv.ParseUint(s, 10, 32)
	return uint32(v)
}

// unescape reverses the backslash-escaping used in fix-it quoted strings:
// \" \\ \: \space \t \r \n.
func unescape(s string) string {
	var b strings.Builder
	esc := false
	for _, r := range s {
		if esc {
			switch r {
			case '"':
				b.WriteRune('"')
			case '\\':
				b.WriteRune('\\')
			case ':':
				b.WriteRune(':')
			case ' ':
				b.WriteRune(' ')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			case 'n':
				b.WriteRune('\n')
			default:
				b.WriteRune(r)
			}
			esc = false
			continue
		}
		if r == '\\' {
			esc = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Format renders a FixingSuggestion back into its wire shape, the inverse
// of the fix-it branch of Parse, for the parse/format/parse round-trip
// property.
func (f FixingSuggestion) Format() string {
	var b strings.Builder
	b.WriteString("fix-it:\"")
	b.WriteString(escape(f.File))
	b.WriteString("\":{")
	b.WriteString(strconv.FormatUint(uint64(f.Span.Start.Line), 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(uint64(f.Span.Start.Column), 10))
	b.WriteByte('-')
	b.WriteString(strconv.FormatUint(uint64(f.Span.End.Line), 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(uint64(f.Span.End.Column), 10))
	b.WriteString("}:\"")
	b.WriteString(escape(f.Text))
	b.WriteByte('"')
	return b.String()
}

func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '"', '\\', ':':
			b.WriteByte('\\')
			b.WriteRune(r)
		case ' ':
			b.WriteString(`\ `)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
