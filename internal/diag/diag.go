// Package diag models compiler diagnostics: structured records with
// severity, source locations, nested children and fix-it suggestions, and
// the parser that turns GCC/Clang stderr into them.
package diag

import "strings"

// Severity ranks a diagnostic's seriousness. Lower values are worse;
// WorstSeverity folds a Diagnostics slice with min.
type Severity int

const (
	Fatal Severity = iota
	Error
	Warning
	Note
	Debug
)

func (s Severity) String() string {
	switch s {
	case Fatal:
		return "fatal"
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	case Debug:
		return "debug"
	default:
		return "fatal"
	}
}

// ParseSeverity matches a severity token the way GCC/Clang print it,
// laxly: a token beginning with "fatal", "internal" or "unimplement" is
// Fatal; "error" -> Error; "warn" -> Warning; "note"/"remark" -> Note;
// anything else defaults to Fatal (matches real toolchains that return 0
// on some fatal parse errors - treat unknown severities as the worst case).
func ParseSeverity(token string) Severity {
	t := strings.ToLower(strings.TrimSpace(token))
	switch {
	case strings.HasPrefix(t, "fatal"), strings.HasPrefix(t, "internal"), strings.HasPrefix(t, "unimplement"):
		return Fatal
	case strings.HasPrefix(t, "error"):
		return Error
	case strings.HasPrefix(t, "warn"):
		return Warning
	case strings.HasPrefix(t, "note"), strings.HasPrefix(t, "remark"):
		return Note
	default:
		return Fatal
	}
}

// TextPoint is a line:column source position.
type TextPoint struct {
	Line   uint32
	Column uint32
}

// TextSpan is a half-open range between two TextPoints.
type TextSpan struct {
	Start TextPoint
	End   TextPoint
}

// Location anchors a diagnostic to a file, optionally with a span, a
// single point, and a descriptive label.
type Location struct {
	File  string
	Span  *TextSpan
	Point *TextPoint
	Label string
}

// FixingSuggestion is a machine-applicable fix: replace Span in File with
// Text.
type FixingSuggestion struct {
	File string
	Span TextSpan
	Text string
}

// Diagnostic is one structured compiler message.
type Diagnostic struct {
	Severity  Severity
	Message   string
	Locations []Location
	Children  Diagnostics
	FixIts    []FixingSuggestion
}

// Diagnostics is an ordered bundle of Diagnostic records produced by a
// single rule invocation.
type Diagnostics []Diagnostic

// WorstSeverity returns the most severe (numerically lowest) Severity
// across the bundle, or Debug for an empty bundle.
func (d Diagnostics) WorstSeverity() Severity {
	worst := Debug
	for _, diag := range d {
		if diag.Severity < worst {
			worst = diag.Severity
		}
	}
	return worst
}

// IsFailed reports whether the bundle's worst severity is Error or worse.
func (d Diagnostics) IsFailed() bool {
	return d.WorstSeverity() <= Error
}

// Summary renders a short human-readable summary for error messages.
func (d Diagnostics) Summary() string {
	var b strings.Builder
	for i, diag := range d {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(diag.Severity.String())
		b.WriteString(": ")
		b.WriteString(diag.Message)
	}
	return b.String()
}
