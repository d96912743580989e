// Package errkit implements the error-handling design of spec §7: a
// closed taxonomy of five error kinds and a Rust-style reporter that
// renders a diagnostic with a caret under the offending source column.
// Grounded on the teacher's internal/errors package (ErrorLevel,
// CompilerError, ErrorReporter.FormatError), adapted to the five
// kinds this compiler actually raises instead of the teacher's
// contract-language semantic error codes.
package errkit

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"tinyssa/internal/ast"
)

// Kind is the closed taxonomy of spec §7.
type Kind string

const (
	Lexical  Kind = "lexical error"
	Parse    Kind = "parse error"
	Semantic Kind = "semantic error"
	IR       Kind = "internal compiler error"
	Alloc    Kind = "allocation error"
)

// Aborts reports whether a diagnostic of this kind aborts compilation.
// All five kinds do (spec §7); the predicate exists so callers never
// have to special-case it by hand.
func (k Kind) Aborts() bool { return true }

// Diagnostic is a single reported error. Expected/Found are populated
// for lexical and parse errors that name an expected-vs-found token
// (spec §7); they are empty otherwise.
type Diagnostic struct {
	Kind     Kind
	Message  string
	Position ast.Position
	Length   int
	Expected string
	Found    string
	Notes    []string
}

func (d *Diagnostic) Error() string {
	if d.Expected != "" || d.Found != "" {
		return fmt.Sprintf("%s: %s (expected %s, found %s) at %d:%d",
			d.Kind, d.Message, d.Expected, d.Found, d.Position.Line, d.Position.Column)
	}
	return fmt.Sprintf("%s: %s at %d:%d", d.Kind, d.Message, d.Position.Line, d.Position.Column)
}

func New(kind Kind, pos ast.Position, format string, args ...any) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...), Position: pos, Length: 1}
}

func Expect(kind Kind, pos ast.Position, expected, found string) *Diagnostic {
	return &Diagnostic{
		Kind:     kind,
		Message:  "unexpected token",
		Position: pos,
		Length:   len(found),
		Expected: expected,
		Found:    found,
	}
}

// Reporter renders diagnostics against one source file, in the style
// of the teacher's ErrorReporter.
type Reporter struct {
	filename string
	lines    []string
}

func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Format renders d as a Rust-style "kind: message" header, a
// "--> file:line:col" location line, the offending source line, and a
// caret underline.
func (r *Reporter) Format(d *Diagnostic) string {
	var b strings.Builder

	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()

	b.WriteString(fmt.Sprintf("%s: %s\n", red(string(d.Kind)), d.Message))
	if d.Expected != "" {
		b.WriteString(fmt.Sprintf("  expected %s, found %s\n", bold(d.Expected), bold(d.Found)))
	}

	width := len(fmt.Sprintf("%d", d.Position.Line))
	if width < 3 {
		width = 3
	}
	indent := strings.Repeat(" ", width)

	b.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n", indent, dim("-->"), r.filename, d.Position.Line, d.Position.Column))
	b.WriteString(fmt.Sprintf("%s %s\n", indent, dim("|")))

	if d.Position.Line >= 1 && d.Position.Line <= len(r.lines) {
		line := r.lines[d.Position.Line-1]
		b.WriteString(fmt.Sprintf("%s %s %s\n", bold(fmt.Sprintf("%*d", width, d.Position.Line)), dim("|"), line))

		length := d.Length
		if length <= 0 {
			length = 1
		}
		col := d.Position.Column - 1
		if col < 0 {
			col = 0
		}
		caret := strings.Repeat(" ", col) + red(strings.Repeat("^", length))
		b.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("|"), caret))
	}

	for _, note := range d.Notes {
		b.WriteString(fmt.Sprintf("%s %s %s %s\n", indent, dim("|"), color.New(color.FgBlue).Sprint("note:"), note))
	}

	return b.String()
}
