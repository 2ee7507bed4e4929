// Package source implements the compiled backend of ggcalc: it emits one
// WGSL switch case per expression and splices the result into a shader
// template.
package source

import (
	"errors"
	"strconv"
	"strings"
)

// Placeholder marks where the combined cases are spliced into a template.
// It is a WGSL line comment so an unspliced template still parses.
const Placeholder = "//@@cases@@"

// ErrNoPlaceholder is returned by Splice for a template without Placeholder.
var ErrNoPlaceholder = errors.New("source: template has no case placeholder")

// Entry is the compiled-mode contribution of one expression.
type Entry struct {
	ID   int
	Code string
}

// Artifact is the output of Compile.
type Artifact struct {
	// Combined holds the cases, ready to be spliced into a template.
	Combined string

	// Cases lists the ids that received a case, ascending.
	Cases []int
}

// Compile emits one case per entry with non-empty code. Entries must be in
// ascending id order. Entries without code get no case; the template's
// default clause decides what an unmatched id evaluates to.
//
// Compile is a pure function of its input.
func Compile(entries []Entry) Artifact {
	var b strings.Builder
	var cases []int
	for _, e := range entries {
		code := strings.TrimSpace(e.Code)
		if code == "" {
			continue
		}
		cases = append(cases, e.ID)

		b.WriteString("        case ")
		b.WriteString(strconv.Itoa(e.ID))
		b.WriteString("u: {\n")
		for _, line := range strings.Split(code, "\n") {
			b.WriteString("            ")
			b.WriteString(strings.TrimSpace(line))
			b.WriteByte('\n')
		}
		b.WriteString("            break;\n")
		b.WriteString("        }\n")
	}
	return Artifact{Combined: b.String(), Cases: cases}
}

// Splice replaces the placeholder line of template with combined.
func Splice(template, combined string) (string, error) {
	i := strings.Index(template, Placeholder)
	if i < 0 {
		return "", ErrNoPlaceholder
	}
	// Drop the whole placeholder line, including its indentation.
	start := strings.LastIndexByte(template[:i], '\n') + 1
	end := i + len(Placeholder)
	if end < len(template) && template[end] == '\n' {
		end++
	}
	return template[:start] + combined + template[end:], nil
}
