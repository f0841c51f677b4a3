// Package report holds the fixed layout of the final research report and
// the deterministic assembly used by chunked reporting mode.
package report

import (
	"fmt"
	"strings"
)

// SectionOrder is the fixed order sections appear in the final document.
var SectionOrder = []string{
	"Executive Summary",
	"Introduction",
	"Main Findings",
	"Cross-Study Synthesis",
	"Research Gaps",
	"Conclusion",
}

// Placeholder replaces a section whose generation failed. Failed sections
// are rendered explicitly, never omitted.
const Placeholder = "*(This section was not generated)*"

// Title renders the report title line.
func Title(query string) string {
	return fmt.Sprintf("# Research Report: %s", query)
}

// Assemble concatenates generated sections in the fixed order under the
// report title. Missing or empty sections get the explicit placeholder.
func Assemble(query string, sections map[string]string) string {
	parts := make([]string, 0, 2*len(SectionOrder)+1)
	parts = append(parts, Title(query)+"\n")
	for _, name := range SectionOrder {
		parts = append(parts, fmt.Sprintf("\n## %s\n", name))
		if content := strings.TrimSpace(sections[name]); content != "" {
			parts = append(parts, content)
		} else {
			parts = append(parts, Placeholder)
		}
	}
	return strings.Join(parts, "\n")
}

// ValidSection reports whether name is one of the fixed sections.
func ValidSection(name string) bool {
	for _, s := range SectionOrder {
		if s == name {
			return true
		}
	}
	return false
}
