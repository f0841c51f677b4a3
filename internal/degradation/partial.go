package degradation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scholarflow/orchestrator/internal/models"
)

// Report builders for degraded completions. These are pure string
// assembly so the workflow can call them directly without an activity.

// BuildPartialReport assembles a best-effort markdown report from whatever
// analyses exist when the reporter cannot run. Sub-topics appear in plan
// order when a plan is available, otherwise sorted by id for determinism.
func BuildPartialReport(query string, plan *models.ResearchPlan, analyses map[string]models.Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Research Report: %s\n\n", query)
	b.WriteString("> Partial report: the full reporting phase did not complete. ")
	b.WriteString("Findings below are assembled directly from the completed analyses.\n")

	if len(analyses) == 0 {
		b.WriteString("\nNo analyses were completed before the workflow stopped.\n")
		return b.String()
	}

	for _, id := range orderedSubtopicIDs(plan, analyses) {
		analysis, ok := analyses[id]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", subtopicHeading(plan, id))

		switch {
		case analysis.Skipped:
			fmt.Fprintf(&b, "*Skipped: %s*\n", analysis.SkipReason)
		case analysis.ParseError:
			b.WriteString("*Analysis could not be parsed; raw analyzer output follows.*\n\n")
			b.WriteString(strings.TrimSpace(analysis.RawAnalysis))
			b.WriteString("\n")
		default:
			writeStructuredAnalysis(&b, analysis)
		}
	}
	return b.String()
}

// BuildErrorReport produces the explicit error document returned when the
// run fails before any analysis exists.
func BuildErrorReport(query string, phase models.Phase, reason string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Research Report: %s\n\n", query)
	b.WriteString("## Workflow Error\n\n")
	fmt.Fprintf(&b, "The research workflow failed during the %s phase.\n\n", phase)
	fmt.Fprintf(&b, "Reason: %s\n\n", reason)
	b.WriteString("No analyses were available to assemble a partial report. Please retry the query.\n")
	return b.String()
}

func orderedSubtopicIDs(plan *models.ResearchPlan, analyses map[string]models.Analysis) []string {
	if plan != nil {
		ids := make([]string, 0, len(plan.SubTopics))
		for _, st := range plan.SubTopics {
			ids = append(ids, st.ID)
		}
		return ids
	}
	ids := make([]string, 0, len(analyses))
	for id := range analyses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func subtopicHeading(plan *models.ResearchPlan, id string) string {
	if plan != nil {
		for _, st := range plan.SubTopics {
			if st.ID == id && st.Description != "" {
				return st.Description
			}
		}
	}
	return id
}

func writeStructuredAnalysis(b *strings.Builder, analysis models.Analysis) {
	for _, pa := range analysis.PapersAnalyzed {
		if pa.Title != "" {
			fmt.Fprintf(b, "### %s\n\n", pa.Title)
		}
		for _, f := range pa.KeyFindings {
			fmt.Fprintf(b, "- %s\n", f)
		}
		if len(pa.KeyFindings) > 0 {
			b.WriteString("\n")
		}
	}
	if s := analysis.Synthesis; s != nil {
		if len(s.CommonThemes) > 0 {
			b.WriteString("**Common themes:**\n\n")
			for _, t := range s.CommonThemes {
				fmt.Fprintf(b, "- %s\n", t)
			}
			b.WriteString("\n")
		}
		if len(s.ResearchGaps) > 0 {
			b.WriteString("**Research gaps:**\n\n")
			for _, g := range s.ResearchGaps {
				fmt.Fprintf(b, "- %s\n", g)
			}
			b.WriteString("\n")
		}
	}
}
