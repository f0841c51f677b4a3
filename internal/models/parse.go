package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Agent responses are LLM text that usually, but not always, contains the
// expected JSON object, often wrapped in markdown fences or prose. Each
// schema gets one explicit parse function; callers branch on the returned
// tag instead of recovering from decode panics.

// extractJSONObject returns the first balanced top-level JSON object in s,
// tolerating ```json fences and surrounding prose. Returns "" when no
// object is present.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// ParsePlan decodes and validates a planner response. Plan failures are
// fatal for the run, so this returns an error instead of a fallback.
func ParsePlan(raw string) (*ResearchPlan, error) {
	obj := extractJSONObject(raw)
	if obj == "" {
		return nil, fmt.Errorf("planner response contains no JSON object")
	}

	// Some planner variants wrap the plan under a top-level "plan" key.
	var wrapper struct {
		Plan *ResearchPlan `json:"plan"`
	}
	if err := json.Unmarshal([]byte(obj), &wrapper); err == nil && wrapper.Plan != nil && len(wrapper.Plan.SubTopics) > 0 {
		if err := wrapper.Plan.Validate(); err != nil {
			return nil, fmt.Errorf("invalid plan: %w", err)
		}
		return wrapper.Plan, nil
	}

	var plan ResearchPlan
	if err := json.Unmarshal([]byte(obj), &plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return &plan, nil
}

// ParseSearchResult decodes a searcher response. A malformed response is
// not fatal: the sub-topic degrades to an empty paper list.
func ParseSearchResult(raw string) (SearchResult, bool) {
	obj := extractJSONObject(raw)
	if obj == "" {
		return SearchResult{}, false
	}
	var res SearchResult
	if err := json.Unmarshal([]byte(obj), &res); err != nil {
		return SearchResult{}, false
	}
	return res, true
}

// ParseAnalysis decodes an analyzer response, falling back to a raw-text
// wrapper tagged with ParseError when the response is not the expected
// schema. The fallback is stored, never discarded.
func ParseAnalysis(raw string) Analysis {
	obj := extractJSONObject(raw)
	if obj != "" {
		var a Analysis
		if err := json.Unmarshal([]byte(obj), &a); err == nil &&
			(len(a.PapersAnalyzed) > 0 || a.Synthesis != nil) {
			return a
		}
	}
	return Analysis{RawAnalysis: raw, ParseError: true}
}

// ParseCritique decodes a critique response. Unparseable output defaults
// to an APPROVED verdict (fail-open): the workflow prefers finishing with
// possibly-lower quality over stalling on one bad model response.
func ParseCritique(raw string) CritiqueResult {
	obj := extractJSONObject(raw)
	if obj != "" {
		var c CritiqueResult
		if err := json.Unmarshal([]byte(obj), &c); err == nil &&
			(c.Verdict == VerdictApproved || c.Verdict == VerdictRevise) {
			return c
		}
	}
	return CritiqueResult{
		Verdict:     VerdictApproved,
		RawCritique: raw,
		ParseError:  true,
	}
}
