package models

import "fmt"

// Research approach types produced by the planner.
const (
	ApproachFocusedDeepDive     = "focused_deep_dive"
	ApproachComparativeAnalysis = "comparative_analysis"
	ApproachComprehensiveSurvey = "comprehensive_survey"
)

// Paper sources.
const (
	SourceArxiv           = "arxiv"
	SourceSemanticScholar = "semantic_scholar"
)

// Critique verdicts.
const (
	VerdictApproved = "APPROVED"
	VerdictRevise   = "REVISE"
)

// Revision actions emitted by the critique agent.
const (
	RevisionActionSearchMore = "search_more_papers"
	RevisionActionReanalyze  = "re_analyze"
)

// MaxRevisionCycles is the absolute cap on critique-driven revision passes.
// After the cap the workflow force-approves and proceeds to reporting.
const MaxRevisionCycles = 2

// MinQualityScore is the quality bar communicated to the critique agent.
const MinQualityScore = 0.75

// SearchGuidance narrows what the searcher and analyzer should emphasize
// for a single sub-topic.
type SearchGuidance struct {
	FocusOn     string `json:"focus_on"`
	MustInclude string `json:"must_include"`
	Avoid       string `json:"avoid"`
}

// SubTopic is one independently researchable slice of the user query.
// Read-only after plan creation.
type SubTopic struct {
	ID                string         `json:"id"`
	Description       string         `json:"description"`
	Priority          int            `json:"priority"`
	SuccessCriteria   string         `json:"success_criteria"`
	SuggestedKeywords []string       `json:"suggested_keywords"`
	SearchGuidance    SearchGuidance `json:"search_guidance"`
}

// ResearchPlan is the planner's decomposition of the user query.
// Created once per run and immutable thereafter.
type ResearchPlan struct {
	ResearchApproach string     `json:"research_approach"`
	SubTopics        []SubTopic `json:"sub_topics"`
}

// Validate enforces the structural rules that make a plan usable: at least
// one sub-topic, unique ids, and the fields every downstream phase reads.
// A plan failing validation is fatal for the run.
func (p *ResearchPlan) Validate() error {
	if p == nil {
		return fmt.Errorf("plan is nil")
	}
	if len(p.SubTopics) == 0 {
		return fmt.Errorf("plan must contain at least one sub-topic")
	}
	seen := make(map[string]bool, len(p.SubTopics))
	for i, st := range p.SubTopics {
		if st.ID == "" {
			return fmt.Errorf("sub-topic %d missing id", i)
		}
		if seen[st.ID] {
			return fmt.Errorf("duplicate sub-topic id %q", st.ID)
		}
		seen[st.ID] = true
		if st.Description == "" {
			return fmt.Errorf("sub-topic %q missing description", st.ID)
		}
		if len(st.SuggestedKeywords) == 0 {
			return fmt.Errorf("sub-topic %q missing suggested_keywords", st.ID)
		}
		g := st.SearchGuidance
		if g.FocusOn == "" || g.MustInclude == "" || g.Avoid == "" {
			return fmt.Errorf("sub-topic %q has incomplete search_guidance", st.ID)
		}
	}
	return nil
}

// Paper is a single search result. Enrichment fields are derived once by
// the path enricher; an empty string means the id could not be resolved.
type Paper struct {
	ID                  string   `json:"id"`
	Title               string   `json:"title"`
	Authors             []string `json:"authors"`
	Abstract            string   `json:"abstract"`
	Source              string   `json:"source"`
	PublishedDate       string   `json:"published_date"`
	PDFURL              string   `json:"pdf_url"`
	RelevanceScore      string   `json:"relevance_score"`
	SelectionReason     string   `json:"selection_reason"`
	ProcessingInitiated bool     `json:"processing_initiated"`

	// Derived by enrichment.
	ArxivID           string `json:"arxiv_id,omitempty"`
	ContentTextPath   string `json:"content_text_path,omitempty"`
	ContentChunksPath string `json:"content_chunks_path,omitempty"`
}

// Enriched reports whether the paper's id resolved to a storage path.
func (p *Paper) Enriched() bool {
	return p.ContentTextPath != ""
}

// SearchResult is the searcher agent's structured output for one sub-topic.
type SearchResult struct {
	SubTopicID      string   `json:"sub_topic_id"`
	SelectedPapers  []Paper  `json:"selected_papers"`
	PapersProcessed int      `json:"papers_processed"`
	SearchStrategy  []string `json:"search_strategy"`
}

// PaperAnalysis captures the analyzer's per-paper findings.
type PaperAnalysis struct {
	ContentPath    string   `json:"content_path"`
	Title          string   `json:"title"`
	KeyFindings    []string `json:"key_findings"`
	Methodology    string   `json:"methodology"`
	Contributions  []string `json:"contributions"`
	Limitations    string   `json:"limitations"`
	RelevanceScore string   `json:"relevance_score"`
}

// Synthesis is the analyzer's cross-paper view within one sub-topic.
type Synthesis struct {
	CommonThemes      []string `json:"common_themes"`
	Contradictions    []string `json:"contradictions"`
	ResearchGaps      []string `json:"research_gaps"`
	QualityAssessment string   `json:"quality_assessment"`
}

// Analysis is the stored analyzer output for one sub-topic. On parse
// failure only RawAnalysis is populated and ParseError is set; the entry
// is kept rather than discarded. Skipped entries record why a sub-topic
// produced no analysis at all.
type Analysis struct {
	AnalysisID      string          `json:"analysis_id,omitempty"`
	PapersAnalyzed  []PaperAnalysis `json:"papers_analyzed,omitempty"`
	Synthesis       *Synthesis      `json:"synthesis,omitempty"`
	Recommendations []string        `json:"recommendations,omitempty"`

	RawAnalysis string `json:"raw_analysis,omitempty"`
	ParseError  bool   `json:"parse_error,omitempty"`

	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// CriterionScore is one dimension of the critique evaluation.
type CriterionScore struct {
	Score      float64 `json:"score"`
	Assessment string  `json:"assessment"`
}

// CritiqueEvaluation holds the per-criterion scores.
type CritiqueEvaluation struct {
	Completeness CriterionScore `json:"completeness"`
	Accuracy     CriterionScore `json:"accuracy"`
	Balance      CriterionScore `json:"balance"`
	Depth        CriterionScore `json:"depth"`
	Currency     CriterionScore `json:"currency"`
}

// RequiredRevision is one actionable revision demanded by the critique.
type RequiredRevision struct {
	Action string `json:"action"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// CritiqueResult is the critique agent's structured verdict. The latest
// value is the one consulted for branching.
type CritiqueResult struct {
	Verdict             string             `json:"verdict"`
	OverallQualityScore float64            `json:"overall_quality_score"`
	Evaluation          CritiqueEvaluation `json:"evaluation"`
	RequiredRevisions   []RequiredRevision `json:"required_revisions"`

	RawCritique   string `json:"raw_critique,omitempty"`
	ParseError    bool   `json:"parse_error,omitempty"`
	ForceApproved bool   `json:"force_approved,omitempty"`
}
