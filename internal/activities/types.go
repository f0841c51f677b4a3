package activities

import "github.com/scholarflow/orchestrator/internal/models"

// PlanResearchInput is the input for research planning.
type PlanResearchInput struct {
	Query string
}

// PlanResearchResult carries the validated research plan. Planning is the
// one phase whose failure is fatal, so there is no fallback shape here.
type PlanResearchResult struct {
	Plan *models.ResearchPlan
}

// SearchPapersInput is the input for a per-subtopic paper search.
type SearchPapersInput struct {
	SubTopic models.SubTopic
}

// SearchPapersResult is the searcher output. ParseError marks a response
// that was not the expected schema; the paper list is then empty and the
// sub-topic degrades to skipped.
type SearchPapersResult struct {
	SubTopicID     string
	Papers         []models.Paper
	SearchStrategy []string
	ParseError     bool
}

// EnrichPapersInput is the input for storage-path enrichment.
type EnrichPapersInput struct {
	Papers []models.Paper
}

// EnrichPapersResult returns every input paper, enriched where the id
// resolved. Resolved counts papers with a usable storage path.
type EnrichPapersResult struct {
	Papers   []models.Paper
	Resolved int
}

// AnalyzePapersInput is the input for per-subtopic analysis.
type AnalyzePapersInput struct {
	SubTopic     models.SubTopic
	ContentPaths []string
}

// AnalyzePapersResult carries the analysis or its raw-text fallback.
type AnalyzePapersResult struct {
	Analysis models.Analysis
}

// CritiqueAnalysesInput is the input for the quality critique.
type CritiqueAnalysesInput struct {
	Query         string
	Plan          *models.ResearchPlan
	Analyses      map[string]models.Analysis
	RevisionCount int
}

// CritiqueAnalysesResult carries the verdict. Unparseable critique output
// arrives here already defaulted to APPROVED (fail-open).
type CritiqueAnalysesResult struct {
	Critique models.CritiqueResult
}

// GenerateReportInput is the input for single-call report generation.
type GenerateReportInput struct {
	Query    string
	Plan     *models.ResearchPlan
	Analyses map[string]models.Analysis
	Critique *models.CritiqueResult
}

// GenerateReportResult is the full markdown report.
type GenerateReportResult struct {
	Markdown string
}

// WriteReportSectionInput is the input for one section in chunked
// reporting mode. Section must be one of report.SectionOrder.
type WriteReportSectionInput struct {
	Section  string
	Query    string
	Plan     *models.ResearchPlan
	Analyses map[string]models.Analysis
	Critique *models.CritiqueResult
}

// WriteReportSectionResult is one section's markdown body, without its
// header (the workflow adds headers during assembly).
type WriteReportSectionResult struct {
	Section  string
	Markdown string
}

// PersistWorkflowStateInput is the input for a state snapshot write.
type PersistWorkflowStateInput struct {
	WorkflowID string
	Snapshot   models.Snapshot
}

// RecordResearchRunInput is the input for the run history insert.
type RecordResearchRunInput struct {
	WorkflowID    string
	Query         string
	Phase         string
	Success       bool
	PapersFound   int
	RevisionCount int
	QualityScore  float64
	ReportLength  int
	DurationMs    int64
}
