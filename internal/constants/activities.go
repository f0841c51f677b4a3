package constants

// Activity names used for workflow registration and execution.
// Using constants eliminates magic strings and ensures consistency.
const (
	// Research phase activities
	PlanResearchActivity     = "PlanResearch"
	SearchPapersActivity     = "SearchPapers"
	EnrichPapersActivity     = "EnrichPapers"
	AnalyzePapersActivity    = "AnalyzePapers"
	CritiqueAnalysesActivity = "CritiqueAnalyses"

	// Reporting activities
	GenerateReportActivity     = "GenerateReport"
	WriteReportSectionActivity = "WriteReportSection"

	// Persistence activities
	PersistWorkflowStateActivity = "PersistWorkflowState"
	RecordResearchRunActivity    = "RecordResearchRun"
)

// ResearchTaskQueue is the Temporal task queue the orchestrator worker polls.
const ResearchTaskQueue = "scholarflow-research"

// ResearchStatusQuery is the workflow query name exposing the state snapshot.
const ResearchStatusQuery = "getResearchStatus"
