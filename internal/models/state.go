package models

// Phase identifies where the workflow is in the research sequence.
type Phase string

const (
	PhaseInit      Phase = "INIT"
	PhasePlanning  Phase = "PLANNING"
	PhaseSearch    Phase = "SEARCH"
	PhaseAnalysis  Phase = "ANALYSIS"
	PhaseCritique  Phase = "CRITIQUE"
	PhaseRevision  Phase = "REVISION"
	PhaseReporting Phase = "REPORTING"
	PhaseComplete  Phase = "COMPLETE"
	PhaseError     Phase = "ERROR"
)

// WorkflowState is the single mutable record of a research run. Only the
// orchestrator workflow writes it; observers read immutable snapshots.
type WorkflowState struct {
	UserQuery            string
	ResearchPlan         *ResearchPlan
	CurrentSubtopicIndex int
	Analyses             map[string]Analysis
	PapersBySubtopic     map[string][]Paper
	RevisionCount        int
	Phase                Phase
	CritiqueResults      *CritiqueResult
	FinalReport          string
	AgentsExecuted       []string
}

// NewWorkflowState returns a state reset to initial values for a fresh query.
func NewWorkflowState(query string) *WorkflowState {
	return &WorkflowState{
		UserQuery:        query,
		Analyses:         make(map[string]Analysis),
		PapersBySubtopic: make(map[string][]Paper),
		Phase:            PhaseInit,
	}
}

// SetPhase transitions the state machine.
func (s *WorkflowState) SetPhase(p Phase) {
	s.Phase = p
}

// RecordAgent appends an agent role to the executed list, once per role.
func (s *WorkflowState) RecordAgent(role string) {
	for _, a := range s.AgentsExecuted {
		if a == role {
			return
		}
	}
	s.AgentsExecuted = append(s.AgentsExecuted, role)
}

// TotalPapers counts papers across all sub-topics.
func (s *WorkflowState) TotalPapers() int {
	n := 0
	for _, papers := range s.PapersBySubtopic {
		n += len(papers)
	}
	return n
}

// Snapshot is a read-only view of the workflow state served to external
// observers (status queries, the Redis store). It never aliases the
// mutable maps.
type Snapshot struct {
	UserQuery            string   `json:"user_query"`
	Phase                Phase    `json:"phase"`
	NumSubtopics         int      `json:"num_subtopics"`
	CurrentSubtopicIndex int      `json:"current_subtopic_index"`
	CompletedAnalyses    int      `json:"completed_analyses"`
	PapersFound          int      `json:"papers_found"`
	RevisionCount        int      `json:"revision_count"`
	HasCritique          bool     `json:"has_critique"`
	HasReport            bool     `json:"has_report"`
	AgentsExecuted       []string `json:"agents_executed"`
}

// Snapshot produces the current observer view.
func (s *WorkflowState) Snapshot() Snapshot {
	numSubtopics := 0
	if s.ResearchPlan != nil {
		numSubtopics = len(s.ResearchPlan.SubTopics)
	}
	agents := make([]string, len(s.AgentsExecuted))
	copy(agents, s.AgentsExecuted)
	return Snapshot{
		UserQuery:            s.UserQuery,
		Phase:                s.Phase,
		NumSubtopics:         numSubtopics,
		CurrentSubtopicIndex: s.CurrentSubtopicIndex,
		CompletedAnalyses:    len(s.Analyses),
		PapersFound:          s.TotalPapers(),
		RevisionCount:        s.RevisionCount,
		HasCritique:          s.CritiqueResults != nil,
		HasReport:            s.FinalReport != "",
		AgentsExecuted:       agents,
	}
}
