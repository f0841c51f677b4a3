// Package registry binds workflows and activities to a Temporal worker.
// Activities register under explicit names so workflows can invoke them
// by constant instead of by function reference.
package registry

import (
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/scholarflow/orchestrator/internal/activities"
	"github.com/scholarflow/orchestrator/internal/constants"
	"github.com/scholarflow/orchestrator/internal/workflows"
)

// Registry wires the research workflow and its activity set onto a worker.
type Registry struct {
	activities *activities.Activities
	logger     *zap.Logger
}

// New builds a registry around a constructed activity set.
func New(acts *activities.Activities, logger *zap.Logger) *Registry {
	return &Registry{activities: acts, logger: logger}
}

// RegisterWorkflows registers all workflow definitions.
func (r *Registry) RegisterWorkflows(w worker.Worker) {
	r.logger.Info("Registering workflows")
	w.RegisterWorkflow(workflows.ResearchWorkflow)
}

// RegisterActivities registers every activity under its invocation name.
func (r *Registry) RegisterActivities(w worker.Worker) {
	r.logger.Info("Registering activities")

	w.RegisterActivityWithOptions(r.activities.PlanResearch, activity.RegisterOptions{Name: constants.PlanResearchActivity})
	w.RegisterActivityWithOptions(r.activities.SearchPapers, activity.RegisterOptions{Name: constants.SearchPapersActivity})
	w.RegisterActivityWithOptions(r.activities.EnrichPapers, activity.RegisterOptions{Name: constants.EnrichPapersActivity})
	w.RegisterActivityWithOptions(r.activities.AnalyzePapers, activity.RegisterOptions{Name: constants.AnalyzePapersActivity})
	w.RegisterActivityWithOptions(r.activities.CritiqueAnalyses, activity.RegisterOptions{Name: constants.CritiqueAnalysesActivity})
	w.RegisterActivityWithOptions(r.activities.GenerateReport, activity.RegisterOptions{Name: constants.GenerateReportActivity})
	w.RegisterActivityWithOptions(r.activities.WriteReportSection, activity.RegisterOptions{Name: constants.WriteReportSectionActivity})
	w.RegisterActivityWithOptions(r.activities.PersistWorkflowState, activity.RegisterOptions{Name: constants.PersistWorkflowStateActivity})
	w.RegisterActivityWithOptions(r.activities.RecordResearchRun, activity.RegisterOptions{Name: constants.RecordResearchRunActivity})
}
