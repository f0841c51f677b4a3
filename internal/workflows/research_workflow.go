package workflows

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/scholarflow/orchestrator/internal/activities"
	"github.com/scholarflow/orchestrator/internal/agents"
	"github.com/scholarflow/orchestrator/internal/constants"
	"github.com/scholarflow/orchestrator/internal/degradation"
	"github.com/scholarflow/orchestrator/internal/models"
	"github.com/scholarflow/orchestrator/internal/report"
)

// ResearchWorkflow orchestrates a full research run: plan the query into
// sub-topics, search and analyze each one, loop through critique-driven
// revisions, and generate the final report. The workflow owns all state;
// agents are stateless activities reached over the task queue.
//
// Failures degrade instead of cascading: an unusable plan is the only
// fatal error. A sub-topic that cannot be searched or analyzed is recorded
// as skipped, an unreachable critique fails open to APPROVED, and a failed
// report falls back to a partial report built from whatever analyses exist.
func ResearchWorkflow(ctx workflow.Context, input ResearchInput) (ResearchResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting ResearchWorkflow", "query", input.Query)

	startedAt := workflow.Now(ctx)
	state := models.NewWorkflowState(input.Query)

	if err := workflow.SetQueryHandler(ctx, constants.ResearchStatusQuery, func() (models.Snapshot, error) {
		return state.Snapshot(), nil
	}); err != nil {
		return ResearchResult{}, fmt.Errorf("register status query: %w", err)
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	// Planning. The one fatal phase: without a plan nothing downstream
	// can run, so a failure here produces an error report and stops.
	state.SetPhase(models.PhasePlanning)
	persistState(ctx, state)

	var planResult activities.PlanResearchResult
	err := workflow.ExecuteActivity(ctx, constants.PlanResearchActivity, activities.PlanResearchInput{
		Query: input.Query,
	}).Get(ctx, &planResult)
	if err != nil {
		logger.Error("Planning failed, run cannot proceed", "error", err)
		state.SetPhase(models.PhaseError)
		state.FinalReport = degradation.BuildErrorReport(input.Query, models.PhasePlanning, err.Error())
		finishRun(ctx, state, startedAt, 0, len(state.FinalReport))
		return ResearchResult{
			Report:   state.FinalReport,
			Success:  false,
			Metadata: runMetadata(state, 0),
		}, nil
	}
	state.ResearchPlan = planResult.Plan
	state.RecordAgent(agents.RolePlanner)
	logger.Info("Plan created", "sub_topics", len(planResult.Plan.SubTopics))

	// Search and analyze each sub-topic in plan order.
	analysisIterations := 0
	for i, st := range state.ResearchPlan.SubTopics {
		state.CurrentSubtopicIndex = i
		researchSubTopic(ctx, state, st)
		// The index moves past a sub-topic only once it has been searched
		// and analyzed, so it equals len(SubTopics) when the loop finishes.
		state.CurrentSubtopicIndex = i + 1
		analysisIterations++
		persistState(ctx, state)
	}

	// Critique loop. REVISE verdicts drive targeted revision passes until
	// approval or the cycle cap, whichever comes first.
	for {
		state.SetPhase(models.PhaseCritique)
		persistState(ctx, state)

		var critiqueResult activities.CritiqueAnalysesResult
		err := workflow.ExecuteActivity(ctx, constants.CritiqueAnalysesActivity, activities.CritiqueAnalysesInput{
			Query:         input.Query,
			Plan:          state.ResearchPlan,
			Analyses:      state.Analyses,
			RevisionCount: state.RevisionCount,
		}).Get(ctx, &critiqueResult)
		if err != nil {
			// Fail open: an unreachable critique must not sink the run.
			logger.Warn("Critique unavailable, proceeding as approved", "error", err)
			state.CritiqueResults = &models.CritiqueResult{
				Verdict:       models.VerdictApproved,
				ForceApproved: true,
			}
			break
		}
		state.CritiqueResults = &critiqueResult.Critique
		state.RecordAgent(agents.RoleCritique)

		if critiqueResult.Critique.Verdict != models.VerdictRevise {
			break
		}
		if state.RevisionCount >= models.MaxRevisionCycles {
			logger.Warn("Revision cap reached, force-approving",
				"revision_count", state.RevisionCount)
			state.CritiqueResults.Verdict = models.VerdictApproved
			state.CritiqueResults.ForceApproved = true
			break
		}

		state.RevisionCount++
		state.SetPhase(models.PhaseRevision)
		persistState(ctx, state)
		logger.Info("Revision cycle starting",
			"cycle", state.RevisionCount,
			"revisions", len(critiqueResult.Critique.RequiredRevisions))

		for _, rev := range critiqueResult.Critique.RequiredRevisions {
			applyRevision(ctx, state, rev)
			analysisIterations++
		}
	}

	// Reporting.
	state.SetPhase(models.PhaseReporting)
	persistState(ctx, state)
	state.FinalReport = generateReport(ctx, state, input)

	state.SetPhase(models.PhaseComplete)
	quality := 0.0
	if state.CritiqueResults != nil {
		quality = state.CritiqueResults.OverallQualityScore
	}
	finishRun(ctx, state, startedAt, quality, len(state.FinalReport))

	logger.Info("ResearchWorkflow completed",
		"papers_found", state.TotalPapers(),
		"revision_count", state.RevisionCount,
		"report_length", len(state.FinalReport))

	return ResearchResult{
		Report:   state.FinalReport,
		Success:  true,
		Metadata: runMetadata(state, analysisIterations),
	}, nil
}

// researchSubTopic runs the search -> enrich -> analyze pipeline for one
// sub-topic. Every failure path stores a skipped analysis entry so the
// critique and reporter see the full plan, gaps included.
func researchSubTopic(ctx workflow.Context, state *models.WorkflowState, st models.SubTopic) {
	logger := workflow.GetLogger(ctx)

	state.SetPhase(models.PhaseSearch)
	var searchResult activities.SearchPapersResult
	err := workflow.ExecuteActivity(ctx, constants.SearchPapersActivity, activities.SearchPapersInput{
		SubTopic: st,
	}).Get(ctx, &searchResult)
	if err != nil {
		logger.Warn("Search failed, skipping sub-topic", "sub_topic", st.ID, "error", err)
		state.Analyses[st.ID] = models.Analysis{Skipped: true, SkipReason: "search failed: " + err.Error()}
		return
	}
	state.RecordAgent(agents.RoleSearcher)
	if len(searchResult.Papers) == 0 {
		reason := "no papers found"
		if searchResult.ParseError {
			reason = "searcher returned unusable output"
		}
		logger.Warn("Nothing to analyze, skipping sub-topic", "sub_topic", st.ID, "reason", reason)
		state.Analyses[st.ID] = models.Analysis{Skipped: true, SkipReason: reason}
		return
	}

	var enrichResult activities.EnrichPapersResult
	err = workflow.ExecuteActivity(ctx, constants.EnrichPapersActivity, activities.EnrichPapersInput{
		Papers: searchResult.Papers,
	}).Get(ctx, &enrichResult)
	if err != nil {
		// Keep the unenriched papers; they still count toward papers_found.
		logger.Warn("Enrichment failed", "sub_topic", st.ID, "error", err)
		enrichResult = activities.EnrichPapersResult{Papers: searchResult.Papers}
	}
	state.PapersBySubtopic[st.ID] = enrichResult.Papers

	contentPaths := make([]string, 0, len(enrichResult.Papers))
	for _, p := range enrichResult.Papers {
		if p.Enriched() {
			contentPaths = append(contentPaths, p.ContentTextPath)
		}
	}
	if len(contentPaths) == 0 {
		logger.Warn("No resolvable content paths, skipping analysis", "sub_topic", st.ID)
		state.Analyses[st.ID] = models.Analysis{Skipped: true, SkipReason: "no resolvable content paths"}
		return
	}

	state.SetPhase(models.PhaseAnalysis)
	var analyzeResult activities.AnalyzePapersResult
	err = workflow.ExecuteActivity(ctx, constants.AnalyzePapersActivity, activities.AnalyzePapersInput{
		SubTopic:     st,
		ContentPaths: contentPaths,
	}).Get(ctx, &analyzeResult)
	if err != nil {
		logger.Warn("Analysis failed, skipping sub-topic", "sub_topic", st.ID, "error", err)
		state.Analyses[st.ID] = models.Analysis{Skipped: true, SkipReason: "analysis failed: " + err.Error()}
		return
	}
	state.RecordAgent(agents.RoleAnalyzer)
	state.Analyses[st.ID] = analyzeResult.Analysis
}

// applyRevision executes one critique-demanded revision. Unknown targets
// and actions are logged and skipped; a malformed revision list must not
// fail the run.
func applyRevision(ctx workflow.Context, state *models.WorkflowState, rev models.RequiredRevision) {
	logger := workflow.GetLogger(ctx)

	var target *models.SubTopic
	if state.ResearchPlan != nil {
		for i := range state.ResearchPlan.SubTopics {
			if state.ResearchPlan.SubTopics[i].ID == rev.Target {
				target = &state.ResearchPlan.SubTopics[i]
				break
			}
		}
	}
	if target == nil {
		logger.Warn("Revision targets unknown sub-topic, skipping",
			"target", rev.Target, "action", rev.Action)
		return
	}

	switch rev.Action {
	case models.RevisionActionSearchMore:
		// Full pipeline rerun: new search, new enrichment, new analysis.
		researchSubTopic(ctx, state, *target)

	case models.RevisionActionReanalyze:
		contentPaths := make([]string, 0)
		for _, p := range state.PapersBySubtopic[rev.Target] {
			if p.Enriched() {
				contentPaths = append(contentPaths, p.ContentTextPath)
			}
		}
		if len(contentPaths) == 0 {
			logger.Warn("Re-analysis requested but no content paths exist", "target", rev.Target)
			return
		}
		state.SetPhase(models.PhaseAnalysis)
		var result activities.AnalyzePapersResult
		err := workflow.ExecuteActivity(ctx, constants.AnalyzePapersActivity, activities.AnalyzePapersInput{
			SubTopic:     *target,
			ContentPaths: contentPaths,
		}).Get(ctx, &result)
		if err != nil {
			// The previous analysis stays in place.
			logger.Warn("Re-analysis failed, keeping prior analysis", "target", rev.Target, "error", err)
			return
		}
		state.Analyses[rev.Target] = result.Analysis

	default:
		logger.Warn("Unknown revision action, skipping", "action", rev.Action, "target", rev.Target)
	}
}

// generateReport produces the final document. Chunked mode fans out one
// activity per section and assembles deterministically; a failed section
// becomes a placeholder. Single mode falls back to a partial report built
// from stored analyses when the reporter is unreachable.
func generateReport(ctx workflow.Context, state *models.WorkflowState, input ResearchInput) string {
	logger := workflow.GetLogger(ctx)

	if input.ChunkedReporting {
		futures := make([]workflow.Future, len(report.SectionOrder))
		for i, section := range report.SectionOrder {
			futures[i] = workflow.ExecuteActivity(ctx, constants.WriteReportSectionActivity, activities.WriteReportSectionInput{
				Section:  section,
				Query:    state.UserQuery,
				Plan:     state.ResearchPlan,
				Analyses: state.Analyses,
				Critique: state.CritiqueResults,
			})
		}

		sections := make(map[string]string, len(report.SectionOrder))
		for i, section := range report.SectionOrder {
			var result activities.WriteReportSectionResult
			if err := futures[i].Get(ctx, &result); err != nil {
				logger.Warn("Report section failed, using placeholder",
					"section", section, "error", err)
				continue
			}
			sections[section] = result.Markdown
		}
		if len(sections) > 0 {
			state.RecordAgent(agents.RoleReporter)
		}
		return report.Assemble(state.UserQuery, sections)
	}

	var result activities.GenerateReportResult
	err := workflow.ExecuteActivity(ctx, constants.GenerateReportActivity, activities.GenerateReportInput{
		Query:    state.UserQuery,
		Plan:     state.ResearchPlan,
		Analyses: state.Analyses,
		Critique: state.CritiqueResults,
	}).Get(ctx, &result)
	if err != nil || strings.TrimSpace(result.Markdown) == "" {
		logger.Warn("Reporter unavailable, building partial report", "error", err)
		return degradation.BuildPartialReport(state.UserQuery, state.ResearchPlan, state.Analyses)
	}
	state.RecordAgent(agents.RoleReporter)
	return result.Markdown
}

// persistState writes a state snapshot to the external store without
// blocking the workflow. Persistence is observability, not correctness.
func persistState(ctx workflow.Context, state *models.WorkflowState) {
	info := workflow.GetInfo(ctx)
	detached, _ := workflow.NewDisconnectedContext(ctx)
	dctx := workflow.WithActivityOptions(detached, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
	})
	workflow.ExecuteActivity(dctx, constants.PersistWorkflowStateActivity, activities.PersistWorkflowStateInput{
		WorkflowID: info.WorkflowExecution.ID,
		Snapshot:   state.Snapshot(),
	})
}

// finishRun records the final snapshot and the run history row. The history
// write blocks before the workflow returns; an activity scheduled in the
// same task as workflow completion would be abandoned. Blocking here also
// flushes the detached final snapshot.
func finishRun(ctx workflow.Context, state *models.WorkflowState, startedAt time.Time, quality float64, reportLength int) {
	persistState(ctx, state)

	info := workflow.GetInfo(ctx)
	rctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
	})
	err := workflow.ExecuteActivity(rctx, constants.RecordResearchRunActivity, activities.RecordResearchRunInput{
		WorkflowID:    info.WorkflowExecution.ID,
		Query:         state.UserQuery,
		Phase:         string(state.Phase),
		Success:       state.Phase == models.PhaseComplete,
		PapersFound:   state.TotalPapers(),
		RevisionCount: state.RevisionCount,
		QualityScore:  quality,
		ReportLength:  reportLength,
		DurationMs:    workflow.Now(ctx).Sub(startedAt).Milliseconds(),
	}).Get(rctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Warn("Run history write failed", "error", err)
	}
}

func runMetadata(state *models.WorkflowState, analysisIterations int) map[string]interface{} {
	return map[string]interface{}{
		"papers_found":        state.TotalPapers(),
		"analysis_iterations": analysisIterations,
		"agents_executed":     state.AgentsExecuted,
		"revision_count":      state.RevisionCount,
		"phase":               string(state.Phase),
	}
}
