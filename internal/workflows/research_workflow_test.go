package workflows

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/scholarflow/orchestrator/internal/activities"
	"github.com/scholarflow/orchestrator/internal/constants"
	"github.com/scholarflow/orchestrator/internal/degradation"
	"github.com/scholarflow/orchestrator/internal/models"
	"github.com/scholarflow/orchestrator/internal/report"
)

func newEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	env := newBareEnv()
	// Persistence is optional in every scenario.
	env.OnActivity(constants.PersistWorkflowStateActivity, mock.Anything, mock.Anything).Return(nil).Maybe()
	env.OnActivity(constants.RecordResearchRunActivity, mock.Anything, mock.Anything).Return(nil).Maybe()
	return env
}

// newBareEnv builds an environment with the workflow and activity names
// registered but nothing mocked yet.
func newBareEnv() *testsuite.TestWorkflowEnvironment {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ResearchWorkflow)
	registerActivityTypes(env)
	return env
}

// registerActivityTypes registers a stub under each invocation name so the
// environment knows every activity signature before mocks replace the
// behavior, the same way the worker registers the real implementations.
func registerActivityTypes(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.PlanResearchInput) (activities.PlanResearchResult, error) {
			return activities.PlanResearchResult{}, nil
		}, activity.RegisterOptions{Name: constants.PlanResearchActivity})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.SearchPapersInput) (activities.SearchPapersResult, error) {
			return activities.SearchPapersResult{}, nil
		}, activity.RegisterOptions{Name: constants.SearchPapersActivity})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.EnrichPapersInput) (activities.EnrichPapersResult, error) {
			return activities.EnrichPapersResult{}, nil
		}, activity.RegisterOptions{Name: constants.EnrichPapersActivity})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.AnalyzePapersInput) (activities.AnalyzePapersResult, error) {
			return activities.AnalyzePapersResult{}, nil
		}, activity.RegisterOptions{Name: constants.AnalyzePapersActivity})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.CritiqueAnalysesInput) (activities.CritiqueAnalysesResult, error) {
			return activities.CritiqueAnalysesResult{}, nil
		}, activity.RegisterOptions{Name: constants.CritiqueAnalysesActivity})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.GenerateReportInput) (activities.GenerateReportResult, error) {
			return activities.GenerateReportResult{}, nil
		}, activity.RegisterOptions{Name: constants.GenerateReportActivity})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.WriteReportSectionInput) (activities.WriteReportSectionResult, error) {
			return activities.WriteReportSectionResult{}, nil
		}, activity.RegisterOptions{Name: constants.WriteReportSectionActivity})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.PersistWorkflowStateInput) error {
			return nil
		}, activity.RegisterOptions{Name: constants.PersistWorkflowStateActivity})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.RecordResearchRunInput) error {
			return nil
		}, activity.RegisterOptions{Name: constants.RecordResearchRunActivity})
}

func twoTopicPlan() *models.ResearchPlan {
	guidance := models.SearchGuidance{FocusOn: "f", MustInclude: "m", Avoid: "a"}
	return &models.ResearchPlan{
		ResearchApproach: "comparative",
		SubTopics: []models.SubTopic{
			{ID: "rl_control", Description: "RL for control", SuggestedKeywords: []string{"rl"}, SearchGuidance: guidance},
			{ID: "sl_control", Description: "SL for control", SuggestedKeywords: []string{"sl"}, SearchGuidance: guidance},
		},
	}
}

func enrichedPaper(id string) models.Paper {
	arxivID := strings.TrimPrefix(id, "arxiv:")
	return models.Paper{
		ID:                id,
		Title:             "Paper " + arxivID,
		ArxivID:           arxivID,
		ContentTextPath:   "s3://research-papers/" + arxivID + "/full_text.txt",
		ContentChunksPath: "s3://research-papers/" + arxivID + "/chunks.json",
	}
}

func structuredAnalysis(topic string) models.Analysis {
	return models.Analysis{
		AnalysisID: topic,
		PapersAnalyzed: []models.PaperAnalysis{
			{ContentPath: "s3://research-papers/x/full_text.txt", KeyFindings: []string{"finding for " + topic}},
		},
		Synthesis: &models.Synthesis{CommonThemes: []string{"theme"}},
	}
}

func approvedCritique() models.CritiqueResult {
	return models.CritiqueResult{Verdict: models.VerdictApproved, OverallQualityScore: 0.9}
}

// mockHappySearchPath wires search, enrichment, and analysis mocks that
// succeed for every sub-topic.
func mockHappySearchPath(env *testsuite.TestWorkflowEnvironment) {
	env.OnActivity(constants.SearchPapersActivity, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in activities.SearchPapersInput) (activities.SearchPapersResult, error) {
			return activities.SearchPapersResult{
				SubTopicID: in.SubTopic.ID,
				Papers:     []models.Paper{{ID: "arxiv:2301.0000" + in.SubTopic.ID, Title: "T"}},
			}, nil
		})
	env.OnActivity(constants.EnrichPapersActivity, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in activities.EnrichPapersInput) (activities.EnrichPapersResult, error) {
			papers := make([]models.Paper, len(in.Papers))
			for i, p := range in.Papers {
				papers[i] = enrichedPaper(p.ID)
			}
			return activities.EnrichPapersResult{Papers: papers, Resolved: len(papers)}, nil
		})
	env.OnActivity(constants.AnalyzePapersActivity, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in activities.AnalyzePapersInput) (activities.AnalyzePapersResult, error) {
			return activities.AnalyzePapersResult{Analysis: structuredAnalysis(in.SubTopic.ID)}, nil
		})
}

func TestResearchWorkflowHappyPath(t *testing.T) {
	env := newEnv(t)

	env.OnActivity(constants.PlanResearchActivity, mock.Anything, mock.Anything).Return(
		activities.PlanResearchResult{Plan: twoTopicPlan()}, nil)
	mockHappySearchPath(env)
	env.OnActivity(constants.CritiqueAnalysesActivity, mock.Anything, mock.Anything).Return(
		activities.CritiqueAnalysesResult{Critique: approvedCritique()}, nil)
	env.OnActivity(constants.GenerateReportActivity, mock.Anything, mock.Anything).Return(
		activities.GenerateReportResult{Markdown: "# Research Report: q\n\nFull findings."}, nil)

	env.ExecuteWorkflow(ResearchWorkflow, ResearchInput{Query: "q"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result ResearchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.True(t, result.Success)
	assert.Contains(t, result.Report, "Full findings.")
	assert.EqualValues(t, 2, result.Metadata["papers_found"])
	assert.Equal(t, "COMPLETE", result.Metadata["phase"])
	assert.ElementsMatch(t, []interface{}{"planner", "searcher", "analyzer", "critique", "reporter"},
		result.Metadata["agents_executed"])

	// Status query reflects the finished run.
	val, err := env.QueryWorkflow(constants.ResearchStatusQuery)
	require.NoError(t, err)
	var snap models.Snapshot
	require.NoError(t, val.Get(&snap))
	assert.Equal(t, models.PhaseComplete, snap.Phase)
	assert.Equal(t, 2, snap.CompletedAnalyses)
	// The index sits past the last sub-topic once all were searched+analyzed.
	assert.Equal(t, 2, snap.CurrentSubtopicIndex)
	assert.True(t, snap.HasReport)
}

func TestResearchWorkflowPlanningFailureIsFatal(t *testing.T) {
	env := newEnv(t)

	env.OnActivity(constants.PlanResearchActivity, mock.Anything, mock.Anything).Return(
		activities.PlanResearchResult{}, errors.New("planner returned unusable plan"))

	env.ExecuteWorkflow(ResearchWorkflow, ResearchInput{Query: "q"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result ResearchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.False(t, result.Success)
	assert.Contains(t, result.Report, "Workflow Error")
	assert.Contains(t, result.Report, "unusable plan")
	assert.Equal(t, "ERROR", result.Metadata["phase"])
}

func TestResearchWorkflowSkipsFailedSubTopic(t *testing.T) {
	env := newEnv(t)

	env.OnActivity(constants.PlanResearchActivity, mock.Anything, mock.Anything).Return(
		activities.PlanResearchResult{Plan: twoTopicPlan()}, nil)
	env.OnActivity(constants.SearchPapersActivity, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in activities.SearchPapersInput) (activities.SearchPapersResult, error) {
			if in.SubTopic.ID == "rl_control" {
				return activities.SearchPapersResult{SubTopicID: in.SubTopic.ID, ParseError: true}, nil
			}
			return activities.SearchPapersResult{
				SubTopicID: in.SubTopic.ID,
				Papers:     []models.Paper{{ID: "arxiv:2302.00001"}},
			}, nil
		})
	env.OnActivity(constants.EnrichPapersActivity, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in activities.EnrichPapersInput) (activities.EnrichPapersResult, error) {
			papers := make([]models.Paper, len(in.Papers))
			for i, p := range in.Papers {
				papers[i] = enrichedPaper(p.ID)
			}
			return activities.EnrichPapersResult{Papers: papers, Resolved: len(papers)}, nil
		})
	env.OnActivity(constants.AnalyzePapersActivity, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in activities.AnalyzePapersInput) (activities.AnalyzePapersResult, error) {
			require.Equal(t, "sl_control", in.SubTopic.ID, "skipped sub-topic must not be analyzed")
			return activities.AnalyzePapersResult{Analysis: structuredAnalysis(in.SubTopic.ID)}, nil
		})
	env.OnActivity(constants.CritiqueAnalysesActivity, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in activities.CritiqueAnalysesInput) (activities.CritiqueAnalysesResult, error) {
			// The critique sees the gap, not a shrunken plan.
			require.Len(t, in.Analyses, 2)
			require.True(t, in.Analyses["rl_control"].Skipped)
			return activities.CritiqueAnalysesResult{Critique: approvedCritique()}, nil
		})
	env.OnActivity(constants.GenerateReportActivity, mock.Anything, mock.Anything).Return(
		activities.GenerateReportResult{Markdown: "report"}, nil)

	env.ExecuteWorkflow(ResearchWorkflow, ResearchInput{Query: "q"})

	require.True(t, env.IsWorkflowCompleted())
	var result ResearchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.True(t, result.Success)
	assert.EqualValues(t, 1, result.Metadata["papers_found"])
}

func TestResearchWorkflowRevisionLoop(t *testing.T) {
	env := newEnv(t)

	env.OnActivity(constants.PlanResearchActivity, mock.Anything, mock.Anything).Return(
		activities.PlanResearchResult{Plan: twoTopicPlan()}, nil)
	mockHappySearchPath(env)

	critiqueCalls := 0
	env.OnActivity(constants.CritiqueAnalysesActivity, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in activities.CritiqueAnalysesInput) (activities.CritiqueAnalysesResult, error) {
			critiqueCalls++
			if critiqueCalls == 1 {
				return activities.CritiqueAnalysesResult{Critique: models.CritiqueResult{
					Verdict:             models.VerdictRevise,
					OverallQualityScore: 0.6,
					RequiredRevisions: []models.RequiredRevision{
						{Action: models.RevisionActionSearchMore, Target: "rl_control", Reason: "too few sources"},
						{Action: models.RevisionActionReanalyze, Target: "sl_control", Reason: "shallow"},
					},
				}}, nil
			}
			return activities.CritiqueAnalysesResult{Critique: approvedCritique()}, nil
		})
	env.OnActivity(constants.GenerateReportActivity, mock.Anything, mock.Anything).Return(
		activities.GenerateReportResult{Markdown: "report"}, nil)

	env.ExecuteWorkflow(ResearchWorkflow, ResearchInput{Query: "q"})

	require.True(t, env.IsWorkflowCompleted())
	var result ResearchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.True(t, result.Success)
	assert.Equal(t, 2, critiqueCalls)
	assert.EqualValues(t, 1, result.Metadata["revision_count"])
	// 2 initial passes + search_more rerun + re_analyze.
	assert.EqualValues(t, 4, result.Metadata["analysis_iterations"])
}

func TestResearchWorkflowRevisionCapForcesApproval(t *testing.T) {
	env := newEnv(t)

	env.OnActivity(constants.PlanResearchActivity, mock.Anything, mock.Anything).Return(
		activities.PlanResearchResult{Plan: twoTopicPlan()}, nil)
	mockHappySearchPath(env)

	critiqueCalls := 0
	env.OnActivity(constants.CritiqueAnalysesActivity, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in activities.CritiqueAnalysesInput) (activities.CritiqueAnalysesResult, error) {
			critiqueCalls++
			return activities.CritiqueAnalysesResult{Critique: models.CritiqueResult{
				Verdict:             models.VerdictRevise,
				OverallQualityScore: 0.5,
				RequiredRevisions: []models.RequiredRevision{
					{Action: models.RevisionActionReanalyze, Target: "rl_control", Reason: "still shallow"},
				},
			}}, nil
		})
	env.OnActivity(constants.GenerateReportActivity, mock.Anything, mock.Anything).Return(
		activities.GenerateReportResult{Markdown: "report"}, nil)

	env.ExecuteWorkflow(ResearchWorkflow, ResearchInput{Query: "q"})

	require.True(t, env.IsWorkflowCompleted())
	var result ResearchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.True(t, result.Success, "hitting the cap still produces a report")
	assert.EqualValues(t, models.MaxRevisionCycles, result.Metadata["revision_count"])
	assert.Equal(t, models.MaxRevisionCycles+1, critiqueCalls)
}

func TestResearchWorkflowCritiqueFailsOpen(t *testing.T) {
	env := newEnv(t)

	env.OnActivity(constants.PlanResearchActivity, mock.Anything, mock.Anything).Return(
		activities.PlanResearchResult{Plan: twoTopicPlan()}, nil)
	mockHappySearchPath(env)
	env.OnActivity(constants.CritiqueAnalysesActivity, mock.Anything, mock.Anything).Return(
		activities.CritiqueAnalysesResult{}, errors.New("critique service down"))
	env.OnActivity(constants.GenerateReportActivity, mock.Anything, mock.Anything).Return(
		activities.GenerateReportResult{Markdown: "report"}, nil)

	env.ExecuteWorkflow(ResearchWorkflow, ResearchInput{Query: "q"})

	require.True(t, env.IsWorkflowCompleted())
	var result ResearchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.True(t, result.Success)
	assert.EqualValues(t, 0, result.Metadata["revision_count"])
}

func TestResearchWorkflowChunkedReportingPlaceholder(t *testing.T) {
	env := newEnv(t)

	env.OnActivity(constants.PlanResearchActivity, mock.Anything, mock.Anything).Return(
		activities.PlanResearchResult{Plan: twoTopicPlan()}, nil)
	mockHappySearchPath(env)
	env.OnActivity(constants.CritiqueAnalysesActivity, mock.Anything, mock.Anything).Return(
		activities.CritiqueAnalysesResult{Critique: approvedCritique()}, nil)
	env.OnActivity(constants.WriteReportSectionActivity, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in activities.WriteReportSectionInput) (activities.WriteReportSectionResult, error) {
			if in.Section == "Research Gaps" {
				return activities.WriteReportSectionResult{}, errors.New("section generation failed")
			}
			return activities.WriteReportSectionResult{Section: in.Section, Markdown: "Body of " + in.Section}, nil
		})

	env.ExecuteWorkflow(ResearchWorkflow, ResearchInput{Query: "q", ChunkedReporting: true})

	require.True(t, env.IsWorkflowCompleted())
	var result ResearchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.True(t, result.Success)
	assert.True(t, strings.HasPrefix(result.Report, "# Research Report: q"))
	assert.Contains(t, result.Report, "Body of Executive Summary")
	assert.Contains(t, result.Report, report.Placeholder)
	assert.Contains(t, result.Metadata["agents_executed"], "reporter")

	// All sections present in the fixed order, including the failed one.
	last := -1
	for _, section := range report.SectionOrder {
		idx := strings.Index(result.Report, "## "+section)
		require.GreaterOrEqual(t, idx, 0, "missing section %s", section)
		assert.Greater(t, idx, last)
		last = idx
	}
}

func TestResearchWorkflowReporterFailureBuildsPartialReport(t *testing.T) {
	env := newEnv(t)

	plan := twoTopicPlan()
	env.OnActivity(constants.PlanResearchActivity, mock.Anything, mock.Anything).Return(
		activities.PlanResearchResult{Plan: plan}, nil)
	mockHappySearchPath(env)
	env.OnActivity(constants.CritiqueAnalysesActivity, mock.Anything, mock.Anything).Return(
		activities.CritiqueAnalysesResult{Critique: approvedCritique()}, nil)
	env.OnActivity(constants.GenerateReportActivity, mock.Anything, mock.Anything).Return(
		activities.GenerateReportResult{}, errors.New("reporter down"))

	env.ExecuteWorkflow(ResearchWorkflow, ResearchInput{Query: "q"})

	require.True(t, env.IsWorkflowCompleted())
	var result ResearchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.True(t, result.Success)

	analyses := map[string]models.Analysis{
		"rl_control": structuredAnalysis("rl_control"),
		"sl_control": structuredAnalysis("sl_control"),
	}
	assert.Equal(t, degradation.BuildPartialReport("q", plan, analyses), result.Report)
	// The partial report was assembled locally; the reporter never ran.
	assert.NotContains(t, result.Metadata["agents_executed"], "reporter")
}

func TestResearchWorkflowRecordsRunHistory(t *testing.T) {
	env := newBareEnv()
	env.OnActivity(constants.PersistWorkflowStateActivity, mock.Anything, mock.Anything).Return(nil).Maybe()

	recordCalls := 0
	var recorded activities.RecordResearchRunInput
	env.OnActivity(constants.RecordResearchRunActivity, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in activities.RecordResearchRunInput) error {
			recordCalls++
			recorded = in
			return nil
		})

	env.OnActivity(constants.PlanResearchActivity, mock.Anything, mock.Anything).Return(
		activities.PlanResearchResult{Plan: twoTopicPlan()}, nil)
	mockHappySearchPath(env)
	env.OnActivity(constants.CritiqueAnalysesActivity, mock.Anything, mock.Anything).Return(
		activities.CritiqueAnalysesResult{Critique: approvedCritique()}, nil)
	env.OnActivity(constants.GenerateReportActivity, mock.Anything, mock.Anything).Return(
		activities.GenerateReportResult{Markdown: "report"}, nil)

	env.ExecuteWorkflow(ResearchWorkflow, ResearchInput{Query: "q"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	// The history row is written before the workflow returns.
	require.Equal(t, 1, recordCalls)
	assert.NotEmpty(t, recorded.WorkflowID)
	assert.Equal(t, "q", recorded.Query)
	assert.Equal(t, "COMPLETE", recorded.Phase)
	assert.True(t, recorded.Success)
	assert.Equal(t, 2, recorded.PapersFound)
	assert.InDelta(t, 0.9, recorded.QualityScore, 1e-9)
	assert.Equal(t, len("report"), recorded.ReportLength)
}
