package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/scholarflow/orchestrator/internal/agents"
	"github.com/scholarflow/orchestrator/internal/metrics"
	"github.com/scholarflow/orchestrator/internal/models"
)

// PlanResearch invokes the planner agent and validates the returned plan.
// A missing or malformed plan fails the activity: nothing downstream can
// run without one.
func (a *Activities) PlanResearch(ctx context.Context, in PlanResearchInput) (PlanResearchResult, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return PlanResearchResult{}, fmt.Errorf("query cannot be empty")
	}

	resp, err := a.agents.Invoke(ctx, agents.RolePlanner, query, nil)
	if err != nil {
		return PlanResearchResult{}, fmt.Errorf("planner invocation failed: %w", err)
	}

	plan, err := models.ParsePlan(resp.Message)
	if err != nil {
		return PlanResearchResult{}, fmt.Errorf("planner returned unusable plan: %w", err)
	}

	a.logger.Info("Research plan created",
		zap.String("approach", plan.ResearchApproach),
		zap.Int("sub_topics", len(plan.SubTopics)),
	)
	return PlanResearchResult{Plan: plan}, nil
}

// searcherInput mirrors the payload the searcher agent expects.
type searcherInput struct {
	ID                string                `json:"id"`
	Description       string                `json:"description"`
	SuggestedKeywords []string              `json:"suggested_keywords"`
	SearchGuidance    models.SearchGuidance `json:"search_guidance"`
}

// SearchPapers invokes the searcher agent for one sub-topic. Unparseable
// output degrades to an empty paper list rather than failing; transport
// errors propagate so the workflow can mark the sub-topic skipped.
func (a *Activities) SearchPapers(ctx context.Context, in SearchPapersInput) (SearchPapersResult, error) {
	payload, err := json.Marshal(searcherInput{
		ID:                in.SubTopic.ID,
		Description:       in.SubTopic.Description,
		SuggestedKeywords: in.SubTopic.SuggestedKeywords,
		SearchGuidance:    in.SubTopic.SearchGuidance,
	})
	if err != nil {
		return SearchPapersResult{}, fmt.Errorf("marshal search input: %w", err)
	}

	resp, err := a.agents.Invoke(ctx, agents.RoleSearcher, string(payload), nil)
	if err != nil {
		return SearchPapersResult{}, fmt.Errorf("search for %q failed: %w", in.SubTopic.ID, err)
	}

	result, ok := models.ParseSearchResult(resp.Message)
	if !ok {
		metrics.AgentParseFallbacks.WithLabelValues(agents.RoleSearcher).Inc()
		a.logger.Warn("Searcher response was not the expected schema",
			zap.String("sub_topic", in.SubTopic.ID))
		return SearchPapersResult{SubTopicID: in.SubTopic.ID, ParseError: true}, nil
	}

	a.logger.Info("Paper search complete",
		zap.String("sub_topic", in.SubTopic.ID),
		zap.Int("papers", len(result.SelectedPapers)),
	)
	return SearchPapersResult{
		SubTopicID:     in.SubTopic.ID,
		Papers:         result.SelectedPapers,
		SearchStrategy: result.SearchStrategy,
	}, nil
}

// AnalyzePapers invokes the analyzer with the resolved storage paths and
// the sub-topic's search guidance as analysis context. Unparseable output
// becomes the raw-text fallback; it is stored, not discarded.
func (a *Activities) AnalyzePapers(ctx context.Context, in AnalyzePapersInput) (AnalyzePapersResult, error) {
	if len(in.ContentPaths) == 0 {
		return AnalyzePapersResult{}, fmt.Errorf("no content paths to analyze for %q", in.SubTopic.ID)
	}

	g := in.SubTopic.SearchGuidance
	analysisContext := fmt.Sprintf(
		"Sub-Topic: %s\nDescription: %s\nSuccess Criteria: %s\n\n"+
			"Search Guidance (focus your analysis on these criteria):\n"+
			"- Focus on: %s\n- Must include: %s\n- Avoid: %s\n",
		in.SubTopic.ID, in.SubTopic.Description, in.SubTopic.SuccessCriteria,
		g.FocusOn, g.MustInclude, g.Avoid,
	)

	resp, err := a.agents.Invoke(ctx, agents.RoleAnalyzer, analysisContext, map[string]interface{}{
		"content_paths": in.ContentPaths,
	})
	if err != nil {
		return AnalyzePapersResult{}, fmt.Errorf("analysis for %q failed: %w", in.SubTopic.ID, err)
	}

	analysis := models.ParseAnalysis(resp.Message)
	if analysis.ParseError {
		metrics.AgentParseFallbacks.WithLabelValues(agents.RoleAnalyzer).Inc()
		a.logger.Warn("Analyzer response stored as raw-text fallback",
			zap.String("sub_topic", in.SubTopic.ID))
	} else {
		a.logger.Info("Analysis complete",
			zap.String("sub_topic", in.SubTopic.ID),
			zap.Int("papers_analyzed", len(analysis.PapersAnalyzed)),
		)
	}
	return AnalyzePapersResult{Analysis: analysis}, nil
}

// critiqueInput mirrors the payload the critique agent expects.
type critiqueInput struct {
	OriginalQuery   string                     `json:"original_query"`
	ResearchPlan    *models.ResearchPlan       `json:"research_plan"`
	Analyses        map[string]models.Analysis `json:"analyses"`
	RevisionCount   int                        `json:"revision_count"`
	MinQualityScore float64                    `json:"min_quality_score"`
}

// CritiqueAnalyses invokes the critique agent over the full analyses map.
// Unparseable output defaults to APPROVED inside ParseCritique; transport
// errors propagate and the workflow fails open at its own boundary.
func (a *Activities) CritiqueAnalyses(ctx context.Context, in CritiqueAnalysesInput) (CritiqueAnalysesResult, error) {
	payload, err := json.Marshal(critiqueInput{
		OriginalQuery:   in.Query,
		ResearchPlan:    in.Plan,
		Analyses:        in.Analyses,
		RevisionCount:   in.RevisionCount,
		MinQualityScore: models.MinQualityScore,
	})
	if err != nil {
		return CritiqueAnalysesResult{}, fmt.Errorf("marshal critique input: %w", err)
	}

	resp, err := a.agents.Invoke(ctx, agents.RoleCritique, string(payload), nil)
	if err != nil {
		return CritiqueAnalysesResult{}, fmt.Errorf("critique failed: %w", err)
	}

	critique := models.ParseCritique(resp.Message)
	if critique.ParseError {
		metrics.AgentParseFallbacks.WithLabelValues(agents.RoleCritique).Inc()
		a.logger.Warn("Critique response unparseable, defaulting to APPROVED")
	}
	metrics.CritiqueVerdicts.WithLabelValues(critique.Verdict).Inc()
	metrics.CritiqueQualityScore.Observe(critique.OverallQualityScore)
	if critique.Verdict == models.VerdictRevise {
		metrics.RevisionCycles.Inc()
	}

	a.logger.Info("Critique complete",
		zap.String("verdict", critique.Verdict),
		zap.Float64("quality_score", critique.OverallQualityScore),
		zap.Int("required_revisions", len(critique.RequiredRevisions)),
	)
	return CritiqueAnalysesResult{Critique: critique}, nil
}
