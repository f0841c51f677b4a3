package activities

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/scholarflow/orchestrator/internal/agents"
	"github.com/scholarflow/orchestrator/internal/metrics"
	"github.com/scholarflow/orchestrator/internal/models"
	"github.com/scholarflow/orchestrator/internal/report"
)

type reporterInput struct {
	Query    string                     `json:"query"`
	Plan     *models.ResearchPlan       `json:"plan,omitempty"`
	Analyses map[string]models.Analysis `json:"analyses"`
	Critique *models.CritiqueResult     `json:"critique,omitempty"`
}

// GenerateReport produces the full report in a single reporter call.
// The reporter returns raw markdown, not JSON, so the message is used as-is.
func (a *Activities) GenerateReport(ctx context.Context, input GenerateReportInput) (GenerateReportResult, error) {
	payload, err := json.Marshal(reporterInput{
		Query:    input.Query,
		Plan:     input.Plan,
		Analyses: input.Analyses,
		Critique: input.Critique,
	})
	if err != nil {
		return GenerateReportResult{}, fmt.Errorf("marshal reporter input: %w", err)
	}

	resp, err := a.agents.Invoke(ctx, agents.RoleReporter, string(payload), nil)
	if err != nil {
		return GenerateReportResult{}, fmt.Errorf("reporter invocation: %w", err)
	}

	a.logger.Info("Report generated",
		zap.Int("analyses", len(input.Analyses)),
		zap.Int("report_length", len(resp.Message)),
	)
	metrics.ReportSections.WithLabelValues("full", "ok").Inc()

	return GenerateReportResult{Markdown: resp.Message}, nil
}

// WriteReportSection produces one named section in chunked reporting mode.
// Errors propagate so the workflow can substitute the placeholder.
func (a *Activities) WriteReportSection(ctx context.Context, input WriteReportSectionInput) (WriteReportSectionResult, error) {
	if !report.ValidSection(input.Section) {
		return WriteReportSectionResult{}, fmt.Errorf("unknown report section %q", input.Section)
	}

	payload, err := json.Marshal(reporterInput{
		Query:    input.Query,
		Plan:     input.Plan,
		Analyses: input.Analyses,
		Critique: input.Critique,
	})
	if err != nil {
		return WriteReportSectionResult{}, fmt.Errorf("marshal reporter input: %w", err)
	}

	resp, err := a.agents.Invoke(ctx, agents.RoleReporter, string(payload), map[string]any{
		"section": input.Section,
	})
	if err != nil {
		metrics.ReportSections.WithLabelValues(input.Section, "error").Inc()
		return WriteReportSectionResult{}, fmt.Errorf("reporter invocation for section %q: %w", input.Section, err)
	}

	a.logger.Debug("Report section generated",
		zap.String("section", input.Section),
		zap.Int("length", len(resp.Message)),
	)
	metrics.ReportSections.WithLabelValues(input.Section, "ok").Inc()

	return WriteReportSectionResult{Section: input.Section, Markdown: resp.Message}, nil
}
