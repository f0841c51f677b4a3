package activities

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scholarflow/orchestrator/internal/db"
)

// PersistWorkflowState writes a read-only state snapshot to the state store.
// When no store is configured this is a logged no-op so workflows run the
// same with or without Redis.
func (a *Activities) PersistWorkflowState(ctx context.Context, input PersistWorkflowStateInput) error {
	if input.WorkflowID == "" {
		return fmt.Errorf("workflow id is required")
	}
	if a.states == nil {
		a.logger.Debug("State store not configured, skipping snapshot",
			zap.String("workflow_id", input.WorkflowID))
		return nil
	}
	return a.states.Save(ctx, input.WorkflowID, input.Snapshot)
}

// RecordResearchRun upserts the run history row. A missing database is a
// logged no-op, matching PersistWorkflowState.
func (a *Activities) RecordResearchRun(ctx context.Context, input RecordResearchRunInput) error {
	if input.WorkflowID == "" {
		return fmt.Errorf("workflow id is required")
	}
	if a.runs == nil {
		a.logger.Debug("Run history store not configured, skipping record",
			zap.String("workflow_id", input.WorkflowID))
		return nil
	}
	return a.runs.SaveRun(ctx, db.RunRecord{
		WorkflowID:    input.WorkflowID,
		Query:         input.Query,
		Phase:         input.Phase,
		Success:       input.Success,
		PapersFound:   input.PapersFound,
		RevisionCount: input.RevisionCount,
		QualityScore:  input.QualityScore,
		ReportLength:  input.ReportLength,
		DurationMs:    input.DurationMs,
	})
}
