package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scholarflow/orchestrator/internal/metrics"
)

// RunRecord is one completed (or failed) research run.
type RunRecord struct {
	WorkflowID    string    `db:"workflow_id" json:"workflow_id"`
	Query         string    `db:"query" json:"query"`
	Phase         string    `db:"phase" json:"phase"`
	Success       bool      `db:"success" json:"success"`
	PapersFound   int       `db:"papers_found" json:"papers_found"`
	RevisionCount int       `db:"revision_count" json:"revision_count"`
	QualityScore  float64   `db:"quality_score" json:"quality_score"`
	ReportLength  int       `db:"report_length" json:"report_length"`
	DurationMs    int64     `db:"duration_ms" json:"duration_ms"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

const insertRunQuery = `
	INSERT INTO research_runs
		(workflow_id, query, phase, success, papers_found, revision_count,
		 quality_score, report_length, duration_ms, created_at)
	VALUES
		(:workflow_id, :query, :phase, :success, :papers_found, :revision_count,
		 :quality_score, :report_length, :duration_ms, :created_at)
	ON CONFLICT (workflow_id) DO UPDATE SET
		phase = EXCLUDED.phase,
		success = EXCLUDED.success,
		papers_found = EXCLUDED.papers_found,
		revision_count = EXCLUDED.revision_count,
		quality_score = EXCLUDED.quality_score,
		report_length = EXCLUDED.report_length,
		duration_ms = EXCLUDED.duration_ms`

// SaveRun upserts the run record keyed by workflow id.
func (c *Client) SaveRun(ctx context.Context, run RunRecord) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if _, err := c.db.NamedExecContext(ctx, insertRunQuery, run); err != nil {
		metrics.RunsRecorded.WithLabelValues("error").Inc()
		return fmt.Errorf("save research run: %w", err)
	}
	metrics.RunsRecorded.WithLabelValues("ok").Inc()
	c.logger.Debug("Recorded research run",
		zap.String("workflow_id", run.WorkflowID),
		zap.String("phase", run.Phase),
	)
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (c *Client) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []RunRecord
	err := c.db.SelectContext(ctx, &runs,
		`SELECT workflow_id, query, phase, success, papers_found, revision_count,
		        quality_score, report_length, duration_ms, created_at
		 FROM research_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}
	return runs, nil
}
