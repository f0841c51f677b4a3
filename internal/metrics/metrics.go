package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Workflow metrics
	WorkflowsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scholarflow_workflows_started_total",
			Help: "Total number of research workflows started",
		},
		[]string{"workflow_type"},
	)

	WorkflowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scholarflow_workflows_completed_total",
			Help: "Total number of research workflows completed",
		},
		[]string{"workflow_type", "status"},
	)

	WorkflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scholarflow_workflow_duration_seconds",
			Help:    "Research workflow execution duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"workflow_type"},
	)

	// Agent metrics
	AgentInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scholarflow_agent_invocations_total",
			Help: "Total number of agent service invocations",
		},
		[]string{"role", "status"},
	)

	AgentInvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scholarflow_agent_invocation_duration_ms",
			Help:    "Agent invocation duration in milliseconds",
			Buckets: []float64{100, 500, 1000, 2000, 5000, 10000, 30000, 60000},
		},
		[]string{"role"},
	)

	AgentParseFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scholarflow_agent_parse_fallbacks_total",
			Help: "Agent responses that fell back to raw text after a parse failure",
		},
		[]string{"role"},
	)

	// Enrichment metrics
	PapersEnriched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scholarflow_papers_enriched_total",
			Help: "Papers processed by the path enricher",
		},
		[]string{"outcome"},
	)

	// Critique / revision metrics
	RevisionCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scholarflow_revision_cycles_total",
			Help: "Critique-driven revision passes executed",
		},
	)

	CritiqueVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scholarflow_critique_verdicts_total",
			Help: "Critique verdicts by outcome",
		},
		[]string{"verdict"},
	)

	CritiqueQualityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scholarflow_critique_quality_score",
			Help:    "Overall quality score reported by the critique agent",
			Buckets: []float64{0.1, 0.25, 0.5, 0.6, 0.7, 0.75, 0.8, 0.9, 1.0},
		},
	)

	// Reporting metrics
	ReportSections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scholarflow_report_sections_total",
			Help: "Report sections generated in chunked reporting mode",
		},
		[]string{"section", "status"},
	)

	// State persistence metrics
	StateSnapshotsSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scholarflow_state_snapshots_saved_total",
			Help: "Workflow state snapshots written to the state store",
		},
	)

	StatePersistenceErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scholarflow_state_persistence_errors_total",
			Help: "Failed workflow state snapshot writes",
		},
	)

	// Run history metrics
	RunsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scholarflow_runs_recorded_total",
			Help: "Completed research runs written to the run history store",
		},
		[]string{"status"},
	)

	// HTTP API metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scholarflow_http_requests_total",
			Help: "HTTP API requests",
		},
		[]string{"route", "status"},
	)
)
