package activities

import (
	"go.uber.org/zap"

	"github.com/scholarflow/orchestrator/internal/agents"
	"github.com/scholarflow/orchestrator/internal/db"
	"github.com/scholarflow/orchestrator/internal/enrich"
	"github.com/scholarflow/orchestrator/internal/session"
)

// Activities bundles the service handles the research activities need.
// Everything is injected at construction; there is no package-level state.
type Activities struct {
	agents        *agents.Client
	enricher      *enrich.Enricher
	states        *session.StateStore
	runs          *db.Client
	logger        *zap.Logger
	enrichWorkers int
}

// Options holds the optional collaborators. States and Runs may be nil;
// the corresponding persistence activities then log and succeed as no-ops
// so the workflow is never blocked on missing infrastructure.
type Options struct {
	States        *session.StateStore
	Runs          *db.Client
	EnrichWorkers int
}

// New wires the activity set.
func New(agentClient *agents.Client, enricher *enrich.Enricher, logger *zap.Logger, opts Options) *Activities {
	workers := opts.EnrichWorkers
	if workers <= 0 {
		workers = 3
	}
	return &Activities{
		agents:        agentClient,
		enricher:      enricher,
		states:        opts.States,
		runs:          opts.Runs,
		logger:        logger,
		enrichWorkers: workers,
	}
}
