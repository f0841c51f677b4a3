package activities

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scholarflow/orchestrator/internal/enrich"
	"github.com/scholarflow/orchestrator/internal/metrics"
	"github.com/scholarflow/orchestrator/internal/models"
)

// EnrichPapers derives storage paths for every paper in the batch. arXiv
// ids resolve locally; Semantic Scholar ids need a lookup, so the batch
// fans out with a small fixed worker limit. Individual lookup failures
// leave that paper unenriched without affecting the others.
func (a *Activities) EnrichPapers(ctx context.Context, in EnrichPapersInput) (EnrichPapersResult, error) {
	if len(in.Papers) == 0 {
		return EnrichPapersResult{}, nil
	}

	enriched := make([]models.Paper, len(in.Papers))
	var mu sync.Mutex
	resolved := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.enrichWorkers)
	for i, paper := range in.Papers {
		g.Go(func() error {
			en := a.enricher.Enrich(gctx, paper.ID)
			out := enrich.Apply(paper, en)
			mu.Lock()
			enriched[i] = out
			if en.Resolved() {
				resolved++
			}
			mu.Unlock()
			if en.Resolved() {
				metrics.PapersEnriched.WithLabelValues("resolved").Inc()
			} else {
				metrics.PapersEnriched.WithLabelValues("unresolved").Inc()
			}
			// Enrich never errors; failures degrade to empty enrichment.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return EnrichPapersResult{}, err
	}

	a.logger.Info("Paper enrichment complete",
		zap.Int("papers", len(enriched)),
		zap.Int("resolved", resolved),
	)
	return EnrichPapersResult{Papers: enriched, Resolved: resolved}, nil
}
