package enrich

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/scholarflow/orchestrator/internal/models"
)

// Paper id prefixes the enricher understands.
const (
	prefixArxiv           = "arxiv"
	prefixSemanticScholar = "s2"
)

// Enrichment is the derived storage addressing for a paper. All fields are
// empty when the external id could not be resolved to an arXiv id; the
// paper is still retained, just without a storage path.
type Enrichment struct {
	ArxivID           string
	ContentTextPath   string
	ContentChunksPath string
}

// Resolved reports whether the id produced usable storage paths.
func (e Enrichment) Resolved() bool {
	return e.ArxivID != ""
}

// IDResolver maps a Semantic Scholar paper id to an external arXiv id.
// Implementations must treat lookup failures as "not found".
type IDResolver interface {
	ResolveArxivID(ctx context.Context, s2ID string) (string, error)
}

// Enricher derives deterministic content-store paths from source-qualified
// paper ids. arXiv ids resolve purely with no network call; Semantic
// Scholar ids go through the resolver.
type Enricher struct {
	bucket   string
	resolver IDResolver
	logger   *zap.Logger
}

// NewEnricher builds an enricher writing paths under the given bucket.
func NewEnricher(bucket string, resolver IDResolver, logger *zap.Logger) *Enricher {
	return &Enricher{bucket: bucket, resolver: resolver, logger: logger}
}

// Enrich derives the storage paths for one paper id. Lookup timeouts and
// HTTP errors degrade to an empty enrichment; they never propagate.
// Calling twice with the same id yields the same paths.
func (e *Enricher) Enrich(ctx context.Context, paperID string) Enrichment {
	source, identifier, found := strings.Cut(paperID, ":")
	if !found || identifier == "" {
		e.logger.Warn("Invalid paper id format", zap.String("paper_id", paperID))
		return Enrichment{}
	}

	switch source {
	case prefixArxiv:
		return e.pathsFor(identifier)
	case prefixSemanticScholar:
		if e.resolver == nil {
			e.logger.Warn("No id resolver configured, keeping paper unenriched",
				zap.String("paper_id", paperID))
			return Enrichment{}
		}
		arxivID, err := e.resolver.ResolveArxivID(ctx, identifier)
		if err != nil {
			e.logger.Warn("arXiv id lookup failed, keeping paper unenriched",
				zap.String("paper_id", paperID),
				zap.Error(err))
			return Enrichment{}
		}
		if arxivID == "" {
			e.logger.Warn("No arXiv id for Semantic Scholar paper",
				zap.String("paper_id", paperID))
			return Enrichment{}
		}
		return e.pathsFor(arxivID)
	default:
		e.logger.Warn("Unknown paper source", zap.String("paper_id", paperID))
		return Enrichment{}
	}
}

// Apply stamps the enrichment onto a paper copy and returns it.
func Apply(p models.Paper, en Enrichment) models.Paper {
	p.ArxivID = en.ArxivID
	p.ContentTextPath = en.ContentTextPath
	p.ContentChunksPath = en.ContentChunksPath
	return p
}

func (e *Enricher) pathsFor(arxivID string) Enrichment {
	return Enrichment{
		ArxivID:           arxivID,
		ContentTextPath:   fmt.Sprintf("s3://%s/%s/full_text.txt", e.bucket, arxivID),
		ContentChunksPath: fmt.Sprintf("s3://%s/%s/chunks.json", e.bucket, arxivID),
	}
}
