package activities

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarflow/orchestrator/internal/models"
)

func TestEnrichPapersEmptyBatch(t *testing.T) {
	a := newTestActivities(t, "http://unused")
	result, err := a.EnrichPapers(context.Background(), EnrichPapersInput{})
	require.NoError(t, err)
	assert.Empty(t, result.Papers)
	assert.Zero(t, result.Resolved)
}

func TestEnrichPapersMixedBatch(t *testing.T) {
	a := newTestActivities(t, "http://unused")

	input := EnrichPapersInput{Papers: []models.Paper{
		{ID: "arxiv:2301.00001", Title: "A"},
		{ID: "doi:10.1000/xyz", Title: "B"},
		{ID: "arxiv:2302.04999", Title: "C"},
	}}

	result, err := a.EnrichPapers(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, result.Papers, 3)
	assert.Equal(t, 2, result.Resolved)

	// Order is preserved despite concurrent workers.
	assert.Equal(t, "A", result.Papers[0].Title)
	assert.Equal(t, "B", result.Papers[1].Title)
	assert.Equal(t, "C", result.Papers[2].Title)

	assert.Equal(t, "s3://research-papers/2301.00001/full_text.txt", result.Papers[0].ContentTextPath)
	assert.Equal(t, "s3://research-papers/2301.00001/chunks.json", result.Papers[0].ContentChunksPath)
	assert.Equal(t, "2301.00001", result.Papers[0].ArxivID)

	// Unresolvable ids stay in the batch, just without paths.
	assert.False(t, result.Papers[1].Enriched())
	assert.Empty(t, result.Papers[1].ArxivID)

	assert.True(t, result.Papers[2].Enriched())
}

func TestEnrichPapersDoesNotMutateInput(t *testing.T) {
	a := newTestActivities(t, "http://unused")
	papers := []models.Paper{{ID: "arxiv:2301.00001"}}

	_, err := a.EnrichPapers(context.Background(), EnrichPapersInput{Papers: papers})
	require.NoError(t, err)
	assert.Empty(t, papers[0].ContentTextPath)
}
