package workflows

// ResearchInput starts a research run.
type ResearchInput struct {
	// Query is the user's research question. Required.
	Query string

	// ChunkedReporting generates the report section by section so one
	// failed section degrades to a placeholder instead of losing the
	// whole document.
	ChunkedReporting bool
}

// ResearchResult is the workflow return value. Report is always set:
// a full report on success, a partial or error report otherwise.
type ResearchResult struct {
	Report   string
	Success  bool
	Metadata map[string]interface{}
}
