package pipeline

import (
	"fmt"

	"docpipe/internal/analyzer"
	"docpipe/internal/loader"
	"docpipe/internal/mapping"
	"docpipe/internal/progress"
)

// CollectionResult aggregates one collection's pass through the pipeline.
type CollectionResult struct {
	Collection string `json:"collection"`

	// Success is false when the collection failed analysis or every batch
	// write errored. A skipped (empty) collection is not a failure.
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`

	Profile analyzer.FieldProfile `json:"profile"`
	Mapping mapping.TableMapping  `json:"mapping"`

	DocumentsRead     int   `json:"documentsRead"`
	RecordsProcessed  int   `json:"recordsProcessed"`
	RecordsInserted   int64 `json:"recordsInserted"`
	DroppedSparse     int   `json:"droppedSparse"`
	DroppedInvalid    int   `json:"droppedInvalid"`
	DuplicatesRemoved int   `json:"duplicatesRemoved"`

	Tables []loader.TableResult `json:"tables,omitempty"`

	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

// Result is the final outcome of one pipeline run. It is the only entity
// returned to the caller.
type Result struct {
	RunID    string `json:"runId"`
	TenantID string `json:"tenantId"`

	TotalCollections     int `json:"totalCollections"`
	ProcessedCollections int `json:"processedCollections"`
	FailedCollections    int `json:"failedCollections"`

	TotalRecordsProcessed int   `json:"totalRecordsProcessed"`
	TotalRecordsInserted  int64 `json:"totalRecordsInserted"`

	// SuccessRate is inserted/processed as a percentage with one decimal.
	// It can exceed 100.0 when documents fan out into multiple rows; that
	// is an expected outcome, not an arithmetic bug.
	SuccessRate string `json:"successRate"`

	ProcessingTimeSeconds float64 `json:"processingTimeSeconds"`

	Collections []CollectionResult `json:"perCollectionResults"`

	// Log is the capped event ring, oldest first.
	Log []progress.Event `json:"log"`
}

// successRate formats inserted/processed with one decimal place.
func successRate(processed int, inserted int64) string {
	if processed == 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", float64(inserted)/float64(processed)*100)
}
