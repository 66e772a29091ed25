// Package ingest defines the boundary to the ingestion pipeline, the
// external subsystem that turns a discovered URL or file into a stored,
// searchable document. Only the two entry points are specified here;
// everything behind them is out of scope for this service.
package ingest

import (
	"context"

	"github.com/harvester-hq/harvester/internal/crawler"
)

// Pipeline is the contract the ingestion pipeline exposes to this core.
type Pipeline interface {
	// IngestURL processes a URL dispatched through the work queue.
	// Delivery is at-least-once, so implementations must be idempotent
	// per (sourceID, url) pair and tolerate out-of-order and concurrent
	// arrivals for the same source.
	IngestURL(ctx context.Context, sourceID int64, meta crawler.Metadata, url string) error

	// IngestFile processes a locally available file in the caller's
	// goroutine, returning once the file is accepted or rejected. The
	// caller keeps ownership of the file and cleans it up afterwards.
	IngestFile(ctx context.Context, sourceID int64, meta crawler.Metadata, path string) error
}

// NoOpPipeline discards everything. Useful for local runs without a
// configured pipeline.
type NoOpPipeline struct{}

// IngestURL for NoOpPipeline does nothing and returns nil.
func (NoOpPipeline) IngestURL(context.Context, int64, crawler.Metadata, string) error {
	return nil
}

// IngestFile for NoOpPipeline does nothing and returns nil.
func (NoOpPipeline) IngestFile(context.Context, int64, crawler.Metadata, string) error {
	return nil
}
