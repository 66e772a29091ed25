// Package dispatch routes discovered content to the ingestion pipeline,
// decoupling crawlers from the pipeline's transport. URLs travel
// asynchronously over a durable work queue; locally materialized files
// are handed to the pipeline inline, which keeps temp-file cleanup
// ordering simple and avoids double-buffering content that is already
// on disk.
package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/harvester-hq/harvester/internal/crawler"
	"github.com/harvester-hq/harvester/internal/ingest"
	"github.com/harvester-hq/harvester/internal/metrics"
	"github.com/harvester-hq/harvester/internal/queue"
)

// Config controls Dispatcher behavior.
type Config struct {
	// Eager short-circuits the broker: DispatchAsync invokes the
	// pipeline's URL entry point inline and returns only after the
	// consumer completes. Used to make tests and local runs
	// deterministic; never enable it in production.
	Eager bool
}

// Dispatcher implements crawler.Dispatcher over a queue.Publisher and an
// ingest.Pipeline.
type Dispatcher struct {
	publisher queue.Publisher
	pipeline  ingest.Pipeline
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Dispatcher.
func New(publisher queue.Publisher, pipeline ingest.Pipeline, cfg Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		publisher: publisher,
		pipeline:  pipeline,
		cfg:       cfg,
		logger:    logger,
	}
}

// DispatchAsync places one unit of work on the queue and returns once
// the broker acknowledges the enqueue; it never waits for ingestion to
// complete. Delivery is at-least-once, so the consumer must be
// idempotent per (sourceID, url). An enqueue failure surfaces as a
// *DispatchError with no retry.
func (d *Dispatcher) DispatchAsync(ctx context.Context, sourceID int64, meta crawler.Metadata, url string) error {
	if d.cfg.Eager {
		if err := d.pipeline.IngestURL(ctx, sourceID, meta, url); err != nil {
			metrics.ObserveDispatch(metrics.ModeAsync, metrics.OutcomeError)
			return &DispatchError{URL: url, Err: fmt.Errorf("eager ingest: %w", err)}
		}
		metrics.ObserveDispatch(metrics.ModeAsync, metrics.OutcomeOK)
		return nil
	}

	env := Envelope{SourceID: sourceID, Metadata: meta, URL: url}
	payload, err := env.Marshal()
	if err != nil {
		metrics.ObserveDispatch(metrics.ModeAsync, metrics.OutcomeError)
		return &DispatchError{URL: url, Err: err}
	}

	msgID, err := d.publisher.Publish(ctx, payload)
	if err != nil {
		metrics.ObserveDispatch(metrics.ModeAsync, metrics.OutcomeError)
		return &DispatchError{URL: url, Err: err}
	}

	metrics.ObserveDispatch(metrics.ModeAsync, metrics.OutcomeOK)
	d.logger.Debug("url dispatched",
		zap.Int64("source_id", sourceID),
		zap.String("url", url),
		zap.String("message_id", msgID),
		zap.String("crawler", meta.Crawler()),
	)
	return nil
}

// DispatchSync hands a file to the pipeline in the calling goroutine and
// blocks until the pipeline accepts or rejects it. No internal timeout
// is imposed; callers needing one wrap ctx with a deadline. A pipeline
// failure surfaces as a *IngestError wrapping the cause.
func (d *Dispatcher) DispatchSync(ctx context.Context, sourceID int64, meta crawler.Metadata, path string) error {
	if err := d.pipeline.IngestFile(ctx, sourceID, meta, path); err != nil {
		metrics.ObserveDispatch(metrics.ModeSync, metrics.OutcomeError)
		return &IngestError{Path: path, Err: err}
	}
	metrics.ObserveDispatch(metrics.ModeSync, metrics.OutcomeOK)
	d.logger.Debug("file dispatched",
		zap.Int64("source_id", sourceID),
		zap.String("path", path),
		zap.String("crawler", meta.Crawler()),
	)
	return nil
}
