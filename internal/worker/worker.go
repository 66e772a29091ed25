// Package worker implements the consumer side of the asynchronous
// ingest path: it drains envelopes from the work queue and hands them to
// the ingestion pipeline.
package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/harvester-hq/harvester/internal/dispatch"
	"github.com/harvester-hq/harvester/internal/ingest"
	"github.com/harvester-hq/harvester/internal/metrics"
	"github.com/harvester-hq/harvester/internal/queue"
)

// Worker consumes queue messages until its context finishes. Delivery is
// at-least-once: a failed ingest is nacked for redelivery, so the
// pipeline behind it must be idempotent per (sourceID, url).
type Worker struct {
	sub      queue.Subscriber
	pipeline ingest.Pipeline
	logger   *zap.Logger
}

// New constructs a Worker.
func New(sub queue.Subscriber, pipeline ingest.Pipeline, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{sub: sub, pipeline: pipeline, logger: logger}
}

// Run blocks, consuming messages until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("ingest worker started")
	if err := w.sub.Receive(ctx, w.handle); err != nil {
		return fmt.Errorf("ingest worker: %w", err)
	}
	return nil
}

// handle processes one delivery. A nil return acks the message; an error
// nacks it. Malformed payloads are acked and dropped: redelivery cannot
// fix them and they would otherwise poison the subscription.
func (w *Worker) handle(ctx context.Context, payload []byte) error {
	env, err := dispatch.DecodeEnvelope(payload)
	if err != nil {
		metrics.ObserveIngestFailure()
		w.logger.Error("dropping malformed envelope", zap.Error(err))
		return nil
	}

	if err := w.pipeline.IngestURL(ctx, env.SourceID, env.Metadata, env.URL); err != nil {
		metrics.ObserveIngestFailure()
		w.logger.Error("ingest failed, message will be redelivered",
			zap.Int64("source_id", env.SourceID),
			zap.String("url", env.URL),
			zap.Error(err),
		)
		return fmt.Errorf("ingest %s: %w", env.URL, err)
	}

	w.logger.Debug("envelope ingested",
		zap.Int64("source_id", env.SourceID),
		zap.String("url", env.URL),
		zap.String("crawler", env.Metadata.Crawler()),
	)
	return nil
}
