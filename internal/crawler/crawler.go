// Package crawler defines the crawler capability contract and the
// provenance metadata attached to everything a crawler discovers.
//
// A crawler is a stateless unit of logic that walks some corpus (a web
// site, a directory tree, an API) on behalf of a Source and reports each
// discovered unit for ingestion. Crawlers never talk to the ingestion
// pipeline directly; they hand discovered URLs and files to a Dispatcher,
// which owns the transport.
package crawler

import (
	"context"

	"github.com/harvester-hq/harvester/internal/source"
)

// Options carries crawler-specific configuration supplied by the caller
// for one crawl invocation. Keys are interpreted by the concrete crawler;
// unknown keys are ignored.
type Options map[string]string

// Crawler is the capability every concrete crawler implements. There is
// deliberately no default Crawl: a crawler type that omits it does not
// satisfy the interface and fails at compile time rather than at runtime.
type Crawler interface {
	// Crawl walks the corpus described by src and opts, emitting each
	// discovered unit through the crawler's dispatcher. It returns once
	// every discovered unit has been reported or an emit failed.
	Crawl(ctx context.Context, src source.Source, opts Options) error

	// Metadata returns a fresh provenance record identifying the crawler.
	// Implementations must return a new (or cloned) record per call so
	// records are never shared by reference between discovered units.
	Metadata() Metadata
}

// Dispatcher routes discovered units to the ingestion pipeline. It is
// implemented by the dispatch package; crawlers depend only on this
// interface.
type Dispatcher interface {
	// DispatchAsync enqueues a URL for out-of-process ingestion and
	// returns once the broker acknowledges the enqueue.
	DispatchAsync(ctx context.Context, sourceID int64, meta Metadata, url string) error

	// DispatchSync hands a locally materialized file to the pipeline
	// inline and blocks until it is accepted or rejected.
	DispatchSync(ctx context.Context, sourceID int64, meta Metadata, path string) error
}

// Base provides the emit helpers shared by concrete crawlers. Embed it
// and supply a dispatcher; the embedding type still has to implement
// Crawl and Metadata itself.
type Base struct {
	dispatcher Dispatcher
}

// NewBase constructs a Base around the given dispatcher.
func NewBase(d Dispatcher) Base {
	return Base{dispatcher: d}
}

// EmitURL reports a remotely fetchable URL for asynchronous ingestion.
// It blocks only on the enqueue acknowledgment, never on fetching the
// target itself. The Source record is not mutated. A broker failure
// surfaces as a *dispatch.DispatchError; whether to retry or abort the
// crawl is the concrete crawler's decision.
func (b Base) EmitURL(ctx context.Context, src source.Source, meta Metadata, url string) error {
	return b.dispatcher.DispatchAsync(ctx, src.ID, meta.Clone(), url)
}

// EmitFile reports a locally available file for synchronous ingestion,
// blocking until the pipeline accepts or rejects it. The crawler remains
// responsible for cleaning up the file after this call returns, success
// or failure, since emitted files are typically transient downloads.
// Pipeline rejection surfaces as a *dispatch.IngestError.
func (b Base) EmitFile(ctx context.Context, src source.Source, meta Metadata, path string) error {
	return b.dispatcher.DispatchSync(ctx, src.ID, meta.Clone(), path)
}
