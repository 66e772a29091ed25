// Package directory implements a crawler that walks a local directory
// tree and reports every regular file for synchronous ingestion.
package directory

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/harvester-hq/harvester/internal/crawler"
	"github.com/harvester-hq/harvester/internal/source"
)

// Name is the crawler's identity, stamped into every metadata record.
const Name = "directory"

// Crawler walks a directory tree, handing each regular file to the
// pipeline inline. It holds no state between crawls.
type Crawler struct {
	crawler.Base
	logger *zap.Logger
}

// New builds a directory Crawler.
func New(d crawler.Dispatcher, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{Base: crawler.NewBase(d), logger: logger}
}

// Metadata returns a fresh provenance record for one discovered unit.
func (c *Crawler) Metadata() crawler.Metadata {
	return crawler.NewMetadata(Name)
}

// Crawl walks opts["path"] and emits every regular file synchronously.
// With opts["remove"] set to "true" each file is removed after its emit
// returns, whether the pipeline accepted it or not; the crawler owns
// cleanup of transient files regardless of ingest outcome. The walk
// stops at the first emit failure.
func (c *Crawler) Crawl(ctx context.Context, src source.Source, opts crawler.Options) error {
	root := opts["path"]
	if root == "" {
		return fmt.Errorf("directory crawler requires the %q option", "path")
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat %q: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%q is not a directory", root)
	}
	removeAfter := opts["remove"] == "true"

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		meta := c.Metadata().With("source_path", rel)

		emitErr := c.EmitFile(ctx, src, meta, path)
		if removeAfter {
			if rmErr := os.Remove(path); rmErr != nil {
				c.logger.Warn("remove emitted file", zap.String("path", path), zap.Error(rmErr))
			}
		}
		if emitErr != nil {
			return emitErr
		}
		c.logger.Debug("file ingested",
			zap.Int64("source_id", src.ID),
			zap.String("path", path),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %q: %w", root, err)
	}
	return nil
}
