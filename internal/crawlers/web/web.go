// Package web implements a crawler that walks a web site from a seed
// URL and reports every reachable page for asynchronous ingestion.
package web

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/harvester-hq/harvester/internal/crawler"
	"github.com/harvester-hq/harvester/internal/source"
)

// Name is the crawler's identity, stamped into every metadata record.
const Name = "web"

// Config controls collector behavior.
type Config struct {
	UserAgent string
	MaxDepth  int
	Timeout   time.Duration
}

// Crawler discovers pages with a Colly collector and emits each visited
// page's URL through the dispatcher. It holds no state between crawls.
type Crawler struct {
	crawler.Base
	cfg    Config
	logger *zap.Logger
}

// New builds a web Crawler.
func New(d crawler.Dispatcher, cfg Config, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = 2
	}
	return &Crawler{Base: crawler.NewBase(d), cfg: cfg, logger: logger}
}

// Metadata returns a fresh provenance record for one discovered unit.
func (c *Crawler) Metadata() crawler.Metadata {
	return crawler.NewMetadata(Name)
}

// Crawl visits pages reachable from opts["url"], staying on the seed's
// host, and emits every visited page URL for asynchronous ingestion.
// Supported options: "url" (required seed), "max_depth" (override).
// The crawl aborts on the first emit failure: a broken broker fails the
// whole run rather than silently dropping discovered pages.
func (c *Crawler) Crawl(ctx context.Context, src source.Source, opts crawler.Options) error {
	seed := opts["url"]
	if seed == "" {
		return fmt.Errorf("web crawler requires the %q option", "url")
	}
	seedURL, err := url.Parse(seed)
	if err != nil {
		return fmt.Errorf("parse seed url %q: %w", seed, err)
	}

	maxDepth := c.cfg.MaxDepth
	if raw, ok := opts["max_depth"]; ok {
		depth, err := strconv.Atoi(raw)
		if err != nil || depth < 1 {
			return fmt.Errorf("invalid max_depth %q", raw)
		}
		maxDepth = depth
	}

	collector := colly.NewCollector(
		colly.MaxDepth(maxDepth),
		colly.AllowedDomains(seedURL.Host, seedURL.Hostname()),
	)
	collector.SetRequestTimeout(c.cfg.Timeout)
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}

	var emitErr error

	collector.OnRequest(func(r *colly.Request) {
		if emitErr != nil || ctx.Err() != nil {
			r.Abort()
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		meta := c.Metadata().With("seed", seed)
		pageURL := r.Request.URL.String()
		if err := c.EmitURL(ctx, src, meta, pageURL); err != nil {
			emitErr = err
			return
		}
		c.logger.Debug("page discovered",
			zap.Int64("source_id", src.ID),
			zap.String("url", pageURL),
		)
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		// Visit errors (off-domain, already seen, depth) just prune the walk.
		_ = e.Request.Visit(link)
	})

	if err := collector.Visit(seed); err != nil {
		return fmt.Errorf("visit seed %q: %w", seed, err)
	}
	collector.Wait()

	if emitErr != nil {
		return emitErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}
