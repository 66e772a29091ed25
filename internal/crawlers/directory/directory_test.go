package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvester-hq/harvester/internal/crawler"
	"github.com/harvester-hq/harvester/internal/dispatch"
	"github.com/harvester-hq/harvester/internal/source"
)

type recordingDispatcher struct {
	files   []string
	metas   []crawler.Metadata
	failOn  string
	failErr error
}

func (r *recordingDispatcher) DispatchAsync(context.Context, int64, crawler.Metadata, string) error {
	panic("directory crawler must never dispatch asynchronously")
}

func (r *recordingDispatcher) DispatchSync(_ context.Context, _ int64, meta crawler.Metadata, path string) error {
	r.files = append(r.files, path)
	r.metas = append(r.metas, meta)
	if r.failOn != "" && filepath.Base(path) == r.failOn {
		return r.failErr
	}
	return nil
}

func writeFiles(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("content of "+name), 0o600))
	}
	return dir
}

func TestCrawlEmitsEveryRegularFile(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, "a.pdf", "sub/b.txt")
	d := &recordingDispatcher{}
	c := New(d, nil)

	err := c.Crawl(context.Background(), source.Source{ID: 4}, crawler.Options{"path": dir})
	require.NoError(t, err)
	require.Len(t, d.files, 2)

	// Files stay in place when removal was not requested.
	for _, f := range d.files {
		_, statErr := os.Stat(f)
		assert.NoError(t, statErr)
	}
	for _, m := range d.metas {
		assert.Equal(t, Name, m.Crawler())
		assert.NotEmpty(t, m["source_path"])
	}
}

func TestCrawlRemovesFilesAfterAcceptedEmit(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, "a.pdf")
	d := &recordingDispatcher{}
	c := New(d, nil)

	err := c.Crawl(context.Background(), source.Source{ID: 4},
		crawler.Options{"path": dir, "remove": "true"})
	require.NoError(t, err)
	require.Len(t, d.files, 1)

	_, statErr := os.Stat(d.files[0])
	assert.True(t, os.IsNotExist(statErr), "emitted file must be cleaned up")
}

func TestCrawlCleansUpEvenWhenPipelineRejects(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, "bad.bin")
	rejection := &dispatch.IngestError{Path: "bad.bin", Err: assert.AnError}
	d := &recordingDispatcher{failOn: "bad.bin", failErr: rejection}
	c := New(d, nil)

	err := c.Crawl(context.Background(), source.Source{ID: 4},
		crawler.Options{"path": dir, "remove": "true"})

	var ierr *dispatch.IngestError
	require.ErrorAs(t, err, &ierr)
	require.Len(t, d.files, 1, "rejected file must be emitted exactly once")

	_, statErr := os.Stat(d.files[0])
	assert.True(t, os.IsNotExist(statErr), "cleanup must run on failure too")
}

func TestCrawlRequiresPathOption(t *testing.T) {
	t.Parallel()

	c := New(&recordingDispatcher{}, nil)
	err := c.Crawl(context.Background(), source.Source{ID: 1}, crawler.Options{})
	require.Error(t, err)

	err = c.Crawl(context.Background(), source.Source{ID: 1}, crawler.Options{"path": "/does/not/exist"})
	require.Error(t, err)
}
