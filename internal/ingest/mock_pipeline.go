package ingest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/harvester-hq/harvester/internal/crawler"
)

// MockPipeline is a mock implementation of the Pipeline interface for testing.
type MockPipeline struct {
	mock.Mock
}

// IngestURL is the mock implementation of the IngestURL method.
func (m *MockPipeline) IngestURL(ctx context.Context, sourceID int64, meta crawler.Metadata, url string) error {
	args := m.Called(ctx, sourceID, meta, url)
	return args.Error(0)
}

// IngestFile is the mock implementation of the IngestFile method.
func (m *MockPipeline) IngestFile(ctx context.Context, sourceID int64, meta crawler.Metadata, path string) error {
	args := m.Called(ctx, sourceID, meta, path)
	return args.Error(0)
}
