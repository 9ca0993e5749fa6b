package writer

import "sync"

// WriterConfig holds batch writer settings.
type WriterConfig struct {
	BatchSize int // Rows per batch (default: 25)
}

// DefaultWriterConfig returns sensible defaults. 25 is also the DynamoDB
// BatchWriteItem limit.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize: 25,
	}
}

// WriterMetrics tracks writer statistics.
type WriterMetrics struct {
	Inserts   int64 // Rows inserted or updated
	Conflicts int64 // Rows skipped by a conflict clause
	Deletes   int64 // Rows removed by replace operations
	Errors    int64 // Rows that could not be written
	Batches   int64 // Batches sent
}

// metricsRecorder guards WriterMetrics for concurrent callers.
type metricsRecorder struct {
	mu      sync.Mutex
	metrics WriterMetrics
}

func (m *metricsRecorder) record(fn func(*WriterMetrics)) {
	m.mu.Lock()
	fn(&m.metrics)
	m.mu.Unlock()
}

// Stats returns current metrics.
func (m *metricsRecorder) Stats() WriterMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}

func (c WriterConfig) withDefaults() WriterConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultWriterConfig().BatchSize
	}
	return c
}
