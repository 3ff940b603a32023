package heiretsu

// BatchingStrategy dictates how a parallel dispatch divides matched entities
// into batches. One task is scheduled per batch, so the batch size controls
// the trade-off between scheduling overhead (small batches) and load
// imbalance (large batches).
type BatchingStrategy struct {
	// MinBatchSize is the lower bound on the computed batch size. When
	// MaxBatchSize is non-zero and MinBatchSize >= MaxBatchSize, the
	// strategy is a fixed override: CalcBatchSize returns MinBatchSize
	// without consulting the item estimate.
	MinBatchSize int
	// MaxBatchSize is the upper bound on the computed batch size. Zero
	// means unbounded.
	MaxBatchSize int
	// BatchesPerThread is the number of batches to create per worker
	// thread. Higher values smooth out uneven per-item cost at the price
	// of more scheduling overhead.
	BatchesPerThread int
}

// DefaultBatchingStrategy returns the default configuration: no fixed batch
// size, no upper bound, one batch per thread.
func DefaultBatchingStrategy() BatchingStrategy {
	return BatchingStrategy{MinBatchSize: 1, MaxBatchSize: 0, BatchesPerThread: 1}
}

// FixedBatchSize returns a strategy that always yields the given batch size.
func FixedBatchSize(n int) BatchingStrategy {
	return BatchingStrategy{MinBatchSize: n, MaxBatchSize: n, BatchesPerThread: 1}
}

// CalcBatchSize computes the batch size for the given item estimate and
// thread count. maxItems is invoked at most once, and only when the
// strategy actually needs an estimate; a fixed override skips it entirely.
//
// The result may be zero when the estimate is zero; callers must clamp to at
// least 1 before scheduling.
func (s BatchingStrategy) CalcBatchSize(maxItems func() int, threadCount int) int {
	if s.MaxBatchSize != 0 && s.MinBatchSize >= s.MaxBatchSize {
		return s.MinBatchSize
	}
	if threadCount <= 0 {
		panic("ecs: thread count must be positive")
	}
	bpt := s.BatchesPerThread
	if bpt < 1 {
		bpt = 1
	}
	batches := threadCount * bpt
	size := (maxItems() + batches - 1) / batches
	if size < s.MinBatchSize {
		size = s.MinBatchSize
	}
	if s.MaxBatchSize != 0 && size > s.MaxBatchSize {
		size = s.MaxBatchSize
	}
	return size
}
