package heiretsu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalcBatchSizeDividesAcrossThreads(t *testing.T) {
	s := DefaultBatchingStrategy()
	got := s.CalcBatchSize(func() int { return 100 }, 4)
	require.Equal(t, 25, got)
}

func TestCalcBatchSizeCeilDivision(t *testing.T) {
	s := DefaultBatchingStrategy()
	// 100 items over 3 threads: ceil(100/3) = 34
	require.Equal(t, 34, s.CalcBatchSize(func() int { return 100 }, 3))
}

func TestCalcBatchSizeBatchesPerThread(t *testing.T) {
	s := BatchingStrategy{MinBatchSize: 1, BatchesPerThread: 4}
	// 4 threads x 4 batches each = 16 batches over 160 items
	require.Equal(t, 10, s.CalcBatchSize(func() int { return 160 }, 4))
}

func TestCalcBatchSizeClampsToMin(t *testing.T) {
	s := BatchingStrategy{MinBatchSize: 50, BatchesPerThread: 1}
	require.Equal(t, 50, s.CalcBatchSize(func() int { return 100 }, 4))
}

func TestCalcBatchSizeClampsToMax(t *testing.T) {
	s := BatchingStrategy{MinBatchSize: 1, MaxBatchSize: 10, BatchesPerThread: 1}
	require.Equal(t, 10, s.CalcBatchSize(func() int { return 100 }, 4))
}

func TestCalcBatchSizeFixedOverrideSkipsSupplier(t *testing.T) {
	s := FixedBatchSize(7)
	got := s.CalcBatchSize(func() int {
		panic("supplier must not be consulted for a fixed batch size")
	}, 4)
	require.Equal(t, 7, got)
}

func TestCalcBatchSizeSupplierCalledOnce(t *testing.T) {
	s := DefaultBatchingStrategy()
	calls := 0
	s.CalcBatchSize(func() int {
		calls++
		return 1000
	}, 8)
	require.Equal(t, 1, calls)
}

func TestCalcBatchSizeZeroItems(t *testing.T) {
	s := BatchingStrategy{MinBatchSize: 0, BatchesPerThread: 1}
	// zero estimate with no minimum yields zero; dispatchers clamp to 1
	require.Equal(t, 0, s.CalcBatchSize(func() int { return 0 }, 4))
}

func TestCalcBatchSizeNonPositiveThreadsPanics(t *testing.T) {
	s := DefaultBatchingStrategy()
	require.Panics(t, func() {
		s.CalcBatchSize(func() int { return 10 }, 0)
	})
}

func TestFixedBatchSizeIsOverride(t *testing.T) {
	s := FixedBatchSize(32)
	require.Equal(t, 32, s.MinBatchSize)
	require.Equal(t, 32, s.MaxBatchSize)
}
