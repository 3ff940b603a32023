package heiretsu

import "go.uber.org/zap"

// ParFilter is a parallel iterator over a Filter's query results, created by
// Filter.Par. Each dispatch partitions the matched chunks into batches and
// runs one task per batch on the injected pool; the call returns only after
// every task has joined.
//
// The engine never merges per-task accumulators. Cross-task aggregation is
// the caller's job, usually through per-task state inspected after the call
// returns.
type ParFilter[T any] struct {
	f        *Filter[T]
	pool     *TaskPool
	strategy BatchingStrategy
}

// Par returns a parallel iterator over the filter's results, dispatching on
// the given pool with the default batching strategy.
func (f *Filter[T]) Par(pool *TaskPool) *ParFilter[T] {
	return &ParFilter[T]{f: f, pool: pool, strategy: DefaultBatchingStrategy()}
}

// WithBatching changes the batching strategy used when iterating.
func (pf *ParFilter[T]) WithBatching(s BatchingStrategy) *ParFilter[T] {
	pf.strategy = s
	return pf
}

// ParForEach runs fn on each query result in parallel. It is ParForEachInit
// without accumulator state.
func ParForEach[T any](pf *ParFilter[T], fn func(Entity, *T)) error {
	return ParForEachInit(pf, func() struct{} { return struct{}{} },
		func(acc struct{}, e Entity, c *T) struct{} {
			fn(e, c)
			return acc
		})
}

// ParForEachInit runs fold on each query result in parallel, threading a
// per-task accumulator created by init. init is called once per task (or
// once total on the sequential fallback); accumulator values are dropped
// after their task completes and are never merged by the engine.
//
// Items are visited exactly once across all tasks; the multiset of visited
// items equals that of a sequential pass, though cross-task order is
// unspecified. The filter's component access is held for the whole dispatch.
// A panic inside fold is caught in its task, sibling tasks run to
// completion, and the first panic is returned as a *TaskPanicError.
func ParForEachInit[T any, A any](pf *ParFilter[T], init func() A, fold func(A, Entity, *T) A) error {
	f := pf.f
	if pf.pool == nil {
		return ErrNoTaskPool
	}
	f.refresh()
	f.beginPass()
	if err := f.world.access.acquire(f.readMask, f.writeMask); err != nil {
		return err
	}
	defer func() {
		f.world.access.release(f.readMask, f.writeMask)
		f.endPass()
	}()
	spans := f.collectSpans(nil)
	if len(spans) == 0 {
		return nil
	}
	if pf.pool.ThreadCount() <= 1 {
		return pf.pool.runInline(func() {
			runSpanFold(f, spans, init, fold)
		})
	}
	batches := pf.partition(spans)
	return pf.pool.Scope(func(s *TaskScope) {
		for _, b := range batches {
			batch := b
			s.Spawn(func() {
				runSpanFold(f, batch, init, fold)
			})
		}
	})
}

// partition slices the span list into batches per the strategy: the item
// estimate is the largest matched chunk for dense queries and the largest
// matched archetype for sparse-touching ones, since batches are drawn
// storage-unit by storage-unit rather than from the total.
func (pf *ParFilter[T]) partition(spans []span) [][]span {
	f := pf.f
	threads := pf.pool.ThreadCount()
	supplier := f.maxChunkEntities
	if !f.isDense() {
		supplier = f.maxArchetypeEntities
	}
	batchSize := pf.strategy.CalcBatchSize(supplier, threads)
	if batchSize < 1 {
		batchSize = 1
	}
	batches := partitionSpans(spans, batchSize)
	pf.pool.log().Debug("parallel dispatch",
		zap.Int("batches", len(batches)),
		zap.Int("batch_size", batchSize),
		zap.Int("threads", threads))
	return batches
}

// runSpanFold folds one batch on a scoped cursor: a fresh accumulator, the
// shared tick snapshot, items in storage order.
func runSpanFold[T any, A any](f *Filter[T], spans []span, init func() A, fold func(A, Entity, *T) A) {
	c := newCursor(&f.queryState, spans)
	acc := init()
	for c.next() {
		sp, slot := c.current()
		acc = fold(acc, c.ent, (*T)(f.componentPtr(sp.chunk, slot, c.ent, f.writes)))
	}
}

// partitionSpans packs spans into batches of at most batchSize entities,
// splitting spans larger than a batch and coalescing smaller ones. Batches
// partition the input: every slot lands in exactly one batch, so tasks are
// disjoint in entity identity.
func partitionSpans(spans []span, batchSize int) [][]span {
	var batches [][]span
	var cur []span
	curN := 0
	for _, sp := range spans {
		start := sp.start
		left := sp.end - sp.start
		for left > 0 {
			room := batchSize - curN
			if room == 0 {
				batches = append(batches, cur)
				cur = nil
				curN = 0
				room = batchSize
			}
			take := min(left, room)
			cur = append(cur, span{arch: sp.arch, chunk: sp.chunk, start: start, end: start + take})
			curN += take
			start += take
			left -= take
		}
	}
	if curN > 0 {
		batches = append(batches, cur)
	}
	return batches
}

// ParFilter2 is the two-component counterpart of ParFilter, created by
// Filter2.Par.
type ParFilter2[T1 any, T2 any] struct {
	f        *Filter2[T1, T2]
	pool     *TaskPool
	strategy BatchingStrategy
}

// Par returns a parallel iterator over the filter's results.
func (f *Filter2[T1, T2]) Par(pool *TaskPool) *ParFilter2[T1, T2] {
	return &ParFilter2[T1, T2]{f: f, pool: pool, strategy: DefaultBatchingStrategy()}
}

// WithBatching changes the batching strategy used when iterating.
func (pf *ParFilter2[T1, T2]) WithBatching(s BatchingStrategy) *ParFilter2[T1, T2] {
	pf.strategy = s
	return pf
}

// ParForEach2 runs fn on each query result in parallel.
func ParForEach2[T1 any, T2 any](pf *ParFilter2[T1, T2], fn func(Entity, *T1, *T2)) error {
	return ParForEachInit2(pf, func() struct{} { return struct{}{} },
		func(acc struct{}, e Entity, c1 *T1, c2 *T2) struct{} {
			fn(e, c1, c2)
			return acc
		})
}

// ParForEachInit2 is ParForEachInit for two-component filters.
func ParForEachInit2[T1 any, T2 any, A any](pf *ParFilter2[T1, T2], init func() A, fold func(A, Entity, *T1, *T2) A) error {
	f := pf.f
	if pf.pool == nil {
		return ErrNoTaskPool
	}
	f.refresh()
	f.beginPass()
	if err := f.world.access.acquire(f.readMask, f.writeMask); err != nil {
		return err
	}
	defer func() {
		f.world.access.release(f.readMask, f.writeMask)
		f.endPass()
	}()
	spans := f.collectSpans(nil)
	if len(spans) == 0 {
		return nil
	}
	if pf.pool.ThreadCount() <= 1 {
		return pf.pool.runInline(func() {
			runSpanFold2(f, spans, init, fold)
		})
	}
	threads := pf.pool.ThreadCount()
	supplier := f.maxChunkEntities
	if !f.isDense() {
		supplier = f.maxArchetypeEntities
	}
	batchSize := pf.strategy.CalcBatchSize(supplier, threads)
	if batchSize < 1 {
		batchSize = 1
	}
	batches := partitionSpans(spans, batchSize)
	pf.pool.log().Debug("parallel dispatch",
		zap.Int("batches", len(batches)),
		zap.Int("batch_size", batchSize),
		zap.Int("threads", threads))
	return pf.pool.Scope(func(s *TaskScope) {
		for _, b := range batches {
			batch := b
			s.Spawn(func() {
				runSpanFold2(f, batch, init, fold)
			})
		}
	})
}

func runSpanFold2[T1 any, T2 any, A any](f *Filter2[T1, T2], spans []span, init func() A, fold func(A, Entity, *T1, *T2) A) {
	c := newCursor(&f.queryState, spans)
	acc := init()
	for c.next() {
		sp, slot := c.current()
		p1 := f.componentPtr(0, sp.chunk, slot, c.ent)
		p2 := f.componentPtr(1, sp.chunk, slot, c.ent)
		acc = fold(acc, c.ent, (*T1)(p1), (*T2)(p2))
	}
}
