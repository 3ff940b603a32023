package heiretsu

import "go.uber.org/zap"

// The entity-list variants batch by list index rather than by storage chunk:
// the batch size is computed from len(list) and the thread count, and each
// task owns one contiguous slice of the list. List order decides batch
// membership; entities that are dead or fail the filter are skipped inside
// their task.
//
// Two forms exist because of aliasing. An arbitrary list may contain the
// same entity twice, so the plain variant hands each item out BY VALUE:
// concurrent tasks can never write through it, making duplicate entries
// harmless. The unique variant takes a UniqueEntityList, whose constructor
// has already rejected duplicates, and that guarantee alone is what lets it
// hand out mutable pointers across tasks.

// ParForEachMany runs fn on each listed entity's query item in parallel,
// passing the component by value (read-only).
func ParForEachMany[T any](pf *ParFilter[T], list []Entity, fn func(Entity, T)) error {
	return ParForEachManyInit(pf, list, func() struct{} { return struct{}{} },
		func(acc struct{}, e Entity, c T) struct{} {
			fn(e, c)
			return acc
		})
}

// ParForEachManyInit is the accumulator form of ParForEachMany. init is
// called once per task; accumulators are never merged by the engine.
func ParForEachManyInit[T any, A any](pf *ParFilter[T], list []Entity, init func() A, fold func(A, Entity, T) A) error {
	f := pf.f
	if pf.pool == nil {
		return ErrNoTaskPool
	}
	f.refresh()
	f.beginPass()
	// Every component is reserved as a read: items are handed out by value.
	var readAll bitmask256
	for i := range readAll {
		readAll[i] = f.readMask[i] | f.writeMask[i]
	}
	if err := f.world.access.acquire(readAll, bitmask256{}); err != nil {
		return err
	}
	defer func() {
		f.world.access.release(readAll, bitmask256{})
		f.endPass()
	}()
	if len(list) == 0 {
		return nil
	}
	run := func(part []Entity) {
		acc := init()
		for _, e := range part {
			if p := f.entityPtr(e, false); p != nil {
				acc = fold(acc, e, *(*T)(p))
			}
		}
	}
	return pf.dispatchList(list, run)
}

// ParForEachManyUnique runs fn on each listed entity's query item in
// parallel with mutable access. The list's uniqueness guarantee makes the
// concurrent pointers sound: disjoint list slices over distinct entities
// can never alias.
func ParForEachManyUnique[T any](pf *ParFilter[T], list UniqueEntityList, fn func(Entity, *T)) error {
	return ParForEachManyUniqueInit(pf, list, func() struct{} { return struct{}{} },
		func(acc struct{}, e Entity, c *T) struct{} {
			fn(e, c)
			return acc
		})
}

// ParForEachManyUniqueInit is the accumulator form of ParForEachManyUnique.
func ParForEachManyUniqueInit[T any, A any](pf *ParFilter[T], list UniqueEntityList, init func() A, fold func(A, Entity, *T) A) error {
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
	ents := list.Entities()
	if len(ents) == 0 {
		return nil
	}
	run := func(part []Entity) {
		acc := init()
		for _, e := range part {
			if p := f.entityPtr(e, f.writes); p != nil {
				acc = fold(acc, e, (*T)(p))
			}
		}
	}
	return pf.dispatchList(ents, run)
}

// dispatchList partitions the list by index and schedules one task per
// slice, falling back to a single inline run below two threads.
func (pf *ParFilter[T]) dispatchList(list []Entity, run func(part []Entity)) error {
	threads := pf.pool.ThreadCount()
	if threads <= 1 {
		return pf.pool.runInline(func() {
			run(list)
		})
	}
	batchSize := pf.strategy.CalcBatchSize(func() int { return len(list) }, threads)
	if batchSize < 1 {
		batchSize = 1
	}
	pf.pool.log().Debug("parallel list dispatch",
		zap.Int("entities", len(list)),
		zap.Int("batch_size", batchSize),
		zap.Int("threads", threads))
	return pf.pool.Scope(func(s *TaskScope) {
		for start := 0; start < len(list); start += batchSize {
			end := min(start+batchSize, len(list))
			part := list[start:end]
			s.Spawn(func() {
				run(part)
			})
		}
	})
}
