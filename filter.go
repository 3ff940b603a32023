package heiretsu

import (
	"reflect"
	"unsafe"
)

// Filter provides a fast, cache-friendly iterator over all entities that have
// a specific set of components. It is the primary mechanism for implementing
// game logic (systems). The filter iterates directly over the component
// columns of matching chunks, providing maximum performance.
//
// Two iteration styles are offered. The manual cursor (Reset/Next/Get) is
// unchecked and must stay on a single goroutine. The checked passes (Each,
// EachMany, Fold and the parallel dispatchers in par.go) register the
// filter's component access with the world's access registry for their
// duration, so conflicting passes fail instead of racing.
//
// This is the filter for entities with one component. Filters for multiple
// components (e.g., Filter2) follow a similar pattern.
type Filter[T any] struct {
	queryState
	spans    []span
	cur      cursor
	compSize uintptr
	compID   uint8
	sparse1  bool // component stored in a sparse column
	writes   bool // mutable access, stamps change ticks on Get
}

// NewFilter creates a new `Filter` that iterates over all entities possessing
// at least the component of type `T`, refined by the given terms. The filter
// automatically discovers and caches the archetypes that match its component
// signature.
//
// Parameters:
//   - w: The World to query.
//   - terms: Optional With/Without/Read/Added/Changed refinements.
//
// Returns:
//   - A pointer to the newly created `Filter[T]`.
func NewFilter[T any](w *World, terms ...FilterTerm) *Filter[T] {
	id := w.getCompTypeID(reflect.TypeFor[T]())
	f := &Filter[T]{
		queryState: newQueryState(w, []uint8{id}, terms),
		compID:     id,
		compSize:   w.components.compIDToSize[id],
		sparse1:    w.isSparse(id),
	}
	f.writes = f.writeMask.containsBit(id)
	f.Reset()
	return f
}

// New is a convenience function that creates a new filter instance.
func (f *Filter[T]) New(w *World, terms ...FilterTerm) *Filter[T] {
	return NewFilter[T](w, terms...)
}

// Reset rewinds the filter's iterator to the beginning and picks up any
// archetypes created since the last pass. A fresh pass over the same
// unchanged world visits the identical entities again.
func (f *Filter[T]) Reset() {
	f.refresh()
	f.beginPass()
	f.spans = f.collectSpans(f.spans[:0])
	f.cur = newCursor(&f.queryState, f.spans)
}

// SetTickWindow pins an explicit change-detection window (lastRun, thisRun]
// for Added/Changed terms. Without it, each checked pass sees the changes
// since the previous checked pass.
func (f *Filter[T]) SetTickWindow(lastRun, thisRun Tick) {
	f.setTickWindow(lastRun, thisRun)
}

// Next advances the filter to the next matching entity. It returns true if an
// entity was found, and false if the iteration is complete. This method must
// be called before accessing the entity or its components.
//
// Example:
//
//	query := heiretsu.NewFilter[Position](world)
//	for query.Next() {
//	    // ... process entity
//	}
//
// Returns:
//   - true if another matching entity was found, false otherwise.
func (f *Filter[T]) Next() bool {
	return f.cur.next()
}

// Entity returns the current `Entity` in the iteration. This should only be
// called after `Next()` has returned true.
func (f *Filter[T]) Entity() Entity {
	return f.cur.ent
}

// Get returns a pointer to the component of type `T` for the current entity
// in the iteration. This should only be called after `Next()` has returned
// true. Mutable filters stamp the component's changed tick.
func (f *Filter[T]) Get() *T {
	sp, slot := f.cur.current()
	return (*T)(f.componentPtr(sp.chunk, slot, f.cur.ent, f.writes))
}

// componentPtr resolves the component location for one entity slot, stamping
// the changed tick when stamp is set.
func (f *Filter[T]) componentPtr(ch *chunk, slot int, ent Entity, stamp bool) unsafe.Pointer {
	if f.sparse1 {
		col := f.world.sparse[f.compID]
		if stamp {
			col.getTicks(ent.ID).changed = f.thisRun
		}
		return col.get(ent.ID)
	}
	if stamp {
		ch.tickColumns[f.compID][slot].changed = f.thisRun
	}
	return unsafe.Pointer(uintptr(ch.compPointers[f.compID]) + uintptr(slot)*f.compSize)
}

// entityPtr resolves the component for an explicitly listed entity, or nil
// when the entity is dead or fails the filter.
func (f *Filter[T]) entityPtr(e Entity, stamp bool) unsafe.Pointer {
	w := f.world
	if !w.IsValid(e) {
		return nil
	}
	meta := w.entities.metas[e.ID]
	a := w.archetypes.archetypes[meta.archetypeIndex]
	if !a.mask.contains(f.includeMask) || a.mask.intersects(f.excludeMask) {
		return nil
	}
	ch := a.chunks[meta.chunkIndex]
	if !f.passes(ch, meta.index, e.ID) {
		return nil
	}
	return f.componentPtr(ch, meta.index, e, stamp)
}

// Each runs fn once per matching entity, in storage order. The filter's
// component access is held in the world's access registry for the duration
// of the pass; a conflicting concurrent pass returns ErrAccessConflict.
func (f *Filter[T]) Each(fn func(Entity, *T)) error {
	_, err := Fold(f, func() struct{} { return struct{}{} },
		func(acc struct{}, e Entity, c *T) struct{} {
			fn(e, c)
			return acc
		})
	return err
}

// EachMany runs fn over the explicitly listed entities, preserving list
// order. Dead entities and entities that do not match the filter are
// silently skipped. The list may contain duplicates; this sequential form is
// the only one that tolerates them.
func (f *Filter[T]) EachMany(list []Entity, fn func(Entity, *T)) error {
	f.refresh()
	f.beginPass()
	if err := f.world.access.acquire(f.readMask, f.writeMask); err != nil {
		return err
	}
	defer func() {
		f.world.access.release(f.readMask, f.writeMask)
		f.endPass()
	}()
	for _, e := range list {
		if p := f.entityPtr(e, f.writes); p != nil {
			fn(e, (*T)(p))
		}
	}
	return nil
}

// EachManyUnique is EachMany over a duplicate-free list. Sequentially the
// uniqueness guarantee buys nothing extra; it exists for symmetry with the
// parallel variant, where it is what makes mutable access sound.
func (f *Filter[T]) EachManyUnique(list UniqueEntityList, fn func(Entity, *T)) error {
	return f.EachMany(list.Entities(), fn)
}

// Fold runs a checked sequential fold over every matching entity: acc starts
// at init() and is threaded through fold for each item. It returns the final
// accumulator.
func Fold[T any, A any](f *Filter[T], init func() A, fold func(A, Entity, *T) A) (A, error) {
	f.refresh()
	f.beginPass()
	if err := f.world.access.acquire(f.readMask, f.writeMask); err != nil {
		var zero A
		return zero, err
	}
	defer func() {
		f.world.access.release(f.readMask, f.writeMask)
		f.endPass()
	}()
	spans := f.collectSpans(nil)
	c := newCursor(&f.queryState, spans)
	acc := init()
	for c.next() {
		sp, slot := c.current()
		acc = fold(acc, c.ent, (*T)(f.componentPtr(sp.chunk, slot, c.ent, f.writes)))
	}
	return acc, nil
}

// Entities returns all entities that currently match the filter, in storage
// order. Change-detection terms are applied.
func (f *Filter[T]) Entities() []Entity {
	f.refresh()
	f.beginPass()
	spans := f.collectSpans(nil)
	c := newCursor(&f.queryState, spans)
	var out []Entity
	for c.next() {
		out = append(out, c.ent)
	}
	return out
}

// Count returns the number of entities that currently match the filter.
func (f *Filter[T]) Count() int {
	f.refresh()
	f.beginPass()
	spans := f.collectSpans(nil)
	c := newCursor(&f.queryState, spans)
	n := 0
	for c.next() {
		n++
	}
	return n
}

// RemoveEntities efficiently removes all entities in the filter's matched
// archetypes. This operation is performed in a batch, invalidating all
// matching entities and recycling their IDs without moving any memory.
// Change-detection terms are not applied; removal is mask-level.
//
// After this operation, the filter will be empty.
func (f *Filter[T]) RemoveEntities() {
	f.refresh()
	w := f.world
	arches := w.archetypes.archetypes
	for _, ai := range f.matched {
		a := arches[ai]
		for _, ch := range a.chunks {
			for i := 0; i < ch.size; i++ {
				ent := ch.entityIDs[i]
				for _, cid := range a.sparseOrder {
					w.sparse[cid].remove(ent.ID)
				}
				meta := &w.entities.metas[ent.ID]
				meta.archetypeIndex = -1
				meta.chunkIndex = -1
				meta.index = -1
				meta.version = 0
				w.entities.freeIDs = append(w.entities.freeIDs, ent.ID)
			}
		}
		a.chunks = a.chunks[:0]
		a.size = 0
	}
	f.Reset()
}
