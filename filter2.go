package heiretsu

import (
	"reflect"
	"unsafe"
)

// Filter2 provides a fast, cache-friendly iterator over all entities that
// have the 2 components: T1, T2.
type Filter2[T1 any, T2 any] struct {
	queryState
	spans     []span
	cur       cursor
	compSizes [2]uintptr
	ids       [2]uint8
	sparses   [2]bool
	writes    [2]bool
}

// NewFilter2 creates a new `Filter2` that iterates over all entities
// possessing at least the 2 components: T1, T2, refined by the given terms.
//
// Parameters:
//   - w: The World to query.
//   - terms: Optional With/Without/Read/Added/Changed refinements.
//
// Returns:
//   - A pointer to the newly created `Filter2`.
func NewFilter2[T1 any, T2 any](w *World, terms ...FilterTerm) *Filter2[T1, T2] {
	id1 := w.getCompTypeID(reflect.TypeFor[T1]())
	id2 := w.getCompTypeID(reflect.TypeFor[T2]())
	if id2 == id1 {
		panic("ecs: duplicate component types in Filter2")
	}
	f := &Filter2[T1, T2]{
		queryState: newQueryState(w, []uint8{id1, id2}, terms),
		ids:        [2]uint8{id1, id2},
	}
	f.compSizes[0] = w.components.compIDToSize[id1]
	f.compSizes[1] = w.components.compIDToSize[id2]
	f.sparses[0] = w.isSparse(id1)
	f.sparses[1] = w.isSparse(id2)
	f.writes[0] = f.writeMask.containsBit(id1)
	f.writes[1] = f.writeMask.containsBit(id2)
	f.Reset()
	return f
}

// New is a convenience method that constructs a new `Filter2` instance for
// the same component types, equivalent to calling `NewFilter2`.
func (f *Filter2[T1, T2]) New(w *World, terms ...FilterTerm) *Filter2[T1, T2] {
	return NewFilter2[T1, T2](w, terms...)
}

// Reset rewinds the filter's iterator to the beginning and picks up any
// archetypes created since the last pass.
func (f *Filter2[T1, T2]) Reset() {
	f.refresh()
	f.beginPass()
	f.spans = f.collectSpans(f.spans[:0])
	f.cur = newCursor(&f.queryState, f.spans)
}

// SetTickWindow pins an explicit change-detection window (lastRun, thisRun]
// for Added/Changed terms.
func (f *Filter2[T1, T2]) SetTickWindow(lastRun, thisRun Tick) {
	f.setTickWindow(lastRun, thisRun)
}

// Next advances the filter to the next matching entity. It returns true if
// an entity was found, and false if the iteration is complete.
func (f *Filter2[T1, T2]) Next() bool {
	return f.cur.next()
}

// Entity returns the current `Entity` in the iteration.
func (f *Filter2[T1, T2]) Entity() Entity {
	return f.cur.ent
}

// Get returns pointers to the components for the current entity in the
// iteration. This should only be called after `Next()` has returned true.
func (f *Filter2[T1, T2]) Get() (*T1, *T2) {
	sp, slot := f.cur.current()
	p1 := f.componentPtr(0, sp.chunk, slot, f.cur.ent)
	p2 := f.componentPtr(1, sp.chunk, slot, f.cur.ent)
	return (*T1)(p1), (*T2)(p2)
}

func (f *Filter2[T1, T2]) componentPtr(i int, ch *chunk, slot int, ent Entity) unsafe.Pointer {
	id := f.ids[i]
	if f.sparses[i] {
		col := f.world.sparse[id]
		if f.writes[i] {
			col.getTicks(ent.ID).changed = f.thisRun
		}
		return col.get(ent.ID)
	}
	if f.writes[i] {
		ch.tickColumns[id][slot].changed = f.thisRun
	}
	return unsafe.Pointer(uintptr(ch.compPointers[id]) + uintptr(slot)*f.compSizes[i])
}

// Each runs fn once per matching entity, holding the filter's component
// access in the world's access registry for the duration of the pass.
func (f *Filter2[T1, T2]) Each(fn func(Entity, *T1, *T2)) error {
	_, err := Fold2(f, func() struct{} { return struct{}{} },
		func(acc struct{}, e Entity, c1 *T1, c2 *T2) struct{} {
			fn(e, c1, c2)
			return acc
		})
	return err
}

// Fold2 runs a checked sequential fold over every matching entity.
func Fold2[T1 any, T2 any, A any](f *Filter2[T1, T2], init func() A, fold func(A, Entity, *T1, *T2) A) (A, error) {
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
		p1 := f.componentPtr(0, sp.chunk, slot, c.ent)
		p2 := f.componentPtr(1, sp.chunk, slot, c.ent)
		acc = fold(acc, c.ent, (*T1)(p1), (*T2)(p2))
	}
	return acc, nil
}

// Entities returns all entities that currently match the filter, in storage
// order. Change-detection terms are applied.
func (f *Filter2[T1, T2]) Entities() []Entity {
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
