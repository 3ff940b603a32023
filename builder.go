package heiretsu

import (
	"reflect"
	"unsafe"
)

// Builder creates entities with a fixed set of components, resolved to their
// archetype once at construction. It is the fast path for populating a
// world: chunk space and entity IDs are claimed in bulk.
type Builder[T any] struct {
	world  *World
	arch   *archetype
	compID uint8
}

// NewBuilder returns a builder for entities holding the component `T`.
func NewBuilder[T any](w *World) *Builder[T] {
	t := reflect.TypeFor[T]()
	id := w.getCompTypeID(t)
	var mask bitmask256
	mask.set(id)
	var specs []compSpec
	if !w.isSparse(id) {
		specs = []compSpec{{id: id, typ: t, size: w.components.compIDToSize[id]}}
	}
	arch := w.getOrCreateArchetype(mask, specs)
	return &Builder[T]{world: w, arch: arch, compID: id}
}

// New is a convenience function that creates a new builder instance.
func (b *Builder[T]) New(w *World) *Builder[T] {
	return NewBuilder[T](w)
}

// NewEntity creates one entity with a zero-valued `T`.
func (b *Builder[T]) NewEntity() Entity {
	return b.world.createEntity(b.arch)
}

// NewEntities creates count entities with zero-valued components.
func (b *Builder[T]) NewEntities(count int) {
	b.world.createEntities(b.arch, count, nil)
}

// NewEntitiesTo creates count entities and appends them to dst.
func (b *Builder[T]) NewEntitiesTo(count int, dst []Entity) []Entity {
	b.world.createEntities(b.arch, count, func(_ *chunk, _ int, e Entity) {
		dst = append(dst, e)
	})
	return dst
}

// NewEntitiesWithValueSet creates count entities, each with its `T` set to
// comp.
func (b *Builder[T]) NewEntitiesWithValueSet(count int, comp T) {
	w := b.world
	if w.isSparse(b.compID) {
		col := w.sparse[b.compID]
		w.createEntities(b.arch, count, func(_ *chunk, _ int, e Entity) {
			*(*T)(col.get(e.ID)) = comp
		})
		return
	}
	size := b.arch.compSizes[b.compID]
	w.createEntities(b.arch, count, func(c *chunk, idx int, _ Entity) {
		ptr := unsafe.Pointer(uintptr(c.compPointers[b.compID]) + uintptr(idx)*size)
		*(*T)(ptr) = comp
	})
}

// Get returns a pointer to the entity's `T`, or nil if the entity is invalid
// or lives in a different archetype than the builder's.
func (b *Builder[T]) Get(e Entity) *T {
	return GetComponent[T](b.world, e)
}

// Builder2 creates entities with two components. See Builder.
type Builder2[T1 any, T2 any] struct {
	world *World
	arch  *archetype
	ids   [2]uint8
}

// NewBuilder2 returns a builder for entities holding `T1` and `T2`.
func NewBuilder2[T1 any, T2 any](w *World) *Builder2[T1, T2] {
	t1 := reflect.TypeFor[T1]()
	t2 := reflect.TypeFor[T2]()
	id1 := w.getCompTypeID(t1)
	id2 := w.getCompTypeID(t2)
	if id1 == id2 {
		panic("ecs: duplicate component types in Builder2")
	}
	var mask bitmask256
	mask.set(id1)
	mask.set(id2)
	var specs []compSpec
	if !w.isSparse(id1) {
		specs = append(specs, compSpec{id: id1, typ: t1, size: w.components.compIDToSize[id1]})
	}
	if !w.isSparse(id2) {
		specs = append(specs, compSpec{id: id2, typ: t2, size: w.components.compIDToSize[id2]})
	}
	arch := w.getOrCreateArchetype(mask, specs)
	return &Builder2[T1, T2]{world: w, arch: arch, ids: [2]uint8{id1, id2}}
}

// NewEntity creates one entity with zero-valued components.
func (b *Builder2[T1, T2]) NewEntity() Entity {
	return b.world.createEntity(b.arch)
}

// NewEntities creates count entities with zero-valued components.
func (b *Builder2[T1, T2]) NewEntities(count int) {
	b.world.createEntities(b.arch, count, nil)
}

// NewEntitiesTo creates count entities and appends them to dst.
func (b *Builder2[T1, T2]) NewEntitiesTo(count int, dst []Entity) []Entity {
	b.world.createEntities(b.arch, count, func(_ *chunk, _ int, e Entity) {
		dst = append(dst, e)
	})
	return dst
}

// NewEntitiesWithValueSet creates count entities with both components set.
func (b *Builder2[T1, T2]) NewEntitiesWithValueSet(count int, c1 T1, c2 T2) {
	w := b.world
	set1 := componentSetter[T1](w, b.arch, b.ids[0], c1)
	set2 := componentSetter[T2](w, b.arch, b.ids[1], c2)
	w.createEntities(b.arch, count, func(c *chunk, idx int, e Entity) {
		set1(c, idx, e)
		set2(c, idx, e)
	})
}

// componentSetter returns a closure writing val into an entity's component,
// resolving the dense/sparse storage split once instead of per entity.
func componentSetter[T any](w *World, a *archetype, id uint8, val T) func(c *chunk, idx int, e Entity) {
	if w.isSparse(id) {
		col := w.sparse[id]
		return func(_ *chunk, _ int, e Entity) {
			*(*T)(col.get(e.ID)) = val
		}
	}
	size := a.compSizes[id]
	return func(c *chunk, idx int, _ Entity) {
		ptr := unsafe.Pointer(uintptr(c.compPointers[id]) + uintptr(idx)*size)
		*(*T)(ptr) = val
	}
}
